package layout

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/width"
)

// WordPlaceholder 在分词结果为空时替代原文，避免生成空遮罩导致变换退化。
const WordPlaceholder = "...."

// FlowInput 描述一次排布：工作字号、放大比例、目标盒（画布坐标）以及逐行字号提示。
type FlowInput struct {
	Text         string
	Size         int
	EnlargeRatio float64
	Hints        []float64
	OriginX      float64
	OriginY      float64
	Width        float64
	Height       float64
	WordSpacing  bool
	WordGap      float64
}

// lineSize 返回第 i 行（列）的字号：工作字号乘以对应文本行的相对字号，不低于工作字号的一半。
func (in FlowInput) lineSize(i int) int {
	if len(in.Hints) == 0 {
		return in.Size
	}
	if i >= len(in.Hints) {
		i = len(in.Hints) - 1
	}
	s := int(math.Round(float64(in.Size) * in.Hints[i]))
	return min(max(s, (in.Size+1)/2), in.Size)
}

// Flow 是字形排布策略：横排与竖排两种实现，由区域方向选择。
type Flow interface {
	Place(ts Typesetter, in FlowInput) (*Placement, error)
	Direction() Direction
	sealed()
}

// FlowFor 按方向选择排布策略；forceHorizontal 为真时总是横排。
func FlowFor(dir Direction, forceHorizontal bool) Flow {
	if forceHorizontal || dir == Horizontal {
		return horizontalFlow{}
	}
	return verticalFlow{}
}

type horizontalFlow struct{}

func (horizontalFlow) Direction() Direction { return Horizontal }
func (horizontalFlow) sealed()              {}

// Place 横排：字母文字按词换行，其余逐字换行；每行水平居中，整体垂直居中。
func (f horizontalFlow) Place(ts Typesetter, in FlowInput) (*Placement, error) {
	var (
		rows []hrow
		err  error
	)
	if in.WordSpacing {
		rows, err = wordRows(ts, in)
	} else {
		rows, err = charRows(ts, in)
	}
	if err != nil {
		return nil, err
	}
	return stackRows(ts, in, rows)
}

// hrow 是一行已确定水平位置（相对行首）的字形。
type hrow struct {
	size   int
	width  float64
	glyphs []PlacedGlyph
}

func charRows(ts Typesetter, in FlowInput) ([]hrow, error) {
	var rows []hrow
	cur := hrow{size: in.lineSize(0)}
	wrapped := false
	flush := func() {
		rows = append(rows, cur)
		cur = hrow{size: in.lineSize(len(rows))}
	}
	for _, r := range in.Text {
		if r == '\r' {
			continue
		}
		if r == '\n' {
			flush()
			wrapped = false
			continue
		}
		if wrapped && cur.width == 0 && unicode.IsSpace(r) {
			continue
		}
		adv, err := ts.TextWidth(string(r), cur.size)
		if err != nil {
			return nil, err
		}
		if cur.width > 0 && cur.width+adv > in.Width {
			flush()
			wrapped = true
			if unicode.IsSpace(r) {
				continue
			}
			if cur.size != rows[len(rows)-1].size {
				if adv, err = ts.TextWidth(string(r), cur.size); err != nil {
					return nil, err
				}
			}
		}
		cur.glyphs = append(cur.glyphs, PlacedGlyph{Rune: r, X: cur.width, Size: cur.size})
		cur.width += adv
	}
	if len(cur.glyphs) > 0 || len(rows) == 0 {
		rows = append(rows, cur)
	}
	return rows, nil
}

// wordSlot 记录一个词所在的行与行内横坐标。
type wordSlot struct {
	line int
	x    float64
}

// wrapWords 贪心换行：首词位于 x=0；之后的词仅当 boxW-(x+lastW+gap) > wordW+gap 时留在本行。
// widthOf 接收行号，以便逐行字号不同时重新测量。
func wrapWords(words []string, boxW, gap float64, widthOf func(word string, line int) (float64, error)) ([]wordSlot, []float64, error) {
	slots := make([]wordSlot, len(words))
	widths := make([]float64, len(words))
	if len(words) == 0 {
		return slots, widths, nil
	}
	line := 0
	x := 0.0
	last, err := widthOf(words[0], line)
	if err != nil {
		return nil, nil, err
	}
	widths[0] = last
	for i := 1; i < len(words); i++ {
		w, err := widthOf(words[i], line)
		if err != nil {
			return nil, nil, err
		}
		if boxW-(x+last+gap) > w+gap {
			x += last + gap
		} else {
			x = 0
			line++
			if w, err = widthOf(words[i], line); err != nil {
				return nil, nil, err
			}
		}
		slots[i] = wordSlot{line: line, x: x}
		widths[i] = w
		last = w
	}
	return slots, widths, nil
}

func wordRows(ts Typesetter, in FlowInput) ([]hrow, error) {
	words := strings.Fields(in.Text)
	if len(words) == 0 {
		words = []string{WordPlaceholder}
	}
	gap := in.WordGap * in.EnlargeRatio

	// 超过盒宽的长词按宽度拆分
	var tokens []string
	for _, w := range words {
		parts, err := splitWordByWidth(ts, w, in.Width, in.lineSize(0))
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, parts...)
	}

	widthOf := func(word string, line int) (float64, error) {
		return runeWidth(ts, word, in.lineSize(line))
	}
	slots, widths, err := wrapWords(tokens, in.Width, gap, widthOf)
	if err != nil {
		return nil, err
	}

	var rows []hrow
	for i, tok := range tokens {
		for slots[i].line >= len(rows) {
			rows = append(rows, hrow{size: in.lineSize(len(rows))})
		}
		row := &rows[slots[i].line]
		x := slots[i].x
		for _, r := range tok {
			adv, err := ts.TextWidth(string(r), row.size)
			if err != nil {
				return nil, err
			}
			row.glyphs = append(row.glyphs, PlacedGlyph{Rune: r, X: x, Size: row.size})
			x += adv
		}
		row.width = slots[i].x + widths[i]
	}
	return rows, nil
}

// runeWidth 以逐字步进之和作为宽度，与实际放置方式保持一致。
func runeWidth(ts Typesetter, s string, size int) (float64, error) {
	total := 0.0
	for _, r := range s {
		adv, err := ts.TextWidth(string(r), size)
		if err != nil {
			return 0, err
		}
		total += adv
	}
	return total, nil
}

// splitWordByWidth 将宽于 limit 的词按宽度切分为多段，每段至少一个字符。
func splitWordByWidth(ts Typesetter, word string, limit float64, size int) ([]string, error) {
	if limit <= 0 {
		return []string{word}, nil
	}
	total, err := runeWidth(ts, word, size)
	if err != nil {
		return nil, err
	}
	if total <= limit {
		return []string{word}, nil
	}
	var parts []string
	var builder strings.Builder
	current := 0.0
	for _, r := range word {
		adv, err := ts.TextWidth(string(r), size)
		if err != nil {
			return nil, err
		}
		if builder.Len() > 0 && current+adv > limit {
			parts = append(parts, builder.String())
			builder.Reset()
			current = 0
		}
		builder.WriteRune(r)
		current += adv
	}
	if builder.Len() > 0 {
		parts = append(parts, builder.String())
	}
	return parts, nil
}

// stackRows 纵向堆叠各行：行距为字号的 LinePitch 倍，每行在盒内水平居中，整体垂直居中。
func stackRows(ts Typesetter, in FlowInput, rows []hrow) (*Placement, error) {
	p := &Placement{Lines: len(rows)}
	y := 0.0
	tops := make([]float64, len(rows))
	for i, row := range rows {
		m, err := ts.Metrics(row.size)
		if err != nil {
			return nil, err
		}
		tops[i] = y
		height := m.Ascent + m.Descent
		p.MaxGlyphHeight = math.Max(p.MaxGlyphHeight, height)
		p.BlockW = math.Max(p.BlockW, row.width)
		if i == len(rows)-1 {
			p.BlockH = y + math.Max(height, float64(row.size))
		}
		y += float64(row.size) * LinePitch
	}
	offY := in.OriginY + (in.Height-p.BlockH)/2
	for i, row := range rows {
		offX := in.OriginX + (in.Width-row.width)/2
		for _, g := range row.glyphs {
			g.X += offX
			g.Y = offY + tops[i]
			p.Glyphs = append(p.Glyphs, g)
		}
	}
	return p, nil
}

type verticalFlow struct{}

func (verticalFlow) Direction() Direction { return Vertical }
func (verticalFlow) sealed()              {}

// vcol 是一列字形，Y 为相对列首的偏移。
type vcol struct {
	size   int
	height float64
	glyphs []PlacedGlyph
	widths []float64
}

// widen 把半角字符转为全角；字体缺少全角字形时保留原字符。
func widen(ts Typesetter, text string) string {
	cov, _ := ts.(GlyphCoverage)
	var b strings.Builder
	for _, r := range text {
		wide, _ := utf8.DecodeRuneInString(width.Widen.String(string(r)))
		if wide != r && cov != nil && !cov.HasGlyph(wide) {
			wide = r
		}
		b.WriteRune(wide)
	}
	return b.String()
}

// Place 竖排：逐字自上而下，列自右向左；字体支持时半角字符先转为全角。整体在盒内居中。
func (f verticalFlow) Place(ts Typesetter, in FlowInput) (*Placement, error) {
	text := widen(ts, in.Text)

	var cols []vcol
	cur := vcol{size: in.lineSize(0)}
	wrapped := false
	flush := func() {
		cols = append(cols, cur)
		cur = vcol{size: in.lineSize(len(cols))}
	}
	for _, r := range text {
		if r == '\r' {
			continue
		}
		if r == '\n' {
			flush()
			wrapped = false
			continue
		}
		if wrapped && cur.height == 0 && unicode.IsSpace(r) {
			continue
		}
		adv := float64(cur.size)
		if cur.height > 0 && cur.height+adv > in.Height {
			flush()
			wrapped = true
			if unicode.IsSpace(r) {
				continue
			}
			adv = float64(cur.size)
		}
		w, err := ts.TextWidth(string(r), cur.size)
		if err != nil {
			return nil, err
		}
		cur.glyphs = append(cur.glyphs, PlacedGlyph{Rune: r, Y: cur.height, Size: cur.size})
		cur.widths = append(cur.widths, w)
		cur.height += adv
	}
	if len(cur.glyphs) > 0 || len(cols) == 0 {
		cols = append(cols, cur)
	}

	p := &Placement{Lines: len(cols)}
	centers := make([]float64, len(cols))
	x := 0.0
	for i, col := range cols {
		centers[i] = x + float64(col.size)/2
		p.BlockH = math.Max(p.BlockH, col.height)
		p.MaxGlyphHeight = math.Max(p.MaxGlyphHeight, float64(col.size))
		if i == len(cols)-1 {
			p.BlockW = x + float64(col.size)
		}
		x += float64(col.size) * LinePitch
	}
	offX := in.OriginX + (in.Width-p.BlockW)/2
	offY := in.OriginY + (in.Height-p.BlockH)/2
	for i, col := range cols {
		// 第一列在最右侧
		center := offX + p.BlockW - centers[i]
		for k, g := range col.glyphs {
			g.X = center - col.widths[k]/2
			g.Y += offY
			p.Glyphs = append(p.Glyphs, g)
		}
	}
	return p, nil
}
