package layout

import (
	"math"
	"testing"

	"github.com/ByLCY/retype/geom"
)

// stubTypesetter 是一个最小实现，仅用于测试，避免引入 renderer 造成循环依赖。
// 每个字符的步进为字号乘以 ratio（默认 0.5），widths 可覆盖个别字符。
type stubTypesetter struct {
	ratio  float64
	widths map[rune]float64
}

func (s *stubTypesetter) TextWidth(text string, size int) (float64, error) {
	ratio := s.ratio
	if ratio == 0 {
		ratio = 0.5
	}
	total := 0.0
	for _, r := range text {
		if w, ok := s.widths[r]; ok {
			total += w
			continue
		}
		total += float64(size) * ratio
	}
	return total, nil
}

func (s *stubTypesetter) Metrics(size int) (Metrics, error) {
	return Metrics{Ascent: 0.8 * float64(size), Descent: 0.2 * float64(size), LineHeight: 1.2 * float64(size)}, nil
}

func TestWrapWordsKeepsWordWhenGapAllows(t *testing.T) {
	words := []string{"w1", "w2", "w3"}
	widthOf := func(string, int) (float64, error) { return 40, nil }
	slots, widths, err := wrapWords(words, 100, 5, widthOf)
	if err != nil {
		t.Fatalf("wrapWords 失败: %v", err)
	}
	// 100-(0+40+5)=55 > 45：第二个词留在第 0 行；100-(45+40+5)=10 <= 45：第三个词换行
	wantLines := []int{0, 0, 1}
	wantX := []float64{0, 45, 0}
	for i := range words {
		if slots[i].line != wantLines[i] || slots[i].x != wantX[i] {
			t.Fatalf("词 %d 位置期望 line=%d x=%g，实际 %+v", i, wantLines[i], wantX[i], slots[i])
		}
		if widths[i] != 40 {
			t.Fatalf("词 %d 宽度期望 40，实际 %g", i, widths[i])
		}
	}
}

func TestWordFlowPlaceholderForBlankText(t *testing.T) {
	in := FlowInput{Text: "   ", Size: 16, EnlargeRatio: 1, Width: 200, Height: 50, WordSpacing: true, WordGap: 10}
	p, err := FlowFor(Horizontal, false).Place(&stubTypesetter{}, in)
	if err != nil {
		t.Fatalf("排布失败: %v", err)
	}
	if len(p.Glyphs) != len(WordPlaceholder) {
		t.Fatalf("期望 %d 个占位字形，实际 %d", len(WordPlaceholder), len(p.Glyphs))
	}
	for _, g := range p.Glyphs {
		if g.Rune != '.' {
			t.Fatalf("占位字形应为 '.'，实际 %q", g.Rune)
		}
	}
}

func TestWordFlowSplitsLongWords(t *testing.T) {
	in := FlowInput{Text: "abcdefghij", Size: 10, EnlargeRatio: 1, Width: 20, Height: 100, WordSpacing: true, WordGap: 10}
	p, err := FlowFor(Horizontal, false).Place(&stubTypesetter{}, in)
	if err != nil {
		t.Fatalf("排布失败: %v", err)
	}
	if p.Lines != 3 {
		t.Fatalf("10 个字符、每行最多 4 个，期望 3 行，实际 %d", p.Lines)
	}
	for _, g := range p.Glyphs {
		if g.X < in.OriginX-1e-9 || g.X+5 > in.OriginX+in.Width+1e-9 {
			t.Fatalf("字形 %q 超出盒宽: x=%g", g.Rune, g.X)
		}
	}
}

func TestCharFlowWrapsAndCenters(t *testing.T) {
	in := FlowInput{Text: "abcdefg", Size: 10, EnlargeRatio: 1, OriginX: 50, OriginY: 20, Width: 30, Height: 40}
	p, err := FlowFor(Horizontal, false).Place(&stubTypesetter{}, in)
	if err != nil {
		t.Fatalf("排布失败: %v", err)
	}
	// 每字 5px，盒宽 30 每行 6 字
	if p.Lines != 2 || len(p.Glyphs) != 7 {
		t.Fatalf("期望 2 行 7 字，实际 %d 行 %d 字", p.Lines, len(p.Glyphs))
	}
	if p.Glyphs[0].X != 50 {
		t.Fatalf("满行应贴齐盒左侧，实际 x=%g", p.Glyphs[0].X)
	}
	last := p.Glyphs[6]
	if want := 50 + (30-5)/2.0; last.X != want {
		t.Fatalf("第二行应水平居中，期望 x=%g，实际 %g", want, last.X)
	}
	if last.Y != p.Glyphs[0].Y+10*LinePitch {
		t.Fatalf("行距应为字号的 %g 倍", LinePitch)
	}
	// 整体垂直居中：块高 = 13 + 10
	if want := 20 + (40-23)/2.0; math.Abs(p.Glyphs[0].Y-want) > 1e-9 {
		t.Fatalf("块应垂直居中，期望 y=%g，实际 %g", want, p.Glyphs[0].Y)
	}
}

func TestCharFlowHonoursExplicitBreak(t *testing.T) {
	in := FlowInput{Text: "ab\ncd", Size: 10, EnlargeRatio: 1, Width: 100, Height: 100}
	p, err := FlowFor(Horizontal, false).Place(&stubTypesetter{}, in)
	if err != nil {
		t.Fatalf("排布失败: %v", err)
	}
	if p.Lines != 2 || len(p.Glyphs) != 4 {
		t.Fatalf("换行符应强制分行，实际 %d 行 %d 字", p.Lines, len(p.Glyphs))
	}
}

func TestVerticalFlowColumnsRightToLeft(t *testing.T) {
	in := FlowInput{Text: "abcd", Size: 10, EnlargeRatio: 1, Width: 100, Height: 20}
	p, err := FlowFor(Vertical, false).Place(&stubTypesetter{}, in)
	if err != nil {
		t.Fatalf("排布失败: %v", err)
	}
	if p.Lines != 2 || len(p.Glyphs) != 4 {
		t.Fatalf("期望 2 列 4 字，实际 %d 列 %d 字", p.Lines, len(p.Glyphs))
	}
	if p.Glyphs[0].Rune != 'ａ' {
		t.Fatalf("竖排应转为全角字符，实际 %q", p.Glyphs[0].Rune)
	}
	if p.Glyphs[0].X != p.Glyphs[1].X || p.Glyphs[1].Y <= p.Glyphs[0].Y {
		t.Fatalf("同列字形应自上而下排列: %+v %+v", p.Glyphs[0], p.Glyphs[1])
	}
	if p.Glyphs[2].X >= p.Glyphs[0].X {
		t.Fatalf("第二列应位于第一列左侧: %g >= %g", p.Glyphs[2].X, p.Glyphs[0].X)
	}
}

// narrowFont 只含有 ASCII 字形。
type narrowFont struct{ stubTypesetter }

func (narrowFont) HasGlyph(r rune) bool { return r < 0x80 }

func TestVerticalFlowKeepsHalfWidthWithoutWideGlyphs(t *testing.T) {
	in := FlowInput{Text: "HI。", Size: 10, EnlargeRatio: 1, Width: 100, Height: 100}
	p, err := FlowFor(Vertical, false).Place(&narrowFont{}, in)
	if err != nil {
		t.Fatalf("排布失败: %v", err)
	}
	want := []rune{'H', 'I', '。'}
	if len(p.Glyphs) != len(want) {
		t.Fatalf("期望 %d 个字形，实际 %d", len(want), len(p.Glyphs))
	}
	for i, r := range want {
		if p.Glyphs[i].Rune != r {
			t.Fatalf("字体缺少全角字形时应保留原字符，第 %d 个为 %q", i, p.Glyphs[i].Rune)
		}
	}
}

func TestLineSizeHints(t *testing.T) {
	in := FlowInput{Size: 32, Hints: []float64{1, 0.5, 0.1}}
	cases := map[int]int{0: 32, 1: 16, 2: 16, 7: 16}
	for line, want := range cases {
		if got := in.lineSize(line); got != want {
			t.Fatalf("第 %d 行字号期望 %d，实际 %d", line, want, got)
		}
	}
	if got := (FlowInput{Size: 20}).lineSize(3); got != 20 {
		t.Fatalf("无提示时应使用工作字号，实际 %d", got)
	}
}

func sampleJob() *Job {
	return &Job{
		Lines: []TextLine{
			{Quad: geom.RectQuad(10, 10, 100, 20), FontSize: 16},
			{Quad: geom.RectQuad(10, 34, 80, 20), FontSize: 8},
		},
		Regions: []Region{
			{Quad: geom.RectQuad(10, 10, 100, 40), Direction: Horizontal, Lines: []int{0, 1}},
			{Quad: geom.RectQuad(0, 0, 0, 40), Direction: Horizontal, Lines: []int{0}},
			{Quad: geom.RectQuad(200, 10, 40, 100), Direction: Vertical, Lines: []int{0}},
			{Quad: geom.RectQuad(300, 10, 40, 40), Direction: Horizontal},
		},
		Texts: []string{"abcdefghij", "lost", "縦書き", ""},
	}
}

func TestBuildPlansEveryRegionInOrder(t *testing.T) {
	job := sampleJob()
	res, err := Build(job, BuildOptions{Typesetter: &stubTypesetter{}})
	if err != nil {
		t.Fatalf("Build 失败: %v", err)
	}
	if len(res.Plans) != len(job.Regions) {
		t.Fatalf("期望 %d 个计划，实际 %d", len(job.Regions), len(res.Plans))
	}
	for i, plan := range res.Plans {
		if plan.Index != i {
			t.Fatalf("计划顺序错误: %d != %d", plan.Index, i)
		}
	}

	first := res.Plans[0]
	if first.Skipped() || first.Placement == nil {
		t.Fatalf("第一个区域不应被跳过: %+v", first)
	}
	// 字号 16，盒 100x40，10 字：放大一次后 2 行 x 5 列
	if first.Capacity.WorkingFontSize != 16 || first.Capacity.Steps != 1 {
		t.Fatalf("容量求解结果异常: %+v", first.Capacity)
	}
	if len(first.Placement.Glyphs) != 10 {
		t.Fatalf("期望 10 个字形，实际 %d", len(first.Placement.Glyphs))
	}
	w, h := first.CanvasSize()
	for _, g := range first.Placement.Glyphs {
		if g.X < 0 || g.Y < 0 || g.X > float64(w) || g.Y > float64(h) {
			t.Fatalf("字形超出暂存画布 %dx%d: %+v", w, h, g)
		}
	}

	if res.Plans[1].Skip != ErrEmptyBox.Error() {
		t.Fatalf("零面积区域应被跳过，实际 %q", res.Plans[1].Skip)
	}
	if res.Plans[2].Direction != Vertical || res.Plans[2].Skipped() {
		t.Fatalf("竖排区域计划异常: %+v", res.Plans[2])
	}
	if res.Plans[3].Skip != ErrEmptyText.Error() {
		t.Fatalf("空译文区域应被跳过，实际 %q", res.Plans[3].Skip)
	}
}

func TestBuildForceHorizontalLeavesRegionsUntouched(t *testing.T) {
	job := sampleJob()
	res, err := Build(job, BuildOptions{Typesetter: &stubTypesetter{}, ForceHorizontal: true})
	if err != nil {
		t.Fatalf("Build 失败: %v", err)
	}
	if res.Plans[2].Direction != Horizontal {
		t.Fatalf("强制横排后方向应为横排")
	}
	if job.Regions[2].Direction != Vertical {
		t.Fatalf("强制横排不应修改输入区域")
	}
}

func TestBuildValidatesJob(t *testing.T) {
	job := sampleJob()
	job.Texts = job.Texts[:2]
	if _, err := Build(job, BuildOptions{Typesetter: &stubTypesetter{}}); err == nil {
		t.Fatalf("译文数量不一致时应报错")
	}
	job = sampleJob()
	job.Regions[0].Lines = []int{9}
	if _, err := Build(job, BuildOptions{Typesetter: &stubTypesetter{}}); err == nil {
		t.Fatalf("引用不存在的文本行时应报错")
	}
	if _, err := Build(sampleJob(), BuildOptions{}); err == nil {
		t.Fatalf("缺少 Typesetter 时应报错")
	}
}
