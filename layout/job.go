package layout

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ByLCY/retype/binding"
	"github.com/ByLCY/retype/dsl"
	"github.com/ByLCY/retype/geom"
)

// FromDocument 将解析后的清单转换为 Job：先收集文本行以便区域按名称引用，
// 再构造区域并用 data 绑定译文中的 ${path} 占位符。
// 占位符无法解析的区域译文置空（渲染时跳过），并记录在 Job.Unbound 中。
func FromDocument(doc *dsl.Document, data any) (*Job, error) {
	if doc == nil {
		return nil, fmt.Errorf("清单为空")
	}
	job := &Job{Name: doc.Name}

	lineIndex := map[string]int{}
	for _, section := range doc.Sections {
		if section.Line == nil {
			continue
		}
		if _, dup := lineIndex[section.Line.Name]; dup {
			return nil, fmt.Errorf("文本行 %s 重复定义", section.Line.Name)
		}
		line, err := parseLine(section.Line)
		if err != nil {
			return nil, fmt.Errorf("文本行 %s: %w", section.Line.Name, err)
		}
		lineIndex[section.Line.Name] = len(job.Lines)
		job.Lines = append(job.Lines, line)
	}

	for _, section := range doc.Sections {
		if section.Region == nil {
			continue
		}
		region, text, err := parseRegion(section.Region, lineIndex)
		if err != nil {
			return nil, fmt.Errorf("区域 %s: %w", section.Region.Name, err)
		}
		bound, missing := binding.Interpolate(text, data)
		if len(missing) > 0 {
			if job.Unbound == nil {
				job.Unbound = map[int][]string{}
			}
			job.Unbound[len(job.Regions)] = missing
			bound = ""
		}
		job.Regions = append(job.Regions, region)
		job.Texts = append(job.Texts, bound)
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

func parseLine(section *dsl.LineSection) (TextLine, error) {
	var line TextLine
	attrs := blockAttributes(section.Block)
	quad, err := parseQuad(attrs)
	if err != nil {
		return line, err
	}
	line.Quad = quad
	v, ok := attrs["font-size"]
	if !ok {
		return line, fmt.Errorf("文本行 %s 缺少 font-size", section.Name)
	}
	size := ParseRawLengthStr(valueToString(v))
	if size.Value <= 0 {
		return line, fmt.Errorf("文本行 %s 的字号 %s 无效", section.Name, valueToString(v))
	}
	line.FontSize = size.ToPX()
	return line, nil
}

func parseRegion(section *dsl.RegionSection, lineIndex map[string]int) (Region, string, error) {
	region := Region{
		FG: Color{R: 0, G: 0, B: 0},
		BG: Color{R: 255, G: 255, B: 255},
	}
	attrs := blockAttributes(section.Block)
	quad, err := parseQuad(attrs)
	if err != nil {
		return region, "", err
	}
	region.Quad = quad

	switch dir := strings.ToLower(valueToString(attrs["dir"])); dir {
	case "", "h", "horizontal":
		region.Direction = Horizontal
	case "v", "vertical":
		region.Direction = Vertical
	default:
		return region, "", fmt.Errorf("书写方向 %s 无法识别", dir)
	}
	for _, c := range []struct {
		key string
		dst *Color
	}{{"fg", &region.FG}, {"bg", &region.BG}} {
		v, ok := attrs[c.key]
		if !ok {
			continue
		}
		parsed, err := parseColor(valueToString(v))
		if err != nil {
			return region, "", err
		}
		*c.dst = parsed
	}
	for _, name := range valueToStringSlice(attrs["lines"]) {
		idx, ok := lineIndex[name]
		if !ok {
			return region, "", fmt.Errorf("引用了未定义的文本行 %s", name)
		}
		region.Lines = append(region.Lines, idx)
	}
	region.SourceText = valueToString(attrs["source"])

	text := valueToString(attrs["text"])
	if text == "" {
		text = extractText(section.Block)
	}
	return region, text, nil
}

// parseQuad 接受 pts（8 个坐标）或 box（x, y, w, h）两种写法。
func parseQuad(attrs map[string]*dsl.Value) (geom.Quad, error) {
	if v, ok := attrs["pts"]; ok {
		coords, err := valueToFloats(v)
		if err != nil {
			return geom.Quad{}, err
		}
		q, ok := geom.NewQuad(coords...)
		if !ok {
			return geom.Quad{}, fmt.Errorf("pts 需要 8 个坐标，实际 %d 个", len(coords))
		}
		return q, nil
	}
	if v, ok := attrs["box"]; ok {
		nums, err := valueToFloats(v)
		if err != nil {
			return geom.Quad{}, err
		}
		if len(nums) != 4 {
			return geom.Quad{}, fmt.Errorf("box 需要 x, y, w, h 四个数值，实际 %d 个", len(nums))
		}
		return geom.RectQuad(nums[0], nums[1], nums[2], nums[3]), nil
	}
	return geom.Quad{}, fmt.Errorf("缺少 pts 或 box")
}

func blockAttributes(block *dsl.Block) map[string]*dsl.Value {
	attrs := map[string]*dsl.Value{}
	if block == nil {
		return attrs
	}
	for _, st := range block.Statements {
		if st.Assignment != nil {
			attrs[strings.ToLower(st.Assignment.Key)] = st.Assignment.Value
		}
	}
	return attrs
}

// extractText 拼接块内的裸字符串语句，作为 text 属性的替代写法。
func extractText(block *dsl.Block) string {
	if block == nil {
		return ""
	}
	var parts []string
	for _, st := range block.Statements {
		if st.Text != nil {
			parts = append(parts, string(st.Text.Value))
		}
	}
	return strings.Join(parts, "\n")
}

func parseColor(value string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if _, err := strconv.ParseUint(hex, 16, 32); err != nil {
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
	switch len(hex) {
	case 3:
		return Color{
			R: mustHex(strings.Repeat(hex[0:1], 2)),
			G: mustHex(strings.Repeat(hex[1:2], 2)),
			B: mustHex(strings.Repeat(hex[2:3], 2)),
		}, nil
	case 6, 8:
		return Color{
			R: mustHex(hex[0:2]),
			G: mustHex(hex[2:4]),
			B: mustHex(hex[4:6]),
		}, nil
	default:
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
}

func mustHex(s string) int {
	v, _ := strconv.ParseInt(s, 16, 64)
	return int(v)
}

func valueToString(val *dsl.Value) string {
	if val == nil {
		return ""
	}
	switch {
	case val.String != nil:
		return string(*val.String)
	case val.Number != nil:
		return val.Number.String()
	case val.Color != nil:
		return *val.Color
	case val.Ident != nil:
		return *val.Ident
	default:
		return ""
	}
}

func valueToStringSlice(val *dsl.Value) []string {
	if val == nil {
		return nil
	}
	if val.Array != nil {
		out := make([]string, 0, len(val.Array.Values))
		for _, item := range val.Array.Values {
			if s := valueToString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s := valueToString(val); s != "" {
		return []string{s}
	}
	return nil
}

func valueToFloats(val *dsl.Value) ([]float64, error) {
	items := valueToStringSlice(val)
	out := make([]float64, 0, len(items))
	for _, item := range items {
		f, err := strconv.ParseFloat(strings.TrimSuffix(item, "px"), 64)
		if err != nil {
			return nil, fmt.Errorf("坐标 %s 不是数值", item)
		}
		out = append(out, f)
	}
	return out, nil
}
