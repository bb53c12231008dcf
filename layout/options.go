package layout

// 默认参数。
const (
	DefaultMagnification   = 1
	DefaultWordGap         = 10.0
	DefaultMaxEnlargeSteps = 64
)

// BuildOptions 配置排版阶段所需的依赖与参数。
type BuildOptions struct {
	Typesetter Typesetter
	// Magnification 为文字放大倍率（整数），越大渲染越清晰。
	Magnification int
	// ForceHorizontal 为真时所有区域按横排处理，不修改调用方的 Region。
	ForceHorizontal bool
	// WordSpacing 为真时按空格分词换行（拉丁等字母文字），否则逐字排布。
	WordSpacing bool
	// WordGap 为原图尺度下的词间距（像素），会按放大比例缩放。
	WordGap float64
	// MaxEnlargeSteps 限制容量求解的放大次数，<=0 时使用默认值。
	MaxEnlargeSteps int
}

func (o BuildOptions) withDefaults() BuildOptions {
	if o.Magnification <= 0 {
		o.Magnification = DefaultMagnification
	}
	if o.WordGap <= 0 {
		o.WordGap = DefaultWordGap
	}
	if o.MaxEnlargeSteps <= 0 {
		o.MaxEnlargeSteps = DefaultMaxEnlargeSteps
	}
	return o
}

// Metrics 为某一字号下的字体度量（像素）。
type Metrics struct {
	Ascent     float64
	Descent    float64
	LineHeight float64
}

// Typesetter 负责测量字形宽度与字体度量，单位均为像素，size 为整数像素字号。
type Typesetter interface {
	TextWidth(text string, size int) (float64, error)
	Metrics(size int) (Metrics, error)
}

// GlyphCoverage 可由 Typesetter 选择实现，报告当前字体是否含有某个字符的字形。
// 竖排只在字体含有全角字形时才把半角字符转为全角。
type GlyphCoverage interface {
	HasGlyph(r rune) bool
}
