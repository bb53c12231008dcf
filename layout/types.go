package layout

import (
	"math"

	"github.com/ByLCY/retype/geom"
)

// 该文件定义区域、文本行与排版结果，供容量求解、字形排布、渲染与调试 JSON 共用。

// Direction 为区域的主书写方向。
type Direction int

const (
	Horizontal Direction = iota
	Vertical
)

func (d Direction) String() string {
	if d == Vertical {
		return "v"
	}
	return "h"
}

// MarshalText 让方向在调试 JSON 中输出为 "h"/"v"。
func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Color 采用 0-255 的 RGB 数值。
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// TextLine 是检测/OCR 阶段给出的一行源文本，拥有自己的几何与字号。
type TextLine struct {
	Quad     geom.Quad `json:"quad"`
	FontSize float64   `json:"fontSize"`
}

// Region 是合并阶段输出的文本区域（气泡）。
// Lines 为指向共享 []TextLine 的下标（弱引用，不拥有文本行）。
type Region struct {
	Quad       geom.Quad `json:"quad"`
	Direction  Direction `json:"direction"`
	FG         Color     `json:"fg"`
	BG         Color     `json:"bg"`
	SourceText string    `json:"sourceText,omitempty"`
	Lines      []int     `json:"lines"`
}

// FontSize 返回成员文本行字号的最大值，按四舍六入五成双取整。
// 下标越界的文本行会被忽略。
func (r Region) FontSize(lines []TextLine) int {
	size := 0.0
	for _, idx := range r.Lines {
		if idx < 0 || idx >= len(lines) {
			continue
		}
		size = math.Max(size, lines[idx].FontSize)
	}
	return int(math.RoundToEven(size))
}

// lineHints 返回各成员文本行相对区域字号的比例，用作逐行字号提示。
func (r Region) lineHints(lines []TextLine) []float64 {
	largest := 0.0
	for _, idx := range r.Lines {
		if idx >= 0 && idx < len(lines) {
			largest = math.Max(largest, lines[idx].FontSize)
		}
	}
	if largest <= 0 {
		return nil
	}
	hints := make([]float64, 0, len(r.Lines))
	for _, idx := range r.Lines {
		if idx >= 0 && idx < len(lines) {
			hints = append(hints, lines[idx].FontSize/largest)
		}
	}
	return hints
}

// Job 是一张图片的全部输入：区域、文本行与逐区域对齐的译文。
// Texts[i] 对应 Regions[i]；空字符串表示跳过该区域。
type Job struct {
	Name    string     `json:"name"`
	Regions []Region   `json:"regions"`
	Lines   []TextLine `json:"lines"`
	Texts   []string   `json:"texts"`
	// Unbound 记录译文占位符无法解析的区域下标及其路径。
	Unbound map[int][]string `json:"unbound,omitempty"`
}

// Result 保存全部区域的排版计划。
type Result struct {
	Plans []RegionPlan `json:"plans"`
}

// RegionPlan 是单个区域的排版结果：容量、字形位置与目标四边形。
// Skip 非空时表示该区域不渲染及其原因。
type RegionPlan struct {
	Index     int        `json:"index"`
	Text      string     `json:"text"`
	Direction Direction  `json:"direction"`
	FG        Color      `json:"fg"`
	BG        Color      `json:"bg"`
	Dst       geom.Quad  `json:"dst"`
	Capacity  Capacity   `json:"capacity"`
	Placement *Placement `json:"placement,omitempty"`
	Skip      string     `json:"skip,omitempty"`
}

// Skipped 报告该区域是否被跳过。
func (p RegionPlan) Skipped() bool { return p.Skip != "" }

// CanvasSize 返回暂存画布尺寸（放大后区域的 2 倍，用于容纳溢出的字形）。
func (p RegionPlan) CanvasSize() (int, int) {
	return p.Capacity.WorkingW * 2, p.Capacity.WorkingH * 2
}

// PlacedGlyph 是放置在暂存画布上的一个字形。
// X/Y 为字形步进框左上角（行顶）的画布坐标，Size 为该行字号（像素）。
type PlacedGlyph struct {
	Rune rune    `json:"rune"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Size int     `json:"size"`
}

// Placement 是一次排布的输出。
type Placement struct {
	Glyphs         []PlacedGlyph `json:"glyphs"`
	Lines          int           `json:"lines"`
	BlockW         float64       `json:"blockW"`
	BlockH         float64       `json:"blockH"`
	MaxGlyphHeight float64       `json:"maxGlyphHeight"`
}
