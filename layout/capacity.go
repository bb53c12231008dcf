package layout

import (
	"math"

	"github.com/ByLCY/retype/geom"
)

const (
	// LinePitch 近似行距（含行间空白）与字号之比，容量估算与排布共用。
	LinePitch = 1.3
	// enlargeStep 为容量不足时每次放大的倍数。
	enlargeStep = 1.1
)

// Capacity 是容量求解的结果。
type Capacity struct {
	FontSize        int     `json:"fontSize"`
	WorkingFontSize int     `json:"workingFontSize"`
	EnlargeRatio    float64 `json:"enlargeRatio"`
	WorkingW        int     `json:"workingW"`
	WorkingH        int     `json:"workingH"`
	Rows            int     `json:"rows"`
	Cols            int     `json:"cols"`
	Steps           int     `json:"steps"`
	Saturated       bool    `json:"saturated,omitempty"`
}

// NextPowerOf2 返回不小于 n 的最小 2 的幂；n <= 1 时返回 1。
func NextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Solve 计算工作字号与放大比例，使放大后的区域足以容纳 textLen 个字符。
//
// 工作字号取 fontSize 的下一个 2 的幂再乘以 magnification，便于按字号缓存字形。
// 容量估算为 rows*cols，其中行/列数按 LinePitch 倍字号计算；不足时放大比例乘 1.1 重试，
// 最多 maxSteps 次，超出后以最后一次结果返回并标记 Saturated。
func Solve(fontSize int, box geom.Box, textLen, magnification, maxSteps int) Capacity {
	if fontSize < 1 {
		fontSize = 1
	}
	if magnification < 1 {
		magnification = 1
	}
	if maxSteps <= 0 {
		maxSteps = DefaultMaxEnlargeSteps
	}
	working := NextPowerOf2(fontSize) * magnification
	c := Capacity{
		FontSize:        fontSize,
		WorkingFontSize: working,
		EnlargeRatio:    float64(working) / float64(fontSize),
	}
	pitch := float64(working) * LinePitch
	for {
		c.WorkingW = int(math.RoundToEven(c.EnlargeRatio * float64(box.W)))
		c.WorkingH = int(math.RoundToEven(c.EnlargeRatio * float64(box.H)))
		c.Rows = int(math.Floor(float64(c.WorkingH) / pitch))
		c.Cols = int(math.Floor(float64(c.WorkingW) / pitch))
		if c.Rows*c.Cols >= textLen {
			return c
		}
		if c.Steps >= maxSteps {
			c.Saturated = true
			return c
		}
		c.EnlargeRatio *= enlargeStep
		c.Steps++
	}
}
