package renderer

import (
	"image"

	"github.com/ByLCY/retype/layout"
)

// Renderer 将排版结果逐区域合成到输出图像上。
// 单个区域的失败（空遮罩、退化变换等）只会跳过该区域并记录在 Report 中，
// 返回 error 仅表示整张图无法继续处理。
type Renderer interface {
	Render(dst *image.RGBA, result *layout.Result) (Report, error)
}

// Skip 记录一个被跳过的区域及原因。
type Skip struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Report 汇总一次渲染的结果。
type Report struct {
	Rendered int    `json:"rendered"`
	Skipped  []Skip `json:"skipped,omitempty"`
}

// Add 追加一条跳过记录。
func (r *Report) Add(index int, reason string) {
	r.Skipped = append(r.Skipped, Skip{Index: index, Reason: reason})
}
