package layout

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// 可跳过的区域级错误：仅该区域不渲染，其余区域继续。
var (
	ErrEmptyText = errors.New("译文为空")
	ErrEmptyBox  = errors.New("区域包围盒面积为零")
)

// Validate 检查调用方需保证的前置条件：译文与区域一一对应、文本行下标有效。
func (j *Job) Validate() error {
	if j == nil {
		return fmt.Errorf("任务为空")
	}
	if len(j.Texts) != len(j.Regions) {
		return fmt.Errorf("译文数量 %d 与区域数量 %d 不一致", len(j.Texts), len(j.Regions))
	}
	for i, r := range j.Regions {
		for _, idx := range r.Lines {
			if idx < 0 || idx >= len(j.Lines) {
				return fmt.Errorf("区域 %d 引用了不存在的文本行 %d", i, idx)
			}
		}
	}
	return nil
}

// Build 为每个区域求解容量并排布字形，区域顺序与输入一致。
func Build(job *Job, opts BuildOptions) (*Result, error) {
	if opts.Typesetter == nil {
		return nil, fmt.Errorf("layout: 缺少排版后端 Typesetter")
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	res := &Result{Plans: make([]RegionPlan, 0, len(job.Regions))}
	for i, region := range job.Regions {
		plan, err := planRegion(i, region, job, opts)
		if err != nil {
			return nil, fmt.Errorf("区域 %d 排版失败: %w", i, err)
		}
		res.Plans = append(res.Plans, plan)
	}
	return res, nil
}

func planRegion(index int, region Region, job *Job, opts BuildOptions) (RegionPlan, error) {
	text := job.Texts[index]
	flow := FlowFor(region.Direction, opts.ForceHorizontal)
	plan := RegionPlan{
		Index:     index,
		Text:      text,
		Direction: flow.Direction(),
		FG:        region.FG,
		BG:        region.BG,
		Dst:       region.Quad,
	}
	if text == "" {
		plan.Skip = ErrEmptyText.Error()
		return plan, nil
	}
	box := region.Quad.Box()
	if box.Empty() {
		plan.Skip = ErrEmptyBox.Error()
		return plan, nil
	}

	fontSize := region.FontSize(job.Lines)
	plan.Capacity = Solve(fontSize, box, utf8.RuneCountInString(text), opts.Magnification, opts.MaxEnlargeSteps)

	w, h := plan.Capacity.WorkingW, plan.Capacity.WorkingH
	in := FlowInput{
		Text:         text,
		Size:         plan.Capacity.WorkingFontSize,
		EnlargeRatio: plan.Capacity.EnlargeRatio,
		Hints:        region.lineHints(job.Lines),
		OriginX:      float64(w / 2),
		OriginY:      float64(h / 2),
		Width:        float64(w),
		Height:       float64(h),
		WordSpacing:  opts.WordSpacing,
		WordGap:      opts.WordGap,
	}
	placement, err := flow.Place(opts.Typesetter, in)
	if err != nil {
		return plan, err
	}
	plan.Placement = placement
	return plan, nil
}
