package compose

import (
	"errors"
	"image"
	"math"

	"github.com/ByLCY/retype/geom"
)

// ErrEmptyMask 表示暂存画布上没有任何覆盖度，区域无法映射。
var ErrEmptyMask = errors.New("compose: 文字遮罩为空")

// RansacThreshold 为估计透视变换时的重投影误差容限（像素）。
const RansacThreshold = 5.0

// marginRatio 为源四边形外扩边距占包围矩形短边的比例。
const marginRatio = 0.05

// Fitting 是形状拟合的结果：暂存画布上的源四边形以及映射到目标四边形的变换。
type Fitting struct {
	Src    geom.Quad
	Rect   image.Rectangle
	WExt   float64
	HExt   float64
	Margin int
	Matrix geom.Matrix
}

// BoundingRect 返回遮罩中覆盖度非零像素的最小外接矩形；遮罩全零时 ok 为 false。
func BoundingRect(mask *image.Alpha) (rect image.Rectangle, ok bool) {
	if mask == nil {
		return image.Rectangle{}, false
	}
	b := mask.Rect
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := mask.PixOffset(b.Min.X, y)
		row := mask.Pix[off : off+b.Dx()]
		for i, a := range row {
			if a == 0 {
				continue
			}
			x := b.Min.X + i
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < minX || maxY < minY {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// Fit 求出将遮罩中的文字映射到目标四边形 dst 的透视变换。
//
// 先取文字外接矩形，沿较短方向对称外扩，使其宽高比与 dst 一致；
// 再四周加上短边 5% 的边距，角点取整后限制在画布范围内。
func Fit(mask *image.Alpha, dst geom.Quad) (Fitting, error) {
	var f Fitting
	rect, ok := BoundingRect(mask)
	if !ok {
		return f, ErrEmptyMask
	}
	if dst.Degenerate() {
		return f, geom.ErrDegenerate
	}
	f.Rect = rect

	x, y := float64(rect.Min.X), float64(rect.Min.Y)
	w, h := float64(rect.Dx()), float64(rect.Dy())
	ratio := dst.AspectRatio()
	if ratio <= 0 {
		return f, geom.ErrDegenerate
	}
	if w/h > ratio {
		f.HExt = w/(2*ratio) - h/2
	} else {
		f.WExt = (h*ratio - w) / 2
	}
	f.Margin = int(math.RoundToEven(marginRatio * math.Min(w, h)))
	m := float64(f.Margin)

	cw, ch := float64(mask.Rect.Max.X), float64(mask.Rect.Max.Y)
	x0 := snap(x-f.WExt-m, cw)
	x1 := snap(x+w+f.WExt+m, cw)
	y0 := snap(y-f.HExt-m, ch)
	y1 := snap(y+h+f.HExt+m, ch)
	f.Src = geom.Quad{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
	if f.Src.Degenerate() {
		return f, geom.ErrDegenerate
	}

	mat, err := geom.FindHomography(f.Src.Points(), dst.Points(), RansacThreshold)
	if err != nil {
		return f, err
	}
	f.Matrix = mat
	return f, nil
}

// snap 将角点坐标四舍六入五成双到整数像素，再限制在 [0, hi]。
func snap(v, hi float64) float64 {
	return math.Max(0, math.Min(hi, math.RoundToEven(v)))
}
