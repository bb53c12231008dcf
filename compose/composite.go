package compose

import (
	"image"
	"math"

	"github.com/ByLCY/retype/geom"
)

// Composite 将暂存画布经透视变换 m（暂存坐标 → 输出坐标）叠加到 dst 上。
//
// 对输出图中落在文字外接矩形投影范围内的每个像素做逆映射，双线性采样 RGB 与遮罩，
// 越界处按 0 处理；再以 out = out·(1−a) + rgb·a 混合并截断到 [0, 255]。
// 遮罩为零的像素保持不变。
func Composite(dst *image.RGBA, s *Scratch, m geom.Matrix) error {
	inv, err := m.Inverse()
	if err != nil {
		return err
	}
	ink, ok := BoundingRect(s.Mask)
	if !ok {
		return nil
	}
	// 双线性采样会让覆盖度向外扩散一个像素
	ink = ink.Inset(-1)
	corners := geom.RectQuad(float64(ink.Min.X), float64(ink.Min.Y), float64(ink.Dx()), float64(ink.Dy()))
	area := projectedBounds(corners, m).Intersect(dst.Rect)
	if area.Empty() {
		return nil
	}

	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			p, ok := inv.Apply(geom.Point{X: float64(x), Y: float64(y)})
			if !ok {
				continue
			}
			a := sampleAlpha(s.Mask, p.X, p.Y) / 0xff
			if a <= 0 {
				continue
			}
			r, g, b := sampleRGB(s.RGB, p.X, p.Y)
			i := dst.PixOffset(x, y)
			dst.Pix[i] = blend(dst.Pix[i], r, a)
			dst.Pix[i+1] = blend(dst.Pix[i+1], g, a)
			dst.Pix[i+2] = blend(dst.Pix[i+2], b, a)
		}
	}
	return nil
}

// projectedBounds 返回四边形映射后的整数包围盒（向外取整并多留 1 像素）。
func projectedBounds(src geom.Quad, m geom.Matrix) image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range src {
		q, ok := m.Apply(p)
		if !ok {
			return image.Rectangle{}
		}
		minX, minY = math.Min(minX, q.X), math.Min(minY, q.Y)
		maxX, maxY = math.Max(maxX, q.X), math.Max(maxY, q.Y)
	}
	const limit = 1 << 24
	if minX < -limit || minY < -limit || maxX > limit || maxY > limit {
		return image.Rectangle{}
	}
	return image.Rect(int(math.Floor(minX))-1, int(math.Floor(minY))-1, int(math.Ceil(maxX))+2, int(math.Ceil(maxY))+2)
}

func blend(out uint8, v, a float64) uint8 {
	f := float64(out)*(1-a) + v*a
	return uint8(math.Max(0, math.Min(255, math.Round(f))))
}

// bilinear 计算 (x, y) 处四邻域的插值权重；越界邻点由调用方按 0 取值。
func bilinear(x, y float64) (x0, y0 int, wx, wy float64) {
	fx, fy := math.Floor(x), math.Floor(y)
	return int(fx), int(fy), x - fx, y - fy
}

func sampleAlpha(img *image.Alpha, x, y float64) float64 {
	x0, y0, wx, wy := bilinear(x, y)
	at := func(px, py int) float64 {
		if !(image.Point{X: px, Y: py}).In(img.Rect) {
			return 0
		}
		return float64(img.Pix[img.PixOffset(px, py)])
	}
	top := at(x0, y0)*(1-wx) + at(x0+1, y0)*wx
	bottom := at(x0, y0+1)*(1-wx) + at(x0+1, y0+1)*wx
	return top*(1-wy) + bottom*wy
}

func sampleRGB(img *image.RGBA, x, y float64) (r, g, b float64) {
	x0, y0, wx, wy := bilinear(x, y)
	var acc [3]float64
	add := func(px, py int, w float64) {
		if w == 0 || !(image.Point{X: px, Y: py}).In(img.Rect) {
			return
		}
		i := img.PixOffset(px, py)
		acc[0] += float64(img.Pix[i]) * w
		acc[1] += float64(img.Pix[i+1]) * w
		acc[2] += float64(img.Pix[i+2]) * w
	}
	add(x0, y0, (1-wx)*(1-wy))
	add(x0+1, y0, wx*(1-wy))
	add(x0, y0+1, (1-wx)*wy)
	add(x0+1, y0+1, wx*wy)
	return acc[0], acc[1], acc[2]
}
