package geom

import (
	"math"
)

// 该文件定义各阶段共用的几何值类型：点、四边形与轴对齐包围盒（单位：像素）。

// Point 是图像坐标系中的二维点，原点在左上角，y 轴向下。
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub 返回 p - q。
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Dist 返回两点间的欧氏距离。
func (p Point) Dist(q Point) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

// Quad 是按顺序排列的四个顶点（检测出的文本框或目标多边形）。
// 顶点顺序需保持一致（通常为左上、右上、右下、左下），以便求解透视变换。
type Quad [4]Point

// Box 是轴对齐包围盒 (x, y, w, h)。
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Empty 报告包围盒面积是否为零。
func (b Box) Empty() bool { return b.W <= 0 || b.H <= 0 }

// NewQuad 从 8 个坐标值（x0 y0 x1 y1 ...）构造四边形。
func NewQuad(coords ...float64) (Quad, bool) {
	var q Quad
	if len(coords) != 8 {
		return q, false
	}
	for i := 0; i < 4; i++ {
		q[i] = Point{X: coords[2*i], Y: coords[2*i+1]}
	}
	return q, true
}

// RectQuad 返回矩形 (x, y, w, h) 的四个角，顺时针从左上开始。
func RectQuad(x, y, w, h float64) Quad {
	return Quad{
		{X: x, Y: y},
		{X: x + w, Y: y},
		{X: x + w, Y: y + h},
		{X: x, Y: y + h},
	}
}

// Points 以切片形式返回四个顶点。
func (q Quad) Points() []Point {
	return []Point{q[0], q[1], q[2], q[3]}
}

// Box 返回包含四边形的最小轴对齐包围盒（整数像素，左上向下取整、右下向上取整）。
func (q Quad) Box() Box {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range q {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	x0, y0 := int(math.Floor(minX)), int(math.Floor(minY))
	x1, y1 := int(math.Ceil(maxX)), int(math.Ceil(maxY))
	return Box{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// AspectRatio 返回包围盒的宽高比 w/h；高度为零时返回 0。
func (q Quad) AspectRatio() float64 {
	b := q.Box()
	if b.H == 0 {
		return 0
	}
	return float64(b.W) / float64(b.H)
}

// Area 使用鞋带公式计算有向面积的绝对值。
func (q Quad) Area() float64 {
	sum := 0.0
	for i := 0; i < 4; i++ {
		j := (i + 1) % 4
		sum += q[i].X*q[j].Y - q[j].X*q[i].Y
	}
	return math.Abs(sum) / 2
}

// Degenerate 报告四边形是否退化：面积为零或任意三个顶点共线。
func (q Quad) Degenerate() bool {
	if q.Area() < areaEpsilon {
		return true
	}
	return anyCollinear(q[:])
}

const areaEpsilon = 1e-6

// anyCollinear 检查点集中是否存在三点共线（含重合点）。
func anyCollinear(pts []Point) bool {
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			for k := j + 1; k < len(pts); k++ {
				a := pts[j].Sub(pts[i])
				b := pts[k].Sub(pts[i])
				if math.Abs(a.X*b.Y-a.Y*b.X) < areaEpsilon {
					return true
				}
			}
		}
	}
	return false
}
