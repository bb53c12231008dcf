package geom

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// ErrDegenerate 表示点集无法确定透视变换（共线、重合或数值奇异）。
var ErrDegenerate = errors.New("geom: degenerate point configuration")

// Matrix 是 3×3 的射影变换矩阵（行主序），作用于齐次坐标 (x, y, 1)。
type Matrix [9]float64

// Identity 返回单位矩阵。
func Identity() Matrix {
	return Matrix{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Apply 将点映射到目标坐标系；齐次分量接近零（点被映射到无穷远）时返回 false。
func (m Matrix) Apply(p Point) (Point, bool) {
	w := m[6]*p.X + m[7]*p.Y + m[8]
	if math.Abs(w) < 1e-12 {
		return Point{}, false
	}
	return Point{
		X: (m[0]*p.X + m[1]*p.Y + m[2]) / w,
		Y: (m[3]*p.X + m[4]*p.Y + m[5]) / w,
	}, true
}

// Mul 返回 m·n（先应用 n，再应用 m）。
func (m Matrix) Mul(n Matrix) Matrix {
	var prod mat.Dense
	prod.Mul(m.dense(), n.dense())
	return fromDense(&prod)
}

// Inverse 求逆矩阵；矩阵奇异或病态时返回 ErrDegenerate。
func (m Matrix) Inverse() (Matrix, error) {
	var inv mat.Dense
	if err := inv.Inverse(m.dense()); err != nil {
		return Matrix{}, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}
	out := fromDense(&inv)
	if !out.finite() {
		return Matrix{}, ErrDegenerate
	}
	return out, nil
}

func (m Matrix) dense() *mat.Dense {
	data := make([]float64, 9)
	copy(data, m[:])
	return mat.NewDense(3, 3, data)
}

func fromDense(d *mat.Dense) Matrix {
	var out Matrix
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = d.At(r, c)
		}
	}
	return out
}

// Normalize 将矩阵缩放到 m[8] == 1（若 m[8] 不为零）。
func (m Matrix) Normalize() Matrix {
	if math.Abs(m[8]) < 1e-15 {
		return m
	}
	s := m[8]
	for k := range m {
		m[k] /= s
	}
	return m
}

func (m Matrix) finite() bool {
	for _, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// SolveHomography 求解将 src 四个角精确映射到 dst 四个角的透视变换。
func SolveHomography(src, dst Quad) (Matrix, error) {
	if anyCollinear(src[:]) || anyCollinear(dst[:]) {
		return Matrix{}, ErrDegenerate
	}
	return leastSquares(src[:], dst[:])
}

// RANSAC 参数。种子固定，保证同样的输入得到同样的输出。
const (
	ransacMaxIterations = 2000
	ransacSeed          = 0x5eed
)

// FindHomography 以鲁棒方式估计 src→dst 的透视变换：
// 在随机 4 点样本上做 RANSAC，按重投影误差 threshold（像素）统计内点，
// 再用全部内点做最小二乘精化。恰好 4 对点时等价于精确解。
func FindHomography(src, dst []Point, threshold float64) (Matrix, error) {
	n := len(src)
	if n != len(dst) || n < 4 {
		return Matrix{}, ErrDegenerate
	}
	if n == 4 {
		var s, d Quad
		copy(s[:], src)
		copy(d[:], dst)
		return SolveHomography(s, d)
	}

	rng := rand.New(rand.NewSource(ransacSeed))
	var (
		best      Matrix
		bestCount = -1
		sample    [4]int
		sSrc      [4]Point
		sDst      [4]Point
	)
	for iter := 0; iter < ransacMaxIterations; iter++ {
		if !pickSample(rng, n, &sample) {
			continue
		}
		for k, idx := range sample {
			sSrc[k] = src[idx]
			sDst[k] = dst[idx]
		}
		if anyCollinear(sSrc[:]) || anyCollinear(sDst[:]) {
			continue
		}
		m, err := leastSquares(sSrc[:], sDst[:])
		if err != nil {
			continue
		}
		count := len(inliers(m, src, dst, threshold))
		if count > bestCount {
			best, bestCount = m, count
			if count == n {
				break
			}
		}
	}
	if bestCount < 4 {
		return Matrix{}, ErrDegenerate
	}

	idx := inliers(best, src, dst, threshold)
	inSrc := make([]Point, len(idx))
	inDst := make([]Point, len(idx))
	for k, i := range idx {
		inSrc[k] = src[i]
		inDst[k] = dst[i]
	}
	refined, err := leastSquares(inSrc, inDst)
	if err != nil {
		return best, nil
	}
	return refined, nil
}

func pickSample(rng *rand.Rand, n int, out *[4]int) bool {
	for k := 0; k < 4; k++ {
		for attempt := 0; ; attempt++ {
			if attempt > 32 {
				return false
			}
			v := rng.Intn(n)
			dup := false
			for j := 0; j < k; j++ {
				if out[j] == v {
					dup = true
					break
				}
			}
			if !dup {
				out[k] = v
				break
			}
		}
	}
	return true
}

// ReprojectionError 返回 m 作用于 p 后与 q 的距离；无法映射时返回 +Inf。
func ReprojectionError(m Matrix, p, q Point) float64 {
	mapped, ok := m.Apply(p)
	if !ok {
		return math.Inf(1)
	}
	return mapped.Dist(q)
}

func inliers(m Matrix, src, dst []Point, threshold float64) []int {
	var out []int
	for i := range src {
		if ReprojectionError(m, src[i], dst[i]) <= threshold {
			out = append(out, i)
		}
	}
	return out
}

// leastSquares 用归一化 DLT（h33 = 1）求解，点数为 4 时即为精确解。
func leastSquares(src, dst []Point) (Matrix, error) {
	if len(src) < 4 || len(src) != len(dst) {
		return Matrix{}, ErrDegenerate
	}
	ts, ns, err := normalizing(src)
	if err != nil {
		return Matrix{}, err
	}
	td, nd, err := normalizing(dst)
	if err != nil {
		return Matrix{}, err
	}

	// 每对点贡献两行：A h = b，h 为 h33 = 1 时的其余 8 个分量
	n := len(ns)
	a := mat.NewDense(2*n, 8, nil)
	rhs := mat.NewVecDense(2*n, nil)
	for i := range ns {
		x, y := ns[i].X, ns[i].Y
		u, v := nd[i].X, nd[i].Y
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -x * u, -y * u})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -x * v, -y * v})
		rhs.SetVec(2*i, u)
		rhs.SetVec(2*i+1, v)
	}
	var h mat.VecDense
	if err := h.SolveVec(a, rhs); err != nil {
		return Matrix{}, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}
	hn := Matrix{h.AtVec(0), h.AtVec(1), h.AtVec(2), h.AtVec(3), h.AtVec(4), h.AtVec(5), h.AtVec(6), h.AtVec(7), 1}

	tdInv, err := td.Inverse()
	if err != nil {
		return Matrix{}, err
	}
	m := tdInv.Mul(hn).Mul(ts).Normalize()
	if !m.finite() {
		return Matrix{}, ErrDegenerate
	}
	return m, nil
}

// normalizing 返回 Hartley 归一化矩阵（质心移到原点、平均距离缩放为 √2）及归一化后的点。
func normalizing(pts []Point) (Matrix, []Point, error) {
	cx, cy := 0.0, 0.0
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	cx /= float64(len(pts))
	cy /= float64(len(pts))
	mean := 0.0
	for _, p := range pts {
		mean += math.Hypot(p.X-cx, p.Y-cy)
	}
	mean /= float64(len(pts))
	if mean < 1e-12 {
		return Matrix{}, nil, ErrDegenerate
	}
	s := math.Sqrt2 / mean
	t := Matrix{s, 0, -s * cx, 0, s, -s * cy, 0, 0, 1}
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = Point{X: s * (p.X - cx), Y: s * (p.Y - cy)}
	}
	return t, out, nil
}
