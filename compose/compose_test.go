package compose

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/ByLCY/retype/geom"
)

func solid(w, h int, a uint8) *image.Alpha {
	img := image.NewAlpha(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = a
	}
	return img
}

func whiteImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

func TestNewScratchIsGrayWithEmptyMask(t *testing.T) {
	s := NewScratch(6, 4)
	if s.RGB.Bounds() != s.Mask.Bounds() || s.Bounds().Dx() != 6 || s.Bounds().Dy() != 4 {
		t.Fatalf("画布尺寸不一致: %v %v", s.RGB.Bounds(), s.Mask.Bounds())
	}
	if c := s.RGB.RGBAAt(3, 2); c.R != ScratchGray || c.G != ScratchGray || c.B != ScratchGray {
		t.Fatalf("底色应为灰色，实际 %+v", c)
	}
	if _, ok := BoundingRect(s.Mask); ok {
		t.Fatalf("新画布遮罩应为空")
	}
}

func TestPaintSaturatesAndClips(t *testing.T) {
	s := NewScratch(10, 10)
	cov := solid(4, 4, 200)
	s.Paint(cov, image.Pt(2, 2), color.RGBA{R: 255, A: 255})
	s.Paint(cov, image.Pt(2, 2), color.RGBA{R: 255, A: 255})
	if got := s.Mask.AlphaAt(3, 3).A; got != 255 {
		t.Fatalf("覆盖度应饱和到 255，实际 %d", got)
	}
	if got := s.Mask.AlphaAt(6, 6).A; got != 0 {
		t.Fatalf("贴图范围外不应有覆盖度，实际 %d", got)
	}
	// 部分超出画布
	s.Paint(cov, image.Pt(8, -2), color.RGBA{B: 255, A: 255})
	if got := s.Mask.AlphaAt(9, 0).A; got != 200 {
		t.Fatalf("裁剪后的贴图应写入画布内部分，实际 %d", got)
	}
}

func TestBoundingRect(t *testing.T) {
	mask := image.NewAlpha(image.Rect(0, 0, 50, 40))
	mask.SetAlpha(10, 5, color.Alpha{A: 1})
	mask.SetAlpha(30, 20, color.Alpha{A: 255})
	rect, ok := BoundingRect(mask)
	if !ok || rect != image.Rect(10, 5, 31, 21) {
		t.Fatalf("外接矩形错误: %v ok=%v", rect, ok)
	}
}

func TestFitExtendsToTargetAspect(t *testing.T) {
	mask := image.NewAlpha(image.Rect(0, 0, 400, 400))
	cov := solid(80, 40, 255)
	copyInto(mask, cov, image.Pt(100, 100))

	dst := geom.RectQuad(0, 0, 100, 100)
	f, err := Fit(mask, dst)
	if err != nil {
		t.Fatalf("Fit 失败: %v", err)
	}
	// 80x40 对 1:1 目标：h_ext = 80/2 - 40/2 = 20，外扩后高度 80
	if f.HExt != 20 || f.WExt != 0 {
		t.Fatalf("外扩量错误: w_ext=%g h_ext=%g", f.WExt, f.HExt)
	}
	if f.Margin != 2 {
		t.Fatalf("边距应为 round(0.05*40)=2，实际 %d", f.Margin)
	}
	if f.Src[0] != (geom.Point{X: 98, Y: 78}) || f.Src[2] != (geom.Point{X: 182, Y: 162}) {
		t.Fatalf("源四边形错误: %+v", f.Src)
	}
	for i, p := range f.Src {
		q, ok := f.Matrix.Apply(p)
		if !ok || q.Dist(dst[i]) > 1e-6 {
			t.Fatalf("角点 %d 应映射到 %+v，实际 %+v", i, dst[i], q)
		}
	}
}

func TestFitRoundsCornersBeforeClamping(t *testing.T) {
	mask := image.NewAlpha(image.Rect(0, 0, 400, 400))
	copyInto(mask, solid(31, 20, 255), image.Pt(100, 100))

	f, err := Fit(mask, geom.RectQuad(0, 0, 50, 50))
	if err != nil {
		t.Fatalf("Fit 失败: %v", err)
	}
	// h_ext = 31/2 - 20/2 = 5.5，边距 1：93.5 与 126.5 取偶得到 94 与 126
	if f.HExt != 5.5 || f.Margin != 1 {
		t.Fatalf("外扩量错误: h_ext=%g margin=%d", f.HExt, f.Margin)
	}
	want := geom.Quad{{X: 99, Y: 94}, {X: 132, Y: 94}, {X: 132, Y: 126}, {X: 99, Y: 126}}
	if f.Src != want {
		t.Fatalf("源四边形应为整数角点 %+v，实际 %+v", want, f.Src)
	}
}

func TestFitClampsToCanvas(t *testing.T) {
	mask := image.NewAlpha(image.Rect(0, 0, 60, 60))
	copyInto(mask, solid(20, 50, 255), image.Pt(0, 5))
	f, err := Fit(mask, geom.RectQuad(0, 0, 100, 50))
	if err != nil {
		t.Fatalf("Fit 失败: %v", err)
	}
	for _, p := range f.Src {
		if p.X < 0 || p.Y < 0 || p.X > 60 || p.Y > 60 {
			t.Fatalf("源四边形应限制在画布内: %+v", f.Src)
		}
	}
}

func TestFitSkippableErrors(t *testing.T) {
	if _, err := Fit(image.NewAlpha(image.Rect(0, 0, 10, 10)), geom.RectQuad(0, 0, 5, 5)); !errors.Is(err, ErrEmptyMask) {
		t.Fatalf("空遮罩应返回 ErrEmptyMask，实际 %v", err)
	}
	flat := geom.Quad{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 10, Y: 0}, {X: 15, Y: 0}}
	if _, err := Fit(solid(10, 10, 255), flat); !errors.Is(err, geom.ErrDegenerate) {
		t.Fatalf("退化目标应返回 ErrDegenerate，实际 %v", err)
	}
}

func TestCompositeEmptyMaskLeavesImageUnchanged(t *testing.T) {
	dst := whiteImage(16, 16)
	before := append([]byte(nil), dst.Pix...)
	s := NewScratch(8, 8)
	if err := Composite(dst, s, geom.Identity()); err != nil {
		t.Fatalf("Composite 失败: %v", err)
	}
	if !bytes.Equal(before, dst.Pix) {
		t.Fatalf("遮罩全零时输出应保持不变")
	}
}

func TestCompositeBlendsCoveredPixels(t *testing.T) {
	s := NewScratch(20, 20)
	s.Paint(solid(4, 4, 255), image.Pt(5, 5), color.RGBA{R: 255, A: 255})
	dst := whiteImage(20, 20)
	if err := Composite(dst, s, geom.Identity()); err != nil {
		t.Fatalf("Composite 失败: %v", err)
	}
	if c := dst.RGBAAt(6, 6); c.R != 255 || c.G != 0 || c.B != 0 {
		t.Fatalf("完全覆盖处应为文字颜色，实际 %+v", c)
	}
	if c := dst.RGBAAt(0, 0); c != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Fatalf("未覆盖处应保持原样，实际 %+v", c)
	}
}

func TestCompositeIsDeterministicAndBounded(t *testing.T) {
	s := NewScratch(64, 64)
	s.Paint(solid(30, 12, 180), image.Pt(10, 20), color.RGBA{R: 10, G: 200, B: 90, A: 255})
	f, err := Fit(s.Mask, geom.Quad{{X: 12, Y: 8}, {X: 70, Y: 14}, {X: 66, Y: 40}, {X: 9, Y: 33}})
	if err != nil {
		t.Fatalf("Fit 失败: %v", err)
	}
	a, b := whiteImage(80, 50), whiteImage(80, 50)
	if err := Composite(a, s, f.Matrix); err != nil {
		t.Fatalf("Composite 失败: %v", err)
	}
	if err := Composite(b, s, f.Matrix); err != nil {
		t.Fatalf("Composite 失败: %v", err)
	}
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Fatalf("相同输入应得到相同输出")
	}
	changed := 0
	for i := 0; i < len(a.Pix); i += 4 {
		if a.Pix[i+3] != 0xff {
			t.Fatalf("alpha 通道不应被修改")
		}
		if a.Pix[i] != 0xff || a.Pix[i+1] != 0xff || a.Pix[i+2] != 0xff {
			changed++
		}
	}
	if changed == 0 {
		t.Fatalf("文字应被合成到输出图上")
	}
}

func TestBlendClips(t *testing.T) {
	if got := blend(250, 300, 1); got != 255 {
		t.Fatalf("应截断到 255，实际 %d", got)
	}
	if got := blend(10, -50, 1); got != 0 {
		t.Fatalf("应截断到 0，实际 %d", got)
	}
	if got := blend(100, 200, 0.5); math.Abs(float64(got)-150) > 0 {
		t.Fatalf("半透明混合错误: %d", got)
	}
}

func copyInto(dst *image.Alpha, src *image.Alpha, at image.Point) {
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.SetAlpha(at.X+x, at.Y+y, src.AlphaAt(x, y))
		}
	}
}
