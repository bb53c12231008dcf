package compose

import (
	"image"
	"image/color"
)

// ScratchGray 为暂存画布的底色，遮罩为零处的颜色不会进入输出。
const ScratchGray = 127

// Scratch 是单个区域的暂存画布：RGB 保存文字颜色，Mask 保存覆盖度。
// 两者尺寸一致，为放大后区域的 2 倍，以容纳超出区域的字形。
type Scratch struct {
	RGB  *image.RGBA
	Mask *image.Alpha
}

// NewScratch 创建 w×h 的暂存画布，RGB 以灰色填充，遮罩全零。
func NewScratch(w, h int) *Scratch {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	rect := image.Rect(0, 0, w, h)
	s := &Scratch{
		RGB:  image.NewRGBA(rect),
		Mask: image.NewAlpha(rect),
	}
	pix := s.RGB.Pix
	for i := 0; i < len(pix); i += 4 {
		pix[i] = ScratchGray
		pix[i+1] = ScratchGray
		pix[i+2] = ScratchGray
		pix[i+3] = 0xff
	}
	return s
}

// Bounds 返回画布范围。
func (s *Scratch) Bounds() image.Rectangle { return s.Mask.Rect }

// Paint 将一个字形的覆盖度贴到 at 处：遮罩按饱和加法累加（上限 255），
// 颜色按覆盖度与已有颜色混合。超出画布的部分被裁掉。
func (s *Scratch) Paint(coverage *image.Alpha, at image.Point, c color.RGBA) {
	if coverage == nil {
		return
	}
	src := coverage.Rect
	dst := src.Sub(src.Min).Add(at).Intersect(s.Mask.Rect)
	if dst.Empty() {
		return
	}
	for y := dst.Min.Y; y < dst.Max.Y; y++ {
		sy := y - at.Y + src.Min.Y
		for x := dst.Min.X; x < dst.Max.X; x++ {
			sx := x - at.X + src.Min.X
			a := coverage.Pix[coverage.PixOffset(sx, sy)]
			if a == 0 {
				continue
			}
			mi := s.Mask.PixOffset(x, y)
			sum := uint16(s.Mask.Pix[mi]) + uint16(a)
			if sum > 0xff {
				sum = 0xff
			}
			s.Mask.Pix[mi] = uint8(sum)

			pi := s.RGB.PixOffset(x, y)
			s.RGB.Pix[pi] = mix(s.RGB.Pix[pi], c.R, a)
			s.RGB.Pix[pi+1] = mix(s.RGB.Pix[pi+1], c.G, a)
			s.RGB.Pix[pi+2] = mix(s.RGB.Pix[pi+2], c.B, a)
		}
	}
}

func mix(under, over, a uint8) uint8 {
	v := (uint32(under)*uint32(0xff-a) + uint32(over)*uint32(a) + 0x7f) / 0xff
	return uint8(v)
}
