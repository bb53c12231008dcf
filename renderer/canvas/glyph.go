package canvasrenderer

import (
	"image"
	"math"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
)

// glyphPadding is the transparent border kept around every rasterized glyph so
// that antialiasing and the halo are never clipped.
const glyphPadding = 2

// glyph returns the coverage mask of ch at size pixels, dilated by halo pixels.
// Results are shared through the glyph cache.
func (r *Renderer) glyph(ch rune, size, halo int) (*Glyph, error) {
	font, err := r.fontKey()
	if err != nil {
		return nil, err
	}
	key := GlyphKey{Font: font, Size: size, Rune: ch, Halo: halo}
	return r.cache.GetOrCreate(key, func() (*Glyph, error) {
		return r.rasterize(ch, size, halo)
	})
}

func (r *Renderer) rasterize(ch rune, size, halo int) (*Glyph, error) {
	face, err := r.face(size)
	if err != nil {
		return nil, err
	}

	// canvas faces share shaping state, so glyph drawing is serialized
	r.drawMu.Lock()
	metrics := face.Metrics()
	advance := face.TextWidth(string(ch))
	pad := halo + glyphPadding
	w := math.Ceil(advance) + float64(2*pad)
	h := math.Ceil(metrics.Ascent+metrics.Descent) + float64(2*pad)
	if w < 1 {
		w = 1
	}
	c := canvas.New(w, h)
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV)
	ctx.DrawText(float64(pad), float64(pad)+metrics.Ascent, canvas.NewTextLine(face, string(ch), canvas.Left))
	img := rasterizer.Draw(c, canvas.DPMM(1.0), canvas.DefaultColorSpace)
	r.drawMu.Unlock()

	mask := coverage(img)
	if halo > 0 {
		mask = dilate(mask, halo)
	}
	return &Glyph{Mask: mask, Offset: image.Pt(-pad, -pad), Advance: advance}, nil
}

// coverage extracts the alpha channel of a rasterized glyph.
func coverage(img *image.RGBA) *image.Alpha {
	b := img.Bounds()
	out := image.NewAlpha(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Pix[out.PixOffset(x, y)] = img.Pix[img.PixOffset(b.Min.X+x, b.Min.Y+y)+3]
		}
	}
	return out
}

// dilate grows the mask by radius pixels using a circular max filter.
func dilate(src *image.Alpha, radius int) *image.Alpha {
	b := src.Rect
	out := image.NewAlpha(b)
	r2 := radius * radius
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var best uint8
			for dy := -radius; dy <= radius && best < 0xff; dy++ {
				sy := y + dy
				if sy < b.Min.Y || sy >= b.Max.Y {
					continue
				}
				for dx := -radius; dx <= radius; dx++ {
					if dx*dx+dy*dy > r2 {
						continue
					}
					sx := x + dx
					if sx < b.Min.X || sx >= b.Max.X {
						continue
					}
					if a := src.Pix[src.PixOffset(sx, sy)]; a > best {
						best = a
					}
				}
			}
			out.Pix[out.PixOffset(x, y)] = best
		}
	}
	return out
}
