package canvasrenderer

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tdewolff/canvas"
	"golang.org/x/sync/errgroup"

	"github.com/ByLCY/retype/compose"
	"github.com/ByLCY/retype/fonts"
	"github.com/ByLCY/retype/geom"
	"github.com/ByLCY/retype/layout"
	"github.com/ByLCY/retype/renderer"
)

// DefaultHaloRatio is the background halo radius relative to the glyph size.
const DefaultHaloRatio = 0.07

// Renderer typesets glyphs with github.com/tdewolff/canvas and composites
// every region of a layout result onto the output image.
type Renderer struct {
	baseDir   string
	fontSrc   string
	fontStyle canvas.FontStyle
	workers   int
	haloRatio float64
	log       logrus.FieldLogger
	cache     *GlyphCache

	// injected resources
	fontBlobs map[string][]byte // by unique name

	fontMu         sync.Mutex
	family         *canvas.FontFamily
	familyKey      string
	faces          map[int]*canvas.FontFace
	fallbackFamily *canvas.FontFamily

	drawMu sync.Mutex
}

var (
	_ renderer.Renderer    = (*Renderer)(nil)
	_ layout.Typesetter    = (*Renderer)(nil)
	_ layout.GlyphCoverage = (*Renderer)(nil)
)

// Options configures the canvas renderer.
type Options struct {
	BaseDir string
	// Font is the font source: embed:<name>, built-in:<name> or a file path.
	Font  string
	Style string
	Fonts map[string]Resource // built-in fonts accessible via built-in:<name>
	// Workers bounds the number of regions painted concurrently; <= 0 means 1.
	Workers int
	// HaloRatio sets the background halo radius as a fraction of the glyph size;
	// zero uses DefaultHaloRatio and a negative value disables the halo.
	HaloRatio float64
	Logger    logrus.FieldLogger
	// Cache defaults to the process-wide SharedCache.
	Cache *GlyphCache
}

// Resource can be provided either by Bytes or by Path.
type Resource struct {
	Bytes []byte
	Path  string
}

// NewRendererWithOptions creates a renderer with injected resources and optional baseDir.
func NewRendererWithOptions(opts Options) *Renderer {
	r := &Renderer{
		baseDir:   opts.BaseDir,
		fontSrc:   opts.Font,
		fontStyle: parseFontStyle(opts.Style),
		workers:   opts.Workers,
		haloRatio: opts.HaloRatio,
		log:       opts.Logger,
		cache:     opts.Cache,
		fontBlobs: map[string][]byte{},
		faces:     map[int]*canvas.FontFace{},
	}
	if r.fontSrc == "" {
		r.fontSrc = "embed:" + fonts.Default
	}
	if r.workers <= 0 {
		r.workers = 1
	}
	if r.haloRatio == 0 {
		r.haloRatio = DefaultHaloRatio
	}
	if r.log == nil {
		r.log = logrus.StandardLogger()
	}
	if r.cache == nil {
		r.cache = SharedCache()
	}
	for name, res := range opts.Fonts {
		if name == "" {
			continue
		}
		if len(res.Bytes) > 0 {
			r.fontBlobs[name] = res.Bytes
			continue
		}
		if res.Path != "" {
			data, _ := os.ReadFile(res.Path) // ignore error here; will be caught when actually used
			if len(data) > 0 {
				r.fontBlobs[name] = data
			}
		}
	}
	return r
}

// regionOutput is the result of painting and fitting one region off the main path.
type regionOutput struct {
	scratch *compose.Scratch
	fit     compose.Fitting
	err     error
}

// Render paints every region plan onto dst. Regions are painted and fitted by up
// to Workers goroutines in batches; compositing happens on the calling goroutine
// in region order, so the output does not depend on the worker count.
func (r *Renderer) Render(dst *image.RGBA, result *layout.Result) (renderer.Report, error) {
	var report renderer.Report
	if dst == nil {
		return report, fmt.Errorf("输出图像为空")
	}
	if result == nil {
		return report, fmt.Errorf("渲染结果为空")
	}

	plans := result.Plans
	for start := 0; start < len(plans); start += r.workers {
		end := min(start+r.workers, len(plans))
		outs, err := prepareBatch(plans[start:end], r.prepare)
		if err != nil {
			return report, err
		}

		for i := start; i < end; i++ {
			plan := plans[i]
			entry := r.log.WithField("region", plan.Index)
			if plan.Skipped() {
				entry.WithField("reason", plan.Skip).Warn("跳过区域")
				report.Add(plan.Index, plan.Skip)
				continue
			}
			out := outs[i-start]
			err = out.err
			if err == nil {
				err = compose.Composite(dst, out.scratch, out.fit.Matrix)
			}
			if err != nil {
				if !skippable(err) {
					return report, fmt.Errorf("区域 %d 渲染失败: %w", plan.Index, err)
				}
				entry.WithError(err).Warn("跳过区域")
				report.Add(plan.Index, err.Error())
				continue
			}
			if plan.Capacity.Saturated {
				entry.WithField("steps", plan.Capacity.Steps).Debug("容量求解达到放大上限")
			}
			report.Rendered++
		}
	}
	return report, nil
}

// prepareBatch runs prepare for every plan that is not skipped, one goroutine per
// plan. Skippable failures stay in the outputs; any other failure is returned.
func prepareBatch(plans []layout.RegionPlan, prepare func(layout.RegionPlan) regionOutput) ([]regionOutput, error) {
	outs := make([]regionOutput, len(plans))
	var g errgroup.Group
	for i, plan := range plans {
		if plan.Skipped() {
			continue
		}
		g.Go(func() error {
			outs[i] = prepare(plan)
			if err := outs[i].err; err != nil && !skippable(err) {
				return fmt.Errorf("区域 %d 渲染失败: %w", plan.Index, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outs, nil
}

func skippable(err error) bool {
	return errors.Is(err, compose.ErrEmptyMask) || errors.Is(err, geom.ErrDegenerate)
}

// prepare draws the glyphs of one plan onto a fresh scratch canvas and fits the
// result onto the destination quad.
func (r *Renderer) prepare(plan layout.RegionPlan) regionOutput {
	w, h := plan.CanvasSize()
	s := compose.NewScratch(w, h)
	if plan.Placement != nil {
		if err := r.paint(s, plan); err != nil {
			return regionOutput{err: err}
		}
	}
	fit, err := compose.Fit(s.Mask, plan.Dst)
	if err != nil {
		return regionOutput{err: err}
	}
	return regionOutput{scratch: s, fit: fit}
}

// paint draws the background halo of every glyph first and the foreground on top,
// so a halo never covers a neighbouring glyph.
func (r *Renderer) paint(s *compose.Scratch, plan layout.RegionPlan) error {
	fg := toRGBA(plan.FG)
	bg := toRGBA(plan.BG)
	glyphs := plan.Placement.Glyphs

	if r.haloRatio > 0 && plan.BG != plan.FG {
		for _, pg := range glyphs {
			if isBlank(pg.Rune) {
				continue
			}
			halo := max(1, int(math.Round(float64(pg.Size)*r.haloRatio)))
			g, err := r.glyph(pg.Rune, pg.Size, halo)
			if err != nil {
				return err
			}
			s.Paint(g.Mask, glyphOrigin(pg, g), bg)
		}
	}
	for _, pg := range glyphs {
		if isBlank(pg.Rune) {
			continue
		}
		g, err := r.glyph(pg.Rune, pg.Size, 0)
		if err != nil {
			return err
		}
		s.Paint(g.Mask, glyphOrigin(pg, g), fg)
	}
	return nil
}

func glyphOrigin(pg layout.PlacedGlyph, g *Glyph) image.Point {
	return image.Pt(int(math.Round(pg.X))+g.Offset.X, int(math.Round(pg.Y))+g.Offset.Y)
}

func isBlank(ch rune) bool {
	return ch == ' ' || ch == '\t' || ch == '　'
}

// TextWidth implements layout.Typesetter; size and the result are in pixels.
func (r *Renderer) TextWidth(text string, size int) (float64, error) {
	face, err := r.face(size)
	if err != nil {
		return 0, err
	}
	r.drawMu.Lock()
	defer r.drawMu.Unlock()
	return face.TextWidth(text), nil
}

// Metrics implements layout.Typesetter; values are in pixels.
func (r *Renderer) Metrics(size int) (layout.Metrics, error) {
	face, err := r.face(size)
	if err != nil {
		return layout.Metrics{}, err
	}
	r.drawMu.Lock()
	m := face.Metrics()
	r.drawMu.Unlock()
	return layout.Metrics{Ascent: m.Ascent, Descent: m.Descent, LineHeight: m.LineHeight}, nil
}

// HasGlyph reports whether the loaded font maps ch to a real glyph rather than .notdef.
func (r *Renderer) HasGlyph(ch rune) bool {
	face, err := r.face(1)
	if err != nil || face.Font == nil || face.Font.SFNT == nil {
		return false
	}
	r.drawMu.Lock()
	defer r.drawMu.Unlock()
	return face.Font.GlyphIndex(ch) != 0
}

// face returns the font face for a pixel size. One pixel maps to one millimetre
// on the canvas, so the face size in points is size * MmToPt.
func (r *Renderer) face(size int) (*canvas.FontFace, error) {
	if size < 1 {
		size = 1
	}
	family, err := r.ensureFontFamily()
	if err != nil {
		return nil, err
	}
	r.fontMu.Lock()
	defer r.fontMu.Unlock()
	if face, ok := r.faces[size]; ok {
		return face, nil
	}
	face := family.Face(layout.PxToPt(float64(size)), color.Black, r.fontStyle, canvas.FontNormal)
	r.faces[size] = face
	return face, nil
}

// fontKey identifies the loaded family in glyph cache keys.
func (r *Renderer) fontKey() (string, error) {
	if _, err := r.ensureFontFamily(); err != nil {
		return "", err
	}
	r.fontMu.Lock()
	defer r.fontMu.Unlock()
	return r.familyKey, nil
}

func (r *Renderer) ensureFontFamily() (*canvas.FontFamily, error) {
	r.fontMu.Lock()
	defer r.fontMu.Unlock()

	if r.family != nil {
		return r.family, nil
	}

	family := canvas.NewFontFamily("retype")
	data, err := r.loadFontBytes(r.fontSrc)
	if err == nil {
		err = family.LoadFont(data, 0, r.fontStyle)
	}
	if err != nil {
		r.log.WithError(err).WithField("font", r.fontSrc).Warn("字体加载失败，使用内置字体")
		fallback, fbErr := r.fallback()
		if fbErr != nil {
			return nil, fmt.Errorf("加载字体 %s 失败: %w", r.fontSrc, err)
		}
		r.family = fallback
		r.fontStyle = canvas.FontRegular
		r.familyKey = "embed:" + fonts.Default
		return fallback, nil
	}
	r.family = family
	r.familyKey = fmt.Sprintf("%s|%d", r.fontSrc, r.fontStyle)
	return family, nil
}

func (r *Renderer) loadFontBytes(src string) ([]byte, error) {
	if src == "" {
		return nil, fmt.Errorf("字体缺少 src")
	}
	if strings.HasPrefix(src, "built-in:") || strings.HasPrefix(src, "builtin:") {
		name := strings.TrimPrefix(strings.TrimPrefix(src, "built-in:"), "builtin:")
		if blob, ok := r.fontBlobs[name]; ok {
			return blob, nil
		}
		return nil, fmt.Errorf("找不到内置字体资源 built-in:%s", name)
	}
	if strings.HasPrefix(src, "embed:") {
		return fonts.Load(src)
	}
	path := src
	if !filepath.IsAbs(path) && r.baseDir != "" {
		path = filepath.Join(r.baseDir, path)
	}
	return os.ReadFile(path)
}

// fallback is called with fontMu held.
func (r *Renderer) fallback() (*canvas.FontFamily, error) {
	if r.fallbackFamily != nil {
		return r.fallbackFamily, nil
	}
	data, err := fonts.Load(fonts.Default)
	if err != nil {
		return nil, err
	}
	family := canvas.NewFontFamily("retype-fallback")
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, err
	}
	r.fallbackFamily = family
	return family, nil
}

func parseFontStyle(style string) canvas.FontStyle {
	if style == "" {
		return canvas.FontRegular
	}
	s := strings.ToLower(style)
	result := canvas.FontRegular
	switch {
	case strings.Contains(s, "black"):
		result = canvas.FontBlack
	case strings.Contains(s, "extrabold"):
		result = canvas.FontExtraBold
	case strings.Contains(s, "semibold"), strings.Contains(s, "demibold"):
		result = canvas.FontSemiBold
	case strings.Contains(s, "bold"):
		result = canvas.FontBold
	case strings.Contains(s, "medium"):
		result = canvas.FontMedium
	case strings.Contains(s, "light"):
		result = canvas.FontLight
	}
	if strings.Contains(s, "italic") || strings.Contains(s, "oblique") {
		result |= canvas.FontItalic
	}
	return result
}

func toRGBA(c layout.Color) color.RGBA {
	return color.RGBA{R: clampByte(c.R), G: clampByte(c.G), B: clampByte(c.B), A: 0xff}
}

func clampByte(v int) uint8 {
	return uint8(max(0, min(255, v)))
}
