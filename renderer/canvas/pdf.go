package canvasrenderer

import (
	"bytes"
	"fmt"
	"image"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
)

// EncodePDF wraps img in a single-page PDF whose page measures one millimetre per pixel.
func EncodePDF(img image.Image, title string) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("输出图像为空")
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("输出图像尺寸为零")
	}
	w, h := float64(b.Dx()), float64(b.Dy())

	c := canvas.New(w, h)
	ctx := canvas.NewContext(c)
	ctx.DrawImage(0, 0, img, canvas.DPMM(1.0))

	var buf bytes.Buffer
	writer := pdf.New(&buf, w, h, nil)
	writer.SetInfo(title, "", "", "", "retype")
	c.RenderTo(writer)
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}
