package design

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// RenderResult is one transcoded download body.
type RenderResult struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Transcoder converts a stored design into download formats. It is a pure
// function of the design and the format.
type Transcoder struct{}

// NewTranscoder creates a transcoder.
func NewTranscoder() *Transcoder {
	return &Transcoder{}
}

// Render produces the download body for a design. The vector format
// returns the stored SVG byte for byte; the raster format re-encodes it
// as PNG at its native dimensions.
func (t *Transcoder) Render(d *Design, format Format) (*RenderResult, error) {
	switch format {
	case FormatSVG:
		return &RenderResult{
			Data:        []byte(d.SVG),
			ContentType: "image/svg+xml",
			Filename:    "design.svg",
		}, nil
	case FormatPNG:
		data, err := rasterizeSVG(d.SVG)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTranscode, err)
		}
		return &RenderResult{
			Data:        data,
			ContentType: "image/png",
			Filename:    "design.png",
		}, nil
	}
	return nil, ErrUnsupportedFormat
}

// rasterizeSVG renders an SVG document to PNG at its viewBox dimensions.
func rasterizeSVG(svg string) ([]byte, error) {
	icon, err := oksvg.ReadIconStream(strings.NewReader(svg), oksvg.WarnErrorMode)
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}

	w := int(icon.ViewBox.W)
	h := int(icon.ViewBox.H)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("svg has no usable viewBox")
	}

	icon.SetTarget(0, 0, float64(w), float64(h))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
