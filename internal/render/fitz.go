package render

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"

	fitz "github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// FitzOpener opens documents with MuPDF via go-fitz.
type FitzOpener struct {
	// JPEGQuality for encoded surfaces; defaults to 85.
	JPEGQuality int
}

func (o FitzOpener) Open(data []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	q := o.JPEGQuality
	if q <= 0 {
		q = 85
	}
	return &fitzDocument{doc: doc, raw: data, quality: q}, nil
}

// fitzDocument keeps one handle for metadata queries and reopens the in-memory
// bytes per render, since a fitz.Document is not safe for concurrent use.
type fitzDocument struct {
	doc     *fitz.Document
	raw     []byte
	quality int
}

func (d *fitzDocument) PageCount() int { return d.doc.NumPage() }

func (d *fitzDocument) PageDims(id int) (float64, float64, error) {
	bounds, err := d.doc.Bound(id - 1)
	if err != nil {
		return 0, 0, fmt.Errorf("page %d bounds: %w", id, err)
	}
	return float64(bounds.Dx()), float64(bounds.Dy()), nil
}

func (d *fitzDocument) RenderPage(ctx context.Context, id int, scale float64) (*Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	worker, err := fitz.NewFromMemory(d.raw)
	if err != nil {
		return nil, fmt.Errorf("open render handle: %w", err)
	}
	defer worker.Close()

	img, err := worker.ImageDPI(id-1, DPI(scale))
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", id, err)
	}

	b := img.Bounds()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: d.quality}); err != nil {
		return nil, fmt.Errorf("encode page %d: %w", id, err)
	}

	log.Debug().
		Int("page", id).
		Int("width", b.Dx()).
		Int("height", b.Dy()).
		Int("jpeg_size", buf.Len()).
		Float64("scale", scale).
		Msg("rendered page")

	return &Surface{JPEG: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
}

func (d *fitzDocument) Close() error { return d.doc.Close() }
