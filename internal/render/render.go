package render

import (
	"context"
	"encoding/base64"
)

// Page identifiers are 1-indexed and stable for the document's lifetime.

// Surface is a rasterized page.
type Surface struct {
	// JPEG holds the encoded raster.
	JPEG   []byte
	Width  int
	Height int
}

// DataURI returns the surface as an inline image source.
func (s *Surface) DataURI() string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(s.JPEG)
}

// Document abstracts an opened document for page rendering. Any library
// satisfying this capability set is substitutable for the MuPDF backend.
type Document interface {
	// PageCount returns the number of pages.
	PageCount() int
	// PageDims returns the width and height of page id in points (72dpi units).
	PageDims(id int) (w, h float64, err error)
	// RenderPage rasterizes page id at the given scale (1.0 = 72dpi).
	RenderPage(ctx context.Context, id int, scale float64) (*Surface, error)
	// Close releases the document. In-flight renders hold their own handles.
	Close() error
}

// Opener opens validated document bytes.
type Opener interface {
	Open(data []byte) (Document, error)
}

// DPI converts a render scale into dots per inch.
func DPI(scale float64) float64 {
	if scale <= 0 {
		scale = 1.5
	}
	return 72 * scale
}
