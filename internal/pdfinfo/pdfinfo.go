package pdfinfo

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"
)

// Info describes document geometry established before any rasterization.
type Info struct {
	Pages int
	// Dims holds per-page width/height in points, indexed by page id - 1.
	Dims []Dim
}

// Dim is a page size in points.
type Dim struct {
	Width  float64
	Height float64
}

// AspectRatio returns width/height, the value placeholders are sized with.
func (d Dim) AspectRatio() float64 {
	if d.Height <= 0 {
		return 0
	}
	return d.Width / d.Height
}

// Inspect parses validated PDF bytes with pdfcpu and returns page count and
// per-page dimensions. A parse failure here is the document-open error class:
// fatal to the whole document, before any placeholder exists.
func Inspect(data []byte) (*Info, error) {
	rs := bytes.NewReader(data)
	n, err := api.PageCount(rs, nil)
	if err != nil {
		return nil, fmt.Errorf("page count: %w", err)
	}
	if n <= 0 {
		return nil, fmt.Errorf("document has no pages")
	}

	if _, err := rs.Seek(0, 0); err != nil {
		return nil, err
	}
	pd, err := api.PageDims(rs, nil)
	if err != nil {
		return nil, fmt.Errorf("page dims: %w", err)
	}

	dims := make([]Dim, n)
	for i := 0; i < n; i++ {
		if i < len(pd) {
			dims[i] = Dim{Width: pd[i].Width, Height: pd[i].Height}
		} else {
			// US Letter fallback keeps the placeholder usable.
			dims[i] = Dim{Width: 612, Height: 792}
		}
	}

	log.Debug().Int("pages", n).Msg("inspected document geometry")
	return &Info{Pages: n, Dims: dims}, nil
}
