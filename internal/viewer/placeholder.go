package viewer

import "fmt"

// State is a placeholder's lifecycle position. Transitions run one way:
// pending → rendering → rendered, or pending → rendering → failed.
type State string

const (
	StatePending   State = "pending"
	StateRendering State = "rendering"
	StateRendered  State = "rendered"
	StateFailed    State = "failed"
)

// Placeholder is the per-page record backing one layout slot. It is created
// before any render is admitted so the slot's aspect ratio is stable and
// out-of-order completions have somewhere to land.
type Placeholder struct {
	ID int `json:"id"`
	// AspectRatio is width/height in page points, used to size the slot
	// before any raster exists.
	AspectRatio float64 `json:"aspect_ratio"`
	State       State   `json:"state"`
	// Error carries the inline message for a failed page.
	Error string `json:"error,omitempty"`
	// Width/Height of the rendered surface, zero until rendered.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// transition moves the placeholder forward. Backward or repeated moves are
// rejected so a settled page can never revert.
func (p *Placeholder) transition(to State) error {
	ok := false
	switch to {
	case StateRendering:
		ok = p.State == StatePending
	case StateRendered, StateFailed:
		ok = p.State == StateRendering
	}
	if !ok {
		return fmt.Errorf("page %d: invalid transition %s -> %s", p.ID, p.State, to)
	}
	p.State = to
	return nil
}
