package viewer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfviewer/internal/config"
	"github.com/local/pdfviewer/internal/metrics"
	"github.com/local/pdfviewer/internal/pdfinfo"
	"github.com/local/pdfviewer/internal/render"
	"github.com/local/pdfviewer/internal/source"
	"github.com/local/pdfviewer/internal/store"
)

// InspectFunc establishes page geometry from raw bytes without rasterizing.
type InspectFunc func(data []byte) (*pdfinfo.Info, error)

// Dependencies wires a Manager.
type Dependencies struct {
	Loader   *source.Loader
	Opener   render.Opener
	Surfaces store.SurfaceStore
	Status   store.StatusStore
	// Inspect defaults to the pdfcpu-backed pdfinfo.Inspect.
	Inspect InspectFunc
}

// Manager owns the set of live viewing sessions.
type Manager struct {
	cfg  config.ViewerConfig
	deps Dependencies

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(cfg config.ViewerConfig, deps Dependencies) *Manager {
	if deps.Inspect == nil {
		deps.Inspect = pdfinfo.Inspect
	}
	return &Manager{cfg: cfg, deps: deps, sessions: make(map[string]*Session)}
}

// Open loads and validates the referenced source, opens the document, and
// creates a session with a placeholder for every page. Any failure here is
// fatal to the whole document: no placeholders exist afterwards and the
// loading status is always resolved to a terminal state.
func (m *Manager) Open(ctx context.Context, ref, password string) (*Session, error) {
	res, err := m.deps.Loader.Load(ctx, ref, password)
	if err != nil {
		metrics.SessionOpened("source_error")
		return nil, err
	}
	return m.open(ctx, res)
}

// OpenBytes creates a session from uploaded bytes.
func (m *Manager) OpenBytes(ctx context.Context, name string, data []byte, password string) (*Session, error) {
	res, err := m.deps.Loader.FromBytes(name, data, password)
	if err != nil {
		metrics.SessionOpened("source_error")
		return nil, err
	}
	return m.open(ctx, res)
}

func (m *Manager) open(ctx context.Context, res *source.Result) (*Session, error) {
	id := uuid.NewString()
	start := time.Now()
	_ = m.deps.Status.Set(ctx, id, store.SessionStatus{
		Status: "loading", Message: "opening document", Start: &start,
		Metadata: map[string]interface{}{"name": res.Name, "size": res.Size},
	})

	sess, err := m.buildSession(ctx, id, res)
	if err != nil {
		end := time.Now()
		_ = m.deps.Status.Set(ctx, id, store.SessionStatus{Status: "failed", Message: err.Error(), Start: &start, End: &end})
		metrics.SessionOpened("open_error")
		return nil, err
	}

	_ = m.deps.Status.Set(ctx, id, store.SessionStatus{
		Status: "ready", Message: "placeholders created", Start: &start,
		Metadata: map[string]interface{}{"name": res.Name, "pages": sess.Pages},
	})
	metrics.SessionOpened("ok")
	metrics.ObserveSourceBytes(res.Size)

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	log.Info().Str("session", id).Str("name", res.Name).Int("pages", sess.Pages).Msg("session opened")
	return sess, nil
}

func (m *Manager) buildSession(_ context.Context, id string, res *source.Result) (*Session, error) {
	doc, err := m.deps.Opener.Open(res.Data)
	if err != nil {
		return nil, err
	}

	pages := doc.PageCount()
	if pages <= 0 {
		_ = doc.Close()
		return nil, errors.New("document has no pages")
	}

	// Geometry without rasterizing: pdfcpu first, document handle fallback.
	ratios := make([]float64, pages)
	if info, ierr := m.deps.Inspect(res.Data); ierr == nil {
		if info.Pages != pages {
			log.Warn().Int("pdfcpu", info.Pages).Int("renderer", pages).Msg("page count mismatch, trusting renderer")
		}
		for i := 0; i < pages && i < len(info.Dims); i++ {
			ratios[i] = info.Dims[i].AspectRatio()
		}
	}
	for i := 0; i < pages; i++ {
		if ratios[i] <= 0 {
			if w, h, derr := doc.PageDims(i + 1); derr == nil && h > 0 {
				ratios[i] = w / h
			} else {
				ratios[i] = 612.0 / 792.0
			}
		}
	}

	return newSession(id, res.Name, m.cfg, doc, ratios, m.deps.Surfaces, m.deps.Status), nil
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Status returns the stored status for a session id, including sessions that
// failed to open or have been swept.
func (m *Manager) Status(ctx context.Context, id string) (store.SessionStatus, bool, error) {
	return m.deps.Status.Get(ctx, id)
}

// Close tears down a session: no further proximity events admit work.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
	return ok
}

// Sweep closes sessions idle since before the TTL cutoff.
func (m *Manager) Sweep() {
	cutoff := time.Now().Add(-m.cfg.SessionTTL)
	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.Idle(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	for _, s := range expired {
		log.Info().Str("session", s.ID).Msg("sweeping idle session")
		s.Close()
	}
}

// StartSweeper runs Sweep on an interval until ctx is done.
func (m *Manager) StartSweeper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()
}
