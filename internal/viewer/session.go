package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfviewer/internal/config"
	"github.com/local/pdfviewer/internal/metrics"
	"github.com/local/pdfviewer/internal/render"
	"github.com/local/pdfviewer/internal/scheduler"
	"github.com/local/pdfviewer/internal/store"
)

var (
	ErrPageOutOfRange = errors.New("page out of range")
	ErrSessionClosed  = errors.New("session closed")
)

// Session is one open document: N placeholders, a scheduler, and the opened
// document handle. Placeholders exist for every page before any render is
// admitted.
type Session struct {
	ID      string
	Name    string
	Pages   int
	Created time.Time

	cfg      config.ViewerConfig
	doc      render.Document
	surfaces store.SurfaceStore
	status   store.StatusStore
	sched    *scheduler.Scheduler
	cancel   context.CancelFunc

	mu           sync.RWMutex
	placeholders []*Placeholder
	closed       bool
	lastTouch    time.Time
}

func newSession(id, name string, cfg config.ViewerConfig, doc render.Document, dims []float64, surfaces store.SurfaceStore, status store.StatusStore) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	s := &Session{
		ID:        id,
		Name:      name,
		Pages:     len(dims),
		Created:   now,
		cfg:       cfg,
		doc:       doc,
		surfaces:  surfaces,
		status:    status,
		cancel:    cancel,
		lastTouch: now,
	}
	s.placeholders = make([]*Placeholder, len(dims))
	for i := range dims {
		s.placeholders[i] = &Placeholder{ID: i + 1, AspectRatio: dims[i], State: StatePending}
	}
	s.sched = scheduler.New(ctx, scheduler.Config{
		Limit:     cfg.Concurrency,
		Render:    s.renderPage,
		OnEnqueue: func(int) { metrics.AddQueueDepth(1) },
		OnStart: func(pageID int) {
			metrics.AddQueueDepth(-1)
			metrics.IncInflight()
			s.markRendering(pageID)
		},
		OnSettle: s.onSettle,
	})
	return s
}

// Near records a proximity notification for pageID. Repeated notifications
// for the same page are no-ops.
func (s *Session) Near(pageID int) error {
	if pageID < 1 || pageID > s.Pages {
		return fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, pageID, s.Pages)
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.lastTouch = time.Now()
	s.mu.Unlock()

	s.sched.Enqueue(pageID)
	return nil
}

// renderPage is the scheduler's render function: rasterize, cache the surface.
func (s *Session) renderPage(ctx context.Context, pageID int) error {
	start := time.Now()
	surf, err := s.doc.RenderPage(ctx, pageID, s.cfg.RenderScale)
	if err != nil {
		metrics.ObserveRender("failed", time.Since(start))
		log.Warn().Err(err).Str("session", s.ID).Int("page", pageID).Msg("page render failed")
		return err
	}
	if err := s.surfaces.Save(ctx, s.ID, pageID, store.Surface{JPEG: surf.JPEG, Width: surf.Width, Height: surf.Height}); err != nil {
		metrics.ObserveRender("failed", time.Since(start))
		return fmt.Errorf("cache surface: %w", err)
	}

	s.mu.Lock()
	if p := s.placeholder(pageID); p != nil {
		p.Width = surf.Width
		p.Height = surf.Height
	}
	s.mu.Unlock()

	metrics.ObserveRender("rendered", time.Since(start))
	log.Debug().Str("session", s.ID).Int("page", pageID).Dur("took", time.Since(start)).Msg("page rendered")
	return nil
}

func (s *Session) markRendering(pageID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.placeholder(pageID); p != nil {
		_ = p.transition(StateRendering)
	}
}

// onSettle applies a render outcome to its own placeholder only. Results of
// renders that finish after Close are still applied while the placeholder
// exists; a failure never touches sibling pages.
func (s *Session) onSettle(pageID int, err error) {
	metrics.DecInflight()

	s.mu.Lock()
	p := s.placeholder(pageID)
	if p != nil {
		if err != nil {
			if terr := p.transition(StateFailed); terr == nil {
				p.Error = err.Error()
			}
		} else {
			_ = p.transition(StateRendered)
		}
	}
	done := s.settledCountLocked()
	total := s.Pages
	s.mu.Unlock()

	s.publishProgress(done, total)
}

func (s *Session) publishProgress(done, total int) {
	st := store.SessionStatus{Status: "ready", Message: fmt.Sprintf("%d/%d pages settled", done, total)}
	if total > 0 {
		st.Progress = done * 100 / total
	}
	ctx, cancelFn := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelFn()
	if err := s.status.Set(ctx, s.ID, st); err != nil {
		log.Warn().Err(err).Str("session", s.ID).Msg("status update failed")
	}
}

// placeholder returns the record for pageID; caller holds s.mu.
func (s *Session) placeholder(pageID int) *Placeholder {
	if pageID < 1 || pageID > len(s.placeholders) {
		return nil
	}
	return s.placeholders[pageID-1]
}

// Placeholders returns a snapshot of all page records in id order.
func (s *Session) Placeholders() []Placeholder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Placeholder, len(s.placeholders))
	for i, p := range s.placeholders {
		out[i] = *p
	}
	return out
}

// Page returns a snapshot of one placeholder.
func (s *Session) Page(pageID int) (Placeholder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.placeholder(pageID)
	if p == nil {
		return Placeholder{}, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, pageID, s.Pages)
	}
	return *p, nil
}

// Surface returns the cached raster for a rendered page.
func (s *Session) Surface(ctx context.Context, pageID int) (store.Surface, error) {
	p, err := s.Page(pageID)
	if err != nil {
		return store.Surface{}, err
	}
	if p.State != StateRendered {
		return store.Surface{}, fmt.Errorf("page %d not rendered (state %s)", pageID, p.State)
	}
	sf, ok, err := s.surfaces.Get(ctx, s.ID, pageID)
	if err != nil {
		return store.Surface{}, err
	}
	if !ok {
		return store.Surface{}, fmt.Errorf("surface for page %d expired", pageID)
	}
	return sf, nil
}

func (s *Session) settledCountLocked() int {
	n := 0
	for _, p := range s.placeholders {
		if p.State == StateRendered || p.State == StateFailed {
			n++
		}
	}
	return n
}

// Idle reports whether the session has been untouched since the given cutoff.
func (s *Session) Idle(cutoff time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTouch.Before(cutoff)
}

// Close disconnects the scheduler so no new proximity events admit work,
// then releases the document once in-flight renders have settled.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.sched.Disconnect()
	go func() {
		s.sched.Wait()
		s.cancel()
		if err := s.doc.Close(); err != nil {
			log.Warn().Err(err).Str("session", s.ID).Msg("document close failed")
		}
		ctx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelFn()
		_ = s.surfaces.DeleteSession(ctx, s.ID)
		log.Info().Str("session", s.ID).Msg("session closed")
	}()
}
