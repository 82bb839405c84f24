// Package scheduler admits page-render requests triggered by proximity
// events, bounded by a concurrency limit. Service order is strict FIFO over
// observed triggers, not numeric page order.
package scheduler

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// DefaultLimit is used when the configured concurrency limit is not positive.
const DefaultLimit = 2

// RenderFunc performs the actual page render. The returned error marks the
// page failed; nil marks it rendered. Either way the page is settled and its
// concurrency slot freed.
type RenderFunc func(ctx context.Context, pageID int) error

// Config wires a Scheduler to its caller.
type Config struct {
	// Limit caps simultaneous outstanding renders. Coerced to DefaultLimit
	// when not positive.
	Limit  int
	Render RenderFunc
	// OnEnqueue fires when a page is actually appended to the queue
	// (deduplicated triggers do not fire it).
	OnEnqueue func(pageID int)
	// OnStart fires when a page is admitted, before its render begins.
	OnStart func(pageID int)
	// OnSettle fires after a render completes or fails, before the freed
	// slot is refilled. Called outside the scheduler lock.
	OnSettle func(pageID int, err error)
}

// Scheduler holds the render queue and in-flight set for one document.
// A page id is in at most one of {queue, in-flight} at any time, and each
// page is rendered at most once.
type Scheduler struct {
	cfg Config
	ctx context.Context

	mu           sync.Mutex
	queue        []int
	queued       map[int]struct{}
	inflight     map[int]struct{}
	settled      map[int]struct{}
	disconnected bool

	wg sync.WaitGroup
}

// New creates a Scheduler. ctx is passed to every render call.
func New(ctx context.Context, cfg Config) *Scheduler {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	return &Scheduler{
		cfg:      cfg,
		ctx:      ctx,
		queued:   make(map[int]struct{}),
		inflight: make(map[int]struct{}),
		settled:  make(map[int]struct{}),
	}
}

// Enqueue records a proximity trigger for pageID. Triggers for pages already
// queued, in-flight, or settled are idempotent no-ops, as are triggers after
// Disconnect. May admit the page immediately when a slot is free.
func (s *Scheduler) Enqueue(pageID int) {
	if pageID < 1 {
		return
	}

	s.mu.Lock()
	if s.disconnected {
		s.mu.Unlock()
		return
	}
	if _, ok := s.settled[pageID]; ok {
		s.mu.Unlock()
		return
	}
	if _, ok := s.queued[pageID]; ok {
		s.mu.Unlock()
		return
	}
	if _, ok := s.inflight[pageID]; ok {
		s.mu.Unlock()
		return
	}

	s.queue = append(s.queue, pageID)
	s.queued[pageID] = struct{}{}
	admitted := s.admitLocked()
	s.mu.Unlock()

	if s.cfg.OnEnqueue != nil {
		s.cfg.OnEnqueue(pageID)
	}
	s.start(admitted)
}

// Disconnect stops acceptance of new proximity triggers. Pages already queued
// drain normally and in-flight renders run to completion.
func (s *Scheduler) Disconnect() {
	s.mu.Lock()
	s.disconnected = true
	s.mu.Unlock()
	log.Debug().Msg("scheduler disconnected")
}

// Wait blocks until every admitted render has settled.
func (s *Scheduler) Wait() { s.wg.Wait() }

// Stats returns current queue, in-flight and settled sizes.
func (s *Scheduler) Stats() (queued, inflight, settled int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue), len(s.inflight), len(s.settled)
}

// admitLocked moves queue heads into the in-flight set while slots are free.
// Caller holds s.mu; returned pages still need start().
func (s *Scheduler) admitLocked() []int {
	var admitted []int
	for len(s.inflight) < s.cfg.Limit && len(s.queue) > 0 {
		id := s.queue[0]
		s.queue = s.queue[1:]
		delete(s.queued, id)
		s.inflight[id] = struct{}{}
		s.wg.Add(1)
		admitted = append(admitted, id)
	}
	return admitted
}

func (s *Scheduler) start(pages []int) {
	for _, id := range pages {
		if s.cfg.OnStart != nil {
			s.cfg.OnStart(id)
		}
		go s.run(id)
	}
}

func (s *Scheduler) run(pageID int) {
	defer s.wg.Done()
	err := s.cfg.Render(s.ctx, pageID)
	s.settle(pageID, err)
}

// settle removes the page from in-flight, reports the outcome, then refills
// the freed slot. A failed page never blocks or cancels its siblings.
func (s *Scheduler) settle(pageID int, err error) {
	s.mu.Lock()
	delete(s.inflight, pageID)
	s.settled[pageID] = struct{}{}
	s.mu.Unlock()

	if s.cfg.OnSettle != nil {
		s.cfg.OnSettle(pageID, err)
	}

	s.mu.Lock()
	admitted := s.admitLocked()
	s.mu.Unlock()
	s.start(admitted)
}
