package viewer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/local/pdfviewer/internal/config"
	"github.com/local/pdfviewer/internal/pdfinfo"
	"github.com/local/pdfviewer/internal/render"
	"github.com/local/pdfviewer/internal/source"
	"github.com/local/pdfviewer/internal/store"
)

// fakeDoc implements render.Document without MuPDF. Renders complete
// immediately unless a page is listed in failing.
type fakeDoc struct {
	pages   int
	failing map[int]error

	mu      sync.Mutex
	renders []int
	closed  bool
}

func (d *fakeDoc) PageCount() int { return d.pages }

func (d *fakeDoc) PageDims(id int) (float64, float64, error) {
	return 612, 792, nil
}

func (d *fakeDoc) RenderPage(_ context.Context, id int, scale float64) (*render.Surface, error) {
	d.mu.Lock()
	d.renders = append(d.renders, id)
	d.mu.Unlock()
	if err, ok := d.failing[id]; ok {
		return nil, err
	}
	w := int(612 * scale)
	h := int(792 * scale)
	return &render.Surface{JPEG: []byte(fmt.Sprintf("jpeg-page-%d", id)), Width: w, Height: h}, nil
}

func (d *fakeDoc) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDoc) renderCount(id int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, r := range d.renders {
		if r == id {
			n++
		}
	}
	return n
}

type fakeOpener struct {
	doc *fakeDoc
	err error
}

func (o fakeOpener) Open([]byte) (render.Document, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.doc, nil
}

func testConfig() config.ViewerConfig {
	return config.ViewerConfig{
		RenderScale: 1.5, MinBytes: 64, ProximityMargin: 600,
		Concurrency: 2, PageClass: "pdf-page-rendered", SessionTTL: time.Minute,
	}
}

func pdfPayload() []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	for b.Len() < 200 {
		b.WriteString("% pad\n")
	}
	return b.Bytes()
}

// skipInspect bypasses pdfcpu for fake documents.
func skipInspect([]byte) (*pdfinfo.Info, error) { return nil, errors.New("not inspected") }

func newTestManager(t *testing.T, doc *fakeDoc) *Manager {
	t.Helper()
	return NewManager(testConfig(), Dependencies{
		Loader:   source.New(source.Options{MinBytes: 64}),
		Opener:   fakeOpener{doc: doc},
		Surfaces: store.NewMemorySurfaces(),
		Status:   store.NewMemoryStatus(),
		Inspect:  skipInspect,
	})
}

func waitSettled(t *testing.T, s *Session, pages ...int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		settled := true
		for _, id := range pages {
			p, err := s.Page(id)
			if err != nil {
				t.Fatal(err)
			}
			if p.State != StateRendered && p.State != StateFailed {
				settled = false
			}
		}
		if settled {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("pages %v did not settle", pages)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestOpenCreatesAllPlaceholders(t *testing.T) {
	doc := &fakeDoc{pages: 5}
	m := newTestManager(t, doc)

	s, err := m.OpenBytes(context.Background(), "doc.pdf", pdfPayload(), "")
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}

	phs := s.Placeholders()
	if len(phs) != 5 {
		t.Fatalf("%d placeholders, want 5", len(phs))
	}
	for i, p := range phs {
		if p.ID != i+1 {
			t.Errorf("placeholder %d has ID %d", i, p.ID)
		}
		if p.State != StatePending {
			t.Errorf("placeholder %d state = %s, want pending", p.ID, p.State)
		}
		if p.AspectRatio <= 0 {
			t.Errorf("placeholder %d has no aspect ratio", p.ID)
		}
	}
	if n := doc.renderCount(1); n != 0 {
		t.Errorf("page 1 rendered %d times before any proximity event", n)
	}
}

func TestOpenRejectsUndersizedSourceBeforePlaceholders(t *testing.T) {
	m := NewManager(testConfig(), Dependencies{
		Loader:   source.New(source.Options{MinBytes: 5120}),
		Opener:   fakeOpener{doc: &fakeDoc{pages: 3}},
		Surfaces: store.NewMemorySurfaces(),
		Status:   store.NewMemoryStatus(),
		Inspect:  skipInspect,
	})
	_, err := m.OpenBytes(context.Background(), "small.pdf", pdfPayload(), "")
	if !errors.Is(err, source.ErrTooSmall) {
		t.Fatalf("err = %v, want ErrTooSmall", err)
	}
}

// recordingStatus captures every status write in order.
type recordingStatus struct {
	store.StatusStore
	mu     sync.Mutex
	writes []store.SessionStatus
}

func (r *recordingStatus) Set(ctx context.Context, id string, st store.SessionStatus) error {
	r.mu.Lock()
	r.writes = append(r.writes, st)
	r.mu.Unlock()
	return r.StatusStore.Set(ctx, id, st)
}

func TestOpenFailurePublishesFailedStatus(t *testing.T) {
	status := &recordingStatus{StatusStore: store.NewMemoryStatus()}
	m := NewManager(testConfig(), Dependencies{
		Loader:   source.New(source.Options{MinBytes: 64}),
		Opener:   fakeOpener{err: errors.New("corrupt xref")},
		Surfaces: store.NewMemorySurfaces(),
		Status:   status,
		Inspect:  skipInspect,
	})
	_, err := m.OpenBytes(context.Background(), "bad.pdf", pdfPayload(), "")
	if err == nil {
		t.Fatal("expected open error")
	}

	// The loading indicator must resolve to a terminal state on failure.
	status.mu.Lock()
	defer status.mu.Unlock()
	if len(status.writes) < 2 {
		t.Fatalf("%d status writes, want loading then failed", len(status.writes))
	}
	if status.writes[0].Status != "loading" {
		t.Errorf("first status = %q, want loading", status.writes[0].Status)
	}
	last := status.writes[len(status.writes)-1]
	if last.Status != "failed" {
		t.Errorf("final status = %q, want failed", last.Status)
	}
	if !strings.Contains(last.Message, "corrupt xref") {
		t.Errorf("final message = %q", last.Message)
	}
	if last.End == nil {
		t.Error("failed status missing end time")
	}
}

func TestNearRendersPage(t *testing.T) {
	doc := &fakeDoc{pages: 3}
	m := newTestManager(t, doc)
	s, err := m.OpenBytes(context.Background(), "doc.pdf", pdfPayload(), "")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Near(2); err != nil {
		t.Fatal(err)
	}
	waitSettled(t, s, 2)

	p, _ := s.Page(2)
	if p.State != StateRendered {
		t.Fatalf("page 2 state = %s, want rendered", p.State)
	}
	if p.Width != 918 || p.Height != 1188 { // 612x792 at scale 1.5
		t.Errorf("surface dims %dx%d, want 918x1188", p.Width, p.Height)
	}

	sf, err := s.Surface(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if string(sf.JPEG) != "jpeg-page-2" {
		t.Errorf("surface bytes %q", sf.JPEG)
	}
}

func TestRepeatedNearIsIdempotent(t *testing.T) {
	doc := &fakeDoc{pages: 3}
	m := newTestManager(t, doc)
	s, _ := m.OpenBytes(context.Background(), "doc.pdf", pdfPayload(), "")

	for i := 0; i < 5; i++ {
		if err := s.Near(1); err != nil {
			t.Fatal(err)
		}
	}
	waitSettled(t, s, 1)
	// settled pages ignore further triggers
	_ = s.Near(1)
	time.Sleep(20 * time.Millisecond)

	if n := doc.renderCount(1); n != 1 {
		t.Errorf("page 1 rendered %d times, want exactly 1", n)
	}
}

func TestPageFailureIsIsolated(t *testing.T) {
	doc := &fakeDoc{pages: 5, failing: map[int]error{2: errors.New("bad content stream")}}
	m := newTestManager(t, doc)
	s, _ := m.OpenBytes(context.Background(), "doc.pdf", pdfPayload(), "")

	for i := 1; i <= 5; i++ {
		if err := s.Near(i); err != nil {
			t.Fatal(err)
		}
	}
	waitSettled(t, s, 1, 2, 3, 4, 5)

	for i := 1; i <= 5; i++ {
		p, _ := s.Page(i)
		if i == 2 {
			if p.State != StateFailed {
				t.Errorf("page 2 state = %s, want failed", p.State)
			}
			if !strings.Contains(p.Error, "bad content stream") {
				t.Errorf("page 2 error = %q", p.Error)
			}
			continue
		}
		if p.State != StateRendered {
			t.Errorf("page %d state = %s, want rendered", i, p.State)
		}
	}
}

func TestNearOutOfRange(t *testing.T) {
	m := newTestManager(t, &fakeDoc{pages: 3})
	s, _ := m.OpenBytes(context.Background(), "doc.pdf", pdfPayload(), "")
	if err := s.Near(0); !errors.Is(err, ErrPageOutOfRange) {
		t.Errorf("Near(0) = %v, want ErrPageOutOfRange", err)
	}
	if err := s.Near(4); !errors.Is(err, ErrPageOutOfRange) {
		t.Errorf("Near(4) = %v, want ErrPageOutOfRange", err)
	}
}

func TestCloseStopsNewTriggers(t *testing.T) {
	doc := &fakeDoc{pages: 3}
	m := newTestManager(t, doc)
	s, _ := m.OpenBytes(context.Background(), "doc.pdf", pdfPayload(), "")
	id := s.ID

	if !m.Close(id) {
		t.Fatal("Close returned false for live session")
	}
	if _, ok := m.Get(id); ok {
		t.Error("session still listed after Close")
	}
	if err := s.Near(1); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Near after close = %v, want ErrSessionClosed", err)
	}
}

func TestSweepClosesIdleSessions(t *testing.T) {
	cfg := testConfig()
	cfg.SessionTTL = 10 * time.Millisecond
	m := NewManager(cfg, Dependencies{
		Loader:   source.New(source.Options{MinBytes: 64}),
		Opener:   fakeOpener{doc: &fakeDoc{pages: 2}},
		Surfaces: store.NewMemorySurfaces(),
		Status:   store.NewMemoryStatus(),
		Inspect:  skipInspect,
	})
	s, _ := m.OpenBytes(context.Background(), "doc.pdf", pdfPayload(), "")
	time.Sleep(20 * time.Millisecond)
	m.Sweep()
	if _, ok := m.Get(s.ID); ok {
		t.Error("idle session survived sweep")
	}
}

func TestPlaceholderTransitionsOneWay(t *testing.T) {
	p := &Placeholder{ID: 1, State: StatePending}
	if err := p.transition(StateRendered); err == nil {
		t.Error("pending -> rendered allowed")
	}
	if err := p.transition(StateRendering); err != nil {
		t.Fatalf("pending -> rendering: %v", err)
	}
	if err := p.transition(StatePending); err == nil {
		t.Error("rendering -> pending allowed")
	}
	if err := p.transition(StateFailed); err != nil {
		t.Fatalf("rendering -> failed: %v", err)
	}
	if err := p.transition(StateRendered); err == nil {
		t.Error("failed -> rendered allowed")
	}
}

func TestWriteContainer(t *testing.T) {
	doc := &fakeDoc{pages: 3, failing: map[int]error{3: errors.New("boom")}}
	m := newTestManager(t, doc)
	s, _ := m.OpenBytes(context.Background(), "doc.pdf", pdfPayload(), "")

	_ = s.Near(1)
	_ = s.Near(3)
	waitSettled(t, s, 1, 3)

	var buf bytes.Buffer
	if err := s.WriteContainer(&buf); err != nil {
		t.Fatal(err)
	}
	html := buf.String()

	if got := strings.Count(html, "pdf-page-slot"); got != 3 {
		t.Errorf("%d slots in container, want 3", got)
	}
	if !strings.Contains(html, `data-proximity-margin="600"`) {
		t.Error("container missing proximity margin")
	}
	if !strings.Contains(html, `class="pdf-page-rendered"`) {
		t.Error("rendered page missing configured class")
	}
	if !strings.Contains(html, "aspect-ratio:") {
		t.Error("slots missing aspect-ratio sizing")
	}
	if !strings.Contains(html, "Page 3 failed to render") {
		t.Error("failed page missing inline error")
	}
	if strings.Contains(html, `data-page="2" data-state="rendered"`) {
		t.Error("untriggered page must stay pending")
	}
}
