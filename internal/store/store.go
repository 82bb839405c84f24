package store

import (
	"context"
	"time"
)

// Surface is a cached rendered page.
type Surface struct {
	JPEG   []byte
	Width  int
	Height int
}

// SurfaceStore caches rendered page surfaces per viewing session.
type SurfaceStore interface {
	Save(ctx context.Context, sessionID string, page int, s Surface) error
	Get(ctx context.Context, sessionID string, page int) (Surface, bool, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Close() error
}

// SessionStatus is the externally visible state of a viewing session.
type SessionStatus struct {
	Status   string                 `json:"status"`
	Progress int                    `json:"progress"`
	Message  string                 `json:"message"`
	Start    *time.Time             `json:"start_time,omitempty"`
	End      *time.Time             `json:"end_time,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// StatusStore records session lifecycle status.
type StatusStore interface {
	Set(ctx context.Context, sessionID string, st SessionStatus) error
	Get(ctx context.Context, sessionID string) (SessionStatus, bool, error)
	Close() error
}
