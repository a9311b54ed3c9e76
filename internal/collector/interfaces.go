package collector

import (
	"context"
	"time"
)

// Launcher starts a browser session.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Session is a live browser shared by every fetch of a run.
type Session interface {
	// Open navigates a fresh, isolated tab to url.
	Open(ctx context.Context, url string) (Tab, error)
	Close() error
}

// Tab is a single loaded page.
type Tab interface {
	// WaitReady blocks until selector is present or timeout elapses.
	WaitReady(ctx context.Context, selector string, timeout time.Duration) error
	// Content returns the serialized document.
	Content(ctx context.Context) (string, error)
	Close() error
}

// Pauser suspends the caller for a duration, returning early on cancellation.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// DelaySource yields the pause taken between two sites.
type DelaySource interface {
	Next() time.Duration
}

// Fetcher fetches one target through an open session.
type Fetcher interface {
	Fetch(ctx context.Context, session Session, target Target) Outcome
}
