package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/greg-randall/townnews/internal/collector"
	"github.com/greg-randall/townnews/internal/summary"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type seqIDs struct {
	n int
}

func (s *seqIDs) NewID() (string, error) {
	s.n++
	return fmt.Sprintf("run-%d", s.n), nil
}

type stubRunner struct {
	outcomes []collector.Outcome
	err      error
}

func (r stubRunner) Run(context.Context, []collector.Target) ([]collector.Outcome, error) {
	return r.outcomes, r.err
}

type recordingLedger struct {
	entries []summary.Entry
	err     error
}

func (l *recordingLedger) Record(_ context.Context, entry summary.Entry) error {
	l.entries = append(l.entries, entry)
	return l.err
}

func success(domain, body string) collector.Outcome {
	doc, err := collector.Extract(body)
	if err != nil {
		panic(err)
	}
	return collector.Outcome{Target: collector.NewTarget(domain), Document: doc}
}

func failure(domain, msg string) collector.Outcome {
	return collector.Outcome{Target: collector.NewTarget(domain), Err: errors.New(msg)}
}
