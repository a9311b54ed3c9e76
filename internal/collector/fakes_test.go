package collector

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

type fakeTab struct {
	content    string
	contentErr error
	readyErr   error
	closeErr   error

	mu       sync.Mutex
	closed   int
	selector string
	timeout  time.Duration
}

func (t *fakeTab) WaitReady(_ context.Context, selector string, timeout time.Duration) error {
	t.mu.Lock()
	t.selector = selector
	t.timeout = timeout
	t.mu.Unlock()
	return t.readyErr
}

func (t *fakeTab) Content(context.Context) (string, error) {
	return t.content, t.contentErr
}

func (t *fakeTab) Close() error {
	t.mu.Lock()
	t.closed++
	t.mu.Unlock()
	return t.closeErr
}

type fakeSession struct {
	tabs     map[string]*fakeTab
	openErr  map[string]error
	closeErr error

	mu     sync.Mutex
	opened []string
	closed int
}

func (s *fakeSession) Open(_ context.Context, url string) (Tab, error) {
	s.mu.Lock()
	s.opened = append(s.opened, url)
	s.mu.Unlock()
	if err := s.openErr[url]; err != nil {
		return nil, err
	}
	if tab, ok := s.tabs[url]; ok {
		return tab, nil
	}
	return nil, errors.New("no such page")
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	return s.closeErr
}

type fakeLauncher struct {
	session *fakeSession
	err     error
	calls   int
}

func (l *fakeLauncher) Launch(context.Context) (Session, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.session, nil
}

type recordingPauser struct {
	mu     sync.Mutex
	delays []time.Duration
	onCall func()
}

func (p *recordingPauser) Pause(_ context.Context, delay time.Duration) {
	p.mu.Lock()
	p.delays = append(p.delays, delay)
	p.mu.Unlock()
	if p.onCall != nil {
		p.onCall()
	}
}

func (p *recordingPauser) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.delays)
}

type fixedDelay time.Duration

func (d fixedDelay) Next() time.Duration { return time.Duration(d) }

type failingStore struct{}

func (failingStore) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("disk full")
}

func (failingStore) CreateObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("disk full")
}

func (failingStore) Exists(context.Context, string) (bool, error) { return false, nil }

func (failingStore) GetObject(context.Context, string) ([]byte, error) { return nil, errors.New("disk full") }

func (failingStore) List(context.Context, string) ([]string, error) { return nil, nil }
