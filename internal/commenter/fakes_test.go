package commenter

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/thipowin/ThipoSelf/pkg/logging"
)

func quietLogger() logging.Logger {
	l := logging.NewLogger()
	l.SetOutput(io.Discard)
	return l
}

// instant keeps the retry shape but drops every wait.
func instant(maxAttempts int) Policy {
	return Policy{MaxAttempts: maxAttempts}
}

type scriptedSender struct {
	mu     sync.Mutex
	script []error
	always error
	calls  int
	texts  []string
	onCall func(n int)
}

func (s *scriptedSender) SendComment(_ context.Context, _ Thread, _ PostRef, text string) (int, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.texts = append(s.texts, text)
	hook := s.onCall
	s.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if n <= len(s.script) {
		return 0, s.script[n-1]
	}
	if s.always != nil {
		return 0, s.always
	}
	return 7000 + n, nil
}

func (s *scriptedSender) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeDirectory struct {
	mu     sync.Mutex
	links  map[int64]int64
	err    error
	lookup int
}

func (d *fakeDirectory) LinkedThread(_ context.Context, channelID int64) (Thread, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookup++
	if d.err != nil {
		return Thread{}, false, d.err
	}
	chat, ok := d.links[channelID]
	if !ok {
		return Thread{}, false, nil
	}
	return Thread{ChatID: chat}, true, nil
}

type fakeNamer struct {
	mu    sync.Mutex
	err   error
	panic bool
	calls int
}

func (n *fakeNamer) ChannelName(_ context.Context, channelID int64) (string, error) {
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()
	if n.panic {
		panic("entity cache corrupted")
	}
	if n.err != nil {
		return "", n.err
	}
	return "Channel Title", nil
}

type recordingSink struct {
	mu      sync.Mutex
	reports []Report
	err     error
}

func (s *recordingSink) Deliver(_ context.Context, r Report) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return nil
}

func (s *recordingSink) Reports() []Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Report(nil), s.reports...)
}

type memoryGuard struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (g *memoryGuard) Claim(_ context.Context, key string) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen == nil {
		g.seen = map[string]bool{}
	}
	if g.seen[key] {
		return false, nil
	}
	g.seen[key] = true
	return true, nil
}

var errBoom = errors.New("boom")
