package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rhuss/sandbox-mcp/pkg/debug"
)

// ErrPoolClosed is returned by Get after Close.
var ErrPoolClosed = errors.New("session pool closed")

// Pool keeps up to size sessions open for reuse. A checked-out session is
// used by exactly one execution; Get blocks while all slots are in use.
type Pool struct {
	provider Provider
	slots    chan struct{}

	mu     sync.Mutex
	idle   []Session
	closed bool
}

// NewPool creates a pool bounded to size concurrent sessions.
func NewPool(provider Provider, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		provider: provider,
		slots:    make(chan struct{}, size),
	}
}

// Get checks out an idle session or opens a new one.
func (p *Pool) Get(ctx context.Context) (Session, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for sandbox session: %w", ctx.Err())
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.slots
		return nil, ErrPoolClosed
	}
	var s Session
	if n := len(p.idle); n > 0 {
		s = p.idle[n-1]
		p.idle = p.idle[:n-1]
	}
	p.mu.Unlock()

	if s != nil {
		debug.Log("sandbox", "session reused", "session", s.ID())
		return s, nil
	}

	s, err := p.provider.NewSession(ctx)
	if err != nil {
		<-p.slots
		return nil, err
	}
	return s, nil
}

// Put returns a session to the pool. Broken sessions are closed instead
// of being reused.
func (p *Pool) Put(s Session, broken bool) {
	p.mu.Lock()
	keep := !broken && !p.closed
	if keep {
		p.idle = append(p.idle, s)
	}
	p.mu.Unlock()
	<-p.slots

	if !keep {
		debug.Log("sandbox", "session discarded", "session", s.ID(), "broken", broken)
		s.Close()
	}
}

// Idle returns the number of idle sessions.
func (p *Pool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// Close closes all idle sessions. Checked-out sessions are closed when
// they are returned.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	var errs []error
	for _, s := range idle {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session %s: %w", s.ID(), err))
		}
	}
	return errors.Join(errs...)
}
