// Package printer delivers ESC/POS byte streams to network printers.
//
// Jobs for one printer address are queued and written one at a time in the
// order they were submitted. Different printers are served in parallel.
package printer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultWriteTimeout   = 10 * time.Second
	DefaultIdleTimeout    = 5 * time.Minute
	DefaultQueueSize      = 32
)

type Config struct {
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	QueueSize      int
	// SettleDelay keeps the socket open after the write so slow printers
	// finish reading before the close.
	SettleDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	return c
}

// Pool keeps one session per printer address.
type Pool struct {
	cfg Config
	log *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

func NewPool(cfg Config, log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{
		cfg:      cfg.withDefaults(),
		log:      log,
		sessions: make(map[string]*session),
	}
}

// Send queues data for addr and waits until it was written or failed. A job
// still waiting in the queue when ctx ends is skipped; a started job always
// runs to completion.
func (p *Pool) Send(ctx context.Context, addr string, data []byte) error {
	j := job{ctx: ctx, data: data, result: make(chan error, 1)}
	for {
		s, err := p.session(addr)
		if err != nil {
			return err
		}
		ok, err := s.enqueue(ctx, j)
		if err != nil {
			return err
		}
		if ok {
			return <-j.result
		}
	}
}

// Active reports how many printer sessions are open.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

func (p *Pool) session(addr string) (*session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	s, ok := p.sessions[addr]
	if !ok {
		s = newSession(p, addr)
		p.sessions[addr] = s
		p.log.Debug("printer session opened", zap.String("printer", addr))
	}
	return s, nil
}

func (p *Pool) forget(s *session) {
	p.mu.Lock()
	if p.sessions[s.addr] == s {
		delete(p.sessions, s.addr)
	}
	p.mu.Unlock()
}

// Close stops accepting jobs and lets every session finish its queue. It
// returns ctx.Err() if the sessions did not finish in time; their sockets
// are still closed by the jobs themselves.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	sessions := make([]*session, 0, len(p.sessions))
	for _, s := range p.sessions {
		sessions = append(sessions, s)
	}
	p.sessions = make(map[string]*session)
	p.mu.Unlock()

	for _, s := range sessions {
		close(s.quit)
	}
	for _, s := range sessions {
		select {
		case <-s.done:
		case <-ctx.Done():
			p.log.Warn("abandoning printer sessions", zap.Error(ctx.Err()))
			return ctx.Err()
		}
	}
	return nil
}
