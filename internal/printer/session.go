package printer

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/0xV8/orderbuddy-main/internal/model"
)

const drainPoll = 20 * time.Millisecond

type job struct {
	ctx    context.Context
	data   []byte
	result chan error
}

// session owns one printer address. A single worker runs its jobs in FIFO
// order so two receipts never interleave on the wire.
type session struct {
	addr string
	cfg  Config
	log  *zap.Logger
	pool *Pool

	jobs chan job
	quit chan struct{}
	done chan struct{}

	mu      sync.Mutex
	pending int // enqueued, not yet picked up by the worker
	closed  bool
}

func newSession(p *Pool, addr string) *session {
	s := &session{
		addr: addr,
		cfg:  p.cfg,
		log:  p.log.With(zap.String("printer", addr)),
		pool: p,
		jobs: make(chan job, p.cfg.QueueSize),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

// enqueue reserves a slot and hands the job to the worker. It reports false
// when the session retired in the meantime and the caller must get a new one.
func (s *session) enqueue(ctx context.Context, j job) (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, nil
	}
	s.pending++
	s.mu.Unlock()

	select {
	case s.jobs <- j:
		return true, nil
	case <-ctx.Done():
		s.mu.Lock()
		s.pending--
		s.mu.Unlock()
		return true, ctx.Err()
	}
}

func (s *session) run() {
	defer close(s.done)

	idle := time.NewTimer(s.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case j := <-s.jobs:
			s.take()
			s.exec(j)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(s.cfg.IdleTimeout)

		case <-idle.C:
			if s.retireIfIdle() {
				s.log.Debug("printer session idle, closing")
				return
			}
			idle.Reset(s.cfg.IdleTimeout)

		case <-s.quit:
			s.drain()
			return
		}
	}
}

func (s *session) take() {
	s.mu.Lock()
	s.pending--
	s.mu.Unlock()
}

func (s *session) retireIfIdle() bool {
	s.mu.Lock()
	if s.pending > 0 {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	s.mu.Unlock()
	s.pool.forget(s)
	return true
}

// drain runs every job that was already enqueued, then stops.
func (s *session) drain() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	for {
		s.mu.Lock()
		n := s.pending
		s.mu.Unlock()
		if n == 0 {
			return
		}
		// A sender whose context ends gives its slot back without sending,
		// so never block on the queue alone.
		select {
		case j := <-s.jobs:
			s.take()
			s.exec(j)
		case <-time.After(drainPoll):
		}
	}
}

func (s *session) exec(j job) {
	if err := j.ctx.Err(); err != nil {
		j.result <- err
		return
	}
	j.result <- s.write(j)
}

// write dials, sends the whole receipt and closes the socket on every path.
func (s *session) write(j job) error {
	log := s.log
	if id := model.JobID(j.ctx); id != "" {
		log = log.With(zap.String("job_id", id))
	}
	log.Info("sending receipt", zap.Int("bytes", len(j.data)))

	d := net.Dialer{Timeout: s.cfg.ConnectTimeout}
	conn, err := d.Dial("tcp", s.addr)
	if err != nil {
		cerr := classifyDial(s.addr, err)
		log.Warn("printer connection failed", zap.String("kind", string(cerr.Kind)), zap.Error(err))
		return cerr
	}
	defer conn.Close()

	if s.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	n, err := conn.Write(j.data)
	if err != nil {
		log.Warn("printer write failed", zap.Int("written", n), zap.Error(err))
		return &WriteError{Addr: s.addr, Written: n, Err: err}
	}

	// Give printer time to process
	if s.cfg.SettleDelay > 0 {
		time.Sleep(s.cfg.SettleDelay)
	}
	log.Info("receipt sent")
	return nil
}
