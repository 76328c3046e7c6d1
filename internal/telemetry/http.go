package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultHTTPQueue   = 256
	DefaultHTTPTimeout = 5 * time.Second
)

// HTTP posts events as JSON to a collector from a background goroutine.
// Events are dropped when the queue is full.
type HTTP struct {
	url    string
	apiKey string
	client *http.Client
	log    *zap.Logger

	queue chan Event
	done  chan struct{}
	once  sync.Once
}

func NewHTTP(url, apiKey string, queueSize int, log *zap.Logger) *HTTP {
	if queueSize <= 0 {
		queueSize = DefaultHTTPQueue
	}
	if log == nil {
		log = zap.NewNop()
	}
	h := &HTTP{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: DefaultHTTPTimeout},
		log:    log,
		queue:  make(chan Event, queueSize),
		done:   make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *HTTP) Report(e Event) {
	select {
	case h.queue <- e:
	default:
		h.log.Warn("telemetry queue full, dropping event", zap.String("job_id", e.JobID))
	}
}

func (h *HTTP) run() {
	defer close(h.done)
	for e := range h.queue {
		if err := h.post(e); err != nil {
			h.log.Warn("telemetry post failed", zap.String("job_id", e.JobID), zap.Error(err))
		}
	}
}

func (h *HTTP) post(e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("X-Api-Key", h.apiKey)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("collector returned %s", resp.Status)
	}
	return nil
}

// Close stops accepting events and waits for queued ones to be sent. Report
// must not be called after Close.
func (h *HTTP) Close(ctx context.Context) error {
	h.once.Do(func() { close(h.queue) })
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
