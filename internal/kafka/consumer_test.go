package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/0xV8/orderbuddy-main/internal/dispatch"
	"github.com/0xV8/orderbuddy-main/internal/guard"
	"github.com/0xV8/orderbuddy-main/internal/model"
	"github.com/0xV8/orderbuddy-main/internal/receipt"
	"github.com/0xV8/orderbuddy-main/internal/telemetry"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	failFirst bool
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.failFirst {
		r.failFirst = false
		r.mu.Unlock()
		return kafka.Message{}, errors.New("broker unavailable")
	}
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

type recordingDispatcher struct {
	mu   sync.Mutex
	reqs []*model.PrintRequest
}

func (d *recordingDispatcher) DispatchJSONWith(_ context.Context, data string, prepare dispatch.Prepare) dispatch.Result {
	req, err := dispatch.DecodeRequest(data)
	if err != nil {
		return dispatch.Result{Outcome: dispatch.Rejected, Err: err}
	}
	prepare(req)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reqs = append(d.reqs, req)
	return dispatch.Result{Outcome: dispatch.Printed, JobID: "j", OrderID: req.OrderID()}
}

func TestHandleMessage_DefaultsSourceToKafka(t *testing.T) {
	d := &recordingDispatcher{}
	c := NewConsumer(&fakeReader{}, d, zap.NewNop())

	res := c.handleMessage(context.Background(), kafka.Message{
		Value: []byte(`{"order":{"_id":"o1","items":[]},"printerInfo":{"ip":"10.0.0.5"}}`),
	})
	assert.Equal(t, dispatch.Printed, res.Outcome)
	require.Len(t, d.reqs, 1)
	assert.Equal(t, model.SourceKafka, d.reqs[0].Source)

	c.handleMessage(context.Background(), kafka.Message{
		Value: []byte(`{"source":"socket","order":{"_id":"o2","items":[]},"printerInfo":{"ip":"10.0.0.5"}}`),
	})
	assert.Equal(t, model.SourceSocket, d.reqs[1].Source)
}

func TestHandleMessage_InvalidJSONIsNotDispatched(t *testing.T) {
	d := &recordingDispatcher{}
	c := NewConsumer(&fakeReader{}, d, zap.NewNop())

	res := c.handleMessage(context.Background(), kafka.Message{Value: []byte(`not json`)})
	assert.Equal(t, dispatch.Rejected, res.Outcome)
	var verr *dispatch.ValidationError
	assert.ErrorAs(t, res.Err, &verr)
	assert.Empty(t, d.reqs)
}

type recordedEvents struct {
	mu  sync.Mutex
	all []telemetry.Event
}

func (r *recordedEvents) Report(e telemetry.Event) {
	r.mu.Lock()
	r.all = append(r.all, e)
	r.mu.Unlock()
}

type nopSender struct{}

func (nopSender) Send(context.Context, string, []byte) error { return nil }

func TestHandleMessage_MalformedMessageIsReported(t *testing.T) {
	text, err := receipt.NewFormatter(receipt.Options{})
	require.NoError(t, err)
	events := &recordedEvents{}
	d := dispatch.New(guard.NewMemory(), nopSender{}, text, dispatch.WithReporter(events))
	c := NewConsumer(&fakeReader{}, d, zap.NewNop())

	res := c.handleMessage(context.Background(), kafka.Message{Value: []byte(`{"order":`)})
	require.Equal(t, dispatch.Rejected, res.Outcome)
	assert.NotEmpty(t, res.JobID)

	res = c.handleMessage(context.Background(), kafka.Message{
		Value: []byte(`{"order":{"_id":"o1","items":[]},"printerInfo":{"ip":"10.0.0.5"}}`),
	})
	require.Equal(t, dispatch.Printed, res.Outcome)

	events.mu.Lock()
	defer events.mu.Unlock()
	require.Len(t, events.all, 2)
	assert.Equal(t, "rejected", events.all[0].Outcome)
	assert.Equal(t, model.SourceKafka, events.all[0].Source)
	assert.Equal(t, "printed", events.all[1].Outcome)
	assert.Equal(t, "o1", events.all[1].OrderID)
	assert.Equal(t, model.SourceKafka, events.all[1].Source)
}

func TestRun_CommitsEveryMessage(t *testing.T) {
	r := &fakeReader{
		failFirst: true,
		msgs: []kafka.Message{
			{Offset: 1, Value: []byte(`{"order":{"_id":"o1","items":[]},"printerInfo":{"ip":"10.0.0.5"}}`)},
			{Offset: 2, Value: []byte(`garbage`)},
			{Offset: 3, Value: []byte(`{"order":{"_id":"o3","items":[]},"printerInfo":{"ip":"10.0.0.5"}}`)},
		},
	}
	d := &recordingDispatcher{}
	c := NewConsumer(r, d, zap.NewNop())
	c.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.committed) == 3
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 2, 3}, r.committed)
	assert.True(t, r.closed)
	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Len(t, d.reqs, 2)
}
