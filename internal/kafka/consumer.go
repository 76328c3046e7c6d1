// Package kafka reads print requests from a topic and dispatches them.
package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/0xV8/orderbuddy-main/internal/dispatch"
	"github.com/0xV8/orderbuddy-main/internal/model"
)

type ConsumerConfig struct {
	Brokers string
	Topic   string
	GroupID string
}

type Dispatcher interface {
	DispatchJSONWith(ctx context.Context, data string, prepare dispatch.Prepare) dispatch.Result
}

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       MessageReader
	d       Dispatcher
	log     *zap.Logger
	backoff time.Duration
}

func NewReader(cfg ConsumerConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:         strings.Split(cfg.Brokers, ","),
		GroupID:         cfg.GroupID,
		Topic:           cfg.Topic,
		MinBytes:        1,
		MaxBytes:        10e6,
		CommitInterval:  0,
		StartOffset:     kafka.LastOffset,
		ReadLagInterval: -1,
	})
}

func NewConsumer(r MessageReader, d Dispatcher, log *zap.Logger) *Consumer {
	return &Consumer{r: r, d: d, log: log, backoff: 300 * time.Millisecond}
}

// Run fetches until ctx is cancelled, then closes the reader.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.r.Close()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn("kafka fetch error", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}

		c.handleMessage(ctx, m)

		if err := c.r.CommitMessages(ctx, m); err != nil {
			c.log.Warn("kafka commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

// handleMessage dispatches one message. Every message is committed after
// this returns, including invalid and failed ones: a redelivery cannot make
// a rejected request valid, and printer failures are reported downstream.
func (c *Consumer) handleMessage(ctx context.Context, m kafka.Message) dispatch.Result {
	log := c.log.With(zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset))

	res := c.d.DispatchJSONWith(ctx, string(m.Value), dispatch.DefaultSource(model.SourceKafka))
	var verr *dispatch.ValidationError
	if res.Outcome == dispatch.Rejected && errors.As(res.Err, &verr) {
		log.Warn("kafka invalid print request, skip and commit", zap.String("job_id", res.JobID), zap.Error(res.Err))
		return res
	}
	log.Info("kafka print request handled",
		zap.String("order_id", res.OrderID),
		zap.String("job_id", res.JobID),
		zap.String("outcome", string(res.Outcome)))
	return res
}
