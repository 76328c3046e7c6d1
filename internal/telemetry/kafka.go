package telemetry

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Kafka publishes events to a topic, keyed by job id.
type Kafka struct {
	w   *kafka.Writer
	log *zap.Logger
}

func NewKafka(brokers, topic string, log *zap.Logger) *Kafka {
	if log == nil {
		log = zap.NewNop()
	}
	k := &Kafka{log: log}
	k.w = &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Warn("telemetry publish failed", zap.Int("messages", len(messages)), zap.Error(err))
			}
		},
	}
	return k
}

func (k *Kafka) Report(e Event) {
	b, err := json.Marshal(e)
	if err != nil {
		k.log.Warn("telemetry encode failed", zap.Error(err))
		return
	}
	err = k.w.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(e.JobID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	})
	if err != nil {
		k.log.Warn("telemetry publish failed", zap.String("job_id", e.JobID), zap.Error(err))
	}
}

// Close flushes pending messages.
func (k *Kafka) Close() error {
	return k.w.Close()
}
