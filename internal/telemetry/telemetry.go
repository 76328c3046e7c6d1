// Package telemetry reports the outcome of every print attempt.
package telemetry

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

type Event struct {
	JobID      string        `json:"jobId"`
	OrderID    string        `json:"orderId,omitempty"`
	Source     string        `json:"source,omitempty"`
	Printer    string        `json:"printer,omitempty"`
	Outcome    string        `json:"outcome"`
	Error      string        `json:"error,omitempty"`
	Attempts   int           `json:"attempts,omitempty"`
	Bytes      int           `json:"bytes,omitempty"`
	Duration   time.Duration `json:"durationNs"`
	OccurredAt time.Time     `json:"occurredAt"`
}

// Reporter receives events. Report must not block the print path.
type Reporter interface {
	Report(Event)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Report(Event) {}

// Log writes events to a zap logger.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Report(e Event) {
	fields := []zap.Field{
		zap.String("job_id", e.JobID),
		zap.String("order_id", e.OrderID),
		zap.String("source", e.Source),
		zap.String("printer", e.Printer),
		zap.String("outcome", e.Outcome),
		zap.Int("attempts", e.Attempts),
		zap.Duration("duration", e.Duration),
	}
	if e.Error != "" {
		fields = append(fields, zap.String("error", e.Error))
	}
	l.Logger.Info("print event", fields...)
}

// Multi hands each event to every reporter. A panicking reporter does not
// stop the others.
type Multi struct {
	Reporters []Reporter
	Logger    *zap.Logger
}

func (m Multi) Report(e Event) {
	for _, r := range m.Reporters {
		m.reportOne(r, e)
	}
}

func (m Multi) reportOne(r Reporter, e Event) {
	defer func() {
		if p := recover(); p != nil && m.Logger != nil {
			m.Logger.Error("telemetry reporter panicked", zap.String("reporter", fmt.Sprintf("%T", r)), zap.Any("panic", p))
		}
	}()
	r.Report(e)
}
