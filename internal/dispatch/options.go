package dispatch

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/0xV8/orderbuddy-main/internal/telemetry"
)

// GuardPolicy decides what happens to a guard admission when printing fails.
type GuardPolicy string

const (
	// PolicyStrict keeps the admission whatever happens after it.
	PolicyStrict GuardPolicy = "strict"
	// PolicyReleaseOnConnectFailure releases the admission when no attempt
	// could connect, so no byte reached the printer and a later redelivery
	// may print.
	PolicyReleaseOnConnectFailure GuardPolicy = "release-on-connect-failure"
)

func ParsePolicy(s string) (GuardPolicy, error) {
	switch p := GuardPolicy(s); p {
	case "":
		return PolicyStrict, nil
	case PolicyStrict, PolicyReleaseOnConnectFailure:
		return p, nil
	}
	return "", fmt.Errorf("unknown guard policy %q", s)
}

const (
	DefaultRetries   = 2
	DefaultRetryBase = 250 * time.Millisecond
)

type Option func(*Dispatcher)

func WithLogger(log *zap.Logger) Option {
	return func(d *Dispatcher) { d.log = log }
}

func WithReporter(r telemetry.Reporter) Option {
	return func(d *Dispatcher) { d.reporter = r }
}

// WithRetries sets how many times a failed connection is retried.
func WithRetries(n int) Option {
	return func(d *Dispatcher) { d.retries = max(n, 0) }
}

func WithRetryBase(base time.Duration) Option {
	return func(d *Dispatcher) {
		if base > 0 {
			d.retryBase = base
		}
	}
}

func WithPolicy(p GuardPolicy) Option {
	return func(d *Dispatcher) { d.policy = p }
}

// WithFormatter registers the formatter used for printers of the given type.
func WithFormatter(printerType string, f Formatter) Option {
	return func(d *Dispatcher) { d.formatters[printerType] = f }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(d *Dispatcher) { d.newID = gen }
}

func newJobID() string { return uuid.NewString() }
