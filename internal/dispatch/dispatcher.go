// Package dispatch is the entry point for print requests. It validates a
// request, suppresses redelivered socket triggers, formats the receipt and
// hands it to the printer.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/0xV8/orderbuddy-main/internal/guard"
	"github.com/0xV8/orderbuddy-main/internal/model"
	"github.com/0xV8/orderbuddy-main/internal/printer"
	"github.com/0xV8/orderbuddy-main/internal/receipt"
	"github.com/0xV8/orderbuddy-main/internal/telemetry"
)

type Outcome string

const (
	Printed    Outcome = "printed"
	Suppressed Outcome = "suppressed"
	Rejected   Outcome = "rejected"
)

// Result of one dispatch. Err is set only for Rejected.
type Result struct {
	Outcome  Outcome
	Err      error
	JobID    string
	OrderID  string
	Attempts int
	Bytes    int
}

// Formatter turns a request into the bytes sent to the printer.
type Formatter interface {
	Format(order *model.Order, restaurant *model.RestaurantInfo, printer *model.PrinterInfo) ([]byte, error)
}

// Sender delivers bytes to a printer address.
type Sender interface {
	Send(ctx context.Context, addr string, data []byte) error
}

// GuardError means the guard could not be consulted. The request is rejected
// rather than risking a duplicate print.
type GuardError struct {
	Err error
}

func (e *GuardError) Error() string { return "print guard unavailable: " + e.Err.Error() }

func (e *GuardError) Unwrap() error { return e.Err }

type Dispatcher struct {
	guard      guard.Guard
	sender     Sender
	formatters map[string]Formatter
	reporter   telemetry.Reporter
	log        *zap.Logger

	retries   int
	retryBase time.Duration
	policy    GuardPolicy
	now       func() time.Time
	newID     func() string
}

// New builds a dispatcher. text formats printers with no type or type "text";
// other types are added with WithFormatter.
func New(g guard.Guard, s Sender, text Formatter, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		guard:  g,
		sender: s,
		formatters: map[string]Formatter{
			"":                    text,
			model.PrinterTypeText: text,
		},
		reporter:  telemetry.Nop{},
		log:       zap.NewNop(),
		retries:   DefaultRetries,
		retryBase: DefaultRetryBase,
		policy:    PolicyStrict,
		now:       time.Now,
		newID:     newJobID,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Prepare adjusts a decoded request before it is validated. Triggers use it
// to stamp their source or fill in their own printer.
type Prepare func(req *model.PrintRequest)

// DefaultSource sets source on requests that name none.
func DefaultSource(source string) Prepare {
	return func(req *model.PrintRequest) {
		if req.Source == "" {
			req.Source = source
		}
	}
}

// ForceSource sets source whatever the request says.
func ForceSource(source string) Prepare {
	return func(req *model.PrintRequest) { req.Source = source }
}

// DispatchJSON decodes a serialized print request and dispatches it.
func (d *Dispatcher) DispatchJSON(ctx context.Context, data string) Result {
	return d.DispatchJSONWith(ctx, data, nil)
}

// DispatchJSONWith decodes data, applies prepare and dispatches. A payload
// that does not decode is logged and reported like any other rejection;
// prepare is applied to an empty request so the event still carries the
// trigger's source.
func (d *Dispatcher) DispatchJSONWith(ctx context.Context, data string, prepare Prepare) Result {
	req, err := DecodeRequest(data)
	if err != nil {
		var stub *model.PrintRequest
		if prepare != nil {
			stub = &model.PrintRequest{}
			prepare(stub)
		}
		res := Result{Outcome: Rejected, Err: err, JobID: d.newID()}
		d.finish(stub, res, d.now())
		return res
	}
	if prepare != nil {
		prepare(req)
	}
	return d.Dispatch(ctx, req)
}

// Dispatch runs one print request to completion. It never panics.
func (d *Dispatcher) Dispatch(ctx context.Context, req *model.PrintRequest) (res Result) {
	start := d.now()
	res.JobID = d.newID()
	res.OrderID = req.OrderID()
	ctx = context.WithValue(ctx, model.ContextJobID, res.JobID)

	defer func() {
		if p := recover(); p != nil {
			d.log.Error("dispatch panicked", zap.String("job_id", res.JobID), zap.Any("panic", p), zap.Stack("stack"))
			res.Outcome, res.Err = Rejected, fmt.Errorf("dispatch panicked: %v", p)
		}
		d.finish(req, res, start)
	}()

	if err := d.validate(req); err != nil {
		res.Outcome, res.Err = Rejected, err
		return res
	}
	ctx = context.WithValue(ctx, model.ContextSource, req.Source)
	orderID := req.Order.ID

	guarded := req.Source == model.SourceSocket
	if guarded {
		ok, err := d.guard.CanPrint(ctx, orderID)
		if err != nil {
			res.Outcome, res.Err = Rejected, &GuardError{Err: err}
			return res
		}
		if !ok {
			res.Outcome = Suppressed
			return res
		}
	}

	data, err := d.format(req)
	if err != nil {
		res.Outcome, res.Err = Rejected, err
		return res
	}

	res.Bytes = len(data)
	res.Attempts, err = d.deliver(ctx, req.PrinterInfo.Address(), data)
	if err != nil {
		if guarded && d.releasable(err) {
			if rerr := d.guard.Release(context.WithoutCancel(ctx), orderID); rerr != nil {
				d.log.Warn("failed to release print guard", zap.String("order_id", orderID), zap.Error(rerr))
			}
		}
		res.Outcome, res.Err = Rejected, err
		return res
	}
	res.Outcome = Printed
	return res
}

func (d *Dispatcher) validate(req *model.PrintRequest) error {
	if err := Validate(req); err != nil {
		return err
	}
	if _, ok := d.formatters[req.PrinterInfo.Type]; !ok {
		return invalid("printerInfo.type", fmt.Sprintf("unsupported printer type %q", req.PrinterInfo.Type))
	}
	return nil
}

// format turns formatter panics into FormattingError.
func (d *Dispatcher) format(req *model.PrintRequest) (data []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &receipt.FormattingError{Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	data, err = d.formatters[req.PrinterInfo.Type].Format(req.Order, req.RestaurantInfo, req.PrinterInfo)
	if err != nil {
		var ferr *receipt.FormattingError
		if !errors.As(err, &ferr) {
			err = &receipt.FormattingError{Err: err}
		}
		return nil, err
	}
	return data, nil
}

// deliver sends data, retrying only connection failures with exponential
// backoff. When ctx ends during a backoff the last send error stays in the
// chain.
func (d *Dispatcher) deliver(ctx context.Context, addr string, data []byte) (int, error) {
	attempts := 0
	var last error
	backoff := retry.WithMaxRetries(uint64(d.retries), retry.NewExponential(d.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		err := d.sender.Send(ctx, addr, data)
		last = err
		var cerr *printer.ConnectionError
		if errors.As(err, &cerr) {
			d.log.Warn("printer unreachable",
				zap.String("job_id", model.JobID(ctx)),
				zap.String("source", model.SourceFrom(ctx)),
				zap.String("printer", addr),
				zap.Int("attempt", attempts),
				zap.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && last != nil && !errors.Is(err, last) {
		err = fmt.Errorf("%w: %w", err, last)
	}
	return attempts, err
}

func (d *Dispatcher) releasable(err error) bool {
	if d.policy != PolicyReleaseOnConnectFailure {
		return false
	}
	var cerr *printer.ConnectionError
	return errors.As(err, &cerr)
}

func (d *Dispatcher) finish(req *model.PrintRequest, res Result, start time.Time) {
	e := telemetry.Event{
		JobID:      res.JobID,
		OrderID:    req.OrderID(),
		Outcome:    string(res.Outcome),
		Attempts:   res.Attempts,
		Bytes:      res.Bytes,
		Duration:   d.now().Sub(start),
		OccurredAt: start,
	}
	if req != nil {
		e.Source = req.Source
		if req.PrinterInfo != nil {
			e.Printer = req.PrinterInfo.Address()
		}
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
	}

	fields := []zap.Field{
		zap.String("job_id", e.JobID),
		zap.String("order_id", e.OrderID),
		zap.String("source", e.Source),
		zap.String("printer", e.Printer),
		zap.String("outcome", e.Outcome),
		zap.Duration("duration", e.Duration),
	}
	switch res.Outcome {
	case Printed:
		d.log.Info("receipt printed", append(fields, zap.Int("attempts", res.Attempts))...)
	case Suppressed:
		d.log.Info("duplicate print suppressed", fields...)
	default:
		d.log.Warn("print rejected", append(fields, zap.Error(res.Err))...)
	}

	d.report(e)
}

func (d *Dispatcher) report(e telemetry.Event) {
	defer func() {
		if p := recover(); p != nil {
			d.log.Error("telemetry reporter panicked", zap.Any("panic", p))
		}
	}()
	d.reporter.Report(e)
}
