package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xV8/orderbuddy-main/internal/guard"
	"github.com/0xV8/orderbuddy-main/internal/model"
	"github.com/0xV8/orderbuddy-main/internal/printer"
	"github.com/0xV8/orderbuddy-main/internal/receipt"
	"github.com/0xV8/orderbuddy-main/internal/telemetry"
)

const burgerJSON = `{
	"source": "socket",
	"order": {"_id": "o1", "items": [{"name": "Burger", "priceCents": 500, "modifiers": [], "variants": []}]},
	"printerInfo": {"ip": "10.0.0.5"},
	"restaurantInfo": {"name": "Test Diner"}
}`

type sent struct {
	addr string
	data []byte
}

// recordingSender answers each Send with the next queued error, then nil.
type recordingSender struct {
	mu    sync.Mutex
	calls []sent
	errs  []error
}

func (s *recordingSender) Send(_ context.Context, addr string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sent{addr: addr, data: data})
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type brokenGuard struct{}

func (brokenGuard) CanPrint(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}
func (brokenGuard) Release(context.Context, string) error { return nil }

type panicFormatter struct{}

func (panicFormatter) Format(*model.Order, *model.RestaurantInfo, *model.PrinterInfo) ([]byte, error) {
	panic("nil map")
}

type constFormatter []byte

func (f constFormatter) Format(*model.Order, *model.RestaurantInfo, *model.PrinterInfo) ([]byte, error) {
	return f, nil
}

type events struct {
	mu  sync.Mutex
	all []telemetry.Event
}

func (e *events) Report(ev telemetry.Event) {
	e.mu.Lock()
	e.all = append(e.all, ev)
	e.mu.Unlock()
}

type fixture struct {
	guard  *guard.Memory
	sender *recordingSender
	events *events
	d      *Dispatcher
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	text, err := receipt.NewFormatter(receipt.Options{})
	require.NoError(t, err)
	f := &fixture{guard: guard.NewMemory(), sender: &recordingSender{}, events: &events{}}
	opts = append([]Option{WithReporter(f.events), WithRetryBase(time.Millisecond)}, opts...)
	f.d = New(f.guard, f.sender, text, opts...)
	return f
}

func request(source, orderID string) *model.PrintRequest {
	return &model.PrintRequest{
		Source:         source,
		Order:          &model.Order{ID: orderID, Items: []model.Item{{Name: "Burger", PriceCents: 500}}},
		RestaurantInfo: &model.RestaurantInfo{Name: "Test Diner"},
		PrinterInfo:    &model.PrinterInfo{IP: "10.0.0.5"},
	}
}

func connErr() error {
	return &printer.ConnectionError{Addr: "10.0.0.5:9100", Kind: printer.ConnRefused, Err: errors.New("refused")}
}

func TestDispatchJSON_BurgerScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.d.DispatchJSON(ctx, burgerJSON)
	require.Equal(t, Printed, first.Outcome, "err: %v", first.Err)
	require.NoError(t, first.Err)
	assert.NotEmpty(t, first.JobID)

	require.Equal(t, 1, f.sender.count())
	call := f.sender.calls[0]
	assert.Equal(t, "10.0.0.5:9100", call.addr)
	assert.True(t, bytes.Contains(call.data, []byte("Burger")))
	assert.True(t, bytes.Contains(call.data, []byte("5.00")))
	assert.True(t, bytes.Contains(call.data, receipt.CutCommand()))
	assert.True(t, bytes.Contains(call.data, []byte("Test Diner")))

	second := f.d.DispatchJSON(ctx, burgerJSON)
	assert.Equal(t, Suppressed, second.Outcome)
	assert.NoError(t, second.Err)
	assert.Equal(t, 1, f.sender.count())
}

func TestDispatchJSON_ValidationBoundary(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		field   string
		message string
	}{
		{"empty", "  ", "data", "Missing data"},
		{"null", "null", "data", "print payload is null"},
		{"no printer", `{"source":"socket","order":{"_id":"o1","items":[]},"restaurantInfo":{}}`, "printerInfo", "printer identifier payload is null"},
		{"blank ip", `{"source":"socket","order":{"_id":"o1","items":[]},"printerInfo":{"ip":" "},"restaurantInfo":{}}`, "printerInfo.ip", ""},
		{"no order", `{"source":"socket","printerInfo":{"ip":"10.0.0.5"},"restaurantInfo":{}}`, "order", "order in payload is null"},
		{"no order id", `{"source":"socket","order":{"items":[]},"printerInfo":{"ip":"10.0.0.5"},"restaurantInfo":{}}`, "order._id", ""},
		{"unknown field", `{"source":"socket","order":{"_id":"o1","items":[]},"printerInfo":{"ip":"10.0.0.5"},"extra":1}`, "data", ""},
		{"trailing data", `{"source":"socket","order":{"_id":"o1","items":[]},"printerInfo":{"ip":"10.0.0.5"}} {}`, "data", ""},
		{"wrong type", `{"source":"socket","order":{"_id":42},"printerInfo":{"ip":"10.0.0.5"}}`, "data", ""},
		{"bad port", `{"source":"socket","order":{"_id":"o1"},"printerInfo":{"ip":"10.0.0.5","port":70000}}`, "printerInfo.port", ""},
		{"huge columns", `{"source":"socket","order":{"_id":"o1"},"printerInfo":{"ip":"10.0.0.5","columns":20000000}}`, "printerInfo.columns", ""},
		{"negative columns", `{"source":"socket","order":{"_id":"o1"},"printerInfo":{"ip":"10.0.0.5","columns":-1}}`, "printerInfo.columns", ""},
		{"unknown printer type", `{"source":"socket","order":{"_id":"o1"},"printerInfo":{"ip":"10.0.0.5","type":"laser"}}`, "printerInfo.type", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			res := f.d.DispatchJSON(context.Background(), tt.payload)
			require.Equal(t, Rejected, res.Outcome)
			var verr *ValidationError
			require.ErrorAs(t, res.Err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			if tt.message != "" {
				assert.Equal(t, tt.message, verr.Message)
			}

			assert.Zero(t, f.guard.Len(), "guard state must not change")
			assert.Zero(t, f.sender.count(), "no connection may be attempted")
		})
	}
}

func TestDispatch_NilRequest(t *testing.T) {
	f := newFixture(t)
	res := f.d.Dispatch(context.Background(), nil)
	var verr *ValidationError
	require.ErrorAs(t, res.Err, &verr)
	assert.Equal(t, "print payload is null", verr.Message)
}

func TestDispatch_EmptyItemsAreValid(t *testing.T) {
	f := newFixture(t)
	req := request(model.SourceManual, "o1")
	req.Order.Items = nil
	req.RestaurantInfo = nil

	res := f.d.Dispatch(context.Background(), req)
	assert.Equal(t, Printed, res.Outcome)
}

func TestDispatch_NonSocketSourcesBypassGuard(t *testing.T) {
	for _, source := range []string{model.SourceManual, model.SourceKafka, ""} {
		t.Run("source="+source, func(t *testing.T) {
			f := newFixture(t)
			for i := 0; i < 2; i++ {
				res := f.d.Dispatch(context.Background(), request(source, "o1"))
				assert.Equal(t, Printed, res.Outcome)
			}
			assert.Equal(t, 2, f.sender.count())
			assert.Zero(t, f.guard.Len())
		})
	}
}

func TestDispatch_ConcurrentSocketDuplicatesPrintOnce(t *testing.T) {
	f := newFixture(t)

	const n = 32
	results := make([]Result, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.d.Dispatch(context.Background(), request(model.SourceSocket, "o1"))
		}(i)
	}
	wg.Wait()

	counts := map[Outcome]int{}
	for _, r := range results {
		counts[r.Outcome]++
	}
	assert.Equal(t, 1, counts[Printed])
	assert.Equal(t, n-1, counts[Suppressed])
	assert.Equal(t, 1, f.sender.count())
}

func TestDispatch_RetriesConnectionFailures(t *testing.T) {
	f := newFixture(t)
	f.sender.errs = []error{connErr(), connErr()}

	res := f.d.Dispatch(context.Background(), request(model.SourceSocket, "o1"))
	assert.Equal(t, Printed, res.Outcome)
	assert.Equal(t, 3, res.Attempts)
}

func TestDispatch_GivesUpAfterRetries(t *testing.T) {
	f := newFixture(t, WithRetries(1))
	f.sender.errs = []error{connErr(), connErr(), connErr()}

	res := f.d.Dispatch(context.Background(), request(model.SourceSocket, "o1"))
	require.Equal(t, Rejected, res.Outcome)
	var cerr *printer.ConnectionError
	assert.ErrorAs(t, res.Err, &cerr)
	assert.Equal(t, 2, res.Attempts)

	// strict policy keeps the admission
	again := f.d.Dispatch(context.Background(), request(model.SourceSocket, "o1"))
	assert.Equal(t, Suppressed, again.Outcome)
}

func TestDispatch_ReleaseOnConnectFailure(t *testing.T) {
	f := newFixture(t, WithRetries(0), WithPolicy(PolicyReleaseOnConnectFailure))
	f.sender.errs = []error{connErr()}

	res := f.d.Dispatch(context.Background(), request(model.SourceSocket, "o1"))
	require.Equal(t, Rejected, res.Outcome)
	assert.Zero(t, f.guard.Len())

	again := f.d.Dispatch(context.Background(), request(model.SourceSocket, "o1"))
	assert.Equal(t, Printed, again.Outcome)
}

// cancellingSender fails with a connection error and cancels the caller's
// context, so the dispatcher stops inside its backoff.
type cancellingSender struct {
	cancel context.CancelFunc
	calls  int
}

func (s *cancellingSender) Send(context.Context, string, []byte) error {
	s.calls++
	s.cancel()
	return connErr()
}

func TestDispatch_CancelDuringBackoffKeepsConnectionError(t *testing.T) {
	text, err := receipt.NewFormatter(receipt.Options{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := guard.NewMemory()
	s := &cancellingSender{cancel: cancel}
	d := New(g, s, text, WithRetries(5), WithRetryBase(time.Hour), WithPolicy(PolicyReleaseOnConnectFailure))

	res := d.Dispatch(ctx, request(model.SourceSocket, "o1"))
	require.Equal(t, Rejected, res.Outcome)
	assert.Equal(t, 1, s.calls)
	var cerr *printer.ConnectionError
	assert.ErrorAs(t, res.Err, &cerr)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Zero(t, g.Len(), "connect failure releases the admission")
}

func TestDispatch_WriteErrorIsNotRetriedOrReleased(t *testing.T) {
	f := newFixture(t, WithPolicy(PolicyReleaseOnConnectFailure))
	f.sender.errs = []error{&printer.WriteError{Addr: "10.0.0.5:9100", Written: 10, Err: errors.New("broken pipe")}}

	res := f.d.Dispatch(context.Background(), request(model.SourceSocket, "o1"))
	require.Equal(t, Rejected, res.Outcome)
	var werr *printer.WriteError
	assert.ErrorAs(t, res.Err, &werr)
	assert.Equal(t, 1, res.Attempts)

	again := f.d.Dispatch(context.Background(), request(model.SourceSocket, "o1"))
	assert.Equal(t, Suppressed, again.Outcome)
}

func TestDispatch_FormatterPanicIsRejected(t *testing.T) {
	f := newFixture(t, WithFormatter(model.PrinterTypeText, panicFormatter{}))
	req := request(model.SourceSocket, "o1")
	req.PrinterInfo.Type = model.PrinterTypeText

	var res Result
	require.NotPanics(t, func() { res = f.d.Dispatch(context.Background(), req) })
	require.Equal(t, Rejected, res.Outcome)
	var ferr *receipt.FormattingError
	assert.ErrorAs(t, res.Err, &ferr)
	assert.Zero(t, f.sender.count())
	// admitted before formatting and not released
	assert.Equal(t, 1, f.guard.Len())
}

func TestDispatch_GuardFailureRejects(t *testing.T) {
	text, err := receipt.NewFormatter(receipt.Options{})
	require.NoError(t, err)
	s := &recordingSender{}
	d := New(brokenGuard{}, s, text)

	res := d.Dispatch(context.Background(), request(model.SourceSocket, "o1"))
	require.Equal(t, Rejected, res.Outcome)
	var gerr *GuardError
	assert.ErrorAs(t, res.Err, &gerr)
	assert.Zero(t, s.count())
}

func TestDispatch_FormatterByPrinterType(t *testing.T) {
	raster := constFormatter("RASTER")
	f := newFixture(t, WithFormatter(model.PrinterTypeRaster, raster))
	req := request(model.SourceManual, "o1")
	req.PrinterInfo.Type = model.PrinterTypeRaster
	req.PrinterInfo.Port = 9200

	res := f.d.Dispatch(context.Background(), req)
	require.Equal(t, Printed, res.Outcome)
	assert.Equal(t, []byte("RASTER"), f.sender.calls[0].data)
	assert.Equal(t, "10.0.0.5:9200", f.sender.calls[0].addr)
}

type panicReporter struct{}

func (panicReporter) Report(telemetry.Event) { panic("telemetry down") }

func TestDispatch_ReporterCannotAffectOutcome(t *testing.T) {
	f := newFixture(t, WithReporter(panicReporter{}))
	res := f.d.Dispatch(context.Background(), request(model.SourceSocket, "o1"))
	assert.Equal(t, Printed, res.Outcome)
}

func TestDispatch_ReportsEveryOutcome(t *testing.T) {
	ids := 0
	f := newFixture(t, WithIDGenerator(func() string { ids++; return fmt.Sprintf("job-%d", ids) }))

	f.d.Dispatch(context.Background(), request(model.SourceSocket, "o1"))
	f.d.Dispatch(context.Background(), request(model.SourceSocket, "o1"))
	f.d.DispatchJSON(context.Background(), "")

	require.Len(t, f.events.all, 3)
	assert.Equal(t, "job-1", f.events.all[0].JobID)
	assert.Equal(t, "printed", f.events.all[0].Outcome)
	assert.Equal(t, "o1", f.events.all[0].OrderID)
	assert.Equal(t, "10.0.0.5:9100", f.events.all[0].Printer)
	assert.Equal(t, len(f.sender.calls[0].data), f.events.all[0].Bytes)
	assert.Equal(t, "suppressed", f.events.all[1].Outcome)
	assert.Equal(t, "rejected", f.events.all[2].Outcome)
	assert.Equal(t, "Missing data", f.events.all[2].Error)
}

func TestDispatchJSONWith_SourceRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	manual := `{"source":"manual","order":{"_id":"o1","items":[]},"printerInfo":{"ip":"10.0.0.5"}}`
	unsourced := `{"order":{"_id":"o2","items":[]},"printerInfo":{"ip":"10.0.0.5"}}`

	res := f.d.DispatchJSONWith(ctx, manual, DefaultSource(model.SourceKafka))
	require.Equal(t, Printed, res.Outcome)
	assert.Equal(t, "o1", res.OrderID)
	assert.Equal(t, model.SourceManual, f.events.all[0].Source)

	f.d.DispatchJSONWith(ctx, unsourced, DefaultSource(model.SourceKafka))
	assert.Equal(t, model.SourceKafka, f.events.all[1].Source)

	f.d.DispatchJSONWith(ctx, manual, ForceSource(model.SourceSocket))
	assert.Equal(t, model.SourceSocket, f.events.all[2].Source)
	again := f.d.DispatchJSONWith(ctx, manual, ForceSource(model.SourceSocket))
	assert.Equal(t, Suppressed, again.Outcome, "forced socket source goes through the guard")
}

func TestDispatchJSONWith_MalformedPayloadIsReported(t *testing.T) {
	f := newFixture(t)

	res := f.d.DispatchJSONWith(context.Background(), `not json`, ForceSource(model.SourceSocket))
	require.Equal(t, Rejected, res.Outcome)
	assert.NotEmpty(t, res.JobID)
	var verr *ValidationError
	require.ErrorAs(t, res.Err, &verr)

	require.Len(t, f.events.all, 1)
	ev := f.events.all[0]
	assert.Equal(t, "rejected", ev.Outcome)
	assert.Equal(t, res.JobID, ev.JobID)
	assert.Equal(t, model.SourceSocket, ev.Source)
	assert.Contains(t, ev.Error, "invalid print payload")
	assert.Zero(t, f.sender.count())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, p)

	p, err = ParsePolicy("release-on-connect-failure")
	require.NoError(t, err)
	assert.Equal(t, PolicyReleaseOnConnectFailure, p)

	_, err = ParsePolicy("sometimes")
	assert.Error(t, err)
}
