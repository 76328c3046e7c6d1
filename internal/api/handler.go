// Package api exposes the print dispatcher over HTTP. The bridge endpoint
// takes the same serialized request the mobile shell hands to its printer
// plugin.
package api

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/0xV8/orderbuddy-main/internal/dispatch"
	"github.com/0xV8/orderbuddy-main/internal/model"
	"github.com/0xV8/orderbuddy-main/internal/printer"
	"github.com/0xV8/orderbuddy-main/internal/receipt"
)

const (
	maxBodyBytes        = 1 << 20
	DefaultProbeTimeout = 2 * time.Second
)

type Dispatcher interface {
	DispatchJSON(ctx context.Context, data string) dispatch.Result
	DispatchJSONWith(ctx context.Context, data string, prepare dispatch.Prepare) dispatch.Result
}

type PrintHandler struct {
	d            Dispatcher
	probeTimeout time.Duration
}

func NewPrintHandler(d Dispatcher, probeTimeout time.Duration) *PrintHandler {
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	return &PrintHandler{d: d, probeTimeout: probeTimeout}
}

func (h *PrintHandler) Register(r chi.Router) {
	r.Post("/v1/bridge/printOverNetwork", h.PrintOverNetwork)
	r.Post("/v1/print", h.Print)
	r.Get("/v1/printers/{ip}/probe", h.Probe)
	r.Get("/healthz", h.Health)
}

// NewRouter wires the handler behind the usual middleware stack.
func NewRouter(h *PrintHandler, log *zap.Logger, timeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	h.Register(r)
	return r
}

type bridgeCall struct {
	Data string `json:"data"`
}

type printResponse struct {
	Status string `json:"status"`
	JobID  string `json:"jobId,omitempty"`
	Error  string `json:"error,omitempty"`
	Cause  string `json:"cause,omitempty"`
}

// PrintOverNetwork takes {"data": "<serialized print request>"}.
func (h *PrintHandler) PrintOverNetwork(w http.ResponseWriter, r *http.Request) {
	var call bridgeCall
	if err := decodeJSON(http.MaxBytesReader(w, r.Body, maxBodyBytes), &call); err != nil && !errors.Is(err, io.EOF) {
		httpError(w, http.StatusBadRequest, "invalid bridge call: "+err.Error())
		return
	}
	writeResult(w, h.d.DispatchJSON(r.Context(), call.Data))
}

// Print takes the print request itself as the body. Requests without a
// source are tagged as http.
func (h *PrintHandler) Print(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httpError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	writeResult(w, h.d.DispatchJSONWith(r.Context(), string(body), dispatch.DefaultSource(model.SourceHTTP)))
}

func (h *PrintHandler) Probe(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	port := model.DefaultPrinterPort
	if p := r.URL.Query().Get("port"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 || n > 65535 {
			httpError(w, http.StatusBadRequest, "invalid port")
			return
		}
		port = n
	}
	if net.ParseIP(ip) == nil {
		httpError(w, http.StatusBadRequest, "invalid ip")
		return
	}

	addr := net.JoinHostPort(ip, strconv.Itoa(port))
	if err := printer.Probe(r.Context(), addr, h.probeTimeout); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"address": addr, "reachable": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": addr, "reachable": true})
}

func (h *PrintHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeResult(w http.ResponseWriter, res dispatch.Result) {
	resp := printResponse{Status: string(res.Outcome), JobID: res.JobID}
	if res.Outcome != dispatch.Rejected {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
		if cause := errors.Unwrap(res.Err); cause != nil {
			resp.Cause = cause.Error()
		}
	}
	writeJSON(w, statusFor(res.Err), resp)
}

func statusFor(err error) int {
	var (
		verr *dispatch.ValidationError
		ferr *receipt.FormattingError
		gerr *dispatch.GuardError
		cerr *printer.ConnectionError
		werr *printer.WriteError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &ferr):
		return http.StatusBadRequest
	case errors.As(err, &cerr), errors.As(err, &werr):
		return http.StatusBadGateway
	case errors.As(err, &gerr):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
