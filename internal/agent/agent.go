// Package agent keeps a websocket connection to the ordering backend for
// each configured printer and prints the orders it pushes.
package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/0xV8/orderbuddy-main/internal/config"
	"github.com/0xV8/orderbuddy-main/internal/dispatch"
	"github.com/0xV8/orderbuddy-main/internal/model"
)

const DefaultReconnectDelay = 5 * time.Second

type Dispatcher interface {
	DispatchJSONWith(ctx context.Context, data string, prepare dispatch.Prepare) dispatch.Result
}

type Agent struct {
	printer        config.Printer
	wsURL          string
	apiKey         string
	reconnectDelay time.Duration
	d              Dispatcher
	log            *zap.Logger
}

func New(p config.Printer, wsURL, apiKey string, reconnectDelay time.Duration, d Dispatcher, log *zap.Logger) *Agent {
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	return &Agent{
		printer:        p,
		wsURL:          wsURL,
		apiKey:         apiKey,
		reconnectDelay: reconnectDelay,
		d:              d,
		log:            log.With(zap.String("printer", p.Label())),
	}
}

// Run connects and reconnects until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) {
	header := http.Header{}
	header.Add("X-Api-Key", a.apiKey)
	ua := model.UserAgent(ctx)
	if ua != "" {
		header.Set("User-Agent", ua)
	}

	a.log.Info("connecting to websocket", zap.String("url", a.wsURL), zap.String("agent", ua))
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, a.wsURL, header)
		if err != nil {
			a.log.Warn("connection failed, retrying", zap.Duration("in", a.reconnectDelay), zap.Error(err))
		} else {
			a.log.Info("connected")
			a.handleConnection(ctx, conn)
			conn.Close()
			a.log.Info("disconnected, reconnecting", zap.Duration("in", a.reconnectDelay))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(a.reconnectDelay):
		}
	}
}

// conn serializes writes; gorilla allows one concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(msg model.WSMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(msg)
}

func (a *Agent) handleConnection(ctx context.Context, ws *websocket.Conn) {
	c := &conn{ws: ws}

	// Unblock ReadJSON on shutdown.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			ws.Close()
		case <-stop:
		}
	}()

	if err := c.send(model.WSMessage{Type: model.MessageTypeRegister, AgentKey: a.printer.AgentKey}); err != nil {
		a.log.Warn("failed to send register", zap.Error(err))
		return
	}

	var jobs sync.WaitGroup
	defer jobs.Wait()

	for {
		var msg model.WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				a.log.Warn("read error", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case model.MessageTypeRegistered:
			a.log.Info("registered with server")

		case model.MessageTypePing:
			a.log.Debug("received ping, sending pong")
			if err := c.send(model.WSMessage{Type: model.MessageTypePong, AgentKey: a.printer.AgentKey}); err != nil {
				a.log.Warn("failed to send pong", zap.Error(err))
			}

		case model.MessageTypePrintOrder:
			a.log.Info("received print order")
			jobs.Add(1)
			go func(raw json.RawMessage) {
				defer jobs.Done()
				a.handlePrintJob(ctx, c, raw)
			}(msg.Request)

		case model.MessageTypeUnregister:
			a.log.Info("server requested unregister")
			return

		default:
			a.log.Warn("unknown message type", zap.String("type", string(msg.Type)))
		}
	}
}

// handlePrintJob prints one pushed order and answers with its outcome.
// The socket is the channel that redelivers, so every request is tagged
// socket regardless of what it says.
func (a *Agent) handlePrintJob(ctx context.Context, c *conn, raw json.RawMessage) {
	reply := model.WSMessage{AgentKey: a.printer.AgentKey}

	res := a.d.DispatchJSONWith(ctx, string(raw), a.prepare)
	reply.OrderID, reply.JobID = res.OrderID, res.JobID
	switch res.Outcome {
	case dispatch.Printed:
		reply.Type = model.MessageTypePrinted
	case dispatch.Suppressed:
		reply.Type = model.MessageTypePrintDuplicate
	default:
		reply.Type = model.MessageTypePrintFailed
		if res.Err != nil {
			reply.Error = res.Err.Error()
		}
	}
	a.reply(c, reply)
}

// prepare tags the request as socket-sourced and points it at this agent's
// printer when it names none.
func (a *Agent) prepare(req *model.PrintRequest) {
	req.Source = model.SourceSocket
	if req.PrinterInfo == nil {
		info := a.printer.PrinterInfo
		req.PrinterInfo = &info
	}
}

func (a *Agent) reply(c *conn, msg model.WSMessage) {
	if err := c.send(msg); err != nil {
		a.log.Warn("failed to send reply", zap.String("type", string(msg.Type)), zap.Error(err))
	}
}
