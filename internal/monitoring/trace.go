package monitoring

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Trace is a one-way notification about a decision cycle, tool call or model
// call, for external visualization. Emission is best-effort: a missing or
// failing collaborator never affects core behavior.
type Trace struct {
	Kind      string            `json:"kind"`
	AgentID   string            `json:"agent_id"`
	Round     int               `json:"round"`
	Detail    map[string]string `json:"detail,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Emitter publishes traces to the observability collaborator.
type Emitter interface {
	Emit(Trace)
	Close() error
}

// NoopEmitter discards every trace. Used when no endpoint is configured.
type NoopEmitter struct{}

func (NoopEmitter) Emit(Trace)   {}
func (NoopEmitter) Close() error { return nil }

const redialBackoff = 30 * time.Second

// WebsocketEmitter streams traces to a websocket endpoint. Dialing is lazy
// and failures drop the trace; a dead endpoint is retried with a backoff so
// a long run does not stall on connect timeouts.
type WebsocketEmitter struct {
	url    string
	logger *zap.SugaredLogger

	mu          sync.Mutex
	conn        *websocket.Conn
	lastAttempt time.Time
}

// NewWebsocketEmitter creates an emitter for the given ws:// endpoint.
func NewWebsocketEmitter(url string, logger *zap.Logger) *WebsocketEmitter {
	return &WebsocketEmitter{url: url, logger: logger.Sugar()}
}

// Emit sends one trace, dropping it on any connectivity problem.
func (e *WebsocketEmitter) Emit(t Trace) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn == nil {
		if time.Since(e.lastAttempt) < redialBackoff {
			return
		}
		e.lastAttempt = time.Now()
		dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
		conn, _, err := dialer.Dial(e.url, nil)
		if err != nil {
			e.logger.Debugw("trace endpoint unreachable", "url", e.url, "error", err)
			return
		}
		e.conn = conn
	}

	if err := e.conn.WriteJSON(t); err != nil {
		e.logger.Debugw("trace write failed, dropping connection", "error", err)
		e.conn.Close()
		e.conn = nil
	}
}

// Close shuts the connection down if one was established.
func (e *WebsocketEmitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn == nil {
		return nil
	}
	err := e.conn.Close()
	e.conn = nil
	return err
}
