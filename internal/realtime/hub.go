// File: internal/realtime/hub.go
// Description: Websocket hub. Connected clients live in an explicit
// registry (added on connect, removed on disconnect); each connection gets
// its own write pump with keepalive pings. Events are best-effort: a slow
// consumer drops its oldest queued event rather than stalling the hub.
package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nexus-desktop/nexus-agent/api/schemas"
	"github.com/nexus-desktop/nexus-agent/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Hub relays realtime events between clients and the agent's collaborators.
type Hub struct {
	cfg      config.RealtimeConfig
	executor schemas.ActionExecutor
	capture  schemas.CaptureProvider
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu      sync.Mutex
	clients map[string]*clientConn
	closed  bool
}

type clientConn struct {
	id      string
	writeCh chan schemas.Event
	cancel  context.CancelFunc
	limiter *rate.Limiter
}

// NewHub builds a hub. allowedOrigin restricts browser connections; empty
// allows any origin (demo default).
func NewHub(cfg config.RealtimeConfig, allowedOrigin string, exec schemas.ActionExecutor, cap schemas.CaptureProvider, logger *zap.Logger) *Hub {
	return &Hub{
		cfg:      cfg,
		executor: exec,
		capture:  cap,
		log:      logger.Named("realtime"),
		clients:  make(map[string]*clientConn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues an event for every connected client.
func (h *Hub) Broadcast(eventType string, data any) {
	ev := schemas.Event{Type: eventType, Data: data, Timestamp: time.Now().UnixMilli()}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		c.push(ev)
	}
}

// SendTo queues an event for one client; unknown ids are ignored.
func (h *Hub) SendTo(clientID, eventType string, data any) {
	ev := schemas.Event{Type: eventType, Data: data, Timestamp: time.Now().UnixMilli()}
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[clientID]; ok {
		c.push(ev)
	}
}

// Close disconnects every client and refuses new connections.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*clientConn, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.cancel()
	}
}

// HandleWS upgrades the request and serves the connection until it drops.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	h.mu.Unlock()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := &clientConn{
		id:      uuid.NewString(),
		writeCh: make(chan schemas.Event, h.cfg.SendBuffer),
		cancel:  cancel,
		limiter: rate.NewLimiter(rate.Limit(h.cfg.ExecuteRate), h.cfg.ExecuteBurst),
	}

	h.register(client)
	defer h.unregister(client.id)

	writerDone := make(chan struct{})
	go h.writePump(ctx, conn, client, writerDone)

	client.push(schemas.Event{
		Type:      "welcome",
		Data:      map[string]any{"message": "Connected to Nexus realtime server", "clientId": client.id},
		Timestamp: time.Now().UnixMilli(),
	})

	if err := conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		var ev schemas.Event
		if err := conn.ReadJSON(&ev); err != nil {
			h.log.Debug("client disconnected", zap.String("client", client.id), zap.Error(err))
			cancel()
			<-writerDone
			return
		}
		h.dispatch(ctx, client, ev)
	}
}

func (h *Hub) register(c *clientConn) {
	h.mu.Lock()
	h.clients[c.id] = c
	count := len(h.clients)
	h.mu.Unlock()
	h.log.Info("client connected", zap.String("client", c.id), zap.Int("connected", count))
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	delete(h.clients, id)
	count := len(h.clients)
	h.mu.Unlock()
	h.log.Info("client removed", zap.String("client", id), zap.Int("connected", count))
}

func (h *Hub) writePump(ctx context.Context, conn *websocket.Conn, c *clientConn, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.writeCh:
			if err := conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait)); err != nil {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				h.log.Error("failed to marshal event", zap.String("type", ev.Type), zap.Error(err))
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, c *clientConn, ev schemas.Event) {
	switch ev.Type {
	case "message":
		// Echo back with a server timestamp.
		c.push(schemas.Event{Type: "echo", Data: ev.Data, Timestamp: time.Now().UnixMilli()})

	case "execute-action":
		if !c.limiter.Allow() {
			c.push(errorEvent("action-error", "rate limit exceeded"))
			return
		}
		req, ok := decodeExecuteRequest(ev.Data)
		if !ok {
			c.push(errorEvent("action-error", "execute-action requires a type"))
			return
		}
		// Acknowledged asynchronously; the read loop keeps serving.
		go func() {
			result, err := h.executor.Execute(ctx, req)
			if err != nil {
				c.push(errorEvent("action-error", err.Error()))
				return
			}
			c.push(schemas.Event{Type: "action-result", Data: result, Timestamp: time.Now().UnixMilli()})
		}()

	case "request-screenshot":
		c.push(schemas.Event{Type: "screenshot-data", Data: h.screenshotData(ctx), Timestamp: time.Now().UnixMilli()})

	case "request-screen-stream":
		c.push(schemas.Event{
			Type:      "screen-stream-offer",
			Data:      map[string]any{"message": "WebRTC streaming not yet implemented"},
			Timestamp: time.Now().UnixMilli(),
		})

	default:
		c.push(errorEvent("error", "unsupported event type: "+ev.Type))
	}
}

func (h *Hub) screenshotData(ctx context.Context) map[string]any {
	if h.capture != nil && h.capture.Active() {
		if frame, err := h.capture.Frame(ctx); err == nil {
			return map[string]any{"data": frame.Data, "width": frame.Width, "height": frame.Height}
		}
	}
	return map[string]any{"data": "mock-screenshot-base64", "width": 1920, "height": 1080}
}

// push queues an event, dropping the oldest queued one when the buffer is
// full. Realtime traffic is best-effort by contract.
func (c *clientConn) push(ev schemas.Event) {
	select {
	case c.writeCh <- ev:
		return
	default:
	}
	select {
	case <-c.writeCh:
	default:
	}
	select {
	case c.writeCh <- ev:
	default:
	}
}

func errorEvent(eventType, msg string) schemas.Event {
	return schemas.Event{
		Type:      eventType,
		Data:      map[string]any{"error": msg},
		Timestamp: time.Now().UnixMilli(),
	}
}

func decodeExecuteRequest(data any) (schemas.ExecutionRequest, bool) {
	raw, err := json.Marshal(data)
	if err != nil {
		return schemas.ExecutionRequest{}, false
	}
	var req schemas.ExecutionRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.Kind == "" {
		return schemas.ExecutionRequest{}, false
	}
	return req, true
}
