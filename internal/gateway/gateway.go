package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"github.com/pixil98/go-revival/internal/protocol"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 256
)

type bus interface {
	WaitReady(ctx context.Context) error
	Subscribe(subject string, handler func(msg *nats.Msg)) (func(), error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, ev *protocol.Event) (any, error)
}

// Gateway bridges session websockets onto the broker: frames published for a
// session are forwarded to its socket and events read from the socket are
// dispatched as if they came from the host. Upgrades must present the shared
// host token; with no token configured every upgrade is refused.
type Gateway struct {
	addr       string
	token      []byte
	bus        bus
	dispatcher Dispatcher
	frameType  int
	upgrader   websocket.Upgrader
}

func NewGateway(addr, token string, b bus, d Dispatcher, codec protocol.Codec) *Gateway {
	frameType := websocket.TextMessage
	if codec.Name() != "json" {
		frameType = websocket.BinaryMessage
	}

	return &Gateway{
		addr:       addr,
		token:      []byte(token),
		bus:        b,
		dispatcher: d,
		frameType:  frameType,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (g *Gateway) Start(ctx context.Context) error {
	if err := g.bus.WaitReady(ctx); err != nil {
		return nil
	}

	srv := &http.Server{
		Addr:        g.addr,
		Handler:     g.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "gateway listening", "addr", g.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("gateway: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeWait)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("stopping gateway: %w", err)
	}
	return nil
}

// authorized reports whether r carries the host token, either as a bearer
// Authorization header or a token query parameter.
func (g *Gateway) authorized(r *http.Request) bool {
	if len(g.token) == 0 {
		return false
	}
	presented := r.URL.Query().Get("token")
	if h := r.Header.Get("Authorization"); h != "" {
		presented = strings.TrimPrefix(h, "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(presented), g.token) == 1
}

func (g *Gateway) serveWS(w http.ResponseWriter, r *http.Request) {
	if !g.authorized(r) {
		slog.WarnContext(r.Context(), "rejecting unauthenticated session socket", "remote", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(r.URL.Query().Get("session"))
	if err != nil {
		http.Error(w, "missing or invalid session", http.StatusBadRequest)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:   id,
		conn: conn,
		send: make(chan outbound, sendBuffer),
	}

	unsubscribe, err := g.bus.Subscribe(protocol.SessionSubject(id), func(msg *nats.Msg) {
		c.enqueue(outbound{kind: g.frameType, data: msg.Data})
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "subscribing session frames", "session", id, "error", err)
		_ = conn.Close()
		return
	}

	ctx := context.WithoutCancel(r.Context())
	slog.InfoContext(ctx, "session connected", "session", id)

	go c.writePump()
	c.readPump(ctx, g.dispatcher)

	unsubscribe()
	c.close()

	quit := &protocol.Event{Type: protocol.EventQuit, Session: id}
	if _, err := g.dispatcher.Dispatch(ctx, quit); err != nil {
		slog.WarnContext(ctx, "dispatching quit", "session", id, "error", err)
	}
	slog.InfoContext(ctx, "session disconnected", "session", id)
}

type outbound struct {
	kind int
	data []byte
}

type client struct {
	id   uuid.UUID
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan outbound
	closed bool
}

// enqueue drops the frame when the socket cannot keep up or has gone.
func (c *client) enqueue(o outbound) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	select {
	case c.send <- o:
	default:
		slog.Warn("dropping frame for slow session", "session", c.id)
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case o, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(o.kind, o.data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump(ctx context.Context, d Dispatcher) {
	defer func() { _ = c.conn.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var ev protocol.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			slog.WarnContext(ctx, "discarding malformed event", "session", c.id, "error", err)
			continue
		}
		// A socket only speaks for its own session.
		ev.Session = c.id

		body, err := d.Dispatch(ctx, &ev)
		if err != nil {
			slog.WarnContext(ctx, "event failed", "session", c.id, "type", ev.Type, "error", err)
		}
		if !expectsReply(ev.Type) && err == nil {
			continue
		}

		reply, err := json.Marshal(replyTo(ev.Type, body, err))
		if err != nil {
			slog.ErrorContext(ctx, "encoding reply", "error", err)
			continue
		}
		c.enqueue(outbound{kind: websocket.TextMessage, data: reply})
	}
}

func expectsReply(t protocol.EventType) bool {
	return t == protocol.EventRespawn || t == protocol.EventAdmin
}

// socketReply tags a reply with the event it answers, since a socket carries
// many requests.
type socketReply struct {
	Type protocol.EventType `json:"type"`
	protocol.Reply
}

func replyTo(t protocol.EventType, body any, err error) socketReply {
	r := socketReply{Type: t}
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.Body = body
	return r
}
