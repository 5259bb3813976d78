package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/switchess/server/pkg/wire"
)

const (
	outboxSize   = 64
	writeTimeout = 10 * time.Second
)

// Handler receives decoded client events. HandleEvent runs on the
// connection's read goroutine.
type Handler interface {
	HandleEvent(c Conn, event string, data json.RawMessage)
	HandleDisconnect(c Conn)
}

// Gateway accepts websocket connections and pumps their events into the
// handler.
type Gateway struct {
	log     *zap.Logger
	handler Handler

	rootCtx    context.Context
	rootCancel context.CancelFunc
	wg         sync.WaitGroup
}

func NewGateway(log *zap.Logger, handler Handler) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		log:        log.Named("ws"),
		handler:    handler,
		rootCtx:    ctx,
		rootCancel: cancel,
	}
}

// Close tears down all live connections and waits for their pumps.
func (g *Gateway) Close() {
	g.rootCancel()
	g.wg.Wait()
}

// ServeHTTP upgrades the request and runs the connection until it drops.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		g.log.Warn("ws accept failed", zap.Error(err))
		return
	}

	c := &wsConn{
		id:     uuid.NewString(),
		user:   identify(r),
		ws:     ws,
		outbox: make(chan Envelope, outboxSize),
		done:   make(chan struct{}),
		log:    g.log,
	}

	ctx, cancel := context.WithCancel(g.rootCtx)
	defer cancel()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		c.writePump(ctx)
	}()

	g.readLoop(ctx, c)
	c.Close()
	g.handler.HandleDisconnect(c)
}

func (g *Gateway) readLoop(ctx context.Context, c *wsConn) {
	for {
		var raw struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := wsjson.Read(ctx, c.ws, &raw); err != nil {
			return
		}
		if raw.Event == "" {
			continue
		}
		g.handler.HandleEvent(c, raw.Event, raw.Data)
	}
}

// identify resolves the connecting user from handshake headers, falling
// back to query parameters and finally to a guest identity.
func identify(r *http.Request) wire.User {
	idStr := r.Header.Get("X-User-Id")
	name := r.Header.Get("X-User-Name")
	if idStr == "" {
		idStr = r.URL.Query().Get("userid")
	}
	if name == "" {
		name = r.URL.Query().Get("name")
	}
	id, _ := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
	if id == 0 {
		// Guests get a throwaway positive id for this connection.
		id = int64(uuid.New().ID())
	}
	if strings.TrimSpace(name) == "" {
		name = "guest"
	}
	return wire.User{ID: id, Name: name}
}

type wsConn struct {
	id   string
	user wire.User
	ws   *websocket.Conn
	log  *zap.Logger

	outbox    chan Envelope
	done      chan struct{}
	closeOnce sync.Once
}

func (c *wsConn) ID() string      { return c.id }
func (c *wsConn) User() wire.User { return c.user }

func (c *wsConn) Emit(event string, payload any) {
	select {
	case c.outbox <- Envelope{Event: event, Data: payload}:
	case <-c.done:
	default:
		// Slow consumer; drop rather than stall the room.
		c.log.Warn("dropping event for slow connection",
			zap.String("conn", c.id), zap.String("event", event))
	}
}

func (c *wsConn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close(websocket.StatusNormalClosure, "bye")
	})
}

// writePump is the only goroutine allowed to write to the socket.
func (c *wsConn) writePump(ctx context.Context) {
	for {
		select {
		case env := <-c.outbox:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.ws, env)
			cancel()
			if err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		case <-ctx.Done():
			c.Close()
			return
		}
	}
}
