package transport

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketConfig configures the WebSocket adapter.
type WebSocketConfig struct {
	Addr string `help:"WebSocket listen address" default:":8480" env:"RELAYKVM_WS_ADDR"`
	Path string `help:"WebSocket endpoint path" default:"/bridge" env:"RELAYKVM_WS_PATH"`
}

// WebSocket serves the protocol to a browser over a local-network WebSocket.
// Exactly one controller is active; a new connection supersedes the current
// one (the old peer is closed and its disconnect is delivered before the new
// peer's connect). Frames travel in binary messages, one chunk per message;
// WebSocket messages have no small MTU so no chunking is applied.
type WebSocket struct {
	cfg    WebSocketConfig
	queue  *Queue
	logger *slog.Logger

	// handover serializes the detach/wait/install sequence so two
	// connections arriving together cannot both install themselves.
	handover sync.Mutex

	mu       sync.Mutex
	conn     *websocket.Conn
	connDone chan struct{} // closed when conn's read loop has fully exited

	ready chan struct{}
	addr  net.Addr
}

// NewWebSocket creates a WebSocket transport.
func NewWebSocket(cfg WebSocketConfig, logger *slog.Logger) *WebSocket {
	return &WebSocket{
		cfg:    cfg,
		queue:  NewQueue(DefaultQueueSize),
		logger: logger,
		ready:  make(chan struct{}),
	}
}

// Ready is closed once the listener is bound.
func (w *WebSocket) Ready() <-chan struct{} { return w.ready }

// BoundAddr returns the listen address; valid after Ready.
func (w *WebSocket) BoundAddr() net.Addr { return w.addr }

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The browser UI is served from anywhere on the LAN; the protocol has no
	// cookie-based ambient authority to protect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Run listens for controller connections until ctx is cancelled.
func (w *WebSocket) Run(ctx context.Context, h Handler) error {
	ln, err := net.Listen("tcp", w.cfg.Addr)
	if err != nil {
		return err
	}
	w.addr = ln.Addr()
	close(w.ready)
	w.logger.Info("websocket listening", "addr", w.addr.String(), "path", w.cfg.Path)

	drainCtx, stopDrain := context.WithCancel(ctx)
	defer stopDrain()
	go w.queue.Drain(drainCtx, w.write)

	mux := http.NewServeMux()
	mux.HandleFunc(w.cfg.Path, func(rw http.ResponseWriter, r *http.Request) {
		w.serveConn(rw, r, h)
	})

	srv := &http.Server{Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	err = srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (w *WebSocket) serveConn(rw http.ResponseWriter, r *http.Request, h Handler) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	// Supersede: the newest controller wins. Detach the old connection first
	// so its read loop cannot report a disconnect for the new session, close
	// it, then wait for its read loop to return. The old loop may be inside
	// HandleData when Close lands; delivering the old session's disconnect
	// (or the new session's connect) before that call finishes would hand the
	// handler overlapping calls and let stale bytes arrive after the new
	// peer's connect.
	w.handover.Lock()
	w.mu.Lock()
	old, oldDone := w.conn, w.connDone
	w.conn, w.connDone = nil, nil
	w.mu.Unlock()
	if old != nil {
		w.logger.Info("superseding active controller", "new", r.RemoteAddr)
		_ = old.Close()
		<-oldDone
		h.HandleDisconnect()
	}

	done := make(chan struct{})
	h.HandleConnect(r.RemoteAddr)
	w.mu.Lock()
	w.conn, w.connDone = conn, done
	w.mu.Unlock()
	w.handover.Unlock()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		h.HandleData(data)
	}

	// Only the connection that is still current reports the disconnect;
	// superseded connections are handled by their replacement above. done is
	// closed after the last HandleData has returned, which is what the
	// superseding goroutine waits on.
	w.mu.Lock()
	current := w.conn == conn
	if current {
		w.conn, w.connDone = nil, nil
	}
	w.mu.Unlock()
	_ = conn.Close()
	close(done)
	if current {
		h.HandleDisconnect()
	}
}

func (w *WebSocket) write(data []byte) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

// Send queues data for transmission to the active controller.
func (w *WebSocket) Send(ctx context.Context, data []byte) error {
	return w.queue.Send(ctx, data)
}
