// Package feed mirrors the game to websocket clients so a browser or a
// second terminal can follow along.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/lox/acehigh/internal/coach"
	"github.com/lox/acehigh/internal/game"
	"github.com/lox/acehigh/internal/session"
)

// Snapshots is the source of the visible game state
type Snapshots interface {
	Get() *game.GameSnapshot
	Subscribe(fn func(*game.GameSnapshot)) func()
}

// Events is the source of orchestrator events
type Events interface {
	Subscribe(fn func(session.Event)) func()
}

// Advice is the source of coach advice
type Advice interface {
	Subscribe(fn func(coach.Advice)) func()
}

// Hub fans frames out to every connected client
type Hub struct {
	snapshots Snapshots
	logger    *log.Logger
	upgrader  websocket.Upgrader

	mu      sync.RWMutex
	clients map[*conn]struct{}
	closed  bool
	unsubs  []func()
}

// NewHub creates a hub that greets new clients with the current snapshot
func NewHub(snapshots Snapshots, logger *log.Logger, origins ...string) *Hub {
	h := &Hub{
		snapshots: snapshots,
		logger:    logger.WithPrefix("feed"),
		clients:   make(map[*conn]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(origins),
	}
	return h
}

func checkOrigin(origins []string) func(*http.Request) bool {
	if len(origins) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range origins {
			if o == origin {
				return true
			}
		}
		return false
	}
}

// Attach subscribes the hub to every source. Nil sources are skipped.
func (h *Hub) Attach(events Events, advice Advice) {
	unsubs := []func(){h.snapshots.Subscribe(h.PublishSnapshot)}
	if events != nil {
		unsubs = append(unsubs, events.Subscribe(h.PublishEvent))
	}
	if advice != nil {
		unsubs = append(unsubs, advice.Subscribe(h.PublishAdvice))
	}
	h.mu.Lock()
	h.unsubs = append(h.unsubs, unsubs...)
	h.mu.Unlock()
}

// PublishSnapshot sends snap, or null when the game is gone
func (h *Hub) PublishSnapshot(snap *game.GameSnapshot) {
	f, err := newFrame(FrameSnapshot, snap)
	h.broadcast(f, err)
}

// PublishEvent sends the frame for an orchestrator event, if it has one
func (h *Hub) PublishEvent(ev session.Event) {
	f, err := eventFrame(ev)
	h.broadcast(f, err)
}

// PublishAdvice sends coach advice
func (h *Hub) PublishAdvice(a coach.Advice) {
	f, err := adviceFrame(a)
	h.broadcast(f, err)
}

func (h *Hub) broadcast(f *Frame, err error) {
	if err != nil {
		h.logger.Error("failed to encode frame", "error", err)
		return
	}
	if f == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.enqueue(f)
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and registers the client
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", "error", err)
		return
	}
	c := newConn(ws, h.logger)

	f, err := newFrame(FrameSnapshot, h.snapshots.Get())
	if err != nil {
		h.logger.Error("failed to encode snapshot", "error", err)
		c.close()
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.close()
		return
	}
	h.clients[c] = struct{}{}
	// queued under the lock so it precedes any broadcast
	c.enqueue(f)
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client connected", "remote", r.RemoteAddr, "total", total)
	c.start()

	go func() {
		<-c.ctx.Done()
		h.mu.Lock()
		delete(h.clients, c)
		total := len(h.clients)
		h.mu.Unlock()
		h.logger.Info("client disconnected", "total", total)
	}()
}

// Close unsubscribes from every source and disconnects every client
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	unsubs := h.unsubs
	h.unsubs = nil
	clients := make([]*conn, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	for _, c := range clients {
		c.close()
	}
	return nil
}

// Handler returns the feed's HTTP routes
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, "OK")
	})
	return mux
}

// Serve listens on addr until ctx is cancelled
func (h *Hub) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("feed listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("feed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = h.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("feed shutdown: %w", err)
	}
	return nil
}
