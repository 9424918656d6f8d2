package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
)

// ProgressFunc receives compile progress. It must not block.
type ProgressFunc func(percent int, status string)

type ProgressUpdate struct {
	Percent int    `json:"percent"`
	Status  string `json:"status"`
}

func clampPercent(p int) int {
	return min(max(p, 0), 100)
}

// logProgress writes every update to the log.
func logProgress(log zerolog.Logger) ProgressFunc {
	return func(percent int, status string) {
		log.Info().Int("percent", percent).Msg(status)
	}
}

// teeProgress forwards to every non-nil fn.
func teeProgress(fns ...ProgressFunc) ProgressFunc {
	return func(percent int, status string) {
		for _, fn := range fns {
			if fn != nil {
				fn(percent, status)
			}
		}
	}
}

// ProgressHub pushes progress to websocket clients on /progress. A client
// that falls behind loses updates instead of slowing the compile down.
type ProgressHub struct {
	mu      sync.Mutex
	clients map[chan ProgressUpdate]struct{}
	last    *ProgressUpdate
	closed  bool
	log     zerolog.Logger
}

func NewProgressHub(log zerolog.Logger) *ProgressHub {
	return &ProgressHub{clients: make(map[chan ProgressUpdate]struct{}), log: log}
}

func (h *ProgressHub) subscribe() chan ProgressUpdate {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan ProgressUpdate, 16)
	if h.last != nil {
		ch <- *h.last
	}
	if h.closed {
		close(ch)
		return ch
	}
	h.clients[ch] = struct{}{}
	return ch
}

func (h *ProgressHub) unsubscribe(ch chan ProgressUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

// Publish sends p to every client without waiting.
func (h *ProgressHub) Publish(p ProgressUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = &p
	for ch := range h.clients {
		select {
		case ch <- p:
		default:
		}
	}
}

// Report adapts the hub to a ProgressFunc.
func (h *ProgressHub) Report(percent int, status string) {
	h.Publish(ProgressUpdate{Percent: percent, Status: status})
}

// Close ends every client stream once its pending updates are sent.
func (h *ProgressHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.clients {
		delete(h.clients, ch)
		close(ch)
	}
}

func (h *ProgressHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Debug().Err(err).Msg("progress client rejected")
		return
	}
	defer c.CloseNow()

	ctx := c.CloseRead(r.Context())
	ch := h.subscribe()
	defer h.unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-ch:
			if !ok {
				c.Close(websocket.StatusNormalClosure, "done")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(wctx, c, p)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// ListenAndServe serves the hub on addr until ctx is done.
func (h *ProgressHub) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/progress", h)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()
	h.log.Info().Str("addr", addr).Msg("progress available on /progress")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
