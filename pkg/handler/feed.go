package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/foomo/helpboard/pkg/metrics"
	"github.com/foomo/helpboard/post"
	httputils "github.com/foomo/keel/utils/net/http"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"
)

const (
	transportSSE       = "sse"
	transportWebSocket = "websocket"
)

// serveEvents streams filtered snapshots as server sent events
func (h *HTTP) serveEvents(w http.ResponseWriter, r *http.Request) error {
	filter, err := filterFromRequest(r)
	if err != nil {
		return err
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputils.ServerError(h.l, w, r, http.StatusInternalServerError, errors.New("streaming not supported"))
		return nil
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sub := h.hub.Subscribe(filter)
	defer sub.Close()
	metrics.FeedSubscribersGauge.WithLabelValues(transportSSE).Inc()
	defer metrics.FeedSubscribersGauge.WithLabelValues(transportSSE).Dec()

	l := h.l.With(zap.String("transport", transportSSE), zap.String("category", filter.String()))
	l.Debug("feed subscribed")
	defer l.Debug("feed unsubscribed")

	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return nil
	}
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return nil
		case snapshot, ok := <-sub.C():
			if !ok {
				return nil
			}
			data, err := json.Marshal(snapshot)
			if err != nil {
				l.Error("could not encode snapshot", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: snapshot\ndata: %s\n\n", snapshot.Version, data); err != nil {
				return nil
			}
			flusher.Flush()
			metrics.FeedSnapshotsCounter.WithLabelValues(transportSSE).Inc()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}

// serveWebSocket sends every filtered snapshot as one JSON message
func (h *HTTP) serveWebSocket(w http.ResponseWriter, r *http.Request) error {
	filter, err := filterFromRequest(r)
	if err != nil {
		return err
	}
	// a nil Handshake accepts any origin
	server := websocket.Server{
		Handler: func(ws *websocket.Conn) {
			h.streamWebSocket(ws, filter)
		},
	}
	server.ServeHTTP(w, r)
	return nil
}

func (h *HTTP) streamWebSocket(ws *websocket.Conn, filter post.Filter) {
	defer ws.Close()

	ctx, cancel := context.WithCancel(ws.Request().Context())
	defer cancel()

	sub := h.hub.Subscribe(filter)
	defer sub.Close()
	metrics.FeedSubscribersGauge.WithLabelValues(transportWebSocket).Inc()
	defer metrics.FeedSubscribersGauge.WithLabelValues(transportWebSocket).Dec()

	l := h.l.With(zap.String("transport", transportWebSocket), zap.String("category", filter.String()))
	l.Debug("feed subscribed")
	defer l.Debug("feed unsubscribed")

	// the client never sends anything, reading only detects the close
	go func() {
		defer cancel()
		var discard string
		for {
			if err := websocket.Message.Receive(ws, &discard); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-sub.C():
			if !ok {
				return
			}
			if err := websocket.JSON.Send(ws, snapshot); err != nil {
				l.Debug("could not send snapshot", zap.Error(err))
				return
			}
			metrics.FeedSnapshotsCounter.WithLabelValues(transportWebSocket).Inc()
		}
	}
}
