package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/doorsync/internal/server/middleware"
	"github.com/iudanet/doorsync/internal/server/presence"
	"github.com/iudanet/doorsync/internal/server/stream"
	"github.com/iudanet/doorsync/pkg/api"
)

const (
	// writeWait — предельное время записи одного сообщения.
	writeWait = 10 * time.Second
	// pongWait — сколько ждём pong, прежде чем счесть дверь отвалившейся.
	pongWait = 60 * time.Second
	// pingPeriod должен быть меньше pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// StreamHandler отдаёт live-поток изменений коллекции по websocket.
// Каждое сообщение — тот же конверт, что и ответ pull: документы батча
// и чекпоинт последнего из них.
type StreamHandler struct {
	logger   *slog.Logger
	bus      *stream.Bus
	tracker  *presence.Tracker
	upgrader websocket.Upgrader
}

// NewStreamHandler creates the live stream handler.
func NewStreamHandler(logger *slog.Logger, bus *stream.Bus, tracker *presence.Tracker) *StreamHandler {
	return &StreamHandler{
		logger:  logger,
		bus:     bus,
		tracker: tracker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Двери ходят с собственных устройств, не из браузера.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Stream обрабатывает GET /api/v1/stream/{collection}?door_id=...
// Подключение двери переводит её в ONLINE, разрыв — в OFFLINE.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	if !slices.Contains(api.Collections(), collection) {
		sendError(h.logger, w, fmt.Sprintf("unknown collection %q", collection), http.StatusNotFound)
		return
	}

	doorID := r.URL.Query().Get("door_id")
	if doorID == "" {
		doorID = middleware.DoorIDFromContext(r.Context())
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам ответил клиенту.
		h.logger.Warn("websocket upgrade failed", "collection", collection, "error", err)
		return
	}

	h.logger.Info("stream opened", "collection", collection, "door_id", doorID)
	h.serve(conn, collection, doorID)
}

// serve гоняет события шины в сокет до разрыва соединения. Контекст
// запроса после upgrade не годится, поэтому записи статуса двери идут
// с собственным таймаутом.
func (h *StreamHandler) serve(conn *websocket.Conn, collection, doorID string) {
	defer conn.Close()

	if err := h.setOnline(doorID, true); err != nil {
		h.logger.Error("failed to mark door online", "door_id", doorID, "error", err)
	}
	defer func() {
		if err := h.setOnline(doorID, false); err != nil {
			h.logger.Error("failed to mark door offline", "door_id", doorID, "error", err)
		}
		h.logger.Info("stream closed", "collection", collection, "door_id", doorID)
	}()

	events, unsubscribe := h.bus.Subscribe(collection)
	defer unsubscribe()

	// Читающая горутина следит за pong и закрытием со стороны двери.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			msg := api.PullResponse{
				Documents:  ev.Documents,
				Checkpoint: ev.Checkpoint.API(),
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Warn("stream write failed", "collection", collection, "door_id", doorID, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *StreamHandler) setOnline(doorID string, online bool) error {
	if h.tracker == nil || doorID == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if online {
		return h.tracker.Connect(ctx, doorID)
	}
	return h.tracker.Disconnect(ctx, doorID)
}
