// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/gatewatch/internal/adapters/broadcast"
	"github.com/okian/gatewatch/internal/domain/model"
	"github.com/okian/gatewatch/pkg/logger"
)

// WebSocket timing constants.
const (
	wsWriteTimeout   = 10 * time.Second
	wsReadLimit      = 4096
	wsServerPingTick = 30 * time.Second
)

// EventSource registers live subscribers for the WebSocket endpoint.
type EventSource interface {
	Subscribe(f broadcast.Filter) *broadcast.Subscriber
	Unsubscribe(id string)
}

// SnapshotSource provides the initial state sent to a fresh subscriber.
type SnapshotSource interface {
	Recent(ctx context.Context, cameraID string, minConfidence float64) []map[string]interface{}
}

// WSHandler upgrades connections and bridges them to the broadcaster.
type WSHandler struct {
	source   EventSource
	snapshot SnapshotSource
	upgrader websocket.Upgrader
	logger   logger.Logger
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(source EventSource) *WSHandler {
	return &WSHandler{
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser dashboards connect cross-origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.Get().Named("ws"),
	}
}

// wsControl mirrors the client-to-server control schema.
type wsControl struct {
	Action string `json:"action"` // subscribe, unsubscribe, ping
	Filter struct {
		CameraID      string  `json:"camera_id,omitempty"`
		PersonID      string  `json:"person_id,omitempty"`
		MinConfidence float64 `json:"min_confidence,omitempty"`
	} `json:"filter,omitempty"`
}

// HandleWS handles GET /api/v1/ws requests. Initial filters come from query
// parameters and can be replaced with subscribe control messages.
func (h *WSHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	const op = "api.ws"

	q := r.URL.Query()
	filter := broadcast.Filter{
		CameraID: q.Get("camera_id"),
		PersonID: q.Get("person_id"),
	}
	if raw := q.Get("min_confidence"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			writeError(w, http.StatusBadRequest, "bad_request",
				WrapKind(op, ErrBadRequest, errors.New("invalid min_confidence; must be in [0, 1]")))
			return
		}
		filter.MinConfidence = v
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}

	sub := h.source.Subscribe(filter)
	defer func() {
		h.source.Unsubscribe(sub.ID)
		_ = conn.Close()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Bring the fresh subscriber up to date before streaming deltas.
	if h.snapshot != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		_ = conn.WriteJSON(model.Event{
			Type:    model.EventSnapshot,
			At:      time.Now().UTC(),
			Payload: h.snapshot.Recent(ctx, filter.CameraID, filter.MinConfidence),
		})
	}

	go h.readLoop(ctx, cancel, conn, sub)
	h.writeLoop(ctx, conn, sub)
}

// readLoop consumes control messages until the connection drops. Every frame
// received, ping or otherwise, counts as a keep-alive.
func (h *WSHandler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sub *broadcast.Subscriber) {
	defer cancel()

	conn.SetReadLimit(wsReadLimit)
	conn.SetPongHandler(func(string) error {
		sub.Touch()
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub.Touch()

		var ctl wsControl
		if err := json.Unmarshal(data, &ctl); err != nil {
			continue
		}
		switch ctl.Action {
		case "subscribe":
			sub.SetFilter(broadcast.Filter{
				CameraID:      ctl.Filter.CameraID,
				PersonID:      ctl.Filter.PersonID,
				MinConfidence: ctl.Filter.MinConfidence,
			})
		case "unsubscribe":
			sub.SetFilter(broadcast.Filter{MinConfidence: 2}) // matches nothing
		case "ping":
			// Keep-alive only; Touch above already refreshed the deadline.
		}
	}
}

// writeLoop pushes broadcast events and periodic pings to the client.
func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sub *broadcast.Subscriber) {
	ticker := time.NewTicker(wsServerPingTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(wsWriteTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug(ctx, "websocket write failed", logger.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(model.Event{Type: model.EventPing, At: time.Now().UTC()}); err != nil {
				return
			}
		}
	}
}
