package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/acairampoma/hc-medico/internal/adapter/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	// pongWait must exceed the broadcaster's ping interval.
	pongWait       = 60 * time.Second
	maxMessageSize = 512

	msgOriginRejected  = "Origen no permitido"
	msgServerAtLimit   = "Servidor al límite de conexiones"
	msgTooManyFromHost = "Demasiadas conexiones desde esta dirección"
)

func newUpgrader(checkOrigin func(r *http.Request) bool) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     checkOrigin,
	}
}

// handleWebSocket admits a live subscriber. The first frame it receives is the
// initial_data snapshot; afterwards it gets every vital_signs_update. Inbound
// frames are read only to service control frames and detect disconnects.
func (s *Server) handleWebSocket(c echo.Context) error {
	r := c.Request()
	ctx := r.Context()

	if !s.upgrader.CheckOrigin(r) {
		s.rejectSubscriber(metrics.ReasonOrigin)
		return c.JSON(http.StatusForbidden, map[string]string{"error": msgOriginRejected})
	}

	ip := c.RealIP()
	slot, reason := s.gate.Admit(ip)
	if slot == nil {
		s.rejectSubscriber(reason)
		stats := s.gate.Stats()
		slog.WarnContext(ctx, "WebSocket connection rejected", "ip", ip, "reason", reason,
			"subscribers", stats.Subscribers, "client_ips", stats.ClientIPs)
		if reason == metrics.ReasonGlobalLimit {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": msgServerAtLimit})
		}
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": msgTooManyFromHost})
	}
	defer slot.Release()

	conn, err := s.upgrader.Upgrade(c.Response(), r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		slog.WarnContext(ctx, "WebSocket upgrade failed", "ip", ip, "error", err)
		return nil
	}

	var id uuid.UUID
	err = s.app.Subscribe(func(initial []byte) error {
		var regErr error
		id, regErr = s.hub.Register(conn, initial)
		return regErr
	})
	if err != nil {
		slog.WarnContext(ctx, "Failed to register subscriber", "ip", ip, "error", err)
		_ = conn.Close()
		return nil
	}
	slog.InfoContext(ctx, "Subscriber connected", "subscriber_id", id, "ip", ip)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(s.clock.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(s.clock.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.DebugContext(ctx, "Subscriber read failed", "subscriber_id", id, "error", err)
			}
			break
		}
	}

	s.hub.Unregister(id)
	slog.InfoContext(ctx, "Subscriber disconnected", "subscriber_id", id)
	return nil
}

func (s *Server) rejectSubscriber(reason string) {
	if s.wsMetrics != nil {
		s.wsMetrics.Rejections.WithLabelValues(reason).Inc()
	}
}
