package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/andriawan/siaran/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // broadcaster and listener pages are served elsewhere
	},
}

// Control events sent by the broadcaster client as text frames. Binary
// frames on the same connection carry audio fragments.
const (
	eventStartBroadcast = "start_broadcast"
	eventStopBroadcast  = "stop_broadcast"
	eventForceStop      = "force_stop_broadcast"
)

type broadcasterEvent struct {
	Event     string `json:"event"`
	Title     string `json:"title"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// disconnectStopTimeout bounds the catalog update triggered by a vanished
// broadcaster; the request context is already dead at that point.
const disconnectStopTimeout = 5 * time.Second

func (s *Server) handleBroadcasterSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error("Failed to upgrade broadcaster connection", "error", err)
		return nil
	}
	defer func() { _ = conn.Close() }()

	ctx := c.Request().Context()
	slog.InfoContext(ctx, "Broadcaster connected", "remote", c.RealIP())

	// The id of the session this connection started, so a dropped
	// connection only force-stops its own broadcast.
	var ownedID int64

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}

		switch messageType {
		case websocket.BinaryMessage:
			s.hub.Fragment(data)
			s.machine.AppendFragment(data)

		case websocket.TextMessage:
			ownedID = s.dispatchBroadcasterEvent(ctx, data, ownedID)
		}
	}

	if ownedID != 0 {
		if id, live := s.machine.Live(); live && id == ownedID {
			slog.WarnContext(ctx, "Broadcaster disconnected mid-broadcast, force-stopping", "broadcast_id", id)
			stopCtx, cancel := context.WithTimeout(context.Background(), disconnectStopTimeout)
			if err := s.machine.ForceStop(stopCtx); err != nil {
				slog.ErrorContext(ctx, "Failed to force-stop after broadcaster disconnect", "error", err)
			}
			cancel()
		}
	}

	slog.InfoContext(ctx, "Broadcaster disconnected", "remote", c.RealIP())
	return nil
}

// dispatchBroadcasterEvent applies one control event and returns the id of
// the session this connection currently owns (0 once stopped).
func (s *Server) dispatchBroadcasterEvent(ctx context.Context, data []byte, ownedID int64) int64 {
	var event broadcasterEvent
	if err := json.Unmarshal(data, &event); err != nil {
		slog.WarnContext(ctx, "Ignoring malformed broadcaster event", "error", err)
		return ownedID
	}

	metrics.GatewayBroadcasterEvents.WithLabelValues(event.Event).Inc()

	switch event.Event {
	case eventStartBroadcast:
		if event.Title == "" {
			slog.WarnContext(ctx, "Ignoring start event without title")
			return ownedID
		}
		if err := s.machine.Start(ctx, event.Title, event.Date, event.StartTime); err != nil {
			slog.ErrorContext(ctx, "Failed to start broadcast", "title", event.Title, "error", err)
			return ownedID
		}
		id, _ := s.machine.Live()
		return id

	case eventStopBroadcast:
		if err := s.machine.Stop(ctx, event.EndTime); err != nil {
			slog.ErrorContext(ctx, "Failed to stop broadcast", "error", err)
		}
		return 0

	case eventForceStop:
		if err := s.machine.ForceStop(ctx); err != nil {
			slog.ErrorContext(ctx, "Failed to force-stop broadcast", "error", err)
		}
		return 0

	default:
		slog.WarnContext(ctx, "Ignoring unknown broadcaster event", "event", event.Event)
		return ownedID
	}
}

func (s *Server) handleListenerSocket(c echo.Context) error {
	ip := c.RealIP()

	allowed, reason := s.limits.Acquire(ip)
	if !allowed {
		metrics.GatewayConnectionsRejected.WithLabelValues(string(reason)).Inc()
		slog.Warn("Listener connection rejected", "remote", ip, "reason", reason)
		if reason == LimitReasonRate {
			return echo.NewHTTPError(http.StatusTooManyRequests, "connection rate limit exceeded")
		}
		return echo.NewHTTPError(http.StatusServiceUnavailable, "listener capacity reached")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.limits.Release(ip)
		slog.Error("Failed to upgrade listener connection", "error", err)
		return nil
	}

	listenerID := uuid.New()
	ctx := c.Request().Context()

	if _, err := s.presence.IncrListeners(ctx); err != nil {
		// Presence is advisory; the listener still gets audio.
		slog.WarnContext(ctx, "Failed to increment listener count", "listener_id", listenerID, "error", err)
	}

	if err := s.hub.Register(listenerID, conn); err != nil {
		slog.WarnContext(ctx, "Listener rejected by relay hub", "listener_id", listenerID, "error", err)
		metrics.GatewayConnectionsRejected.WithLabelValues("hub_capacity").Inc()
		s.decrPresence(listenerID)
		s.limits.Release(ip)
		_ = conn.Close()
		return nil
	}

	slog.InfoContext(ctx, "Listener connected", "listener_id", listenerID, "remote", ip)

	// Listeners only receive; drain until disconnect so pongs are processed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.Unregister(conn)
	s.decrPresence(listenerID)
	s.limits.Release(ip)

	slog.InfoContext(ctx, "Listener disconnected", "listener_id", listenerID, "remote", ip)
	return nil
}

func (s *Server) decrPresence(listenerID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectStopTimeout)
	defer cancel()
	if _, err := s.presence.DecrListeners(ctx); err != nil {
		slog.Warn("Failed to decrement listener count", "listener_id", listenerID, "error", err)
	}
}
