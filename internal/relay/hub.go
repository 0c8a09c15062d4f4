package relay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/andriawan/siaran/internal/metrics"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

// Event is a session notification relayed to listeners as a text frame.
type Event struct {
	Event string `json:"event"`
	Title string `json:"title,omitempty"`
}

const (
	EventStarted = "broadcast_started"
	EventStopped = "broadcast_stopped"
)

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	listenerID   uuid.UUID
	connection   *websocket.Conn
	errorChannel chan error
}

type unregisterCmd struct {
	baseHubCmd
	connection *websocket.Conn
}

type broadcastCmd struct {
	baseHubCmd
	msg message
}

type listenerCountCmd struct {
	baseHubCmd
	replyChannel chan int
}

type stopCmd struct {
	baseHubCmd
}

// Hub fans audio fragments and session events out to all connected listeners.
type Hub struct {
	cmdCh        chan hubCmd
	clock        clockwork.Clock
	listeners    map[*websocket.Conn]*listenerWriter
	listenerIDs  map[*websocket.Conn]uuid.UUID
	maxListeners int
	done         chan struct{}
	stopTimeout  time.Duration
}

// NewHub creates the hub and starts its actor goroutine.
// maxListeners caps concurrent listener connections (prevents resource exhaustion).
func NewHub(clock clockwork.Clock, maxListeners int) *Hub {
	h := &Hub{
		cmdCh:        make(chan hubCmd, 256),
		clock:        clock,
		listeners:    make(map[*websocket.Conn]*listenerWriter),
		listenerIDs:  make(map[*websocket.Conn]uuid.UUID),
		maxListeners: maxListeners,
		done:         make(chan struct{}),
		stopTimeout:  stopTimeout,
	}
	go h.run()
	return h
}

// Register adds a listener connection.
// Returns an error only if the listener cap is reached.
func (h *Hub) Register(listenerID uuid.UUID, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- registerCmd{listenerID: listenerID, connection: conn, errorChannel: errCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes a listener connection.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.cmdCh <- unregisterCmd{connection: conn}
}

// Fragment relays one audio fragment to every listener as a binary frame.
// Non-blocking for the caller; fragments are dispatched in submission order
// because they flow through the single command channel.
func (h *Hub) Fragment(data []byte) {
	h.cmdCh <- broadcastCmd{msg: message{messageType: websocket.BinaryMessage, data: data}}
}

// BroadcastStarted notifies all listeners that a broadcast began.
func (h *Hub) BroadcastStarted(title string) {
	h.sendEvent(Event{Event: EventStarted, Title: title})
}

// BroadcastStopped notifies all listeners that the broadcast ended.
func (h *Hub) BroadcastStopped() {
	h.sendEvent(Event{Event: EventStopped})
}

func (h *Hub) sendEvent(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal listener event", "event", event.Event, "error", err)
		return
	}
	h.cmdCh <- broadcastCmd{msg: message{messageType: websocket.TextMessage, data: data}}
}

// ListenerCount returns the number of connected listeners.
// Returns -1 if the command times out.
func (h *Hub) ListenerCount() int {
	replyCh := make(chan int, 1)
	h.cmdCh <- listenerCountCmd{replyChannel: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("ListenerCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop shuts down the hub, closing all listener connections.
// Blocks until the hub goroutine has exited or the stop timeout is reached.
func (h *Hub) Stop() {
	h.cmdCh <- stopCmd{}

	timeout := h.clock.NewTimer(h.stopTimeout)
	defer timeout.Stop()

	select {
	case <-h.done:
		slog.Info("Relay hub stopped gracefully")
	case <-timeout.Chan():
		slog.Warn("Relay hub stop timeout exceeded, forcing exit", "timeout", h.stopTimeout)
		metrics.RelayStopTimeoutsTotal.Inc()
		close(h.done)
	}
}

func (h *Hub) run() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Relay hub panic recovered", "panic", r)
			metrics.RelayPanicsTotal.Inc()
			h.closeAllListeners("relay hub panic")
		}
	}()

	// Track command channel depth every second
	depthTicker := h.clock.NewTicker(1 * time.Second)
	defer depthTicker.Stop()
	defer close(h.done)

	for {
		select {
		case <-depthTicker.Chan():
			depth := len(h.cmdCh)
			metrics.RelayCommandChannelDepth.Set(float64(depth))
			if depth > 200 { // 80% of 256
				slog.Warn("Relay command channel near capacity", "depth", depth, "capacity", cap(h.cmdCh))
			}

		case cmd := <-h.cmdCh:
			switch c := cmd.(type) {
			case registerCmd:
				h.handleRegister(c)
			case unregisterCmd:
				h.handleUnregister(c)
			case broadcastCmd:
				h.handleBroadcast(c.msg)
			case listenerCountCmd:
				c.replyChannel <- len(h.listeners)
			case stopCmd:
				h.handleStop()
				return
			default:
				slog.Warn("Relay hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	if len(h.listeners) >= h.maxListeners {
		slog.Warn("Rejecting listener: max listeners reached", "listener_id", c.listenerID.String(), "max_listeners", h.maxListeners)
		c.connection.Close()
		c.errorChannel <- fmt.Errorf("max listeners (%d) reached", h.maxListeners)
		return
	}

	h.listeners[c.connection] = newListenerWriter(c.connection, h.clock)
	h.listenerIDs[c.connection] = c.listenerID

	metrics.RelayConnectedListeners.Set(float64(len(h.listeners)))
	slog.Debug("Listener registered", "listener_id", c.listenerID.String(), "total_listeners", len(h.listeners))
	c.errorChannel <- nil
}

func (h *Hub) handleUnregister(c unregisterCmd) {
	lw, exists := h.listeners[c.connection]
	if !exists {
		return
	}

	lw.stop()
	listenerID := h.listenerIDs[c.connection]
	delete(h.listeners, c.connection)
	delete(h.listenerIDs, c.connection)

	metrics.RelayConnectedListeners.Set(float64(len(h.listeners)))
	slog.Debug("Listener unregistered", "listener_id", listenerID.String(), "remaining_listeners", len(h.listeners))
}

func (h *Hub) handleBroadcast(msg message) {
	if msg.messageType == websocket.BinaryMessage {
		metrics.RelayFragmentsTotal.Inc()
	}

	var slow []*websocket.Conn
	for conn, writer := range h.listeners {
		select {
		case writer.sendChannel <- msg:
		default:
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("Disconnecting slow listener", "listener_id", h.listenerIDs[conn].String())
		metrics.RelaySlowListenersEvicted.Inc()
		h.handleUnregister(unregisterCmd{connection: conn})
	}
}

func (h *Hub) handleStop() {
	total := len(h.listeners)
	slog.Info("Relay hub shutting down", "listeners", total)
	h.closeAllListeners("Server shutting down")
	slog.Info("Relay hub shutdown complete", "disconnected_listeners", total)
}

// closeAllListeners closes all listener connections with the given reason.
// Used during panic recovery and graceful shutdown.
func (h *Hub) closeAllListeners(reason string) {
	for conn, lw := range h.listeners {
		lw.stopGraceful(reason)
		delete(h.listeners, conn)
		delete(h.listenerIDs, conn)
	}
	metrics.RelayConnectedListeners.Set(0)
}
