package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/andriawan/siaran/internal/metrics"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	messageBufferSize = 64
)

// message is one outbound frame: binary for audio fragments, text for
// session event JSON.
type message struct {
	messageType int
	data        []byte
}

type listenerWriter struct {
	connection  *websocket.Conn
	clock       clockwork.Clock
	sendChannel chan message
	doneChannel chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func newListenerWriter(connection *websocket.Conn, clock clockwork.Clock) *listenerWriter {
	lw := &listenerWriter{
		connection:  connection,
		clock:       clock,
		sendChannel: make(chan message, messageBufferSize),
		doneChannel: make(chan struct{}),
	}
	lw.configurePongHandler()
	lw.wg.Add(1)
	go lw.run()
	return lw
}

func (lw *listenerWriter) run() {
	ticker := lw.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer lw.wg.Done()

	for {
		select {
		case msg, ok := <-lw.sendChannel:
			if !ok {
				return
			}
			start := lw.clock.Now()
			lw.updateWriteDeadline()
			if err := lw.connection.WriteMessage(msg.messageType, msg.data); err != nil {
				return
			}
			metrics.ListenerMessageSendDuration.Observe(lw.clock.Since(start).Seconds())
		case <-ticker.Chan():
			lw.updateWriteDeadline()
			if err := lw.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				// Ping failed - listener likely disconnected
				metrics.ListenerPingFailures.Inc()
				return
			}
		case <-lw.doneChannel:
			return
		}
	}
}

func (lw *listenerWriter) stop() {
	lw.stopOnce.Do(func() {
		close(lw.doneChannel)
		_ = lw.connection.Close()
	})
	lw.wg.Wait()
}

// stopGraceful sends a WebSocket close frame with reason before closing.
func (lw *listenerWriter) stopGraceful(reason string) {
	lw.stopOnce.Do(func() {
		// Stop the run goroutine first so the close frame is not written
		// concurrently with a fragment.
		close(lw.doneChannel)
		lw.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		lw.updateWriteDeadline()
		_ = lw.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = lw.connection.Close()
	})
}

func (lw *listenerWriter) configurePongHandler() {
	lw.updateReadDeadline()
	lw.connection.SetPongHandler(func(string) error {
		lw.updateReadDeadline()
		return nil
	})
}

func (lw *listenerWriter) updateWriteDeadline() {
	_ = lw.connection.SetWriteDeadline(lw.clock.Now().Add(writeDeadline))
}

func (lw *listenerWriter) updateReadDeadline() {
	_ = lw.connection.SetReadDeadline(lw.clock.Now().Add(pongDeadline))
}
