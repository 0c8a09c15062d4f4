package relay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHub sets up a Hub with a test HTTP server.
func testHub(t *testing.T, maxListeners int) (*Hub, func() *ws.Conn) {
	t.Helper()

	hub := NewHub(clockwork.NewRealClock(), maxListeners)
	t.Cleanup(func() { hub.Stop() })

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		if err := hub.Register(uuid.New(), conn); err != nil {
			return
		}

		go func() {
			defer hub.Unregister(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
		}()
	}))
	t.Cleanup(func() { server.Close() })

	dial := func() *ws.Conn {
		t.Helper()
		url := "ws" + strings.TrimPrefix(server.URL, "http")
		conn, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}

	return hub, dial
}

func waitForListenerCount(h *Hub, expected int) bool {
	for range 100 {
		if h.ListenerCount() == expected {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func TestHub_FragmentReachesAllListeners(t *testing.T) {
	hub, dial := testHub(t, 10)

	conn1 := dial()
	conn2 := dial()
	require.True(t, waitForListenerCount(hub, 2))

	hub.Fragment([]byte{0x1a, 0x45, 0xdf, 0xa3})

	for _, conn := range []*ws.Conn{conn1, conn2} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		msgType, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, ws.BinaryMessage, msgType)
		assert.Equal(t, []byte{0x1a, 0x45, 0xdf, 0xa3}, data)
	}
}

func TestHub_FragmentsArriveInOrder(t *testing.T) {
	hub, dial := testHub(t, 10)

	conn := dial()
	require.True(t, waitForListenerCount(hub, 1))

	hub.Fragment([]byte("one"))
	hub.Fragment([]byte("two"))
	hub.Fragment([]byte("three"))

	var got []string
	for range 3 {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		got = append(got, string(data))
	}
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func TestHub_StartedAndStoppedEvents(t *testing.T) {
	hub, dial := testHub(t, 10)

	conn := dial()
	require.True(t, waitForListenerCount(hub, 1))

	hub.BroadcastStarted("Morning Show")
	hub.BroadcastStopped()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, ws.TextMessage, msgType)

	var started Event
	require.NoError(t, json.Unmarshal(data, &started))
	assert.Equal(t, EventStarted, started.Event)
	assert.Equal(t, "Morning Show", started.Title)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)

	var stopped Event
	require.NoError(t, json.Unmarshal(data, &stopped))
	assert.Equal(t, EventStopped, stopped.Event)
	assert.Empty(t, stopped.Title)
}

func TestHub_LateListenerMissesEarlierFragments(t *testing.T) {
	hub, dial := testHub(t, 10)

	early := dial()
	require.True(t, waitForListenerCount(hub, 1))
	hub.Fragment([]byte("missed"))

	// Drain the early listener so we know the fragment was dispatched
	// before the late listener joins.
	early.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := early.ReadMessage()
	require.NoError(t, err)

	late := dial()
	require.True(t, waitForListenerCount(hub, 2))

	hub.Fragment([]byte("caught"))
	late.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := late.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "caught", string(data))
}

func TestHub_MaxListeners(t *testing.T) {
	hub, dial := testHub(t, 1)

	dial()
	require.True(t, waitForListenerCount(hub, 1))

	// Second connection is rejected server-side; count stays at 1.
	conn2 := dial()
	assert.False(t, waitForListenerCount(hub, 2))

	// The rejected connection gets closed by the hub.
	conn2.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn2.ReadMessage()
	assert.Error(t, err)
}

func TestHub_ListenerDisconnectLowersCount(t *testing.T) {
	hub, dial := testHub(t, 10)

	conn1 := dial()
	conn2 := dial()
	require.True(t, waitForListenerCount(hub, 2))

	conn2.Close()
	require.True(t, waitForListenerCount(hub, 1))

	// The remaining listener still receives fragments.
	hub.Fragment([]byte("still here"))
	conn1.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn1.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "still here", string(data))
}

func TestHub_StopClosesListeners(t *testing.T) {
	hub, dial := testHub(t, 10)

	conn := dial()
	require.True(t, waitForListenerCount(hub, 1))

	hub.Stop()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
