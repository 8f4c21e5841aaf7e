package drawsessions

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub, sessionID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = hub.Serve(w, r, sessionID)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHubDeliversOnlyToSessionSubscribers(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Stop()

	a := dialHub(t, hub, "session-a")
	b := dialHub(t, hub, "session-b")
	require.Eventually(t, func() bool {
		return hub.Subscribers("session-a") == 1 && hub.Subscribers("session-b") == 1
	}, time.Second, 10*time.Millisecond)

	hub.Publish("session-a", MessageTypeEvent, map[string]float64{"area_ha": 12.5})
	hub.Publish("session-b", MessageTypeView, map[string]int{"zoom": 13})

	msgA := readMessage(t, a)
	assert.Equal(t, MessageTypeEvent, msgA.Type)
	assert.Equal(t, "session-a", msgA.SessionID)
	assert.Equal(t, map[string]interface{}{"area_ha": 12.5}, msgA.Data)

	msgB := readMessage(t, b)
	assert.Equal(t, MessageTypeView, msgB.Type)
	assert.Equal(t, "session-b", msgB.SessionID)
}

func TestHubCloseSessionDisconnects(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Stop()

	conn := dialHub(t, hub, "session-a")
	require.Eventually(t, func() bool { return hub.Subscribers("session-a") == 1 }, time.Second, 10*time.Millisecond)

	hub.CloseSession("session-a")

	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeClosed, msg.Type)
	assert.Eventually(t, func() bool { return hub.Subscribers("session-a") == 0 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestHubPublishAfterStopDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)
	hub.Stop()
	hub.Stop()

	done := make(chan struct{})
	go func() {
		hub.Publish("session-a", MessageTypeEvent, nil)
		hub.CloseSession("session-a")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked after stop")
	}
}
