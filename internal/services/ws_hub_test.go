package services

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// dialHub upgrades one real connection, registers its server side in the
// hub and returns the client side.
func dialHub(t *testing.T, hub *WSHub, userID string) *websocket.Conn {
	t.Helper()

	registered := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		hub.Register(userID, conn)
		close(registered)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case <-registered:
	case <-time.After(time.Second):
		t.Fatal("connection was never registered")
	}
	return client
}

func TestWSHub_ConcurrentSendsSingleConnection(t *testing.T) {
	hub := NewWSHub()
	client := dialHub(t, hub, "u1")

	const sends = 50
	var wg sync.WaitGroup
	wg.Add(sends)
	for i := 0; i < sends; i++ {
		go func() {
			defer wg.Done()
			if err := hub.SendToUser("u1", WSMessage{Type: string(EventGateOpened)}); err != nil {
				t.Errorf("send failed: %v", err)
			}
		}()
	}
	wg.Wait()

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < sends; i++ {
		var msg WSMessage
		require.NoError(t, client.ReadJSON(&msg))
		require.Equal(t, string(EventGateOpened), msg.Type)
	}
}

func TestDispatcher_ConcurrentEventsSameUser(t *testing.T) {
	hub := NewWSHub()
	client := dialHub(t, hub, "u1")

	// A nil APNs client keeps delivery on the websocket path only.
	dispatcher := NewDispatcher(newMemStore(), hub, nil, "")

	const events = 50
	for i := 0; i < events; i++ {
		dispatcher.Dispatch("u1", EventGateOpened, map[string]string{"companion_id": "c1"})
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < events; i++ {
		var msg WSMessage
		require.NoError(t, client.ReadJSON(&msg))
		require.Equal(t, string(EventGateOpened), msg.Type)
	}
}

func TestWSHub_SendToUnknownUser(t *testing.T) {
	hub := NewWSHub()
	err := hub.SendToUser("nobody", WSMessage{Type: "ping"})
	require.Error(t, err)
	require.False(t, hub.IsOnline("nobody"))
}
