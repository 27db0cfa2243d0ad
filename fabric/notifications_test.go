package fabric

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastBoundsHistory(t *testing.T) {
	b := NewBroadcaster(3, nil)
	for i := 0; i < 10; i++ {
		b.Broadcast("service_error", nil)
	}
	assert.Len(t, b.History(), 3)
}

func TestBroadcastDeliversToConnectedClient(t *testing.T) {
	b := NewBroadcaster(100, nil)
	srv := httptest.NewServer(b)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(20 * time.Millisecond)
	b.Broadcast("gpu_acquired", map[string]interface{}{"state": "ACQUIRED"})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var n Notification
	require.NoError(t, conn.ReadJSON(&n))
	assert.Equal(t, "gpu_acquired", n.Category)
}
