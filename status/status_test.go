package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeWs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(ServeWs))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	// wait for registration, earlier messages of other tests may arrive first
	require.Eventually(t, func() bool {
		globalLock.Lock()
		defer globalLock.Unlock()
		return len(broadcastList) == 1
	}, 5*time.Second, 10*time.Millisecond)

	Progress(0.5, "Loading %s", "level.sg")

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var s status
		require.NoError(t, json.Unmarshal(data, &s))
		if s.Message != "Loading level.sg" {
			continue
		}
		assert.Equal(t, PROGRESS, s.Type)
		assert.Equal(t, float32(0.5), s.Progress)
		break
	}
}
