package ibkr

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamTestServer accepts gateway websocket sessions and drops the first
// dropFirst of them right after the subscribe message.
func streamTestServer(t *testing.T, dropFirst int) (*httptest.Server, Config, func() int) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	var mu sync.Mutex
	accepted := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		accepted++
		n := accepted
		mu.Unlock()

		// First frame is the channel subscription.
		if _, _, err := conn.ReadMessage(); err != nil {
			conn.Close()
			return
		}
		if n <= dropFirst {
			conn.Close()
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := Config{Host: host, Port: port, AccountID: "DU000001"}
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return accepted
	}
	return srv, cfg, count
}

func TestOrderStream_ReconnectsAfterDrop(t *testing.T) {
	srv, cfg, connCount := streamTestServer(t, 2)
	defer srv.Close()

	stream := NewOrderStream(cfg)
	stream.retryDelay = 10 * time.Millisecond
	defer stream.Close()

	require.NoError(t, stream.Connect(context.Background()))

	require.Eventually(t, func() bool { return connCount() >= 3 },
		5*time.Second, 10*time.Millisecond, "stream should redial after the server drops it")
}

func TestOrderStream_ReconnectDoesNotStackPingPumps(t *testing.T) {
	srv, cfg, connCount := streamTestServer(t, 3)
	defer srv.Close()

	stream := NewOrderStream(cfg)
	stream.retryDelay = 10 * time.Millisecond

	before := runtime.NumGoroutine()
	require.NoError(t, stream.Connect(context.Background()))

	require.Eventually(t, func() bool { return connCount() >= 4 },
		5*time.Second, 10*time.Millisecond)

	// Once the surviving connection settles, only one read/ping pump pair
	// (plus the server's handler) may remain; the pumps from the three
	// dropped connections must have exited.
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+4
	}, 5*time.Second, 20*time.Millisecond, "ping pumps from dropped connections must exit")

	stream.Close()
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+1
	}, 5*time.Second, 20*time.Millisecond)
}
