package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subscribe(t *testing.T, ctx context.Context, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func readDataLine(t *testing.T, reader *bufio.Reader) string {
	t.Helper()
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			return strings.TrimSpace(line)
		}
	}
}

func TestBroadcastReachesSubscriber(t *testing.T) {
	b := NewBroadcaster()
	server := httptest.NewServer(b)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resp := subscribe(t, ctx, server.URL)
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)

	// The connection handshake arrives first.
	line := readDataLine(t, reader)
	assert.Contains(t, line, "connected")

	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	b.Broadcast(Event{Type: "state", Data: map[string]int{"analyzedToday": 3}})
	line = readDataLine(t, reader)
	assert.Contains(t, line, `"type":"state"`)
	assert.Contains(t, line, `"analyzedToday":3`)
}

func TestDisconnectedClientRemoved(t *testing.T) {
	b := NewBroadcaster()
	server := httptest.NewServer(b)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	resp := subscribe(t, ctx, server.URL)
	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	resp.Body.Close()

	// A broadcast against the dead connection flushes it out.
	require.Eventually(t, func() bool {
		b.Broadcast(Event{Type: "state"})
		return b.ClientCount() == 0
	}, 5*time.Second, 50*time.Millisecond)
}
