package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/strateval/internal/events"
)

// waitForClients polls until the hub reports the expected client count
func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("hub never reached %d clients", want)
}

func TestHubBroadcastEvent(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := &Client{hub: hub, send: make(chan []byte, 16)}
	hub.register <- client
	waitForClients(t, hub, 1)

	err := hub.BroadcastEvent(&events.EvaluationEvent{
		Type:         events.EventEvaluationCompleted,
		EvaluationID: "eval-1",
		Strategy:     "momentum",
		Sharpe:       1.8,
		Robustness:   77.0,
	})
	require.NoError(t, err)

	select {
	case frame := <-client.send:
		var msg Message
		require.NoError(t, json.Unmarshal(frame, &msg))
		assert.Equal(t, MessageType(events.EventEvaluationCompleted), msg.Type)
		assert.False(t, msg.Timestamp.IsZero())

		var event events.EvaluationEvent
		require.NoError(t, json.Unmarshal(msg.Data, &event))
		assert.Equal(t, "eval-1", event.EvaluationID)
		assert.Equal(t, "momentum", event.Strategy)
		assert.Equal(t, 1.8, event.Sharpe)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast frame")
	}
}

func TestHubBroadcastBufferFull(t *testing.T) {
	// The hub loop is not running, so frames pile up in the buffer
	hub := NewHub()

	event := &events.EvaluationEvent{
		Type:         events.EventEvaluationStarted,
		EvaluationID: "eval-1",
	}

	for i := 0; i < 256; i++ {
		require.NoError(t, hub.BroadcastEvent(event))
	}

	err := hub.BroadcastEvent(event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broadcast buffer full")
}

func TestWebSocketEndToEnd(t *testing.T) {
	server := NewServer(Config{Host: "127.0.0.1", Port: 0})
	go server.hub.Run()

	ts := httptest.NewServer(server.router)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	waitForClients(t, server.hub, 1)

	// Application-level ping gets a pong frame back
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping","data":{}}`)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	var pong Message
	require.NoError(t, json.Unmarshal(frame, &pong))
	assert.Equal(t, MessageTypePong, pong.Type)

	// Broadcast frames reach the connected client
	require.NoError(t, server.hub.BroadcastEvent(&events.EvaluationEvent{
		Type:         events.EventEvaluationCompleted,
		EvaluationID: "eval-9",
		Strategy:     "meanrev",
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err = conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(frame, &msg))
	assert.Equal(t, MessageType(events.EventEvaluationCompleted), msg.Type)

	var event events.EvaluationEvent
	require.NoError(t, json.Unmarshal(msg.Data, &event))
	assert.Equal(t, "eval-9", event.EvaluationID)
	assert.Equal(t, "meanrev", event.Strategy)
}
