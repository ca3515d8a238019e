package websocket

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
	"github.com/vmihailenco/msgpack/v5"
)

func TestNewClient(t *testing.T) {
	hub := NewHub(testLogger())
	client := NewClient("client-1", hub, nil)

	assert.Equal(t, "client-1", client.id)
	assert.Equal(t, hub, client.hub)
	assert.NotNil(t, client.send)
	assert.NotNil(t, client.subs)
}

func TestClient_IntegrationWithWebSocket(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				conn, err := upgrader.Upgrade(w, r, nil)
				if err != nil {
					t.Fatal(err)
				}
				client := NewClient("test-client", hub, conn)
				hub.register <- client
				go client.writePump()
				go client.readPump()
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount())
}

func TestClient_HandleSubscribeCommand(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				conn, err := upgrader.Upgrade(w, r, nil)
				if err != nil {
					t.Fatal(err)
				}
				client := NewClient("test-client", hub, conn)
				hub.register <- client
				go client.writePump()
				go client.readPump()
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	time.Sleep(50 * time.Millisecond)

	err = ws.WriteJSON(WSCommand{Action: CmdSubscribe, Tags: []string{"breakout"}})
	require.NoError(t, err)

	var response WSResponse
	ws.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, ws.ReadJSON(&response))

	assert.Equal(t, CmdSubscribe, response.Type)
	assert.True(t, response.Success)
}

func TestClient_HandleUnsubscribeCommand(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				conn, err := upgrader.Upgrade(w, r, nil)
				if err != nil {
					t.Fatal(err)
				}
				client := NewClient("test-client", hub, conn)
				hub.register <- client
				hub.Subscribe(client, []string{"breakout"}, "")
				go client.writePump()
				go client.readPump()
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	time.Sleep(50 * time.Millisecond)

	err = ws.WriteJSON(WSCommand{Action: CmdUnsubscribe, Tags: []string{"breakout"}})
	require.NoError(t, err)

	var response WSResponse
	ws.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, ws.ReadJSON(&response))

	assert.Equal(t, CmdUnsubscribe, response.Type)
	assert.True(t, response.Success)
}

func TestClient_HandleInvalidCommand(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				conn, err := upgrader.Upgrade(w, r, nil)
				if err != nil {
					t.Fatal(err)
				}
				client := NewClient("test-client", hub, conn)
				hub.register <- client
				go client.writePump()
				go client.readPump()
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not valid json")))

	var response WSResponse
	ws.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, ws.ReadJSON(&response))

	assert.False(t, response.Success)
	assert.Contains(t, response.Error, "invalid command format")
}

func TestClient_HandleUnknownCommand(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				conn, err := upgrader.Upgrade(w, r, nil)
				if err != nil {
					t.Fatal(err)
				}
				client := NewClient("test-client", hub, conn)
				hub.register <- client
				go client.writePump()
				go client.readPump()
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, ws.WriteJSON(WSCommand{Action: "unknown_action"}))

	var response WSResponse
	ws.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, ws.ReadJSON(&response))

	assert.False(t, response.Success)
	assert.Contains(t, response.Error, "unknown command")
}

func TestClient_HandleSubscribeWithoutTagsOrKind(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				conn, err := upgrader.Upgrade(w, r, nil)
				if err != nil {
					t.Fatal(err)
				}
				client := NewClient("test-client", hub, conn)
				hub.register <- client
				go client.writePump()
				go client.readPump()
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, ws.WriteJSON(WSCommand{Action: CmdSubscribe}))

	var response WSResponse
	ws.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, ws.ReadJSON(&response))

	assert.False(t, response.Success)
	assert.Contains(t, response.Error, "required")
}

func TestClient_ReceiveBroadcastEvent(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				conn, err := upgrader.Upgrade(w, r, nil)
				if err != nil {
					t.Fatal(err)
				}
				client := NewClient("test-client", hub, conn)
				hub.register <- client
				go client.writePump()
				go client.readPump()
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, ws.WriteJSON(WSCommand{Action: CmdSubscribe, Tags: []string{"breakout"}}))

	var subResp WSResponse
	ws.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, ws.ReadJSON(&subResp))
	assert.True(t, subResp.Success)

	hub.Broadcast(testEvent("pattern", "breakout"))

	_, payload, err := ws.ReadMessage()
	require.NoError(t, err)

	var received StrandEvent
	require.NoError(t, msgpack.Unmarshal(payload, &received))
	assert.Equal(t, EventStrandAppended, received.Type)
	assert.Contains(t, received.Tags, "breakout")
}

func TestClient_ConnectionClose(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				conn, err := upgrader.Upgrade(w, r, nil)
				if err != nil {
					t.Fatal(err)
				}
				client := NewClient("test-client", hub, conn)
				hub.register <- client
				go client.writePump()
				go client.readPump()
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount())

	ws.Close()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestSubscriptions_ThreadSafety(t *testing.T) {
	subs := NewSubscriptions()

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(idx int) {
			subs.mu.Lock()
			subs.tags["tag-"+string(rune('0'+idx))] = true
			subs.mu.Unlock()
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	subs.mu.RLock()
	count := len(subs.tags)
	subs.mu.RUnlock()

	assert.Equal(t, 10, count)
}

func TestClient_Constants(t *testing.T) {
	assert.Equal(t, 10*time.Second, writeWait)
	assert.Equal(t, 60*time.Second, pongWait)
	assert.Less(t, pingPeriod, pongWait, "ping period must be less than pong wait")
	assert.Equal(t, 512, maxMessageSize)
	assert.Equal(t, 64, sendBufferSize)
}

func TestClient_HandleCommand_JSON(t *testing.T) {
	tests := []struct {
		name string
		jsonCmd string
		wantType string
	}{
		{name: "subscribe by tag", jsonCmd: `{"action":"subscribe","tags":["breakout"]}`, wantType: CmdSubscribe},
		{name: "subscribe by kind", jsonCmd: `{"action":"subscribe","kind":"prediction"}`, wantType: CmdSubscribe},
		{name: "unsubscribe", jsonCmd: `{"action":"unsubscribe","tags":["breakout"]}`, wantType: CmdUnsubscribe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
				var cmd WSCommand
				require.NoError(t, json.Unmarshal([]byte(tt.jsonCmd), &cmd))
				assert.Equal(t, tt.wantType, cmd.Action)
		})
	}
}
