package websocket

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var handlerTestSigningKey = []byte("handler-test-secret-key")

func generateHandlerTestToken(t *testing.T) string {
	return generateTestTokenWithKey(t, handlerTestSigningKey, time.Now().Add(time.Hour))
}

// mockAuthenticator is a mock implementation of Authenticator for testing.
type mockAuthenticator struct {
	err error
}

func (m *mockAuthenticator) Authenticate(r *http.Request) error {
	return m.err
}

func TestNewHandler(t *testing.T) {
	hub := NewHub(testLogger())
	auth := NewNoAuth()

	handler := NewHandler(hub, auth, testLogger())

	assert.NotNil(t, handler)
	assert.Equal(t, hub, handler.hub)
	assert.Equal(t, auth, handler.auth)
}

func TestHandler_ServeHTTP_Success(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	handler := NewHandler(hub, NewNoAuth(), testLogger())
	server := httptest.NewServer(handler)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount())
}

func TestHandler_ServeHTTP_AuthenticationFailed(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	handler := NewHandler(hub, &mockAuthenticator{err: ErrInvalidToken}, testLogger())
	server := httptest.NewServer(handler)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)

	assert.Error(t, err)
	assert.Nil(t, ws)
	if resp != nil {
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHandler_ServeHTTP_WithJWTAuth(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	handler := NewHandler(hub, NewJWTAuth(handlerTestSigningKey), testLogger())
	server := httptest.NewServer(handler)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.Error(t, err)
	assert.Nil(t, ws)
	if resp != nil {
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	validToken := generateHandlerTestToken(t)
	ws, resp, err = websocket.DefaultDialer.Dial(wsURL+"?token="+validToken, nil)
	require.NoError(t, err)
	defer ws.Close()

	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
}

func TestHandler_ServeHTTP_MultipleConnections(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	handler := NewHandler(hub, NewNoAuth(), testLogger())
	server := httptest.NewServer(handler)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	var conns []*websocket.Conn
	for i := 0; i < 3; i++ {
		ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		conns = append(conns, ws)
	}

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 3, hub.ClientCount())

	for _, ws := range conns {
		ws.Close()
	}

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHandler_ServeHTTP_WithAuthorizationHeader(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	handler := NewHandler(hub, NewJWTAuth(handlerTestSigningKey), testLogger())
	server := httptest.NewServer(handler)
	defer server.Close()

	validToken := generateHandlerTestToken(t)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	header := http.Header{}
	header.Set("Authorization", "Bearer "+validToken)

	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer ws.Close()

	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
}

func TestHandler_ServeHTTP_ClientCommunication(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	handler := NewHandler(hub, NewNoAuth(), testLogger())
	server := httptest.NewServer(handler)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, ws.WriteJSON(WSCommand{Action: CmdSubscribe, Tags: []string{"breakout"}}))

	var resp WSResponse
	ws.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, ws.ReadJSON(&resp))

	assert.True(t, resp.Success)
	assert.Equal(t, CmdSubscribe, resp.Type)
}

func TestHandler_HandlerImplementsHTTPHandler(t *testing.T) {
	hub := NewHub(testLogger())
	handler := NewHandler(hub, NewNoAuth(), testLogger())
	var _ http.Handler = handler
}

func TestHandler_ServeHTTP_AuthErrorTypes(t *testing.T) {
	tests := []struct {
		name string
		err error
		expect int
	}{
		{name: "missing token", err: ErrMissingToken, expect: http.StatusUnauthorized},
		{name: "invalid token", err: ErrInvalidToken, expect: http.StatusUnauthorized},
		{name: "custom error", err: errors.New("custom auth error"), expect: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
				hub := NewHub(testLogger())
				go hub.Run()
				time.Sleep(10 * time.Millisecond)

				handler := NewHandler(hub, &mockAuthenticator{err: tt.err}, testLogger())
				server := httptest.NewServer(handler)
				defer server.Close()

				wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
				ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)

				assert.Error(t, err)
				assert.Nil(t, ws)
				if resp != nil {
					assert.Equal(t, tt.expect, resp.StatusCode)
				}
		})
	}
}

func TestUpgrader_DefaultConfiguration(t *testing.T) {
	assert.Equal(t, 1024, upgrader.ReadBufferSize)
	assert.Equal(t, 1024, upgrader.WriteBufferSize)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "http://any-origin.com")
	assert.True(t, upgrader.CheckOrigin(req))
}

func TestHandler_ServeHTTP_ConcurrentConnections(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	handler := NewHandler(hub, NewNoAuth(), testLogger())
	server := httptest.NewServer(handler)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	numConnections := 10
	conns := make(chan *websocket.Conn, numConnections)
	errs := make(chan error, numConnections)

	for i := 0; i < numConnections; i++ {
		go func() {
			ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			if err != nil {
				errs <- err
				return
			}
			conns <- ws
		}()
	}

	var connList []*websocket.Conn
	timeout := time.After(2 * time.Second)

	for i := 0; i < numConnections; i++ {
		select {
			case ws := <-conns:
				connList = append(connList, ws)
			case err := <-errs:
				t.Errorf("connection error: %v", err)
			case <-timeout:
				t.Fatal("timeout waiting for connections")
		}
	}

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, numConnections, hub.ClientCount())

	for _, ws := range connList {
		ws.Close()
	}
}

func TestHandler_ServeHTTP_WebSocketProtocolSubprotocol(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	handler := NewHandler(hub, NewJWTAuth(handlerTestSigningKey), testLogger())
	server := httptest.NewServer(handler)
	defer server.Close()

	validToken := generateHandlerTestToken(t)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	dialer := websocket.Dialer{Subprotocols: []string{"auth-" + validToken}}
	ws, _, err := dialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount())
}
