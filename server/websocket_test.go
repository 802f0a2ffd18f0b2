package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/device-next/devicecheck/commands"
)

func setupWSServer(t *testing.T, enableCORS bool) (*httptest.Server, string) {
	t.Helper()
	server := httptest.NewServer(handleRPC(enableCORS))
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	return server, wsURL
}

func connectWebSocket(t *testing.T, url string) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "should connect to WebSocket")
	return conn
}

func sendJSONRPCRequest(t *testing.T, conn *websocket.Conn, req JSONRPCRequest) {
	require.NoError(t, conn.WriteJSON(req), "should send request")
}

func readJSONRPCResponse(t *testing.T, conn *websocket.Conn) JSONRPCResponse {
	var resp JSONRPCResponse
	require.NoError(t, conn.ReadJSON(&resp), "should read response")
	return resp
}

func TestWebSocket_ValidRequest(t *testing.T) {
	installSimHarness(t)
	server, wsURL := setupWSServer(t, false)
	defer server.Close()

	conn := connectWebSocket(t, wsURL)
	defer conn.Close()

	sendJSONRPCRequest(t, conn, JSONRPCRequest{
		JSONRPC: "2.0",
		Method:  "devices.list",
		Params:  json.RawMessage(`{}`),
		ID:      1,
	})
	resp := readJSONRPCResponse(t, conn)

	assert.Equal(t, "2.0", resp.JSONRPC)
	assert.Equal(t, 1, int(resp.ID.(float64)))
	assert.Nil(t, resp.Error)
	assert.NotNil(t, resp.Result)
}

func TestWebSocket_InvalidVersion(t *testing.T) {
	installSimHarness(t)
	server, wsURL := setupWSServer(t, false)
	defer server.Close()

	conn := connectWebSocket(t, wsURL)
	defer conn.Close()

	sendJSONRPCRequest(t, conn, JSONRPCRequest{
		JSONRPC: "1.0",
		Method:  "devices.list",
		ID:      1,
	})
	resp := readJSONRPCResponse(t, conn)

	require.NotNil(t, resp.Error)
	errObj := resp.Error.(map[string]interface{})
	assert.Equal(t, float64(ErrCodeInvalidRequest), errObj["code"])
}

func TestWebSocket_MethodNotFound(t *testing.T) {
	installSimHarness(t)
	server, wsURL := setupWSServer(t, false)
	defer server.Close()

	conn := connectWebSocket(t, wsURL)
	defer conn.Close()

	sendJSONRPCRequest(t, conn, JSONRPCRequest{
		JSONRPC: "2.0",
		Method:  "no.such.method",
		ID:      7,
	})
	resp := readJSONRPCResponse(t, conn)

	require.NotNil(t, resp.Error)
	errObj := resp.Error.(map[string]interface{})
	assert.Equal(t, float64(ErrCodeMethodNotFound), errObj["code"])
}

func TestWebSocket_MultipleRequestsOnOneConnection(t *testing.T) {
	installSimHarness(t)
	server, wsURL := setupWSServer(t, false)
	defer server.Close()

	conn := connectWebSocket(t, wsURL)
	defer conn.Close()

	for i := 1; i <= 3; i++ {
		sendJSONRPCRequest(t, conn, JSONRPCRequest{
			JSONRPC: "2.0",
			Method:  "devices.list",
			ID:      i,
		})
		resp := readJSONRPCResponse(t, conn)
		assert.Equal(t, i, int(resp.ID.(float64)))
		assert.Nil(t, resp.Error)
	}
}

func TestEventHub_BroadcastsHarnessEvents(t *testing.T) {
	installSimHarness(t)

	hub := NewEventHub()
	hub.Start()
	defer hub.Stop()

	server := httptest.NewServer(hub.HandleEvents(false))
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	conn := connectWebSocket(t, wsURL)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond, "client should register")

	commands.Events().Emit("test-started", map[string]any{"testName": "camera"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var envelope EventEnvelope
	require.NoError(t, conn.ReadJSON(&envelope))
	assert.Equal(t, "test-started", envelope.Event)
	payload := envelope.Payload.(map[string]interface{})
	assert.Equal(t, "camera", payload["testName"])
}

func TestEventHub_DropsDisconnectedClients(t *testing.T) {
	installSimHarness(t)

	hub := NewEventHub()
	hub.Start()
	defer hub.Stop()

	server := httptest.NewServer(hub.HandleEvents(false))
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	conn := connectWebSocket(t, wsURL)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 },
		time.Second, 10*time.Millisecond, "closed clients should be dropped")
}
