package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/device-next/devicecheck/commands"
	"github.com/device-next/devicecheck/utils"
)

type wsConnection struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newUpgrader(enableCORS bool) *websocket.Upgrader {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	if enableCORS {
		upgrader.CheckOrigin = func(r *http.Request) bool {
			return true
		}
	} else {
		upgrader.CheckOrigin = isSameOrigin
	}

	return &upgrader
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, enableCORS bool) {
	conn, err := newUpgrader(enableCORS).Upgrade(w, r, nil)
	if err != nil {
		utils.Warn("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	wsConn := &wsConnection{conn: conn}

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			// connection closed or error
			utils.Verbose("WebSocket connection closed: %v", err)
			break
		}

		if messageType != websocket.TextMessage {
			wsConn.sendError(nil, ErrCodeInvalidRequest, "Invalid Request", "only text messages accepted for requests")
			continue
		}

		handleWSMessage(r, wsConn, message)
	}
}

func isSameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	return originURL.Host == r.Host
}

func handleWSMessage(r *http.Request, wsConn *wsConnection, message []byte) {
	var req JSONRPCRequest
	if err := json.Unmarshal(message, &req); err != nil {
		wsConn.sendError(nil, ErrCodeParseError, "Parse error", "expecting jsonrpc payload")
		return
	}

	if req.JSONRPC != "2.0" {
		wsConn.sendError(req.ID, ErrCodeInvalidRequest, "Invalid Request", "'jsonrpc' must be '2.0'")
		return
	}

	if req.ID == nil {
		wsConn.sendError(nil, ErrCodeInvalidRequest, "Invalid Request", "'id' field is required")
		return
	}

	if req.Method == "" {
		wsConn.sendError(req.ID, ErrCodeInvalidRequest, "Invalid Request", "'method' is required")
		return
	}

	utils.Info("WebSocket Request ID: %v, Method: %s, Params: %s", req.ID, req.Method, string(req.Params))

	result, err := Execute(r.Context(), req.Method, req.Params)
	if err != nil {
		if err == errMethodNotFound {
			wsConn.sendError(req.ID, ErrCodeMethodNotFound, "Method not found", req.Method+" not found")
			return
		}
		utils.Error("Error executing method %s: %v", req.Method, err)
		wsConn.sendError(req.ID, ErrCodeServerError, "Server error", err.Error())
		return
	}

	wsConn.sendResponse(req.ID, result)
}

func (wsc *wsConnection) sendResponse(id interface{}, result interface{}) error {
	response := JSONRPCResponse{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
	return wsc.sendJSON(response)
}

func (wsc *wsConnection) sendError(id interface{}, code int, message string, data interface{}) error {
	response := JSONRPCResponse{
		JSONRPC: "2.0",
		Error: map[string]interface{}{
			"code":    code,
			"message": message,
			"data":    data,
		},
		ID: id,
	}
	return wsc.sendJSON(response)
}

func (wsc *wsConnection) sendJSON(v interface{}) error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()
	return wsc.conn.WriteJSON(v)
}

// EventEnvelope is the wire format for pushed harness events.
type EventEnvelope struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// EventHub broadcasts harness recorder events (test-started,
// test-completed, device-changed, ...) to every client connected to
// /events. It implements harness.Emitter through the commands event mux.
type EventHub struct {
	mu      sync.Mutex
	clients map[*wsConnection]struct{}
	detach  func()
}

// NewEventHub creates a hub; call Start to attach it to the harness.
func NewEventHub() *EventHub {
	return &EventHub{clients: make(map[*wsConnection]struct{})}
}

// Start attaches the hub to the harness event stream.
func (h *EventHub) Start() {
	h.detach = commands.Events().Attach(h)
}

// Stop detaches the hub and drops all clients.
func (h *EventHub) Stop() {
	if h.detach != nil {
		h.detach()
		h.detach = nil
	}
	h.mu.Lock()
	for client := range h.clients {
		_ = client.conn.Close()
	}
	h.clients = make(map[*wsConnection]struct{})
	h.mu.Unlock()
}

// Emit implements harness.Emitter by fanning the event out to every
// connected client. Clients whose writes fail are dropped.
func (h *EventHub) Emit(event string, payload any) {
	h.mu.Lock()
	clients := make([]*wsConnection, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	envelope := EventEnvelope{Event: event, Payload: payload}
	for _, client := range clients {
		if err := client.sendJSON(envelope); err != nil {
			utils.Verbose("dropping events client: %v", err)
			h.remove(client)
			_ = client.conn.Close()
		}
	}
}

func (h *EventHub) add(client *wsConnection) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
}

func (h *EventHub) remove(client *wsConnection) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
}

// ClientCount returns the number of connected event clients.
func (h *EventHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleEvents upgrades the connection and streams events until the client
// goes away. Incoming messages are read and discarded to service control
// frames.
func (h *EventHub) HandleEvents(enableCORS bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := newUpgrader(enableCORS).Upgrade(w, r, nil)
		if err != nil {
			utils.Warn("events upgrade failed: %v", err)
			return
		}

		client := &wsConnection{conn: conn}
		h.add(client)
		defer func() {
			h.remove(client)
			_ = conn.Close()
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				utils.Verbose("events client disconnected: %v", err)
				return
			}
		}
	}
}
