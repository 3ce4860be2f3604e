package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	mcpserver "github.com/mark3labs/mcp-go/server"
	log "github.com/sirupsen/logrus"

	"github.com/loonghao/ppt-kit/internal/bridge"
	"github.com/loonghao/ppt-kit/internal/tools"
)

// API bundles what the plain HTTP endpoints need.
type API struct {
	dispatcher *tools.Dispatcher
	bridge     *bridge.Bridge
	version    string
	transport  string
}

// NewRouter wires the HTTP binding: health and tool listing, the executor
// WebSocket, and the MCP SSE + streamable HTTP mounts.
func NewRouter(d *tools.Dispatcher, b *bridge.Bridge, mcpSrv *mcpserver.MCPServer, version, transport string) *mux.Router {
	api := &API{dispatcher: d, bridge: b, version: version, transport: transport}

	router := mux.NewRouter()
	router.Use(recoveryMiddleware)
	router.Use(loggingMiddleware)

	router.HandleFunc("/health", api.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/tools", api.handleTools).Methods(http.MethodGet)
	router.HandleFunc("/ws", b.HandleWebSocket)

	// MCP over SSE: GET /sse opens the stream and registers the session,
	// POST /messages?sessionId=... delivers client frames for it.
	sse := mcpserver.NewSSEServer(mcpSrv,
		mcpserver.WithSSEEndpoint("/sse"),
		mcpserver.WithMessageEndpoint("/messages"),
	)
	router.PathPrefix("/sse").Handler(sse)
	router.PathPrefix("/messages").Handler(sse)

	// MCP over streamable HTTP on /mcp.
	streamable := mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath("/mcp"),
	)
	router.PathPrefix("/mcp").Handler(streamable)

	return router
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"server":           ServerName,
		"version":          a.version,
		"browserConnected": a.bridge.Connected(),
		"transport":        a.transport,
	})
}

func (a *API) handleTools(w http.ResponseWriter, r *http.Request) {
	defs := a.dispatcher.ListTools()
	list := make([]map[string]any, 0, len(defs))
	for _, def := range defs {
		tool := def.MCPTool()
		list = append(list, map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": tool.InputSchema,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tools":            list,
		"count":            len(list),
		"browserConnected": a.bridge.Connected(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}
