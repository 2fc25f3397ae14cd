package mcp

import (
	"encoding/json"
	"io"
	"net/http"
)

// ─── Streamable HTTP Transport ──────────────────────────────────────
//
// POST /mcp → JSON-RPC 2.0 request/response.
//
// Grounded on the teacher's internal/mcp/transport.go: the
// Transport{gateway}/ServeHTTP/handlePost shape and the 1 MB body
// limit are carried over. The teacher's GET (SSE) and DELETE (session
// close) handlers existed to push server-initiated notifications to a
// long-running inference session; dfcache's tools (store/query/
// summarize/list/delete) are all synchronous request/response with no
// server-initiated push, so that session/SSE machinery has no
// component to serve here and is dropped rather than kept unwired.
type Transport struct {
	gateway *Gateway
}

// NewTransport creates a Streamable HTTP transport over gateway.
func NewTransport(gateway *Gateway) *Transport {
	return &Transport{gateway: gateway}
}

// ServeHTTP implements http.Handler — the single MCP endpoint.
func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	t.handlePost(w, r)
}

func (t *Transport) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1 MB limit
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if len(body) == 0 {
		http.Error(w, "Empty request body", http.StatusBadRequest)
		return
	}

	resp := t.gateway.HandleRequest(r.Context(), body)

	// Notifications (e.g. notifications/initialized) return no response.
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Write(data)
}
