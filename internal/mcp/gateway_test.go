package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/plusplusoneplusplus/dfcache/internal/domain"
	"github.com/plusplusoneplusplus/dfcache/internal/infra/tabular"
)

// ─── Fakes ──────────────────────────────────────────────────────────────────

type fakeManager struct {
	stored  map[string]domain.DatasetMetadata
	deleted string
}

func newFakeManager() *fakeManager {
	return &fakeManager{stored: map[string]domain.DatasetMetadata{}}
}

func (f *fakeManager) Store(ctx context.Context, t domain.Table, ttlSeconds *int64, tags domain.Tags) (domain.DatasetMetadata, error) {
	id := fmt.Sprintf("ds-%d", len(f.stored)+1)
	meta := domain.DatasetMetadata{
		ID:         id,
		CreatedAt:  time.Unix(0, 0),
		Shape:      domain.Shape{Rows: t.RowCount(), Cols: t.ColCount()},
		TTLSeconds: ttlSeconds,
		Tags:       tags,
	}
	f.stored[id] = meta
	return meta, nil
}

func (f *fakeManager) Query(ctx context.Context, id, op string, params map[string]any) (domain.QueryResult, error) {
	if _, ok := f.stored[id]; !ok {
		return domain.QueryResult{}, domain.NotFound("dataset %q not found", id)
	}
	return domain.QueryResult{Operation: op, Columns: []string{"a"}, Data: []map[string]any{{"a": 1}}}, nil
}

func (f *fakeManager) Summarize(ctx context.Context, id string, byteBudget int, includeSample bool) (domain.Summary, error) {
	meta, ok := f.stored[id]
	if !ok {
		return domain.Summary{}, domain.NotFound("dataset %q not found", id)
	}
	return domain.Summary{ID: id, Shape: meta.Shape}, nil
}

func (f *fakeManager) List(ctx context.Context, filter domain.Tags, limit int) ([]domain.DatasetMetadata, error) {
	out := make([]domain.DatasetMetadata, 0, len(f.stored))
	for _, m := range f.stored {
		if m.Tags.Matches(filter) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeManager) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := f.stored[id]; !ok {
		return false, nil
	}
	delete(f.stored, id)
	f.deleted = id
	return true, nil
}

func fakeDecode(records []map[string]any, columns []string) (domain.Table, error) {
	if len(records) == 0 {
		return nil, domain.InvalidArgument("records must not be empty")
	}
	return tabular.FromRecords(records, columns), nil
}

func newTestGateway() *Gateway {
	return NewGateway(newFakeManager(), fakeDecode)
}

func rpcRequest(method string, params any) []byte {
	p, _ := json.Marshal(params)
	req := Request{JSONRPC: JSONRPCVersion, ID: float64(1), Method: method, Params: p}
	data, _ := json.Marshal(req)
	return data
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("mustMarshal: %v", err))
	}
	return data
}

// ─── Gateway Tests ──────────────────────────────────────────────────────────

func TestGatewayInitialize(t *testing.T) {
	gw := newTestGateway()
	raw := rpcRequest("initialize", map[string]any{
		"protocolVersion": "2025-03-26",
		"clientInfo":      map[string]string{"name": "test-client"},
	})

	resp := gw.HandleRequest(context.Background(), raw)
	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}

	var result initializeResult
	json.Unmarshal(resp.Result, &result)
	if result.ProtocolVersion != MCPProtocolVersion {
		t.Errorf("protocol = %q, want %q", result.ProtocolVersion, MCPProtocolVersion)
	}
	if result.ServerInfo.Name != ServerName {
		t.Errorf("server = %q, want %q", result.ServerInfo.Name, ServerName)
	}
	if result.Capabilities.Tools == nil || result.Capabilities.Resources == nil {
		t.Error("expected tools and resources capabilities")
	}
}

func TestGatewayPing(t *testing.T) {
	gw := newTestGateway()
	resp := gw.HandleRequest(context.Background(), rpcRequest("ping", nil))
	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGatewayMethodNotFound(t *testing.T) {
	gw := newTestGateway()
	resp := gw.HandleRequest(context.Background(), rpcRequest("nonexistent/method", nil))
	if resp == nil || resp.Error == nil {
		t.Fatal("expected error")
	}
	if resp.Error.Code != CodeMethodNotFound {
		t.Errorf("code = %d, want %d", resp.Error.Code, CodeMethodNotFound)
	}
}

func TestGatewayToolsList(t *testing.T) {
	gw := newTestGateway()
	resp := gw.HandleRequest(context.Background(), rpcRequest("tools/list", nil))
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	var result toolsListResult
	json.Unmarshal(resp.Result, &result)
	if len(result.Tools) != 5 {
		t.Fatalf("expected 5 tools, got %d", len(result.Tools))
	}
	names := map[string]bool{}
	for _, tool := range result.Tools {
		names[tool.Name] = true
	}
	for _, expected := range []string{"cache_store", "cache_query", "cache_summarize", "cache_list", "cache_delete"} {
		if !names[expected] {
			t.Errorf("missing tool: %s", expected)
		}
	}
}

func TestGatewayResourcesList(t *testing.T) {
	gw := newTestGateway()
	resp := gw.HandleRequest(context.Background(), rpcRequest("resources/list", nil))
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	var result resourcesListResult
	json.Unmarshal(resp.Result, &result)
	if len(result.Resources) != 1 {
		t.Fatalf("expected 1 resource, got %d", len(result.Resources))
	}
}

func TestGatewayToolsCallStoreThenQuery(t *testing.T) {
	gw := newTestGateway()

	storeReq := rpcRequest("tools/call", toolsCallParams{
		Name: "cache_store",
		Arguments: mustMarshal(storeArgs{
			Records: []map[string]any{{"a": 1}, {"a": 2}},
		}),
	})
	resp := gw.HandleRequest(context.Background(), storeReq)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	var callResult toolsCallResult
	json.Unmarshal(resp.Result, &callResult)
	var meta domain.DatasetMetadata
	json.Unmarshal([]byte(callResult.Content[0].Text), &meta)
	if meta.ID == "" {
		t.Fatal("expected a df_id in the store result")
	}

	queryReq := rpcRequest("tools/call", toolsCallParams{
		Name: "cache_query",
		Arguments: mustMarshal(queryArgs{
			DatasetID: meta.ID,
			Operation: "head",
		}),
	})
	resp = gw.HandleRequest(context.Background(), queryReq)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
}

func TestGatewayToolsCallStoreEmptyRecords(t *testing.T) {
	gw := newTestGateway()
	raw := rpcRequest("tools/call", toolsCallParams{
		Name:      "cache_store",
		Arguments: mustMarshal(storeArgs{}),
	})
	resp := gw.HandleRequest(context.Background(), raw)
	if resp.Error == nil {
		t.Fatal("expected error for empty records")
	}
	if resp.Error.Code != CodeInvalidParams {
		t.Errorf("code = %d, want %d", resp.Error.Code, CodeInvalidParams)
	}
}

func TestGatewayToolsCallQueryUnknownDataset(t *testing.T) {
	gw := newTestGateway()
	raw := rpcRequest("tools/call", toolsCallParams{
		Name:      "cache_query",
		Arguments: mustMarshal(queryArgs{DatasetID: "missing", Operation: "head"}),
	})
	resp := gw.HandleRequest(context.Background(), raw)
	if resp.Error != nil {
		t.Fatalf("unexpected JSON-RPC error: %v", resp.Error)
	}
	var callResult toolsCallResult
	json.Unmarshal(resp.Result, &callResult)
	if !callResult.IsError {
		t.Fatal("expected an isError tool result for an unknown dataset")
	}
}

func TestGatewayToolsCallSummarize(t *testing.T) {
	gw := newTestGateway()
	mgr := gw.cache.(*fakeManager)
	mgr.stored["ds-1"] = domain.DatasetMetadata{ID: "ds-1", Shape: domain.Shape{Rows: 3, Cols: 2}}

	raw := rpcRequest("tools/call", toolsCallParams{
		Name:      "cache_summarize",
		Arguments: mustMarshal(summarizeArgs{DatasetID: "ds-1"}),
	})
	resp := gw.HandleRequest(context.Background(), raw)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
}

func TestGatewayToolsCallList(t *testing.T) {
	gw := newTestGateway()
	mgr := gw.cache.(*fakeManager)
	mgr.stored["ds-1"] = domain.DatasetMetadata{ID: "ds-1"}
	mgr.stored["ds-2"] = domain.DatasetMetadata{ID: "ds-2"}

	raw := rpcRequest("tools/call", toolsCallParams{Name: "cache_list", Arguments: mustMarshal(listArgs{})})
	resp := gw.HandleRequest(context.Background(), raw)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	var callResult toolsCallResult
	json.Unmarshal(resp.Result, &callResult)
	var items []domain.DatasetMetadata
	json.Unmarshal([]byte(callResult.Content[0].Text), &items)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
}

func TestGatewayToolsCallDelete(t *testing.T) {
	gw := newTestGateway()
	mgr := gw.cache.(*fakeManager)
	mgr.stored["ds-1"] = domain.DatasetMetadata{ID: "ds-1"}

	raw := rpcRequest("tools/call", toolsCallParams{
		Name:      "cache_delete",
		Arguments: mustMarshal(deleteArgs{DatasetID: "ds-1"}),
	})
	resp := gw.HandleRequest(context.Background(), raw)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	if mgr.deleted != "ds-1" {
		t.Errorf("deleted = %q, want ds-1", mgr.deleted)
	}
}

func TestGatewayToolsCallUnknownTool(t *testing.T) {
	gw := newTestGateway()
	raw := rpcRequest("tools/call", toolsCallParams{
		Name:      "unknown_tool",
		Arguments: mustMarshal(map[string]string{}),
	})
	resp := gw.HandleRequest(context.Background(), raw)
	if resp.Error == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestGatewayResourcesReadDatasets(t *testing.T) {
	gw := newTestGateway()
	mgr := gw.cache.(*fakeManager)
	mgr.stored["ds-1"] = domain.DatasetMetadata{ID: "ds-1"}

	raw := rpcRequest("resources/read", resourcesReadParams{URI: "dfcache://datasets"})
	resp := gw.HandleRequest(context.Background(), raw)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	var result resourcesReadResult
	json.Unmarshal(resp.Result, &result)
	if len(result.Contents) != 1 {
		t.Fatalf("expected 1 content block, got %d", len(result.Contents))
	}
	if !strings.Contains(result.Contents[0].Text, "ds-1") {
		t.Error("expected contents to mention the stored dataset id")
	}
}

func TestGatewayResourcesReadUnknownURI(t *testing.T) {
	gw := newTestGateway()
	raw := rpcRequest("resources/read", resourcesReadParams{URI: "dfcache://unknown"})
	resp := gw.HandleRequest(context.Background(), raw)
	if resp.Error == nil {
		t.Fatal("expected error for unknown resource")
	}
}

func TestGatewayNotificationNoResponse(t *testing.T) {
	gw := newTestGateway()
	raw := []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	resp := gw.HandleRequest(context.Background(), raw)
	if resp != nil {
		t.Error("notifications should return a nil response")
	}
}

func TestToolSchemasHaveRequiredFields(t *testing.T) {
	gw := newTestGateway()
	for _, tool := range gw.tools {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.InputSchema.Type != "object" {
				t.Errorf("schema type = %q, want object", tool.InputSchema.Type)
			}
			for _, req := range tool.InputSchema.Required {
				if _, ok := tool.InputSchema.Properties[req]; !ok {
					t.Errorf("required field %q not in properties", req)
				}
			}
		})
	}
}

// ─── Transport Tests ────────────────────────────────────────────────────────

func TestTransportPostToolsCall(t *testing.T) {
	gw := newTestGateway()
	tr := NewTransport(gw)

	body := rpcRequest("tools/call", toolsCallParams{Name: "cache_list", Arguments: mustMarshal(listArgs{})})
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(string(body)))
	w := httptest.NewRecorder()
	tr.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	var resp Response
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
}

func TestTransportPostEmptyBody(t *testing.T) {
	gw := newTestGateway()
	tr := NewTransport(gw)

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(""))
	w := httptest.NewRecorder()
	tr.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestTransportPostNotification(t *testing.T) {
	gw := newTestGateway()
	tr := NewTransport(gw)

	body := []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(string(body)))
	w := httptest.NewRecorder()
	tr.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", w.Code)
	}
}

func TestTransportMethodNotAllowed(t *testing.T) {
	gw := newTestGateway()
	tr := NewTransport(gw)

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	w := httptest.NewRecorder()
	tr.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}
