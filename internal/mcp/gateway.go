// Package mcp implements the dfcache MCP Gateway.
//
// Protocol: MCP 2025-03-26 over JSON-RPC 2.0 / Streamable HTTP
// Tools:     cache_store, cache_query, cache_summarize, cache_list, cache_delete
// Resources: dfcache://datasets
//
// Grounded on the teacher's internal/mcp/gateway.go: the same
// initialize/tools-list/tools-call/resources-list/resources-read
// dispatch shape, generalized from LLM-inference tools to dataset-cache
// tools backed by the manager facade instead of an engine pool.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/plusplusoneplusplus/dfcache/internal/domain"
)

const (
	MCPProtocolVersion = "2025-03-26"
	ServerName         = "dfcache-mcp"
	ServerVersion      = "0.1.0"
)

// Manager is the narrow facade surface the gateway's tools need.
// Satisfied by *manager.Manager; kept as an interface so tests can
// substitute a fake cache.
type Manager interface {
	Store(ctx context.Context, t domain.Table, ttlSeconds *int64, tags domain.Tags) (domain.DatasetMetadata, error)
	Query(ctx context.Context, id, op string, params map[string]any) (domain.QueryResult, error)
	Summarize(ctx context.Context, id string, byteBudget int, includeSample bool) (domain.Summary, error)
	List(ctx context.Context, filter domain.Tags, limit int) ([]domain.DatasetMetadata, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// TableDecoder builds a domain.Table from the tool arguments a caller
// provides for cache_store (records + column order). Kept separate
// from Manager so the gateway never imports the tabular package
// directly.
type TableDecoder func(records []map[string]any, columns []string) (domain.Table, error)

// Gateway is the MCP server that handles JSON-RPC 2.0 requests.
type Gateway struct {
	cache     Manager
	decode    TableDecoder
	tools     []domain.MCPTool
	resources []domain.MCPResource
}

// NewGateway creates a fully configured MCP Gateway over cache.
func NewGateway(cache Manager, decode TableDecoder) *Gateway {
	g := &Gateway{cache: cache, decode: decode}
	g.tools = g.defineTools()
	g.resources = g.defineResources()
	return g
}

// HandleRequest is the main dispatch for a JSON-RPC 2.0 request.
// It returns a Response for requests, or nil for notifications.
func (g *Gateway) HandleRequest(ctx context.Context, raw []byte) *Response {
	req, errResp := ParseRequest(raw)
	if errResp != nil {
		return errResp
	}

	if req.ID == nil {
		g.handleNotification(req)
		return nil
	}

	resp := g.dispatch(ctx, req)
	return &resp
}

func (g *Gateway) dispatch(ctx context.Context, req Request) Response {
	switch req.Method {
	case "initialize":
		return g.handleInitialize(req)
	case "notifications/initialized":
		return g.ack(req.ID)
	case "tools/list":
		return g.handleToolsList(req)
	case "tools/call":
		return g.handleToolsCall(ctx, req)
	case "resources/list":
		return g.handleResourcesList(req)
	case "resources/read":
		return g.handleResourcesRead(ctx, req)
	case "ping":
		return g.ack(req.ID)
	default:
		return NewMethodNotFound(req.ID, req.Method)
	}
}

// ─── initialize ─────────────────────────────────────────────────────────────

type initializeParams struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ClientInfo      clientInfo `json:"clientInfo"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type initializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	ServerInfo      serverInfo   `json:"serverInfo"`
	Capabilities    capabilities `json:"capabilities"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type capabilities struct {
	Tools     *toolsCap     `json:"tools,omitempty"`
	Resources *resourcesCap `json:"resources,omitempty"`
	Logging   *struct{}     `json:"logging,omitempty"`
}

type toolsCap struct {
	ListChanged bool `json:"listChanged"`
}

type resourcesCap struct {
	Subscribe   bool `json:"subscribe"`
	ListChanged bool `json:"listChanged"`
}

func (g *Gateway) handleInitialize(req Request) Response {
	var params initializeParams
	if req.Params != nil {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return NewInvalidParams(req.ID, "invalid initialize params")
		}
	}

	log.Printf("[mcp] initialize from client=%s version=%s protocol=%s",
		params.ClientInfo.Name, params.ClientInfo.Version, params.ProtocolVersion)

	result := initializeResult{
		ProtocolVersion: MCPProtocolVersion,
		ServerInfo: serverInfo{
			Name:    ServerName,
			Version: ServerVersion,
		},
		Capabilities: capabilities{
			Tools:     &toolsCap{ListChanged: false},
			Resources: &resourcesCap{Subscribe: false, ListChanged: false},
		},
	}

	resp, err := NewResult(req.ID, result)
	if err != nil {
		return NewInternalError(req.ID, err.Error())
	}
	return resp
}

// ─── tools/list ─────────────────────────────────────────────────────────────

type toolsListResult struct {
	Tools []domain.MCPTool `json:"tools"`
}

func (g *Gateway) handleToolsList(req Request) Response {
	result := toolsListResult{Tools: g.tools}
	resp, err := NewResult(req.ID, result)
	if err != nil {
		return NewInternalError(req.ID, err.Error())
	}
	return resp
}

// ─── tools/call ─────────────────────────────────────────────────────────────

type toolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type toolsCallResult struct {
	Content []contentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func (g *Gateway) handleToolsCall(ctx context.Context, req Request) Response {
	var params toolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return NewInvalidParams(req.ID, "invalid tools/call params")
	}

	switch params.Name {
	case "cache_store":
		return g.callStore(ctx, req.ID, params.Arguments)
	case "cache_query":
		return g.callQuery(ctx, req.ID, params.Arguments)
	case "cache_summarize":
		return g.callSummarize(ctx, req.ID, params.Arguments)
	case "cache_list":
		return g.callList(ctx, req.ID, params.Arguments)
	case "cache_delete":
		return g.callDelete(ctx, req.ID, params.Arguments)
	default:
		return NewInvalidParams(req.ID, fmt.Sprintf("unknown tool: %s", params.Name))
	}
}

// ─── Tool Handlers ───────────────────────────────────────────────────────────

type storeArgs struct {
	Records    []map[string]any `json:"records"`
	Columns    []string         `json:"columns"`
	TTLSeconds *int64           `json:"ttl_seconds,omitempty"`
	Tags       domain.Tags      `json:"tags,omitempty"`
}

func (g *Gateway) callStore(ctx context.Context, id any, args json.RawMessage) Response {
	var p storeArgs
	if err := json.Unmarshal(args, &p); err != nil {
		return NewInvalidParams(id, "invalid cache_store params")
	}
	if len(p.Records) == 0 {
		return NewInvalidParams(id, "records must not be empty")
	}

	t, err := g.decode(p.Records, p.Columns)
	if err != nil {
		return NewInvalidParams(id, fmt.Sprintf("invalid records: %v", err))
	}

	meta, err := g.cache.Store(ctx, t, p.TTLSeconds, p.Tags)
	if err != nil {
		return g.toolError(id, err)
	}
	return g.toolJSON(id, meta)
}

type queryArgs struct {
	DatasetID string         `json:"df_id"`
	Operation string         `json:"operation"`
	Params    map[string]any `json:"params"`
}

func (g *Gateway) callQuery(ctx context.Context, id any, args json.RawMessage) Response {
	var p queryArgs
	if err := json.Unmarshal(args, &p); err != nil {
		return NewInvalidParams(id, "invalid cache_query params")
	}
	if p.DatasetID == "" {
		return NewInvalidParams(id, "df_id is required")
	}
	if p.Operation == "" {
		return NewInvalidParams(id, "operation is required")
	}

	result, err := g.cache.Query(ctx, p.DatasetID, p.Operation, p.Params)
	if err != nil {
		return g.toolError(id, err)
	}
	return g.toolJSON(id, result)
}

type summarizeArgs struct {
	DatasetID     string `json:"df_id"`
	ByteBudget    int    `json:"byte_budget"`
	IncludeSample bool   `json:"include_sample"`
}

func (g *Gateway) callSummarize(ctx context.Context, id any, args json.RawMessage) Response {
	var p summarizeArgs
	if err := json.Unmarshal(args, &p); err != nil {
		return NewInvalidParams(id, "invalid cache_summarize params")
	}
	if p.DatasetID == "" {
		return NewInvalidParams(id, "df_id is required")
	}
	if p.ByteBudget <= 0 {
		p.ByteBudget = 4096
	}

	summary, err := g.cache.Summarize(ctx, p.DatasetID, p.ByteBudget, p.IncludeSample)
	if err != nil {
		return g.toolError(id, err)
	}
	return g.toolJSON(id, summary)
}

type listArgs struct {
	Tags  domain.Tags `json:"tags,omitempty"`
	Limit int         `json:"limit,omitempty"`
}

func (g *Gateway) callList(ctx context.Context, id any, args json.RawMessage) Response {
	var p listArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &p); err != nil {
			return NewInvalidParams(id, "invalid cache_list params")
		}
	}

	items, err := g.cache.List(ctx, p.Tags, p.Limit)
	if err != nil {
		return g.toolError(id, err)
	}
	return g.toolJSON(id, items)
}

type deleteArgs struct {
	DatasetID string `json:"df_id"`
}

func (g *Gateway) callDelete(ctx context.Context, id any, args json.RawMessage) Response {
	var p deleteArgs
	if err := json.Unmarshal(args, &p); err != nil {
		return NewInvalidParams(id, "invalid cache_delete params")
	}
	if p.DatasetID == "" {
		return NewInvalidParams(id, "df_id is required")
	}

	removed, err := g.cache.Delete(ctx, p.DatasetID)
	if err != nil {
		return g.toolError(id, err)
	}
	return g.toolJSON(id, map[string]bool{"removed": removed})
}

// ─── resources/list ─────────────────────────────────────────────────────────

type resourcesListResult struct {
	Resources []domain.MCPResource `json:"resources"`
}

func (g *Gateway) handleResourcesList(req Request) Response {
	result := resourcesListResult{Resources: g.resources}
	resp, err := NewResult(req.ID, result)
	if err != nil {
		return NewInternalError(req.ID, err.Error())
	}
	return resp
}

// ─── resources/read ─────────────────────────────────────────────────────────

type resourcesReadParams struct {
	URI string `json:"uri"`
}

type resourcesReadResult struct {
	Contents []domain.MCPResourceContent `json:"contents"`
}

func (g *Gateway) handleResourcesRead(ctx context.Context, req Request) Response {
	var params resourcesReadParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return NewInvalidParams(req.ID, "invalid resources/read params")
	}

	switch params.URI {
	case "dfcache://datasets":
		return g.readDatasets(ctx, req.ID)
	default:
		return NewInvalidParams(req.ID, fmt.Sprintf("unknown resource: %s", params.URI))
	}
}

func (g *Gateway) readDatasets(ctx context.Context, id any) Response {
	items, err := g.cache.List(ctx, nil, 0)
	if err != nil {
		return g.toolError(id, err)
	}
	data, _ := json.Marshal(items)
	result := resourcesReadResult{
		Contents: []domain.MCPResourceContent{
			{URI: "dfcache://datasets", MimeType: "application/json", Text: string(data)},
		},
	}
	resp, err := NewResult(id, result)
	if err != nil {
		return NewInternalError(id, err.Error())
	}
	return resp
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func (g *Gateway) toolJSON(id any, v any) Response {
	data, err := json.Marshal(v)
	if err != nil {
		return NewInternalError(id, err.Error())
	}
	result := toolsCallResult{
		Content: []contentBlock{{Type: "text", Text: string(data)}},
	}
	resp, err := NewResult(id, result)
	if err != nil {
		return NewInternalError(id, err.Error())
	}
	return resp
}

func (g *Gateway) toolError(id any, err error) Response {
	result := toolsCallResult{
		Content: []contentBlock{{Type: "text", Text: err.Error()}},
		IsError: true,
	}
	resp, merr := NewResult(id, result)
	if merr != nil {
		return NewInternalError(id, merr.Error())
	}
	return resp
}

func (g *Gateway) ack(id any) Response {
	resp, _ := NewResult(id, struct{}{})
	return resp
}

func (g *Gateway) handleNotification(req Request) {
	log.Printf("[mcp] notification: %s", req.Method)
}

// ─── Tool & Resource Definitions ────────────────────────────────────────────

func (g *Gateway) defineTools() []domain.MCPTool {
	return []domain.MCPTool{
		{
			Name:        "cache_store",
			Description: "Store a tabular dataset in the cache and receive a df_id handle.",
			InputSchema: domain.MCPToolInputSchema{
				Type: "object",
				Properties: map[string]domain.MCPSchemaProperty{
					"records":     {Type: "array", Description: "Row-oriented records, one object per row"},
					"columns":     {Type: "array", Description: "Column order; if omitted, columns are collected from the records in no defined order"},
					"ttl_seconds": {Type: "integer", Description: "Expiration in seconds from now; omit for no expiry"},
					"tags":        {Type: "object", Description: "Free-form key/value tags for later List filtering"},
				},
				Required: []string{"records"},
			},
		},
		{
			Name:        "cache_query",
			Description: "Run a query operation (head, tail, sample, describe, info, filter, search, value_counts) against a cached dataset.",
			InputSchema: domain.MCPToolInputSchema{
				Type: "object",
				Properties: map[string]domain.MCPSchemaProperty{
					"df_id":     {Type: "string", Description: "Dataset handle returned by cache_store"},
					"operation": {Type: "string", Description: "Operation name", Enum: []string{"head", "tail", "sample", "describe", "info", "filter", "search", "value_counts"}},
					"params":    {Type: "object", Description: "Operation-specific parameters"},
				},
				Required: []string{"df_id", "operation"},
			},
		},
		{
			Name:        "cache_summarize",
			Description: "Produce a structured statistical summary of a cached dataset within a byte budget.",
			InputSchema: domain.MCPToolInputSchema{
				Type: "object",
				Properties: map[string]domain.MCPSchemaProperty{
					"df_id":          {Type: "string", Description: "Dataset handle returned by cache_store"},
					"byte_budget":    {Type: "integer", Description: "Soft cap on summary size in bytes", Default: 4096},
					"include_sample": {Type: "boolean", Description: "Attach a representative row sample", Default: false},
				},
				Required: []string{"df_id"},
			},
		},
		{
			Name:        "cache_list",
			Description: "List cached datasets, optionally filtered by tags.",
			InputSchema: domain.MCPToolInputSchema{
				Type: "object",
				Properties: map[string]domain.MCPSchemaProperty{
					"tags":  {Type: "object", Description: "Tag key/value pairs a dataset must match"},
					"limit": {Type: "integer", Description: "Maximum entries to return, 0 = unlimited"},
				},
			},
		},
		{
			Name:        "cache_delete",
			Description: "Evict a dataset from the cache ahead of its TTL.",
			InputSchema: domain.MCPToolInputSchema{
				Type: "object",
				Properties: map[string]domain.MCPSchemaProperty{
					"df_id": {Type: "string", Description: "Dataset handle to remove"},
				},
				Required: []string{"df_id"},
			},
		},
	}
}

func (g *Gateway) defineResources() []domain.MCPResource {
	return []domain.MCPResource{
		{
			URI:         "dfcache://datasets",
			Name:        "Cached Datasets",
			Description: "Metadata for every dataset currently resident in the cache",
			MimeType:    "application/json",
		},
	}
}
