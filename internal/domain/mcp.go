package domain

// MCPTool describes a tool advertised over tools/list, per the MCP
// 2025-03-26 tool schema.
type MCPTool struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	InputSchema MCPToolInputSchema `json:"inputSchema"`
}

// MCPToolInputSchema is a minimal JSON Schema object describing a
// tool's call arguments.
type MCPToolInputSchema struct {
	Type       string                        `json:"type"`
	Properties map[string]MCPSchemaProperty  `json:"properties,omitempty"`
	Required   []string                      `json:"required,omitempty"`
}

// MCPSchemaProperty describes one property within a tool's input
// schema.
type MCPSchemaProperty struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Default     any      `json:"default,omitempty"`
}

// MCPResource describes a resource advertised over resources/list.
type MCPResource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// MCPResourceContent is one entry in a resources/read response.
type MCPResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
}
