package tools

// ParamType is the semantic type of a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
)

// Param declares one tool parameter.
type Param struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description,omitempty"`
	Required    bool      `json:"required"`
}

// Definition is the serializable descriptor for one tool: the contract
// surface the prediction service reasons over. It must not change shape
// between the catalog advertisement and the invocation it authorizes.
type Definition struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params,omitempty"`
	Returns     string  `json:"returns,omitempty"`
}

// ToolSchema is a tool definition in OpenAI function-calling format.
type ToolSchema struct {
	Type     string         `json:"type"`
	Function FunctionSchema `json:"function"`
}

// FunctionSchema describes a callable tool function.
type FunctionSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterSchema `json:"parameters"`
}

// ParameterSchema defines the input parameters for a tool.
type ParameterSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// PropertySchema describes a single parameter property.
type PropertySchema struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// FunctionSchema converts the definition to OpenAI function-calling format.
func (d Definition) FunctionSchema() ToolSchema {
	params := ParameterSchema{
		Type:       "object",
		Properties: make(map[string]PropertySchema, len(d.Params)),
	}
	for _, p := range d.Params {
		params.Properties[p.Name] = PropertySchema{
			Type:        string(p.Type),
			Description: p.Description,
		}
		if p.Required {
			params.Required = append(params.Required, p.Name)
		}
	}
	return ToolSchema{
		Type: "function",
		Function: FunctionSchema{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  params,
		},
	}
}

// MCPDefinition converts the definition to the MCP tools/list shape.
func (d Definition) MCPDefinition() map[string]any {
	properties := make(map[string]any, len(d.Params))
	var required []string
	for _, p := range d.Params {
		prop := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	inputSchema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		inputSchema["required"] = required
	}
	return map[string]any{
		"name":        d.Name,
		"description": d.Description,
		"inputSchema": inputSchema,
	}
}
