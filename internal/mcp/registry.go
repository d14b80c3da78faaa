package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Handler runs a tool with its decoded arguments and returns the result text.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Param describes one tool argument. Params keep their declaration order in
// the advertised input schema.
type Param struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// Tool is a named, schema-described operation.
type Tool struct {
	Name        string
	Description string
	Params      []Param
	Handler     Handler
}

// MarshalJSON renders the tools/list entry for t.
func (t Tool) MarshalJSON() ([]byte, error) {
	schema, err := t.inputSchema()
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		InputSchema json.RawMessage `json:"inputSchema"`
	}{t.Name, t.Description, schema})
}

// inputSchema builds a JSON Schema object whose properties appear in Params order.
func (t Tool) inputSchema() (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"type":"object","properties":{`)
	required := []string{}
	for i, p := range t.Params {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Name)
		if err != nil {
			return nil, err
		}
		prop, err := json.Marshal(struct {
			Type        string `json:"type"`
			Description string `json:"description,omitempty"`
		}{p.Type, p.Description})
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(prop)
		if p.Required {
			required = append(required, p.Name)
		}
	}
	buf.WriteString(`}`)
	if len(required) > 0 {
		req, err := json.Marshal(required)
		if err != nil {
			return nil, err
		}
		buf.WriteString(`,"required":`)
		buf.Write(req)
	}
	buf.WriteString(`}`)
	return buf.Bytes(), nil
}

// Registry is an immutable, ordered set of tools.
type Registry struct {
	tools []Tool
	index map[string]int
}

// NewRegistry validates tools and returns them in registration order.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{index: make(map[string]int, len(tools))}
	for _, t := range tools {
		if t.Name == "" {
			return nil, errors.New("tool name is empty")
		}
		if t.Handler == nil {
			return nil, fmt.Errorf("tool %s has no handler", t.Name)
		}
		if _, dup := r.index[t.Name]; dup {
			return nil, fmt.Errorf("duplicate tool name: %s", t.Name)
		}
		r.index[t.Name] = len(r.tools)
		r.tools = append(r.tools, t)
	}
	return r, nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	i, ok := r.index[name]
	if !ok {
		return Tool{}, false
	}
	return r.tools[i], true
}

// Tools returns the registered tools in order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, len(r.tools))
	copy(out, r.tools)
	return out
}
