// Package tools holds the tool registry: the declarative schema the
// orchestrator selects from, argument validation, and the local tool
// handlers. The registry is built once at startup and read-only after
// that; dispatch by name is a single map lookup, never reflection.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/juniperhq/valet/internal/envelope"
	"github.com/juniperhq/valet/internal/fault"
)

// Kind tells the dispatcher how to execute a resolved invocation.
type Kind string

const (
	KindLocal Kind = "local"
	KindMCP   Kind = "mcp"
)

// Handler is a local tool implementation.
type Handler func(ctx context.Context, args map[string]any) (*envelope.Result, error)

// ParamSpec declares one tool parameter. Items supplies the element
// schema for array parameters.
type ParamSpec struct {
	Type        string
	Required    bool
	Description string
	Enum        []string
	Items       map[string]any
}

// Spec declares one tool. Exactly one of Handler (local) or
// Service/Method (mcp) is set, matching Kind.
type Spec struct {
	Name        string
	Description string
	Params      map[string]ParamSpec
	Kind        Kind

	Handler Handler
	Service string
	Method  string
}

// FunctionDef is the per-tool schema handed to the orchestrator, shaped
// for OpenAI-style function calling.
type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Invocation is a validated, bound call ready for execution.
type Invocation struct {
	Spec *Spec
	Args map[string]any
}

type compiledSpec struct {
	spec   Spec
	schema *jsonschema.Schema
	params map[string]any
}

// Registry maps tool names to compiled specs. Register during startup,
// then treat as immutable.
type Registry struct {
	specs map[string]*compiledSpec
	order []string
}

func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]*compiledSpec)}
}

// Register adds a tool. Name collisions are programmer error and fatal:
// the orchestrator selects tools by name alone, so the namespace is flat
// across local and MCP tools.
func (r *Registry) Register(spec Spec) error {
	if spec.Name == "" {
		return fault.New(fault.KindDuplicateTool, "tool spec missing name")
	}
	if _, exists := r.specs[spec.Name]; exists {
		return fault.New(fault.KindDuplicateTool, "tool %q already registered", spec.Name)
	}
	switch spec.Kind {
	case KindLocal:
		if spec.Handler == nil {
			return fault.New(fault.KindDuplicateTool, "local tool %q has no handler", spec.Name)
		}
	case KindMCP:
		if spec.Service == "" || spec.Method == "" {
			return fault.New(fault.KindDuplicateTool, "mcp tool %q missing service/method", spec.Name)
		}
	default:
		return fault.New(fault.KindDuplicateTool, "tool %q has unknown kind %q", spec.Name, spec.Kind)
	}

	params := parameterSchema(spec.Params)
	schema, err := compileSchema(spec.Name, params)
	if err != nil {
		return fmt.Errorf("compile schema for %q: %w", spec.Name, err)
	}
	r.specs[spec.Name] = &compiledSpec{spec: spec, schema: schema, params: params}
	r.order = append(r.order, spec.Name)
	return nil
}

// Schema returns the full declarative tool schema in registration order.
// This is the contract surface between the LLM and the system.
func (r *Registry) Schema() []FunctionDef {
	out := make([]FunctionDef, 0, len(r.order))
	for _, name := range r.order {
		cs := r.specs[name]
		out = append(out, FunctionDef{
			Name:        cs.spec.Name,
			Description: cs.spec.Description,
			Parameters:  cs.params,
		})
	}
	return out
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Resolve validates raw arguments against the tool's parameter schema
// and returns a bound invocation. Schema failures report every violated
// constraint, not just the first.
func (r *Registry) Resolve(name string, rawArgs json.RawMessage) (*Invocation, error) {
	cs, ok := r.specs[name]
	if !ok {
		return nil, fault.New(fault.KindSchema, "unknown tool %q", name)
	}

	if len(rawArgs) == 0 {
		rawArgs = json.RawMessage("{}")
	}
	parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(string(rawArgs)))
	if err != nil {
		return nil, fault.New(fault.KindSchema, "tool %q: arguments are not valid JSON: %v", name, err)
	}

	args, ok := parsed.(map[string]any)
	if !ok {
		return nil, fault.New(fault.KindSchema, "tool %q: arguments must be a JSON object", name)
	}
	coerceArgs(args, cs.spec.Params)

	if err := cs.schema.Validate(args); err != nil {
		violations := flattenViolations(err)
		return nil, fault.New(fault.KindSchema, "tool %q: invalid arguments: %s",
			name, strings.Join(violations, "; "))
	}

	return &Invocation{Spec: &cs.spec, Args: args}, nil
}

func parameterSchema(params map[string]ParamSpec) map[string]any {
	props := make(map[string]any, len(params))
	var required []string
	for pname, p := range params {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			enum := make([]any, len(p.Enum))
			for i, v := range p.Enum {
				enum[i] = v
			}
			prop["enum"] = enum
		}
		if p.Type == "array" {
			items := p.Items
			if items == nil {
				items = map[string]any{"type": "object"}
			}
			prop["items"] = items
		}
		props[pname] = prop
		if p.Required {
			required = append(required, pname)
		}
	}
	sort.Strings(required)
	doc := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

func compileSchema(name string, doc map[string]any) (*jsonschema.Schema, error) {
	// Round-trip through jsonschema's own decoder for json.Number
	// handling, which the validator requires.
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	resource := name + ".schema.json"
	if err := c.AddResource(resource, parsed); err != nil {
		return nil, err
	}
	return c.Compile(resource)
}

// coerceArgs applies the lenient conversions LLMs need in practice:
// numeric strings for integer/number parameters and numbers for string
// parameters. Anything else is left for the validator to report.
func coerceArgs(args map[string]any, params map[string]ParamSpec) {
	for pname, p := range params {
		v, ok := args[pname]
		if !ok {
			continue
		}
		switch p.Type {
		case "integer", "number":
			if s, isStr := v.(string); isStr {
				if n, ok := parseNumber(s); ok {
					args[pname] = n
				}
			}
		case "string":
			if n, isNum := v.(json.Number); isNum {
				args[pname] = n.String()
			}
		}
	}
}

func parseNumber(s string) (json.Number, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	var probe any
	if err := json.Unmarshal([]byte(s), &probe); err != nil {
		return "", false
	}
	switch probe.(type) {
	case float64:
		return json.Number(s), true
	}
	return "", false
}

// flattenViolations walks the validator's cause tree and returns every
// leaf message.
func flattenViolations(err error) []string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}
	var out []string
	var walk func(v *jsonschema.ValidationError)
	walk = func(v *jsonschema.ValidationError) {
		if len(v.Causes) == 0 {
			out = append(out, v.Error())
			return
		}
		for _, c := range v.Causes {
			walk(c)
		}
	}
	walk(ve)
	return out
}
