package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/juniperhq/valet/internal/envelope"
	"github.com/juniperhq/valet/internal/fault"
)

func okHandler(ctx context.Context, args map[string]any) (*envelope.Result, error) {
	return &envelope.Result{Payload: args}, nil
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	spec := Spec{Name: "echo", Kind: KindLocal, Handler: okHandler}
	if err := r.Register(spec); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := r.Register(spec)
	if !fault.Is(err, fault.KindDuplicateTool) {
		t.Fatalf("duplicate register: got %v, want DuplicateToolError", err)
	}
}

func TestRegisterInvalidSpecs(t *testing.T) {
	cases := []struct {
		name string
		spec Spec
	}{
		{"missing name", Spec{Kind: KindLocal, Handler: okHandler}},
		{"local without handler", Spec{Name: "a", Kind: KindLocal}},
		{"mcp without service", Spec{Name: "b", Kind: KindMCP, Method: "m"}},
		{"mcp without method", Spec{Name: "c", Kind: KindMCP, Service: "s"}},
		{"unknown kind", Spec{Name: "d", Kind: Kind("weird")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := NewRegistry().Register(tc.spec); !fault.Is(err, fault.KindDuplicateTool) {
				t.Fatalf("got %v, want DuplicateToolError", err)
			}
		})
	}
}

func TestResolveUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("no_such_tool", json.RawMessage(`{}`))
	if !fault.Is(err, fault.KindSchema) {
		t.Fatalf("got %v, want SchemaValidationError", err)
	}
}

func TestResolveReportsAllViolations(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Spec{
		Name: "multi", Kind: KindLocal, Handler: okHandler,
		Params: map[string]ParamSpec{
			"title": {Type: "string", Required: true},
			"count": {Type: "integer", Required: true},
			"mode":  {Type: "string", Enum: []string{"fast", "slow"}},
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// Missing both required params and an enum violation in one payload.
	_, err = r.Resolve("multi", json.RawMessage(`{"mode": "medium"}`))
	if !fault.Is(err, fault.KindSchema) {
		t.Fatalf("got %v, want SchemaValidationError", err)
	}
	msg := err.Error()
	for _, want := range []string{"title", "count", "mode"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %q", msg, want)
		}
	}
}

func TestResolveCoercion(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Spec{
		Name: "typed", Kind: KindLocal, Handler: okHandler,
		Params: map[string]ParamSpec{
			"id":    {Type: "integer", Required: true},
			"label": {Type: "string"},
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	inv, err := r.Resolve("typed", json.RawMessage(`{"id": "42", "label": 7}`))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	id, ok := argInt64(inv.Args, "id")
	if !ok || id != 42 {
		t.Fatalf("id = %v (%v), want 42", inv.Args["id"], ok)
	}
	if got := argString(inv.Args, "label"); got != "7" {
		t.Fatalf("label = %q, want \"7\"", got)
	}
}

func TestResolveEmptyAndMalformedArgs(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Spec{Name: "bare", Kind: KindLocal, Handler: okHandler}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := r.Resolve("bare", nil); err != nil {
		t.Fatalf("nil args: %v", err)
	}
	if _, err := r.Resolve("bare", json.RawMessage(`not json`)); !fault.Is(err, fault.KindSchema) {
		t.Fatalf("malformed args: got %v, want SchemaValidationError", err)
	}
	if _, err := r.Resolve("bare", json.RawMessage(`[1, 2]`)); !fault.Is(err, fault.KindSchema) {
		t.Fatalf("non-object args: got %v, want SchemaValidationError", err)
	}
}

func TestSchemaOrderAndShape(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		err := r.Register(Spec{
			Name: name, Kind: KindLocal, Handler: okHandler,
			Params: map[string]ParamSpec{
				"q": {Type: "string", Required: true, Description: "query"},
			},
		})
		if err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	defs := r.Schema()
	if len(defs) != 3 {
		t.Fatalf("len(Schema()) = %d, want 3", len(defs))
	}
	for i, want := range []string{"zeta", "alpha", "mid"} {
		if defs[i].Name != want {
			t.Errorf("Schema()[%d].Name = %q, want %q", i, defs[i].Name, want)
		}
	}
	params := defs[0].Parameters
	if params["type"] != "object" {
		t.Errorf("parameters type = %v, want object", params["type"])
	}
	req, _ := params["required"].([]string)
	if len(req) != 1 || req[0] != "q" {
		t.Errorf("required = %v, want [q]", params["required"])
	}
}
