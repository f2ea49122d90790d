package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/juniperhq/valet/internal/fault"
)

// fakeTransport is an in-memory Transport backed by channels.
type fakeTransport struct {
	in  chan json.RawMessage // server -> client
	out chan json.RawMessage // client -> server
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:  make(chan json.RawMessage, 16),
		out: make(chan json.RawMessage, 16),
	}
}

func (f *fakeTransport) Send(ctx context.Context, msg json.RawMessage) error {
	select {
	case f.out <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeTransport) Receive(ctx context.Context) (json.RawMessage, error) {
	select {
	case msg := <-f.in:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeTransport) Close() error { return nil }

// serve runs a scripted server: handle returns the result document for
// each request method, or nil to go silent (simulating a hang).
func (f *fakeTransport) serve(handle func(method string, params json.RawMessage) (any, *rpcError)) {
	go func() {
		for msg := range f.out {
			var req rpcRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				continue
			}
			if req.ID == 0 {
				continue // notification
			}
			result, rpcErr := handle(req.Method, req.Params)
			if result == nil && rpcErr == nil {
				continue // no answer
			}
			resp := rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
			if result != nil {
				b, _ := json.Marshal(result)
				resp.Result = b
			}
			b, _ := json.Marshal(resp)
			f.in <- b
		}
	}()
}

func textResult(text string) map[string]any {
	return map[string]any{
		"content": []map[string]any{{"type": "text", "text": text}},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGateway(t *testing.T, name string, timeout, minInterval time.Duration,
	handle func(method string, params json.RawMessage) (any, *rpcError)) *Gateway {
	t.Helper()

	transport := newFakeTransport()
	transport.serve(handle)
	client := NewClient(transport)
	t.Cleanup(func() { client.Close() })

	g := NewGateway(testLogger())
	g.register(name, client, timeout, minInterval)
	return g
}

func TestClientInitializeHandshake(t *testing.T) {
	transport := newFakeTransport()
	transport.serve(func(method string, params json.RawMessage) (any, *rpcError) {
		if method != "initialize" {
			return nil, &rpcError{Code: -32601, Message: "unexpected " + method}
		}
		var p struct {
			ProtocolVersion string `json:"protocolVersion"`
		}
		if err := json.Unmarshal(params, &p); err != nil || p.ProtocolVersion != protocolVersion {
			return nil, &rpcError{Code: -32602, Message: "bad protocolVersion"}
		}
		return map[string]any{"serverInfo": map[string]any{"name": "fake"}}, nil
	})

	client := NewClient(transport)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
}

func TestGatewayCallDecodesJSONText(t *testing.T) {
	g := newTestGateway(t, "amap-maps", time.Second, 0,
		func(method string, params json.RawMessage) (any, *rpcError) {
			if method != "tools/call" {
				return nil, &rpcError{Code: -32601, Message: "unexpected " + method}
			}
			var p struct {
				Name      string         `json:"name"`
				Arguments map[string]any `json:"arguments"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, &rpcError{Code: -32700, Message: err.Error()}
			}
			if p.Name != "maps_weather" || p.Arguments["city"] != "杭州" {
				return nil, &rpcError{Code: -32602, Message: "wrong call"}
			}
			return textResult(`{"city": "杭州", "weather": "小雨"}`), nil
		})

	res, err := g.Call(context.Background(), "amap-maps", "maps_weather", map[string]any{"city": "杭州"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	payload, ok := res.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload = %T, want map (JSON text decoded)", res.Payload)
	}
	if payload["weather"] != "小雨" {
		t.Errorf("payload = %v", payload)
	}
}

func TestGatewayCallPlainText(t *testing.T) {
	g := newTestGateway(t, "fetch", time.Second, 0,
		func(method string, params json.RawMessage) (any, *rpcError) {
			return textResult("# Heading\n\nplain markdown"), nil
		})

	res, err := g.Call(context.Background(), "fetch", "fetch", map[string]any{"url": "https://example.com"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if s, ok := res.Payload.(string); !ok || s != "# Heading\n\nplain markdown" {
		t.Fatalf("payload = %#v, want the raw text", res.Payload)
	}
}

func TestGatewayUnknownService(t *testing.T) {
	g := NewGateway(testLogger())
	_, err := g.Call(context.Background(), "nope", "x", nil)
	if !fault.Is(err, fault.KindConfig) {
		t.Fatalf("got %v, want ConfigurationError", err)
	}
}

func TestGatewayTimeoutIsTransient(t *testing.T) {
	g := newTestGateway(t, "slow", 50*time.Millisecond, 0,
		func(method string, params json.RawMessage) (any, *rpcError) {
			return nil, nil // never answer
		})

	_, err := g.Call(context.Background(), "slow", "anything", nil)
	if !fault.Is(err, fault.KindTransient) {
		t.Fatalf("got %v, want TransientServiceError", err)
	}
	if !fault.Retryable(err) {
		t.Error("timeout should be retryable")
	}
}

func TestGatewayRPCErrorIsProtocol(t *testing.T) {
	g := newTestGateway(t, "svc", time.Second, 0,
		func(method string, params json.RawMessage) (any, *rpcError) {
			return nil, &rpcError{Code: -32000, Message: "server exploded"}
		})

	_, err := g.Call(context.Background(), "svc", "boom", nil)
	if !fault.Is(err, fault.KindProtocol) {
		t.Fatalf("got %v, want ProtocolError", err)
	}
	if fault.Retryable(err) {
		t.Error("rpc errors must not be retryable")
	}
}

func TestGatewayToolReportedError(t *testing.T) {
	g := newTestGateway(t, "svc", time.Second, 0,
		func(method string, params json.RawMessage) (any, *rpcError) {
			return map[string]any{
				"content": []map[string]any{{"type": "text", "text": "invalid api key"}},
				"isError": true,
			}, nil
		})

	_, err := g.Call(context.Background(), "svc", "anything", nil)
	if err == nil {
		t.Fatal("want error for isError result")
	}
	if fault.Retryable(err) {
		t.Error("tool-reported errors must not be retryable")
	}
}

func TestGatewayMinIntervalSpacesCalls(t *testing.T) {
	const interval = 60 * time.Millisecond
	g := newTestGateway(t, "amap-maps", time.Second, interval,
		func(method string, params json.RawMessage) (any, *rpcError) {
			return textResult(`{}`), nil
		})

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := g.Call(context.Background(), "amap-maps", "maps_geo", map[string]any{"address": "x"}); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	// Three calls need at least two full intervals between starts.
	if elapsed := time.Since(start); elapsed < 2*interval {
		t.Fatalf("three calls completed in %v, want >= %v spacing", elapsed, 2*interval)
	}
}
