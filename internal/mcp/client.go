package mcp

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/juniperhq/valet/internal/fault"
)

const protocolVersion = "2024-11-05"

// Client is a JSON-RPC client for one MCP server. Requests carry
// incrementing ids; a listener goroutine routes responses back to the
// waiting caller through a pending map.
type Client struct {
	transport Transport
	nextID    int64

	pendingMu sync.Mutex
	pending   map[int64]chan rpcResponse
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      int64           `json:"id"`
}

type rpcNotification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      int64           `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RemoteTool is one tool as advertised by a server's tools/list.
type RemoteTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ToolResult is the shape of a tools/call result.
type ToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError"`
}

// ContentBlock is one piece of a tool result. Only text blocks carry
// payload data; other types are referenced, never inlined.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func NewClient(transport Transport) *Client {
	c := &Client{
		transport: transport,
		pending:   make(map[int64]chan rpcResponse),
	}
	go c.listen()
	return c
}

func (c *Client) listen() {
	for {
		msg, err := c.transport.Receive(context.Background())
		if err != nil {
			return
		}
		var resp rpcResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			// Server-initiated notification or noise on stdout.
			continue
		}
		if resp.ID == 0 {
			continue
		}
		c.pendingMu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
			ch <- resp
		}
		c.pendingMu.Unlock()
	}
}

func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := atomic.AddInt64(&c.nextID, 1)

	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fault.Wrap(fault.KindProtocol, err, "marshal params")
		}
		raw = b
	}
	b, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: raw, ID: id})
	if err != nil {
		return nil, fault.Wrap(fault.KindProtocol, err, "marshal request")
	}

	ch := make(chan rpcResponse, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	if err := c.transport.Send(ctx, b); err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, err
	}

	select {
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, fault.Wrap(fault.KindTransient, ctx.Err(), method)
	case resp := <-ch:
		if resp.Error != nil {
			return nil, fault.New(fault.KindProtocol, "%s: rpc error %d: %s", method, resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	}
}

// Initialize performs the MCP handshake and sends the initialized
// notification the protocol requires afterwards.
func (c *Client) Initialize(ctx context.Context) error {
	params := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]string{"name": "valet", "version": "0.1.0"},
	}
	if _, err := c.call(ctx, "initialize", params); err != nil {
		return err
	}
	b, _ := json.Marshal(rpcNotification{JSONRPC: "2.0", Method: "notifications/initialized"})
	return c.transport.Send(ctx, b)
}

// ListTools calls tools/list.
func (c *Client) ListTools(ctx context.Context) ([]RemoteTool, error) {
	res, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Tools []RemoteTool `json:"tools"`
	}
	if err := json.Unmarshal(res, &out); err != nil {
		return nil, fault.Wrap(fault.KindProtocol, err, "tools/list result")
	}
	return out.Tools, nil
}

// CallTool calls tools/call and decodes the result shape.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	if args == nil {
		args = map[string]any{}
	}
	res, err := c.call(ctx, "tools/call", map[string]any{"name": name, "arguments": args})
	if err != nil {
		return nil, err
	}
	var out ToolResult
	if err := json.Unmarshal(res, &out); err != nil {
		return nil, fault.Wrap(fault.KindProtocol, err, "tools/call result")
	}
	return &out, nil
}

func (c *Client) Close() error {
	return c.transport.Close()
}
