// Package orchestrator talks to the model API. It speaks the
// OpenAI-compatible chat completions protocol, which DashScope's
// compatible mode and most self-hosted gateways accept.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/juniperhq/valet/internal/config"
	"github.com/juniperhq/valet/internal/fault"
	votel "github.com/juniperhq/valet/internal/otel"
	"github.com/juniperhq/valet/internal/tools"
)

// Message is one entry in the conversation transcript.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is the model's request to run one tool.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func SystemMessage(content string) Message    { return Message{Role: "system", Content: content} }
func UserMessage(content string) Message      { return Message{Role: "user", Content: content} }
func AssistantMessage(content string) Message { return Message{Role: "assistant", Content: content} }

// ToolMessage carries a tool result back to the model, correlated by the
// tool call id the model issued.
func ToolMessage(callID, content string) Message {
	return Message{Role: "tool", ToolCallID: callID, Content: content}
}

// Client calls the chat completions endpoint.
type Client struct {
	baseURL string
	model   string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *votel.Metrics
}

func NewClient(cfg config.LLMConfig, logger *slog.Logger, tracer trace.Tracer, metrics *votel.Metrics) *Client {
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer(votel.ScopeName)
	}
	return &Client{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: 120 * time.Second},
		logger:  logger,
		tracer:  tracer,
		metrics: metrics,
	}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Tools    []toolDef `json:"tools,omitempty"`
}

type toolDef struct {
	Type     string            `json:"type"`
	Function tools.FunctionDef `json:"function"`
}

type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends the transcript plus the tool schema and returns the
// model's next message, which either answers or requests tool calls.
func (c *Client) Complete(ctx context.Context, messages []Message, defs []tools.FunctionDef) (*Message, error) {
	if c.apiKey == "" {
		return nil, fault.New(fault.KindConfig, "model api key is not configured (set DASHSCOPE_API_KEY)")
	}

	ctx, span := votel.StartClientSpan(ctx, c.tracer, "llm.complete",
		votel.AttrModel.String(c.model),
	)
	defer span.End()

	reqBody := chatRequest{Model: c.model, Messages: messages}
	for _, def := range defs {
		reqBody.Tools = append(reqBody.Tools, toolDef{Type: "function", Function: def})
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fault.Wrap(fault.KindProtocol, err, "encode chat request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return nil, fault.Wrap(fault.KindProtocol, err, "build chat request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fault.Wrap(fault.KindTransient, err, "model api")
	}
	defer resp.Body.Close()
	if c.metrics != nil {
		c.metrics.LLMCallDuration.Record(ctx, time.Since(start).Seconds())
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fault.Wrap(fault.KindTransient, err, "read model response")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fault.New(fault.KindConfig, "model api rejected credentials (%d)", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fault.New(fault.KindTransient, "model api unavailable (%d): %s", resp.StatusCode, truncate(body, 200))
	case resp.StatusCode != http.StatusOK:
		return nil, fault.New(fault.KindProtocol, "model api error (%d): %s", resp.StatusCode, truncate(body, 200))
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fault.Wrap(fault.KindProtocol, err, "decode model response")
	}
	if out.Error != nil {
		return nil, fault.New(fault.KindProtocol, "model api error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return nil, fault.New(fault.KindProtocol, "model response has no choices")
	}

	msg := out.Choices[0].Message
	c.logger.Debug("model turn",
		"finish_reason", out.Choices[0].FinishReason,
		"tool_calls", len(msg.ToolCalls),
		"prompt_tokens", out.Usage.PromptTokens,
		"completion_tokens", out.Usage.CompletionTokens,
	)
	return &msg, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Model returns the configured model name, for logging surfaces.
func (c *Client) Model() string { return c.model }
