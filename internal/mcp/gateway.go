package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/juniperhq/valet/internal/config"
	"github.com/juniperhq/valet/internal/envelope"
	"github.com/juniperhq/valet/internal/fault"
)

// Gateway fronts all configured MCP services. It owns the clients, applies
// each service's call timeout and minimum call spacing, and classifies
// failures. It never retries; retry policy lives with the dispatcher.
type Gateway struct {
	logger *slog.Logger

	mu       sync.RWMutex
	services map[string]*service
}

type service struct {
	client      *Client
	timeout     time.Duration
	minInterval time.Duration

	// paceMu serializes call starts so minInterval holds across
	// concurrent callers.
	paceMu   sync.Mutex
	lastCall time.Time
}

func NewGateway(logger *slog.Logger) *Gateway {
	return &Gateway{
		logger:   logger,
		services: make(map[string]*service),
	}
}

// Start launches every enabled service and runs the protocol handshake.
// A service that fails to start is logged and skipped; the rest of the
// assistant keeps working without it.
func (g *Gateway) Start(ctx context.Context, cfgs []config.ServiceConfig) {
	for _, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}
		g.logger.Info("starting mcp service", "service", cfg.Name, "command", cfg.Command)

		transport, err := NewStdioTransport(g.logger, cfg.Command, cfg.Args, cfg.Env)
		if err != nil {
			g.logger.Error("mcp service failed to start", "service", cfg.Name, "error", err)
			continue
		}
		client := NewClient(transport)

		initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = client.Initialize(initCtx)
		cancel()
		if err != nil {
			g.logger.Error("mcp handshake failed", "service", cfg.Name, "error", err)
			client.Close()
			continue
		}

		g.register(cfg.Name, client, cfg.Timeout(), cfg.MinInterval())
		g.logger.Info("mcp service ready", "service", cfg.Name)
	}
}

func (g *Gateway) register(name string, client *Client, timeout, minInterval time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.services[name] = &service{
		client:      client,
		timeout:     timeout,
		minInterval: minInterval,
	}
}

// Services returns the names of services that started successfully.
func (g *Gateway) Services() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.services))
	for name := range g.services {
		out = append(out, name)
	}
	return out
}

// Call invokes method on the named service and folds the protocol's
// content blocks into a result payload. Text blocks that parse as JSON
// become structured payloads; anything else stays a string.
func (g *Gateway) Call(ctx context.Context, serviceName, method string, args map[string]any) (*envelope.Result, error) {
	g.mu.RLock()
	svc, ok := g.services[serviceName]
	g.mu.RUnlock()
	if !ok {
		return nil, fault.New(fault.KindConfig, "mcp service %q is not running", serviceName)
	}

	if err := svc.pace(ctx); err != nil {
		return nil, fault.Wrap(fault.KindTransient, err, serviceName)
	}

	callCtx := ctx
	if svc.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, svc.timeout)
		defer cancel()
	}

	res, err := svc.client.CallTool(callCtx, method, args)
	if err != nil {
		return nil, err
	}
	if res.IsError {
		return nil, fault.New(fault.KindUnknown, "service %s %s failed: %s",
			serviceName, method, joinText(res.Content))
	}
	return &envelope.Result{Payload: decodeContent(res.Content)}, nil
}

// pace blocks until minInterval has elapsed since the previous call start.
func (s *service) pace(ctx context.Context) error {
	if s.minInterval <= 0 {
		return nil
	}
	s.paceMu.Lock()
	defer s.paceMu.Unlock()

	wait := s.minInterval - time.Since(s.lastCall)
	if wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	s.lastCall = time.Now()
	return nil
}

func decodeContent(blocks []ContentBlock) any {
	var parts []any
	for _, b := range blocks {
		if b.Type != "text" {
			continue
		}
		var parsed any
		if err := json.Unmarshal([]byte(b.Text), &parsed); err == nil {
			parts = append(parts, parsed)
		} else {
			parts = append(parts, b.Text)
		}
	}
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0]
	default:
		return parts
	}
}

func joinText(blocks []ContentBlock) string {
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	if len(parts) == 0 {
		return "no error detail"
	}
	return strings.Join(parts, "; ")
}

// Close stops every running service.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for name, svc := range g.services {
		if err := svc.client.Close(); err != nil {
			g.logger.Warn("error stopping mcp service", "service", name, "error", err)
		}
	}
	g.services = make(map[string]*service)
}
