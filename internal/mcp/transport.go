// Package mcp speaks JSON-RPC to Model Context Protocol servers over
// subprocess stdio and fronts them with a Gateway that enforces per-service
// timeouts and call spacing.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/juniperhq/valet/internal/fault"
)

// Transport moves raw JSON-RPC messages to and from one server.
type Transport interface {
	Send(ctx context.Context, msg json.RawMessage) error
	Receive(ctx context.Context) (json.RawMessage, error)
	Close() error
}

// StdioTransport runs a server subprocess and exchanges newline-delimited
// JSON-RPC over its stdin/stdout.
type StdioTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	mu     sync.Mutex
	closed bool
}

// NewStdioTransport starts the subprocess. Values in env are expanded
// against the parent environment, so config can say "${AMAP_API_KEY}"
// without holding the key itself.
func NewStdioTransport(logger *slog.Logger, command string, args []string, env map[string]string) (*StdioTransport, error) {
	cmd := exec.Command(command, args...)
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+os.ExpandEnv(v))
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fault.Wrap(fault.KindTransient, err, "stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fault.Wrap(fault.KindTransient, err, "stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fault.Wrap(fault.KindTransient, err, "stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		return nil, fault.Wrap(fault.KindConfig, err, "start "+command)
	}

	// Servers chatter on stderr; keep it out of the protocol stream but
	// visible at debug level.
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			logger.Debug("mcp server stderr", "command", command, "line", scanner.Text())
		}
	}()

	return &StdioTransport{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
	}, nil
}

func (t *StdioTransport) Send(ctx context.Context, msg json.RawMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fault.New(fault.KindTransient, "transport closed")
	}
	if _, err := t.stdin.Write(append(msg, '\n')); err != nil {
		return fault.Wrap(fault.KindTransient, err, "write to server")
	}
	return nil
}

// Receive blocks for the next message. Reads happen on a goroutine so a
// cancelled context unblocks the caller even while the server is silent.
func (t *StdioTransport) Receive(ctx context.Context) (json.RawMessage, error) {
	type read struct {
		line []byte
		err  error
	}
	ch := make(chan read, 1)
	go func() {
		line, err := t.stdout.ReadBytes('\n')
		ch <- read{line, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fault.Wrap(fault.KindTransient, r.err, "read from server")
		}
		return json.RawMessage(r.line), nil
	}
}

// Close kills the subprocess. Safe to call more than once.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	_ = t.stdin.Close()
	if t.cmd.Process != nil {
		return t.cmd.Process.Kill()
	}
	return nil
}
