// Package assistant runs the conversation loop: user text goes to the
// model with the tool schema, requested tool calls are dispatched, and
// their envelopes are reinjected until the model answers in prose.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/juniperhq/valet/internal/dispatch"
	"github.com/juniperhq/valet/internal/envelope"
	"github.com/juniperhq/valet/internal/fault"
	votel "github.com/juniperhq/valet/internal/otel"
	"github.com/juniperhq/valet/internal/orchestrator"
	"github.com/juniperhq/valet/internal/tools"
)

// Completer produces the model's next message for a transcript.
type Completer interface {
	Complete(ctx context.Context, messages []orchestrator.Message, defs []tools.FunctionDef) (*orchestrator.Message, error)
}

// ToolRunner executes a batch of tool calls.
type ToolRunner interface {
	Dispatch(ctx context.Context, calls []dispatch.Call) []dispatch.Outcome
}

// Assistant owns the loop. One Assistant serves all sessions.
type Assistant struct {
	completer Completer
	runner    ToolRunner
	registry  *tools.Registry
	logger    *slog.Logger
	metrics   *votel.Metrics
	maxRounds int
}

// Reply is the assistant's answer for one user turn, plus any artifacts
// (chart images) produced along the way.
type Reply struct {
	Text        string
	Attachments []envelope.Attachment
}

// Session holds one conversation transcript. Chat serializes turns on
// the same session; separate sessions run independently.
type Session struct {
	mu       sync.Mutex
	messages []orchestrator.Message
}

func NewSession() *Session {
	return &Session{
		messages: []orchestrator.Message{orchestrator.SystemMessage(systemPrompt())},
	}
}

func systemPrompt() string {
	return fmt.Sprintf(`You are Valet, a personal assistant. Today is %s.

You manage the user's tasks and notes, answer questions about weather,
places, travel and the web, and render charts from data. Use the
provided tools for anything stateful or external instead of guessing.
When a tool returns an error envelope, explain the problem briefly and,
if it is transient, offer to try again. Chart images are saved to disk;
mention the returned reference path so the user can open them. Answer
in the user's language.`, time.Now().Format("Monday, 2 January 2006"))
}

func New(completer Completer, runner ToolRunner, registry *tools.Registry,
	logger *slog.Logger, metrics *votel.Metrics, maxRounds int) *Assistant {
	if maxRounds <= 0 {
		maxRounds = 6
	}
	return &Assistant{
		completer: completer,
		runner:    runner,
		registry:  registry,
		logger:    logger,
		metrics:   metrics,
		maxRounds: maxRounds,
	}
}

// Chat runs one user turn to completion.
func (a *Assistant) Chat(ctx context.Context, sess *Session, input string) (Reply, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.messages = append(sess.messages, orchestrator.UserMessage(input))
	defs := a.registry.Schema()

	var attachments []envelope.Attachment
	for round := 0; round < a.maxRounds; round++ {
		msg, err := a.completer.Complete(ctx, sess.messages, defs)
		if err != nil {
			return Reply{}, err
		}
		sess.messages = append(sess.messages, *msg)

		if len(msg.ToolCalls) == 0 {
			if a.metrics != nil {
				a.metrics.ChatTurns.Add(ctx, 1)
			}
			return Reply{Text: msg.Content, Attachments: attachments}, nil
		}

		calls := make([]dispatch.Call, len(msg.ToolCalls))
		for i, tc := range msg.ToolCalls {
			calls[i] = dispatch.Call{
				ID:   tc.ID,
				Tool: tc.Function.Name,
				Args: []byte(tc.Function.Arguments),
			}
		}
		a.logger.Debug("model requested tools", "round", round+1, "calls", len(calls))

		outcomes := a.runner.Dispatch(ctx, calls)
		for _, o := range outcomes {
			attachments = append(attachments, o.Envelope.Attachments...)
			sess.messages = append(sess.messages,
				orchestrator.ToolMessage(o.CallID, o.Envelope.Marshal()))
		}
	}

	return Reply{}, fault.New(fault.KindUnknown,
		"conversation did not settle within %d tool rounds", a.maxRounds)
}

// History returns a copy of the transcript, for UI rendering.
func (s *Session) History() []orchestrator.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]orchestrator.Message(nil), s.messages...)
}
