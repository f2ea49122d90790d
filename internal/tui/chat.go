// Package tui is the terminal chat surface: one conversation, rendered
// with bubbletea.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/juniperhq/valet/internal/assistant"
)

// Chatter runs one conversation turn. Satisfied by *assistant.Assistant.
type Chatter interface {
	Chat(ctx context.Context, sess *assistant.Session, input string) (assistant.Reply, error)
}

type chatRole string

const (
	roleUser  chatRole = "user"
	roleValet chatRole = "valet"
	roleError chatRole = "error"
)

type entry struct {
	role chatRole
	text string
}

type replyMsg struct {
	reply assistant.Reply
	err   error
}

type spinnerTickMsg struct{}

var (
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	valetStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	attachStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type model struct {
	ctx       context.Context
	assistant Chatter
	session   *assistant.Session

	entries []entry
	input   string
	waiting bool
	spinner int
	width   int
}

func newModel(ctx context.Context, chatter Chatter) model {
	return model{
		ctx:       ctx,
		assistant: chatter,
		session:   assistant.NewSession(),
		entries:   []entry{{role: roleValet, text: "Hi, I'm Valet. Tasks, notes, weather, charts — what do you need?"}},
		width:     80,
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			if m.waiting {
				return m, nil
			}
			text := strings.TrimSpace(m.input)
			if text == "" {
				return m, nil
			}
			m.entries = append(m.entries, entry{role: roleUser, text: text})
			m.input = ""
			m.waiting = true
			return m, tea.Batch(m.sendCmd(text), spinnerTick())
		case "backspace":
			if len(m.input) > 0 {
				runes := []rune(m.input)
				m.input = string(runes[:len(runes)-1])
			}
			return m, nil
		default:
			if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
				m.input += string(msg.Runes)
				if msg.Type == tea.KeySpace {
					m.input += " "
				}
			}
			return m, nil
		}

	case spinnerTickMsg:
		if !m.waiting {
			return m, nil
		}
		m.spinner = (m.spinner + 1) % len(spinnerFrames)
		return m, spinnerTick()

	case replyMsg:
		m.waiting = false
		if msg.err != nil {
			m.entries = append(m.entries, entry{role: roleError, text: humanError(msg.err)})
			return m, nil
		}
		m.entries = append(m.entries, entry{role: roleValet, text: msg.reply.Text})
		for _, a := range msg.reply.Attachments {
			m.entries = append(m.entries, entry{role: roleValet, text: attachStyle.Render(fmt.Sprintf("[%s] %s", a.Type, a.Reference))})
		}
		return m, nil
	}
	return m, nil
}

func (m model) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		reply, err := m.assistant.Chat(m.ctx, m.session, text)
		return replyMsg{reply: reply, err: err}
	}
}

func spinnerTick() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(time.Time) tea.Msg { return spinnerTickMsg{} })
}

func (m model) View() string {
	var b strings.Builder
	for _, e := range m.entries {
		switch e.role {
		case roleUser:
			b.WriteString(userStyle.Render("you") + "  " + e.text + "\n")
		case roleError:
			b.WriteString(errorStyle.Render("oops  "+e.text) + "\n")
		default:
			b.WriteString(valetStyle.Render("valet") + "  " + e.text + "\n")
		}
	}
	b.WriteString("\n")
	if m.waiting {
		b.WriteString(spinnerFrames[m.spinner] + " thinking...\n")
	} else {
		b.WriteString("> " + m.input + "█\n")
	}
	b.WriteString(hintStyle.Render("enter to send · esc to quit") + "\n")
	return b.String()
}

// Run starts the chat TUI and blocks until the user quits or ctx ends.
func Run(ctx context.Context, chatter Chatter) error {
	defer bestEffortResetTTY()

	p := tea.NewProgram(newModel(ctx, chatter))

	done := make(chan error, 1)
	go func() {
		_, err := p.Run()
		done <- err
	}()

	select {
	case <-ctx.Done():
		p.Quit()
		return <-done
	case err := <-done:
		return err
	}
}
