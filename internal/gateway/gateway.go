// Package gateway is the web surface: a small chat UI, a JSON chat API,
// a websocket stream and the /resource/ tree where rendered charts live.
package gateway

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/juniperhq/valet/internal/assistant"
	"github.com/juniperhq/valet/internal/envelope"
	"github.com/juniperhq/valet/internal/fault"
	"github.com/juniperhq/valet/internal/store"
)

//go:embed index.html
var chatPage []byte

// Chatter runs one conversation turn. Satisfied by *assistant.Assistant.
type Chatter interface {
	Chat(ctx context.Context, sess *assistant.Session, input string) (assistant.Reply, error)
}

// Config holds the gateway dependencies.
type Config struct {
	Assistant   Chatter
	Store       *store.Store
	ResourceDir string
	Logger      *slog.Logger
}

// Server hosts the HTTP surface. Chat sessions are kept in memory per
// session id; a restart starts conversations fresh.
type Server struct {
	cfg Config

	sessMu   sync.Mutex
	sessions map[string]*assistant.Session
}

func New(cfg Config) *Server {
	return &Server{
		cfg:      cfg,
		sessions: make(map[string]*assistant.Session),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/tasks", s.handleTasks)
	mux.HandleFunc("/api/notes", s.handleNotes)
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/resource/", http.StripPrefix("/resource/",
		http.FileServer(http.Dir(s.cfg.ResourceDir))))
	return mux
}

func (s *Server) session(id string) (string, *assistant.Session) {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	if id != "" {
		if sess, ok := s.sessions[id]; ok {
			return id, sess
		}
	}
	id = uuid.NewString()
	sess := assistant.NewSession()
	s.sessions[id] = sess
	return id, sess
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(chatPage)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbOK := true
	if _, err := s.cfg.Store.CountTasks(ctx); err != nil {
		dbOK = false
	}
	w.Header().Set("Content-Type", "application/json")
	if !dbOK {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(map[string]any{"healthy": dbOK, "db_ok": dbOK})
}

type chatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID   string                `json:"session_id"`
	Reply       string                `json:"reply"`
	Attachments []envelope.Attachment `json:"attachments,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fault.New(fault.KindValidation, "invalid request body: %v", err))
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, fault.New(fault.KindValidation, "message is required"))
		return
	}

	id, sess := s.session(req.SessionID)
	reply, err := s.cfg.Assistant.Chat(r.Context(), sess, req.Message)
	if err != nil {
		s.cfg.Logger.Error("chat turn failed", "session_id", id, "error", err)
		writeError(w, statusFor(err), err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chatResponse{
		SessionID:   id,
		Reply:       reply.Text,
		Attachments: reply.Attachments,
	})
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tasks, err := s.cfg.Store.ListTasks(r.Context(), store.TaskStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"tasks": tasks, "count": len(tasks)})
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	notes, err := s.cfg.Store.ListNotes(r.Context(), r.URL.Query().Get("keyword"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"notes": notes, "count": len(notes)})
}

// wsMessage is both directions of the websocket chat protocol.
type wsMessage struct {
	Type        string                `json:"type"` // "message", "reply", "error"
	Message     string                `json:"message,omitempty"`
	Attachments []envelope.Attachment `json:"attachments,omitempty"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	_, sess := s.session("")
	s.cfg.Logger.Info("ws client connected")

	for {
		var in wsMessage
		if err := wsjson.Read(r.Context(), conn, &in); err != nil {
			s.cfg.Logger.Debug("ws client gone", "error", err)
			return
		}
		if in.Message == "" {
			continue
		}

		reply, err := s.cfg.Assistant.Chat(r.Context(), sess, in.Message)
		out := wsMessage{Type: "reply", Message: reply.Text, Attachments: reply.Attachments}
		if err != nil {
			out = wsMessage{Type: "error", Message: err.Error()}
		}
		if err := wsjson.Write(r.Context(), conn, out); err != nil {
			s.cfg.Logger.Debug("ws write failed", "error", err)
			return
		}
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error":      err.Error(),
		"error_kind": string(fault.KindOf(err)),
	})
}

func statusFor(err error) int {
	switch fault.KindOf(err) {
	case fault.KindValidation, fault.KindSchema:
		return http.StatusBadRequest
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindConfig:
		return http.StatusInternalServerError
	case fault.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
