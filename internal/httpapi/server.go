// Package httpapi exposes the chat backend over HTTP for the game
// client. All bodies are JSON; errors follow a fixed envelope with a
// machine code and a retryable hint.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/emberworks/npchat/internal/chat"
	"github.com/emberworks/npchat/internal/config"
	"github.com/emberworks/npchat/internal/observability"
	"github.com/emberworks/npchat/internal/reliability"
)

type Server struct {
	cfg          config.Config
	orchestrator *chat.Orchestrator
	providerName string
}

func New(cfg config.Config, orchestrator *chat.Orchestrator, providerName string) *Server {
	return &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
		providerName: providerName,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/chat", s.handleChat)
	r.Post("/save", s.handleSave)
	r.Get("/load/{userId}", s.handleLoad)
	r.Post("/summarize/{userId}", s.handleSummarize)
	r.Post("/playerLeft", s.handlePlayerLeft)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"provider":       s.providerName,
		"summary_format": s.cfg.SummaryFormat,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ready",
		"provider":       s.providerName,
		"summary_format": s.cfg.SummaryFormat,
	})
}

type chatRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
	Memory  string `json:"memory,omitempty"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	reply, err := s.orchestrator.Chat(r.Context(), req.UserID, req.Message, req.Memory)
	if err != nil {
		respondClassified(w, err)
		return
	}
	respondJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

type saveRequest struct {
	UserID string          `json:"userId"`
	Memory json.RawMessage `json:"memory"`
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := s.orchestrator.SaveMemory(r.Context(), req.UserID, req.Memory); err != nil {
		respondClassified(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "Memory saved"})
}

type loadResponse struct {
	Memory json.RawMessage `json:"memory"`
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	memory, err := s.orchestrator.LoadMemory(userID)
	if err != nil {
		respondClassified(w, err)
		return
	}
	// A user with nothing persisted gets a null memory, not an error.
	respondJSON(w, http.StatusOK, loadResponse{Memory: memory})
}

type summarizeRequest struct {
	Memory string `json:"memory"`
}

type summarizeResponse struct {
	Summary json.RawMessage `json:"summary"`
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	var req summarizeRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	summary, err := s.orchestrator.Summarize(r.Context(), userID, req.Memory)
	if err != nil {
		respondClassified(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summarizeResponse{Summary: summary})
}

type playerLeftRequest struct {
	PlayerID string `json:"playerId"`
}

func (s *Server) handlePlayerLeft(w http.ResponseWriter, r *http.Request) {
	var req playerLeftRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.PlayerID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "playerId is required")
		return
	}

	summary, err := s.orchestrator.PlayerLeft(r.Context(), req.PlayerID)
	if err != nil {
		respondClassified(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summarizeResponse{Summary: summary})
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func respondClassified(w http.ResponseWriter, err error) {
	c := reliability.Classify(err)
	respondJSON(w, c.Status, errorResponse{Error: err.Error(), Code: c.Code, Retryable: c.Retryable})
}
