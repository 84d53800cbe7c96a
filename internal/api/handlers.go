package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"chatelly/internal/models"
	"chatelly/internal/session"
	"chatelly/internal/transcript"
)

// Sessions is the part of session.Store the console drives.
type Sessions interface {
	Status() session.Status
	WidgetKey() string
	Connected() bool
	TypingUsers() []string
	SelectedSessionID() string
	Sessions() []models.ChatSession
	Session(id string) (models.ChatSession, bool)
	SelectSession(id string)
	SendMessage(sessionID, text string) error
	EndSession(sessionID string) error
	ArchiveSession(sessionID string) error
	SetTyping(isTyping bool) error
}

// Archive reads back archived sessions.
type Archive interface {
	GetSession(id string) (models.ChatSession, error)
	ListSessions() ([]models.ChatSession, error)
}

type API struct {
	store   Sessions
	archive Archive
}

func New(store Sessions, archive Archive) *API {
	return &API{store: store, archive: archive}
}

type StatusResponse struct {
	Status            session.Status `json:"status"`
	WidgetKey         string         `json:"widgetKey"`
	SelectedSessionID string         `json:"selectedSessionId,omitempty"`
	TypingUsers       []string       `json:"typingUsers"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
}

type TypingRequest struct {
	IsTyping bool `json:"isTyping"`
}

func (a *API) StatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, StatusResponse{
		Status:            a.store.Status(),
		WidgetKey:         a.store.WidgetKey(),
		SelectedSessionID: a.store.SelectedSessionID(),
		TypingUsers:       a.store.TypingUsers(),
	})
}

func (a *API) SessionsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.store.Sessions())
}

func (a *API) SessionHandler(w http.ResponseWriter, r *http.Request) {
	cs, ok := a.store.Session(r.PathValue("id"))
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, cs)
}

func (a *API) SelectHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := a.store.Session(id); !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	a.store.SelectSession(id)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, "Content is required", http.StatusBadRequest)
		return
	}
	if !a.store.Connected() {
		http.Error(w, "Not connected", http.StatusConflict)
		return
	}

	if err := a.store.SendMessage(r.PathValue("id"), req.Content); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *API) EndSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !a.store.Connected() {
		http.Error(w, "Not connected", http.StatusConflict)
		return
	}
	if err := a.store.EndSession(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *API) ArchiveSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.store.ArchiveSession(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) TypingHandler(w http.ResponseWriter, r *http.Request) {
	var req TypingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := a.store.SetTyping(req.IsTyping); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) ArchiveListHandler(w http.ResponseWriter, r *http.Request) {
	sessions, err := a.archive.ListSessions()
	if err != nil {
		writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []models.ChatSession{}
	}
	writeJSON(w, sessions)
}

func (a *API) TranscriptHandler(w http.ResponseWriter, r *http.Request) {
	cs, err := a.archive.GetSession(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := transcript.Render(w, cs); err != nil {
		log.Printf("failed to render transcript: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrNotConnected):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Printf("request failed: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
