package http

import (
	"context"
	"log"
	"net/http"
	"sync"

	"chatelly/internal/api"
)

// ConsoleServer exposes the session store to the operator on a local address.
type ConsoleServer struct {
	server *http.Server
	wg     sync.WaitGroup
}

func NewConsoleServer(store api.Sessions, archive api.Archive, addr string) *ConsoleServer {
	handlers := api.New(store, archive)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/status", handlers.StatusHandler)
	mux.HandleFunc("GET /api/sessions", handlers.SessionsHandler)
	mux.HandleFunc("GET /api/sessions/{id}", handlers.SessionHandler)
	mux.HandleFunc("POST /api/sessions/{id}/select", api.RequireSameOrigin(handlers.SelectHandler))
	mux.HandleFunc("POST /api/sessions/{id}/messages", api.RequireSameOrigin(handlers.SendMessageHandler))
	mux.HandleFunc("POST /api/sessions/{id}/end", api.RequireSameOrigin(handlers.EndSessionHandler))
	mux.HandleFunc("POST /api/sessions/{id}/archive", api.RequireSameOrigin(handlers.ArchiveSessionHandler))
	mux.HandleFunc("POST /api/typing", api.RequireSameOrigin(handlers.TypingHandler))

	// Local archive
	mux.HandleFunc("GET /api/archive", handlers.ArchiveListHandler)
	mux.HandleFunc("GET /api/archive/{id}/transcript", handlers.TranscriptHandler)

	if addr == "" {
		addr = "localhost:8090"
	}

	return &ConsoleServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

func (s *ConsoleServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *ConsoleServer) Addr() string {
	return s.server.Addr
}

func (s *ConsoleServer) Start() error {
	log.Printf("Console started on %s", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *ConsoleServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
