package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"

	"github.com/duetapp/duet-server/internal/config"
	"github.com/duetapp/duet-server/internal/database"
	"github.com/duetapp/duet-server/internal/server"
)

type DuetApp struct {
	log            *log.Logger
	db             database.Repository
	mux            *http.Server
	rs             *server.RelayServer
	signingKey     []byte
	allowedOrigins []string
}

func NewDuetApp(logger *log.Logger, rs *server.RelayServer, db database.Repository, cfg *config.Config, mux *http.ServeMux) *DuetApp {
	s := &DuetApp{
		log:            logger,
		db:             db,
		rs:             rs,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("GET /api/messages", s.authMiddleware(s.getMessages))
	mux.Handle("POST /api/messages", s.authMiddleware(s.createMessage))
	mux.Handle("PATCH /api/messages", s.authMiddleware(s.updateMessage))
	mux.Handle("DELETE /api/messages", s.authMiddleware(s.deleteMessage))
	mux.Handle("GET /api/subscriptions", s.authMiddleware(s.getSubscriptions))
	mux.Handle("POST /api/subscriptions", s.authMiddleware(s.createSubscription))
	mux.Handle("DELETE /api/subscriptions", s.authMiddleware(s.deleteSubscription))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *DuetApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *DuetApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
