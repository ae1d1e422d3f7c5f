package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-messenger/internal/attachments"
	"github.com/npezzotti/go-messenger/internal/config"
	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/server"
)

// TokenIssuer verifies and mints session tokens.
type TokenIssuer interface {
	server.TokenVerifier
	Issue(userId int, ttl time.Duration) (string, error)
}

type GoChatApp struct {
	log            *log.Logger
	db             database.GoChatRepository
	srv            *http.Server
	gateway        *server.Gateway
	verifier       TokenIssuer
	files          attachments.Store
	allowedOrigins []string
	tokenTTL       time.Duration
}

func NewGoChatApp(mux *http.ServeMux, logger *log.Logger, gw *server.Gateway, db database.GoChatRepository,
	verifier TokenIssuer, files attachments.Store, cfg *config.Config) *GoChatApp {
	s := &GoChatApp{
		log:            logger,
		db:             db,
		gateway:        gw,
		verifier:       verifier,
		files:          files,
		allowedOrigins: cfg.AllowedOrigins,
		tokenTTL:       cfg.TokenTTL,
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = defaultJwtExpiration
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.Handle("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("GET /api/users", s.authMiddleware(s.listUsers))
	mux.Handle("GET /api/users/me", s.authMiddleware(s.currentUser))
	mux.Handle("POST /api/chats", s.authMiddleware(s.createChat))
	mux.Handle("GET /api/chats", s.authMiddleware(s.listChats))
	mux.Handle("GET /api/chats/{id}/participants", s.authMiddleware(s.listParticipants))
	mux.Handle("GET /api/messages", s.authMiddleware(s.listMessages))
	mux.Handle("GET /api/messages/{id}", s.authMiddleware(s.getMessage))
	mux.Handle("POST /api/messages", s.authMiddleware(s.createMessage))
	mux.Handle("DELETE /api/messages/{id}", s.authMiddleware(s.deleteMessage))
	mux.Handle("POST /api/uploads", s.authMiddleware(s.upload))
	mux.Handle("GET /api/uploads/{kind}/{name}", s.authMiddleware(s.download))
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *GoChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *GoChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
