package api

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-chatsync/internal/config"
	"github.com/npezzotti/go-chatsync/internal/database"
	"github.com/npezzotti/go-chatsync/internal/server"
)

// FileStore persists uploaded blobs and serves them back.
type FileStore interface {
	Save(originalName string, r io.Reader) (string, error)
	Handler() http.Handler
}

type GoChatApp struct {
	log            *log.Logger
	db             database.GoChatRepository
	mux            *http.Server
	cs             *server.ChatServer
	files          FileStore
	signingKey     []byte
	allowedOrigins []string
	vapidPublicKey string
}

func NewGoChatApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.GoChatRepository, files FileStore, cfg *config.Config) *GoChatApp {
	s := &GoChatApp{
		log:            logger,
		db:             db,
		cs:             cs,
		files:          files,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
		vapidPublicKey: cfg.VAPIDPublicKey,
	}

	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.HandleFunc("GET /api/users", s.authMiddleware(s.listUsers))
	mux.HandleFunc("POST /api/profile/avatar", s.authMiddleware(s.uploadAvatar))
	mux.HandleFunc("GET /api/chats", s.authMiddleware(s.listChats))
	mux.HandleFunc("POST /api/chats/dm", s.authMiddleware(s.openDirectChat))
	mux.HandleFunc("POST /api/chats/read", s.authMiddleware(s.markRead))
	mux.HandleFunc("GET /api/messages", s.authMiddleware(s.getMessages))
	mux.HandleFunc("POST /api/messages", s.authMiddleware(s.postMessage))
	mux.HandleFunc("POST /api/messages/upload", s.authMiddleware(s.uploadMessage))
	mux.HandleFunc("POST /api/messages/sticker", s.authMiddleware(s.postSticker))
	mux.HandleFunc("POST /api/messages/react", s.authMiddleware(s.react))
	mux.HandleFunc("GET /api/push/publicKey", s.pushPublicKey)
	mux.HandleFunc("POST /api/push/subscribe", s.authMiddleware(s.pushSubscribe))
	mux.HandleFunc("GET /ws", s.wsAuthMiddleware(s.serveWs))
	mux.HandleFunc("GET /healthz", s.healthCheck)
	if files != nil {
		mux.Handle("GET /uploads/", files.Handler())
	}

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = handlers.CombinedLoggingHandler(logger.Writer(), h)
	h = redactToken(h)
	h = s.errorHandler(h)

	s.mux = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *GoChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *GoChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
