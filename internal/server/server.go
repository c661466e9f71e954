// server.go - HTTP server wiring.
package server

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"minidrive/internal/config"
)

// Config carries everything the server needs. All clients are constructed by
// the caller and passed in; the server holds no process-wide singletons.
type Config struct {
	Addr           string
	BaseURL        string
	DB             *sql.DB
	Store          *ObjectStore
	Email          *EmailService
	AuthSecret     string
	TokenTTL       time.Duration
	MaxUploadBytes int64
}

type Server struct {
	httpServer *http.Server

	db             *sql.DB
	store          *ObjectStore
	email          *EmailService
	secret         []byte
	tokenTTL       time.Duration
	baseURL        string
	maxUploadBytes int64
	lockout        *accountLockout
}

func New(cfg Config) *Server {
	s := &Server{
		db:             cfg.DB,
		store:          cfg.Store,
		email:          cfg.Email,
		secret:         []byte(cfg.AuthSecret),
		tokenTTL:       cfg.TokenTTL,
		baseURL:        cfg.BaseURL,
		maxUploadBytes: cfg.MaxUploadBytes,
		lockout:        newAccountLockout(5, 15*time.Minute, 10*time.Minute),
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = 12 * time.Hour
	}

	r := mux.NewRouter()

	r.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)

	// Credential endpoints are rate limited per IP.
	authLimit := newRateLimiter(20, time.Minute).middleware

	auth := r.PathPrefix("/auth").Subrouter()
	auth.Handle("/signup", authLimit(http.HandlerFunc(s.signupHandler))).Methods(http.MethodPost)
	auth.Handle("/login", authLimit(http.HandlerFunc(s.loginHandler))).Methods(http.MethodPost)
	auth.Handle("/forgot-password", authLimit(http.HandlerFunc(s.forgotPasswordHandler))).Methods(http.MethodPost)
	auth.Handle("/reset-password/{token}", authLimit(http.HandlerFunc(s.resetPasswordHandler))).Methods(http.MethodPost)
	auth.Handle("/logout", s.requireAuth(http.HandlerFunc(s.logoutHandler))).Methods(http.MethodPost)
	auth.Handle("/me", s.requireAuth(http.HandlerFunc(s.meHandler))).Methods(http.MethodGet)

	files := r.PathPrefix("/files").Subrouter()
	files.Handle("/upload", s.requireAuth(http.HandlerFunc(s.uploadHandler))).Methods(http.MethodPost)
	files.Handle("/my-files", s.requireAuth(http.HandlerFunc(s.myFilesHandler))).Methods(http.MethodGet)
	files.Handle("/storage", s.requireAuth(http.HandlerFunc(s.storageUsageHandler))).Methods(http.MethodGet)
	files.Handle("/showfile/{id}", s.requireAuth(http.HandlerFunc(s.showFileHandler))).Methods(http.MethodGet)
	files.Handle("/download/{id}", s.requireAuth(http.HandlerFunc(s.downloadHandler))).Methods(http.MethodGet)
	files.Handle("/rename/{id}", s.requireAuth(http.HandlerFunc(s.renameHandler))).Methods(http.MethodPatch)
	files.Handle("/update-content/{id}", s.requireAuth(http.HandlerFunc(s.updateContentHandler))).Methods(http.MethodPut)
	files.Handle("/delete/{id}", s.requireAuth(http.HandlerFunc(s.deleteHandler))).Methods(http.MethodDelete)
	files.Handle("/share/{id}", s.requireAuth(http.HandlerFunc(s.shareHandler))).Methods(http.MethodPost)
	files.Handle("/revoke/{id}", s.requireAuth(http.HandlerFunc(s.revokeHandler))).Methods(http.MethodDelete)
	files.Handle("/admin/all-files", s.requireAdmin(http.HandlerFunc(s.allFilesHandler))).Methods(http.MethodGet)

	// Wrap middleware: requestID -> logging -> security headers -> router
	var handler http.Handler = r
	handler = securityHeadersMiddleware(handler)
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// FromConfig builds a Server from the loaded application configuration,
// constructing the object store and email service.
func FromConfig(cfg *config.Config, dbConn *sql.DB) (*Server, error) {
	store, err := NewObjectStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	return New(Config{
		Addr:           cfg.Addr,
		BaseURL:        cfg.BaseURL,
		DB:             dbConn,
		Store:          store,
		Email:          NewEmailService(cfg.SMTP),
		AuthSecret:     cfg.Auth.Secret,
		TokenTTL:       cfg.Auth.TokenTTL,
		MaxUploadBytes: cfg.Upload.MaxBytes,
	}), nil
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the full middleware-wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
