// Package server exposes the retrieval pipeline over the HTTP/JSON API.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/msaqhib/netflix-household-verify/internal/verify"
)

// VerifyService is the slice of the orchestrator the handlers depend on.
type VerifyService interface {
	Connect(ctx context.Context, email, password string) (string, error)
	FetchCode(ctx context.Context, sessionID string) (verify.Result, error)
	Logout(sessionID string) bool
	DefaultIdentity() (string, bool)
}

// Server routes the API endpoints.
type Server struct {
	mux    *http.ServeMux
	svc    VerifyService
	logger *slog.Logger
}

// New creates a Server and registers its routes.
func New(svc VerifyService, logger *slog.Logger) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		svc:    svc,
		logger: logger,
	}
	s.initRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) initRoutes() {
	s.handle("POST /api/connect-email", s.handleConnectEmail)
	s.handle("POST /api/fetch-verification", s.handleFetchVerification)
	s.handle("POST /api/logout", s.handleLogout)
	s.handle("GET /api/has-default-credentials", s.handleHasDefaultCredentials)
	s.handle("GET /api/server-status", s.handleServerStatus)
	s.mux.HandleFunc("OPTIONS /api/", s.handlePreflight)
}

func (s *Server) handle(pattern string, handler http.HandlerFunc) {
	s.mux.HandleFunc(pattern, chainMiddleware(handler, s.loggingMiddleware, s.corsMiddleware))
}
