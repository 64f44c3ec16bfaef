package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/msaqhib/netflix-household-verify/internal/verify"
)

type connectRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

type genericResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type connectResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type fetchResponse struct {
	Success   bool   `json:"success"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	WasUnread bool   `json:"wasUnread"`
}

type defaultCredentialsResponse struct {
	HasDefault bool    `json:"hasDefault"`
	Email      *string `json:"email"`
}

type statusResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func (s *Server) handleConnectEmail(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, genericResponse{Message: "Invalid request body"})
		return
	}

	sessionID, err := s.svc.Connect(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, connectResponse{
		Success:   true,
		Message:   "Successfully connected to email",
		SessionID: sessionID,
	})
}

func (s *Server) handleFetchVerification(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, genericResponse{Message: "Invalid request body"})
		return
	}

	res, err := s.svc.FetchCode(r.Context(), req.SessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if !res.Found {
		// A normal outcome, not an HTTP error.
		writeJSON(w, http.StatusOK, genericResponse{Message: res.Message})
		return
	}

	writeJSON(w, http.StatusOK, fetchResponse{
		Success:   true,
		Code:      res.Code,
		Message:   res.Message,
		Timestamp: res.Timestamp,
		WasUnread: res.WasUnread,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, genericResponse{Message: "Invalid request body"})
		return
	}

	if req.SessionID != "" && s.svc.Logout(req.SessionID) {
		writeJSON(w, http.StatusOK, genericResponse{Success: true, Message: "Logged out successfully"})
		return
	}
	writeJSON(w, http.StatusOK, genericResponse{Message: "No active session"})
}

func (s *Server) handleHasDefaultCredentials(w http.ResponseWriter, _ *http.Request) {
	resp := defaultCredentialsResponse{}
	if email, ok := s.svc.DefaultIdentity(); ok {
		resp.HasDefault = true
		resp.Email = &email
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleServerStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status: "online",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *verify.Error
	if errors.As(err, &verr) {
		s.logger.Warn("request failed", "kind", int(verr.Kind), "error", err)
		writeJSON(w, statusForKind(verr.Kind), genericResponse{Message: verr.Message})
		return
	}

	s.logger.Error("unhandled error", "error", err)
	writeJSON(w, http.StatusInternalServerError, genericResponse{Message: "Server error"})
}

func statusForKind(kind verify.ErrorKind) int {
	switch kind {
	case verify.KindInput:
		return http.StatusBadRequest
	case verify.KindAuth:
		return http.StatusUnauthorized
	case verify.KindInbox:
		return http.StatusForbidden
	case verify.KindTimeout:
		return http.StatusRequestTimeout
	case verify.KindConnectivity:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody tolerates an empty body: the connect endpoint accepts it
// as "use the default identity".
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == io.EOF {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
