package http

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	user, err := s.accounts.RegisterUser(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.startSession(w, r, user.ID); err != nil {
		respondError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Registered user", "user_id", user.ID)
	respondJSON(w, http.StatusCreated, "user registered", user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	user, err := s.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.startSession(w, r, user.ID); err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, "logged in", user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := s.accounts.DeleteSession(r.Context(), cookie.Value); err != nil {
			slog.WarnContext(r.Context(), "Failed to delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	respondJSON(w, http.StatusOK, "logged out", nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	actor, _ := userID(r.Context())
	user, err := s.accounts.FindUser(r.Context(), actor)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "ok", user)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, id uuid.UUID) error {
	sess, err := s.accounts.CreateSession(r.Context(), id, s.sessionTTL)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
