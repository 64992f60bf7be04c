// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/keyfold/keyfold/internal/auth"
	"github.com/keyfold/keyfold/pkg/errutil"
)

// sessionCookieName is the cookie carrying the opaque session token.
const sessionCookieName = "session_id"

func (s *Server) handleWelcome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Bienvenue"})
}

// handleRegister creates a user from form-encoded email and password.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "email and password are required"})
		return
	}

	_, err := s.svc.Register(r.Context(), email, password)
	if errors.Is(err, auth.ErrDuplicateEmail) {
		s.countRegistration("duplicate")
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "email already registered"})
		return
	}
	if err != nil {
		s.countRegistration("error")
		s.internalError(w, "register failed", err)
		return
	}

	s.countRegistration("created")
	writeJSON(w, http.StatusOK, map[string]string{"email": email, "message": "user created"})
}

// handleLogin validates credentials and issues a session cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	valid, err := s.svc.ValidCredentials(r.Context(), email, password)
	if err != nil {
		s.countLogin("error")
		s.internalError(w, "credential check failed", err)
		return
	}
	if !valid {
		s.countLogin("unauthorized")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
		return
	}

	sessionID, err := s.svc.CreateSession(r.Context(), email)
	if err != nil {
		s.countLogin("error")
		s.internalError(w, "session creation failed", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
	})
	s.countLogin("success")
	writeJSON(w, http.StatusOK, map[string]string{"email": email, "message": "logged in"})
}

// handleLogout destroys the session named by the cookie and redirects
// to the welcome page. An unknown or absent session is a 403.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	user := s.sessionUser(w, r)
	if user == nil {
		return
	}

	if err := s.svc.DestroySession(r.Context(), user.ID); err != nil {
		s.internalError(w, "logout failed", err)
		return
	}

	if s.metrics != nil {
		s.metrics.SessionsDestroyedTotal.Inc()
	}

	http.SetCookie(w, &http.Cookie{
		Name:   sessionCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

// handleProfile returns the email of the logged-in user.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user := s.sessionUser(w, r)
	if user == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": user.Email})
}

// sessionUser resolves the session cookie to a user. On any miss it
// writes a 403 and returns nil; the caller just returns.
func (s *Server) sessionUser(w http.ResponseWriter, r *http.Request) *auth.User {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "forbidden"})
		return nil
	}

	user, err := s.svc.UserFromSession(r.Context(), cookie.Value)
	if err != nil {
		s.internalError(w, "session lookup failed", err)
		return nil
	}
	if user == nil {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "forbidden"})
		return nil
	}
	return user
}

func (s *Server) internalError(w http.ResponseWriter, msg string, err error) {
	errutil.LogError(s.logger, msg, err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal error"})
}

func (s *Server) countRegistration(status string) {
	if s.metrics != nil {
		s.metrics.RegistrationsTotal.WithLabelValues(status).Inc()
	}
}

func (s *Server) countLogin(status string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(status).Inc()
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // response write error means the client went away
	json.NewEncoder(w).Encode(body)
}
