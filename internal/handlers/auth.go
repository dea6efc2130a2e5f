package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"noyel/internal/account"
	"noyel/internal/models"
	"noyel/internal/session"
)

type ctxKey int

const (
	userKey ctxKey = iota
	tokenKey
)

// sessionToken reads the session cookie, falling back to a Bearer token.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return ""
}

// requireUser rejects requests without a live session of an active user.
func (a *API) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
			return
		}

		sess, err := a.svc.Sessions.Get(r.Context(), token)
		if err != nil {
			if !errors.Is(err, session.ErrNotFound) {
				writeError(w, r, err)
				return
			}
			respondError(w, http.StatusUnauthorized, "unauthenticated", "session expired")
			return
		}
		user, err := a.svc.Accounts.GetUser(r.Context(), sess.UserID)
		if err != nil {
			if !errors.Is(err, account.ErrNotFound) {
				writeError(w, r, err)
				return
			}
			respondError(w, http.StatusUnauthorized, "unauthenticated", "account unavailable")
			return
		}

		hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("user", user.Username)
		})
		ctx := context.WithValue(r.Context(), userKey, user)
		ctx = context.WithValue(ctx, tokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentUser returns the user authenticated by requireUser.
func currentUser(r *http.Request) models.User {
	user, _ := r.Context().Value(userKey).(models.User)
	return user
}

func (a *API) setSessionCookie(w http.ResponseWriter, sess session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Domain:   a.config.CookieDomain,
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   a.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		Domain:   a.config.CookieDomain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req account.SignupInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := a.svc.Accounts.Signup(r.Context(), req)
	if err != nil {
		if errors.Is(err, account.ErrMailDelivery) {
			respondJSON(w, http.StatusBadGateway, map[string]any{
				"error":   "mail_delivery",
				"message": "Your account has been created but the verification email could not be sent.",
				"user":    user,
			})
			return
		}
		writeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"user":    user,
		"message": "Your account has been created. A verification email has been sent.",
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := a.svc.Accounts.Authenticate(r.Context(), req.Login, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := a.svc.Sessions.Create(r.Context(), user.ID, a.config.SessionTTL)
	if err != nil {
		writeError(w, r, err)
		return
	}

	a.setSessionCookie(w, sess)
	respondJSON(w, http.StatusOK, map[string]any{
		"user":       user,
		"token":      sess.Token,
		"expires_at": sess.ExpiresAt.Format(time.RFC3339),
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := r.Context().Value(tokenKey).(string)
	if err := a.svc.Sessions.Delete(r.Context(), token); err != nil && !errors.Is(err, session.ErrNotFound) {
		writeError(w, r, err)
		return
	}
	a.clearSessionCookie(w)
	respondMessage(w, http.StatusOK, "You have been logged out.")
}
