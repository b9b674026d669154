package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/fincalc/internal/middleware"
	"github.com/mmeshcher/fincalc/internal/model"
)

const (
	stateCookieName = "oauth_state"
	stateCookieTTL  = 10 * time.Minute
)

func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// SignIn перенаправляет пользователя на страницу входа провайдера идентификации.
// Аутентифицированный пользователь перенаправляется на главную страницу.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	gate, ok := middleware.GetGateFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	state, err := newState()
	if err != nil {
		h.logger.Error("generate oauth state", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	redirect, err := gate.SignIn(r.Context(), state)
	if err != nil {
		if errors.Is(err, middleware.ErrSignInUnavailable) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		h.logger.Warn("sign in error", zap.Error(err))
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	if redirect == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth",
		Expires:  time.Now().Add(stateCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, redirect, http.StatusFound)
}

// SignInCallback завершает вход: проверяет state, получает идентичность у провайдера
// и устанавливает cookie сессии.
func (h *Handler) SignInCallback(w http.ResponseWriter, r *http.Request) {
	if h.identity == nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	state := r.URL.Query().Get("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(stateCookie.Value), []byte(state)) != 1 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:   stateCookieName,
		Value:  "",
		Path:   "/auth",
		MaxAge: -1,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	identity, err := h.identity.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Warn("sign in callback failed, actor stays anonymous",
			zap.Error(errors.Join(model.ErrSession, err)))
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	sess, err := h.sessions.CompleteSignIn(w, r, identity)
	if err != nil {
		h.logger.Error("set session cookie", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.logger.Info("signed in", zap.String("identity", identity), zap.Stringer("state", sess.State()))

	http.Redirect(w, r, "/", http.StatusFound)
}

// SignOut немедленно завершает сессию текущего пользователя.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if gate, ok := middleware.GetGateFromContext(r.Context()); ok {
		identity, _ := middleware.GetSessionFromContext(r.Context()).Identity()
		sess := gate.SignOut(r.Context())
		h.logger.Info("signed out", zap.String("identity", identity), zap.Stringer("state", sess.State()))
	}
	h.sessions.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
