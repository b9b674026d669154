// Package middleware содержит HTTP middleware сервиса расчёта процентов.
package middleware

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/fincalc/internal/session"
)

type contextKey string

const (
	sessionKey  contextKey = "session"
	gateKey     contextKey = "sessionGate"
	providerKey contextKey = "sessionProvider"
)

const (
	sessionCookieName = "session_token"
	defaultSessionTTL = 7 * 24 * time.Hour
)

// ErrSignInUnavailable возвращается, если провайдер идентификации не настроен.
var ErrSignInUnavailable = errors.New("sign in is not configured")

// SignInStarter строит адрес страницы входа провайдера идентификации.
type SignInStarter interface {
	AuthCodeURL(state string) string
}

// SessionMiddleware определяет сессию пользователя по подписанному JWT в cookie.
type SessionMiddleware struct {
	secretKey    []byte
	ttl          time.Duration
	queryTimeout time.Duration
	signIn       SignInStarter
	logger       *zap.Logger
}

// NewSessionMiddleware создаёт новый экземпляр SessionMiddleware с указанным секретным ключом.
// signIn может быть nil, тогда вход недоступен.
func NewSessionMiddleware(secret string, ttl, queryTimeout time.Duration, signIn SignInStarter, logger *zap.Logger) *SessionMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SessionMiddleware{
		secretKey:    key,
		ttl:          ttl,
		queryTimeout: queryTimeout,
		signIn:       signIn,
		logger:       logger,
	}
}

// Middleware определяет сессию запроса и добавляет её и шлюз сессии в контекст.
// Анонимные запросы пропускаются.
func (m *SessionMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		provider := &cookieProvider{m: m, r: r}
		gate := session.NewGate(provider, m.logger, m.queryTimeout)
		sess := gate.Current(r.Context())

		ctx := context.WithValue(r.Context(), gateKey, gate)
		ctx = context.WithValue(ctx, providerKey, provider)
		ctx = context.WithValue(ctx, sessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth отклоняет запросы без аутентифицированной сессии.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !GetSessionFromContext(r.Context()).IsAuthenticated() {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SetSessionCookie устанавливает cookie сессии для указанной идентичности.
func (m *SessionMiddleware) SetSessionCookie(w http.ResponseWriter, identity string) error {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   identity,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
	if err != nil {
		return fmt.Errorf("sign session token: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  now.Add(m.ttl),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

// CompleteSignIn выдаёт cookie сессии и повторно опрашивает шлюз текущего запроса,
// так что сессия запроса переходит из Anonymous в Authenticated.
func (m *SessionMiddleware) CompleteSignIn(w http.ResponseWriter, r *http.Request, identity string) (session.Session, error) {
	if err := m.SetSessionCookie(w, identity); err != nil {
		return session.Anonymous(), err
	}

	gate, ok := GetGateFromContext(r.Context())
	provider, pok := r.Context().Value(providerKey).(*cookieProvider)
	if !ok || !pok {
		return session.Authenticated(identity), nil
	}

	provider.issued = identity
	return gate.Refresh(r.Context()), nil
}

// ClearSessionCookie удаляет cookie сессии.
func (m *SessionMiddleware) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *SessionMiddleware) parseToken(value string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(value, &claims, func(token *jwt.Token) (any, error) {
		return m.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// cookieProvider отвечает на запросы шлюза сессии для одного HTTP-запроса.
// issued хранит идентичность, для которой cookie выдана в этом же запросе.
type cookieProvider struct {
	m      *SessionMiddleware
	r      *http.Request
	issued string
}

func (p *cookieProvider) CurrentIdentity(_ context.Context) (string, error) {
	if p.issued != "" {
		return p.issued, nil
	}

	cookie, err := p.r.Cookie(sessionCookieName)
	if err != nil {
		return "", nil
	}

	identity, err := p.m.parseToken(cookie.Value)
	if err != nil {
		p.m.logger.Debug("rejecting session token", zap.Error(err))
		return "", nil
	}

	return identity, nil
}

func (p *cookieProvider) BeginSignIn(_ context.Context, state string) (string, error) {
	if p.m.signIn == nil {
		return "", ErrSignInUnavailable
	}
	return p.m.signIn.AuthCodeURL(state), nil
}

// EndSession ничего не делает: токен сессии не хранится на сервере, а cookie удаляет обработчик.
func (p *cookieProvider) EndSession(_ context.Context) error {
	return nil
}

// GetSessionFromContext извлекает сессию из контекста запроса. Без сессии в контексте возвращается Anonymous.
func GetSessionFromContext(ctx context.Context) session.Session {
	sess, ok := ctx.Value(sessionKey).(session.Session)
	if !ok {
		return session.Anonymous()
	}
	return sess
}

// GetGateFromContext извлекает шлюз сессии из контекста запроса.
func GetGateFromContext(ctx context.Context) (*session.Gate, bool) {
	gate, ok := ctx.Value(gateKey).(*session.Gate)
	return gate, ok
}
