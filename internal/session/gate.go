package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/fincalc/internal/model"
)

// Provider описывает границу с провайдером идентификации.
type Provider interface {
	// CurrentIdentity возвращает идентичность текущего пользователя или пустую строку.
	CurrentIdentity(ctx context.Context) (string, error)
	// BeginSignIn начинает передачу управления провайдеру и возвращает адрес перенаправления.
	BeginSignIn(ctx context.Context, state string) (string, error)
	// EndSession завершает сессию на стороне провайдера.
	EndSession(ctx context.Context) error
}

const defaultQueryTimeout = 2 * time.Second

// Gate определяет, аутентифицирован ли текущий пользователь, в рамках одного
// клиентского контекста. Провайдер опрашивается один раз при активации и
// повторно только через Refresh.
type Gate struct {
	provider Provider
	logger   *zap.Logger
	timeout  time.Duration

	mu      sync.Mutex
	current Session
}

// NewGate создаёт шлюз в состоянии Unknown.
func NewGate(provider Provider, logger *zap.Logger, timeout time.Duration) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &Gate{
		provider: provider,
		logger:   logger,
		timeout:  timeout,
		current:  Unknown(),
	}
}

// Current возвращает текущую сессию. Первый вызов выполняет единственный запрос
// к провайдеру, ограниченный по времени; ошибка провайдера даёт Anonymous.
func (g *Gate) Current(ctx context.Context) Session {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.current.State() != StateUnknown {
		return g.current
	}

	identity := g.query(ctx)
	resolved, err := g.current.Resolve(identity)
	if err != nil {
		g.logger.Error("resolve session", zap.Error(err))
		resolved = Anonymous()
	}
	g.current = resolved

	return g.current
}

// Refresh повторно опрашивает провайдера после передачи управления при входе.
// Из Anonymous допустим только переход в Authenticated; аутентифицированная
// сессия не меняется.
func (g *Gate) Refresh(ctx context.Context) Session {
	g.mu.Lock()
	state := g.current.State()
	g.mu.Unlock()

	if state == StateUnknown {
		return g.Current(ctx)
	}
	if state == StateAuthenticated {
		return g.snapshot()
	}

	identity := g.query(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()

	if identity == "" || g.current.State() != StateAnonymous {
		return g.current
	}
	next, err := g.current.SignIn(identity)
	if err != nil {
		g.logger.Error("refresh session", zap.Error(err))
		return g.current
	}
	g.current = next

	return g.current
}

// SignIn начинает вход через провайдера и возвращает адрес перенаправления.
// Для аутентифицированной сессии возвращается пустая строка. Сессия считается
// установленной только после Refresh.
func (g *Gate) SignIn(ctx context.Context, state string) (string, error) {
	if g.Current(ctx).IsAuthenticated() {
		return "", nil
	}

	redirect, err := g.provider.BeginSignIn(ctx, state)
	if err != nil {
		g.logger.Warn("begin sign in", zap.Error(err))
		return "", fmt.Errorf("%w: begin sign in: %w", model.ErrSession, err)
	}

	return redirect, nil
}

// SignOut сразу переводит сессию в Anonymous и только после этого сообщает
// провайдеру о завершении сессии. Ошибка провайдера логируется и на состояние не влияет.
func (g *Gate) SignOut(ctx context.Context) Session {
	g.mu.Lock()
	if next, err := g.current.SignOut(); err == nil {
		g.current = next
	} else {
		g.current = Anonymous()
	}
	current := g.current
	g.mu.Unlock()

	endCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.provider.EndSession(endCtx); err != nil {
		g.logger.Warn("end provider session", zap.Error(fmt.Errorf("%w: %w", model.ErrSession, err)))
	}

	return current
}

func (g *Gate) snapshot() Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

func (g *Gate) query(ctx context.Context) string {
	queryCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type answer struct {
		identity string
		err      error
	}
	ch := make(chan answer, 1)
	go func() {
		identity, err := g.provider.CurrentIdentity(queryCtx)
		ch <- answer{identity: identity, err: err}
	}()

	var a answer
	select {
	case a = <-ch:
	case <-queryCtx.Done():
		a.err = queryCtx.Err()
	}

	if a.err != nil {
		g.logger.Warn("identity provider query failed, treating actor as anonymous",
			zap.Error(fmt.Errorf("%w: %w", model.ErrSession, a.err)))
		return ""
	}

	return a.identity
}
