// Package session описывает состояние аутентификации текущего пользователя
// и шлюз, который получает это состояние у провайдера идентификации.
package session

import (
	"errors"
	"fmt"
)

// State описывает состояние сессии.
type State int

const (
	StateUnknown State = iota
	StateAnonymous
	StateAuthenticated
)

// String возвращает имя состояния.
func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrInvalidTransition возвращается при недопустимом переходе между состояниями.
var ErrInvalidTransition = errors.New("invalid session transition")

// Session представляет текущего пользователя. Значение неизменяемо:
// переходы возвращают новую сессию.
type Session struct {
	state    State
	identity string
}

// Unknown возвращает сессию до первого обращения к провайдеру.
func Unknown() Session {
	return Session{state: StateUnknown}
}

// Anonymous возвращает сессию неаутентифицированного пользователя.
func Anonymous() Session {
	return Session{state: StateAnonymous}
}

// Authenticated возвращает сессию пользователя с указанной идентичностью.
// Пустая идентичность означает отсутствие пользователя.
func Authenticated(identity string) Session {
	if identity == "" {
		return Anonymous()
	}
	return Session{state: StateAuthenticated, identity: identity}
}

// State возвращает состояние сессии.
func (s Session) State() State {
	return s.state
}

// Identity возвращает идентичность пользователя, если сессия аутентифицирована.
func (s Session) Identity() (string, bool) {
	if s.state != StateAuthenticated {
		return "", false
	}
	return s.identity, true
}

// IsAuthenticated сообщает, аутентифицирован ли пользователь.
func (s Session) IsAuthenticated() bool {
	return s.state == StateAuthenticated
}

// Resolve фиксирует результат первого запроса к провайдеру: Unknown переходит
// в Authenticated при непустой идентичности, иначе в Anonymous.
func (s Session) Resolve(identity string) (Session, error) {
	if s.state != StateUnknown {
		return s, fmt.Errorf("%w: resolve from %s", ErrInvalidTransition, s.state)
	}
	return Authenticated(identity), nil
}

// SignIn фиксирует завершённый вход. Для уже аутентифицированной сессии это no-op.
func (s Session) SignIn(identity string) (Session, error) {
	switch s.state {
	case StateAuthenticated:
		return s, nil
	case StateAnonymous:
		if identity == "" {
			return s, fmt.Errorf("%w: sign in without identity", ErrInvalidTransition)
		}
		return Authenticated(identity), nil
	default:
		return s, fmt.Errorf("%w: sign in from %s", ErrInvalidTransition, s.state)
	}
}

// SignOut переводит аутентифицированную сессию в Anonymous.
func (s Session) SignOut() (Session, error) {
	if s.state != StateAuthenticated {
		return s, fmt.Errorf("%w: sign out from %s", ErrInvalidTransition, s.state)
	}
	return Anonymous(), nil
}
