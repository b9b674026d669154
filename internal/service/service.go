// Package service реализует сценарий расчёта: вычисление, сохранение в историю
// и сигнал обновления истории.
package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mmeshcher/fincalc/internal/model"
	"github.com/mmeshcher/fincalc/internal/session"
)

// Repository описывает контракт хранилища, используемый сервисом.
type Repository interface {
	Close() error
	CreateRecord(ctx context.Context, rec model.HistoryRecord) (int64, error)
}

// Calculator описывает движок расчёта. Ошибка означает сбой самого движка
// (например, недоступность удалённого сервиса).
type Calculator interface {
	Calculate(ctx context.Context, in model.Input) (model.Result, error)
}

// Refresher получает сигнал о том, что история пользователя изменилась.
type Refresher interface {
	Refresh(ctx context.Context, identity string)
}

// Outcome описывает итог Submit. Result всегда содержит результат расчёта;
// сбой сохранения отражается только в PersistErr.
type Outcome struct {
	Result     model.Result
	Persisted  bool
	RecordID   int64
	PersistErr error
}

// Service содержит бизнес-логику сценария расчёта.
type Service struct {
	repo      Repository
	calc      Calculator
	refresher Refresher
	logger    *zap.Logger

	persistFailures atomic.Int64
}

// NewService создаёт новый сервис. refresher может быть nil.
func NewService(repo Repository, calc Calculator, refresher Refresher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		calc:      calc,
		refresher: refresher,
		logger:    logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// PersistFailures возвращает число неудачных попыток сохранить историю.
func (s *Service) PersistFailures() int64 {
	return s.persistFailures.Load()
}

// Submit выполняет расчёт и, если он успешен и сессия аутентифицирована,
// сохраняет ровно одну запись истории. Вызовы независимы и не делят состояние.
// Отмена контекста вызывающего не прерывает начатые расчёт и сохранение.
func (s *Service) Submit(ctx context.Context, in model.Input, sess session.Session) Outcome {
	ctx = context.WithoutCancel(ctx)

	res := s.calculate(ctx, in)
	if !res.Succeeded() {
		return Outcome{Result: res}
	}

	identity, ok := sess.Identity()
	if !ok {
		return Outcome{Result: res}
	}

	id, err := s.repo.CreateRecord(ctx, model.HistoryRecord{
		OwnerIdentity: identity,
		Input:         in,
		Result:        res.TotalAmount,
	})
	if err != nil {
		failures := s.persistFailures.Add(1)
		err = fmt.Errorf("%w: %w", model.ErrPersistence, err)
		s.logger.Error("history record was not saved",
			zap.String("identity", identity),
			zap.Float64("total_amount", res.TotalAmount),
			zap.Int64("persist_failures", failures),
			zap.Error(err),
		)
		return Outcome{Result: res, PersistErr: err}
	}

	if s.refresher != nil {
		s.refresher.Refresh(ctx, identity)
	}

	return Outcome{Result: res, Persisted: true, RecordID: id}
}

func (s *Service) calculate(ctx context.Context, in model.Input) model.Result {
	res, err := s.calc.Calculate(ctx, in)
	if err != nil {
		s.logger.Warn("calculation engine failed", zap.Error(err))
		if res.Status != model.StatusError {
			res = model.ErrorResult("calculation failed")
		}
		return res
	}

	switch res.Status {
	case model.StatusSuccess:
		if !res.Consistent() {
			s.logger.Warn("calculation engine returned inconsistent amounts",
				zap.Error(fmt.Errorf("%w: total %v, principal %v, interest %v",
					model.ErrCalculation, res.TotalAmount, res.Principal, res.InterestEarned)))
			return model.ErrorResult("calculation failed")
		}
		return res
	case model.StatusError:
		return res
	default:
		s.logger.Warn("calculation engine returned unknown status", zap.String("status", string(res.Status)))
		return model.ErrorResult("calculation failed")
	}
}
