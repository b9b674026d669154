package model

import "errors"

// Классы ошибок сценария расчёта. Конкретные ошибки оборачивают их через fmt.Errorf("%w").
var (
	// ErrCalculation: сервис расчёта вернул status = error или был недоступен.
	ErrCalculation = errors.New("calculation failure")
	// ErrPersistence: хранилище отклонило запись истории или было недоступно.
	ErrPersistence = errors.New("persistence failure")
	// ErrHistoryRead: хранилище не смогло вернуть историю.
	ErrHistoryRead = errors.New("history read failure")
	// ErrSession: провайдер идентификации недоступен.
	ErrSession = errors.New("session failure")
)
