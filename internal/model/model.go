// Package model содержит доменные сущности сервиса расчёта процентов.
package model

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Input описывает входные данные одного расчёта.
type Input struct {
	Principal float64 `json:"principal"`
	Rate      float64 `json:"rate"`
	Time      float64 `json:"time"`
}

// Status описывает исход расчёта.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result описывает результат расчёта. TotalAmount и InterestEarned заполнены только при StatusSuccess.
type Result struct {
	Status         Status
	Principal      float64
	TotalAmount    float64
	InterestEarned float64
	Message        string
}

// Succeeded сообщает, завершился ли расчёт успешно.
func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Consistent сообщает, выполняется ли для успешного результата равенство
// TotalAmount = Principal + InterestEarned. Значения сравниваются в кратчайшей
// десятичной записи, так что 0.1 + 0.2 считается равным 0.3.
func (r Result) Consistent() bool {
	if !r.Succeeded() {
		return true
	}
	for _, v := range []float64{r.Principal, r.TotalAmount, r.InterestEarned} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	sum := decimal.NewFromFloat(r.Principal).Add(decimal.NewFromFloat(r.InterestEarned))
	return decimal.NewFromFloat(r.TotalAmount).Equal(sum)
}

// ErrorResult создаёт результат с ошибкой и указанным сообщением.
func ErrorResult(message string) Result {
	return Result{
		Status:  StatusError,
		Message: message,
	}
}

// HistoryRecord описывает сохранённый успешный расчёт пользователя.
// ID и CreatedAt назначает хранилище.
type HistoryRecord struct {
	ID            int64
	OwnerIdentity string
	Input         Input
	Result        float64
	CreatedAt     time.Time
}
