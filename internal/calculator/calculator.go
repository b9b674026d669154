// Package calculator реализует расчёт сложных процентов.
//
// Формула: amount = P * (1 + r/100)^t, где r задаётся в процентах, t в годах,
// начисление раз в период. Расчёт ведётся в десятичной арифметике: итоговая
// сумма округляется до копеек (половина от нуля), доход равен разности итоговой
// суммы и вложения, поэтому TotalAmount = Principal + InterestEarned выполняется
// точно в десятичной записи.
package calculator

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/fincalc/internal/model"
)

const (
	successMessage = "computed successfully"

	// maxExactPeriods ограничивает точное возведение в степень повторным умножением.
	maxExactPeriods = 1000
)

// Calculate выполняет расчёт. Функция детерминирована и не паникует:
// для входных данных, не дающих конечного результата, возвращается StatusError.
func Calculate(in model.Input) model.Result {
	fields := []struct {
		name  string
		value float64
	}{
		{"principal", in.Principal},
		{"rate", in.Rate},
		{"time", in.Time},
	}
	for _, f := range fields {
		if !finite(f.value) {
			return model.ErrorResult(fmt.Sprintf("%s must be a finite number", f.name))
		}
	}

	base := decimal.NewFromInt(1).Add(decimal.NewFromFloat(in.Rate).Shift(-2))

	// Оценка в float64 отсекает NaN и переполнение до точного расчёта.
	approx := math.Pow(base.InexactFloat64(), in.Time)
	if !finite(approx) || !finite(in.Principal*approx) {
		return model.ErrorResult("result is not a finite number")
	}

	principal := decimal.NewFromFloat(in.Principal)
	total := principal.Mul(growth(base, in.Time, approx)).Round(2)
	interest := total.Sub(principal)

	totalAmount := total.InexactFloat64()
	interestEarned := interest.InexactFloat64()
	if !finite(totalAmount) || !finite(interestEarned) {
		return model.ErrorResult("result is not a finite number")
	}

	return model.Result{
		Status:         model.StatusSuccess,
		Principal:      in.Principal,
		TotalAmount:    totalAmount,
		InterestEarned: interestEarned,
		Message:        successMessage,
	}
}

// growth возвращает base^periods. Для целого неотрицательного числа периодов
// степень считается точно, иначе используется approx.
func growth(base decimal.Decimal, periods, approx float64) decimal.Decimal {
	if periods < 0 || periods > maxExactPeriods || periods != math.Trunc(periods) {
		return decimal.NewFromFloat(approx)
	}

	g := decimal.NewFromInt(1)
	for range int(periods) {
		g = g.Mul(base)
	}
	return g
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Engine выполняет расчёт локально, в процессе сервиса.
type Engine struct{}

// Calculate реализует контракт движка расчёта. Локальный расчёт не возвращает ошибок транспорта.
func (Engine) Calculate(_ context.Context, in model.Input) (model.Result, error) {
	return Calculate(in), nil
}
