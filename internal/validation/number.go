// Package validation содержит функции валидации входных данных.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrNotANumber возвращается, если значение нельзя интерпретировать как конечное число.
var ErrNotANumber = errors.New("value is not a finite number")

// ParseNumber разбирает числовое поле запроса. Поле может быть передано как JSON-число
// или как строка с десятичной записью числа. Отсутствующее поле и null трактуются как 0.
func ParseNumber(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrNotANumber, err)
		}
		return ParseNumberString(s)
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrNotANumber, raw)
	}
	return ParseNumberString(n.String())
}

// ParseNumberString разбирает десятичную запись числа. NaN, бесконечности и
// шестнадцатеричные записи отклоняются.
func ParseNumberString(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "xX_") {
		return 0, fmt.Errorf("%w: %q", ErrNotANumber, s)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotANumber, s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNotANumber, s)
	}

	return v, nil
}
