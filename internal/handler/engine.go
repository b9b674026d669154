package handler

import (
	"net/http"

	"github.com/mmeshcher/fincalc/internal/calculator"
	"github.com/mmeshcher/fincalc/internal/model"
)

// EngineCalculate отвечает на запросы к сервису расчёта без сессии и сохранения.
// Ответ совместим с calcclient: status, principal, total_amount, interest_earned, message.
func EngineCalculate(w http.ResponseWriter, r *http.Request) {
	in, err := parseCalculateRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, calculateResponse{Status: string(model.StatusError), Message: err.Error()})
		return
	}

	res := calculator.Calculate(in)
	if !res.Succeeded() {
		writeJSON(w, http.StatusBadRequest, calculateResponse{Status: string(model.StatusError), Message: res.Message})
		return
	}

	writeJSON(w, http.StatusOK, successResponse(res))
}
