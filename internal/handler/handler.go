// Package handler содержит HTTP-обработчики API сервиса расчёта процентов.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/fincalc/internal/middleware"
	"github.com/mmeshcher/fincalc/internal/model"
	"github.com/mmeshcher/fincalc/internal/service"
	"github.com/mmeshcher/fincalc/internal/session"
	"github.com/mmeshcher/fincalc/internal/validation"
)

// Service определяет контракт сценария расчёта, используемый HTTP-обработчиками.
type Service interface {
	Submit(ctx context.Context, in model.Input, sess session.Session) service.Outcome
}

// HistoryProjector определяет контракт чтения истории и подписки на её обновления.
type HistoryProjector interface {
	List(ctx context.Context, identity string) iter.Seq[model.HistoryRecord]
	Subscribe(identity string) (<-chan []model.HistoryRecord, func())
}

// SignInCompleter завершает вход: обменивает код авторизации на идентичность пользователя.
type SignInCompleter interface {
	Exchange(ctx context.Context, code string) (string, error)
}

// Handler реализует HTTP-обработчики API сервиса.
type Handler struct {
	service  Service
	history  HistoryProjector
	identity SignInCompleter
	logger   *zap.Logger
	sessions *middleware.SessionMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов. identity может быть nil,
// тогда вход через провайдера недоступен.
func NewHandler(s Service, history HistoryProjector, identity SignInCompleter, logger *zap.Logger, sessions *middleware.SessionMiddleware) *Handler {
	return &Handler{
		service:  s,
		history:  history,
		identity: identity,
		logger:   logger,
		sessions: sessions,
	}
}

type calculateRequest struct {
	Principal json.RawMessage `json:"principal"`
	Rate      json.RawMessage `json:"rate"`
	Time      json.RawMessage `json:"time"`
}

type calculateResponse struct {
	Status         string   `json:"status"`
	Principal      *float64 `json:"principal,omitempty"`
	TotalAmount    *float64 `json:"total_amount,omitempty"`
	InterestEarned *float64 `json:"interest_earned,omitempty"`
	Message        string   `json:"message,omitempty"`
	Saved          *bool    `json:"saved,omitempty"`
}

func parseCalculateRequest(r *http.Request) (model.Input, error) {
	var req calculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return model.Input{}, fmt.Errorf("invalid request body: %w", err)
	}

	var (
		in  model.Input
		err error
	)
	if in.Principal, err = validation.ParseNumber(req.Principal); err != nil {
		return model.Input{}, fmt.Errorf("principal: %w", err)
	}
	if in.Rate, err = validation.ParseNumber(req.Rate); err != nil {
		return model.Input{}, fmt.Errorf("rate: %w", err)
	}
	if in.Time, err = validation.ParseNumber(req.Time); err != nil {
		return model.Input{}, fmt.Errorf("time: %w", err)
	}

	return in, nil
}

func successResponse(res model.Result) calculateResponse {
	return calculateResponse{
		Status:         string(model.StatusSuccess),
		Principal:      &res.Principal,
		TotalAmount:    &res.TotalAmount,
		InterestEarned: &res.InterestEarned,
		Message:        res.Message,
	}
}

// Calculate выполняет расчёт для текущей сессии и сохраняет его в историю аутентифицированного пользователя.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	in, err := parseCalculateRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, calculateResponse{Status: string(model.StatusError), Message: err.Error()})
		return
	}

	sess := middleware.GetSessionFromContext(r.Context())
	out := h.service.Submit(r.Context(), in, sess)

	if !out.Result.Succeeded() {
		writeJSON(w, http.StatusBadRequest, calculateResponse{Status: string(model.StatusError), Message: out.Result.Message})
		return
	}

	resp := successResponse(out.Result)
	resp.Saved = &out.Persisted
	writeJSON(w, http.StatusOK, resp)
}

type inputResponse struct {
	Principal float64 `json:"principal"`
	Rate      float64 `json:"rate"`
	Time      float64 `json:"time"`
}

type historyRecordResponse struct {
	ID        int64         `json:"id"`
	InputData inputResponse `json:"input_data"`
	Result    float64       `json:"result"`
	CreatedAt string        `json:"created_at"`
}

func toHistoryResponse(records []model.HistoryRecord) []historyRecordResponse {
	resp := make([]historyRecordResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, historyRecordResponse{
			ID:        rec.ID,
			InputData: inputResponse(rec.Input),
			Result:    rec.Result,
			CreatedAt: rec.CreatedAt.Format(time.RFC3339),
		})
	}
	return resp
}

// GetHistory возвращает историю расчётов текущего пользователя, начиная с последних.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetSessionFromContext(r.Context()).Identity()
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	records := slices.Collect(h.history.List(r.Context(), identity))
	if len(records) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, toHistoryResponse(records))
}

// HistoryEvents отправляет историю текущего пользователя потоком server-sent events:
// снимок при подключении и новый снимок после каждого сохранённого расчёта.
func (h *Handler) HistoryEvents(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetSessionFromContext(r.Context()).Identity()
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	updates, cancel := h.history.Subscribe(identity)
	defer cancel()

	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(records []model.HistoryRecord) error {
		payload, err := json.Marshal(toHistoryResponse(records))
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: history\ndata: %s\n\n", payload); err != nil {
			return err
		}
		return rc.Flush()
	}

	if err := send(slices.Collect(h.history.List(r.Context(), identity))); err != nil {
		h.logger.Warn("history stream error", zap.Error(err), zap.String("identity", identity))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case records := <-updates:
			if err := send(records); err != nil {
				h.logger.Warn("history stream error", zap.Error(err), zap.String("identity", identity))
				return
			}
		}
	}
}

type sessionResponse struct {
	State    string `json:"state"`
	Identity string `json:"identity,omitempty"`
}

// GetSession возвращает состояние сессии текущего пользователя.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSessionFromContext(r.Context())
	identity, _ := sess.Identity()

	writeJSON(w, http.StatusOK, sessionResponse{
		State:    sess.State().String(),
		Identity: identity,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
