// Package calcclient предоставляет клиент для внешнего сервиса расчёта процентов.
package calcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmeshcher/fincalc/internal/model"
)

const calculatePath = "/api/calculate"

// Client инкапсулирует HTTP-взаимодействие с сервисом расчёта.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Request описывает тело запроса к сервису расчёта.
type Request struct {
	Principal float64 `json:"principal"`
	Rate      float64 `json:"rate"`
	Time      float64 `json:"time"`
}

// Response описывает ответ сервиса расчёта.
type Response struct {
	Status         string   `json:"status"`
	Principal      float64  `json:"principal"`
	TotalAmount    *float64 `json:"total_amount,omitempty"`
	InterestEarned *float64 `json:"interest_earned,omitempty"`
	Message        string   `json:"message,omitempty"`
}

// NewClient создаёт HTTP-клиент для обращения к сервису расчёта по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Calculate отправляет входные данные в сервис расчёта. Ошибка возвращается, если сервис
// недоступен, ответил статусом вне 2xx или прислал некорректный ответ; в этих случаях
// результат также имеет StatusError. Ответ со status = "error" ошибкой транспорта не считается.
func (c *Client) Calculate(ctx context.Context, in model.Input) (model.Result, error) {
	res, err := c.calculate(ctx, in)
	if err != nil {
		return model.ErrorResult("calculation service unavailable"), fmt.Errorf("%w: %w", model.ErrCalculation, err)
	}
	return res, nil
}

func (c *Client) calculate(ctx context.Context, in model.Input) (model.Result, error) {
	if c == nil || c.baseURL == "" {
		return model.Result{}, fmt.Errorf("calculation client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	body, err := json.Marshal(Request(in))
	if err != nil {
		return model.Result{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+calculatePath, bytes.NewReader(body))
	if err != nil {
		return model.Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.Result{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return model.Result{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return model.Result{}, fmt.Errorf("decode response: %w", err)
	}

	switch model.Status(result.Status) {
	case model.StatusError:
		return model.ErrorResult(result.Message), nil
	case model.StatusSuccess:
		if result.TotalAmount == nil || result.InterestEarned == nil {
			return model.Result{}, fmt.Errorf("success response without amounts")
		}
		res := model.Result{
			Status:         model.StatusSuccess,
			Principal:      in.Principal,
			TotalAmount:    *result.TotalAmount,
			InterestEarned: *result.InterestEarned,
			Message:        result.Message,
		}
		if !res.Consistent() {
			return model.Result{}, fmt.Errorf("total %v is not principal %v plus interest %v",
				res.TotalAmount, res.Principal, res.InterestEarned)
		}
		return res, nil
	default:
		return model.Result{}, fmt.Errorf("unknown status %q", result.Status)
	}
}
