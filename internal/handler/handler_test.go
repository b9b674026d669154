package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/fincalc/internal/calculator"
	"github.com/mmeshcher/fincalc/internal/middleware"
	"github.com/mmeshcher/fincalc/internal/model"
	"github.com/mmeshcher/fincalc/internal/service"
	"github.com/mmeshcher/fincalc/internal/session"
)

type stubService struct {
	outcome  service.Outcome
	called   bool
	lastIn   model.Input
	lastSess session.Session
}

func (s *stubService) Submit(ctx context.Context, in model.Input, sess session.Session) service.Outcome {
	s.called = true
	s.lastIn = in
	s.lastSess = sess
	return s.outcome
}

type stubHistory struct {
	records []model.HistoryRecord
}

func (s *stubHistory) List(ctx context.Context, identity string) iter.Seq[model.HistoryRecord] {
	return slices.Values(s.records)
}

func (s *stubHistory) Subscribe(identity string) (<-chan []model.HistoryRecord, func()) {
	return make(chan []model.HistoryRecord), func() {}
}

type stubIdentity struct {
	email string
	err   error
}

func (s stubIdentity) Exchange(ctx context.Context, code string) (string, error) {
	return s.email, s.err
}

type staticSignIn struct{}

func (staticSignIn) AuthCodeURL(state string) string {
	return "https://idp.example/auth?state=" + state
}

func newTestHandler(t *testing.T, svc Service, history HistoryProjector, identity SignInCompleter) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	sessions := middleware.NewSessionMiddleware("test-secret", time.Hour, time.Second, staticSignIn{}, logger)

	return NewHandler(svc, history, identity, logger, sessions)
}

func sessionCookie(t *testing.T, h *Handler, identity string) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	if err := h.sessions.SetSessionCookie(rec, identity); err != nil {
		t.Fatalf("SetSessionCookie: %v", err)
	}
	return rec.Result().Cookies()[0]
}

func decodeCalculateResponse(t *testing.T, res *http.Response) calculateResponse {
	t.Helper()

	var resp calculateResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestCalculate_AnonymousSuccess(t *testing.T) {
	svc := &stubService{
		outcome: service.Outcome{Result: calculator.Calculate(model.Input{Principal: 1000, Rate: 5, Time: 2})},
	}
	h := newTestHandler(t, svc, &stubHistory{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/calculate", strings.NewReader(`{"principal":"1000","rate":5,"time":"2"}`))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if svc.lastSess.IsAuthenticated() {
		t.Fatalf("session must be anonymous without cookie")
	}
	if svc.lastIn != (model.Input{Principal: 1000, Rate: 5, Time: 2}) {
		t.Fatalf("unexpected input: %+v", svc.lastIn)
	}

	resp := decodeCalculateResponse(t, res)
	if resp.Status != "success" || resp.TotalAmount == nil || *resp.TotalAmount != 1102.5 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.InterestEarned == nil || *resp.InterestEarned != 102.5 {
		t.Fatalf("unexpected interest: %+v", resp)
	}
	if resp.Saved == nil || *resp.Saved {
		t.Fatalf("saved = %v, want false", resp.Saved)
	}
}

func TestCalculate_PassesAuthenticatedSession(t *testing.T) {
	svc := &stubService{
		outcome: service.Outcome{Result: calculator.Calculate(model.Input{Principal: 1}), Persisted: true, RecordID: 7},
	}
	h := newTestHandler(t, svc, &stubHistory{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/calculate", strings.NewReader(`{"principal":1}`))
	req.AddCookie(sessionCookie(t, h, "a@b.com"))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if id, ok := svc.lastSess.Identity(); !ok || id != "a@b.com" {
		t.Fatalf("session identity = %q (%v), want a@b.com", id, ok)
	}
	resp := decodeCalculateResponse(t, rec.Result())
	if resp.Saved == nil || !*resp.Saved {
		t.Fatalf("saved = %v, want true", resp.Saved)
	}
}

func TestCalculate_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `principal=1`},
		{name: "non numeric principal", body: `{"principal":"abc","rate":5,"time":2}`},
		{name: "empty rate", body: `{"principal":1,"rate":"","time":2}`},
		{name: "nan time", body: `{"principal":1,"rate":5,"time":"NaN"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{}
			h := newTestHandler(t, svc, &stubHistory{}, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/calculate", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.Calculate(rec, req)

			res := rec.Result()
			if res.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
			}
			if svc.called {
				t.Fatalf("service must not be called for invalid input")
			}
			if resp := decodeCalculateResponse(t, res); resp.Status != "error" || resp.Message == "" {
				t.Fatalf("unexpected response: %+v", resp)
			}
		})
	}
}

func TestCalculate_CalculationFailure(t *testing.T) {
	svc := &stubService{
		outcome: service.Outcome{Result: model.ErrorResult("calculation service unavailable")},
	}
	h := newTestHandler(t, svc, &stubHistory{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/calculate", bytes.NewReader([]byte(`{"principal":1,"rate":1,"time":1}`)))
	rec := httptest.NewRecorder()

	h.Calculate(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
	resp := decodeCalculateResponse(t, res)
	if resp.Status != "error" || resp.Message != "calculation service unavailable" || resp.TotalAmount != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGetHistory_NoContent(t *testing.T) {
	h := newTestHandler(t, &stubService{}, &stubHistory{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.AddCookie(sessionCookie(t, h, "a@b.com"))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestGetHistory_Unauthorized(t *testing.T) {
	h := newTestHandler(t, &stubService{}, &stubHistory{}, nil)

	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestGetHistory_JSONResponse(t *testing.T) {
	created := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	history := &stubHistory{records: []model.HistoryRecord{
		{ID: 3, OwnerIdentity: "a@b.com", Input: model.Input{Principal: 1000, Rate: 5, Time: 2}, Result: 1102.5, CreatedAt: created},
	}}
	h := newTestHandler(t, &stubService{}, history, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.AddCookie(sessionCookie(t, h, "a@b.com"))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var resp []historyRecordResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := historyRecordResponse{
		ID:        3,
		InputData: inputResponse{Principal: 1000, Rate: 5, Time: 2},
		Result:    1102.5,
		CreatedAt: "2026-05-01T09:30:00Z",
	}
	if len(resp) != 1 || resp[0] != want {
		t.Fatalf("unexpected history: %+v", resp)
	}
}

func TestGetSession(t *testing.T) {
	h := newTestHandler(t, &stubService{}, &stubHistory{}, nil)
	router := h.SetupRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	if body := rec.Body.String(); !strings.Contains(body, `"state":"anonymous"`) {
		t.Fatalf("unexpected anonymous session body: %s", body)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(sessionCookie(t, h, "a@b.com"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp sessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.State != "authenticated" || resp.Identity != "a@b.com" {
		t.Fatalf("unexpected session: %+v", resp)
	}
}

func TestSignIn_RedirectsToProvider(t *testing.T) {
	h := newTestHandler(t, &stubService{}, &stubHistory{}, stubIdentity{})

	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	res := rec.Result()
	if res.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusFound)
	}

	var state string
	for _, c := range res.Cookies() {
		if c.Name == stateCookieName {
			state = c.Value
		}
	}
	if state == "" {
		t.Fatalf("state cookie not set")
	}
	if loc := res.Header.Get("Location"); loc != "https://idp.example/auth?state="+state {
		t.Fatalf("location = %q", loc)
	}
}

func TestSignIn_AlreadyAuthenticatedIsNoop(t *testing.T) {
	h := newTestHandler(t, &stubService{}, &stubHistory{}, stubIdentity{})

	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	req.AddCookie(sessionCookie(t, h, "a@b.com"))
	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)

	if loc := rec.Result().Header.Get("Location"); loc != "/" {
		t.Fatalf("location = %q, want /", loc)
	}
}

func TestSignIn_Unavailable(t *testing.T) {
	logger := zap.NewNop()
	sessions := middleware.NewSessionMiddleware("test-secret", time.Hour, time.Second, nil, logger)
	h := NewHandler(&stubService{}, &stubHistory{}, nil, logger, sessions)

	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func callbackRequest(state, cookieState, code string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/auth/callback?state="+state+"&code="+code, nil)
	if cookieState != "" {
		req.AddCookie(&http.Cookie{Name: stateCookieName, Value: cookieState})
	}
	return req
}

func TestSignInCallback(t *testing.T) {
	tests := []struct {
		name        string
		identity    SignInCompleter
		req         *http.Request
		wantStatus  int
		wantSession bool
	}{
		{
			name:        "success",
			identity:    stubIdentity{email: "a@b.com"},
			req:         callbackRequest("s1", "s1", "code"),
			wantStatus:  http.StatusFound,
			wantSession: true,
		},
		{
			name:       "state mismatch",
			identity:   stubIdentity{email: "a@b.com"},
			req:        callbackRequest("s1", "s2", "code"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing state cookie",
			identity:   stubIdentity{email: "a@b.com"},
			req:        callbackRequest("s1", "", "code"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing code",
			identity:   stubIdentity{email: "a@b.com"},
			req:        callbackRequest("s1", "s1", ""),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "provider failure stays anonymous",
			identity:   stubIdentity{err: errors.New("provider unreachable")},
			req:        callbackRequest("s1", "s1", "code"),
			wantStatus: http.StatusFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{}, &stubHistory{}, tt.identity)

			rec := httptest.NewRecorder()
			h.SetupRouter().ServeHTTP(rec, tt.req)

			res := rec.Result()
			if res.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.wantStatus)
			}

			gotSession := false
			for _, c := range res.Cookies() {
				if c.Name == "session_token" && c.Value != "" {
					gotSession = true
				}
			}
			if gotSession != tt.wantSession {
				t.Fatalf("session cookie set = %v, want %v", gotSession, tt.wantSession)
			}
		})
	}
}

func TestSignOut_ClearsCookie(t *testing.T) {
	h := newTestHandler(t, &stubService{}, &stubHistory{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(sessionCookie(t, h, "a@b.com"))
	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNoContent)
	}
	cookies := res.Cookies()
	if len(cookies) != 1 || cookies[0].Name != "session_token" || cookies[0].MaxAge >= 0 {
		t.Fatalf("session cookie not cleared: %+v", cookies)
	}
}
