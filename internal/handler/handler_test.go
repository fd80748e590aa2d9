package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cashback-advisor/internal/advisor"
	"cashback-advisor/internal/auth"
	"cashback-advisor/internal/config"
	"cashback-advisor/internal/domain"
	"cashback-advisor/internal/metrics"
	"cashback-advisor/internal/storage/memory"

	"github.com/gin-gonic/gin"
)

type testServer struct {
	router *gin.Engine
	token  string
	store  *memory.Storage
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStorage()
	m := metrics.New()
	tokens := auth.NewTokenService(config.Config{JWTSecret: "test", JWTExpiresIn: time.Hour})
	router := NewRouter(RouterDeps{
		Store:   store,
		Advisor: advisor.New(store, advisor.Options{Metrics: m}),
		Tokens:  tokens,
		Metrics: m,
	})

	token, err := tokens.GenerateToken(7)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return &testServer{router: router, token: token, store: store}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		r.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, r)
	return w
}

const catalogBody = `{
	"month": "2024-12",
	"banks": [
		{"name": "Tinkoff", "bank_limit": 3000, "max_categories": 1,
		 "categories": [{"name": "Cafe", "percent": 3}, {"name": "Taxi", "percent": 5, "category_limit": 1000}]},
		{"name": "Alfa", "categories": [{"name": "all", "percent": 1}]}
	]
}`

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)
	s.token = ""
	if w := s.do(t, http.MethodGet, "/api/v1/month?month=2024-12", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	s.token = "garbage"
	if w := s.do(t, http.MethodGet, "/api/v1/month?month=2024-12", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", w.Code)
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	s.token = ""
	w := s.do(t, http.MethodPost, "/api/v1/login", `{"user_id": 5}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "token") {
		t.Fatalf("login: %d %s", w.Code, w.Body)
	}
	if w := s.do(t, http.MethodPost, "/api/v1/login", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestMonthLifecycle(t *testing.T) {
	s := newTestServer(t)

	if w := s.do(t, http.MethodPost, "/api/v1/month", catalogBody); w.Code != http.StatusOK {
		t.Fatalf("save: %d %s", w.Code, w.Body)
	}

	w := s.do(t, http.MethodGet, "/api/v1/month?month=2024-12", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: %d %s", w.Code, w.Body)
	}
	var month domain.CashbackMonth
	if err := json.Unmarshal(w.Body.Bytes(), &month); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(month.Banks) != 2 || month.Banks[0].Bank.Name != "Tinkoff" {
		t.Fatalf("unexpected month: %+v", month)
	}
	alfa := month.Banks[1]
	if alfa.MaxCategories != domain.DefaultMaxCategories || alfa.BankLimit.IntPart() != domain.DefaultBankLimit {
		t.Errorf("defaults not applied: %+v", alfa)
	}
	if !month.Banks[0].Categories[1].CategoryLimit.Valid {
		t.Errorf("category limit lost: %+v", month.Banks[0].Categories[1])
	}

	w = s.do(t, http.MethodGet, "/api/v1/search/category?month=2024-12&q=taxi", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Tinkoff") {
		t.Errorf("search category: %d %s", w.Code, w.Body)
	}

	w = s.do(t, http.MethodDelete, "/api/v1/month/bank/category?month=2024-12&bank=Alfa&category=Taxi", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing category, got %d", w.Code)
	}
	w = s.do(t, http.MethodDelete, "/api/v1/month/bank?month=2024-12&bank=alfa", "")
	if w.Code != http.StatusOK {
		t.Errorf("delete bank: %d", w.Code)
	}
	w = s.do(t, http.MethodGet, "/api/v1/search/bank?month=2024-12&q=Alfa", "")
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("expected empty list, got %d %s", w.Code, w.Body)
	}
}

func TestSaveMonth_Validation(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad month", `{"month":"12-2024","banks":[{"name":"A","categories":[{"name":"Taxi","percent":5}]}]}`, "YYYY-MM"},
		{"no banks", `{"month":"2024-12","banks":[]}`, "must not be empty"},
		{"percent", `{"month":"2024-12","banks":[{"name":"A","categories":[{"name":"Taxi","percent":150}]}]}`, "between 0 and 100"},
		{"blank bank", `{"month":"2024-12","banks":[{"name":"  ","categories":[{"name":"Taxi","percent":5}]}]}`, "blank"},
		{"negative limit", `{"month":"2024-12","banks":[{"name":"A","bank_limit":-1,"categories":[{"name":"Taxi","percent":5}]}]}`, "negative"},
		{"bad json", `{"month":`, "Invalid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/v1/month", tt.body)
			if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), tt.want) {
				t.Errorf("got %d %s, want 400 containing %q", w.Code, w.Body, tt.want)
			}
		})
	}
}

func TestRecommendAndConfirm(t *testing.T) {
	s := newTestServer(t)

	history := `{"month":"2024-12","bank_name":"Tinkoff","transactions":{"data":{"transaction":[
		{"transactionId":"1","status":"Completed","creditDebitIndicator":"Debit","amount":{"amount":"800","currency":"RUB"},
		 "bookingDateTime":"2024-11-05T10:00:00Z","merchant":{"name":"Yandex Go","category":"Taxi"}},
		{"transactionId":"2","status":"Completed","creditDebitIndicator":"Debit","amount":{"amount":"300","currency":"RUB"},
		 "bookingDateTime":"2024-11-07T10:00:00Z","merchant":{"name":"Coffee","category":"Cafe"}}
	]}}}`

	w := s.do(t, http.MethodPost, "/api/v1/recommendations", history)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without catalog, got %d %s", w.Code, w.Body)
	}

	if w := s.do(t, http.MethodPost, "/api/v1/month", catalogBody); w.Code != http.StatusOK {
		t.Fatalf("save: %d %s", w.Code, w.Body)
	}
	w = s.do(t, http.MethodPost, "/api/v1/recommendations", history)
	if w.Code != http.StatusOK {
		t.Fatalf("recommend: %d %s", w.Code, w.Body)
	}
	var rec domain.Recommendation
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.ID == "" || len(rec.Decisions) != 3 {
		t.Fatalf("unexpected recommendation: %+v", rec)
	}
	if !rec.Decisions[1].Chosen || rec.Decisions[1].Category != "Taxi" {
		t.Errorf("expected Taxi chosen for Tinkoff: %+v", rec.Decisions)
	}

	w = s.do(t, http.MethodGet, "/api/v1/recommendations?month=2024-12", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), rec.ID) {
		t.Errorf("latest: %d %s", w.Code, w.Body)
	}

	w = s.do(t, http.MethodPost, "/api/v1/confirmations", `{"month":"2024-12"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"Taxi"`) {
		t.Fatalf("confirm: %d %s", w.Code, w.Body)
	}

	december := `{"month":"2024-12","bank_name":"Tinkoff","transactions":[
		{"transactionId":"3","status":"Completed","creditDebitIndicator":"Debit","amount":{"amount":"200","currency":"RUB"},
		 "bookingDateTime":"2024-12-02T10:00:00Z","merchant":{"name":"Yandex Go","category":"Taxi"}}
	]}`
	w = s.do(t, http.MethodPost, "/api/v1/attributions", december)
	if w.Code != http.StatusOK {
		t.Fatalf("attribute: %d %s", w.Code, w.Body)
	}
	var verdicts map[string][]domain.TransactionVerdict
	if err := json.Unmarshal(w.Body.Bytes(), &verdicts); err != nil {
		t.Fatalf("decode verdicts: %v", err)
	}
	if v := verdicts["Taxi"]; len(v) != 1 || !v[0].IsOptimal || v[0].CashbackReceived.String() != "10" {
		t.Errorf("unexpected verdicts: %+v", verdicts)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	if w := s.do(t, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}
	w := s.do(t, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "advisor_http_requests_total") {
		t.Errorf("metrics: %d", w.Code)
	}
}
