package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/exchange/ordercalc/internal/market"
	"github.com/exchange/ordercalc/internal/metrics"
	"github.com/exchange/ordercalc/internal/session"
	"github.com/exchange/ordercalc/internal/ws"
	apperrors "github.com/exchange/ordercalc/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSource struct {
	mu  sync.Mutex
	err error
}

func (s *stubSource) Snapshot(_ context.Context, account, _ string) (market.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return market.Snapshot{}, s.err
	}
	return market.Snapshot{
		Account: market.Account{ID: account, Connected: account != ""},
		Balance: market.Balance{
			Base:         decimal.NewFromInt(1),
			Quote:        decimal.NewFromInt(1000),
			TotalMargin:  decimal.NewFromInt(1100),
			TokenBalance: decimal.NewFromInt(50),
		},
		FairPrice:   decimal.NewFromInt(100),
		MaxLeverage: decimal.NewFromInt(25),
		Book: market.Book{
			Bids: []market.Level{{Price: decimal.NewFromInt(99), Quantity: decimal.NewFromInt(5)}},
			Asks: []market.Level{{Price: decimal.NewFromInt(101), Quantity: decimal.NewFromInt(5)}},
		},
	}, nil
}

type testEnv struct {
	source  *stubSource
	manager *session.Manager
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	src := &stubSource{}
	m := metrics.New()
	mgr := session.NewManager(src, nil, m, nil, session.Config{})
	streamer := ws.NewStreamer(mgr, &ws.StreamConfig{PingInterval: time.Second}, nil)
	srv := NewServer(Config{Sessions: mgr, Stream: streamer, Metrics: m.Handler()})
	return &testEnv{source: src, manager: mgr, handler: srv.Handler()}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) SessionResponse {
	t.Helper()
	var resp SessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v body=%s", err, rec.Body.String())
	}
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.Error {
	t.Helper()
	var resp apperrors.Error
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v body=%s", err, rec.Body.String())
	}
	return resp
}

func (e *testEnv) create(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/sessions", CreateSessionRequest{Account: "0xabc", Pair: "ETH/USD"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	return decodeSession(t, rec).SessionID
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t)

	rec := env.do(t, http.MethodPost, "/v1/sessions/"+id+"/actions", map[string]interface{}{
		"type": "setExposure", "value": 2,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	view := decodeSession(t, rec).State
	if view.Exposure == nil || *view.Exposure != "2" {
		t.Fatalf("unexpected exposure %v", view.Exposure)
	}
	if view.NextPosition.Base != "3" || view.NextPosition.PositionText != "LONG" {
		t.Fatalf("unexpected next position %+v", view.NextPosition)
	}
	if view.Error != "NO_ERROR" || !view.CanSubmit {
		t.Fatalf("expected submittable state, got %s", view.Error)
	}

	rec = env.do(t, http.MethodGet, "/v1/sessions/"+id, nil)
	if rec.Code != http.StatusOK || decodeSession(t, rec).State.Market != "ETH" {
		t.Fatalf("unexpected get response %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/v1/sessions/"+id+"/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if view := decodeSession(t, rec).State; view.Exposure != nil {
		t.Fatalf("expected cleared exposure, got %v", *view.Exposure)
	}

	rec = env.do(t, http.MethodDelete, "/v1/sessions/"+id, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/v1/sessions/"+id, nil)
	if rec.Code != http.StatusNotFound || decodeError(t, rec).Code != apperrors.CodeSessionNotFound {
		t.Fatalf("expected SESSION_NOT_FOUND, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRequestErrors(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   apperrors.Code
	}{
		{"invalid pair", http.MethodPost, "/v1/sessions", CreateSessionRequest{Pair: "ETHUSD"}, http.StatusBadRequest, apperrors.CodeInvalidPair},
		{"missing pair", http.MethodPost, "/v1/sessions", map[string]string{}, http.StatusBadRequest, apperrors.CodeInvalidParam},
		{"internal action", http.MethodPost, "/v1/sessions/" + id + "/actions", map[string]interface{}{"type": "setError", "value": "NO_ERROR"}, http.StatusForbidden, apperrors.CodeActionInternal},
		{"unknown action", http.MethodPost, "/v1/sessions/" + id + "/actions", map[string]interface{}{"type": "setLock", "value": true}, http.StatusBadRequest, apperrors.CodeInvalidAction},
		{"invalid value", http.MethodPost, "/v1/sessions/" + id + "/actions", map[string]interface{}{"type": "setOrderType", "value": "STOP"}, http.StatusBadRequest, apperrors.CodeInvalidValue},
		{"empty market", http.MethodPost, "/v1/sessions/" + id + "/actions", map[string]interface{}{"type": "setMarket", "value": ""}, http.StatusBadRequest, apperrors.CodeInvalidValue},
		{"market with separator", http.MethodPost, "/v1/sessions/" + id + "/actions", map[string]interface{}{"type": "setMarket", "value": "A/B"}, http.StatusBadRequest, apperrors.CodeInvalidValue},
		{"unknown session", http.MethodPost, "/v1/sessions/missing/actions", map[string]interface{}{"type": "setExposure", "value": 1}, http.StatusNotFound, apperrors.CodeSessionNotFound},
		{"delete unknown", http.MethodDelete, "/v1/sessions/missing", nil, http.StatusNotFound, apperrors.CodeSessionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if got := decodeError(t, rec).Code; got != tt.code {
				t.Fatalf("expected %s, got %s", tt.code, got)
			}
		})
	}

	rec := env.do(t, http.MethodGet, "/v1/sessions/"+id, nil)
	if view := decodeSession(t, rec).State; view.Market != "ETH" || view.Collateral != "USD" {
		t.Fatalf("expected pair untouched by rejected actions, got %s/%s", view.Market, view.Collateral)
	}
}

func TestSnapshotUnavailable(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t)

	env.source.mu.Lock()
	env.source.err = errors.New("redis down")
	env.source.mu.Unlock()

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/"+id, nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	appErr := decodeError(t, rec)
	if appErr.Code != apperrors.CodeSnapshotUnavailable || !appErr.Retryable || appErr.RequestID != "req-1" {
		t.Fatalf("unexpected error %+v", appErr)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.create(t)

	rec := env.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ordercalc_active_sessions 1") {
		t.Fatalf("expected active sessions gauge, got %s", rec.Body.String())
	}
}

func TestStreamPushesDispatchedState(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	id := env.create(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/sessions/" + id + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	rec := env.do(t, http.MethodPost, "/v1/sessions/"+id+"/actions", map[string]interface{}{
		"type": "setPosition", "value": "SHORT",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg ws.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.SessionID != id || msg.Data.Position != "SHORT" || msg.Data.Price == nil || *msg.Data.Price != "99" {
		t.Fatalf("unexpected message %+v", msg)
	}

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/sessions/missing/stream", nil)
	if err == nil {
		t.Fatal("expected dial to fail for unknown session")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 response, got %+v", resp)
	}
}

func TestRequestIDGenerated(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/sessions/missing", nil)
	reqID := rec.Header().Get("X-Request-ID")
	if reqID == "" {
		t.Fatal("expected generated request id header")
	}
	if got := decodeError(t, rec).RequestID; got != reqID {
		t.Fatalf("expected request id %s in body, got %s", reqID, got)
	}
}
