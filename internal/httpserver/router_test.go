package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"reportnotifier/internal/service"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeBroker struct{ connected bool }

func (b fakeBroker) IsConnected() bool { return b.connected }

type fakeStatus struct{ st service.Status }

func (f fakeStatus) Status() service.Status { return f.st }

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *Router, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHealthz(t *testing.T) {
	r := NewRouter(zap.NewNop(), fakePinger{}, nil, fakeStatus{})

	if w := serve(r, http.MethodGet, "/healthz"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := serve(r, http.MethodHead, "/healthz"); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for HEAD, got %d", w.Code)
	}
}

func TestReadyz(t *testing.T) {
	ready := NewRouter(zap.NewNop(), fakePinger{}, nil, fakeStatus{})
	if w := serve(ready, http.MethodGet, "/readyz"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	down := NewRouter(zap.NewNop(), fakePinger{err: errors.New("connection refused")}, nil, fakeStatus{})
	w := serve(down, http.MethodGet, "/readyz")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "db_not_ready") {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestReadyz_Broker(t *testing.T) {
	up := NewRouter(zap.NewNop(), fakePinger{}, fakeBroker{connected: true}, fakeStatus{})
	if w := serve(up, http.MethodGet, "/readyz"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	down := NewRouter(zap.NewNop(), fakePinger{}, fakeBroker{}, fakeStatus{})
	w := serve(down, http.MethodGet, "/readyz")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "mq_not_ready") {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestStatus(t *testing.T) {
	st := service.Status{Cycles: 3, LastError: "store unavailable"}
	st.LastResult.Notifications = 2
	r := NewRouter(zap.NewNop(), fakePinger{}, nil, fakeStatus{st: st})

	w := serve(r, http.MethodGet, "/status")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got service.Status
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Cycles != 3 || got.LastError != "store unavailable" || got.LastResult.Notifications != 2 {
		t.Fatalf("unexpected status %+v", got)
	}
}

func TestMetrics(t *testing.T) {
	r := NewRouter(zap.NewNop(), fakePinger{}, nil, fakeStatus{})

	w := serve(r, http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Fatal("expected default collectors in /metrics output")
	}
}
