package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portwarden/config"
	"portwarden/scanner"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func fakeEngine() *scanner.Engine {
	prober := scanner.ProberFunc(func(ctx context.Context, host string, port int, timeout time.Duration) scanner.PortOutcome {
		state := scanner.StateClosed
		if port == 53 || port == 443 {
			state = scanner.StateOpen
		}
		return scanner.PortOutcome{Port: port, State: state, Service: scanner.Label(port), ObservedAt: time.Now()}
	})
	return scanner.NewEngine(scanner.NewValidator(scanner.DefaultLimits()), scanner.NewScheduler(prober), nil)
}

func newTestRouter(t *testing.T, cfg config.Config, runner ScanRunner, slots int) *gin.Engine {
	t.Helper()
	server := NewServer(runner, NewScanSlots(slots), cfg.Strategy, zap.NewNop())
	return NewRouter(cfg, server, NewMemoryStore(), zap.NewNop())
}

func postScan(router http.Handler, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for key, values := range header {
		req.Header[key] = values
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %v (%q)", err, rec.Body.String())
	}
	return body
}

func TestScanHandler_Success(t *testing.T) {
	router := newTestRouter(t, config.Default(), fakeEngine(), 2)

	rec := postScan(router, `{"host":"8.8.8.8","ports":[53,81,53],"timeoutMillis":2000}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var report scanner.ScanReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Host != "8.8.8.8" || report.TotalScanned != 3 || report.OpenCount != 2 || report.ClosedCount != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	wantPorts := []int{53, 81, 53}
	for i, outcome := range report.Outcomes {
		if outcome.Port != wantPorts[i] {
			t.Fatalf("outcome %d is port %d, want %d", i, outcome.Port, wantPorts[i])
		}
	}
	if report.Outcomes[1].Service != scanner.Unknown {
		t.Fatalf("port 81 service = %q, want %q", report.Outcomes[1].Service, scanner.Unknown)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("response lacks %s", requestIDHeader)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("security headers missing")
	}
}

func TestScanHandler_ValidationStatus(t *testing.T) {
	router := newTestRouter(t, config.Default(), fakeEngine(), 2)

	cases := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{"localhost", `{"host":"localhost","ports":[22]}`, http.StatusForbidden, "ForbiddenTarget"},
		{"loopback", `{"host":"127.0.0.1","ports":[22]}`, http.StatusForbidden, "ForbiddenTarget"},
		{"bad host", `{"host":"999.999.1.1","ports":[80]}`, http.StatusBadRequest, "InvalidHost"},
		{"no ports", `{"host":"8.8.8.8","ports":[]}`, http.StatusBadRequest, "MissingPorts"},
		{"bad port", `{"host":"8.8.8.8","ports":[70000]}`, http.StatusBadRequest, "InvalidPort"},
		{"malformed", `{"host":`, http.StatusBadRequest, ""},
		{"wrong type", `{"host":"8.8.8.8","ports":"22"}`, http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postScan(router, tc.body, nil)
			if rec.Code != tc.status {
				t.Fatalf("status = %d want %d, body %s", rec.Code, tc.status, rec.Body.String())
			}
			body := decodeError(t, rec)
			if body.Kind != tc.kind || body.Error == "" {
				t.Fatalf("unexpected error body %+v", body)
			}
		})
	}
}

func TestScanHandler_OversizedBody(t *testing.T) {
	var called bool
	runner := runnerFunc(func(ctx context.Context, req scanner.Request) (scanner.ScanReport, error) {
		called = true
		return scanner.ScanReport{}, nil
	})
	router := newTestRouter(t, config.Default(), runner, 2)
	body := `{"host":"8.8.8.8","ports":[` + strings.Repeat("22,", 20000) + `22]}`

	cases := []struct {
		name          string
		contentLength int64
	}{
		{"declared length", int64(len(body))},
		{"unknown length", -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.ContentLength = tc.contentLength
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusRequestEntityTooLarge {
				t.Fatalf("status = %d want 413, body %s", rec.Code, rec.Body.String())
			}
			if decodeError(t, rec).Error == "" {
				t.Fatalf("empty error body")
			}
		})
	}
	if called {
		t.Fatalf("oversized request reached the scanner")
	}
}

type runnerFunc func(ctx context.Context, req scanner.Request) (scanner.ScanReport, error)

func (f runnerFunc) Run(ctx context.Context, req scanner.Request) (scanner.ScanReport, error) {
	return f(ctx, req)
}

func TestScanHandler_InternalError(t *testing.T) {
	runner := runnerFunc(func(context.Context, scanner.Request) (scanner.ScanReport, error) {
		return scanner.ScanReport{}, &scanner.ScanInternalError{Err: errors.New("prober panicked")}
	})
	router := newTestRouter(t, config.Default(), runner, 1)

	rec := postScan(router, `{"host":"8.8.8.8","ports":[53]}`, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if body := decodeError(t, rec); body.Kind != "ScanInternalError" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestScanHandler_BusyWhenSlotsTaken(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	runner := runnerFunc(func(ctx context.Context, req scanner.Request) (scanner.ScanReport, error) {
		close(entered)
		<-release
		return scanner.ScanReport{Host: req.Host}, nil
	})
	router := newTestRouter(t, config.Default(), runner, 1)

	first := make(chan int)
	go func() {
		first <- postScan(router, `{"host":"8.8.8.8","ports":[53]}`, nil).Code
	}()
	<-entered

	rec := postScan(router, `{"host":"8.8.8.8","ports":[53]}`, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	close(release)
	if code := <-first; code != http.StatusOK {
		t.Fatalf("first scan status = %d, want 200", code)
	}
}

func TestAuth(t *testing.T) {
	cfg := config.Default()
	cfg.APIKey = "s3cret"
	router := newTestRouter(t, cfg, fakeEngine(), 2)
	body := `{"host":"8.8.8.8","ports":[53]}`

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"scheme", "Basic s3cret", http.StatusUnauthorized},
		{"wrong", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer s3cret", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			header := http.Header{}
			if tc.header != "" {
				header.Set("Authorization", tc.header)
			}
			if rec := postScan(router, body, header); rec.Code != tc.status {
				t.Fatalf("status = %d want %d", rec.Code, tc.status)
			}
		})
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health behind auth: status %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimit = 2
	router := newTestRouter(t, cfg, fakeEngine(), 2)
	body := `{"host":"8.8.8.8","ports":[53]}`

	for i := 0; i < 2; i++ {
		if rec := postScan(router, body, nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i+1, rec.Code)
		}
	}
	rec := postScan(router, body, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("Retry-After = %q, want 60", got)
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, config.Default(), fakeEngine(), 3)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var health HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "ok" || health.Strategy != scanner.StrategyConnect || health.MaxScans != 3 || health.ActiveScans != 0 {
		t.Fatalf("unexpected health %+v", health)
	}
}

func TestRequestID_ReusesValidHeader(t *testing.T) {
	router := newTestRouter(t, config.Default(), fakeEngine(), 1)
	const id = "a3f5c62e-1234-4f72-a84a-1c2d3e4f5678"

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, id)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != id {
		t.Fatalf("request id = %q, want %q", got, id)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "not-an-id")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got == "not-an-id" || got == "" {
		t.Fatalf("request id = %q, want a fresh one", got)
	}
}

func TestScanSlots(t *testing.T) {
	slots := NewScanSlots(0)
	if slots.Size() != 1 {
		t.Fatalf("size = %d, want 1", slots.Size())
	}
	release, ok := slots.TryAcquire()
	if !ok || slots.Active() != 1 {
		t.Fatalf("first acquire failed")
	}
	if _, ok := slots.TryAcquire(); ok {
		t.Fatalf("second acquire succeeded on a single slot")
	}
	release()
	release()
	if slots.Active() != 0 {
		t.Fatalf("active = %d after release", slots.Active())
	}
	if _, ok := slots.TryAcquire(); !ok {
		t.Fatalf("slot not returned")
	}
}
