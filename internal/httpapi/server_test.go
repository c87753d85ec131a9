package httpapi_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/secureentry/secureentry/internal/clock"
	"github.com/secureentry/secureentry/internal/credentials"
	"github.com/secureentry/secureentry/internal/httpapi"
	"github.com/secureentry/secureentry/internal/logging"
	"github.com/secureentry/secureentry/internal/metrics"
	"github.com/secureentry/secureentry/internal/secureentry/service"
	"github.com/secureentry/secureentry/internal/secureentry/store/memory"
	"github.com/secureentry/secureentry/internal/secureentry/types"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	ts      *httptest.Server
	clock   *clock.Fake
	entries *memory.EntryStore
}

// newTestServer wires the full dependency graph on in-memory stores and
// returns an httptest.Server reachable with a plain http.Client.
func newTestServer(t *testing.T, policy service.VerificationPolicy, knownKiosks ...string) testEnv {
	t.Helper()

	clk := clock.NewFake(t0)
	workers := memory.NewWorkerStore()
	entries := memory.NewEntryStore()
	kiosks := memory.NewKioskStore(knownKiosks)
	log := logging.Discard()

	directory := service.NewDirectoryService(workers, credentials.NewMemoryStore(), clk, log, nil)
	verification := service.NewVerificationService(service.VerificationDeps{
		Registry: service.NewKioskRegistry(kiosks, clk),
		Matcher:  service.NewDigestMatcher(workers),
		Workers:  workers,
		Entries:  entries,
		Policy:   policy,
		Clock:    clk,
		Logger:   log,
	})

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:         log,
		Metrics:        metrics.New(),
		Addr:           ":0",
		MaxUploadBytes: 1 << 20,
		Directory:      directory,
		Verification:   verification,
		Reports:        service.NewReportService(entries, workers),
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return testEnv{ts: ts, clock: clk, entries: entries}
}

func pngBytes(tag string) []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), tag...)
}

// multipartBody builds a form with the given fields and an optional file.
func multipartBody(t *testing.T, fields map[string]string, file []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if file != nil {
		fw, err := mw.CreateFormFile("file", "face.png")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		fw.Write(file)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, method, url string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func createWorker(t *testing.T, env testEnv, name string, expires string, file []byte) types.Worker {
	t.Helper()
	body, ct := multipartBody(t, map[string]string{"name": name, "expiration_date": expires}, file)
	resp := do(t, http.MethodPost, env.ts.URL+"/api/workers", body, ct)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	return decode[types.Worker](t, resp)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ── Health / metrics ─────────────────────────────────────────────────────────

func TestHealthAndMetrics(t *testing.T) {
	env := newTestServer(t, service.VerificationPolicy{})

	resp := do(t, http.MethodGet, env.ts.URL+"/health", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, env.ts.URL+"/metrics", nil, "")
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), `secureentry_http_requests_total{method="GET",route="/health",status="200"} 1`) {
		t.Errorf("expected /health request counted, got:\n%s", b)
	}
}

// ── Workers ──────────────────────────────────────────────────────────────────

func TestWorkers_CreateListUpdateRevoke(t *testing.T) {
	env := newTestServer(t, service.VerificationPolicy{})

	w := createWorker(t, env, "Ana", "2026-03-02", pngBytes("ana"))
	if !w.Active || w.Name != "Ana" || w.ExpirationDate != "2026-03-02T00:00:00Z" {
		t.Fatalf("unexpected created worker: %+v", w)
	}

	body, ct := multipartBody(t, map[string]string{"name": "X"}, nil)
	resp := do(t, http.MethodPut, env.ts.URL+"/api/workers/1", body, ct)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, env.ts.URL+"/api/workers", nil, "")
	list := decode[[]types.Worker](t, resp)
	if len(list) != 1 || list[0].Name != "X" || list[0].ExpirationDate != w.ExpirationDate {
		t.Fatalf("unexpected list after update: %+v", list)
	}

	resp = do(t, http.MethodPut, env.ts.URL+"/api/workers/invalidate/1", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("revoke: expected 200, got %d", resp.StatusCode)
	}
	revoked := decode[types.Worker](t, resp)
	if revoked.Active {
		t.Error("expected revoked worker to be inactive")
	}
}

func TestWorkers_CreateWithoutFile(t *testing.T) {
	env := newTestServer(t, service.VerificationPolicy{})

	body, ct := multipartBody(t, map[string]string{"name": "Ana", "expiration_date": "2026-04-01"}, nil)
	resp := do(t, http.MethodPost, env.ts.URL+"/api/workers", body, ct)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	eb := decode[errorBody](t, resp)
	if eb.Error != "validation_error" || !strings.Contains(eb.Message, "file") {
		t.Errorf("unexpected error body: %+v", eb)
	}

	resp = do(t, http.MethodGet, env.ts.URL+"/api/workers", nil, "")
	if list := decode[[]types.Worker](t, resp); len(list) != 0 {
		t.Errorf("expected no workers, got %d", len(list))
	}
}

func TestWorkers_BadExpiration(t *testing.T) {
	env := newTestServer(t, service.VerificationPolicy{})

	body, ct := multipartBody(t, map[string]string{"name": "Ana", "expiration_date": "next week"}, pngBytes("a"))
	resp := do(t, http.MethodPost, env.ts.URL+"/api/workers", body, ct)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestWorkers_UnknownID(t *testing.T) {
	env := newTestServer(t, service.VerificationPolicy{})

	resp := do(t, http.MethodPut, env.ts.URL+"/api/workers/invalidate/42", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("revoke: expected 404, got %d", resp.StatusCode)
	}
	if eb := decode[errorBody](t, resp); eb.Error != "not_found" {
		t.Errorf("expected not_found, got %+v", eb)
	}

	body, ct := multipartBody(t, map[string]string{"name": "X"}, nil)
	resp = do(t, http.MethodPut, env.ts.URL+"/api/workers/42", body, ct)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("update: expected 404, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodPut, env.ts.URL+"/api/workers/abc", nil, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad id: expected 400, got %d", resp.StatusCode)
	}
}

// ── Scan ─────────────────────────────────────────────────────────────────────

func scanJSON(t *testing.T, env testEnv, img []byte, kiosk string) *http.Response {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{
		"image":     "data:image/png;base64," + base64.StdEncoding.EncodeToString(img),
		"timestamp": t0.Format(time.RFC3339),
	})
	req, _ := http.NewRequest(http.MethodPost, env.ts.URL+"/api/skan", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if kiosk != "" {
		req.Header.Set("X-Kiosk-ID", kiosk)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestScan_GrantedThenRevokedDenied(t *testing.T) {
	env := newTestServer(t, service.VerificationPolicy{})
	createWorker(t, env, "Ana", "2026-12-31", pngBytes("ana"))

	resp := scanJSON(t, env, pngBytes("ana"), "kiosk-001")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := decode[types.VerifyResponse](t, resp); !got.Granted {
		t.Fatalf("expected granted, got %+v", got)
	}

	do(t, http.MethodPut, env.ts.URL+"/api/workers/invalidate/1", nil, "")

	got := decode[types.VerifyResponse](t, scanJSON(t, env, pngBytes("ana"), "kiosk-001"))
	if got.Granted || got.Code != types.CodeWorkerExpired {
		t.Fatalf("expected expired denial, got %+v", got)
	}

	entries := env.entries.Entries()
	if len(entries) != 2 || entries[0].KioskID != "kiosk-001" {
		t.Errorf("expected two entries from kiosk-001, got %+v", entries)
	}
}

func TestScan_MultipartAlias(t *testing.T) {
	env := newTestServer(t, service.VerificationPolicy{})
	createWorker(t, env, "Ana", "2026-12-31", pngBytes("ana"))

	body, ct := multipartBody(t, map[string]string{"timestamp": t0.Format(time.RFC3339)}, pngBytes("ana"))
	resp := do(t, http.MethodPost, env.ts.URL+"/api/scan", body, ct)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := decode[types.VerifyResponse](t, resp); !got.Granted {
		t.Fatalf("expected granted, got %+v", got)
	}
}

func TestScan_UnknownKioskEnforced(t *testing.T) {
	env := newTestServer(t, service.VerificationPolicy{RequireKnownKiosks: true}, "kiosk-001")
	createWorker(t, env, "Ana", "2026-12-31", pngBytes("ana"))

	got := decode[types.VerifyResponse](t, scanJSON(t, env, pngBytes("ana"), "kiosk-x"))
	if got.Granted || got.Code != types.CodeUnknownKiosk {
		t.Fatalf("expected unknown kiosk denial, got %+v", got)
	}
}

func TestScan_BadJSON(t *testing.T) {
	env := newTestServer(t, service.VerificationPolicy{})

	resp := do(t, http.MethodPost, env.ts.URL+"/api/skan", strings.NewReader(`{"image":`), "application/json")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, env.ts.URL+"/api/skan", strings.NewReader(`{"image":"x","extra":1}`), "application/json")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field: expected 400, got %d", resp.StatusCode)
	}
}

// ── Report ───────────────────────────────────────────────────────────────────

func TestReport_Filters(t *testing.T) {
	env := newTestServer(t, service.VerificationPolicy{})
	createWorker(t, env, "Ana", "2026-12-31", pngBytes("ana"))

	scanJSON(t, env, pngBytes("ana"), "kiosk-001")
	scanJSON(t, env, pngBytes("stranger"), "kiosk-001")

	resp := do(t, http.MethodGet, env.ts.URL+"/api/report?valid=true&date_to=2026-03-01", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	report := decode[types.Report](t, resp)
	if report.Count != 1 || report.Data[0].Code != 0 || report.Data[0].WorkerName != "Ana" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if !report.Filters.Valid || report.Filters.DateTo != "2026-03-01" {
		t.Errorf("filters not echoed: %+v", report.Filters)
	}

	report = decode[types.Report](t, do(t, http.MethodGet, env.ts.URL+"/api/report?invalid", nil, ""))
	if report.Count != 1 || report.Data[0].Code != types.CodeNoMatch {
		t.Fatalf("unexpected invalid-only report: %+v", report)
	}

	resp = do(t, http.MethodGet, env.ts.URL+"/api/report?worker_id=abc", nil, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestServer(t, service.VerificationPolicy{})

	resp := do(t, http.MethodOptions, env.ts.URL+"/api/skan", nil, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestRequestID(t *testing.T) {
	env := newTestServer(t, service.VerificationPolicy{})

	resp := do(t, http.MethodGet, env.ts.URL+"/health", nil, "")
	if id := resp.Header.Get("X-Request-ID"); len(id) != 36 {
		t.Fatalf("expected a generated uuid, got %q", id)
	}

	req, _ := http.NewRequest(http.MethodGet, env.ts.URL+"/health", nil)
	req.Header.Set("X-Request-ID", "kiosk-001-42")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "kiosk-001-42" {
		t.Fatalf("expected caller's request id echoed, got %q", got)
	}
}
