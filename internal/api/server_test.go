package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sadopc/chorechart/internal/mirror"
	"github.com/sadopc/chorechart/internal/store"
)

func setupServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	s, err := store.NewMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewServer(s, nil), s
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv, _ := setupServer(t)
	w := do(t, srv.Handler(), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestGetDataEmpty(t *testing.T) {
	srv, _ := setupServer(t)
	w := do(t, srv.Handler(), http.MethodGet, "/api/data", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != "{}" {
		t.Errorf("expected empty object, got %s", w.Body.String())
	}
}

func TestPostDataMerges(t *testing.T) {
	srv, s := setupServer(t)
	s.Set("a", "old")
	s.Set("b", "keep")
	h := srv.Handler()

	w := do(t, h, http.MethodPost, "/api/data", `{"a":"new","c":"[1,2]"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp mergeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || len(resp.KeysUpdated) != 2 || resp.KeysUpdated[0] != "a" || resp.KeysUpdated[1] != "c" {
		t.Errorf("unexpected response %+v", resp)
	}

	w = do(t, h, http.MethodGet, "/api/data", "")
	var data map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string]string{"a": "new", "b": "keep", "c": "[1,2]"}
	for k, v := range want {
		if data[k] != v {
			t.Errorf("data[%q] = %q, want %q", k, data[k], v)
		}
	}
}

func TestPostDataNonStringValue(t *testing.T) {
	srv, s := setupServer(t)
	w := do(t, srv.Handler(), http.MethodPost, "/api/data", `{"obj":{"x":1}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	got, _, _ := s.Get("obj")
	if got != `{"x":1}` {
		t.Errorf("expected raw JSON text, got %q", got)
	}
}

func TestPostDataInvalidJSON(t *testing.T) {
	srv, _ := setupServer(t)
	w := do(t, srv.Handler(), http.MethodPost, "/api/data", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"error"`) {
		t.Errorf("expected error body, got %s", w.Body.String())
	}
}

func TestPostDataStorageFailure(t *testing.T) {
	srv, s := setupServer(t)
	s.Close()

	w := do(t, srv.Handler(), http.MethodPost, "/api/data", `{"a":"b"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Failed to save data") {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := setupServer(t)
	w := do(t, srv.Handler(), http.MethodOptions, "/api/data", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestMetricsDisabledByDefault(t *testing.T) {
	srv, _ := setupServer(t)
	w := do(t, srv.Handler(), http.MethodGet, "/metrics", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	srv.EnableMetrics()
	w = do(t, srv.Handler(), http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 once enabled, got %d", w.Code)
	}
}

func TestMetricsReportMergeRequests(t *testing.T) {
	srv, _ := setupServer(t)
	srv.EnableMetrics()
	h := srv.Handler()

	if w := do(t, h, http.MethodPost, "/api/data", `{"a":"1","b":"2"}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/api/data", `{broken`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	do(t, h, http.MethodGet, "/api/data", "")

	w := do(t, h, http.MethodGet, "/metrics", "")
	body := w.Body.String()
	for _, want := range []string{
		`chorechart_data_requests_total{method="POST",result="ok"}`,
		`chorechart_data_requests_total{method="POST",result="invalid"}`,
		`chorechart_data_requests_total{method="GET",result="ok"}`,
		`chorechart_merged_keys_total`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %s", want)
		}
	}
}

// Two devices converge through the server.
func TestRoundTripWithMirror(t *testing.T) {
	srv, _ := setupServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	deviceA, _ := store.NewMemory()
	defer deviceA.Close()
	deviceB, _ := store.NewMemory()
	defer deviceB.Close()

	deviceA.Set(store.KeyTasks, `[{"id":"1","name":"Make the Bed","points":10}]`)

	syncA := mirror.New(deviceA, mirror.NewHTTPRemote(ts.URL), nil, nil)
	syncB := mirror.New(deviceB, mirror.NewHTTPRemote(ts.URL), nil, nil)

	if rep := syncA.Poll(context.Background()); rep.Err != nil || len(rep.Pushed) != 1 {
		t.Fatalf("device A should push its tasks: %+v", rep)
	}
	if rep := syncB.Poll(context.Background()); rep.Err != nil || len(rep.Pulled) != 1 {
		t.Fatalf("device B should pull the tasks: %+v", rep)
	}
	got, _, _ := deviceB.Get(store.KeyTasks)
	if got != `[{"id":"1","name":"Make the Bed","points":10}]` {
		t.Fatalf("device B has %q", got)
	}
}
