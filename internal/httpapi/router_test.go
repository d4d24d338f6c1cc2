package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/starford/mnemo/internal/search"
	"github.com/starford/mnemo/internal/sse"
	"github.com/starford/mnemo/internal/testutil"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	v := testutil.TestVault(t)
	db := testutil.TestDB(t)

	engine := search.New(db, v)
	broker := sse.NewBroker()
	t.Cleanup(broker.Close)

	return NewRouter(engine, broker)
}

func TestHealthzReportsOK(t *testing.T) {
	router := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %v, want status=ok", body)
	}
}

func TestStatsReturnsIndexAndGraphStats(t *testing.T) {
	router := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body["index"]; !ok {
		t.Fatalf("body missing index stats: %v", body)
	}
	if _, ok := body["graph"]; !ok {
		t.Fatalf("body missing graph stats: %v", body)
	}
}
