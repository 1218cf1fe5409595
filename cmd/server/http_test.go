package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"buildgrid.ai/internal/protocol"
	"buildgrid.ai/internal/sim/catalogs"
	"buildgrid.ai/internal/sim/tuning"
	"buildgrid.ai/internal/sim/world"
)

func testWorld(t *testing.T, run bool) *world.World {
	t.Helper()
	cat, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	tu, err := tuning.Load("../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("tuning: %v", err)
	}
	tu.TickRateHz = 100
	w, err := world.New(world.ConfigFromTuning("http_test", tu), cat, nil)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	if run {
		ctx, cancel := context.WithCancel(context.Background())
		go func() { _ = w.Run(ctx) }()
		t.Cleanup(cancel)
	}
	return w
}

func TestStatusAndMetrics(t *testing.T) {
	mux := newMux(testWorld(t, false), nil, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	var st protocol.StatusMsg
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.WorldID != "http_test" || st.Entities != 1 || st.Kinds["SACRED_TREE"] != 1 {
		t.Fatalf("status=%+v", st)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`buildgrid_world_entities{world="http_test"} 1`,
		`buildgrid_world_resources{world="http_test",resource="wood"} 200`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestDestroyHandler(t *testing.T) {
	h := destroyHandler(testWorld(t, true))

	cases := []struct {
		name   string
		method string
		remote string
		query  string
		want   int
	}{
		{"get", http.MethodGet, "127.0.0.1:1", "index=0", http.StatusMethodNotAllowed},
		{"remote", http.MethodPost, "192.0.2.1:1", "index=0", http.StatusForbidden},
		{"bad index", http.MethodPost, "127.0.0.1:1", "index=x", http.StatusBadRequest},
		{"base", http.MethodPost, "127.0.0.1:1", "index=0", http.StatusOK},
		{"already gone", http.MethodPost, "127.0.0.1:1", "index=0", http.StatusNotFound},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, "/admin/v1/destroy?"+tc.query, nil)
		req.RemoteAddr = tc.remote
		rec := httptest.NewRecorder()
		h(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: code=%d want %d body=%s", tc.name, rec.Code, tc.want, rec.Body.String())
		}
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	for addr, want := range map[string]bool{
		"127.0.0.1:80": true,
		"[::1]:80":     true,
		"10.0.0.1:80":  false,
		"garbage":      false,
	} {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("%s: got %v want %v", addr, got, want)
		}
	}
}
