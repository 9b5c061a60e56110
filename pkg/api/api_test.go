package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"mia-go/pkg/executor"
	"mia-go/pkg/router"
	"mia-go/pkg/stats"
)

func newTestServer(t *testing.T) (*Server, *stats.Counters) {
	exec := executor.New()
	counters := &stats.Counters{}
	rt, err := router.New(router.Params{
		TPNListen:  "127.0.0.1:0",
		VMWListen:  "127.0.0.1:0",
		KBAListen:  "127.0.0.1:0",
		MDListen:   "127.0.0.1:0",
		SokfListen: "127.0.0.1:0",
		Exec:       exec,
		Log:        zerolog.Nop(),
		Counters:   counters,
	})
	if err != nil {
		t.Fatalf("router.New failed: %v", err)
	}
	t.Cleanup(rt.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go exec.Run(ctx)

	return NewServer("127.0.0.1:0", rt, counters), counters
}

func doRequest(t *testing.T, s *Server, method, path string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Api.ServeHTTP(rec, req)
	return rec
}

func TestGetStats(t *testing.T) {
	s, counters := newTestServer(t)
	counters.PacketsToTPN.Add(3)
	counters.DroppedMalformed.Add(1)

	rec := doRequest(t, s, http.MethodGet, "/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /stats returned %d", rec.Code)
	}
	var snap stats.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Stats response is not JSON: %v", err)
	}
	if snap.PacketsToTPN != 3 || snap.DroppedMalformed != 1 {
		t.Errorf("Snapshot = %+v", snap)
	}
}

func TestGetRoutes(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/routes", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /routes returned %d", rec.Code)
	}
	var view router.RoutesView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("Routes response is not JSON: %v", err)
	}
	if view.Frame != 0 || len(view.Overrides) != 0 {
		t.Errorf("Fresh routes view = %+v", view)
	}
}

func TestPostConfig(t *testing.T) {
	s, _ := newTestServer(t)

	body := `{"itm_delay": 6, "route_delay": [{"sv_node": 1, "sim_node": 2, "delay": 9}]}`
	rec := doRequest(t, s, http.MethodPost, "/config", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("POST /config returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/routes", "")
	var view router.RoutesView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("Routes response is not JSON: %v", err)
	}
	if view.DefaultDelay != 6 {
		t.Errorf("Default delay = %d, want 6", view.DefaultDelay)
	}
	if len(view.Overrides) != 1 || view.Overrides[0].Frames != 9 {
		t.Errorf("Overrides = %+v", view.Overrides)
	}
}

func TestPostConfigMalformed(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/config", `{"itm_delay": "nope"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Malformed config returned %d", rec.Code)
	}
}

func TestGetTopologyDOT(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/topology.dot", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /topology.dot returned %d", rec.Code)
	}
	dot := rec.Body.String()
	for _, want := range []string{"digraph mia", "listen_tpn", "listen_sokf", "dest_md"} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT output missing %q", want)
		}
	}
}
