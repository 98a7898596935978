package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/OCAP2/visualizer/internal/client"
	"github.com/OCAP2/visualizer/internal/monitor"
	"github.com/OCAP2/visualizer/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	reg        *registry.Registry
	status     client.Status
	err        error
	reconnects int
}

func (f *fakeController) Status() client.Status { return f.status }

func (f *fakeController) Do(_ context.Context, fn func(*registry.Registry)) error {
	if f.err != nil {
		return f.err
	}
	fn(f.reg)
	return nil
}

func (f *fakeController) Reconnect() error {
	if f.err != nil {
		return f.err
	}
	f.reconnects++
	return nil
}

type fakeReporter struct{ report monitor.Report }

func (f fakeReporter) Latest() monitor.Report { return f.report }

func newFakeController() *fakeController {
	reg := registry.New(registry.View{Latitude: 52.5131, Longitude: 13.3249, Zoom: 12}, slog.New(slog.DiscardHandler))
	reg.AddRsu("rsu_0", 52.51, 13.32, true)
	reg.UpdateViews([]string{"rsu_0"}, time.Now())
	reg.AddVehicle("veh_0", "Car", false)
	return &fakeController{
		reg:    reg,
		status: client.Status{State: client.Connected, Tries: 1, MaxRetries: 30, URL: "ws://localhost:46587"},
	}
}

func serve(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestUnits(t *testing.T) {
	h := newServer(newFakeController(), nil, slog.New(slog.DiscardHandler))

	rec := serve(t, h, http.MethodGet, "/api/units")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			ID         any            `json:"id"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.NotEmpty(t, fc.Features)
	assert.Equal(t, "rsu_0", fc.Features[0].ID)
}

func TestStatus(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := newServer(newFakeController(), fakeReporter{monitor.Report{Time: at}}, slog.New(slog.DiscardHandler))

	rec := serve(t, h, http.MethodGet, "/api/status")

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, float64(2), got["totalUnits"])
	assert.Equal(t, "connected", got["connection"].(map[string]any)["state"])
	assert.Equal(t, float64(1), got["units"].(map[string]any)["rsu"])
	assert.Equal(t, "2026-03-01T12:00:00Z", got["lastSample"])
}

func TestStatus_ClientStopped(t *testing.T) {
	ctl := newFakeController()
	ctl.err = client.ErrNotRunning
	ctl.status.State = client.Disconnected
	h := newServer(ctl, nil, slog.New(slog.DiscardHandler))

	rec := serve(t, h, http.MethodGet, "/api/status")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"closed"`)
}

func TestView(t *testing.T) {
	h := newServer(newFakeController(), nil, slog.New(slog.DiscardHandler))

	rec := serve(t, h, http.MethodGet, "/api/view")

	require.Equal(t, http.StatusOK, rec.Code)
	var v registry.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, 12.0, v.Zoom)
	assert.False(t, v.Centered)
}

func TestReconnect(t *testing.T) {
	ctl := newFakeController()
	h := newServer(ctl, nil, slog.New(slog.DiscardHandler))

	rec := serve(t, h, http.MethodPost, "/api/reconnect")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, ctl.reconnects)

	rec = serve(t, h, http.MethodGet, "/api/reconnect")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestUnavailable(t *testing.T) {
	ctl := newFakeController()
	ctl.err = client.ErrNotRunning
	h := newServer(ctl, nil, slog.New(slog.DiscardHandler))

	for _, path := range []string{"/api/units", "/api/view"} {
		rec := serve(t, h, http.MethodGet, path)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
	rec := serve(t, h, http.MethodPost, "/api/reconnect")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthcheck(t *testing.T) {
	h := newServer(newFakeController(), nil, slog.New(slog.DiscardHandler))

	rec := serve(t, h, http.MethodGet, "/healthcheck")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
