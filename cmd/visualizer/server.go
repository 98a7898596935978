package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/OCAP2/visualizer/internal/client"
	"github.com/OCAP2/visualizer/internal/monitor"
	"github.com/OCAP2/visualizer/internal/registry"
)

const requestTimeout = 5 * time.Second

// controller is the part of the client the API drives.
type controller interface {
	Status() client.Status
	Do(ctx context.Context, fn func(*registry.Registry)) error
	Reconnect() error
}

// reporter supplies the latest monitor sample.
type reporter interface {
	Latest() monitor.Report
}

type server struct {
	ctl    controller
	rep    reporter
	logger *slog.Logger
}

// newServer builds the HTTP API router.
func newServer(ctl controller, rep reporter, logger *slog.Logger) http.Handler {
	s := &server{ctl: ctl, rep: rep, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/units", s.units)
	mux.HandleFunc("GET /api/status", s.status)
	mux.HandleFunc("GET /api/view", s.view)
	mux.HandleFunc("POST /api/reconnect", s.reconnect)
	mux.HandleFunc("GET /healthcheck", s.healthcheck)
	return mux
}

type statusResponse struct {
	Connection client.Status  `json:"connection"`
	Units      map[string]int `json:"units"`
	TotalUnits int            `json:"totalUnits"`
	Monitor    *time.Time     `json:"lastSample,omitempty"`
}

// units returns the render layer as a GeoJSON FeatureCollection. It is
// encoded on the client's event loop so markers are not read mid-update.
func (s *server) units(w http.ResponseWriter, r *http.Request) {
	var body []byte
	var encErr error
	err := s.do(r, func(reg *registry.Registry) {
		body, encErr = json.Marshal(reg.FeatureCollection())
	})
	if err != nil {
		s.unavailable(w, err)
		return
	}
	if encErr != nil {
		s.logger.Error("Error encoding units", "error", encErr)
		http.Error(w, encErr.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(body)
}

func (s *server) status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Connection: s.ctl.Status(),
		Units:      make(map[string]int),
	}
	err := s.do(r, func(reg *registry.Registry) {
		for category, n := range reg.Counts() {
			resp.Units[category.String()] = n
		}
		resp.TotalUnits = reg.Len()
	})
	if err != nil && !errors.Is(err, client.ErrNotRunning) {
		s.unavailable(w, err)
		return
	}
	if s.rep != nil {
		if latest := s.rep.Latest(); !latest.Time.IsZero() {
			resp.Monitor = &latest.Time
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) view(w http.ResponseWriter, r *http.Request) {
	var v registry.View
	if err := s.do(r, func(reg *registry.Registry) { v = reg.View() }); err != nil {
		s.unavailable(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *server) reconnect(w http.ResponseWriter, _ *http.Request) {
	if err := s.ctl.Reconnect(); err != nil {
		s.unavailable(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reconnecting"})
}

func (s *server) healthcheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) do(r *http.Request, fn func(*registry.Registry)) error {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	return s.ctl.Do(ctx, fn)
}

func (s *server) unavailable(w http.ResponseWriter, err error) {
	s.logger.Debug("Request not served", "error", err)
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
