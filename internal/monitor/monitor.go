// Package monitor periodically samples the connection and the registry,
// keeps a status file up to date and forwards the sample to InfluxDB.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/OCAP2/visualizer/internal/client"
	"github.com/OCAP2/visualizer/internal/registry"
	"github.com/OCAP2/visualizer/internal/unit"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// StatusFileName is written in the data directory on every sample.
const StatusFileName = "status.json"

// Measurement is the InfluxDB measurement of a sample.
const Measurement = "visualizer_status"

// Source is the part of the client the monitor reads.
type Source interface {
	Status() client.Status
	Do(ctx context.Context, fn func(*registry.Registry)) error
}

// PointWriter receives one point per sample.
type PointWriter interface {
	WritePoint(point *influxdb2_write.Point) error
}

// QueueReporter is implemented by recorders with pending write queues.
type QueueReporter interface {
	QueueLengths() map[string]int
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Source   Source
	Points   PointWriter
	Queues   QueueReporter
	DataDir  string
	Interval time.Duration
	Logger   *slog.Logger
}

// Report is one sample.
type Report struct {
	Time       time.Time      `json:"time"`
	Connection client.Status  `json:"connection"`
	Units      map[string]int `json:"units"`
	TotalUnits int            `json:"totalUnits"`
	View       registry.View  `json:"view"`
	Queues     map[string]int `json:"queues,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps Dependencies

	mu       sync.RWMutex
	latest   Report
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps}
}

// Sample collects a report. Registry figures are read on the client's
// event loop; when the client is not running they are left empty.
func (s *Service) Sample(ctx context.Context) Report {
	r := Report{
		Time:       time.Now().UTC(),
		Connection: s.deps.Source.Status(),
		Units:      make(map[string]int),
	}

	err := s.deps.Source.Do(ctx, func(reg *registry.Registry) {
		for category, n := range reg.Counts() {
			r.Units[category.String()] = n
		}
		r.TotalUnits = reg.Len()
		r.View = reg.View()
	})
	if err != nil {
		s.deps.Logger.Debug("Registry not sampled", "error", err)
	}

	if s.deps.Queues != nil {
		r.Queues = s.deps.Queues.QueueLengths()
	}
	return r
}

// Latest returns the most recent report.
func (s *Service) Latest() Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Tick samples once and publishes the report to the status file and
// InfluxDB.
func (s *Service) Tick(ctx context.Context) Report {
	r := s.Sample(ctx)

	s.mu.Lock()
	s.latest = r
	s.mu.Unlock()

	if s.deps.DataDir != "" {
		if err := WriteStatusFile(filepath.Join(s.deps.DataDir, StatusFileName), r); err != nil {
			s.deps.Logger.Error("Error writing status file", "error", err)
		}
	}
	if s.deps.Points != nil {
		if err := s.deps.Points.WritePoint(Point(r)); err != nil {
			s.deps.Logger.Error("Error writing status point", "error", err)
		}
	}
	return r
}

// WriteStatusFile replaces path with the JSON rendering of r.
func WriteStatusFile(path string, r Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding status: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("error writing status file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Point converts a report into an InfluxDB point.
func Point(r Report) *influxdb2_write.Point {
	fields := map[string]any{
		"units":    r.TotalUnits,
		"messages": int64(r.Connection.Messages),
		"tries":    r.Connection.Tries,
	}
	for _, c := range []unit.Category{
		unit.CategoryVehicle,
		unit.CategoryAgent,
		unit.CategoryRsu,
		unit.CategoryTrafficLight,
		unit.CategoryChargingStation,
	} {
		fields[c.String()] = r.Units[c.String()]
	}
	for name, n := range r.Queues {
		fields["queue_"+name] = n
	}

	return influxdb2.NewPoint(Measurement,
		map[string]string{
			"state": r.Connection.State.String(),
			"url":   r.Connection.URL,
		},
		fields,
		r.Time,
	)
}

// Start starts the status monitor goroutine
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	if s.deps.Interval <= 0 {
		return fmt.Errorf("monitor interval must be positive, got %s", s.deps.Interval)
	}
	if s.deps.DataDir != "" {
		if err := os.MkdirAll(s.deps.DataDir, 0755); err != nil {
			return fmt.Errorf("error creating data directory: %w", err)
		}
	}

	s.running = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(ctx, s.stopChan, s.done)
	return nil
}

func (s *Service) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	s.deps.Logger.Debug("Starting status monitor", "interval", s.deps.Interval)

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Stop stops the status monitor and waits for it to exit
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	<-done
}
