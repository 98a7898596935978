// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SessionExport is the root JSON structure
type SessionExport struct {
	SessionID string       `json:"sessionId"`
	URL       string       `json:"url"`
	StartTime time.Time    `json:"startTime"`
	EndTime   time.Time    `json:"endTime"`
	Metadata  any          `json:"metadata,omitempty"`
	Units     []UnitExport `json:"units"`
	V2x       [][]any      `json:"v2x"` // [unixMillis, unitName, direction, messageId]
}

// UnitExport represents one unit registration
type UnitExport struct {
	Name         string     `json:"name"`
	Category     string     `json:"category"`
	Class        string     `json:"class,omitempty"`
	Equipped     bool       `json:"equipped"`
	Origin       []float64  `json:"origin,omitempty"` // [latitude, longitude]
	RegisteredAt time.Time  `json:"registeredAt"`
	RemovedAt    *time.Time `json:"removedAt,omitempty"`
	Positions    [][]any    `json:"positions"` // [unixMillis, latitude, longitude, state]
}

// exportPath names the export file of the current session.
func (b *Backend) exportPath() string {
	timestamp := b.session.StartTime.UTC().Format("20060102_150405")
	filename := fmt.Sprintf("session_%s_%s.json", timestamp, shortID(b.session.ID))
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	return filepath.Join(b.cfg.OutputDir, filename)
}

// writeExport writes a session export as (gzipped) JSON.
func writeExport(path string, export SessionExport, compress bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if compress {
		return writeGzipJSON(path, export)
	}
	return writeJSON(path, export)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (b *Backend) buildExport() SessionExport {
	export := SessionExport{
		SessionID: b.session.ID,
		URL:       b.session.URL,
		StartTime: b.session.StartTime,
		EndTime:   b.session.EndTime,
		Units:     make([]UnitExport, 0, len(b.records)),
		V2x:       make([][]any, 0, len(b.v2x)),
	}
	if len(b.session.Metadata) > 0 {
		export.Metadata = b.session.Metadata
	}

	for _, rec := range b.records {
		u := UnitExport{
			Name:         rec.Unit.Name,
			Category:     rec.Unit.Category,
			Class:        rec.Unit.Class,
			Equipped:     rec.Unit.Equipped,
			RegisteredAt: rec.Unit.RegisteredAt,
			Positions:    make([][]any, 0, len(rec.Positions)),
		}
		if rec.Unit.HasPosition {
			u.Origin = []float64{rec.Unit.Latitude, rec.Unit.Longitude}
		}
		if !rec.RemovedAt.IsZero() {
			removed := rec.RemovedAt
			u.RemovedAt = &removed
		}
		for _, p := range rec.Positions {
			u.Positions = append(u.Positions, []any{p.Time.UnixMilli(), p.Latitude, p.Longitude, p.State})
		}
		export.Units = append(export.Units, u)
	}

	for _, e := range b.v2x {
		export.V2x = append(export.V2x, []any{e.Time.UnixMilli(), e.Name, e.Direction, e.MessageID})
	}

	return export
}

func writeJSON(path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func writeGzipJSON(path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(data); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return nil
}
