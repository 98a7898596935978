// Package convert provides functions to convert core models to GORM models
package convert

import (
	"database/sql"
	"encoding/json"

	"github.com/OCAP2/visualizer/internal/geo"
	"github.com/OCAP2/visualizer/internal/model"
	"github.com/OCAP2/visualizer/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// toJSON marshals v for a JSON column, falling back to fallback when v
// is empty or cannot be encoded.
func toJSON(v map[string]any, fallback string) datatypes.JSON {
	if len(v) == 0 {
		return datatypes.JSON(fallback)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON(fallback)
	}
	return datatypes.JSON(data)
}

// CoreToSession converts a core.Session to a GORM model.Session.
func CoreToSession(s core.Session) model.Session {
	end := sql.NullTime{}
	if !s.EndTime.IsZero() {
		end = sql.NullTime{Time: s.EndTime, Valid: true}
	}
	return model.Session{
		ID:        s.ID,
		URL:       s.URL,
		StartTime: s.StartTime,
		EndTime:   end,
		Metadata:  toJSON(s.Metadata, "{}"),
	}
}

// CoreToUnit converts a core.Unit to a GORM model.Unit.
func CoreToUnit(u core.Unit, sessionID string) model.Unit {
	position := geom.NewEmptyPoint(geom.DimXY)
	if u.HasPosition {
		position = geo.Point4326(u.Latitude, u.Longitude)
	}
	return model.Unit{
		SessionID:    sessionID,
		Name:         u.Name,
		Category:     u.Category,
		Class:        u.Class,
		Equipped:     u.Equipped,
		Position:     position,
		RegisteredAt: u.RegisteredAt,
		Properties: toJSON(map[string]any{
			"category": u.Category,
			"class":    u.Class,
			"equipped": u.Equipped,
		}, "{}"),
	}
}

// CoreToUnitPosition converts a core.PositionSample to a GORM model.UnitPosition.
func CoreToUnitPosition(p core.PositionSample, sessionID string) model.UnitPosition {
	return model.UnitPosition{
		Time:      p.Time,
		SessionID: sessionID,
		UnitName:  p.Name,
		SimTime:   p.SimTime,
		Position:  geo.Point4326(p.Latitude, p.Longitude),
		State:     p.State,
	}
}

// CoreToV2xEvent converts a core.V2xEvent to a GORM model.V2xEvent.
func CoreToV2xEvent(e core.V2xEvent, sessionID string) model.V2xEvent {
	return model.V2xEvent{
		Time:      e.Time,
		SessionID: sessionID,
		UnitName:  e.Name,
		SimTime:   e.SimTime,
		Direction: e.Direction,
		MessageID: e.MessageID,
	}
}

// CoreToUnitRemoval converts a core.Removal to a GORM model.UnitRemoval.
func CoreToUnitRemoval(r core.Removal, sessionID string) model.UnitRemoval {
	return model.UnitRemoval{
		Time:      r.Time,
		SessionID: sessionID,
		UnitName:  r.Name,
	}
}
