package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&Unit{},
	&UnitPosition{},
	&V2xEvent{},
	&UnitRemoval{},
}

// Session is one connection to the MOSAIC visualizer server
type Session struct {
	ID        string         `json:"id" gorm:"primarykey;size:36"`
	URL       string         `json:"url" gorm:"size:255"`
	StartTime time.Time      `json:"startTime" gorm:"index:idx_session_start_time"`
	EndTime   sql.NullTime   `json:"endTime" gorm:"default:NULL"`
	Metadata  datatypes.JSON `json:"metadata"`
}

func (*Session) TableName() string {
	return "sessions"
}

// Unit is a unit registered during a session
type Unit struct {
	ID           uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID    string         `json:"sessionId" gorm:"size:36;index:idx_unit_session_id"`
	Name         string         `json:"name" gorm:"size:128;index:idx_unit_name"`
	Category     string         `json:"category" gorm:"size:32"`
	Class        string         `json:"class" gorm:"size:64"`
	Equipped     bool           `json:"equipped" gorm:"default:false"`
	Position     geom.Point     `json:"position"` // Registration position (stationary units, agent origin), WGS84 lon/lat
	RegisteredAt time.Time      `json:"registeredAt"`
	Properties   datatypes.JSON `json:"properties"`
}

func (*Unit) TableName() string {
	return "units"
}

// UnitPosition is one position update of a vehicle or agent
type UnitPosition struct {
	ID        uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time  `json:"time" gorm:"index:idx_unitposition_time"`
	SessionID string     `json:"sessionId" gorm:"size:36;index:idx_unitposition_session_id"`
	UnitName  string     `json:"unitName" gorm:"size:128;index:idx_unitposition_unit_name"`
	SimTime   int64      `json:"simTime"` // Simulation time in nanoseconds
	Position  geom.Point `json:"position"`
	State     string     `json:"state" gorm:"size:64"` // Agent movement state, empty for vehicles
}

func (*UnitPosition) TableName() string {
	return "unit_positions"
}

// V2xEvent records a unit sending or receiving a V2X message
type V2xEvent struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time" gorm:"index:idx_v2xevent_time"`
	SessionID string    `json:"sessionId" gorm:"size:36;index:idx_v2xevent_session_id"`
	UnitName  string    `json:"unitName" gorm:"size:128"`
	SimTime   int64     `json:"simTime"`
	Direction string    `json:"direction" gorm:"size:16"`
	MessageID int       `json:"messageId"`
}

func (*V2xEvent) TableName() string {
	return "v2x_events"
}

// UnitRemoval records a unit leaving the simulation
type UnitRemoval struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time"`
	SessionID string    `json:"sessionId" gorm:"size:36;index:idx_unitremoval_session_id"`
	UnitName  string    `json:"unitName" gorm:"size:128"`
}

func (*UnitRemoval) TableName() string {
	return "unit_removals"
}
