package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jgirmay/livetrack/pkg/geo"
	"github.com/jgirmay/livetrack/pkg/geofence"
	"github.com/jgirmay/livetrack/pkg/movement"
)

// GeofenceZone is a persisted circular zone managed by the portal.
type GeofenceZone struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	Name            string    `json:"name" gorm:"type:varchar(255)"`
	ZoneType        string    `json:"zone_type" gorm:"type:varchar(50);index"` // 'office', 'customer', 'service_area', 'restricted'
	CenterLatitude  float64   `json:"center_latitude"`
	CenterLongitude float64   `json:"center_longitude"`
	RadiusMeters    float64   `json:"radius_meters"`
	CustomerID      *string   `json:"customer_id" gorm:"type:varchar(64);index"`
	IsActive        bool      `json:"is_active" gorm:"index"`
	CreatedBy       string    `json:"created_by" gorm:"type:varchar(255)"`
	CreatedAt       time.Time `json:"created_at" gorm:"index"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (GeofenceZone) TableName() string {
	return "geofence_zones"
}

func (z *GeofenceZone) BeforeCreate(*gorm.DB) error {
	if z.ID == uuid.Nil {
		z.ID = uuid.New()
	}
	return nil
}

// ToZone converts the row into the evaluator's zone type.
func (z GeofenceZone) ToZone() geofence.Zone {
	return geofence.Zone{
		ID:           z.ID.String(),
		Name:         z.Name,
		Kind:         geofence.ZoneKind(z.ZoneType),
		CenterLat:    z.CenterLatitude,
		CenterLon:    z.CenterLongitude,
		RadiusMeters: z.RadiusMeters,
		IsActive:     z.IsActive,
	}
}

// OfficeLocation is a company office used as a distance anchor.
type OfficeLocation struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	Name         string    `json:"name" gorm:"type:varchar(255)"`
	Address      string    `json:"address" gorm:"type:text"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	IsMainOffice bool      `json:"is_main_office"`
	IsActive     bool      `json:"is_active" gorm:"index"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (OfficeLocation) TableName() string {
	return "office_locations"
}

func (o *OfficeLocation) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (o OfficeLocation) Point() geo.Point {
	return geo.Point{Lat: o.Latitude, Lon: o.Longitude}
}

// CustomerSite is the destination of a task.
type CustomerSite struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	TaskID       string    `json:"task_id" gorm:"type:varchar(64);uniqueIndex"`
	CustomerName string    `json:"customer_name" gorm:"type:varchar(255)"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (CustomerSite) TableName() string {
	return "customer_sites"
}

func (c *CustomerSite) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (c CustomerSite) Point() geo.Point {
	return geo.Point{Lat: c.Latitude, Lon: c.Longitude}
}

// TrackingSample is one classified location sample of a field worker.
type TrackingSample struct {
	ID                   uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	UserID               string    `json:"user_id" gorm:"type:varchar(255);index:idx_tracking_user_time"`
	TaskID               string    `json:"task_id" gorm:"type:varchar(64)"`
	Latitude             float64   `json:"latitude"`
	Longitude            float64   `json:"longitude"`
	DistanceFromOffice   *float64  `json:"distance_from_office"`
	DistanceFromCustomer *float64  `json:"distance_from_customer"`
	MovementKind         string    `json:"movement_kind" gorm:"type:varchar(50)"`
	SpeedKmh             *float64  `json:"speed_kmh"`
	BatteryLevel         *int      `json:"battery_level"`
	RecordedAt           time.Time `json:"recorded_at" gorm:"index:idx_tracking_user_time"`
	CreatedAt            time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (TrackingSample) TableName() string {
	return "engineer_tracking_history"
}

func (s *TrackingSample) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// NewTrackingSample converts a classified sample into a row.
func NewTrackingSample(s movement.Sample) *TrackingSample {
	return &TrackingSample{
		UserID:               s.UserID,
		TaskID:               s.TaskID,
		Latitude:             s.Point.Lat,
		Longitude:            s.Point.Lon,
		DistanceFromOffice:   s.DistanceFromOffice,
		DistanceFromCustomer: s.DistanceFromCustomer,
		MovementKind:         string(s.Kind),
		SpeedKmh:             s.SpeedKmh,
		BatteryLevel:         s.BatteryLevel,
		RecordedAt:           s.Timestamp.UTC(),
	}
}

// Sample converts the row back into a movement sample.
func (s TrackingSample) Sample() movement.Sample {
	return movement.Sample{
		UserID:               s.UserID,
		TaskID:               s.TaskID,
		Point:                geo.Point{Lat: s.Latitude, Lon: s.Longitude},
		DistanceFromOffice:   s.DistanceFromOffice,
		DistanceFromCustomer: s.DistanceFromCustomer,
		Kind:                 movement.ParseKind(s.MovementKind),
		SpeedKmh:             s.SpeedKmh,
		BatteryLevel:         s.BatteryLevel,
		Timestamp:            s.RecordedAt,
	}
}

// All lists every model for migration.
func All() []any {
	return []any{&GeofenceZone{}, &OfficeLocation{}, &CustomerSite{}, &TrackingSample{}}
}
