package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jgirmay/livetrack/pkg/models"
	"github.com/jgirmay/livetrack/pkg/movement"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// ZoneRepository defines operations for geofence zones
type ZoneRepository interface {
	// Create validates and stores a new zone
	Create(ctx context.Context, zone *models.GeofenceZone) error

	// GetByID retrieves a zone by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.GeofenceZone, error)

	// List retrieves all zones, newest first
	List(ctx context.Context) ([]*models.GeofenceZone, error)

	// ListActive retrieves zones with is_active set
	ListActive(ctx context.Context) ([]*models.GeofenceZone, error)

	// SetActive toggles a zone
	SetActive(ctx context.Context, id uuid.UUID, active bool) error

	// Delete deletes a zone
	Delete(ctx context.Context, id uuid.UUID) error
}

// OfficeLocationRepository defines operations for office anchors
type OfficeLocationRepository interface {
	Create(ctx context.Context, office *models.OfficeLocation) error

	// ListActive retrieves active offices with the main office first
	ListActive(ctx context.Context) ([]*models.OfficeLocation, error)

	Delete(ctx context.Context, id uuid.UUID) error
}

// CustomerSiteRepository defines operations for task destinations
type CustomerSiteRepository interface {
	// Upsert stores site, replacing any existing site for the same task
	Upsert(ctx context.Context, site *models.CustomerSite) error

	GetByTaskID(ctx context.Context, taskID string) (*models.CustomerSite, error)

	List(ctx context.Context) ([]*models.CustomerSite, error)
}

// TrackingRepository persists classified samples. It satisfies
// movement.History.
type TrackingRepository interface {
	movement.History

	// Prune deletes samples recorded before cutoff and returns the count
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}
