package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jgirmay/livetrack/pkg/geofence"
	"github.com/jgirmay/livetrack/pkg/models"
)

// ErrInvalidZone is returned by Create for zones that cannot be evaluated.
var ErrInvalidZone = errors.New("invalid geofence zone")

// ZoneRepositoryImpl implements ZoneRepository
type ZoneRepositoryImpl struct {
	db *gorm.DB
}

// NewZoneRepository creates a new zone repository
func NewZoneRepository(db *gorm.DB) ZoneRepository {
	return &ZoneRepositoryImpl{db: db}
}

// Create validates and stores a new zone
func (r *ZoneRepositoryImpl) Create(ctx context.Context, zone *models.GeofenceZone) error {
	if err := validateZone(zone); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(zone).Error
}

func validateZone(z *models.GeofenceZone) error {
	if z.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidZone)
	}
	if z.RadiusMeters <= 0 {
		return fmt.Errorf("%w: radius must be positive", ErrInvalidZone)
	}
	switch geofence.ZoneKind(z.ZoneType) {
	case geofence.ZoneOffice, geofence.ZoneCustomer, geofence.ZoneServiceArea, geofence.ZoneRestricted:
	default:
		return fmt.Errorf("%w: unknown zone type %q", ErrInvalidZone, z.ZoneType)
	}
	if !z.ToZone().Center().Valid() {
		return fmt.Errorf("%w: center out of range", ErrInvalidZone)
	}
	return nil
}

// GetByID retrieves a zone by ID
func (r *ZoneRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.GeofenceZone, error) {
	var zone models.GeofenceZone
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&zone).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &zone, nil
}

// List retrieves all zones, newest first
func (r *ZoneRepositoryImpl) List(ctx context.Context) ([]*models.GeofenceZone, error) {
	var zones []*models.GeofenceZone
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&zones).Error
	return zones, err
}

// ListActive retrieves zones with is_active set
func (r *ZoneRepositoryImpl) ListActive(ctx context.Context) ([]*models.GeofenceZone, error) {
	var zones []*models.GeofenceZone
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("created_at DESC").Find(&zones).Error
	return zones, err
}

// SetActive toggles a zone
func (r *ZoneRepositoryImpl) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res := r.db.WithContext(ctx).Model(&models.GeofenceZone{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete deletes a zone
func (r *ZoneRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.GeofenceZone{}).Error
}
