// Package repository provides gorm-backed storage for zones, anchors and
// tracking history.
package repository

import (
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/jgirmay/livetrack/pkg/models"
)

// Registry provides centralized access to all repositories
type Registry struct {
	Zones     ZoneRepository
	Offices   OfficeLocationRepository
	Customers CustomerSiteRepository
	Tracking  TrackingRepository

	db *gorm.DB
	mu sync.RWMutex
}

// NewRegistry creates a registry with every repository bound to db.
func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{
		Zones:     NewZoneRepository(db),
		Offices:   NewOfficeLocationRepository(db),
		Customers: NewCustomerSiteRepository(db),
		Tracking:  NewTrackingRepository(db),
		db:        db,
	}
}

// Migrate creates or updates the tables.
func (r *Registry) Migrate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// GetDB returns the database connection
func (r *Registry) GetDB() *gorm.DB {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.db
}

// Close closes the underlying connection pool.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		sqlDB, err := r.db.DB()
		if err != nil {
			return fmt.Errorf("failed to get database connection: %w", err)
		}
		if err := sqlDB.Close(); err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}
	return nil
}
