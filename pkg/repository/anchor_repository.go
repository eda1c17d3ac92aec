package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jgirmay/livetrack/pkg/models"
)

// OfficeLocationRepositoryImpl implements OfficeLocationRepository
type OfficeLocationRepositoryImpl struct {
	db *gorm.DB
}

func NewOfficeLocationRepository(db *gorm.DB) OfficeLocationRepository {
	return &OfficeLocationRepositoryImpl{db: db}
}

func (r *OfficeLocationRepositoryImpl) Create(ctx context.Context, office *models.OfficeLocation) error {
	return r.db.WithContext(ctx).Create(office).Error
}

func (r *OfficeLocationRepositoryImpl) ListActive(ctx context.Context) ([]*models.OfficeLocation, error) {
	var offices []*models.OfficeLocation
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("is_main_office DESC").
		Order("created_at ASC").
		Find(&offices).Error
	return offices, err
}

func (r *OfficeLocationRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.OfficeLocation{}).Error
}

// CustomerSiteRepositoryImpl implements CustomerSiteRepository
type CustomerSiteRepositoryImpl struct {
	db *gorm.DB
}

func NewCustomerSiteRepository(db *gorm.DB) CustomerSiteRepository {
	return &CustomerSiteRepositoryImpl{db: db}
}

func (r *CustomerSiteRepositoryImpl) Upsert(ctx context.Context, site *models.CustomerSite) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "task_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"customer_name", "latitude", "longitude", "updated_at"}),
	}).Create(site).Error
}

func (r *CustomerSiteRepositoryImpl) GetByTaskID(ctx context.Context, taskID string) (*models.CustomerSite, error) {
	var site models.CustomerSite
	err := r.db.WithContext(ctx).Where("task_id = ?", taskID).First(&site).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &site, nil
}

func (r *CustomerSiteRepositoryImpl) List(ctx context.Context) ([]*models.CustomerSite, error) {
	var sites []*models.CustomerSite
	err := r.db.WithContext(ctx).Order("task_id ASC").Find(&sites).Error
	return sites, err
}
