package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/jgirmay/livetrack/pkg/models"
	"github.com/jgirmay/livetrack/pkg/movement"
)

// TrackingRepositoryImpl implements TrackingRepository
type TrackingRepositoryImpl struct {
	db *gorm.DB
}

// NewTrackingRepository creates a new tracking history repository
func NewTrackingRepository(db *gorm.DB) TrackingRepository {
	return &TrackingRepositoryImpl{db: db}
}

// Append records one classified sample
func (r *TrackingRepositoryImpl) Append(ctx context.Context, s movement.Sample) error {
	return r.db.WithContext(ctx).Create(models.NewTrackingSample(s)).Error
}

// Window returns userID's samples in [start, end] ordered by time. A zero
// bound leaves that side open.
func (r *TrackingRepositoryImpl) Window(ctx context.Context, userID string, start, end time.Time) ([]movement.Sample, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if !start.IsZero() {
		q = q.Where("recorded_at >= ?", start.UTC())
	}
	if !end.IsZero() {
		q = q.Where("recorded_at <= ?", end.UTC())
	}

	var rows []models.TrackingSample
	if err := q.Order("recorded_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	samples := make([]movement.Sample, 0, len(rows))
	for _, row := range rows {
		samples = append(samples, row.Sample())
	}
	return samples, nil
}

// Prune deletes samples recorded before cutoff
func (r *TrackingRepositoryImpl) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("recorded_at < ?", cutoff.UTC()).Delete(&models.TrackingSample{})
	return res.RowsAffected, res.Error
}
