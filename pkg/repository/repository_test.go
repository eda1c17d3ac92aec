package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgirmay/livetrack/pkg/geo"
	"github.com/jgirmay/livetrack/pkg/geofence"
	"github.com/jgirmay/livetrack/pkg/models"
	"github.com/jgirmay/livetrack/pkg/movement"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	db, err := Open("sqlite::memory:")
	require.NoError(t, err)

	reg := NewRegistry(db)
	require.NoError(t, reg.Migrate())
	t.Cleanup(func() { reg.Close() })
	return reg
}

func ptr[T any](v T) *T { return &v }

func TestZoneRepository(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	hq := &models.GeofenceZone{
		Name: "HQ", ZoneType: "office",
		CenterLatitude: 28.6139, CenterLongitude: 77.2090, RadiusMeters: 100, IsActive: true,
	}
	require.NoError(t, reg.Zones.Create(ctx, hq))
	assert.NotEqual(t, uuid.Nil, hq.ID)

	closed := &models.GeofenceZone{
		Name: "Old depot", ZoneType: "service_area",
		CenterLatitude: 28.5, CenterLongitude: 77.1, RadiusMeters: 500, IsActive: false,
	}
	require.NoError(t, reg.Zones.Create(ctx, closed))

	all, err := reg.Zones.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := reg.Zones.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "HQ", active[0].Name)

	zone := active[0].ToZone()
	assert.Equal(t, geofence.ZoneOffice, zone.Kind)
	assert.Equal(t, hq.ID.String(), zone.ID)
	assert.True(t, zone.IsActive)

	require.NoError(t, reg.Zones.SetActive(ctx, hq.ID, false))
	active, err = reg.Zones.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	assert.ErrorIs(t, reg.Zones.SetActive(ctx, uuid.New(), true), ErrNotFound)

	require.NoError(t, reg.Zones.Delete(ctx, hq.ID))
	_, err = reg.Zones.GetByID(ctx, hq.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestZoneRepositoryRejectsInvalidZones(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	tests := []struct {
		name string
		zone models.GeofenceZone
	}{
		{"zero radius", models.GeofenceZone{Name: "a", ZoneType: "office", RadiusMeters: 0}},
		{"missing name", models.GeofenceZone{ZoneType: "office", RadiusMeters: 10}},
		{"unknown type", models.GeofenceZone{Name: "a", ZoneType: "parking", RadiusMeters: 10}},
		{"bad center", models.GeofenceZone{Name: "a", ZoneType: "office", RadiusMeters: 10, CenterLatitude: 95}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			z := tt.zone
			assert.ErrorIs(t, reg.Zones.Create(ctx, &z), ErrInvalidZone)
		})
	}
}

func TestOfficeLocationsMainOfficeFirst(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	require.NoError(t, reg.Offices.Create(ctx, &models.OfficeLocation{Name: "Branch", Latitude: 1, Longitude: 1, IsActive: true}))
	require.NoError(t, reg.Offices.Create(ctx, &models.OfficeLocation{Name: "Main", Latitude: 2, Longitude: 2, IsActive: true, IsMainOffice: true}))
	require.NoError(t, reg.Offices.Create(ctx, &models.OfficeLocation{Name: "Closed", Latitude: 3, Longitude: 3}))

	offices, err := reg.Offices.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, offices, 2)
	assert.Equal(t, "Main", offices[0].Name)
	assert.Equal(t, geo.Point{Lat: 2, Lon: 2}, offices[0].Point())
}

func TestCustomerSiteUpsert(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	require.NoError(t, reg.Customers.Upsert(ctx, &models.CustomerSite{TaskID: "42", CustomerName: "Acme", Latitude: 10, Longitude: 20}))
	require.NoError(t, reg.Customers.Upsert(ctx, &models.CustomerSite{TaskID: "42", CustomerName: "Acme", Latitude: 11, Longitude: 21}))

	sites, err := reg.Customers.List(ctx)
	require.NoError(t, err)
	require.Len(t, sites, 1)

	site, err := reg.Customers.GetByTaskID(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, geo.Point{Lat: 11, Lon: 21}, site.Point())

	_, err = reg.Customers.GetByTaskID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTrackingRepositoryWindowAndStats(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)

	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	origin := geo.Point{Lat: 28.6139, Lon: 77.2090}
	kinds := []movement.Kind{movement.TravelingToCustomer, movement.TravelingToCustomer, movement.AtCustomerLocation}
	for i, kind := range kinds {
		require.NoError(t, reg.Tracking.Append(ctx, movement.Sample{
			UserID:    "eng1",
			TaskID:    "42",
			Point:     geo.Destination(origin, 90, float64(i)*1000),
			Kind:      kind,
			SpeedKmh:  ptr(30.0),
			Timestamp: start.Add(time.Duration(i) * 10 * time.Minute),
		}))
	}
	require.NoError(t, reg.Tracking.Append(ctx, movement.Sample{UserID: "eng2", Point: origin, Kind: movement.Other, Timestamp: start}))

	samples, err := reg.Tracking.Window(ctx, "eng1", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, movement.AtCustomerLocation, samples[2].Kind)
	assert.True(t, samples[0].Timestamp.Equal(start))

	samples, err = reg.Tracking.Window(ctx, "eng1", start.Add(5*time.Minute), start.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, samples, 2)

	stats, err := movement.StatsFor(ctx, reg.Tracking, "eng1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.InDelta(t, 2000, stats.TotalDistanceMeters, 1)
	assert.Equal(t, 10*time.Minute, stats.TimeInTransit)
	assert.Equal(t, 10*time.Minute, stats.TimeAtCustomerSites)

	pruned, err := reg.Tracking.Prune(ctx, start.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned)
}
