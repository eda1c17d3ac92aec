package zones

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jgirmay/livetrack/pkg/geo"
	"github.com/jgirmay/livetrack/pkg/geofence"
	"github.com/jgirmay/livetrack/pkg/repository"
)

// ErrSourceUnavailable wraps every failure to load zones or anchors.
var ErrSourceUnavailable = errors.New("zone source unavailable")

// Source loads the current zone list, including inactive zones.
type Source interface {
	Zones(ctx context.Context) ([]geofence.Zone, error)
}

// AnchorSource loads office locations and per-task customer sites.
type AnchorSource interface {
	Anchors(ctx context.Context) (offices []geo.Point, customers map[string]geo.Point, err error)
}

// StaticSource serves a fixed zone list.
type StaticSource []geofence.Zone

func (s StaticSource) Zones(context.Context) ([]geofence.Zone, error) {
	return append([]geofence.Zone(nil), s...), nil
}

// HTTPSource fetches zones from the portal's REST endpoint.
type HTTPSource struct {
	URL    string
	Header http.Header
	client *http.Client
}

// NewHTTPSource returns a source for url with a per-request timeout.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		URL:    url,
		Header: make(http.Header),
		client: &http.Client{Timeout: timeout},
	}
}

// zoneWire is the REST shape. Coordinates and ids arrive as numbers or
// decimal strings.
type zoneWire struct {
	ID              flexString `json:"id"`
	Name            string     `json:"name"`
	ZoneType        string     `json:"zoneType"`
	CenterLatitude  flexFloat  `json:"centerLatitude"`
	CenterLongitude flexFloat  `json:"centerLongitude"`
	Radius          flexFloat  `json:"radius"`
	IsActive        bool       `json:"isActive"`
}

func (s *HTTPSource) Zones(ctx context.Context) ([]geofence.Zone, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	for k, v := range s.Header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: unexpected status %d", ErrSourceUnavailable, resp.StatusCode)
	}

	var rows []zoneWire
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: failed to decode zones: %v", ErrSourceUnavailable, err)
	}

	zones := make([]geofence.Zone, 0, len(rows))
	for _, row := range rows {
		if row.Radius <= 0 {
			continue
		}
		zones = append(zones, geofence.Zone{
			ID:           string(row.ID),
			Name:         row.Name,
			Kind:         geofence.ZoneKind(row.ZoneType),
			CenterLat:    float64(row.CenterLatitude),
			CenterLon:    float64(row.CenterLongitude),
			RadiusMeters: float64(row.Radius),
			IsActive:     row.IsActive,
		})
	}
	return zones, nil
}

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	*f = flexFloat(v)
	return nil
}

type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	*f = flexString(strings.TrimSpace(string(b)))
	return nil
}

// RepositorySource reads zones and anchors from the database.
type RepositorySource struct {
	reg *repository.Registry
}

func NewRepositorySource(reg *repository.Registry) *RepositorySource {
	return &RepositorySource{reg: reg}
}

func (s *RepositorySource) Zones(ctx context.Context) ([]geofence.Zone, error) {
	rows, err := s.reg.Zones.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	zones := make([]geofence.Zone, 0, len(rows))
	for _, row := range rows {
		zones = append(zones, row.ToZone())
	}
	return zones, nil
}

func (s *RepositorySource) Anchors(ctx context.Context) ([]geo.Point, map[string]geo.Point, error) {
	offices, err := s.reg.Offices.ListActive(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	sites, err := s.reg.Customers.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	points := make([]geo.Point, 0, len(offices))
	for _, o := range offices {
		points = append(points, o.Point())
	}
	customers := make(map[string]geo.Point, len(sites))
	for _, c := range sites {
		customers[c.TaskID] = c.Point()
	}
	return points, customers, nil
}
