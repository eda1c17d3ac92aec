package movement

import (
	"sync"

	"github.com/jgirmay/livetrack/pkg/geo"
)

// Anchors supplies the reference points used for distance measurements.
// Implementations are owned by the zone-management side; the classifier only reads.
type Anchors interface {
	// Offices returns the active office locations, main office first.
	Offices() []geo.Point
	// CustomerSite returns the customer location for a task.
	CustomerSite(taskID string) (geo.Point, bool)
}

// StaticAnchors is an in-memory Anchors that can be replaced wholesale.
type StaticAnchors struct {
	mu        sync.RWMutex
	offices   []geo.Point
	customers map[string]geo.Point
}

// NewStaticAnchors creates an anchor set from the given offices and task sites.
func NewStaticAnchors(offices []geo.Point, customers map[string]geo.Point) *StaticAnchors {
	a := &StaticAnchors{}
	a.Replace(offices, customers)
	return a
}

// Replace swaps both anchor collections.
func (a *StaticAnchors) Replace(offices []geo.Point, customers map[string]geo.Point) {
	officesCopy := append([]geo.Point(nil), offices...)
	customersCopy := make(map[string]geo.Point, len(customers))
	for k, v := range customers {
		customersCopy[k] = v
	}

	a.mu.Lock()
	a.offices = officesCopy
	a.customers = customersCopy
	a.mu.Unlock()
}

func (a *StaticAnchors) Offices() []geo.Point {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]geo.Point(nil), a.offices...)
}

func (a *StaticAnchors) CustomerSite(taskID string) (geo.Point, bool) {
	if taskID == "" {
		return geo.Point{}, false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.customers[taskID]
	return p, ok
}
