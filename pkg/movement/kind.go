// Package movement labels tracking samples with what a field worker is doing
// and aggregates travel statistics over a time window.
package movement

import (
	"time"

	"github.com/jgirmay/livetrack/pkg/geo"
)

// Kind is a movement classification label.
type Kind string

const (
	AtCustomerLocation  Kind = "at_customer_location"
	TravelingToCustomer Kind = "traveling_to_customer"
	ReturningToOffice   Kind = "returning_to_office"
	Break               Kind = "break"
	Other               Kind = "other"
)

// Label returns the short display label used by the portal.
func (k Kind) Label() string {
	switch k {
	case AtCustomerLocation:
		return "At Customer"
	case TravelingToCustomer:
		return "En Route"
	case ReturningToOffice:
		return "Returning"
	case Break:
		return "On Break"
	default:
		return "Other"
	}
}

// ParseKind maps a stored label back to a Kind, defaulting to Other.
func ParseKind(s string) Kind {
	switch k := Kind(s); k {
	case AtCustomerLocation, TravelingToCustomer, ReturningToOffice, Break:
		return k
	default:
		return Other
	}
}

// Sample is one classified tracking record. Optional values are nil when unknown.
type Sample struct {
	UserID               string    `json:"userId"`
	TaskID               string    `json:"taskId,omitempty"`
	Point                geo.Point `json:"point"`
	DistanceFromOffice   *float64  `json:"distanceFromOffice,omitempty"`
	DistanceFromCustomer *float64  `json:"distanceFromCustomer,omitempty"`
	Kind                 Kind      `json:"movementKind"`
	SpeedKmh             *float64  `json:"speedKmh,omitempty"`
	BatteryLevel         *int      `json:"batteryLevel,omitempty"`
	Timestamp            time.Time `json:"timestamp"`
}
