// Package eventstore holds the bounded in-memory collections fed by the
// event stream: presence, activity, live locations and notifications.
package eventstore

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	ActivityCapacity        = 20
	LocationHistoryCapacity = 10
	NotificationCapacity    = 10
)

// PresenceKey identifies one connected client of a user.
type PresenceKey struct {
	UserID     string `json:"userId"`
	ClientKind string `json:"clientType"`
}

// PresenceEntry is an online (userId, clientKind) pair.
type PresenceEntry struct {
	UserID       string    `json:"userId"`
	Role         string    `json:"userRole"`
	ClientKind   string    `json:"clientType"`
	LastActivity time.Time `json:"lastActivity"`
}

// Key returns the entry's unique presence key.
func (p PresenceEntry) Key() PresenceKey {
	return PresenceKey{UserID: p.UserID, ClientKind: p.ClientKind}
}

// ActivityKind distinguishes task creation from task updates.
type ActivityKind string

const (
	ActivityCreated ActivityKind = "created"
	ActivityUpdated ActivityKind = "updated"
)

// ActivityEvent is an immutable task activity record.
type ActivityEvent struct {
	ID           uuid.UUID       `json:"id"`
	Kind         ActivityKind    `json:"kind"`
	SubjectID    string          `json:"subjectId"`
	SubjectTitle string          `json:"subjectTitle"`
	Actor        string          `json:"actor"`
	OccurredAt   time.Time       `json:"occurredAt"`
	Changes      json.RawMessage `json:"changes,omitempty"`
}

// LocationSample is the latest reported position of a user.
type LocationSample struct {
	UserID     string    `json:"userId"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	Speed      *float64  `json:"speed,omitempty"`
	Heading    *float64  `json:"heading,omitempty"`
	CapturedAt time.Time `json:"capturedAt"`
}

// Notification is a human-readable feed entry.
type Notification struct {
	ID         uuid.UUID `json:"id"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurredAt"`
}
