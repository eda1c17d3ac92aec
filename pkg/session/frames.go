package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jgirmay/livetrack/pkg/eventstore"
	"github.com/jgirmay/livetrack/pkg/geo"
)

// ErrMalformedFrame is returned by DecodeFrame for unparsable or
// semantically invalid frames.
var ErrMalformedFrame = errors.New("malformed frame")

// FrameKind is the `type` discriminator of an event-stream frame.
type FrameKind string

const (
	// Inbound
	KindAuthenticated      FrameKind = "authenticated"
	KindUserStatus         FrameKind = "user_status"
	KindTaskCreated        FrameKind = "task_created"
	KindTaskUpdated        FrameKind = "task_updated"
	KindUserCreated        FrameKind = "user_created"
	KindEngineerLocation   FrameKind = "engineer_location"
	KindSystemNotification FrameKind = "system_notification"
	KindPong               FrameKind = "pong"
	KindError              FrameKind = "error"

	// Outbound
	KindAuthenticate   FrameKind = "authenticate"
	KindPing           FrameKind = "ping"
	KindLocationUpdate FrameKind = "location_update"
)

// Frame is one decoded inbound message. The concrete types below are the
// only implementations; Unknown carries any unrecognised type.
type Frame interface {
	FrameKind() FrameKind
}

type Authenticated struct {
	Message    string
	UserID     string
	ClientType string
}

type UserStatus struct {
	UserID     string
	Online     bool
	Role       string
	ClientType string
	Timestamp  time.Time
}

type TaskActivity struct {
	Activity  eventstore.ActivityKind
	TaskID    string
	Title     string
	Actor     string
	Timestamp time.Time
	Changes   json.RawMessage
}

type UserCreated struct {
	Role                string
	FirstName           string
	LastName            string
	Username            string
	CanLoginImmediately bool
}

type EngineerLocation struct {
	UserID       string
	TaskID       string
	Point        geo.Point
	Accuracy     *float64
	Speed        *float64 // km/h, converted from device m/s by the sender
	Heading      *float64
	BatteryLevel *int
	Timestamp    time.Time
}

type SystemNotification struct {
	Message string
}

type Pong struct{}

// ServerError is an `error` frame, e.g. a rejected authentication.
type ServerError struct {
	Message string
}

type Unknown struct {
	Type string
}

func (Authenticated) FrameKind() FrameKind      { return KindAuthenticated }
func (UserStatus) FrameKind() FrameKind         { return KindUserStatus }
func (UserCreated) FrameKind() FrameKind        { return KindUserCreated }
func (EngineerLocation) FrameKind() FrameKind   { return KindEngineerLocation }
func (SystemNotification) FrameKind() FrameKind { return KindSystemNotification }
func (Pong) FrameKind() FrameKind               { return KindPong }
func (ServerError) FrameKind() FrameKind        { return KindError }
func (u Unknown) FrameKind() FrameKind          { return FrameKind(u.Type) }

func (t TaskActivity) FrameKind() FrameKind {
	if t.Activity == eventstore.ActivityCreated {
		return KindTaskCreated
	}
	return KindTaskUpdated
}

// wire shapes

type envelope struct {
	Type string `json:"type"`
}

type authenticatedWire struct {
	Message    string `json:"message"`
	UserID     string `json:"userId"`
	ClientType string `json:"clientType"`
}

type userStatusWire struct {
	UserID     string    `json:"userId"`
	Status     string    `json:"status"`
	UserRole   string    `json:"userRole"`
	ClientType string    `json:"clientType"`
	Timestamp  time.Time `json:"timestamp"`
}

type taskActivityWire struct {
	Task *struct {
		ID    json.RawMessage `json:"id"`
		Title string          `json:"title"`
	} `json:"task"`
	TaskID    json.RawMessage `json:"taskId"`
	UpdatedBy string          `json:"updatedBy"`
	CreatedBy string          `json:"createdBy"`
	Timestamp time.Time       `json:"timestamp"`
	Changes   json.RawMessage `json:"changes"`
	Updates   json.RawMessage `json:"updates"`
}

type userCreatedWire struct {
	User *struct {
		Role      string `json:"role"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Username  string `json:"username"`
	} `json:"user"`
	CanLoginImmediately bool `json:"canLoginImmediately"`
}

type locationWire struct {
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Speed     *float64  `json:"speed,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type engineerLocationWire struct {
	UserID       string          `json:"userId"`
	TaskID       json.RawMessage `json:"taskId"`
	Location     *locationWire   `json:"location"`
	BatteryLevel *int            `json:"batteryLevel"`
	Timestamp    time.Time       `json:"timestamp"`
}

type messageWire struct {
	Message string `json:"message"`
}

// DecodeFrame parses raw into a typed Frame. Unrecognised types decode to
// Unknown without error.
func DecodeFrame(raw []byte) (Frame, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}

	switch FrameKind(env.Type) {
	case KindAuthenticated:
		var w authenticatedWire
		if err := unmarshalBody(raw, &w); err != nil {
			return nil, err
		}
		return Authenticated{Message: w.Message, UserID: w.UserID, ClientType: w.ClientType}, nil

	case KindUserStatus:
		var w userStatusWire
		if err := unmarshalBody(raw, &w); err != nil {
			return nil, err
		}
		if w.UserID == "" {
			return nil, fmt.Errorf("%w: user_status without userId", ErrMalformedFrame)
		}
		if w.Status != "online" && w.Status != "offline" {
			return nil, fmt.Errorf("%w: user_status with status %q", ErrMalformedFrame, w.Status)
		}
		return UserStatus{
			UserID:     w.UserID,
			Online:     w.Status == "online",
			Role:       w.UserRole,
			ClientType: w.ClientType,
			Timestamp:  w.Timestamp,
		}, nil

	case KindTaskCreated, KindTaskUpdated:
		return decodeTaskActivity(FrameKind(env.Type), raw)

	case KindUserCreated:
		var w userCreatedWire
		if err := unmarshalBody(raw, &w); err != nil {
			return nil, err
		}
		if w.User == nil {
			return nil, fmt.Errorf("%w: user_created without user", ErrMalformedFrame)
		}
		return UserCreated{
			Role:                w.User.Role,
			FirstName:           w.User.FirstName,
			LastName:            w.User.LastName,
			Username:            w.User.Username,
			CanLoginImmediately: w.CanLoginImmediately,
		}, nil

	case KindEngineerLocation:
		return decodeEngineerLocation(raw)

	case KindSystemNotification:
		var w messageWire
		if err := unmarshalBody(raw, &w); err != nil {
			return nil, err
		}
		if w.Message == "" {
			return nil, fmt.Errorf("%w: system_notification without message", ErrMalformedFrame)
		}
		return SystemNotification{Message: w.Message}, nil

	case KindPong:
		return Pong{}, nil

	case KindError:
		var w messageWire
		if err := unmarshalBody(raw, &w); err != nil {
			return nil, err
		}
		return ServerError{Message: w.Message}, nil

	default:
		return Unknown{Type: env.Type}, nil
	}
}

func unmarshalBody(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return nil
}

func decodeTaskActivity(kind FrameKind, raw []byte) (Frame, error) {
	var w taskActivityWire
	if err := unmarshalBody(raw, &w); err != nil {
		return nil, err
	}

	f := TaskActivity{
		Activity:  eventstore.ActivityUpdated,
		Title:     "Unknown Task",
		Actor:     w.UpdatedBy,
		Timestamp: w.Timestamp,
		Changes:   w.Changes,
	}
	if kind == KindTaskCreated {
		f.Activity = eventstore.ActivityCreated
	}
	if f.Actor == "" {
		f.Actor = w.CreatedBy
	}
	if len(f.Changes) == 0 {
		f.Changes = w.Updates
	}
	if w.Task != nil {
		f.TaskID = idString(w.Task.ID)
		if w.Task.Title != "" {
			f.Title = w.Task.Title
		}
	}
	if f.TaskID == "" {
		f.TaskID = idString(w.TaskID)
	}
	if f.TaskID == "" {
		return nil, fmt.Errorf("%w: %s without task id", ErrMalformedFrame, kind)
	}
	return f, nil
}

func decodeEngineerLocation(raw []byte) (Frame, error) {
	var w engineerLocationWire
	if err := unmarshalBody(raw, &w); err != nil {
		return nil, err
	}
	if w.UserID == "" {
		return nil, fmt.Errorf("%w: engineer_location without userId", ErrMalformedFrame)
	}
	if w.Location == nil || w.Location.Latitude == nil || w.Location.Longitude == nil {
		return nil, fmt.Errorf("%w: engineer_location without coordinates", ErrMalformedFrame)
	}

	point := geo.Point{Lat: *w.Location.Latitude, Lon: *w.Location.Longitude}
	if !point.Valid() {
		return nil, fmt.Errorf("%w: engineer_location coordinates out of range", ErrMalformedFrame)
	}

	ts := w.Location.Timestamp
	if ts.IsZero() {
		ts = w.Timestamp
	}
	return EngineerLocation{
		UserID:       w.UserID,
		TaskID:       idString(w.TaskID),
		Point:        point,
		Accuracy:     w.Location.Accuracy,
		Speed:        w.Location.Speed,
		Heading:      w.Location.Heading,
		BatteryLevel: w.BatteryLevel,
		Timestamp:    ts,
	}, nil
}

// idString renders a JSON id that may be a string or a number.
func idString(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	return s
}

// outbound frames

// Identity is what the session authenticates as.
type Identity struct {
	UserID     string `yaml:"user_id"`
	Role       string `yaml:"role"`
	ClientType string `yaml:"client_type"`
	Token      string `yaml:"token"`
}

type authenticateFrame struct {
	Type       FrameKind `json:"type"`
	UserID     string    `json:"userId"`
	UserRole   string    `json:"userRole"`
	ClientType string    `json:"clientType"`
	Token      string    `json:"token,omitempty"`
}

func newAuthenticateFrame(id Identity) authenticateFrame {
	return authenticateFrame{
		Type:       KindAuthenticate,
		UserID:     id.UserID,
		UserRole:   id.Role,
		ClientType: id.ClientType,
		Token:      id.Token,
	}
}

type pingFrame struct {
	Type      FrameKind `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// LocationUpdate is an outbound position report from this client.
type LocationUpdate struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Speed     *float64  `json:"speed,omitempty"` // km/h
	Heading   *float64  `json:"heading,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type locationUpdateFrame struct {
	Type     FrameKind      `json:"type"`
	Location LocationUpdate `json:"location"`
}
