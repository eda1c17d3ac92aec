package session

// State is the connection state of a Manager.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

var allStates = []string{string(StateDisconnected), string(StateConnecting), string(StateConnected)}

// Label is the operator-facing status line for the state.
func (s State) Label() string {
	switch s {
	case StateConnected:
		return "Real-time Monitoring Active"
	case StateConnecting:
		return "Connecting..."
	default:
		return "Disconnected - Attempting to reconnect"
	}
}
