package session

import "github.com/jgirmay/livetrack/pkg/eventstore"

// Observer receives session events. Callbacks run synchronously on the
// frame path and must not call Manager.Stop.
type Observer interface {
	OnStateChange(from, to State)
	OnNotification(n eventstore.Notification)
	OnServerError(message string)
}

// ObserverFuncs adapts optional functions to Observer.
type ObserverFuncs struct {
	StateChange  func(from, to State)
	Notification func(n eventstore.Notification)
	ServerError  func(message string)
}

func (o ObserverFuncs) OnStateChange(from, to State) {
	if o.StateChange != nil {
		o.StateChange(from, to)
	}
}

func (o ObserverFuncs) OnNotification(n eventstore.Notification) {
	if o.Notification != nil {
		o.Notification(n)
	}
}

func (o ObserverFuncs) OnServerError(message string) {
	if o.ServerError != nil {
		o.ServerError(message)
	}
}
