// Package publish fans session events out to Redis pub/sub so other
// services can follow the live feed.
package publish

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jgirmay/livetrack/pkg/eventstore"
	"github.com/jgirmay/livetrack/pkg/session"
)

// EventType discriminates published events.
type EventType string

const (
	EventNotification EventType = "notification"
	EventStateChange  EventType = "state_change"
	EventServerError  EventType = "server_error"
)

// Event is the JSON payload published on the channel.
type Event struct {
	Type       EventType `json:"type"`
	ID         string    `json:"id,omitempty"`
	Message    string    `json:"message,omitempty"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

const queueSize = 256

// RedisPublisher is a session.Observer that publishes every event to a
// Redis channel from a background goroutine. Events are dropped when the
// queue is full so the frame path never blocks on Redis.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
	timeout time.Duration
	logger  *zap.Logger

	queue        chan Event
	done         chan struct{}
	stopped      chan struct{}
	closeTimeout time.Duration
	closeOnce    sync.Once
}

var _ session.Observer = (*RedisPublisher)(nil)

// NewRedisPublisher starts publishing to channel. Close must be called.
func NewRedisPublisher(client redis.UniversalClient, channel string, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &RedisPublisher{
		client:  client,
		channel: channel,
		timeout: 2 * time.Second,
		logger:  logger.Named("publish"),
		queue:   make(chan Event, queueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),

		closeTimeout: 5 * time.Second,
	}
	go p.run()
	return p
}

// StateKey holds the latest session state.
func (p *RedisPublisher) StateKey() string {
	return p.channel + ":state"
}

func (p *RedisPublisher) OnNotification(n eventstore.Notification) {
	p.enqueue(Event{Type: EventNotification, ID: n.ID.String(), Message: n.Message, OccurredAt: n.OccurredAt})
}

func (p *RedisPublisher) OnStateChange(from, to session.State) {
	p.enqueue(Event{Type: EventStateChange, From: string(from), To: string(to), OccurredAt: time.Now()})
}

func (p *RedisPublisher) OnServerError(message string) {
	p.enqueue(Event{Type: EventServerError, Message: message, OccurredAt: time.Now()})
}

func (p *RedisPublisher) enqueue(ev Event) {
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.queue <- ev:
	default:
		p.logger.Warn("publish queue full, dropping event", zap.String("type", string(ev.Type)))
	}
}

func (p *RedisPublisher) run() {
	defer close(p.stopped)
	for {
		select {
		case ev := <-p.queue:
			p.publish(ev)
		case <-p.done:
			for {
				select {
				case ev := <-p.queue:
					p.publish(ev)
				default:
					return
				}
			}
		}
	}
}

func (p *RedisPublisher) publish(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("failed to encode event", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.Warn("failed to publish event", zap.String("channel", p.channel), zap.Error(err))
		return
	}
	if ev.Type == EventStateChange {
		if err := p.client.Set(ctx, p.StateKey(), ev.To, 0).Err(); err != nil {
			p.logger.Warn("failed to store session state", zap.Error(err))
		}
	}
}

// Close stops accepting events and waits, up to the close timeout, for
// the queued ones to be published. The client must stay open until Close
// returns.
func (p *RedisPublisher) Close() {
	p.closeOnce.Do(func() { close(p.done) })

	timer := time.NewTimer(p.closeTimeout)
	defer timer.Stop()
	select {
	case <-p.stopped:
	case <-timer.C:
		p.logger.Warn("publish queue not drained before close", zap.Int("pending", len(p.queue)))
	}
}
