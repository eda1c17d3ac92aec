package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jgirmay/livetrack/pkg/eventstore"
	"github.com/jgirmay/livetrack/pkg/metrics"
)

var (
	// ErrStopped is returned by Start after Stop has been called.
	ErrStopped = errors.New("session stopped")
	// ErrNotConnected is returned by SendLocation outside the connected state.
	ErrNotConnected = errors.New("session not connected")
)

const (
	DefaultReconnectDelay   = 3 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultPingInterval     = 30 * time.Second
)

// Config describes the event-stream endpoint and session timing.
type Config struct {
	URL              string        `yaml:"url"`
	Identity         Identity      `yaml:"identity"`
	ReconnectDelay   time.Duration `yaml:"reconnect_delay"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	// PingInterval of zero disables keep-alive pings.
	PingInterval time.Duration `yaml:"ping_interval"`
}

// DefaultConfig returns the timing defaults with an empty endpoint.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:   DefaultReconnectDelay,
		HandshakeTimeout: DefaultHandshakeTimeout,
		PingInterval:     DefaultPingInterval,
	}
}

// Option configures a Manager.
type Option func(*Manager)

func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l.Named("session")
		}
	}
}

func WithMetrics(c *metrics.Collector) Option {
	return func(m *Manager) { m.metrics = c }
}

// WithPipeline routes engineer_location frames through p.
func WithPipeline(p *LocationPipeline) Option {
	return func(m *Manager) { m.pipeline = p }
}

func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}
}

// link is one dialled connection and the goroutines serving it.
type link struct {
	id        string
	conn      Conn
	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

func (l *link) close() {
	l.closeOnce.Do(func() {
		close(l.closed)
		l.conn.Close()
	})
}

// Manager owns the single event-stream connection of a client process.
// It authenticates, routes decoded frames into the store and reconnects
// after a fixed delay until Stop is called.
type Manager struct {
	cfg       Config
	store     *eventstore.Store
	dialer    Dialer
	clock     Clock
	logger    *zap.Logger
	metrics   *metrics.Collector
	pipeline  *LocationPipeline
	observers []Observer

	mu          sync.Mutex
	state       State
	link        *link
	retry       Timer
	retrySeq    uint64
	stopped     bool
	runCtx      context.Context
	stopWatch   func() bool
	lastErr     error
	reconnects  int
	connectedAt time.Time

	// frameMu serialises frame handling and lets Stop wait out an
	// in-flight frame.
	frameMu sync.Mutex
}

// NewManager returns a disconnected Manager writing into store.
func NewManager(cfg Config, store *eventstore.Store, opts ...Option) (*Manager, error) {
	if cfg.URL == "" {
		return nil, errors.New("session: stream URL is required")
	}
	if store == nil {
		return nil, errors.New("session: event store is required")
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}

	m := &Manager{
		cfg:    cfg,
		store:  store,
		clock:  SystemClock,
		logger: zap.NewNop(),
		state:  StateDisconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dialer == nil {
		m.dialer = NewWebSocketDialer(cfg.HandshakeTimeout)
	}
	m.metrics.SetConnectionState(string(StateDisconnected), allStates...)
	return m, nil
}

// Start connects unless a connection is already open or being opened.
// A failed dial is reported and a reconnect is scheduled; cancelling ctx
// stops the manager.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrStopped
	}
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	if m.runCtx == nil {
		m.runCtx = ctx
		m.stopWatch = context.AfterFunc(ctx, m.Stop)
	}
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	emit := m.transitionLocked(StateConnecting)
	m.mu.Unlock()
	emit()

	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.HandshakeTimeout)
	conn, err := m.dialer.Dial(dialCtx, m.cfg.URL)
	cancel()
	if err != nil {
		m.onTransportError(err)
		m.onClose()
		return fmt.Errorf("failed to open event stream: %w", err)
	}

	l := &link{
		id:     uuid.NewString(),
		conn:   conn,
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		conn.Close()
		return ErrStopped
	}
	m.link = l
	m.mu.Unlock()

	m.logger.Info("event stream opened",
		zap.String("url", m.cfg.URL),
		zap.String("connection_id", l.id))

	go m.readLoop(l)

	if err := conn.WriteJSON(newAuthenticateFrame(m.cfg.Identity)); err != nil {
		m.logger.Warn("failed to send authentication frame", zap.Error(err))
		l.close()
		return fmt.Errorf("failed to authenticate: %w", err)
	}

	if m.cfg.PingInterval > 0 {
		go m.pingLoop(l)
	}
	return nil
}

// Stop closes the connection, cancels any pending reconnect and waits for
// in-flight frame handling to finish. No store mutation happens after
// Stop returns. Calling it again is a no-op.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	if m.stopWatch != nil {
		m.stopWatch()
	}
	l := m.link
	m.link = nil
	emit := m.transitionLocked(StateDisconnected)
	m.mu.Unlock()
	emit()

	if l != nil {
		l.close()
		<-l.done
	}

	m.frameMu.Lock()
	m.frameMu.Unlock()

	m.logger.Info("session stopped")
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status is a point-in-time view of the session.
type Status struct {
	State        State     `json:"state"`
	Label        string    `json:"label"`
	URL          string    `json:"url"`
	ConnectionID string    `json:"connectionId,omitempty"`
	ConnectedAt  time.Time `json:"connectedAt,omitempty"`
	Reconnects   int       `json:"reconnects"`
	RetryPending bool      `json:"retryPending"`
	Stopped      bool      `json:"stopped"`
	LastError    string    `json:"lastError,omitempty"`
}

// Status returns a snapshot of the session state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Status{
		State:        m.state,
		Label:        m.state.Label(),
		URL:          m.cfg.URL,
		Reconnects:   m.reconnects,
		RetryPending: m.retry != nil,
		Stopped:      m.stopped,
	}
	if m.link != nil {
		s.ConnectionID = m.link.id
	}
	if m.state == StateConnected {
		s.ConnectedAt = m.connectedAt
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	return s
}

// SendLocation reports this client's own position over the stream.
func (m *Manager) SendLocation(ctx context.Context, u LocationUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	l := m.link
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected || l == nil {
		return ErrNotConnected
	}
	if u.Timestamp.IsZero() {
		u.Timestamp = m.clock.Now()
	}
	if err := l.conn.WriteJSON(locationUpdateFrame{Type: KindLocationUpdate, Location: u}); err != nil {
		return fmt.Errorf("failed to send location update: %w", err)
	}
	return nil
}

func (m *Manager) readLoop(l *link) {
	defer close(l.done)

	for {
		raw, err := l.conn.ReadMessage()
		if err != nil {
			if !m.detach(l) {
				return
			}
			if !isCleanClose(err) {
				m.onTransportError(err)
			}
			m.onClose()
			return
		}
		m.handleFrame(raw)
	}
}

// detach clears l as the active link. It reports false when l was already
// replaced or the manager stopped, in which case no retry is owed.
func (m *Manager) detach(l *link) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	l.close()
	if m.link != l || m.stopped {
		return false
	}
	m.link = nil
	return true
}

func (m *Manager) pingLoop(l *link) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.closed:
			return
		case <-ticker.C:
			if err := l.conn.WriteJSON(pingFrame{Type: KindPing, Timestamp: m.clock.Now()}); err != nil {
				m.logger.Debug("keep-alive ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (m *Manager) onTransportError(err error) {
	m.mu.Lock()
	m.lastErr = err
	emit := func() {}
	if !m.stopped {
		emit = m.transitionLocked(StateDisconnected)
	}
	m.mu.Unlock()
	emit()

	m.logger.Warn("event stream transport error", zap.Error(err))
}

// onClose moves to Disconnected and schedules exactly one reconnect.
func (m *Manager) onClose() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	emit := m.transitionLocked(StateDisconnected)
	defer emit()
	defer m.mu.Unlock()

	if m.retry != nil {
		return
	}

	m.retrySeq++
	seq := m.retrySeq
	m.retry = m.clock.AfterFunc(m.cfg.ReconnectDelay, func() { m.fireRetry(seq) })

	m.logger.Info("event stream closed, reconnect scheduled",
		zap.Duration("delay", m.cfg.ReconnectDelay))
}

func (m *Manager) fireRetry(seq uint64) {
	m.mu.Lock()
	if m.stopped || m.retrySeq != seq || m.retry == nil {
		m.mu.Unlock()
		return
	}
	m.retry = nil
	m.reconnects++
	ctx := m.runCtx
	m.mu.Unlock()

	m.metrics.ReconnectAttempt()
	m.logger.Info("reconnecting to event stream", zap.String("url", m.cfg.URL))

	if err := m.Start(ctx); err != nil && !errors.Is(err, ErrStopped) {
		m.logger.Debug("reconnect attempt failed", zap.Error(err))
	}
}

// transitionLocked must be called with mu held. The returned func
// notifies observers and must be called after mu is released.
func (m *Manager) transitionLocked(to State) func() {
	from := m.state
	if from == to {
		return func() {}
	}
	m.state = to
	if to == StateConnected {
		m.connectedAt = m.clock.Now()
	}
	m.metrics.SetConnectionState(string(to), allStates...)
	m.logger.Info("session state changed",
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	return func() {
		for _, o := range m.observers {
			o.OnStateChange(from, to)
		}
	}
}

func (m *Manager) context() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runCtx == nil {
		return context.Background()
	}
	return m.runCtx
}

func (m *Manager) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func (m *Manager) handleFrame(raw []byte) {
	m.frameMu.Lock()
	defer m.frameMu.Unlock()

	if m.isStopped() {
		return
	}

	frame, err := DecodeFrame(raw)
	if err != nil {
		m.metrics.DecodeError("malformed")
		m.logger.Warn("dropping malformed frame", zap.Error(err))
		return
	}
	m.metrics.FrameReceived(string(frame.FrameKind()))
	m.dispatch(frame)
}

func (m *Manager) dispatch(frame Frame) {
	now := m.clock.Now()

	switch f := frame.(type) {
	case Authenticated:
		m.mu.Lock()
		emit := func() {}
		if !m.stopped {
			emit = m.transitionLocked(StateConnected)
		}
		m.mu.Unlock()
		emit()
		m.notify("✅ Real-time monitoring activated")

	case UserStatus:
		if f.Online {
			at := f.Timestamp
			if at.IsZero() {
				at = now
			}
			m.store.UpsertPresence(eventstore.PresenceEntry{
				UserID:       f.UserID,
				Role:         f.Role,
				ClientKind:   f.ClientType,
				LastActivity: at,
			})
			m.notify(fmt.Sprintf("🟢 %s %s connected via %s", f.Role, f.UserID, f.ClientType))
		} else {
			m.store.RemovePresence(eventstore.PresenceKey{UserID: f.UserID, ClientKind: f.ClientType})
			m.notify(fmt.Sprintf("🔴 %s %s disconnected from %s", f.Role, f.UserID, f.ClientType))
		}

	case TaskActivity:
		m.store.PushActivity(eventstore.ActivityEvent{
			Kind:         f.Activity,
			SubjectID:    f.TaskID,
			SubjectTitle: f.Title,
			Actor:        f.Actor,
			OccurredAt:   f.Timestamp,
			Changes:      f.Changes,
		})
		if f.Activity == eventstore.ActivityCreated {
			m.notify("📝 New task created: " + f.Title)
		} else {
			m.notify("📋 Task updated: " + f.Title)
		}

	case UserCreated:
		m.notify(fmt.Sprintf("👤 New %s created: %s %s", f.Role, f.FirstName, f.LastName))
		if f.CanLoginImmediately {
			m.notify(fmt.Sprintf("🔓 User %s can login immediately on mobile app", f.Username))
		}

	case EngineerLocation:
		captured := f.Timestamp
		if captured.IsZero() {
			captured = now
		}
		m.store.UpsertLocation(eventstore.LocationSample{
			UserID:     f.UserID,
			Latitude:   f.Point.Lat,
			Longitude:  f.Point.Lon,
			Accuracy:   f.Accuracy,
			Speed:      f.Speed,
			Heading:    f.Heading,
			CapturedAt: captured,
		})
		m.notify("📍 Location update from engineer " + f.UserID)
		if m.pipeline != nil {
			for _, msg := range m.pipeline.Process(m.context(), f, now) {
				m.notify(msg)
			}
		}

	case SystemNotification:
		m.notify("🔔 " + f.Message)

	case ServerError:
		m.logger.Warn("event stream reported an error", zap.String("message", f.Message))
		for _, o := range m.observers {
			o.OnServerError(f.Message)
		}

	case Pong:

	default:
		m.logger.Debug("ignoring unknown frame type", zap.String("type", string(frame.FrameKind())))
	}
}

func (m *Manager) notify(message string) {
	n := m.store.PushNotification(message)
	m.metrics.NotificationAppended()
	for _, o := range m.observers {
		o.OnNotification(n)
	}
}
