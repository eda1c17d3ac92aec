package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jgirmay/livetrack/pkg/geofence"
	"github.com/jgirmay/livetrack/pkg/metrics"
	"github.com/jgirmay/livetrack/pkg/movement"
)

// ZoneProvider returns the currently active zones.
type ZoneProvider interface {
	Active() []geofence.Zone
}

// LocationPipeline derives zone transitions and travel-state changes from
// engineer location frames.
type LocationPipeline struct {
	zones      ZoneProvider
	evaluator  *geofence.Evaluator
	classifier *movement.Classifier
	history    movement.History
	metrics    *metrics.Collector
	logger     *zap.Logger
}

// PipelineOption configures a LocationPipeline.
type PipelineOption func(*LocationPipeline)

// WithHistory records every classified sample.
func WithHistory(h movement.History) PipelineOption {
	return func(p *LocationPipeline) { p.history = h }
}

// WithPipelineMetrics sets the metrics collector.
func WithPipelineMetrics(m *metrics.Collector) PipelineOption {
	return func(p *LocationPipeline) { p.metrics = m }
}

// WithPipelineLogger sets the logger.
func WithPipelineLogger(l *zap.Logger) PipelineOption {
	return func(p *LocationPipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewLocationPipeline wires the evaluator and classifier. zones and
// classifier may be nil to skip that stage.
func NewLocationPipeline(zones ZoneProvider, evaluator *geofence.Evaluator, classifier *movement.Classifier, opts ...PipelineOption) *LocationPipeline {
	if evaluator == nil {
		evaluator = geofence.NewEvaluator()
	}
	p := &LocationPipeline{
		zones:      zones,
		evaluator:  evaluator,
		classifier: classifier,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Evaluator exposes the membership state for read-only queries.
func (p *LocationPipeline) Evaluator() *geofence.Evaluator {
	return p.evaluator
}

// Process runs loc through the geofence and movement stages and returns
// the derived notification messages in emission order. at is used when
// the frame carries no timestamp.
func (p *LocationPipeline) Process(ctx context.Context, loc EngineerLocation, at time.Time) []string {
	if loc.Timestamp.IsZero() {
		loc.Timestamp = at
	}

	var messages []string

	if p.zones != nil {
		for _, t := range p.evaluator.Evaluate(loc.UserID, loc.Point, p.zones.Active()) {
			p.metrics.ZoneTransition(string(t.Kind), string(t.Zone.Kind))
			messages = append(messages, transitionMessage(t))
		}
	}

	if p.classifier != nil {
		result := p.classifier.Classify(movement.Observation{
			UserID:       loc.UserID,
			TaskID:       loc.TaskID,
			Point:        loc.Point,
			SpeedKmh:     loc.Speed,
			BatteryLevel: loc.BatteryLevel,
			Timestamp:    loc.Timestamp,
		})
		if result.Changed {
			p.metrics.MovementChange(string(result.Sample.Kind))
			messages = append(messages, fmt.Sprintf("🧭 %s is now %s", loc.UserID, result.Sample.Kind.Label()))
		}
		if p.history != nil {
			if err := p.history.Append(ctx, result.Sample); err != nil {
				p.logger.Warn("failed to record tracking sample",
					zap.String("user_id", loc.UserID),
					zap.Error(err))
			}
		}
	}

	return messages
}

func transitionMessage(t geofence.Transition) string {
	if t.Kind == geofence.ZoneEnter {
		return fmt.Sprintf("🚩 %s entered %s (%s)", t.UserID, t.Zone.Name, t.Zone.Kind)
	}
	return fmt.Sprintf("🏁 %s left %s (%s)", t.UserID, t.Zone.Name, t.Zone.Kind)
}
