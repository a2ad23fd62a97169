package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/cimillas/live-commerce/internal/broadcast"
	"github.com/cimillas/live-commerce/internal/clock"
	"github.com/cimillas/live-commerce/internal/decimal"
	"github.com/cimillas/live-commerce/internal/domain"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/cimillas/live-commerce/internal/app")

// Publisher delivers committed changes to session viewers.
type Publisher interface {
	Publish(ctx context.Context, ev broadcast.Event)
}

// PickListNotifier tells the warehouse about cart changes.
type PickListNotifier interface {
	NotifyChange(ctx context.Context, sessionID string, change domain.PickChange, item *domain.LineItem)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, broadcast.Event) {}

type nopPickList struct{}

func (nopPickList) NotifyChange(context.Context, string, domain.PickChange, *domain.LineItem) {}

const (
	defaultWarningLead        = 5 * time.Minute
	defaultApproachingPercent = 80
)

type options struct {
	logger             *slog.Logger
	publisher          Publisher
	pickList           PickListNotifier
	policy             domain.LifecyclePolicy
	warningLead        time.Duration
	approachingPercent decimal.Decimal
	sessionTimeout     int
}

func buildOptions(opts []Option) options {
	o := options{
		logger:             slog.Default(),
		publisher:          nopPublisher{},
		pickList:           nopPickList{},
		policy:             domain.DefaultLifecyclePolicy(),
		warningLead:        defaultWarningLead,
		approachingPercent: decimal.FromInt(defaultApproachingPercent),
		sessionTimeout:     domain.DefaultTimeoutSeconds,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures any of the services in this package.
type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPublisher routes events to p once their transaction has committed.
func WithPublisher(p Publisher) Option {
	return func(o *options) {
		if p != nil {
			o.publisher = p
		}
	}
}

func WithPickListNotifier(n PickListNotifier) Option {
	return func(o *options) {
		if n != nil {
			o.pickList = n
		}
	}
}

// WithLifecyclePolicy overrides the extension window and cap.
func WithLifecyclePolicy(p domain.LifecyclePolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithSessionTimeout sets the timeout of sessions created without one.
func WithSessionTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= time.Second {
			o.sessionTimeout = int(d / time.Second)
		}
	}
}

// WithWarningLead sets how long before expiry timeout warnings start.
func WithWarningLead(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.warningLead = d
		}
	}
}

// WithApproachingPercent sets the share of the credit limit that triggers the
// APPROACHING warning.
func WithApproachingPercent(pct int) Option {
	return func(o *options) {
		if pct > 0 && pct <= 100 {
			o.approachingPercent = decimal.FromInt(int64(pct))
		}
	}
}

type emitter struct {
	publisher Publisher
	clock     clock.Clock
	logger    *slog.Logger
}

func newEmitter(o options, clk clock.Clock) emitter {
	return emitter{publisher: o.publisher, clock: clk, logger: o.logger}
}

func (e emitter) emit(ctx context.Context, typ broadcast.EventType, sessionID string, payload any) {
	e.emitOn(ctx, "", typ, sessionID, payload)
}

func (e emitter) emitOn(ctx context.Context, channel string, typ broadcast.EventType, sessionID string, payload any) {
	ev, err := broadcast.NewEvent(typ, sessionID, payload, e.clock.Now())
	if err != nil {
		e.logger.Error("build event", "type", typ, "session_id", sessionID, "error", err)
		return
	}
	if channel != "" {
		ev = ev.On(channel)
	}
	e.publisher.Publish(ctx, ev)
}
