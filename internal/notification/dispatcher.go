// Package notification delivers engine notices to the employee inbox.
// Delivery is best effort: a failure is logged and never reaches the caller.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"taskflow/internal/logging"
	"taskflow/internal/metrics"
	"taskflow/internal/model"
)

// Store persists inbox notifications.
type Store interface {
	Create(ctx context.Context, n *model.Notification) error
}

type DispatcherConfig struct {
	Store   Store
	Metrics metrics.Recorder
	Logger  logrus.FieldLogger
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before letting a probe through.
	OpenTimeout time.Duration
	Clock       func() time.Time
}

func (c *DispatcherConfig) defaults() error {
	if c.Store == nil {
		return fmt.Errorf("store is required")
	}
	if c.Metrics == nil {
		c.Metrics = metrics.Noop
	}
	if c.Logger == nil {
		c.Logger = logging.Logger
	}
	if c.MaxFailures == 0 {
		c.MaxFailures = 3
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 5 * time.Second
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	c.Logger = c.Logger.WithField("svc", "notification.Dispatcher")
	return nil
}

// Dispatcher guards the inbox store with a circuit breaker.
type Dispatcher struct {
	store   Store
	breaker *gobreaker.CircuitBreaker
	metrics metrics.Recorder
	logger  logrus.FieldLogger
	clock   func() time.Time
}

func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := cfg.Logger
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notifications-cb",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Infof("Circuit breaker '%s' changed from '%s' to '%s'", name, from.String(), to.String())
		},
	})

	return &Dispatcher{
		store:   cfg.Store,
		breaker: breaker,
		metrics: cfg.Metrics,
		logger:  logger,
		clock:   cfg.Clock,
	}, nil
}

// Notify stores a notice for the user.
func (d *Dispatcher) Notify(ctx context.Context, userID int64, title, content string) {
	n := &model.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		Content:   content,
		CreatedAt: d.clock(),
	}

	_, err := d.breaker.Execute(func() (interface{}, error) {
		return nil, d.store.Create(ctx, n)
	})
	switch {
	case err == nil:
		d.metrics.Notification(metrics.NotificationSent)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		d.metrics.Notification(metrics.NotificationRejected)
		d.logger.WithFields(logrus.Fields{"user_id": userID, "title": title}).
			Warnf("notification dropped: %v", err)
	default:
		d.metrics.Notification(metrics.NotificationFailed)
		d.logger.WithFields(logrus.Fields{"user_id": userID, "title": title}).
			Warnf("notification failed: %v", err)
	}
}

// State reports the breaker state.
func (d *Dispatcher) State() gobreaker.State {
	return d.breaker.State()
}
