package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"admission/internal/platform/metrics"
	"admission/internal/registration/models"
	"admission/pkg/platform/sentinel"
)

// StatusStore is the slice of the registration store the dispatcher
// needs to record delivery flags.
type StatusStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	Update(ctx context.Context, reg *models.Registration) error
}

// Dispatcher fans queued messages out to every configured channel from
// a single worker goroutine. Enqueue never blocks; when the queue is
// full the message is dropped with a warning. Send failures are logged
// and counted, nothing more.
type Dispatcher struct {
	channels []Channel
	store    StatusStore
	logger   *slog.Logger
	metrics  *metrics.Metrics

	queue chan Message
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithStatusStore lets the dispatcher record best-effort delivery flags
// on the registration after a successful send.
func WithStatusStore(store StatusStore) DispatcherOption {
	return func(d *Dispatcher) { d.store = store }
}

// WithMetrics wires delivery counters.
func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher constructs a dispatcher with the given queue capacity.
func NewDispatcher(channels []Channel, queueSize int, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		channels: channels,
		logger:   logger,
		queue:    make(chan Message, queueSize),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Start launches the worker goroutine. The worker drains the queue
// until Stop is called, then finishes the backlog and exits.
func (d *Dispatcher) Start() {
	go d.run()
}

// Stop closes the queue and waits for the backlog to drain.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}

// Enqueue hands a message to the worker. It reports false when the
// message was dropped because the queue is full or the dispatcher has
// stopped.
func (d *Dispatcher) Enqueue(msg Message) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- msg:
		return true
	default:
		d.logger.Warn("notification queue full, dropping message",
			"kind", msg.Kind,
			"registration_number", msg.Registration.Number)
		if d.metrics != nil {
			d.metrics.NotificationsDropped.Inc()
		}
		return false
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for msg := range d.queue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var delivered []string
	for _, ch := range d.channels {
		if err := ch.Send(ctx, msg); err != nil {
			d.logger.Error("notification delivery failed",
				"channel", ch.Name(),
				"kind", msg.Kind,
				"registration_number", msg.Registration.Number,
				"error", err)
			if d.metrics != nil {
				d.metrics.NotificationsFailed.WithLabelValues(ch.Name()).Inc()
			}
			continue
		}
		if d.metrics != nil {
			d.metrics.NotificationsSent.WithLabelValues(ch.Name()).Inc()
		}
		delivered = append(delivered, ch.Name())
	}
	if len(delivered) > 0 {
		d.recordDelivery(ctx, msg.Registration.ID, delivered)
	}
}

// recordDelivery flips the sent flags on the stored record. One retry
// on a stale version, then give up; the flags are informational.
func (d *Dispatcher) recordDelivery(ctx context.Context, id uuid.UUID, channels []string) {
	if d.store == nil {
		return
	}
	for attempt := 0; attempt < 2; attempt++ {
		reg, err := d.store.FindByID(ctx, id)
		if err != nil {
			d.logger.Warn("cannot record notification delivery", "registration_id", id, "error", err)
			return
		}
		now := time.Now()
		for _, ch := range channels {
			switch ch {
			case "email":
				reg.Notification.EmailSent = true
			case "sms":
				reg.Notification.SMSSent = true
			}
		}
		reg.Notification.LastSentAt = &now

		err = d.store.Update(ctx, reg)
		if err == nil {
			return
		}
		if !errors.Is(err, sentinel.ErrStaleVersion) {
			d.logger.Warn("cannot record notification delivery", "registration_id", id, "error", err)
			return
		}
	}
}
