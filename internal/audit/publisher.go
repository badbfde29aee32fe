package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Publisher decouples event emission from sink latency. Emit is
// non-blocking; a worker goroutine drains the inbox into every sink.
type Publisher struct {
	sinks  []Sink
	logger *slog.Logger

	inbox chan Event
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewPublisher constructs a publisher over the given sinks.
func NewPublisher(sinks []Sink, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		sinks:  sinks,
		logger: logger,
		inbox:  make(chan Event, 128),
		done:   make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (p *Publisher) Start() {
	go p.run()
}

// Stop drains the backlog and waits for the worker to exit.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
	p.mu.Unlock()
	<-p.done
}

// Emit queues an event. When the inbox is full the event is dropped
// with a warning; audit must never stall a domain operation.
func (p *Publisher) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.Warn("audit inbox full, dropping event",
			"action", event.Action, "subject", event.Subject)
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for event := range p.inbox {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		for _, sink := range p.sinks {
			if err := sink.Append(ctx, event); err != nil {
				p.logger.Error("audit sink append failed",
					"action", event.Action, "subject", event.Subject, "error", err)
			}
		}
		cancel()
	}
}
