package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/puzpuzpuz/xsync/v3"
)

const DefaultQueueSize = 100

// ReportEvent is a crash event the submission gate accepted.
type ReportEvent struct {
	ReportID    string    `json:"report_id"`
	Database    string    `json:"database"`
	Application string    `json:"application"`
	Version     string    `json:"version"`
	Kind        string    `json:"kind"`
	Severity    string    `json:"severity"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	Stack       string    `json:"stack,omitempty"`
	Editor      bool      `json:"editor"`
	Attachments []string  `json:"attachments,omitempty"`
	Time        time.Time `json:"time"`
}

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// EventBus hands accepted events to a publisher on a background goroutine so that
// request handlers never wait on the message broker.
type EventBus struct {
	publisher Publisher
	subject   string
	observer  func(error)

	mu         sync.RWMutex
	closed     bool
	eventQueue chan ReportEvent
	done       chan struct{}

	published *xsync.Counter
	failed    *xsync.Counter
	dropped   *xsync.Counter
}

func NewEventBus(publisher Publisher, subject string, size int) *EventBus {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &EventBus{
		publisher:  publisher,
		subject:    subject,
		eventQueue: make(chan ReportEvent, size),
		done:       make(chan struct{}),
		published:  xsync.NewCounter(),
		failed:     xsync.NewCounter(),
		dropped:    xsync.NewCounter(),
	}
}

// SetObserver registers a callback invoked after every publish attempt. It must be
// called before Start.
func (eb *EventBus) SetObserver(observer func(error)) {
	eb.observer = observer
}

func (eb *EventBus) Start() {
	go eb.run()
}

func (eb *EventBus) run() {
	defer close(eb.done)
	for event := range eb.eventQueue {
		data, err := json.Marshal(event)
		if err == nil {
			err = eb.publisher.Publish(eb.subject, data)
		}
		if err != nil {
			eb.failed.Inc()
			slog.Error("Failed to publish crash event", "report_id", event.ReportID, "error", err)
		} else {
			eb.published.Inc()
		}
		if eb.observer != nil {
			eb.observer(err)
		}
	}
}

// Publish queues an event. It never blocks: when the queue is full or the bus is
// closed the event is dropped and false is returned.
func (eb *EventBus) Publish(event ReportEvent) bool {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if eb.closed {
		eb.dropped.Inc()
		return false
	}
	select {
	case eb.eventQueue <- event:
		return true
	default:
		eb.dropped.Inc()
		slog.Warn("Crash event queue full, dropping event", "report_id", event.ReportID)
		return false
	}
}

// Close stops accepting events and waits until queued ones are published or ctx
// ends.
func (eb *EventBus) Close(ctx context.Context) error {
	eb.mu.Lock()
	if !eb.closed {
		eb.closed = true
		close(eb.eventQueue)
	}
	eb.mu.Unlock()

	select {
	case <-eb.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type Stats struct {
	Published int64 `json:"published"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

func (eb *EventBus) Stats() Stats {
	return Stats{
		Published: eb.published.Value(),
		Failed:    eb.failed.Value(),
		Dropped:   eb.dropped.Value(),
	}
}

// Connect opens a NATS connection that keeps reconnecting in the background.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("crashgate"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("Disconnected from NATS", "error", err)
			}
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			slog.Info("Reconnected to NATS", "url", conn.ConnectedUrl())
		}),
	)
}

// discard is used when no broker is configured.
type discard struct{}

func (discard) Publish(string, []byte) error { return nil }

// Discard returns a publisher that drops everything.
func Discard() Publisher {
	return discard{}
}
