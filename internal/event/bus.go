// Package event is a small in-process pub/sub bus for scan lifecycle
// notifications.
package event

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Type identifies a category of event.
type Type string

// Known event types.
const (
	ScanStarted   Type = "scan.started"
	PageScanned   Type = "page.scanned"
	ScanCompleted Type = "scan.completed"
	ScanCanceled  Type = "scan.canceled"
)

// Event represents something that happened in the system.
type Event struct {
	Type      Type           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Handler is a function that processes an event.
type Handler func(Event)

// Bus is an in-process event bus backed by a buffered channel. Publishing
// never blocks the scan loop; the buffer overflowing drops the event with
// a warning.
type Bus struct {
	ch     chan Event
	mu     sync.RWMutex
	subs   map[Type][]Handler
	logger *slog.Logger
}

// NewBus creates a new event bus with the given buffer size.
func NewBus(logger *slog.Logger, bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Bus{
		ch:     make(chan Event, bufSize),
		subs:   make(map[Type][]Handler),
		logger: logger,
	}
}

// Subscribe registers a handler for the given event type.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], h)
}

// Publish sends an event to the bus.
func (b *Bus) Publish(t Type, data map[string]any) {
	e := Event{Type: t, Timestamp: time.Now().UTC(), Data: data}
	select {
	case b.ch <- e:
	default:
		b.logger.Warn("event bus full, dropping event", "type", string(t))
	}
}

// Run drains the channel and dispatches events to subscribers until ctx is
// canceled, then delivers whatever is still buffered. Call in a goroutine.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case e := <-b.ch:
			b.dispatch(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-b.ch:
					b.dispatch(e)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) dispatch(e Event) {
	b.mu.RLock()
	handlers := b.subs[e.Type]
	b.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panicked", "type", string(e.Type), "panic", r)
				}
			}()
			h(e)
		}()
	}
}
