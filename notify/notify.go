package notify

import (
	"sync"
	"sync/atomic"
	"time"
)

// Level is the severity of a notification
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notification is a message for the operator
type Notification struct {
	Level   Level
	Title   string
	Message string
	Time    time.Time
}

// Notifier delivers notifications without blocking the caller
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to Notifier
type Func func(Notification)

// Notify calls f
func (f Func) Notify(n Notification) {
	f(n)
}

// Discard drops every notification
var Discard Notifier = Func(func(Notification) {})

// Hub fans notifications out to channel subscribers and listener callbacks
type Hub struct {
	mu          sync.RWMutex
	subscribers map[int]chan Notification
	listeners   []func(Notification)
	nextID      int
	dropped     atomic.Uint64
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[int]chan Notification),
	}
}

// On adds a listener. Each listener runs on its own goroutine per notification
func (h *Hub) On(handler func(Notification)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.listeners = append(h.listeners, handler)
}

// Subscribe returns a buffered channel receiving every notification and a cancel
// func that unsubscribes and closes it. A full buffer drops the notification
func (h *Hub) Subscribe(buffer int) (<-chan Notification, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Notification, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subscribers[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Notify delivers n to all subscribers and listeners
func (h *Hub) Notify(n Notification) {
	if n.Time.IsZero() {
		n.Time = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subscribers {
		select {
		case ch <- n:
		default:
			h.dropped.Add(1)
		}
	}
	for _, handler := range h.listeners {
		go handler(n)
	}
}

// Dropped returns how many deliveries were dropped on full subscriber buffers
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Error is a shorthand for an error-level notification
func Error(title, message string) Notification {
	return Notification{Level: LevelError, Title: title, Message: message, Time: time.Now()}
}

// Info is a shorthand for an info-level notification
func Info(title, message string) Notification {
	return Notification{Level: LevelInfo, Title: title, Message: message, Time: time.Now()}
}

// Success is a shorthand for a success-level notification
func Success(title, message string) Notification {
	return Notification{Level: LevelSuccess, Title: title, Message: message, Time: time.Now()}
}

// Warning is a shorthand for a warning-level notification
func Warning(title, message string) Notification {
	return Notification{Level: LevelWarning, Title: title, Message: message, Time: time.Now()}
}
