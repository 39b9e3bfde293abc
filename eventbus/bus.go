// Package eventbus implements the in-process fan-out of process lifecycle
// and LLM/tool interaction events described in §4.2. It is a side-channel:
// nothing on the planner→action→blackboard critical path depends on a
// listener's return value, and a misbehaving listener must never stop
// delivery to the others.
package eventbus

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
	"unsafe"
)

type (
	// Bus publishes events to every registered Listener in a synchronous
	// fan-out. Dispatch happens on the caller's goroutine; a Listener that
	// panics or returns an error is logged on the bus's diagnostic logger and
	// does not prevent delivery to the remaining listeners (§4.2).
	//
	// Events published for the same process are delivered to each listener in
	// the order they occur. Events from different processes have no defined
	// relative ordering; listeners must use Event.ProcessID to disambiguate.
	Bus interface {
		// Publish delivers event to every currently registered listener.
		Publish(ctx context.Context, event Event)

		// Register adds listener to the bus and returns a Subscription that
		// can be closed to unregister. Registering the same listener twice is
		// idempotent: the second call is a no-op and returns the existing
		// subscription's Close behavior.
		Register(listener Listener) Subscription
	}

	// Listener reacts to published events. HandleEvent may return an error to
	// report a processing failure; the Bus logs it on the diagnostic channel
	// and continues delivering to other listeners (errors never propagate to
	// the publisher and never stop the process loop).
	Listener interface {
		HandleEvent(ctx context.Context, event Event) error
	}

	// ListenerFunc adapts a plain function to the Listener interface.
	ListenerFunc func(ctx context.Context, event Event) error

	// Subscription represents an active registration. Close is idempotent and
	// thread-safe; unregistering a subscription that was already closed, or
	// that was never registered (a nil Subscription), is always safe.
	Subscription interface {
		Close()
	}
)

// HandleEvent implements Listener for ListenerFunc.
func (f ListenerFunc) HandleEvent(ctx context.Context, event Event) error { return f(ctx, event) }

type bus struct {
	mu        sync.RWMutex
	listeners map[*subscription]Listener
	order     []*subscription
	logger    *slog.Logger
}

type subscription struct {
	b    *bus
	once sync.Once
}

func (s *subscription) Close() {
	if s == nil || s.b == nil {
		return
	}
	s.once.Do(func() {
		s.b.mu.Lock()
		defer s.b.mu.Unlock()
		delete(s.b.listeners, s)
		for i, sub := range s.b.order {
			if sub == s {
				s.b.order = append(s.b.order[:i], s.b.order[i+1:]...)
				break
			}
		}
	})
}

// New returns a Bus ready for immediate use. An optional logger receives
// diagnostics about listener failures; if nil, slog.Default() is used.
func New(logger *slog.Logger) Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &bus{listeners: make(map[*subscription]Listener), logger: logger}
}

func (b *bus) Register(listener Listener) Subscription {
	if listener == nil {
		return &subscription{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub, l := range b.listeners {
		if sameListener(l, listener) {
			return sub
		}
	}
	s := &subscription{b: b}
	b.listeners[s] = listener
	b.order = append(b.order, s)
	return s
}

// sameListener reports whether a and b are the same listener. ListenerFunc
// values cannot be compared with ==, so they are matched by the identity of
// the function value; other non-comparable listener types never match.
func sameListener(a, b Listener) bool {
	if fa, ok := a.(ListenerFunc); ok {
		fb, ok := b.(ListenerFunc)
		return ok && *(*unsafe.Pointer)(unsafe.Pointer(&fa)) == *(*unsafe.Pointer)(unsafe.Pointer(&fb))
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}

// Publish delivers event to a snapshot of the currently registered listeners,
// in registration order, weak against concurrent Register/Close calls made
// during delivery. A listener error (or panic, recovered here) is logged and
// swallowed; it never stops delivery to subsequent listeners and is never
// surfaced to the caller of Publish.
func (b *bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	snapshot := make([]Listener, 0, len(b.order))
	for _, sub := range b.order {
		snapshot = append(snapshot, b.listeners[sub])
	}
	b.mu.RUnlock()

	for _, l := range snapshot {
		b.dispatchOne(ctx, l, event)
	}
}

func (b *bus) dispatchOne(ctx context.Context, l Listener, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event listener panicked", "kind", event.Kind, "process_id", event.ProcessID, "panic", r)
		}
	}()
	if err := l.HandleEvent(ctx, event); err != nil {
		b.logger.Warn("event listener returned an error", "kind", event.Kind, "process_id", event.ProcessID, "error", err)
	}
}
