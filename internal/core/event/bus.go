package event

import (
	"reflect"
	"sync"
)

type queued struct {
	seq uint64
	t   reflect.Type
	ev  any
}

// Bus is a double-buffered event bus. Events emitted before a SwapBuffers
// call are delivered, in emission order, by the DispatchAll that follows
// it. Emit is safe from any goroutine; SwapBuffers and DispatchAll belong
// to the tick loop.
//
// Every event gets a sequence number at Emit, starting at 1.
type Bus struct {
	mu       sync.Mutex // protects back, seq and handlers
	front    []queued
	back     []queued
	seq      uint64
	current  uint64 // seq of the event being delivered; tick loop only
	handlers map[reflect.Type][]func(any)
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[reflect.Type][]func(any)),
	}
}

// Emit queues an event into the back buffer.
func Emit[T any](b *Bus, event T) {
	if b == nil {
		return
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.mu.Lock()
	b.seq++
	b.back = append(b.back, queued{seq: b.seq, t: t, ev: event})
	b.mu.Unlock()
}

// Seq returns the sequence number of the most recently emitted event, or 0
// if nothing has been emitted. A nil bus reports 0.
func (b *Bus) Seq() uint64 {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// Current returns the sequence number of the event DispatchAll is
// delivering, or 0 outside a dispatch.
func (b *Bus) Current() uint64 {
	if b == nil {
		return 0
	}
	return b.current
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.handlers[t] = append(b.handlers[t], func(ev any) { fn(ev.(T)) })
}

// SwapBuffers rotates back→front and clears the new back buffer.
func (b *Bus) SwapBuffers() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.front, b.back = b.back, b.front[:0]
}

// DispatchAll delivers all front-buffer events to their subscribed handlers.
// Handlers run without the bus lock and may Emit.
func (b *Bus) DispatchAll() int {
	for i, q := range b.front {
		b.mu.Lock()
		handlers := b.handlers[q.t]
		b.mu.Unlock()
		b.current = q.seq
		for _, h := range handlers {
			h(q.ev)
		}
		b.front[i] = queued{}
	}
	b.current = 0
	n := len(b.front)
	b.front = b.front[:0]
	return n
}

// Pending returns the number of events waiting in the back buffer.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.back)
}
