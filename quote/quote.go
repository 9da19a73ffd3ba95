package quote

import (
	"errors"
	"math"
	"sync"

	"github.com/google/uuid"
)

// ErrInvalidQuote is returned when reading a quote that holds no value.
var ErrInvalidQuote = errors.New("quote: invalid quote")

// Observable is anything that announces changes to subscribers.
type Observable interface {
	Subscribe(fn func()) *Subscription
}

// Subscription is returned by Subscribe and cancels the callback.
type Subscription struct {
	id       uuid.UUID
	notifier *Notifier
}

// ID returns the subscription identity.
func (s *Subscription) ID() uuid.UUID { return s.id }

// Unsubscribe removes the callback. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.notifier == nil {
		return
	}
	s.notifier.remove(s.id)
	s.notifier = nil
}

type observer struct {
	id uuid.UUID
	fn func()
}

// Notifier keeps an ordered list of callbacks. Callbacks run synchronously
// in subscription order.
type Notifier struct {
	mu        sync.Mutex
	observers []observer
}

// Subscribe registers fn and returns its subscription.
func (n *Notifier) Subscribe(fn func()) *Subscription {
	id := uuid.New()
	n.mu.Lock()
	n.observers = append(n.observers, observer{id: id, fn: fn})
	n.mu.Unlock()
	return &Subscription{id: id, notifier: n}
}

func (n *Notifier) remove(id uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, o := range n.observers {
		if o.id == id {
			n.observers = append(n.observers[:i], n.observers[i+1:]...)
			return
		}
	}
}

// Observers returns the current subscriber count.
func (n *Notifier) Observers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.observers)
}

// Notify calls every subscriber. The list is copied first so callbacks may
// subscribe or unsubscribe.
func (n *Notifier) Notify() {
	n.mu.Lock()
	obs := make([]observer, len(n.observers))
	copy(obs, n.observers)
	n.mu.Unlock()
	for _, o := range obs {
		o.fn()
	}
}

// Quote is the read-only view of an observable market value.
type Quote interface {
	Observable
	Value() float64
	IsValid() bool
}

// SimpleQuote is a mutable quote cell owned by the market layer.
type SimpleQuote struct {
	Notifier
	value float64
	valid bool
}

// NewSimpleQuote returns a valid quote holding v.
func NewSimpleQuote(v float64) *SimpleQuote {
	return &SimpleQuote{value: v, valid: true}
}

// Value returns the stored value (NaN when invalid).
func (q *SimpleQuote) Value() float64 {
	if !q.valid {
		return math.NaN()
	}
	return q.value
}

// IsValid reports whether the quote holds a value.
func (q *SimpleQuote) IsValid() bool { return q.valid }

// SetValue stores v and notifies subscribers if the value changed. It
// returns the difference to the previous value.
func (q *SimpleQuote) SetValue(v float64) float64 {
	diff := v - q.value
	if diff != 0 || !q.valid {
		q.value = v
		q.valid = true
		q.Notify()
	}
	return diff
}

// Reset invalidates the quote.
func (q *SimpleQuote) Reset() {
	if q.valid {
		q.valid = false
		q.Notify()
	}
}

// ValueOf reads a quote, failing on nil or invalid quotes.
func ValueOf(q Quote) (float64, error) {
	if q == nil || !q.IsValid() {
		return 0, ErrInvalidQuote
	}
	return q.Value(), nil
}
