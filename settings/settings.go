// Package settings holds the process-wide evaluation date.
package settings

import (
	"sync"
	"time"

	"github.com/meenmo/volcube/quote"
)

var (
	mu             sync.RWMutex
	evaluationDate time.Time
	notifier       quote.Notifier
)

// EvaluationDate returns the evaluation date. When none has been set it is
// today's date in UTC.
func EvaluationDate() time.Time {
	mu.RLock()
	d := evaluationDate
	mu.RUnlock()
	if d.IsZero() {
		y, m, dd := time.Now().UTC().Date()
		return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
	}
	return d
}

// SetEvaluationDate fixes the evaluation date and notifies subscribers if it
// changed. A zero date reverts to "today".
func SetEvaluationDate(d time.Time) {
	if !d.IsZero() {
		y, m, dd := d.Date()
		d = time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
	}
	mu.Lock()
	changed := !d.Equal(evaluationDate)
	evaluationDate = d
	mu.Unlock()
	if changed {
		notifier.Notify()
	}
}

// SubscribeEvaluationDate registers fn to run whenever the evaluation date changes.
func SubscribeEvaluationDate(fn func()) *quote.Subscription {
	return notifier.Subscribe(fn)
}
