package curve

import (
	"time"

	"github.com/meenmo/volcube/quote"
)

// Handle is a relinkable reference to a curve. Relinking notifies
// subscribers so dependent indices and cubes can mark themselves stale.
type Handle struct {
	quote.Notifier
	curve DiscountCurve
}

// NewHandle returns a handle pointing at c (which may be nil).
func NewHandle(c DiscountCurve) *Handle {
	return &Handle{curve: c}
}

// LinkTo points the handle at c and notifies subscribers.
func (h *Handle) LinkTo(c DiscountCurve) {
	h.curve = c
	h.Notify()
}

// Current returns the linked curve.
func (h *Handle) Current() DiscountCurve {
	if h == nil {
		return nil
	}
	return h.curve
}

// Empty reports whether no curve is linked.
func (h *Handle) Empty() bool {
	return h == nil || h.curve == nil
}

// DF forwards to the linked curve.
func (h *Handle) DF(t time.Time) float64 {
	return h.curve.DF(t)
}
