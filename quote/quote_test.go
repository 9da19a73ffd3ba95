package quote_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/volcube/quote"
)

func TestSimpleQuote_NotifiesOnChangeOnly(t *testing.T) {
	t.Parallel()

	q := quote.NewSimpleQuote(0.01)
	calls := 0
	sub := q.Subscribe(func() { calls++ })

	q.SetValue(0.01)
	assert.Equal(t, 0, calls)

	diff := q.SetValue(0.015)
	assert.InDelta(t, 0.005, diff, 1e-15)
	assert.Equal(t, 1, calls)

	sub.Unsubscribe()
	sub.Unsubscribe()
	q.SetValue(0.02)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, q.Observers())
}

func TestSimpleQuote_Reset(t *testing.T) {
	t.Parallel()

	q := quote.NewSimpleQuote(1)
	calls := 0
	q.Subscribe(func() { calls++ })

	q.Reset()
	assert.False(t, q.IsValid())
	assert.Equal(t, 1, calls)

	_, err := quote.ValueOf(q)
	assert.ErrorIs(t, err, quote.ErrInvalidQuote)

	q.SetValue(0)
	v, err := quote.ValueOf(q)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
	assert.Equal(t, 2, calls)
}

func TestNotifier_OrderAndReentrantUnsubscribe(t *testing.T) {
	t.Parallel()

	var n quote.Notifier
	var order []int
	var second *quote.Subscription
	n.Subscribe(func() {
		order = append(order, 1)
		second.Unsubscribe()
	})
	second = n.Subscribe(func() { order = append(order, 2) })
	n.Subscribe(func() { order = append(order, 3) })

	n.Notify()
	assert.Equal(t, []int{1, 2, 3}, order)

	order = nil
	n.Notify()
	assert.Equal(t, []int{1, 3}, order)
}

func TestValueOf_Nil(t *testing.T) {
	t.Parallel()

	_, err := quote.ValueOf(nil)
	assert.ErrorIs(t, err, quote.ErrInvalidQuote)
}
