package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay(t *testing.T) {
	b := DefaultBackoff()
	tests := []struct {
		n    uint
		want time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{6, 30 * time.Second},
		{1000, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := b.Delay(tt.n); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestBackoffMonotoneAndCapped(t *testing.T) {
	b := Backoff{Initial: 300 * time.Millisecond, Max: 7 * time.Second, Multiplier: 1.5}
	prev := time.Duration(0)
	for n := uint(0); n < 64; n++ {
		d := b.Delay(n)
		assert.GreaterOrEqual(t, d, prev, "n=%d", n)
		assert.LessOrEqual(t, d, b.Max, "n=%d", n)
		prev = d
	}
	assert.Equal(t, b.Max, b.Delay(63))
}

func TestBackoffEdgeCases(t *testing.T) {
	assert.Equal(t, time.Duration(0), Backoff{}.Delay(3))
	assert.Equal(t, 5*time.Second, Backoff{Initial: 10 * time.Second, Max: 5 * time.Second, Multiplier: 2}.Delay(0))
	assert.Equal(t, time.Second, Backoff{Initial: time.Second, Max: time.Minute, Multiplier: 1}.Delay(9))
	assert.Equal(t, 30*time.Second, Backoff{Initial: time.Second, Multiplier: 2}.Delay(10))
}

func TestResetRestartsFromInitial(t *testing.T) {
	h := &restartHandle{shared: &shared{stopped: make(chan struct{})}, backoff: DefaultBackoff()}
	for i := 0; i < 4; i++ {
		h.increment()
	}
	assert.Equal(t, 16*time.Second, h.backoff.Delay(h.count()))

	h.reset()
	assert.Equal(t, uint(0), h.count())
	assert.Equal(t, time.Second, h.backoff.Delay(h.count()))
}
