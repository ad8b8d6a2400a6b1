package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		name     string
		attempts int
		want     time.Duration
	}{
		{name: "no failures yet", attempts: 0, want: 0},
		{name: "one failure", attempts: 1, want: 1 * time.Second},
		{name: "two failures", attempts: 2, want: 5 * time.Second},
		{name: "three failures", attempts: 3, want: 30 * time.Second},
		{name: "beyond the schedule uses the cap", attempts: 10, want: 30 * time.Second},
		{name: "negative clamps to zero", attempts: -1, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, backoffDelay(DefaultBackoff, tt.attempts))
		})
	}
}

func TestBackoffScheduleIsMonotonic(t *testing.T) {
	for i := 1; i < len(DefaultBackoff); i++ {
		assert.GreaterOrEqual(t, DefaultBackoff[i], DefaultBackoff[i-1])
	}
}

func TestBackoffDelayEmptySchedule(t *testing.T) {
	assert.Equal(t, time.Duration(0), backoffDelay(nil, 3))
}
