package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelayDoubles(t *testing.T) {
	opts := ConnectOptions{BaseDelay: time.Second, MaxDelay: time.Minute}.withDefaults()

	assert.Equal(t, time.Second, backoffDelay(opts, 0))
	assert.Equal(t, 2*time.Second, backoffDelay(opts, 1))
	assert.Equal(t, 8*time.Second, backoffDelay(opts, 3))
}

func TestBackoffDelayCapped(t *testing.T) {
	opts := ConnectOptions{BaseDelay: time.Second, MaxDelay: 5 * time.Second}.withDefaults()

	assert.Equal(t, 5*time.Second, backoffDelay(opts, 10))
	// Shift overflow must still land on the cap.
	assert.Equal(t, 5*time.Second, backoffDelay(opts, 62))
}

func TestWithDefaults(t *testing.T) {
	opts := ConnectOptions{}.withDefaults()

	assert.Equal(t, 6, opts.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, opts.BaseDelay)
	assert.Equal(t, 10*time.Second, opts.MaxDelay)
}
