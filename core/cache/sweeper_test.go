package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper(t *testing.T) {
	reg, clock := newTestRegistry()
	ns := NewNamespace[int](reg, "numbers", time.Minute)
	ns.Set("a", 1, 0)
	clock.Advance(2 * time.Minute)

	s, err := NewSweeper(reg, "@every 1s", nil)
	require.NoError(t, err)
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		reg.mu.RLock()
		defer reg.mu.RUnlock()
		return len(reg.spaces["numbers"]) == 0
	}, 3*time.Second, 50*time.Millisecond)
}

func TestNewSweeper_badSchedule(t *testing.T) {
	reg, _ := newTestRegistry()
	_, err := NewSweeper(reg, "every now and then", nil)
	assert.Error(t, err)
}
