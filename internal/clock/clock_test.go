package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNowNsMonotonicNonDecreasing(t *testing.T) {
	c := New()
	prev := c.NowNs()
	for i := 0; i < 1000; i++ {
		cur := c.NowNs()
		require.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
}

func TestNowNsAdvancesWithRealTime(t *testing.T) {
	c := New()
	a := c.NowNs()
	time.Sleep(time.Millisecond)
	b := c.NowNs()
	require.Greater(t, b, a)
}

func TestThreadIDStablePerCall(t *testing.T) {
	a := ThreadID()
	b := ThreadID()
	require.Equal(t, a, b)
}
