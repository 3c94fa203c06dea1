package manual

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockAdvanceFiresDueTimers(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := New(start)

	ch := clk.After(3 * time.Second)
	require.Equal(t, 1, clk.Pending())

	clk.Advance(2 * time.Second)
	select {
	case <-ch:
		t.Fatal("timer fired before due")
	default:
	}

	got := clk.Advance(2 * time.Second)
	assert.Equal(t, start.Add(4*time.Second), got)

	select {
	case fired := <-ch:
		assert.Equal(t, start.Add(4*time.Second), fired)
	default:
		t.Fatal("expected timer to have fired")
	}
	assert.Equal(t, 0, clk.Pending())
}

func TestClockSleepBlocksUntilAdvanced(t *testing.T) {
	t.Parallel()

	clk := New(time.Unix(0, 0))
	done := make(chan struct{})
	go func() {
		clk.Sleep(time.Minute)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Sleep returned before the clock advanced")
	case <-time.After(20 * time.Millisecond):
	}

	clk.Advance(time.Minute)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Sleep never returned after advancing")
	}
}

func TestClockAfterNonPositiveFiresImmediately(t *testing.T) {
	t.Parallel()

	clk := New(time.Unix(0, 0))
	select {
	case <-clk.After(0):
	case <-time.After(time.Second):
		t.Fatal("After(0) never fired")
	}
}
