package deferred

import (
	"testing"
	"time"

	"github.com/brightcrawl/rqueue/internal/clock/manual"
)

func TestAfterFiresOnceClockAdvancesPastDelay(t *testing.T) {
	t.Parallel()

	c := manual.New(time.Unix(0, 0))
	done := make(chan struct{})
	After(c, 3*time.Second, func() { close(done) })

	select {
	case <-done:
		t.Fatal("fired before clock advanced")
	case <-time.After(20 * time.Millisecond):
	}

	c.Advance(3 * time.Second)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback did not fire after advance")
	}
}
