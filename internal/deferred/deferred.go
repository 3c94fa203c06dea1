// Package deferred schedules fire-and-forget callbacks for the coordinator's
// consistency delays. Callbacks run on their own goroutine once the clock
// fires; callers must re-check any membership they depend on before
// mutating, since the callback may run after the coordinator state has
// already moved on.
package deferred

import (
	"time"

	"github.com/brightcrawl/rqueue/internal/clock"
)

// After schedules fn to run once d has elapsed on c. It returns
// immediately; fn runs on a new goroutine when the timer fires.
func After(c clock.Clock, d time.Duration, fn func()) {
	fired := c.After(d)
	go func() {
		<-fired
		fn()
	}()
}
