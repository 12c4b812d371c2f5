// Package pulse implements the heartbeat-interval timer each membership
// peer uses to decide when it is due to send its next heartbeat.
package pulse

import "time"

// Pulse tracks elapsed time against a fixed timeout and reports when it
// has elapsed, resetting itself on each positive report. It has no
// internal goroutine or ticker; callers drive it by calling Beat from
// their own loop, matching the original's poll-driven design.
type Pulse struct {
	interval time.Duration
	cTime    time.Time
	timeout  time.Duration
}

// New returns a Pulse with the given interval, started as of now.
func New(interval time.Duration) *Pulse {
	return &Pulse{
		interval: interval,
		cTime:    time.Now(),
		timeout:  interval,
	}
}

// Beat reports whether the timeout has elapsed since the last positive
// Beat (or since New), resetting the internal clock when it has.
func (p *Pulse) Beat() bool {
	if time.Since(p.cTime) > p.timeout {
		p.cTime = time.Now()
		return true
	}
	return false
}

// Interval returns the configured heartbeat interval.
func (p *Pulse) Interval() time.Duration { return p.interval }
