// Package clock paces the tick loop toward a target update rate.
package clock

import "time"

// Clock computes how long to wait between ticks. It keeps a running mean of
// the observed tick period and corrects proportionally, so the long-run
// average converges on the target even when individual steps run long.
type Clock struct {
	targetNS  int64
	averageNS int64
	ticks     int64
	last      time.Time
	hasLast   bool

	now func() time.Time
}

func New(ups uint8) *Clock {
	c := &Clock{now: time.Now}
	c.SetRate(ups)
	return c
}

// SetRate resets the running average so the clock does not try to catch up
// on ticks measured at the previous rate. A rate of 0 is treated as 1.
// Pause, unlike SetRate, keeps the average: the first tick after a pause
// records no elapsed time and corrects from the average built so far.
func (c *Clock) SetRate(ups uint8) {
	if ups == 0 {
		ups = 1
	}
	c.averageNS = 0
	c.ticks = 0
	c.hasLast = false
	c.targetNS = int64(time.Second) / int64(ups)
}

// Rate returns the configured updates per second.
func (c *Clock) Rate() uint8 {
	return uint8(int64(time.Second) / c.targetNS)
}

func (c *Clock) Target() time.Duration { return time.Duration(c.targetNS) }

func (c *Clock) Average() time.Duration { return time.Duration(c.averageNS) }

func (c *Clock) Ticks() int64 { return c.ticks }

// Tick records a tick and returns the wait before the next one.
func (c *Clock) Tick() time.Duration {
	now := c.now()
	c.ticks++
	switch {
	case c.hasLast:
		elapsed := now.Sub(c.last).Nanoseconds()
		c.averageNS += (elapsed - c.averageNS) / c.ticks
	case c.ticks == 1:
		c.averageNS = c.targetNS
	}
	c.last = now
	c.hasLast = true

	d := 2*c.targetNS - c.averageNS
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Pause forgets the previous tick instant so a paused interval is not
// counted as elapsed time. The running average and tick count are kept.
func (c *Clock) Pause() {
	c.hasLast = false
}
