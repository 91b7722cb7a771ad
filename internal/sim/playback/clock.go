package playback

import (
	"context"
	"sync"
	"time"

	"voxelreplay.ai/internal/sim/timeline"
)

// Clock drives a Simulation from wall time. Explicit seek requests
// supersede each other: only the latest pending target is applied.
type Clock struct {
	sim  *Simulation
	tick time.Duration

	mu      sync.Mutex
	playing bool
	speed   float64

	pending chan timeline.Stamp
}

func NewClock(sim *Simulation, tick time.Duration, speed float64) *Clock {
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	if speed <= 0 {
		speed = 1
	}
	return &Clock{
		sim:     sim,
		tick:    tick,
		speed:   speed,
		pending: make(chan timeline.Stamp, 1),
	}
}

// Play starts advancing at speed timeline seconds per wall second. A
// non-positive speed keeps the current one.
func (c *Clock) Play(speed float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if speed > 0 {
		c.speed = speed
	}
	c.playing = true
}

func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = false
}

func (c *Clock) State() (playing bool, speed float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing, c.speed
}

// Request queues a seek to ts, replacing any request not yet applied.
func (c *Clock) Request(ts timeline.Stamp) {
	for {
		select {
		case c.pending <- ts:
			return
		default:
		}
		select {
		case <-c.pending:
		default:
		}
	}
}

// Advance moves the simulation forward by elapsed wall time when playing.
// Playback pauses once the span end is reached.
func (c *Clock) Advance(elapsed time.Duration) (Frame, bool) {
	c.mu.Lock()
	playing, speed := c.playing, c.speed
	c.mu.Unlock()
	if !playing {
		return Frame{}, false
	}
	span := c.sim.Span()
	target := c.sim.Cursor().Add(time.Duration(float64(elapsed) * speed))
	if !span.IsZero() && target >= span.End {
		target = span.End
		c.Pause()
	}
	return c.sim.Seek(target), true
}

// Run applies seek requests and clock ticks until ctx is done.
func (c *Clock) Run(ctx context.Context) error {
	t := time.NewTicker(c.tick)
	defer t.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-c.pending:
			c.sim.Seek(ts)
		case now := <-t.C:
			c.Advance(now.Sub(last))
			last = now
		}
	}
}
