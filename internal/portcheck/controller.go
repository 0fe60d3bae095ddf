package portcheck

import (
	"context"
	"fmt"
	"time"
)

// Port range accepted for the redirect listener. Privileged ports are out:
// the listener runs as an ordinary user on the remote machine.
const (
	MinPort = 1024
	MaxPort = 65535
)

// WaitReporter receives countdown progress while a TIME_WAIT linger is
// waited out. Start is called once before the first tick, Tick once per
// second with the seconds left, and Finish exactly once when the wait ends.
type WaitReporter interface {
	Start(port, budget int)
	Tick(remaining int)
	Finish(available bool)
}

// Controller runs the probe/inspect/wait protocol for one port.
// The zero value is not usable; construct with NewController.
type Controller struct {
	// Probe reports whether the port can be bound right now.
	Probe func(port int) bool
	// Inspect reports whether the port is in TIME_WAIT and the linger budget.
	Inspect func(port int) (bool, int)
	// Reporter displays countdown progress. May be nil.
	Reporter WaitReporter
	// Interval is the countdown cadence. Defaults to one second.
	Interval time.Duration
}

// NewController returns a controller backed by the real bind probe and
// kernel connection-table inspector.
func NewController(reporter WaitReporter) *Controller {
	return &Controller{
		Probe:    Available,
		Inspect:  TimeWait,
		Reporter: reporter,
		Interval: time.Second,
	}
}

// EnsureAvailable returns once port can host the redirect listener.
//
// Out-of-range ports fail with ErrInvalidPort before any probe. A free port
// returns immediately. A busy port that is not in TIME_WAIT fails with
// ErrPortInUse; waiting can't recover it. A TIME_WAIT port is re-probed once
// per tick until it frees up or the linger budget runs out, and the wait is
// cancellable through ctx, which fails with ErrCancelled.
func (c *Controller) EnsureAvailable(ctx context.Context, port int) error {
	if port < MinPort || port > MaxPort {
		return fmt.Errorf("%w: %d (must be between %d and %d)", ErrInvalidPort, port, MinPort, MaxPort)
	}

	if c.Probe(port) {
		return nil
	}

	isTimeWait, budget := c.Inspect(port)
	if !isTimeWait {
		return fmt.Errorf("%w: port %d is held by another process; try --port %d or check with: lsof -i :%d",
			ErrPortInUse, port, port+1, port)
	}
	if budget <= 0 {
		budget = defaultTimeWaitSec
	}

	c.start(port, budget)
	ticker := time.NewTicker(c.interval())
	defer ticker.Stop()

	for remaining := budget; remaining > 0; remaining-- {
		// Never probe again once the user has cancelled.
		if ctx.Err() != nil {
			c.finish(false)
			return cancelledErr(port)
		}
		if c.Probe(port) {
			c.finish(true)
			return nil
		}
		c.tick(remaining)

		select {
		case <-ctx.Done():
			c.finish(false)
			return cancelledErr(port)
		case <-ticker.C:
		}
	}

	// One last look after the budget elapses.
	if c.Probe(port) {
		c.finish(true)
		return nil
	}
	c.finish(false)
	return fmt.Errorf("%w: port %d did not free up after %d seconds; try a different port (e.g. --port %d)",
		ErrPortStillUnavailable, port, budget, port+1)
}

func cancelledErr(port int) error {
	return fmt.Errorf("%w: try a different port (e.g. --port %d)", ErrCancelled, port+1)
}

func (c *Controller) interval() time.Duration {
	if c.Interval > 0 {
		return c.Interval
	}
	return time.Second
}

func (c *Controller) start(port, budget int) {
	if c.Reporter != nil {
		c.Reporter.Start(port, budget)
	}
}

func (c *Controller) tick(remaining int) {
	if c.Reporter != nil {
		c.Reporter.Tick(remaining)
	}
}

func (c *Controller) finish(available bool) {
	if c.Reporter != nil {
		c.Reporter.Finish(available)
	}
}
