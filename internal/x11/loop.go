package x11

import (
	"context"
	"time"

	"github.com/BurntSushi/xgbutil/xevent"
)

// Run dispatches X events, posted tasks and timers on the calling goroutine
// until ctx is cancelled or Quit is called. It flushes once per iteration.
func (c *Connection) Run(ctx context.Context) error {
	pingBefore, pingAfter, pingQuit := xevent.MainPing(c.XUtil)

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	arm := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		c.sched.changed = false
		if d, ok := c.sched.wait(time.Now()); ok {
			timer.Reset(d)
		} else {
			timer.Reset(time.Hour)
		}
	}
	arm()

	for {
		select {
		case <-pingBefore:
			// Events are dispatched by the xevent goroutine between the two
			// pings; nothing else may run meanwhile.
			<-pingAfter
		case fn := <-c.tasks:
			fn()
		case <-timer.C:
			for _, fn := range c.sched.due(time.Now()) {
				fn()
			}
			arm()
		case <-pingQuit:
			c.Flush()
			return nil
		case <-ctx.Done():
			xevent.Quit(c.XUtil)
			c.Flush()
			return nil
		}
		if c.sched.changed {
			arm()
		}
		c.Flush()
	}
}

// Quit stops Run after the current iteration.
func (c *Connection) Quit() {
	xevent.Quit(c.XUtil)
}

// Post queues fn to run on the loop goroutine. It is safe to call from any
// goroutine.
func (c *Connection) Post(fn func()) {
	c.tasks <- fn
}

// Call runs fn on the loop and waits for it to return.
func (c *Connection) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case c.tasks <- func() { defer close(done); fn() }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Every runs fn on the loop every d. It must be called before Run or from
// the loop goroutine.
func (c *Connection) Every(d time.Duration, fn func()) {
	if d <= 0 {
		return
	}
	c.sched.add(time.Now(), d, fn)
}

// After runs fn once on the loop after d. Like Every, it must be called
// before Run or from the loop goroutine.
func (c *Connection) After(d time.Duration, fn func()) {
	c.sched.addOnce(time.Now(), d, fn)
}
