package driver

import (
	"context"
	"time"
)

type DriverOpt func(*Driver)

func WithTickLength(tickLength time.Duration) DriverOpt {
	return func(d *Driver) {
		if tickLength > 0 {
			d.tickLength = tickLength
		}
	}
}

// WithShutdown registers a hook run on the simulation goroutine after the
// context is cancelled.
func WithShutdown(hook func(context.Context)) DriverOpt {
	return func(d *Driver) {
		d.shutdown = append(d.shutdown, hook)
	}
}

func WithQueueSize(n int) DriverOpt {
	return func(d *Driver) {
		if n > 0 {
			d.queue = make(chan func(context.Context), n)
		}
	}
}
