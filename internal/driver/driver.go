package driver

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	DefaultTickLength = 50 * time.Millisecond
	DefaultQueueSize  = 1024
	shutdownTimeout   = 10 * time.Second
)

var ErrStopped = errors.New("driver stopped")

type Ticker interface {
	Tick(context.Context) error
}

// Driver is the simulation context. Every closure handed to Post, Call or
// After runs on the single goroutine executing Start, so state owned by the
// simulation needs no locking.
type Driver struct {
	tickLength time.Duration
	tickers    []Ticker
	shutdown   []func(context.Context)

	queue chan func(context.Context)
	done  chan struct{}
}

func NewDriver(tickers []Ticker, opts ...DriverOpt) *Driver {
	d := &Driver{
		tickLength: DefaultTickLength,
		tickers:    tickers,
		queue:      make(chan func(context.Context), DefaultQueueSize),
		done:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// AddTicker and OnShutdown must be called before Start.
func (d *Driver) AddTicker(t Ticker) {
	d.tickers = append(d.tickers, t)
}

func (d *Driver) OnShutdown(hook func(context.Context)) {
	d.shutdown = append(d.shutdown, hook)
}

func (d *Driver) Start(ctx context.Context) error {
	defer close(d.done)

	ticker := time.NewTicker(d.tickLength)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.stop(ctx)
			return nil
		case fn := <-d.queue:
			fn(ctx)
		case <-ticker.C:
			err := d.Tick(ctx)
			if err != nil {
				return err
			}
		}
	}
}

func (d *Driver) Tick(ctx context.Context) error {
	for _, t := range d.tickers {
		if err := t.Tick(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Post queues fn to run on the simulation goroutine. It is dropped once the
// driver has stopped.
func (d *Driver) Post(fn func(context.Context)) {
	select {
	case d.queue <- fn:
	case <-d.done:
	}
}

// Call runs fn on the simulation goroutine and waits for its result.
func (d *Driver) Call(ctx context.Context, fn func(context.Context) error) error {
	result := make(chan error, 1)

	select {
	case d.queue <- func(simCtx context.Context) { result <- fn(simCtx) }:
	case <-d.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-d.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// After posts fn once delay has elapsed. Timers are never cancelled; fn must
// re-check whatever it depends on.
func (d *Driver) After(delay time.Duration, fn func(context.Context)) {
	time.AfterFunc(delay, func() { d.Post(fn) })
}

// stop drains closures that were already queued, then runs the shutdown
// hooks.
func (d *Driver) stop(ctx context.Context) {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

drain:
	for {
		select {
		case fn := <-d.queue:
			fn(stopCtx)
		default:
			break drain
		}
	}

	for _, hook := range d.shutdown {
		hook(stopCtx)
	}
	slog.InfoContext(stopCtx, "simulation stopped")
}
