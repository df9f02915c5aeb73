package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/pixil98/go-revival/internal/corpse"
	"github.com/pixil98/go-revival/internal/lifecycle"
	"github.com/pixil98/go-revival/internal/protocol"
	"github.com/pixil98/go-revival/internal/session"
	"github.com/pixil98/go-revival/internal/world"
)

const defaultCallTimeout = 5 * time.Second

var (
	ErrUnknownEvent = errors.New("unknown event type")
	ErrNotStarted   = errors.New("nats server not started")
)

// Simulation runs closures on the simulation goroutine.
type Simulation interface {
	Post(fn func(context.Context))
	Call(ctx context.Context, fn func(context.Context) error) error
}

// Handler is the inbound surface of the revival lifecycle.
type Handler interface {
	OnJoin(ctx context.Context, s *session.Session)
	OnQuit(ctx context.Context, id uuid.UUID)
	OnDeath(ctx context.Context, id uuid.UUID, name string, loc world.Location)
	OnRespawn(ctx context.Context, id uuid.UUID) protocol.RespawnDecision
	OnWorldChange(ctx context.Context, id uuid.UUID, loc world.Location)
	OnInteract(ctx context.Context, reviver uuid.UUID, h corpse.Handle)
	OnSessionUpdate(ctx context.Context, id uuid.UUID, st protocol.SessionState)
	OnBlockUpdate(ctx context.Context, u protocol.BlockUpdate)
}

// Console executes one admin command line on behalf of a session.
type Console interface {
	Exec(ctx context.Context, caller uuid.UUID, line string) (string, error)
	Complete(ctx context.Context, caller uuid.UUID, line string) []string
}

type subscriber interface {
	WaitReady(ctx context.Context) error
	Subscribe(subject string, handler func(msg *nats.Msg)) (func(), error)
}

// Dispatcher turns host events into lifecycle calls on the simulation
// goroutine.
type Dispatcher struct {
	server      subscriber
	sim         Simulation
	handler     Handler
	console     Console
	callTimeout time.Duration
}

func NewDispatcher(server subscriber, sim Simulation, handler Handler, console Console) *Dispatcher {
	return &Dispatcher{
		server:      server,
		sim:         sim,
		handler:     handler,
		console:     console,
		callTimeout: defaultCallTimeout,
	}
}

func (d *Dispatcher) Start(ctx context.Context) error {
	// A cancelled context here means shutdown began before the broker was up.
	if err := d.server.WaitReady(ctx); err != nil {
		return nil
	}

	unsubscribe, err := d.server.Subscribe(protocol.EventsSubject, func(msg *nats.Msg) {
		d.handle(ctx, msg)
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "listening for host events", "subject", protocol.EventsSubject)

	<-ctx.Done()
	unsubscribe()
	return nil
}

func (d *Dispatcher) handle(ctx context.Context, msg *nats.Msg) {
	var ev protocol.Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		slog.WarnContext(ctx, "discarding malformed event", "error", err)
		return
	}

	body, err := d.Dispatch(ctx, &ev)
	if err != nil {
		slog.WarnContext(ctx, "event failed", "type", ev.Type, "session", ev.Session, "error", err)
	}
	if msg.Reply == "" {
		return
	}

	data, err := json.Marshal(NewReply(body, err))
	if err != nil {
		slog.ErrorContext(ctx, "encoding reply", "type", ev.Type, "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.WarnContext(ctx, "sending reply", "type", ev.Type, "error", err)
	}
}

func NewReply(body any, err error) protocol.Reply {
	if err != nil {
		return protocol.Reply{Error: err.Error()}
	}
	return protocol.Reply{Body: body}
}

// Dispatch routes one event. Request events return a reply body; the rest
// are queued on the simulation and return nil.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *protocol.Event) (any, error) {
	id := ev.Session
	if id == uuid.Nil {
		return nil, fmt.Errorf("%s event has no session", ev.Type)
	}

	switch ev.Type {
	case protocol.EventJoin:
		var st protocol.SessionState
		if err := ev.Decode(&st); err != nil {
			return nil, err
		}
		s := lifecycle.SessionFromState(id, st)
		d.sim.Post(func(ctx context.Context) { d.handler.OnJoin(ctx, s) })

	case protocol.EventQuit:
		d.sim.Post(func(ctx context.Context) { d.handler.OnQuit(ctx, id) })

	case protocol.EventDeath:
		var body protocol.Death
		if err := ev.Decode(&body); err != nil {
			return nil, err
		}
		d.sim.Post(func(ctx context.Context) { d.handler.OnDeath(ctx, id, body.Name, body.Location) })

	case protocol.EventWorldChange:
		var body protocol.WorldChange
		if err := ev.Decode(&body); err != nil {
			return nil, err
		}
		d.sim.Post(func(ctx context.Context) { d.handler.OnWorldChange(ctx, id, body.Location) })

	case protocol.EventInteract:
		var body protocol.Interact
		if err := ev.Decode(&body); err != nil {
			return nil, err
		}
		d.sim.Post(func(ctx context.Context) { d.handler.OnInteract(ctx, id, corpse.Handle(body.Handle)) })

	case protocol.EventSessionUpdate:
		var st protocol.SessionState
		if err := ev.Decode(&st); err != nil {
			return nil, err
		}
		d.sim.Post(func(ctx context.Context) { d.handler.OnSessionUpdate(ctx, id, st) })

	case protocol.EventBlockUpdate:
		var body protocol.BlockUpdate
		if err := ev.Decode(&body); err != nil {
			return nil, err
		}
		d.sim.Post(func(ctx context.Context) { d.handler.OnBlockUpdate(ctx, body) })

	case protocol.EventRespawn:
		callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
		defer cancel()

		// Whichever side claims the request first decides it: the simulation
		// by running OnRespawn, or this caller by giving up. A decision that
		// consumed a pending revival is always returned to the host.
		var claimed atomic.Bool
		decided := make(chan protocol.RespawnDecision, 1)
		err := d.sim.Call(callCtx, func(ctx context.Context) error {
			if !claimed.CompareAndSwap(false, true) {
				return nil
			}
			decided <- d.handler.OnRespawn(ctx, id)
			return nil
		})
		if err != nil && claimed.CompareAndSwap(false, true) {
			return nil, fmt.Errorf("deciding respawn: %w", err)
		}
		return <-decided, nil

	case protocol.EventAdmin:
		if d.console == nil {
			return nil, fmt.Errorf("admin commands are not enabled")
		}
		var body protocol.AdminCommand
		if err := ev.Decode(&body); err != nil {
			return nil, err
		}
		if body.Complete {
			return protocol.AdminOutput{Completions: d.console.Complete(ctx, id, body.Line)}, nil
		}
		out, err := d.console.Exec(ctx, id, body.Line)
		if err != nil {
			return nil, err
		}
		return protocol.AdminOutput{Output: out}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, ev.Type)
	}

	return nil, nil
}
