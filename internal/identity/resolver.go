package identity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultPositiveTTL = 30 * time.Minute
	DefaultNegativeTTL = 5 * time.Minute
)

// LocalSource returns textures embedded in an owner's live session, if any.
type LocalSource interface {
	Textures(owner uuid.UUID) (*Descriptor, bool)
}

type entry struct {
	desc    *Descriptor
	expires time.Time
}

// Resolver memoises descriptors per owner. Absent results are cached for the
// negative TTL so failures are retried, but never on every call.
type Resolver struct {
	fetcher     Fetcher
	local       LocalSource
	positiveTTL time.Duration
	negativeTTL time.Duration
	now         func() time.Time

	mu    sync.Mutex
	cache map[uuid.UUID]entry

	flights singleflight.Group
}

type ResolverOpt func(*Resolver)

func WithLocalSource(src LocalSource) ResolverOpt {
	return func(r *Resolver) {
		r.local = src
	}
}

func WithTTL(positive, negative time.Duration) ResolverOpt {
	return func(r *Resolver) {
		if positive > 0 {
			r.positiveTTL = positive
		}
		if negative > 0 {
			r.negativeTTL = negative
		}
	}
}

func WithClock(now func() time.Time) ResolverOpt {
	return func(r *Resolver) {
		r.now = now
	}
}

func NewResolver(fetcher Fetcher, opts ...ResolverOpt) *Resolver {
	r := &Resolver{
		fetcher:     fetcher,
		positiveTTL: DefaultPositiveTTL,
		negativeTTL: DefaultNegativeTTL,
		now:         time.Now,
		cache:       map[uuid.UUID]entry{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lookup answers from the cache or the local source without network I/O.
// The bool is false only when the caller should fall back to ResolveAsync.
func (r *Resolver) Lookup(owner uuid.UUID) (*Descriptor, bool) {
	if d, ok := r.cached(owner); ok {
		return d, true
	}

	if r.local != nil {
		if d, ok := r.local.Textures(owner); ok && d.Valid() {
			r.store(owner, d)
			return d, true
		}
	}

	return nil, false
}

// Resolve consults the cache and then the remote lookup. It blocks on network
// I/O and must not be called from the simulation goroutine.
func (r *Resolver) Resolve(ctx context.Context, owner uuid.UUID) *Descriptor {
	if d, ok := r.cached(owner); ok {
		return d
	}

	v, _, _ := r.flights.Do(owner.String(), func() (any, error) {
		if d, ok := r.cached(owner); ok {
			return d, nil
		}

		d, err := r.fetcher.Fetch(ctx, owner)
		if err != nil {
			logFailure(ctx, owner, err)
			d = nil
		} else {
			slog.DebugContext(ctx, "fetched profile textures", "owner", owner)
		}
		r.store(owner, d)
		return d, nil
	})

	d, _ := v.(*Descriptor)
	return d
}

// ResolveAsync resolves on a background goroutine and hands the result to cb
// through post, which must run cb on the caller's execution context.
func (r *Resolver) ResolveAsync(ctx context.Context, owner uuid.UUID, post func(func()), cb func(*Descriptor)) {
	go func() {
		d := r.Resolve(ctx, owner)
		post(func() { cb(d) })
	}()
}

func (r *Resolver) Invalidate(owner uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, owner)
}

func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = map[uuid.UUID]entry{}
}

// Tick drops expired entries.
func (r *Resolver) Tick(ctx context.Context) error {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for owner, e := range r.cache {
		if now.After(e.expires) {
			delete(r.cache, owner)
		}
	}
	return nil
}

func (r *Resolver) cached(owner uuid.UUID) (*Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.cache[owner]
	if !ok || r.now().After(e.expires) {
		return nil, false
	}
	return e.desc, true
}

func (r *Resolver) store(owner uuid.UUID, d *Descriptor) {
	ttl := r.positiveTTL
	if !d.Valid() {
		d = nil
		ttl = r.negativeTTL
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[owner] = entry{desc: d, expires: r.now().Add(ttl)}
}

func logFailure(ctx context.Context, owner uuid.UUID, err error) {
	var status *StatusError
	switch {
	case errors.Is(err, ErrOffline):
		slog.DebugContext(ctx, "offline-mode identity, skipping profile lookup", "owner", owner)
	case errors.Is(err, ErrRateLimited):
		slog.WarnContext(ctx, "profile lookup rate limited", "owner", owner)
	case errors.Is(err, ErrNotFound):
		slog.DebugContext(ctx, "profile not found", "owner", owner)
	case errors.Is(err, ErrNoTextures):
		slog.DebugContext(ctx, "profile has no textures", "owner", owner)
	case errors.As(err, &status):
		slog.WarnContext(ctx, "profile lookup failed", "owner", owner, "status", status.Code)
	case errors.Is(err, context.DeadlineExceeded):
		slog.WarnContext(ctx, "profile lookup timed out", "owner", owner)
	default:
		slog.WarnContext(ctx, "profile lookup failed", "owner", owner, "error", err)
	}
}
