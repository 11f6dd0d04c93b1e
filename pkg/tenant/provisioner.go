package tenant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Allocator creates a tenant's isolated data store and applies its baseline
// structure. Implementations do not need to be idempotent across concurrent
// callers: the reservation protocol guarantees a single owner per attempt.
// They must tolerate being retried across process restarts when a previous
// attempt died before settling the registry.
type Allocator interface {
	Allocate(ctx context.Context, id ID) (DatabaseRef, error)
}

// AllocatorFunc is an adapter to allow ordinary functions as Allocators.
type AllocatorFunc func(ctx context.Context, id ID) (DatabaseRef, error)

// Allocate calls the function.
func (f AllocatorFunc) Allocate(ctx context.Context, id ID) (DatabaseRef, error) {
	return f(ctx, id)
}

const (
	// DefaultWaitTimeout bounds how long a request blocks on an in-flight
	// provisioning before failing with a retryable error.
	DefaultWaitTimeout = 30 * time.Second

	// DefaultAllocateTimeout bounds the allocation step itself so a hung
	// database cannot pin the provisioning goroutine forever.
	DefaultAllocateTimeout = 2 * time.Minute

	// DefaultPollInterval is the registry re-check interval for waiters whose
	// provisioning owner lives in another process and therefore cannot signal
	// them through an in-process channel.
	DefaultPollInterval = 250 * time.Millisecond
)

// Provisioner ensures a tenant's dedicated database exists, performing the
// allocation exactly once per attempt even under concurrent callers. The
// single-owner guarantee comes from Store.Reserve; waiters block on a
// per-identifier completion channel rather than spinning.
type Provisioner struct {
	store Store
	alloc Allocator
	log   *slog.Logger

	waitTimeout     time.Duration
	allocateTimeout time.Duration
	pollInterval    time.Duration

	mu       sync.Mutex
	inflight map[ID]chan struct{}
}

// ProvisionerOption configures a Provisioner.
type ProvisionerOption func(*Provisioner)

// WithWaitTimeout bounds the wait for an in-flight provisioning.
func WithWaitTimeout(d time.Duration) ProvisionerOption {
	return func(p *Provisioner) {
		if d > 0 {
			p.waitTimeout = d
		}
	}
}

// WithAllocateTimeout bounds the allocation step.
func WithAllocateTimeout(d time.Duration) ProvisionerOption {
	return func(p *Provisioner) {
		if d > 0 {
			p.allocateTimeout = d
		}
	}
}

// WithPollInterval sets the registry re-check interval for waiters.
func WithPollInterval(d time.Duration) ProvisionerOption {
	return func(p *Provisioner) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// WithProvisionerLogger sets the logger for provisioning lifecycle events.
func WithProvisionerLogger(log *slog.Logger) ProvisionerOption {
	return func(p *Provisioner) {
		if log != nil {
			p.log = log
		}
	}
}

// NewProvisioner creates a Provisioner on the given registry and allocator.
func NewProvisioner(store Store, alloc Allocator, opts ...ProvisionerOption) *Provisioner {
	if store == nil {
		panic("tenant: provisioner requires a store")
	}
	if alloc == nil {
		panic("tenant: provisioner requires an allocator")
	}

	p := &Provisioner{
		store:           store,
		alloc:           alloc,
		log:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		waitTimeout:     DefaultWaitTimeout,
		allocateTimeout: DefaultAllocateTimeout,
		pollInterval:    DefaultPollInterval,
		inflight:        make(map[ID]chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EnsureReady blocks until the tenant's database exists, returning its
// handle. For an already-Ready tenant it returns immediately without any
// allocation work. For an unseen tenant exactly one caller performs the
// allocation; everyone else waits for the outcome. A failed attempt is
// surfaced to the owner and all waiters alike, and the next EnsureReady for
// that identifier starts a fresh attempt.
func (p *Provisioner) EnsureReady(ctx context.Context, id ID) (DatabaseRef, error) {
	if id.IsZero() {
		return DatabaseRef{}, fmt.Errorf("%w: empty identifier", ErrInvalidIdentifier)
	}

	// Fast path for settled tenants, cheap enough to run on every request.
	rec, ok, err := p.store.Get(ctx, id)
	if err != nil {
		return DatabaseRef{}, err
	}
	if ok && rec.State == StateReady {
		return rec.DatabaseRef, nil
	}

	rec, newly, err := p.store.Reserve(ctx, id)
	if err != nil {
		return DatabaseRef{}, err
	}

	if newly {
		done := p.arm(id)
		// Provisioning must survive the triggering request: a disconnecting
		// client must never abort the attempt for other waiters.
		go p.provision(context.WithoutCancel(ctx), id, done)
		return p.await(ctx, id, done)
	}

	switch rec.State {
	case StateReady:
		return rec.DatabaseRef, nil
	case StateProvisioning:
		return p.await(ctx, id, p.track(id))
	case StateFailed:
		return DatabaseRef{}, failure(rec)
	default:
		return DatabaseRef{}, fmt.Errorf("%w: unexpected state %q for %q", ErrInvalidStateTransition, rec.State, id)
	}
}

// arm installs a fresh completion channel for an owned attempt. It never
// reuses an existing entry: a re-armed attempt must not share a channel with
// the previous attempt's goroutine, which closes its own channel on exit.
func (p *Provisioner) arm(id ID) chan struct{} {
	done := make(chan struct{})
	p.mu.Lock()
	p.inflight[id] = done
	p.mu.Unlock()
	return done
}

// track returns the completion channel for an identifier, creating one when
// this process has no entry. The created channel is closed by nobody when the
// provisioning owner lives in another process; the waiter's poll ticker
// covers that case.
func (p *Provisioner) track(id ID) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	done, ok := p.inflight[id]
	if !ok {
		done = make(chan struct{})
		p.inflight[id] = done
	}
	return done
}

// provision runs the owned allocation attempt and settles the registry.
// It runs on a detached context and always signals waiters on exit.
func (p *Provisioner) provision(ctx context.Context, id ID, done chan struct{}) {
	defer func() {
		p.mu.Lock()
		if p.inflight[id] == done {
			delete(p.inflight, id)
		}
		p.mu.Unlock()
		close(done)
	}()

	ctx, cancel := context.WithTimeout(ctx, p.allocateTimeout)
	defer cancel()

	started := time.Now()
	ref, err := p.alloc.Allocate(ctx, id)
	if err != nil {
		p.log.ErrorContext(ctx, "tenant provisioning failed",
			slog.String("tenant", id.String()),
			slog.String("error", err.Error()))
		p.settle(ctx, id, func() error { return p.store.MarkFailed(ctx, id, err) })
		return
	}

	p.settle(ctx, id, func() error { return p.store.MarkReady(ctx, id, ref) })
	p.log.InfoContext(ctx, "tenant provisioned",
		slog.String("tenant", id.String()),
		slog.String("database", ref.Database),
		slog.Duration("took", time.Since(started)))
}

// settle applies a terminal transition. A protocol breach here is a bug in
// this package, not an operational condition, so it is fatal.
func (p *Provisioner) settle(ctx context.Context, id ID, transition func() error) {
	err := transition()
	if err == nil {
		return
	}
	if errors.Is(err, ErrInvalidStateTransition) {
		panic(fmt.Sprintf("tenant: registry protocol violation for %q: %v", id, err))
	}
	// Registry unreachable; waiters will time out and the record stays
	// Provisioning until a restart or manual repair.
	p.log.ErrorContext(ctx, "tenant registry settle failed",
		slog.String("tenant", id.String()),
		slog.String("error", err.Error()))
}

// await blocks until the record settles, the caller gives up, or the bounded
// wait expires.
func (p *Provisioner) await(ctx context.Context, id ID, done <-chan struct{}) (DatabaseRef, error) {
	deadline := time.NewTimer(p.waitTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		rec, ok, err := p.store.Get(ctx, id)
		if err != nil {
			return DatabaseRef{}, err
		}
		if !ok {
			return DatabaseRef{}, fmt.Errorf("%w: %q", ErrTenantNotFound, id)
		}

		switch rec.State {
		case StateReady:
			return rec.DatabaseRef, nil
		case StateFailed:
			return DatabaseRef{}, failure(rec)
		}

		select {
		case <-done:
			// Signal fired; disable this arm so a closed channel cannot spin
			// the loop, then re-read the registry.
			done = nil
		case <-ticker.C:
		case <-ctx.Done():
			return DatabaseRef{}, ctx.Err()
		case <-deadline.C:
			return DatabaseRef{}, fmt.Errorf("%w: %q after %s", ErrProvisioningTimeout, id, p.waitTimeout)
		}
	}
}

func failure(rec Record) error {
	if rec.LastError == "" {
		return fmt.Errorf("%w: %q", ErrProvisioningFailed, rec.ID)
	}
	return fmt.Errorf("%w: %q: %s", ErrProvisioningFailed, rec.ID, rec.LastError)
}
