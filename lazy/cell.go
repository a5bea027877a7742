package lazy

import (
	"context"
	"unsafe"

	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"
	"golang.org/x/xerrors"
)

// Cell holds a value that is constructed at most once, on first use, and is
// then shared by all callers. It is safe for concurrent use.
//
// A Cell must be created with [New] and must not be copied after first use.
type Cell[T any] struct {
	// state is the publication word. Loads are acquires, stores are
	// releases; value may only be read after a load returns Initialized.
	state atomic.Uint32

	// guard serializes construction. It is a weight-1 semaphore so that
	// waiting for it can be abandoned through a context.
	guard *semaphore.Weighted

	value  T
	tracer Tracer
}

// New returns an empty, Uninitialized cell.
func New[T any](opts ...Option) *Cell[T] {
	o := buildOptions(opts)
	return &Cell[T]{
		guard:  semaphore.NewWeighted(1),
		tracer: o.tracer,
	}
}

// GetOrInit returns the cell's value, calling f to construct it if no value
// has been published yet. Of any number of concurrent callers exactly one
// runs its f; the others block until that value is published.
//
// GetOrInit panics with [ErrPoisoned] if a previous factory panicked.
func (c *Cell[T]) GetOrInit(f func() T) T {
	v, err := c.GetOrInitContext(context.Background(), func() (T, error) {
		return f(), nil
	})
	if err != nil {
		// f cannot fail and Background is never done, so only poisoning
		// gets here.
		panic(err)
	}
	return v
}

// GetOrInitErr is like GetOrInit for a factory that can fail. If f returns
// an error the cell stays Uninitialized, the error is returned to this
// caller, and a later call will try again.
func (c *Cell[T]) GetOrInitErr(f func() (T, error)) (T, error) {
	return c.GetOrInitContext(context.Background(), f)
}

// GetOrInitContext is like GetOrInitErr, but gives up waiting for the guard
// when ctx is done. A published value is returned even if ctx is already
// done. ctx is also handed to the cell's [Tracer].
func (c *Cell[T]) GetOrInitContext(ctx context.Context, f func() (T, error)) (T, error) {
	switch State(c.state.Load()) {
	case Initialized:
		c.tracer.Acquire(ctx, c.stateAddr())
		c.tracer.Read(ctx, c.valueAddr())
		return c.value, nil
	case Poisoned:
		var zero T
		return zero, ErrPoisoned
	}
	// Outlined so the fast path stays small.
	return c.initSlow(ctx, f)
}

func (c *Cell[T]) initSlow(ctx context.Context, f func() (T, error)) (T, error) {
	var zero T
	if err := c.guard.Acquire(ctx, 1); err != nil {
		return zero, xerrors.Errorf("acquire cell guard: %w", err)
	}
	c.tracer.Acquire(ctx, c.guardAddr())
	defer func() {
		c.tracer.Release(ctx, c.guardAddr())
		c.guard.Release(1)
	}()

	// Another caller may have published while we waited.
	switch State(c.state.Load()) {
	case Initialized:
		c.tracer.Read(ctx, c.valueAddr())
		return c.value, nil
	case Poisoned:
		return zero, ErrPoisoned
	}

	return c.construct(ctx, f)
}

// construct runs f with the guard held.
func (c *Cell[T]) construct(ctx context.Context, f func() (T, error)) (T, error) {
	var zero T
	c.state.Store(uint32(Initializing))

	returned := false
	defer func() {
		if !returned {
			c.state.Store(uint32(Poisoned))
		}
	}()
	v, err := f()
	returned = true

	if err != nil {
		c.state.Store(uint32(Uninitialized))
		return zero, xerrors.Errorf("construct value: %w", err)
	}

	c.value = v
	c.tracer.Write(ctx, c.valueAddr())
	c.tracer.Release(ctx, c.stateAddr())
	c.state.Store(uint32(Initialized))
	return v, nil
}

// Get returns the published value without blocking. ok is false if the cell
// holds no value yet.
func (c *Cell[T]) Get() (v T, ok bool) {
	if State(c.state.Load()) != Initialized {
		return v, false
	}
	ctx := context.Background()
	c.tracer.Acquire(ctx, c.stateAddr())
	c.tracer.Read(ctx, c.valueAddr())
	return c.value, true
}

// Initialized reports whether a value has been published.
func (c *Cell[T]) Initialized() bool {
	return c.State() == Initialized
}

// State returns the cell's current lifecycle state.
func (c *Cell[T]) State() State {
	return State(c.state.Load())
}

func (c *Cell[T]) stateAddr() uintptr {
	return uintptr(unsafe.Pointer(&c.state))
}

func (c *Cell[T]) guardAddr() uintptr {
	return uintptr(unsafe.Pointer(c.guard))
}

func (c *Cell[T]) valueAddr() uintptr {
	return uintptr(unsafe.Pointer(&c.value))
}
