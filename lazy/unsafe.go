package lazy

import (
	"context"
	"unsafe"

	"golang.org/x/xerrors"
)

// UnsafeCell is a lazy holder with no synchronization at all. It performs
// an unguarded check-then-act: a caller that reads Uninitialized runs its
// factory, stores the result and returns it.
//
// Under concurrent first access several callers can each see
// Uninitialized, each run their factory, and each return the value they
// built. UnsafeCell exists to demonstrate that failure next to [Cell]. It is
// only correct when every call happens on one goroutine.
type UnsafeCell[T any] struct {
	state  State
	value  T
	tracer Tracer
}

// NewUnsafe returns an empty UnsafeCell.
func NewUnsafe[T any](opts ...Option) *UnsafeCell[T] {
	o := buildOptions(opts)
	return &UnsafeCell[T]{tracer: o.tracer}
}

// GetOrInit returns the stored value, or runs f and returns its result if
// the cell looked empty.
func (c *UnsafeCell[T]) GetOrInit(f func() T) T {
	v, _ := c.GetOrInitContext(context.Background(), func() (T, error) {
		return f(), nil
	})
	return v
}

// GetOrInitErr is GetOrInit for a factory that can fail. On error nothing is
// stored.
func (c *UnsafeCell[T]) GetOrInitErr(f func() (T, error)) (T, error) {
	return c.GetOrInitContext(context.Background(), f)
}

// GetOrInitContext is GetOrInitErr with a context for the cell's [Tracer].
// The context is never waited on.
func (c *UnsafeCell[T]) GetOrInitContext(ctx context.Context, f func() (T, error)) (T, error) {
	c.tracer.Read(ctx, c.stateAddr())
	if c.state == Initialized {
		c.tracer.Read(ctx, c.valueAddr())
		return c.value, nil
	}

	v, err := f()
	if err != nil {
		var zero T
		return zero, xerrors.Errorf("construct value: %w", err)
	}

	c.tracer.Write(ctx, c.valueAddr())
	c.value = v
	c.tracer.Write(ctx, c.stateAddr())
	c.state = Initialized
	return v, nil
}

// Get returns the stored value, if any.
func (c *UnsafeCell[T]) Get() (v T, ok bool) {
	if c.state != Initialized {
		return v, false
	}
	return c.value, true
}

// Initialized reports whether a value has been stored.
func (c *UnsafeCell[T]) Initialized() bool {
	return c.state == Initialized
}

// State returns the cell's state as last written.
func (c *UnsafeCell[T]) State() State {
	return c.state
}

func (c *UnsafeCell[T]) stateAddr() uintptr {
	return uintptr(unsafe.Pointer(&c.state))
}

func (c *UnsafeCell[T]) valueAddr() uintptr {
	return uintptr(unsafe.Pointer(&c.value))
}
