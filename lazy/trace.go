package lazy

import "context"

// Tracer observes the memory operations a cell performs. Addresses identify
// the cell's state word, guard and value slot; they are stable for the life
// of the cell.
//
// Implementations must be safe for concurrent use. The ctx passed to each
// call is the one given to GetOrInitContext (context.Background for the
// other methods), so it can carry caller identity.
type Tracer interface {
	// Acquire records a synchronizing read: a lock acquisition or an atomic
	// load that observed a published value.
	Acquire(ctx context.Context, addr uintptr)
	// Release records a synchronizing write: a lock release or the atomic
	// store that publishes a value.
	Release(ctx context.Context, addr uintptr)
	// Read records a plain read of addr.
	Read(ctx context.Context, addr uintptr)
	// Write records a plain write of addr.
	Write(ctx context.Context, addr uintptr)
}

type nopTracer struct{}

func (nopTracer) Acquire(context.Context, uintptr) {}
func (nopTracer) Release(context.Context, uintptr) {}
func (nopTracer) Read(context.Context, uintptr)    {}
func (nopTracer) Write(context.Context, uintptr)   {}

type options struct {
	tracer Tracer
}

// Option configures a cell at construction.
type Option func(*options)

// WithTracer reports the cell's operations to t. A nil t disables tracing.
func WithTracer(t Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = nopTracer{}
	}
	return o
}
