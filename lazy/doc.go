// Package lazy provides a create-once cell for values that are expensive to
// build and must be shared by every goroutine of a process.
//
// A [Cell] starts empty. The first call to one of its GetOrInit methods runs
// the supplied factory and publishes the result; every other caller, racing
// or late, receives that same value and never runs its own factory.
//
// # Quick Start
//
//	type Config struct{ DSN string }
//
//	var configs = lazy.New[*Config]()
//
//	func load() (*Config, error) {
//		return configs.GetOrInitErr(func() (*Config, error) {
//			return readConfig("/etc/app.yaml")
//		})
//	}
//
// Use a pointer (or another handle type) for T when callers need to share
// one instance rather than copies of it.
//
// # Protocol
//
// [Cell] runs double-checked locking:
//
//  1. An atomic load of the state word. If the cell is Initialized the
//     stored value is returned without touching the guard.
//  2. Otherwise the guard is acquired (honoring ctx in
//     [Cell.GetOrInitContext]).
//  3. The state is checked again under the guard. A caller that lost the
//     race returns the winner's value here.
//  4. The winner runs the factory, writes the value and then stores
//     Initialized. The store is the release that pairs with the load in
//     step 1, so a reader that sees Initialized also sees the whole value.
//
// # Failures
//
// A factory that returns an error leaves the cell Uninitialized and the
// error is returned to that caller only; the next caller retries. A factory
// that panics poisons the cell: the panic propagates, the guard is released,
// and every later call fails with [ErrPoisoned].
//
// # Unsynchronized baseline
//
// [UnsafeCell] performs the same check-then-act without any
// synchronization. Under concurrent first access several callers may each
// run their factory and each get back a different value. It exists to be
// compared against [Cell]; do not use it for shared state.
//
// # Tracing
//
// Both cells accept a [Tracer] through [WithTracer]. The tracer is told about
// every synchronizing operation and every access to the value slot, which
// lets a happens-before checker audit the cell.
package lazy
