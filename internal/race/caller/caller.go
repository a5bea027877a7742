// Package caller carries the identity of a traced caller through a
// context.Context.
//
// The happens-before checker needs to know which logical thread performed
// each operation. Go exposes no goroutine identity, so the code that spawns
// callers tags each one's context instead.
package caller

import "context"

type key struct{}

// With returns a copy of ctx tagged with caller id.
func With(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, key{}, id)
}

// From returns the caller id ctx was tagged with.
func From(ctx context.Context) (int, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(key{}).(int)
	return id, ok
}
