package lazy

import "golang.org/x/xerrors"

// ErrPoisoned is returned by every call on a cell whose factory panicked.
// The panic itself is re-raised in the goroutine that ran the factory.
var ErrPoisoned = xerrors.New("lazy: cell poisoned by a panicking factory")
