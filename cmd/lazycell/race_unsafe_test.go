package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kolkov/lazycell/internal/testutil"
)

// The unsynchronized cell races on purpose, so this is skipped under -race.
func TestRace_Unsafe(t *testing.T) {
	t.Parallel()
	if testutil.RaceEnabled() {
		t.Skip("races on purpose; meaningless under -race")
	}

	io, err := run(t, "race", "--cell", "unsafe", "--trials", "3", "--detect")
	require.NoError(t, err)
	out := io.Stdout.String()
	require.Contains(t, out, "cell: unsafe\n")
	require.Contains(t, out, "3/3 trials had unordered accesses")
	require.Contains(t, out, "WARNING: DATA RACE")
	require.Contains(t, out, "data race(s)")
}
