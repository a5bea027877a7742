package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kolkov/lazycell/internal/harness"
)

// ioBufs is the standard output and error for a command.
type ioBufs struct {
	Stdout bytes.Buffer
	Stderr bytes.Buffer
}

func run(t *testing.T, args ...string) (*ioBufs, error) {
	t.Helper()
	inv := rootCmd().Invoke(args...)
	var b ioBufs
	inv.Stdout = &b.Stdout
	inv.Stderr = &b.Stderr
	inv.Stdin = strings.NewReader("")
	return &b, inv.Run()
}

// resultLines returns the per-caller lines printed after the banner.
func resultLines(t *testing.T, out string) []string {
	t.Helper()
	_, after, ok := strings.Cut(out, harness.Banner)
	require.True(t, ok, "banner missing from output:\n%s", out)
	var lines []string
	for _, line := range strings.Split(after, "\n") {
		if strings.HasPrefix(line, "caller ") {
			lines = append(lines, line)
		}
	}
	return lines
}

func observedValue(t *testing.T, line string) string {
	t.Helper()
	_, v, ok := strings.Cut(line, "): ")
	require.True(t, ok, "malformed line %q", line)
	return v
}

func TestRoot(t *testing.T) {
	t.Parallel()

	io, err := run(t)
	require.NoError(t, err)
	for _, sub := range []string{"demo", "race", "version"} {
		require.Contains(t, io.Stdout.String(), "  "+sub)
	}
}

func TestDemo(t *testing.T) {
	t.Parallel()

	t.Run("FooBar", func(t *testing.T) {
		t.Parallel()

		io, err := run(t, "demo", "--delay", "0s")
		require.NoError(t, err)

		lines := resultLines(t, io.Stdout.String())
		require.Len(t, lines, 2)
		require.True(t, strings.HasPrefix(lines[0], "caller 1 (FOO): "))
		require.True(t, strings.HasPrefix(lines[1], "caller 2 (BAR): "))
		require.Equal(t, observedValue(t, lines[0]), observedValue(t, lines[1]))
	})

	t.Run("CustomArgs", func(t *testing.T) {
		t.Parallel()

		io, err := run(t, "demo", "--delay", "0s", "A", "B", "C")
		require.NoError(t, err)
		lines := resultLines(t, io.Stdout.String())
		require.Len(t, lines, 3)
		for _, line := range lines[1:] {
			require.Equal(t, observedValue(t, lines[0]), observedValue(t, line))
		}
	})

	t.Run("Detect", func(t *testing.T) {
		t.Parallel()

		io, err := run(t, "demo", "--delay", "0s", "--detect")
		require.NoError(t, err)
		require.Contains(t, io.Stdout.String(), "No data races detected.")
		require.NotContains(t, io.Stdout.String(), "WARNING: DATA RACE")
	})

	t.Run("BadCell", func(t *testing.T) {
		t.Parallel()

		_, err := run(t, "demo", "--cell", "bogus")
		require.Error(t, err)
	})
}

func TestRace_Sync(t *testing.T) {
	t.Parallel()

	io, err := run(t, "race", "--cell", "sync", "--trials", "5", "--callers", "4",
		"--construction-delay", "1ms", "--detect")
	require.NoError(t, err)
	out := io.Stdout.String()
	require.Contains(t, out, "cell: sync\n")
	require.Contains(t, out, "0/5 trials handed out more than one instance (max 1 constructions)")
	require.Contains(t, out, "0/5 trials had unordered accesses")
	require.Contains(t, out, "No data races detected.")
}

func TestRace_TooFewCallers(t *testing.T) {
	t.Parallel()

	_, err := run(t, "race", "--callers", "1")
	require.ErrorContains(t, err, "--callers must be between 2 and 65535")
}

func TestRace_TooManyCallers(t *testing.T) {
	t.Parallel()

	_, err := run(t, "race", "--callers", "10000000000")
	require.ErrorContains(t, err, "--callers must be between 2 and 65535, got 10000000000")
}

func TestRace_RejectsArgs(t *testing.T) {
	t.Parallel()

	_, err := run(t, "race", "extra")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	t.Parallel()

	io, err := run(t, "version")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(io.Stdout.String(), "lazycell v0.0.0-devel"), io.Stdout.String())
}
