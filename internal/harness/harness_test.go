package harness_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/xerrors"

	"github.com/coder/quartz"

	"github.com/kolkov/lazycell/internal/harness"
	"github.com/kolkov/lazycell/internal/race/detector"
	"github.com/kolkov/lazycell/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRun_FooBar(t *testing.T) {
	t.Parallel()

	ctx := testutil.Context(t, testutil.WaitShort)
	mClock := quartz.NewMock(t)
	trap := mClock.Trap().NewTimer(harness.TagHarness, harness.TagDelay)
	defer trap.Close()

	done := make(chan harness.Result, 1)
	go func() {
		res, err := harness.Run(ctx, harness.Synchronized(nil), harness.Config{
			Args:   []string{"FOO", "BAR"},
			Delay:  time.Second,
			Clock:  mClock,
			Logger: testutil.Logger(t),
		})
		assert.NoError(t, err)
		done <- res
	}()

	// Both callers must be parked on their delay before time moves.
	trap.MustWait(ctx).MustRelease(ctx)
	trap.MustWait(ctx).MustRelease(ctx)
	mClock.Advance(time.Second).MustWait(ctx)

	res := testutil.RequireReceive(ctx, t, done)
	require.Len(t, res.Observations, 2)
	require.True(t, res.Consistent())
	require.Equal(t, 1, res.Distinct())
	require.EqualValues(t, 1, res.Constructions)
	require.Empty(t, res.Failed())

	winner, ok := res.Winner()
	require.True(t, ok)
	require.Contains(t, []string{"FOO", "BAR"}, winner.Value)

	var out bytes.Buffer
	res.Print(&out)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Equal(t, []string{
		"caller 1 (FOO): " + winner.Value,
		"caller 2 (BAR): " + winner.Value,
	}, lines)
}

func TestRun_DetectorQuietOnSynchronizedCell(t *testing.T) {
	t.Parallel()

	ctx := testutil.Context(t, testutil.WaitShort)
	det := detector.New(detector.WithLogger(testutil.Logger(t)))
	res, err := harness.Run(ctx, harness.Synchronized(det), harness.Config{
		Args:     []string{"a", "b", "c", "d", "e", "f", "g", "h"},
		Logger:   testutil.Logger(t),
		Detector: det,
	})
	require.NoError(t, err)
	require.True(t, res.Consistent())
	require.EqualValues(t, 1, res.Constructions)
	require.Empty(t, res.Races)
	require.Zero(t, det.Untracked())
}

func TestRun_FactoryError(t *testing.T) {
	t.Parallel()

	errRefused := xerrors.New("refused")
	ctx := testutil.Context(t, testutil.WaitShort)
	res, err := harness.Run(ctx, harness.Synchronized(nil), harness.Config{
		Args:   []string{"BAD"},
		Logger: testutil.Logger(t),
		Factory: func(context.Context, int, string) (*harness.Instance, error) {
			return nil, errRefused
		},
	})
	require.NoError(t, err)

	failed := res.Failed()
	require.Len(t, failed, 1)
	require.ErrorIs(t, failed[0].Err, errRefused)
	_, ok := res.Winner()
	require.False(t, ok)

	var out bytes.Buffer
	res.Print(&out)
	require.Equal(t, "caller 1 (BAD): error: construct value: refused\n", out.String())
}

func TestRun_NilInstance(t *testing.T) {
	t.Parallel()

	ctx := testutil.Context(t, testutil.WaitShort)
	res, err := harness.Run(ctx, harness.Synchronized(nil), harness.Config{
		Args:   []string{"FOO", "BAR"},
		Logger: testutil.Logger(t),
		Factory: func(context.Context, int, string) (*harness.Instance, error) {
			return nil, nil
		},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Constructions)

	failed := res.Failed()
	require.Len(t, failed, 2)
	for _, o := range failed {
		require.ErrorIs(t, o.Err, harness.ErrNilInstance)
		require.Nil(t, o.Instance)
	}
	_, ok := res.Winner()
	require.False(t, ok)

	var out bytes.Buffer
	res.Print(&out)
	require.Equal(t,
		"caller 1 (FOO): error: cell returned a nil instance\n"+
			"caller 2 (BAR): error: cell returned a nil instance\n",
		out.String())
}

func TestResult_PrintNilInstance(t *testing.T) {
	t.Parallel()

	res := harness.Result{Observations: []harness.Observation{
		{Caller: 2, Arg: "BAR", Instance: &harness.Instance{Value: "BAR", Caller: 2}},
		{Caller: 1, Arg: "FOO"},
	}}
	var out bytes.Buffer
	res.Print(&out)
	require.Equal(t, "caller 1 (FOO): <nil>\ncaller 2 (BAR): BAR\n", out.String())
}

func TestRun_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := harness.Run(ctx, harness.Synchronized(nil), harness.Config{
		Args:  []string{"FOO", "BAR"},
		Delay: time.Hour,
	})
	require.NoError(t, err)
	require.Len(t, res.Failed(), 2)
	for _, o := range res.Failed() {
		require.ErrorIs(t, o.Err, context.Canceled)
	}
	require.Zero(t, res.Constructions)
}

func TestRun_Parallelism(t *testing.T) {
	t.Parallel()

	ctx := testutil.Context(t, testutil.WaitShort)
	res, err := harness.Run(ctx, harness.Synchronized(nil), harness.Config{
		Args:        []string{"a", "b", "c", "d", "e"},
		Parallelism: 2,
	})
	require.NoError(t, err)
	require.Len(t, res.Observations, 5)
	require.True(t, res.Consistent())
	require.EqualValues(t, 1, res.Constructions)
	for i, o := range res.Observations {
		require.Equal(t, i+1, o.Caller)
	}
}

func TestRun_NoArgs(t *testing.T) {
	t.Parallel()

	_, err := harness.Run(context.Background(), harness.Synchronized(nil), harness.Config{})
	require.Error(t, err)
}

func TestRunTrials_Synchronized(t *testing.T) {
	t.Parallel()

	ctx := testutil.Context(t, testutil.WaitLong)
	sum, err := harness.RunTrials(ctx, harness.Synchronized, harness.TrialConfig{
		Config: harness.Config{
			Args:   []string{"a", "b", "c", "d"},
			Logger: testutil.Logger(t),
		},
		Trials: 20,
		Detect: true,
	})
	require.NoError(t, err)
	require.Equal(t, 20, sum.Trials)
	require.Zero(t, sum.Divergent)
	require.Zero(t, sum.Racy)
	require.Nil(t, sum.FirstDivergent)
	require.EqualValues(t, 1, sum.MaxConstructions)
}

func TestRunTrials_InvalidCount(t *testing.T) {
	t.Parallel()

	_, err := harness.RunTrials(context.Background(), harness.Synchronized, harness.TrialConfig{
		Config: harness.Config{Args: []string{"a"}},
	})
	require.Error(t, err)
}
