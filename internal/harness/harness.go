// Package harness drives a lazy cell from many concurrent callers and
// reports which value each of them observed.
//
// Every caller waits on a common start barrier, sleeps for the configured
// delay so that all of them reach the cell at about the same moment, and
// then asks the cell for its value with a factory that would build an
// Instance from that caller's own argument. A correct cell hands every
// caller the same Instance.
package harness

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"

	"github.com/coder/quartz"

	"github.com/kolkov/lazycell/internal/race/caller"
	"github.com/kolkov/lazycell/internal/race/detector"
	"github.com/kolkov/lazycell/internal/race/epoch"
	"github.com/kolkov/lazycell/lazy"
)

// Banner explains how to read the per-caller lines printed by Result.Print.
const Banner = "If you see the same value, then singleton was reused (yay!)\n" +
	"If you see different values, then 2 singletons were created (booo!!)\n\n" +
	"RESULT:\n"

// ErrNilInstance is recorded for a caller whose cell handed back no
// Instance.
var ErrNilInstance = xerrors.New("cell returned a nil instance")

// Clock tags passed to quartz so tests can trap the harness's timers.
const (
	TagHarness      = "harness"
	TagDelay        = "delay"
	TagConstruction = "construction"
)

const (
	// parentCaller is the caller ID of the goroutine running Run.
	parentCaller = 0
	maxCallers   = epoch.MaxCaller
)

// Instance is the value the callers race to construct. Identity matters:
// two callers share the singleton only if they hold the same *Instance.
type Instance struct {
	// Value is the construction argument of the caller that built it.
	Value string
	// Caller is the ID of the caller that built it.
	Caller int
}

// Initializer is the part of a lazy cell the harness exercises.
type Initializer interface {
	GetOrInitContext(ctx context.Context, f func() (*Instance, error)) (*Instance, error)
}

var (
	_ Initializer = (*lazy.Cell[*Instance])(nil)
	_ Initializer = (*lazy.UnsafeCell[*Instance])(nil)
)

// Factory builds the Instance for one caller.
type Factory func(ctx context.Context, caller int, arg string) (*Instance, error)

// Config describes one run.
type Config struct {
	// Args holds one construction argument per caller. Caller IDs are the
	// 1-based positions in Args.
	Args []string
	// Delay is how long each caller sleeps after the start barrier before
	// calling the cell.
	Delay time.Duration
	// ConstructionDelay is how long the factory sleeps before building,
	// widening the window in which other callers can see an empty cell.
	ConstructionDelay time.Duration
	// Parallelism, when positive, caps how many callers run at once. Capped
	// callers start as slots free up rather than from a common barrier.
	Parallelism int
	// Clock defaults to the real clock.
	Clock  quartz.Clock
	Logger slog.Logger
	// Detector, if set, must be the tracer attached to the cell. Run then
	// records the fork and join of every caller and collects its reports.
	Detector *detector.Detector
	// Factory defaults to building Instance{Value: arg, Caller: caller}.
	Factory Factory
}

// Observation is what one caller got back from the cell.
type Observation struct {
	Caller   int
	Arg      string
	Instance *Instance
	Err      error
}

// Result is the outcome of one run.
type Result struct {
	// Observations is ordered by caller.
	Observations []Observation
	// Constructions counts factory executions.
	Constructions int64
	// Races holds the detector's reports, if a detector was configured.
	Races []*detector.Report
}

// Run launches one goroutine per argument against cell and waits for all
// of them. It returns an error only for an invalid Config; per-caller
// failures are recorded in the Observations.
func Run(ctx context.Context, cell Initializer, cfg Config) (Result, error) {
	if len(cfg.Args) == 0 {
		return Result{}, xerrors.New("at least one caller argument is required")
	}
	if len(cfg.Args) > maxCallers {
		return Result{}, xerrors.Errorf("too many callers: %d > %d", len(cfg.Args), maxCallers)
	}
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	if cfg.Factory == nil {
		cfg.Factory = defaultFactory
	}

	var (
		constructions atomic.Int64
		observations  = make([]Observation, len(cfg.Args))
		start         = make(chan struct{})
		eg            errgroup.Group
	)
	if cfg.Parallelism > 0 {
		// eg.Go blocks once the limit is reached, so a barrier closed after
		// the loop would never open.
		eg.SetLimit(cfg.Parallelism)
		close(start)
	}

	for i, arg := range cfg.Args {
		id := i + 1
		if cfg.Detector != nil {
			cfg.Detector.Fork(parentCaller, id)
		}

		eg.Go(func() error {
			<-start
			observations[i] = call(ctx, cell, cfg, id, arg, &constructions)
			return nil
		})
	}
	if cfg.Parallelism <= 0 {
		close(start)
	}
	// Callers record their failures as observations and never return one.
	_ = eg.Wait()

	res := Result{
		Observations:  observations,
		Constructions: constructions.Load(),
	}
	if cfg.Detector != nil {
		for i := range cfg.Args {
			cfg.Detector.Join(parentCaller, i+1)
		}
		res.Races = cfg.Detector.Reports()
	}

	cfg.Logger.Debug(ctx, "harness run complete",
		slog.F("callers", len(cfg.Args)),
		slog.F("constructions", res.Constructions),
		slog.F("distinct", res.Distinct()),
		slog.F("races", len(res.Races)),
	)
	return res, nil
}

func call(ctx context.Context, cell Initializer, cfg Config, id int, arg string, constructions *atomic.Int64) Observation {
	obs := Observation{Caller: id, Arg: arg}

	if err := sleep(ctx, cfg.Clock, cfg.Delay, TagHarness, TagDelay); err != nil {
		obs.Err = xerrors.Errorf("wait before access: %w", err)
		return obs
	}

	inst, err := cell.GetOrInitContext(caller.With(ctx, id), func() (*Instance, error) {
		constructions.Inc()
		if err := sleep(ctx, cfg.Clock, cfg.ConstructionDelay, TagHarness, TagConstruction); err != nil {
			return nil, xerrors.Errorf("slow construction: %w", err)
		}
		return cfg.Factory(ctx, id, arg)
	})
	if err != nil {
		cfg.Logger.Debug(ctx, "caller failed",
			slog.F("caller", id), slog.F("arg", arg), slog.Error(err))
		obs.Err = err
		return obs
	}
	if inst == nil {
		cfg.Logger.Debug(ctx, "caller observed nil instance",
			slog.F("caller", id), slog.F("arg", arg))
		obs.Err = ErrNilInstance
		return obs
	}

	cfg.Logger.Debug(ctx, "caller observed value",
		slog.F("caller", id), slog.F("arg", arg), slog.F("value", inst.Value))
	obs.Instance = inst
	return obs
}

func defaultFactory(_ context.Context, id int, arg string) (*Instance, error) {
	return &Instance{Value: arg, Caller: id}, nil
}

func sleep(ctx context.Context, clock quartz.Clock, d time.Duration, tags ...string) error {
	if d <= 0 {
		return nil
	}
	t := clock.NewTimer(d, tags...)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Consistent reports whether every caller that got a value got the same
// Instance. A run where no caller succeeded is trivially consistent.
func (r Result) Consistent() bool {
	return r.Distinct() <= 1
}

// Distinct returns the number of different Instances handed out.
func (r Result) Distinct() int {
	seen := make(map[*Instance]struct{})
	for _, o := range r.Observations {
		if o.Instance != nil {
			seen[o.Instance] = struct{}{}
		}
	}
	return len(seen)
}

// Winner returns the shared Instance of a consistent run.
func (r Result) Winner() (*Instance, bool) {
	if !r.Consistent() {
		return nil, false
	}
	for _, o := range r.Observations {
		if o.Instance != nil {
			return o.Instance, true
		}
	}
	return nil, false
}

// Failed returns the observations that ended in an error.
func (r Result) Failed() []Observation {
	var failed []Observation
	for _, o := range r.Observations {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// Print writes one line per caller with the value it observed, or its
// error, ordered by caller.
func (r Result) Print(w io.Writer) {
	obs := append([]Observation(nil), r.Observations...)
	sort.Slice(obs, func(i, j int) bool { return obs[i].Caller < obs[j].Caller })

	for _, o := range obs {
		if o.Err != nil {
			_, _ = fmt.Fprintf(w, "caller %d (%s): error: %v\n", o.Caller, o.Arg, o.Err)
			continue
		}
		if o.Instance == nil {
			_, _ = fmt.Fprintf(w, "caller %d (%s): <nil>\n", o.Caller, o.Arg)
			continue
		}
		_, _ = fmt.Fprintf(w, "caller %d (%s): %s\n", o.Caller, o.Arg, o.Instance.Value)
	}
}
