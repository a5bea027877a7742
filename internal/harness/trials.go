package harness

import (
	"context"

	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"

	"github.com/kolkov/lazycell/internal/race/detector"
	"github.com/kolkov/lazycell/lazy"
)

// Builder returns a fresh, empty cell that reports its accesses to t.
type Builder func(t lazy.Tracer) Initializer

// Synchronized builds a lazy.Cell.
func Synchronized(t lazy.Tracer) Initializer {
	return lazy.New[*Instance](lazy.WithTracer(t))
}

// Unsafe builds a lazy.UnsafeCell.
func Unsafe(t lazy.Tracer) Initializer {
	return lazy.NewUnsafe[*Instance](lazy.WithTracer(t))
}

// TrialConfig repeats a run against fresh cells.
type TrialConfig struct {
	Config
	Trials int
	// Detect attaches a new happens-before detector to every trial's cell.
	Detect bool
	// StopOnDivergence ends the series at the first trial in which callers
	// saw different Instances.
	StopOnDivergence bool
}

// Summary aggregates a series of trials.
type Summary struct {
	Trials int
	// Divergent counts trials in which more than one Instance was handed out.
	Divergent int
	// Racy counts trials in which the detector reported at least one race.
	Racy int
	// MaxConstructions is the largest factory execution count of any trial.
	MaxConstructions int64
	// FirstDivergent is the first divergent trial, if any.
	FirstDivergent *Result
	// Reports are the distinct race reports of the first racy trial.
	Reports []*detector.Report
}

// RunTrials runs cfg.Trials trials, each against a cell returned by build.
func RunTrials(ctx context.Context, build Builder, cfg TrialConfig) (Summary, error) {
	if cfg.Trials < 1 {
		return Summary{}, xerrors.Errorf("trials must be positive, got %d", cfg.Trials)
	}
	var sum Summary

	for i := 0; i < cfg.Trials; i++ {
		if err := ctx.Err(); err != nil {
			return sum, xerrors.Errorf("trial %d: %w", i+1, err)
		}

		run := cfg.Config
		var tracer lazy.Tracer
		if cfg.Detect {
			run.Detector = detector.New(detector.WithLogger(cfg.Logger.Named("detector")))
			tracer = run.Detector
		}

		res, err := Run(ctx, build(tracer), run)
		if err != nil {
			return sum, xerrors.Errorf("trial %d: %w", i+1, err)
		}
		sum.Trials++
		sum.MaxConstructions = max(sum.MaxConstructions, res.Constructions)

		if len(res.Races) > 0 {
			if sum.Racy == 0 {
				sum.Reports = res.Races
			}
			sum.Racy++
		}
		if !res.Consistent() {
			if sum.FirstDivergent == nil {
				sum.FirstDivergent = &res
			}
			sum.Divergent++
			if cfg.StopOnDivergence {
				break
			}
		}
	}

	cfg.Logger.Info(ctx, "trials complete",
		slog.F("trials", sum.Trials),
		slog.F("divergent", sum.Divergent),
		slog.F("racy", sum.Racy),
		slog.F("max_constructions", sum.MaxConstructions),
	)
	return sum, nil
}
