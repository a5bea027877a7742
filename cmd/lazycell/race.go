package main

import (
	"fmt"
	"time"

	"golang.org/x/xerrors"

	"github.com/coder/serpent"

	"github.com/kolkov/lazycell/internal/harness"
	"github.com/kolkov/lazycell/internal/race/epoch"
)

func (r *rootOptions) raceCmd() *serpent.Command {
	var (
		callers           int64
		trials            int64
		delay             time.Duration
		constructionDelay time.Duration
		kind              string
		detect            bool
		stop              bool
	)
	return &serpent.Command{
		Use:        "race",
		Short:      "Repeat the race against fresh cells and count the trials that handed out more than one instance",
		Middleware: serpent.RequireNArgs(0),
		Options: serpent.OptionSet{
			{
				Name:        "callers",
				Flag:        "callers",
				Env:         "LAZYCELL_CALLERS",
				Default:     "2",
				Description: "Concurrent callers per trial.",
				Value:       serpent.Int64Of(&callers),
			},
			{
				Name:        "trials",
				Flag:        "trials",
				Env:         "LAZYCELL_TRIALS",
				Default:     "100",
				Description: "Number of trials, each against a new cell.",
				Value:       serpent.Int64Of(&trials),
			},
			{
				Name:        "delay",
				Flag:        "delay",
				Env:         "LAZYCELL_DELAY",
				Default:     "0s",
				Description: "How long every caller waits before touching the cell.",
				Value:       serpent.DurationOf(&delay),
			},
			{
				Name:        "construction-delay",
				Flag:        "construction-delay",
				Env:         "LAZYCELL_CONSTRUCTION_DELAY",
				Default:     "10ms",
				Description: "How long the factory takes to build an instance.",
				Value:       serpent.DurationOf(&constructionDelay),
			},
			{
				Name:        "stop-on-divergence",
				Flag:        "stop-on-divergence",
				Description: "Stop at the first trial that hands out more than one instance.",
				Value:       serpent.BoolOf(&stop),
			},
			cellOption(&kind, cellUnsafe),
			detectOption(&detect),
		},
		Handler: func(inv *serpent.Invocation) error {
			ctx := inv.Context()
			logger := r.logger(inv)

			if callers < 2 || callers > epoch.MaxCaller {
				return xerrors.Errorf("--callers must be between 2 and %d, got %d", epoch.MaxCaller, callers)
			}
			args := make([]string, callers)
			for i := range args {
				args[i] = fmt.Sprintf("INSTANCE-%d", i+1)
			}

			sum, err := harness.RunTrials(ctx, builder(kind), harness.TrialConfig{
				Config: harness.Config{
					Args:              args,
					Delay:             delay,
					ConstructionDelay: constructionDelay,
					Logger:            logger,
				},
				Trials:           int(trials),
				Detect:           detect,
				StopOnDivergence: stop,
			})
			if err != nil {
				return xerrors.Errorf("run trials: %w", err)
			}

			_, _ = fmt.Fprintf(inv.Stdout, "cell: %s\n", kind)
			_, _ = fmt.Fprintf(inv.Stdout, "%d/%d trials handed out more than one instance (max %d constructions)\n",
				sum.Divergent, sum.Trials, sum.MaxConstructions)
			if detect {
				_, _ = fmt.Fprintf(inv.Stdout, "%d/%d trials had unordered accesses\n", sum.Racy, sum.Trials)
			}
			if sum.FirstDivergent != nil {
				_, _ = fmt.Fprintf(inv.Stdout, "\n%sfirst divergent trial:\n", harness.Banner)
				sum.FirstDivergent.Print(inv.Stdout)
			}
			if detect {
				_, _ = fmt.Fprintln(inv.Stdout)
				printReports(inv, sum.Reports)
			}

			if kind == cellSync && (sum.Divergent > 0 || sum.Racy > 0) {
				return xerrors.Errorf("synchronized cell misbehaved: %d divergent, %d racy trials", sum.Divergent, sum.Racy)
			}
			return nil
		},
	}
}
