package main

import (
	"fmt"
	"time"

	"golang.org/x/xerrors"

	"github.com/coder/serpent"

	"github.com/kolkov/lazycell/internal/harness"
	"github.com/kolkov/lazycell/internal/race/detector"
	"github.com/kolkov/lazycell/lazy"
)

func (r *rootOptions) demoCmd() *serpent.Command {
	var (
		delay             time.Duration
		constructionDelay time.Duration
		kind              string
		detect            bool
	)
	return &serpent.Command{
		Use:   "demo [ARG...]",
		Short: "Start one caller per argument (default FOO BAR) and print the value each observed",
		Options: serpent.OptionSet{
			{
				Name:        "delay",
				Flag:        "delay",
				Env:         "LAZYCELL_DELAY",
				Default:     "1s",
				Description: "How long every caller waits before touching the cell.",
				Value:       serpent.DurationOf(&delay),
			},
			{
				Name:        "construction-delay",
				Flag:        "construction-delay",
				Env:         "LAZYCELL_CONSTRUCTION_DELAY",
				Default:     "0s",
				Description: "How long the factory takes to build an instance.",
				Value:       serpent.DurationOf(&constructionDelay),
			},
			cellOption(&kind, cellSync),
			detectOption(&detect),
		},
		Handler: func(inv *serpent.Invocation) error {
			ctx := inv.Context()
			logger := r.logger(inv)

			args := inv.Args
			if len(args) == 0 {
				args = []string{"FOO", "BAR"}
			}

			cfg := harness.Config{
				Args:              args,
				Delay:             delay,
				ConstructionDelay: constructionDelay,
				Logger:            logger,
			}
			var tracer lazy.Tracer
			if detect {
				cfg.Detector = detector.New(detector.WithLogger(logger.Named("detector")))
				tracer = cfg.Detector
			}

			_, _ = fmt.Fprint(inv.Stdout, harness.Banner)
			res, err := harness.Run(ctx, builder(kind)(tracer), cfg)
			if err != nil {
				return xerrors.Errorf("run callers: %w", err)
			}
			res.Print(inv.Stdout)

			if detect {
				_, _ = fmt.Fprintln(inv.Stdout)
				printReports(inv, res.Races)
			}
			return nil
		},
	}
}

func printReports(inv *serpent.Invocation, reports []*detector.Report) {
	if len(reports) == 0 {
		_, _ = fmt.Fprintln(inv.Stdout, "No data races detected.")
		return
	}
	for _, rep := range reports {
		rep.Format(inv.Stdout)
	}
	_, _ = fmt.Fprintf(inv.Stdout, "Found %d data race(s)\n", len(reports))
}
