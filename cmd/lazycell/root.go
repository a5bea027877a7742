package main

import (
	"fmt"
	"text/tabwriter"

	"cdr.dev/slog/v3"
	"cdr.dev/slog/v3/sloggers/sloghuman"

	"github.com/coder/serpent"

	"github.com/kolkov/lazycell/internal/harness"
)

const (
	cellSync   = "sync"
	cellUnsafe = "unsafe"
)

// rootOptions are shared by every subcommand.
type rootOptions struct {
	verbose bool
}

func (r *rootOptions) logger(inv *serpent.Invocation) slog.Logger {
	logger := slog.Make(sloghuman.Sink(inv.Stderr))
	if r.verbose {
		logger = logger.Leveled(slog.LevelDebug)
	}
	return logger
}

func rootCmd() *serpent.Command {
	var r rootOptions
	return &serpent.Command{
		Use:   "lazycell <subcommand>",
		Short: "Race concurrent callers against a lazily initialized singleton",
		Options: serpent.OptionSet{
			{
				Name:        "verbose",
				Flag:        "verbose",
				Env:         "LAZYCELL_VERBOSE",
				Description: "Log every caller's access at debug level.",
				Value:       serpent.BoolOf(&r.verbose),
			},
		},
		Children: []*serpent.Command{
			r.demoCmd(),
			r.raceCmd(),
			versionCmd(),
		},
		Handler: func(inv *serpent.Invocation) error {
			_, _ = fmt.Fprintf(inv.Stdout, "%s\n\nSubcommands:\n", inv.Command.Short)
			tw := tabwriter.NewWriter(inv.Stdout, 0, 4, 2, ' ', 0)
			for _, child := range inv.Command.Children {
				_, _ = fmt.Fprintf(tw, "  %s\t%s\n", child.Name(), child.Short)
			}
			return tw.Flush()
		},
	}
}

func cellOption(kind *string, def string) serpent.Option {
	return serpent.Option{
		Name:        "cell",
		Flag:        "cell",
		Env:         "LAZYCELL_CELL",
		Default:     def,
		Description: "Which cell the callers share: sync or unsafe.",
		Value:       serpent.EnumOf(kind, cellSync, cellUnsafe),
	}
}

func detectOption(detect *bool) serpent.Option {
	return serpent.Option{
		Name:        "detect",
		Flag:        "detect",
		Env:         "LAZYCELL_DETECT",
		Description: "Audit the cell's accesses with the happens-before detector and print its reports.",
		Value:       serpent.BoolOf(detect),
	}
}

func builder(kind string) harness.Builder {
	if kind == cellUnsafe {
		return harness.Unsafe
	}
	return harness.Synchronized
}
