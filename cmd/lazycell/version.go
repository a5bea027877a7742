package main

import (
	"fmt"
	"time"

	"github.com/coder/serpent"

	"github.com/kolkov/lazycell/internal/buildinfo"
)

func versionCmd() *serpent.Command {
	return &serpent.Command{
		Use:        "version",
		Short:      "Show version information",
		Middleware: serpent.RequireNArgs(0),
		Handler: func(inv *serpent.Invocation) error {
			_, _ = fmt.Fprintf(inv.Stdout, "lazycell %s\n", buildinfo.Version())
			if built, ok := buildinfo.Time(); ok {
				_, _ = fmt.Fprintf(inv.Stdout, "built %s\n", built.UTC().Format(time.RFC3339))
			}
			return nil
		},
	}
}
