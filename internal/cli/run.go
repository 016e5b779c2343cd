// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// handleRun runs the daemon until SIGINT or SIGTERM. The in-flight pass
// finishes before it returns.
func (r *Runner) handleRun(ctx context.Context, args Args) error {
	cfg, err := r.LoadConfig(args)
	if err != nil {
		return err
	}

	app, err := r.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if !args.Quiet && !args.JSON {
		fmt.Fprintf(r.Stderr, "%s %s\n", TitleStyle.Render("brainbox "+Version), DimStyle.Render(describeConfig(cfg)))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.Run(ctx)
}
