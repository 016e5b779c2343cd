// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jeranaias/brainbox/internal/bootstrap"
	"github.com/jeranaias/brainbox/internal/queue"
	"github.com/jeranaias/brainbox/internal/retry"
)

// EnqueueOutput is the payload of "enqueue --json".
type EnqueueOutput struct {
	ID     string `json:"id"`
	ChatID string `json:"chat_id"`
	// Queued is false when --send delivered the message directly.
	Queued bool `json:"queued"`
}

// DropOutput is the payload of "drop --json".
type DropOutput struct {
	ID      string `json:"id"`
	Dropped bool   `json:"dropped"`
}

// closeApp stops any driver started by the command, then closes the app.
func closeApp(app *bootstrap.App) {
	app.Scheduler.Stop()
	app.Scheduler.Wait()
	app.Close()
}

// =============================================================================
// ENQUEUE
// =============================================================================

func (r *Runner) handleEnqueue(ctx context.Context, args Args) error {
	return OutputJSON(r.Stdout, args.JSON, "enqueue", func() (interface{}, error) {
		if args.File == "" && r.Stdin == os.Stdin && IsStdinTTY() {
			return nil, ErrMissingArgument("--file", "brainbox enqueue --file message.json")
		}
		msg, err := readMessage(args.File, r.Stdin)
		if err != nil {
			return nil, err
		}

		app, err := r.openApp(ctx, args)
		if err != nil {
			return nil, err
		}
		defer closeApp(app)

		out := &EnqueueOutput{ID: msg.ID, ChatID: msg.ChatID, Queued: true}
		if args.Send {
			out.Queued, err = app.Sender.Save(ctx, msg)
		} else {
			err = app.Scheduler.Enqueue(ctx, msg)
		}
		if err != nil {
			return nil, NewCommandError("enqueue", "queue message "+msg.ID, err)
		}

		if !args.JSON && !args.Quiet {
			if out.Queued {
				fmt.Fprintf(r.Stdout, "%s queued %s for chat %s\n", RenderStatus("ok"), out.ID, out.ChatID)
			} else {
				fmt.Fprintf(r.Stdout, "%s saved %s on the server\n", RenderStatus("delivered"), out.ID)
			}
		}
		return out, nil
	})
}

// =============================================================================
// FLUSH
// =============================================================================

func (r *Runner) handleFlush(ctx context.Context, args Args) error {
	return OutputJSON(r.Stdout, args.JSON, "flush", func() (interface{}, error) {
		app, err := r.openApp(ctx, args)
		if err != nil {
			return nil, err
		}
		defer closeApp(app)

		rep, err := app.Scheduler.Tick(ctx)
		if err != nil {
			return nil, NewCommandError("flush", "replay queue", err)
		}
		if !args.JSON && !args.Quiet {
			r.printReport(rep)
		}
		return rep, nil
	})
}

func (r *Runner) printReport(rep retry.Report) {
	w := r.Stdout
	if rep.Corrupt > 0 {
		fmt.Fprintf(w, "%s%d\n", RenderLabel("Unreadable:"), rep.Corrupt)
	}
	if rep.Scanned == 0 {
		fmt.Fprintln(w, DimStyle.Render("Queue is empty."))
		return
	}
	fmt.Fprintf(w, "%s%d scanned, %d due\n", RenderLabel("Pass:"), rep.Scanned, rep.Due)
	fmt.Fprintf(w, "%s%d\n", RenderLabel(RenderStatus("delivered")), rep.Delivered)
	fmt.Fprintf(w, "%s%d\n", RenderLabel(RenderStatus("gone")), rep.Gone)
	fmt.Fprintf(w, "%s%d\n", RenderLabel(RenderStatus("failed")), rep.Failed)
	if rep.Skipped > 0 {
		fmt.Fprintf(w, "%s%d\n", RenderLabel("Skipped:"), rep.Skipped)
	}
	if rep.Errors > 0 {
		fmt.Fprintf(w, "%s%d\n", RenderLabel(RenderStatus("error")), rep.Errors)
	}
}

// =============================================================================
// DROP
// =============================================================================

func (r *Runner) handleDrop(ctx context.Context, args Args) error {
	return OutputJSON(r.Stdout, args.JSON, "drop", func() (interface{}, error) {
		if args.ID == "" {
			return nil, ErrMissingArgument("id", "brainbox drop <id>")
		}
		app, err := r.openApp(ctx, args)
		if err != nil {
			return nil, err
		}
		defer closeApp(app)

		// Unreadable records can still be dropped.
		if _, err := app.Store.Get(ctx, args.ID); err != nil && !errors.Is(err, queue.ErrCorruptRecord) {
			return nil, NewCommandError("drop", "find "+args.ID, err)
		}
		if err := app.Scheduler.Drop(ctx, args.ID); err != nil {
			return nil, NewCommandError("drop", "delete "+args.ID, err)
		}
		if !args.JSON && !args.Quiet {
			fmt.Fprintf(r.Stdout, "%s dropped %s\n", RenderStatus("ok"), args.ID)
		}
		return &DropOutput{ID: args.ID, Dropped: true}, nil
	})
}
