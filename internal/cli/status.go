// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jeranaias/brainbox/internal/config"
)

// =============================================================================
// STATUS TYPES
// =============================================================================

// StatusItem is one queued message in the status output.
type StatusItem struct {
	ID          string    `json:"id"`
	ChatID      string    `json:"chat_id"`
	Role        string    `json:"role"`
	Retries     int       `json:"retries"`
	NextAttempt time.Time `json:"next_attempt"`
	Due         bool      `json:"due"`
	Preview     string    `json:"preview,omitempty"`
}

// StatusOutput is the payload of "status --json".
type StatusOutput struct {
	Backend    string       `json:"backend"`
	Remote     string       `json:"remote"`
	Total      int          `json:"total"`
	Due        int          `json:"due"`
	MaxRetries int          `json:"max_retries"`
	Corrupt    int          `json:"corrupt"`
	NextDue    *time.Time   `json:"next_due,omitempty"`
	Items      []StatusItem `json:"items"`
}

// =============================================================================
// STATUS COMMAND
// =============================================================================

func (r *Runner) handleStatus(ctx context.Context, args Args) error {
	return OutputJSON(r.Stdout, args.JSON, "status", func() (interface{}, error) {
		out, err := r.collectStatus(ctx, args)
		if err != nil {
			return nil, err
		}
		if !args.JSON {
			r.printStatus(out)
		}
		return out, nil
	})
}

func (r *Runner) collectStatus(ctx context.Context, args Args) (*StatusOutput, error) {
	app, err := r.openApp(ctx, args)
	if err != nil {
		return nil, err
	}
	defer app.Close()

	snap, err := app.Scheduler.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	out := &StatusOutput{
		Backend:    app.Config.Queue.Backend,
		Remote:     app.Client.BaseURL(),
		Total:      snap.Total,
		Due:        snap.Due,
		MaxRetries: snap.MaxRetries,
		Corrupt:    snap.Corrupt,
		Items:      make([]StatusItem, 0, len(snap.Items)),
	}
	if snap.NextDue != nil {
		next := snap.NextDue.UTC()
		out.NextDue = &next
	}
	for _, it := range snap.Items {
		out.Items = append(out.Items, StatusItem{
			ID:          it.ID(),
			ChatID:      it.Message.ChatID,
			Role:        it.Message.Role.String(),
			Retries:     it.Retries,
			NextAttempt: it.NextAttemptTime().UTC(),
			Due:         it.Due(now),
			Preview:     it.Message.Preview(40),
		})
	}
	sort.Slice(out.Items, func(i, j int) bool {
		if !out.Items[i].NextAttempt.Equal(out.Items[j].NextAttempt) {
			return out.Items[i].NextAttempt.Before(out.Items[j].NextAttempt)
		}
		return out.Items[i].ID < out.Items[j].ID
	})
	return out, nil
}

func (r *Runner) printStatus(out *StatusOutput) {
	w := r.Stdout
	fmt.Fprintln(w, TitleStyle.Render("brainbox retry queue"))
	fmt.Fprintln(w, RenderSeparator())
	fmt.Fprintf(w, "%s%s\n", RenderLabel("Backend:"), ValueStyle.Render(out.Backend))
	fmt.Fprintf(w, "%s%s\n", RenderLabel("Server:"), ValueStyle.Render(out.Remote))
	fmt.Fprintf(w, "%s%d (%d due)\n", RenderLabel("Queued:"), out.Total, out.Due)
	if out.Total > 0 {
		fmt.Fprintf(w, "%s%d\n", RenderLabel("Max retries:"), out.MaxRetries)
	}
	if out.NextDue != nil {
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Next due:"), out.NextDue.Local().Format(time.RFC3339))
	}
	if out.Corrupt > 0 {
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Unreadable:"),
			ErrorStyle.Render(fmt.Sprintf("%d record(s) skipped, see log; remove with brainbox drop <id>", out.Corrupt)))
	}

	if out.Total == 0 {
		fmt.Fprintln(w, DimStyle.Render("Queue is empty."))
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, HeaderStyle.Render(fmt.Sprintf("%-36s  %-10s  %-9s  %7s  %-10s", "ID", "CHAT", "ROLE", "RETRIES", "NEXT")))
	now := time.Now()
	previewWidth := GetTerminalWidth() - 84
	for _, it := range out.Items {
		line := fmt.Sprintf("%-36s  %-10s  %-9s  %7d  %-10s",
			truncate(it.ID, 36), truncate(it.ChatID, 10), it.Role, it.Retries,
			formatNextAttempt(it.NextAttempt, now))
		if previewWidth > 10 && it.Preview != "" {
			line += "  " + DimStyle.Render(truncate(it.Preview, previewWidth))
		}
		if it.Due {
			fmt.Fprintln(w, line)
		} else {
			fmt.Fprintln(w, WarningStyle.Render(line))
		}
	}
}

// describeConfig is a one-line summary for run's startup banner.
func describeConfig(cfg *config.Config) string {
	return fmt.Sprintf("backend=%s interval=%s remote=%s",
		cfg.Queue.Backend, cfg.Scheduler.Interval, cfg.Remote.BaseURL)
}
