// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and execution for brainbox.
//
// # Key Types
//
//   - Command: Enumeration of the available commands
//   - Args: Parsed global and command-specific flags
//   - Runner: Executes a command against injectable streams and app factory
//   - JSONResponse: Envelope for --json output
//
// # Usage
//
//	cmd, args, err := cli.Parse(os.Args[1:])
//	if err != nil {
//	    cli.DisplayError(os.Stderr, err, args.JSON)
//	    os.Exit(cli.GetExitCode(err))
//	}
//	if err := cli.NewRunner().Execute(ctx, cmd, args); err != nil {
//	    ...
//	}
//
// # Commands Overview
//
//   - run: Retry daemon (default)
//   - status: Queued messages and their schedule
//   - enqueue: Queue a message from a file or stdin
//   - flush: One synchronous replay pass
//   - drop: Remove a queued message
//   - config: show, get, set, init, path
//   - version, help
//
// Every command supports --json. Colors are disabled when stdout is not a
// terminal or NO_COLOR is set.
package cli
