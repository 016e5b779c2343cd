// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/jeranaias/brainbox/internal/bootstrap"
	"github.com/jeranaias/brainbox/internal/config"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command is the CLI command to execute.
type Command int

const (
	CmdHelp Command = iota
	CmdRun
	CmdStatus
	CmdEnqueue
	CmdFlush
	CmdDrop
	CmdConfig
	CmdVersion
)

var commandNames = map[Command]string{
	CmdHelp:    "help",
	CmdRun:     "run",
	CmdStatus:  "status",
	CmdEnqueue: "enqueue",
	CmdFlush:   "flush",
	CmdDrop:    "drop",
	CmdConfig:  "config",
	CmdVersion: "version",
}

// String returns the command name.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath string
	JSON       bool
	Verbose    bool
	Quiet      bool

	// Command-specific
	Subcommand string
	ID         string
	File       string
	Send       bool
	ConfigKey  string
	ConfigVal  string

	// Raw args after the command name
	Raw []string
}

const usageText = `brainbox - durable retry queue for chat messages

Messages that could not be saved on the chat server are kept in a local
queue and replayed with exponential backoff until the server stores them.

Usage:
  brainbox run                      Run the retry daemon (default)
  brainbox status, s                Show queued messages
  brainbox enqueue [--file FILE]    Queue a message (JSON from FILE or stdin)
  brainbox flush                    Run one replay pass now
  brainbox drop <id>                Remove a message from the queue
  brainbox config [show|get|set|init|path]
  brainbox version, v               Show version
  brainbox help, -h                 Show this help

Global flags:
  --config FILE     Use FILE instead of ~/.brainbox/config.toml
  --json            Machine-readable output
  --verbose         Log at debug level
  --quiet, -q       Only print errors

Enqueue flags:
  --file FILE       Read the message from FILE ("-" for stdin)
  --send            Try to persist on the server first, queue on failure

Examples:
  brainbox run --config /etc/brainbox.toml
  brainbox status --json
  echo '{"id":"m1","chat_id":"c1","role":"user","parts":[]}' | brainbox enqueue
  brainbox config set scheduler.interval 10s

Environment:
  BRAINBOX_HOME         Config directory (default ~/.brainbox)
  BRAINBOX_SERVER_URL   Chat server base URL
  BRAINBOX_TOKEN        Bearer token for the chat server
  NO_COLOR              Disable colored output
`

// PrintUsage writes the help text.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

// =============================================================================
// PARSING
// =============================================================================

// Parse parses command-line arguments (without the program name).
func Parse(argv []string) (Command, Args, error) {
	remaining, args, err := parseGlobalFlags(argv)
	if err != nil {
		return CmdHelp, args, err
	}

	if len(remaining) == 0 {
		return CmdRun, args, nil
	}

	name := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	args.Raw = remaining

	switch name {
	case "run", "daemon":
		return CmdRun, args, nil

	case "status", "s":
		return CmdStatus, args, nil

	case "enqueue", "queue", "add":
		p := NewArgParser(remaining, "send")
		args.File = p.Flag("file")
		if args.File == "" && p.Flag("f") != "" {
			args.File = p.Flag("f")
		}
		args.Send = p.BoolFlag("send")
		return CmdEnqueue, args, nil

	case "flush":
		return CmdFlush, args, nil

	case "drop", "rm":
		p := NewArgParser(remaining)
		args.ID = p.Positional(0)
		if args.ID == "" {
			return CmdDrop, args, ErrMissingArgument("id", "brainbox drop <id>")
		}
		return CmdDrop, args, nil

	case "config":
		p := NewArgParser(remaining)
		args.Subcommand = strings.ToLower(p.Positional(0))
		args.ConfigKey = p.Positional(1)
		args.ConfigVal = p.Positional(2)
		return CmdConfig, args, nil

	case "version", "v":
		return CmdVersion, args, nil

	case "help":
		return CmdHelp, args, nil

	default:
		return CmdHelp, args, NewValidationErrorWithExample("command", name, "unknown command", "brainbox help")
	}
}

// parseGlobalFlags extracts global flags wherever they appear.
func parseGlobalFlags(argv []string) ([]string, Args, error) {
	var args Args
	remaining := make([]string, 0, len(argv))

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "--json":
			args.JSON = true
		case arg == "--verbose":
			args.Verbose = true
		case arg == "--quiet" || arg == "-q":
			args.Quiet = true
		case arg == "--help" || arg == "-h":
			return []string{"help"}, args, nil
		case arg == "--version":
			return []string{"version"}, args, nil
		case arg == "--config" || arg == "-c":
			if i+1 >= len(argv) {
				return nil, args, ErrMissingArgument("--config", "brainbox --config config.toml run")
			}
			args.ConfigPath = argv[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			args.ConfigPath = strings.TrimPrefix(arg, "--config=")
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, args, nil
}

// =============================================================================
// RUNNER
// =============================================================================

// Runner executes commands. Its fields are seams for tests.
type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// LoadConfig resolves the configuration for a command.
	LoadConfig func(args Args) (*config.Config, error)

	// Open builds the application for a command.
	Open func(ctx context.Context, cfg *config.Config) (*bootstrap.App, error)
}

// NewRunner returns a Runner bound to the process's standard streams.
func NewRunner() *Runner {
	return &Runner{
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		LoadConfig: LoadConfig,
		Open: func(ctx context.Context, cfg *config.Config) (*bootstrap.App, error) {
			return bootstrap.New(ctx, cfg, bootstrap.WithVersion(Version))
		},
	}
}

// LoadConfig reads the config named by --config, or the default location.
// Short-lived commands log at warn level unless --verbose is given.
func LoadConfig(args Args) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if args.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// Execute runs cmd. Errors are returned, not printed.
func (r *Runner) Execute(ctx context.Context, cmd Command, args Args) error {
	switch cmd {
	case CmdRun:
		return r.handleRun(ctx, args)
	case CmdStatus:
		return r.handleStatus(ctx, args)
	case CmdEnqueue:
		return r.handleEnqueue(ctx, args)
	case CmdFlush:
		return r.handleFlush(ctx, args)
	case CmdDrop:
		return r.handleDrop(ctx, args)
	case CmdConfig:
		return r.handleConfig(args)
	case CmdVersion:
		return r.handleVersion(args)
	default:
		PrintUsage(r.Stdout)
		return nil
	}
}

// openApp loads the config and builds the app for a one-shot command.
func (r *Runner) openApp(ctx context.Context, args Args) (*bootstrap.App, error) {
	cfg, err := r.LoadConfig(args)
	if err != nil {
		return nil, err
	}
	if !args.Verbose {
		cfg.Log.Level = "warn"
	}
	// One-shot commands never serve status.
	cfg.Server.Enabled = false
	return r.Open(ctx, cfg)
}

// VersionInfo is the payload of "version --json".
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func (r *Runner) handleVersion(args Args) error {
	info := VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if args.JSON {
		return NewJSONResponse("version", info).Fprint(r.Stdout)
	}
	fmt.Fprintf(r.Stdout, "brainbox %s\n", info.Version)
	fmt.Fprintf(r.Stdout, "  commit: %s\n  built:  %s\n  go:     %s (%s)\n",
		info.GitCommit, info.BuildDate, info.GoVersion, info.Platform)
	return nil
}
