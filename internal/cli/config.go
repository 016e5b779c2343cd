// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/brainbox/internal/config"
)

// ConfigValue is the payload of "config get|set --json".
type ConfigValue struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
	Path  string      `json:"path,omitempty"`
}

// secretKeys are masked by "config get".
var secretKeys = map[string]bool{
	"remote.token":         true,
	"remote.cookie":        true,
	"server.token":         true,
	"queue.redis_password": true,
}

func (r *Runner) handleConfig(args Args) error {
	switch args.Subcommand {
	case "", "show":
		return r.handleConfigShow(args)
	case "get":
		return r.handleConfigGet(args)
	case "set":
		return r.handleConfigSet(args)
	case "init":
		return r.handleConfigInit(args)
	case "path":
		return r.handleConfigPath(args)
	default:
		return NewValidationErrorWithExample("config subcommand", args.Subcommand,
			"unknown subcommand", "brainbox config [show|get|set|init|path]")
	}
}

func (r *Runner) handleConfigShow(args Args) error {
	cfg, err := r.LoadConfig(args)
	if err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("config", json.RawMessage(cfg.String())).Fprint(r.Stdout)
	}
	fmt.Fprintln(r.Stdout, cfg.String())
	return nil
}

func (r *Runner) handleConfigGet(args Args) error {
	if args.ConfigKey == "" {
		return ErrMissingArgument("key", "brainbox config get scheduler.interval")
	}
	return OutputJSON(r.Stdout, args.JSON, "config", func() (interface{}, error) {
		cfg, err := r.LoadConfig(args)
		if err != nil {
			return nil, err
		}
		v, err := cfg.Get(args.ConfigKey)
		if err != nil {
			return nil, NewValidationError("config key", args.ConfigKey, err.Error())
		}
		value := fmt.Sprint(v)
		if secretKeys[strings.ToLower(args.ConfigKey)] {
			value = maskSecret(value)
		}
		if !args.JSON {
			fmt.Fprintln(r.Stdout, value)
		}
		return &ConfigValue{Key: args.ConfigKey, Value: value}, nil
	})
}

// handleConfigSet edits the TOML file only. Environment overrides are not
// written back.
func (r *Runner) handleConfigSet(args Args) error {
	if args.ConfigKey == "" || len(args.Raw) < 3 {
		return ErrMissingArgument("key and value", "brainbox config set scheduler.interval 10s")
	}
	return OutputJSON(r.Stdout, args.JSON, "config", func() (interface{}, error) {
		path, err := r.configFile(args)
		if err != nil {
			return nil, err
		}

		cfg := config.Default()
		if _, err := os.Stat(path); err == nil {
			if err := config.LoadTOML(cfg, path); err != nil {
				return nil, err
			}
		} else if !isNotExist(err) {
			return nil, err
		}

		if err := cfg.Set(args.ConfigKey, args.ConfigVal); err != nil {
			return nil, NewValidationError("config key", args.ConfigKey, err.Error())
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if err := config.SaveTOML(cfg, path); err != nil {
			return nil, err
		}

		if !args.JSON && !args.Quiet {
			fmt.Fprintf(r.Stdout, "%s %s updated in %s\n", RenderStatus("ok"), args.ConfigKey, path)
		}
		value := args.ConfigVal
		if secretKeys[strings.ToLower(args.ConfigKey)] {
			value = maskSecret(value)
		}
		return &ConfigValue{Key: args.ConfigKey, Value: value, Path: path}, nil
	})
}

func (r *Runner) handleConfigInit(args Args) error {
	force := NewArgParser(args.Raw, "force").BoolFlag("force")
	return OutputJSON(r.Stdout, args.JSON, "config", func() (interface{}, error) {
		path, err := r.configFile(args)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(path); err == nil && !force {
			return nil, NewValidationErrorWithExample("config file", path, "already exists", "brainbox config init --force")
		}
		if err := config.SaveTOML(config.Default(), path); err != nil {
			return nil, err
		}
		if !args.JSON && !args.Quiet {
			fmt.Fprintf(r.Stdout, "%s wrote defaults to %s\n", RenderStatus("ok"), path)
		}
		return map[string]string{"path": path}, nil
	})
}

func (r *Runner) handleConfigPath(args Args) error {
	return OutputJSON(r.Stdout, args.JSON, "config", func() (interface{}, error) {
		path, err := r.configFile(args)
		if err != nil {
			return nil, err
		}
		if !args.JSON {
			fmt.Fprintln(r.Stdout, path)
		}
		return map[string]string{"path": path}, nil
	})
}

// configFile is the TOML file that set and init write.
func (r *Runner) configFile(args Args) (string, error) {
	if args.ConfigPath != "" {
		switch strings.ToLower(filepath.Ext(args.ConfigPath)) {
		case ".json", ".yaml", ".yml":
			return "", NewValidationError("--config", args.ConfigPath, "only TOML files can be written")
		}
		return args.ConfigPath, nil
	}
	if err := config.EnsureConfigDir(); err != nil {
		return "", err
	}
	return config.ConfigPathTOML()
}

// maskSecret keeps the first and last four characters of long secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 12 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
