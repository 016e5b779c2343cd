// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and validates brainbox configuration.
//
// TOML, JSON and YAML files are supported, with built-in defaults,
// environment variable overrides, and validation that reports every problem
// at once.
//
// # Key Types
//
//   - Config: complete configuration
//   - QueueConfig: store backend and location
//   - SchedulerConfig: tick interval, backoff and eligible roles
//   - RemoteConfig: chat server URL and credentials
//   - Duration: a time.Duration written as "5s" in every format
//
// # Configuration Precedence
//
//   - Environment variables (BRAINBOX_*)
//   - ~/.brainbox/config.toml
//   - ~/.brainbox/config.json
//   - ~/.brainbox/config.yaml
//   - Built-in defaults
//
// BRAINBOX_HOME replaces ~/.brainbox.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	interval := cfg.Scheduler.Interval.Duration
package config
