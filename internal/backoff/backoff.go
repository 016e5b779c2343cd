// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backoff computes retry delays for the message retry queue.
// All strategies are stateless and safe for concurrent use.
package backoff

import "time"

const (
	// DefaultBase is the delay after the first failed attempt.
	DefaultBase = time.Second

	// DefaultMax caps the delay so even a long-failing item is retried hourly.
	DefaultMax = time.Hour
)

// Strategy computes the delay before the next attempt.
type Strategy interface {
	// Delay returns how long to wait after an attempt failed, given the
	// number of failures recorded before it (0 for the first failure).
	Delay(retries int) time.Duration
}

// =============================================================================
// EXPONENTIAL
// =============================================================================

// Exponential doubles the delay with every failure.
// Delay = min(Base * 2^retries, Max).
type Exponential struct {
	Base time.Duration
	Max  time.Duration
}

// NewExponential creates an exponential strategy. Zero values fall back to
// DefaultBase and DefaultMax.
func NewExponential(base, maxDelay time.Duration) *Exponential {
	if base <= 0 {
		base = DefaultBase
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMax
	}
	return &Exponential{Base: base, Max: maxDelay}
}

// Default returns the queue's standard strategy: 1s doubling, capped at 1h.
func Default() Strategy {
	return NewExponential(DefaultBase, DefaultMax)
}

// Delay returns Base * 2^retries, capped at Max.
func (e *Exponential) Delay(retries int) time.Duration {
	if retries < 0 {
		retries = 0
	}
	d := e.Base
	for i := 0; i < retries; i++ {
		// Doubling past Max (or overflowing) means the cap applies.
		if d > e.Max/2 || d <= 0 {
			return e.Max
		}
		d *= 2
	}
	if d > e.Max {
		return e.Max
	}
	return d
}

// =============================================================================
// CONSTANT
// =============================================================================

// Constant always returns the same delay.
type Constant struct {
	Interval time.Duration
}

// Delay returns the fixed interval.
func (c Constant) Delay(_ int) time.Duration {
	return c.Interval
}
