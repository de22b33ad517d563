/*
 * Entrascan
 * Copyright (C) 2025  Gravitational, Inc.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

// Package retryutils provides backoff helpers for retry loops.
package retryutils

import (
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
)

// Driver generates the progression of delays consumed by [RetryV2].
type Driver interface {
	// Duration returns the delay for the given attempt. Attempt numbering
	// starts at 1; attempt 0 is covered by RetryV2Config.First.
	Duration(attempt int64) time.Duration
}

// NewLinearDriver creates a driver whose delays grow by step on every
// attempt.
func NewLinearDriver(step time.Duration) Driver {
	return linearDriver{step: step}
}

type linearDriver struct {
	step time.Duration
}

func (d linearDriver) Duration(attempt int64) time.Duration {
	return d.step * time.Duration(attempt)
}

// NewExponentialDriver creates a driver whose delays double on every
// attempt, starting from base.
func NewExponentialDriver(base time.Duration) Driver {
	return exponentialDriver{base: base}
}

type exponentialDriver struct {
	base time.Duration
}

func (d exponentialDriver) Duration(attempt int64) time.Duration {
	if attempt > 62 {
		attempt = 62
	}
	d64 := d.base << uint64(attempt-1)
	if d64 < 0 {
		return time.Duration(1<<62 - 1)
	}
	return d64
}

// RetryV2Config sets up the retry progression.
type RetryV2Config struct {
	// First is the delay of the first retry, could be 0.
	First time.Duration
	// Driver generates the delays of subsequent retries, can't be nil.
	Driver Driver
	// Max caps the delay of any single retry, can't be 0.
	Max time.Duration
	// Clock overrides the clock in tests.
	Clock clockwork.Clock
}

// CheckAndSetDefaults checks and sets defaults.
func (c *RetryV2Config) CheckAndSetDefaults() error {
	if c.Driver == nil {
		return trace.BadParameter("missing parameter Driver")
	}
	if c.Max == 0 {
		return trace.BadParameter("missing parameter Max")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// NewRetryV2 returns a new retry in a reset state.
func NewRetryV2(cfg RetryV2Config) (*RetryV2, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &RetryV2{cfg: cfg}, nil
}

// RetryV2 calculates the delay progression of a retry loop. The first call
// to Duration returns RetryV2Config.First; every Inc advances the driver.
type RetryV2 struct {
	cfg     RetryV2Config
	attempt int64
}

// Reset resets the retry to its initial state.
func (r *RetryV2) Reset() {
	r.attempt = 0
}

// Inc increments the attempt counter.
func (r *RetryV2) Inc() {
	r.attempt++
}

// Duration returns the current retry delay.
func (r *RetryV2) Duration() time.Duration {
	if r.attempt == 0 {
		return r.cfg.First
	}
	d := r.cfg.Driver.Duration(r.attempt)
	if d < 1 {
		return 0
	}
	if d > r.cfg.Max {
		return r.cfg.Max
	}
	return d
}

// After returns a channel that fires once the current delay elapsed.
func (r *RetryV2) After() <-chan time.Time {
	return r.cfg.Clock.After(r.Duration())
}
