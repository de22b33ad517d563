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

// Package defaults contains default constants set in various parts of
// the entrascan codebase
package defaults

import "time"

const (
	// BatchChunkSize is the number of sub-requests packed into a single
	// Graph $batch call. The provider rejects batches larger than 20, so
	// this is also the ceiling.
	BatchChunkSize = 20

	// BatchConcurrency is the number of $batch chunks in flight at once.
	// One chunk at a time reproduces strictly sequential execution.
	BatchConcurrency = 1

	// LookbackDays bounds how far back the application activity report
	// searches sign-in and audit logs.
	LookbackDays = 30

	// MaxSignInRecords caps how many realtime sign-in log entries a single
	// report run pages through. Large tenants produce millions.
	MaxSignInRecords = 1000

	// GraphRequestTimeout bounds a single Graph REST round trip.
	GraphRequestTimeout = 2 * time.Minute

	// SignInFilterGroupSize is the number of application ids packed into
	// one sign-in log $filter expression. More than this overflows the
	// provider's URL length limit.
	SignInFilterGroupSize = 10
)
