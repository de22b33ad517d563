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

// Package log provides shared helpers for structured logging.
package log

import (
	"log/slog"
	"os"

	"github.com/gravitational/trace"
)

const (
	// LogFormatJSON represents the json log format.
	LogFormatJSON = "json"

	// LogFormatText represents the text log format.
	LogFormatText = "text"
)

// NewPackageLogger creates a new [slog.Logger] from the default logger
// with the provided key value pairs included on all messages.
func NewPackageLogger(args ...any) *slog.Logger {
	return slog.With(args...)
}

// Initialize configures the default slog logger to emit output in the
// requested format at the requested level. All tooling logs to stderr so
// that report output on stdout stays machine readable.
func Initialize(level slog.Level, format string) error {
	var handler slog.Handler
	switch format {
	case LogFormatJSON:
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	case LogFormatText, "":
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	default:
		return trace.BadParameter("unsupported log format %q", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}
