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

// Package utils provides shared helpers for the entrascan command line
// tools.
package utils

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/gravitational/trace"
)

// InitCLIParser configures a kingpin command line args parser with the
// defaults common to all entrascan CLI tools.
func InitCLIParser(appName, appHelp string) *kingpin.Application {
	app := kingpin.New(appName, appHelp)
	app.UsageWriter(os.Stderr)
	app.UsageTemplate(kingpin.CompactUsageTemplate)
	return app
}

// FatalError is for CLI front-ends: it detects gravitational/trace debugging
// information, sends it to the logger, strips it off and prints a clean
// message to stderr.
func FatalError(err error) {
	fmt.Fprintln(os.Stderr, UserMessageFromError(err))
	os.Exit(1)
}

// UserMessageFromError returns the user-facing message of err. The full
// error chain is logged at debug level so that --debug runs keep the
// trace details without leaking them into regular output.
func UserMessageFromError(err error) string {
	if err == nil {
		return ""
	}
	slog.DebugContext(context.Background(), "Command failed", "error", err)
	return "ERROR: " + trace.UserMessage(err)
}
