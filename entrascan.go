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

// Package entrascan defines constants shared across the entrascan tooling.
package entrascan

import "strings"

// Version is the current release version of the entrascan tooling.
const Version = "0.4.0"

const (
	// ComponentKey is the log field that carries a component name.
	ComponentKey = "component"

	// ComponentGraph is the Microsoft Graph REST client.
	ComponentGraph = "msgraph"

	// ComponentReports is the report generation engine.
	ComponentReports = "reports"

	// ComponentCLI is the command line entrypoint.
	ComponentCLI = "cli"
)

// Component generates "component:subcomponent1:subcomponent2" strings.
func Component(components ...string) string {
	return strings.Join(components, ":")
}
