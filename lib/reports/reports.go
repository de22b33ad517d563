// Entrascan
// Copyright (C) 2025 Gravitational, Inc.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package reports builds tenant reports on top of the Graph client: the
// per-user authentication methods report and the per-application sign-in
// activity report. Provider failures degrade report completeness instead of
// aborting a run; each row records what could not be fetched.
package reports

import (
	"github.com/gravitational/entrascan"
	logutils "github.com/gravitational/entrascan/lib/utils/log"
)

var logger = logutils.NewPackageLogger(entrascan.ComponentKey, entrascan.ComponentReports)
