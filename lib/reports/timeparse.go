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

package reports

import (
	"strings"
	"time"
)

// graphTimeFormats lists the timestamp layouts observed across Graph
// endpoints, tried in order. ISO-8601 comes first; the remaining layouts
// cover the report endpoints that omit the zone or use locale formatting.
var graphTimeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 15:04:05",
	"2006-01-02",
}

// ParseGraphTime parses a provider timestamp, trying each known layout in
// order. It returns false for empty values and values matching no layout;
// callers skip the field, never the whole record.
func ParseGraphTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range graphTimeFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseGraphTimePtr is ParseGraphTime for the optional strings Graph models
// carry.
func parseGraphTimePtr(value *string) (time.Time, bool) {
	if value == nil {
		return time.Time{}, false
	}
	return ParseGraphTime(*value)
}

// updateMax writes t into dst when dst is unset or strictly older, and
// reports whether it did. Equal timestamps never overwrite, so the first
// source to report a given instant keeps the associated metadata.
func updateMax(dst **time.Time, t time.Time) bool {
	if *dst == nil || t.After(**dst) {
		stamp := t
		*dst = &stamp
		return true
	}
	return false
}

// daysSince returns the whole days between now and t, rounded to nearest.
func daysSince(now, t time.Time) int {
	return int(now.Sub(t).Round(24*time.Hour) / (24 * time.Hour))
}
