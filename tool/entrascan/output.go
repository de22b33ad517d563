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

package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gravitational/trace"

	"github.com/gravitational/entrascan/lib/asciitable"
	"github.com/gravitational/entrascan/lib/config"
	"github.com/gravitational/entrascan/lib/reports"
)

// withOutput runs fn against the configured output: the given file path, or
// stdout when no path is set.
func withOutput(path string, stdout io.Writer, fn func(io.Writer) error) error {
	if path == "" {
		return trace.Wrap(fn(stdout))
	}
	f, err := os.Create(path)
	if err != nil {
		return trace.ConvertSystemError(err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return trace.Wrap(err)
	}
	return trace.ConvertSystemError(f.Close())
}

// writeAuthMethodsReport renders the authentication methods report in the
// configured format. Records are sorted by user principal name so the output
// is stable regardless of directory paging order.
func writeAuthMethodsReport(stdout io.Writer, out config.OutputConfig, records []*reports.UserAuthMethodRecord) error {
	slices.SortFunc(records, func(a, b *reports.UserAuthMethodRecord) int {
		if c := strings.Compare(a.UserPrincipalName, b.UserPrincipalName); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	return withOutput(out.Path, stdout, func(w io.Writer) error {
		switch out.Format {
		case config.FormatJSON:
			return writeJSON(w, records)
		case config.FormatCSV:
			return writeCSV(w, authMethodsCSVHeader, authMethodsCSVRows(records))
		default:
			return writeAuthMethodsTable(w, records)
		}
	})
}

// writeAppActivityReport renders the application activity report in the
// configured format, sorted by application ID.
func writeAppActivityReport(stdout io.Writer, out config.OutputConfig, byAppID map[string]*reports.AppActivityRecord) error {
	records := make([]*reports.AppActivityRecord, 0, len(byAppID))
	for _, appID := range slices.Sorted(maps.Keys(byAppID)) {
		records = append(records, byAppID[appID])
	}

	return withOutput(out.Path, stdout, func(w io.Writer) error {
		switch out.Format {
		case config.FormatJSON:
			return writeJSON(w, records)
		case config.FormatCSV:
			return writeCSV(w, appActivityCSVHeader, appActivityCSVRows(records))
		default:
			return writeAppActivityTable(w, records)
		}
	})
}

func writeJSON(w io.Writer, records any) error {
	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return trace.Wrap(err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return trace.Wrap(err)
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return trace.Wrap(err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return trace.Wrap(err)
	}
	cw.Flush()
	return trace.Wrap(cw.Error())
}

// writeAuthMethodsTable prints a compact per-user summary. The error column
// is truncated to fit the terminal; the CSV and JSON formats carry the full
// error text.
func writeAuthMethodsTable(w io.Writer, records []*reports.UserAuthMethodRecord) error {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		methods, defaultMFA, passwordless := "", "", ""
		if rec.Methods != nil {
			methods = strings.Join(rec.Methods.MethodTypesRegistered, ", ")
			defaultMFA = rec.Methods.DefaultMFAMethod
			passwordless = strconv.FormatBool(rec.Methods.IsPasswordlessCapable)
		}
		rows = append(rows, []string{
			rec.UserPrincipalName,
			methods,
			defaultMFA,
			passwordless,
			formatTimePtr(rec.LastSignIn),
			rec.FetchError,
		})
	}

	table := asciitable.MakeTableWithTruncatedColumn(
		[]string{"User", "Methods", "Default MFA", "Passwordless", "Last Sign-In", "Error"},
		rows,
		"Error",
	)
	_, err := table.AsBuffer().WriteTo(w)
	return trace.Wrap(err)
}

func writeAppActivityTable(w io.Writer, records []*reports.AppActivityRecord) error {
	table := asciitable.MakeTable([]string{
		"App ID", "Name", "Enabled", "Most Recent Activity", "Days", "Level", "Sign-Ins", "Users", "Sources",
	})
	for _, rec := range records {
		table.AddRow([]string{
			rec.AppID,
			rec.DisplayName,
			formatBoolPtr(rec.AccountEnabled),
			formatTimePtr(rec.MostRecentActivity),
			formatIntPtr(rec.DaysSinceLastActivity),
			string(rec.ActivityLevel),
			strconv.Itoa(rec.SignInCount),
			strconv.Itoa(rec.UniqueUserCount),
			rec.ActivitySourcesSummary,
		})
	}
	_, err := table.AsBuffer().WriteTo(w)
	return trace.Wrap(err)
}

var authMethodsCSVHeader = []string{
	"id", "userPrincipalName", "displayName", "accountEnabled", "userType",
	"lastSignIn", "lastSuccessfulSignIn", "daysSinceLastSignIn",
	"methodTypesRegistered", "totalMethodsCount", "defaultMfaMethod",
	"isMfaCapable", "isPasswordlessCapable",
	"authenticatorDevices", "fido2Keys", "windowsHelloDevices", "phoneNumbers",
	"emailAddresses", "fetchError",
}

func authMethodsCSVRows(records []*reports.UserAuthMethodRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := []string{
			rec.ID,
			rec.UserPrincipalName,
			rec.DisplayName,
			formatBoolPtr(rec.AccountEnabled),
			rec.UserType,
			formatTimePtr(rec.LastSignIn),
			formatTimePtr(rec.LastSuccessfulSignIn),
			formatIntPtr(rec.DaysSinceLastSignIn),
		}
		if m := rec.Methods; m != nil {
			row = append(row,
				strings.Join(m.MethodTypesRegistered, "; "),
				strconv.Itoa(m.TotalMethodsCount),
				m.DefaultMFAMethod,
				strconv.FormatBool(m.IsMFACapable),
				strconv.FormatBool(m.IsPasswordlessCapable),
				strings.Join(m.AuthenticatorDevices, "; "),
				strings.Join(m.FIDO2Keys, "; "),
				strings.Join(m.WindowsHelloDevices, "; "),
				strings.Join(m.PhoneNumbers, "; "),
				strings.Join(m.EmailAddresses, "; "),
			)
		} else {
			row = append(row, "", "", "", "", "", "", "", "", "", "")
		}
		row = append(row, rec.FetchError)
		rows = append(rows, row)
	}
	return rows
}

var appActivityCSVHeader = []string{
	"appId", "displayName", "servicePrincipalId", "accountEnabled",
	"lastSignIn", "lastSuccessfulSignIn",
	"delegatedClientSignIn", "delegatedResourceSignIn",
	"appClientSignIn", "appResourceSignIn",
	"lastAuditActivity", "lastAuditOperation",
	"signInCount", "signInFailureCount", "uniqueUserCount",
	"mostRecentActivity", "daysSinceLastActivity", "activityLevel",
	"activityTypes", "activitySourcesSummary", "dataQuality",
}

func appActivityCSVRows(records []*reports.AppActivityRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.AppID,
			rec.DisplayName,
			rec.ServicePrincipalID,
			formatBoolPtr(rec.AccountEnabled),
			formatTimePtr(rec.LastSignIn),
			formatTimePtr(rec.LastSuccessfulSignIn),
			formatTimePtr(rec.DelegatedClientSignIn),
			formatTimePtr(rec.DelegatedResourceSignIn),
			formatTimePtr(rec.AppClientSignIn),
			formatTimePtr(rec.AppResourceSignIn),
			formatTimePtr(rec.LastAuditActivity),
			rec.LastAuditOperation,
			strconv.Itoa(rec.SignInCount),
			strconv.Itoa(rec.SignInFailureCount),
			strconv.Itoa(rec.UniqueUserCount),
			formatTimePtr(rec.MostRecentActivity),
			formatIntPtr(rec.DaysSinceLastActivity),
			string(rec.ActivityLevel),
			strings.Join(rec.ActivityTypes, "; "),
			rec.ActivitySourcesSummary,
			rec.DataQuality,
		})
	}
	return rows
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatBoolPtr(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}

func formatIntPtr(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}
