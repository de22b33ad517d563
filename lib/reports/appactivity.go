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
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	"github.com/gravitational/entrascan/lib/defaults"
	"github.com/gravitational/entrascan/lib/msgraph"
)

// AppActivityClient is the subset of the Graph client the application
// activity report uses.
type AppActivityClient interface {
	IterateServicePrincipals(ctx context.Context, f func(*msgraph.ServicePrincipal) bool) error
	IterateServicePrincipalSignInActivities(ctx context.Context, f func(*msgraph.ServicePrincipalSignInActivity) bool) error
	IterateSignIns(ctx context.Context, filter string, f func(*msgraph.SignIn) bool) error
	IterateDirectoryAudits(ctx context.Context, f func(*msgraph.DirectoryAudit) bool) error
}

// AppActivityReportConfig bundles the collaborators and knobs of the
// application activity report.
type AppActivityReportConfig struct {
	// Client performs the Graph calls.
	Client AppActivityClient
	// Logger emits progress and degradation notes. Defaults to the package
	// logger.
	Logger *slog.Logger
	// Clock is used for the lookback window and day counts. Defaults to the
	// real clock.
	Clock clockwork.Clock
	// LookbackDays bounds how far back sign-in log and audit log evidence
	// counts.
	LookbackDays int
	// IncludeSignInLogs enables the per-event sign-in log pass, which is
	// slow on large tenants.
	IncludeSignInLogs bool
	// AppIDs restricts the report to the given application (client) IDs.
	// Empty means all applications.
	AppIDs []string
	// IncludeAllApps seeds a record for every service principal in the
	// directory, so applications with no recorded activity still show up.
	// Ignored when AppIDs is set.
	IncludeAllApps bool
	// MaxSignInRecords caps how many sign-in events are read per filter
	// group before moving on.
	MaxSignInRecords int
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (c *AppActivityReportConfig) CheckAndSetDefaults() error {
	if c.Client == nil {
		return trace.BadParameter("missing Client")
	}
	if c.Logger == nil {
		c.Logger = logger
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.LookbackDays <= 0 {
		c.LookbackDays = defaults.LookbackDays
	}
	if c.MaxSignInRecords <= 0 {
		c.MaxSignInRecords = defaults.MaxSignInRecords
	}
	return nil
}

// appActivityRun carries the state of one report invocation between steps.
type appActivityRun struct {
	cfg     AppActivityReportConfig
	cutoff  time.Time
	records map[string]*AppActivityRecord

	// Per-record flags of which sources contributed, keyed like records.
	sources map[string]map[string]bool

	// Service principal lookups built by the directory pass; empty when that
	// pass failed.
	spByAppID    map[string]*msgraph.ServicePrincipal
	spByObjectID map[string]string
	spByName     map[string]string

	// includeSet restricts the report when AppIDs was given.
	includeSet map[string]bool
}

// GenerateAppActivityReport merges the provider's aggregated sign-in
// activity report, optionally the raw sign-in log, and the directory audit
// log into one record per application, keyed by application (client) ID.
// Requested applications (AppIDs or IncludeAllApps) get a record even when
// no source mentions them.
//
// Each source is fetched independently; an unavailable source logs a warning
// and contributes nothing while the others still count. The returned map
// contains whatever was accumulated, and an error is returned only for a bad
// config.
func GenerateAppActivityReport(ctx context.Context, cfg AppActivityReportConfig) (map[string]*AppActivityRecord, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}

	run := &appActivityRun{
		cfg:          cfg,
		cutoff:       cfg.Clock.Now().UTC().AddDate(0, 0, -cfg.LookbackDays),
		records:      make(map[string]*AppActivityRecord),
		sources:      make(map[string]map[string]bool),
		spByAppID:    make(map[string]*msgraph.ServicePrincipal),
		spByObjectID: make(map[string]string),
		spByName:     make(map[string]string),
	}
	if len(cfg.AppIDs) > 0 {
		run.includeSet = make(map[string]bool, len(cfg.AppIDs))
		for _, appID := range cfg.AppIDs {
			run.includeSet[appID] = true
		}
	}

	run.collectServicePrincipals(ctx)
	run.seedRecords()
	run.collectAggregatedActivity(ctx)
	if cfg.IncludeSignInLogs {
		run.collectSignInLogs(ctx)
	}
	run.collectAuditActivity(ctx)
	run.finalize()

	return run.records, nil
}

func (r *appActivityRun) included(appID string) bool {
	return r.includeSet == nil || r.includeSet[appID]
}

// seedRecords pre-creates one empty record per requested application, or per
// directory application when IncludeAllApps is set. Seeded records that no
// source touches classify as having no activity.
func (r *appActivityRun) seedRecords() {
	switch {
	case len(r.cfg.AppIDs) > 0:
		for _, appID := range r.cfg.AppIDs {
			r.seed(appID)
		}
	case r.cfg.IncludeAllApps:
		for appID := range r.spByAppID {
			r.seed(appID)
		}
	}
}

func (r *appActivityRun) seed(appID string) {
	if appID == "" {
		return
	}
	if _, ok := r.records[appID]; !ok {
		r.records[appID] = &AppActivityRecord{AppID: appID}
	}
}

// record returns the existing record for appID or creates one. The first
// contributing source stamps the data quality; seeded records start without
// one. Records are never created by the audit pass, so quality is always one
// of the two sign-in sources.
func (r *appActivityRun) record(appID, quality string) *AppActivityRecord {
	if rec, ok := r.records[appID]; ok {
		if rec.DataQuality == "" {
			rec.DataQuality = quality
		}
		return rec
	}
	rec := &AppActivityRecord{
		AppID:       appID,
		DataQuality: quality,
	}
	r.records[appID] = rec
	return rec
}

func (r *appActivityRun) markSource(appID, source string) {
	set := r.sources[appID]
	if set == nil {
		set = make(map[string]bool)
		r.sources[appID] = set
	}
	set[source] = true
}

// collectServicePrincipals builds the lookup tables used to name records and
// to resolve audit targets back to application IDs. It creates no records.
func (r *appActivityRun) collectServicePrincipals(ctx context.Context) {
	err := r.cfg.Client.IterateServicePrincipals(ctx, func(sp *msgraph.ServicePrincipal) bool {
		if sp.AppID == nil || *sp.AppID == "" {
			return true
		}
		r.spByAppID[*sp.AppID] = sp
		if sp.ID != nil {
			r.spByObjectID[*sp.ID] = *sp.AppID
		}
		if sp.DisplayName != nil {
			r.spByName[*sp.DisplayName] = *sp.AppID
		}
		return true
	})
	if err != nil {
		r.cfg.Logger.WarnContext(ctx, "Failed to list service principals, records will lack directory metadata",
			"error", err,
		)
	}
}

// collectAggregatedActivity seeds records from the provider's rollup report:
// one record per application that has ever signed in, with up to six
// timestamp dimensions.
func (r *appActivityRun) collectAggregatedActivity(ctx context.Context) {
	count := 0
	err := r.cfg.Client.IterateServicePrincipalSignInActivities(ctx, func(activity *msgraph.ServicePrincipalSignInActivity) bool {
		if activity.AppID == nil || *activity.AppID == "" || !r.included(*activity.AppID) {
			return true
		}
		count++
		rec := r.record(*activity.AppID, DataQualityAggregated)
		r.markSource(*activity.AppID, sourceAggregated)

		updateDimension(&rec.LastSignIn, activity.LastSignInActivity)
		updateDimension(&rec.LastSuccessfulSignIn, activity.LastSuccessfulSignInActivity)
		updateDimension(&rec.DelegatedClientSignIn, activity.DelegatedClientSignInActivity)
		updateDimension(&rec.DelegatedResourceSignIn, activity.DelegatedResourceSignInActivity)
		updateDimension(&rec.AppClientSignIn, activity.ApplicationAuthenticationClientSignInActivity)
		updateDimension(&rec.AppResourceSignIn, activity.ApplicationAuthenticationResourceSignInActivity)
		return true
	})
	if err != nil {
		r.cfg.Logger.WarnContext(ctx, "Failed to fetch the aggregated sign-in activity report",
			"error", err,
		)
		return
	}
	r.cfg.Logger.DebugContext(ctx, "Collected aggregated sign-in activity", "applications", count)
}

// updateDimension folds one rollup entry into a record dimension,
// most-recent-wins. Entries with missing or unparseable timestamps are
// skipped for that dimension only.
func updateDimension(dst **time.Time, entry *msgraph.SignInActivityEntry) {
	if entry == nil {
		return
	}
	if t, ok := parseGraphTimePtr(entry.LastSignInDateTime); ok {
		updateMax(dst, t)
	}
}

// signInFilters returns the $filter expressions for the sign-in log pass.
// The provider caps URL length, so an application restriction is split into
// groups of at most SignInFilterGroupSize IDs, one query per group.
func (r *appActivityRun) signInFilters() []string {
	base := fmt.Sprintf("createdDateTime ge %s", r.cutoff.Format(time.RFC3339))
	if len(r.cfg.AppIDs) == 0 {
		return []string{base}
	}

	var filters []string
	for start := 0; start < len(r.cfg.AppIDs); start += defaults.SignInFilterGroupSize {
		end := min(start+defaults.SignInFilterGroupSize, len(r.cfg.AppIDs))
		clauses := make([]string, 0, end-start)
		for _, appID := range r.cfg.AppIDs[start:end] {
			clauses = append(clauses, fmt.Sprintf("appId eq '%s'", appID))
		}
		filters = append(filters, fmt.Sprintf("%s and (%s)", base, strings.Join(clauses, " or ")))
	}
	return filters
}

// collectSignInLogs walks the raw sign-in log inside the lookback window and
// folds per-event evidence into the records: last seen timestamp, event and
// failure tallies, and the set of users involved.
func (r *appActivityRun) collectSignInLogs(ctx context.Context) {
	for _, filter := range r.signInFilters() {
		matched := 0
		err := r.cfg.Client.IterateSignIns(ctx, filter, func(signIn *msgraph.SignIn) bool {
			if signIn.AppID == nil || *signIn.AppID == "" || !r.included(*signIn.AppID) {
				return true
			}
			matched++

			rec := r.record(*signIn.AppID, DataQualityRealtime)
			r.markSource(*signIn.AppID, sourceSignInLogs)
			if rec.DisplayName == "" && signIn.AppDisplayName != nil {
				rec.DisplayName = *signIn.AppDisplayName
			}
			errorCode := signInErrorCode(signIn)

			// A malformed timestamp skips this field only; the event still
			// counts toward the tallies below.
			if t, ok := parseGraphTimePtr(signIn.CreatedDateTime); ok {
				updateMax(&rec.LastSignIn, t)
				if errorCode != nil && *errorCode == 0 {
					updateMax(&rec.LastSuccessfulSignIn, t)
				}
			} else {
				r.cfg.Logger.DebugContext(ctx, "Skipping a sign-in timestamp in an unknown format",
					"app_id", *signIn.AppID,
					"value", strDeref(signIn.CreatedDateTime),
				)
			}

			rec.SignInCount++
			if errorCode != nil && *errorCode != 0 {
				rec.SignInFailureCount++
			}
			rec.countUser(strDeref(signIn.UserPrincipalName))

			return matched < r.cfg.MaxSignInRecords
		})
		if err != nil {
			r.cfg.Logger.WarnContext(ctx, "Failed to fetch sign-in logs, continuing without them",
				"filter", filter,
				"error", err,
			)
			continue
		}
		if matched >= r.cfg.MaxSignInRecords {
			r.cfg.Logger.InfoContext(ctx, "Stopped reading sign-in logs at the record cap",
				"cap", r.cfg.MaxSignInRecords,
			)
		}
	}
}

// signInErrorCode returns the event's error code, or nil when the provider
// sent no status. An event without a status counts toward neither the
// success stamp nor the failure tally.
func signInErrorCode(signIn *msgraph.SignIn) *int {
	if signIn.Status == nil {
		return nil
	}
	return signIn.Status.ErrorCode
}

// collectAuditActivity walks the directory audit log and enriches existing
// records with the most recent application-management operation. The audit
// log talks about directory objects rather than client IDs, so entries are
// matched back through the service principal lookups; entries that match no
// known record are ignored rather than creating one.
func (r *appActivityRun) collectAuditActivity(ctx context.Context) {
	err := r.cfg.Client.IterateDirectoryAudits(ctx, func(audit *msgraph.DirectoryAudit) bool {
		t, ok := parseGraphTimePtr(audit.ActivityDateTime)
		if !ok {
			return true
		}
		// Audit entries come newest first; past the window there is nothing
		// left to read.
		if t.Before(r.cutoff) {
			return false
		}
		if !isAppManagementAudit(audit) {
			return true
		}
		for _, target := range audit.TargetResources {
			appID, ok := r.resolveAuditTarget(target)
			if !ok || !r.included(appID) {
				continue
			}
			rec, ok := r.records[appID]
			if !ok {
				continue
			}
			r.markSource(appID, sourceAuditLogs)
			if updateMax(&rec.LastAuditActivity, t) {
				rec.LastAuditOperation = strDeref(audit.ActivityDisplayName)
			}
		}
		return true
	})
	if err != nil {
		r.cfg.Logger.WarnContext(ctx, "Failed to fetch directory audit logs, continuing without them",
			"error", err,
		)
	}
}

// resolveAuditTarget maps an audit target resource to an application ID via
// the service principal lookups: object ID first, display name second.
func (r *appActivityRun) resolveAuditTarget(target msgraph.TargetResource) (string, bool) {
	if target.ID != nil {
		if appID, ok := r.spByObjectID[*target.ID]; ok {
			return appID, true
		}
		// Some audit entries put the application (client) ID in the target.
		if _, ok := r.spByAppID[*target.ID]; ok {
			return *target.ID, true
		}
	}
	if target.DisplayName != nil {
		if appID, ok := r.spByName[*target.DisplayName]; ok {
			return appID, true
		}
	}
	return "", false
}

// isAppManagementAudit reports whether an audit entry concerns application
// or service principal management.
func isAppManagementAudit(audit *msgraph.DirectoryAudit) bool {
	if strings.EqualFold(strDeref(audit.Category), "ApplicationManagement") {
		return true
	}
	activity := strings.ToLower(strDeref(audit.ActivityDisplayName))
	return strings.Contains(activity, "application") || strings.Contains(activity, "service principal")
}

// finalize computes the derived fields of every record and fills in the
// directory metadata collected up front.
func (r *appActivityRun) finalize() {
	now := r.cfg.Clock.Now().UTC()
	for appID, rec := range r.records {
		if sp := r.spByAppID[appID]; sp != nil {
			if rec.DisplayName == "" {
				rec.DisplayName = strDeref(sp.DisplayName)
			}
			rec.ServicePrincipalID = strDeref(sp.ID)
			rec.AccountEnabled = sp.AccountEnabled
		}

		var sources []string
		for _, source := range []string{sourceAggregated, sourceSignInLogs, sourceAuditLogs} {
			if r.sources[appID][source] {
				sources = append(sources, source)
			}
		}
		rec.finalize(now, sources)
	}
}
