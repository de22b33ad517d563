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

// ActivityLevel is the discrete recency classification of an application's
// most recent activity.
type ActivityLevel string

const (
	ActivityLevelVeryActive ActivityLevel = "Very Active"
	ActivityLevelActive     ActivityLevel = "Active"
	ActivityLevelModerate   ActivityLevel = "Moderate"
	ActivityLevelLow        ActivityLevel = "Low"
	ActivityLevelInactive   ActivityLevel = "Inactive"
	ActivityLevelNoActivity ActivityLevel = "No Activity"
)

// classifyActivity buckets days-since-last-activity into the fixed recency
// scale. nil means no activity was ever observed for the application.
func classifyActivity(days *int) ActivityLevel {
	switch {
	case days == nil:
		return ActivityLevelNoActivity
	case *days <= 7:
		return ActivityLevelVeryActive
	case *days <= 30:
		return ActivityLevelActive
	case *days <= 90:
		return ActivityLevelModerate
	case *days <= 180:
		return ActivityLevelLow
	default:
		return ActivityLevelInactive
	}
}

// RegisteredMethods holds everything derived from one user's confirmed
// authentication method list: per-kind registration flags, human readable
// summaries per category, and the rollups computed from them. A nil
// *RegisteredMethods on the user record means the method fetch failed, which
// is not the same as a confirmed empty list.
type RegisteredMethods struct {
	Password               bool `json:"password"`
	MicrosoftAuthenticator bool `json:"microsoftAuthenticator"`
	Phone                  bool `json:"phone"`
	FIDO2                  bool `json:"fido2"`
	WindowsHello           bool `json:"windowsHello"`
	Email                  bool `json:"email"`
	TemporaryAccessPass    bool `json:"temporaryAccessPass"`
	SoftwareOath           bool `json:"softwareOath"`
	PlatformCredential     bool `json:"platformCredential"`

	// Human readable per-category summaries, filled in from the detail round
	// where one ran and from the summary payload otherwise.
	AuthenticatorDevices []string `json:"authenticatorDevices,omitempty"`
	FIDO2Keys            []string `json:"fido2Keys,omitempty"`
	WindowsHelloDevices  []string `json:"windowsHelloDevices,omitempty"`
	PhoneNumbers         []string `json:"phoneNumbers,omitempty"`
	EmailAddresses       []string `json:"emailAddresses,omitempty"`

	TotalMethodsCount     int      `json:"totalMethodsCount"`
	MethodTypesRegistered []string `json:"methodTypesRegistered"`
	DefaultMFAMethod      string   `json:"defaultMfaMethod"`
	IsMFACapable          bool     `json:"isMfaCapable"`
	IsPasswordlessCapable bool     `json:"isPasswordlessCapable"`
}

// UserAuthMethodRecord is one row of the authentication methods report.
// Every targeted user produces exactly one record; when the per-user method
// fetch failed, Methods is nil and FetchError says why.
type UserAuthMethodRecord struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName,omitempty"`
	UserPrincipalName string `json:"userPrincipalName,omitempty"`
	AccountEnabled    *bool  `json:"accountEnabled,omitempty"`
	UserType          string `json:"userType,omitempty"`

	LastSignIn           *time.Time `json:"lastSignIn,omitempty"`
	LastSuccessfulSignIn *time.Time `json:"lastSuccessfulSignIn,omitempty"`
	DaysSinceLastSignIn  *int       `json:"daysSinceLastSignIn,omitempty"`

	Methods *RegisteredMethods `json:"methods,omitempty"`

	FetchError string `json:"fetchError,omitempty"`
}

// AppActivityRecord accumulates sign-in evidence for one application across
// the aggregated activity report, the sign-in log, and the audit log, keyed
// by the application (client) ID.
type AppActivityRecord struct {
	AppID              string `json:"appId"`
	DisplayName        string `json:"displayName,omitempty"`
	ServicePrincipalID string `json:"servicePrincipalId,omitempty"`
	AccountEnabled     *bool  `json:"accountEnabled,omitempty"`

	// Timestamp dimensions, each most-recent-wins across sources.
	LastSignIn              *time.Time `json:"lastSignIn,omitempty"`
	LastSuccessfulSignIn    *time.Time `json:"lastSuccessfulSignIn,omitempty"`
	DelegatedClientSignIn   *time.Time `json:"delegatedClientSignIn,omitempty"`
	DelegatedResourceSignIn *time.Time `json:"delegatedResourceSignIn,omitempty"`
	AppClientSignIn         *time.Time `json:"appClientSignIn,omitempty"`
	AppResourceSignIn       *time.Time `json:"appResourceSignIn,omitempty"`
	LastAuditActivity       *time.Time `json:"lastAuditActivity,omitempty"`
	LastAuditOperation      string     `json:"lastAuditOperation,omitempty"`

	// Sign-in log tallies, populated only when the sign-in log pass runs.
	SignInCount        int `json:"signInCount,omitempty"`
	SignInFailureCount int `json:"signInFailureCount,omitempty"`
	UniqueUserCount    int `json:"uniqueUserCount,omitempty"`

	MostRecentActivity    *time.Time    `json:"mostRecentActivity,omitempty"`
	DaysSinceLastActivity *int          `json:"daysSinceLastActivity,omitempty"`
	ActivityLevel         ActivityLevel `json:"activityLevel"`
	// ActivityTypes names the timestamp dimensions that contributed data.
	ActivityTypes []string `json:"activityTypes,omitempty"`
	// ActivitySourcesSummary names the data sources that contributed, in
	// fetch order.
	ActivitySourcesSummary string `json:"activitySourcesSummary,omitempty"`
	// DataQuality records which source created the record: "Aggregated" for
	// the provider's rollup report, "Realtime" for the raw sign-in log.
	DataQuality string `json:"dataQuality"`

	users map[string]struct{}
}

// Data quality markers for AppActivityRecord.
const (
	DataQualityAggregated = "Aggregated"
	DataQualityRealtime   = "Realtime"
)

// Activity source names used in ActivitySourcesSummary.
const (
	sourceAggregated = "Aggregated report"
	sourceSignInLogs = "Sign-in logs"
	sourceAuditLogs  = "Audit logs"
)

// countUser tracks a user principal seen in the sign-in log for the unique
// user rollup.
func (r *AppActivityRecord) countUser(principal string) {
	if principal == "" {
		return
	}
	if r.users == nil {
		r.users = make(map[string]struct{})
	}
	r.users[principal] = struct{}{}
}

// activityDimensions returns the record's timestamp dimensions, labeled the
// way they appear in ActivityTypes.
func (r *AppActivityRecord) activityDimensions() []struct {
	label string
	when  *time.Time
} {
	return []struct {
		label string
		when  *time.Time
	}{
		{"signIn", r.LastSignIn},
		{"successfulSignIn", r.LastSuccessfulSignIn},
		{"delegatedClient", r.DelegatedClientSignIn},
		{"delegatedResource", r.DelegatedResourceSignIn},
		{"applicationClient", r.AppClientSignIn},
		{"applicationResource", r.AppResourceSignIn},
		{"audit", r.LastAuditActivity},
	}
}

// finalize computes the derived fields from whatever the source steps
// accumulated: the most recent timestamp across all dimensions, its age in
// days, the activity level, and the human readable contribution summaries.
func (r *AppActivityRecord) finalize(now time.Time, sources []string) {
	var mostRecent *time.Time
	var types []string
	for _, dim := range r.activityDimensions() {
		if dim.when == nil {
			continue
		}
		types = append(types, dim.label)
		updateMax(&mostRecent, *dim.when)
	}

	r.ActivityTypes = types
	r.MostRecentActivity = mostRecent
	if mostRecent != nil {
		days := daysSince(now, *mostRecent)
		r.DaysSinceLastActivity = &days
	}
	r.ActivityLevel = classifyActivity(r.DaysSinceLastActivity)
	r.ActivitySourcesSummary = strings.Join(sources, ", ")
	r.UniqueUserCount = len(r.users)
}
