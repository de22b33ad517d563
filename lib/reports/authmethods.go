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
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	"github.com/gravitational/entrascan/lib/defaults"
	"github.com/gravitational/entrascan/lib/msgraph"
)

// AuthMethodsClient is the subset of the Graph client the authentication
// methods report uses.
type AuthMethodsClient interface {
	IterateUsers(ctx context.Context, f func(*msgraph.User) bool) error
	Batch(ctx context.Context, requests []msgraph.BatchRequest) (*msgraph.BatchResponse, error)
}

// AuthMethodsReportConfig bundles the collaborators and knobs of the
// authentication methods report.
type AuthMethodsReportConfig struct {
	// Client performs the Graph calls.
	Client AuthMethodsClient
	// Logger emits progress and degradation notes. Defaults to the package
	// logger.
	Logger *slog.Logger
	// Clock is used to derive day counts. Defaults to the real clock.
	Clock clockwork.Clock
	// ChunkSize caps how many sub-requests ride in a single $batch call.
	ChunkSize int
	// Concurrency caps in-flight $batch calls.
	Concurrency int
	// FetchDeviceDetail enables the per-method detail round for method kinds
	// that only carry device information on their detail resource.
	FetchDeviceDetail bool
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (c *AuthMethodsReportConfig) CheckAndSetDefaults() error {
	if c.Client == nil {
		return trace.BadParameter("missing Client")
	}
	if c.Logger == nil {
		c.Logger = logger
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.ChunkSize <= 0 || c.ChunkSize > msgraph.MaxBatchRequests {
		c.ChunkSize = defaults.BatchChunkSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaults.BatchConcurrency
	}
	return nil
}

// methodTrait describes how one method discriminator maps onto the report:
// the human readable label, the registration flag it sets, and whether a
// per-method detail fetch is worthwhile. Adding support for a new method
// kind is an entry here, not a new branch elsewhere.
type methodTrait struct {
	label string
	set   func(*RegisteredMethods)
	// collection is the per-user sub-collection holding the detail resource.
	collection string
	// alwaysDetail marks kinds whose summary entry is too thin to report on.
	alwaysDetail bool
	// detailOnDevices marks kinds whose detail fetch only pays off when
	// device enrichment was requested.
	detailOnDevices bool
	// expandDevice adds $expand=device to the detail request.
	expandDevice bool
}

var methodTraits = map[string]methodTrait{
	msgraph.ODataTypePasswordMethod: {
		label: "Password",
		set:   func(m *RegisteredMethods) { m.Password = true },
	},
	msgraph.ODataTypeAuthenticatorMethod: {
		label:        "Microsoft Authenticator",
		set:          func(m *RegisteredMethods) { m.MicrosoftAuthenticator = true },
		collection:   "microsoftAuthenticatorMethods",
		alwaysDetail: true,
		expandDevice: true,
	},
	msgraph.ODataTypePhoneMethod: {
		label: "Phone",
		set:   func(m *RegisteredMethods) { m.Phone = true },
	},
	msgraph.ODataTypeFIDO2Method: {
		label:           "FIDO2 Security Key",
		set:             func(m *RegisteredMethods) { m.FIDO2 = true },
		collection:      "fido2Methods",
		detailOnDevices: true,
	},
	msgraph.ODataTypeWindowsHelloMethod: {
		label:           "Windows Hello for Business",
		set:             func(m *RegisteredMethods) { m.WindowsHello = true },
		collection:      "windowsHelloForBusinessMethods",
		detailOnDevices: true,
		expandDevice:    true,
	},
	msgraph.ODataTypeEmailMethod: {
		label: "Email",
		set:   func(m *RegisteredMethods) { m.Email = true },
	},
	msgraph.ODataTypeTemporaryAccessPassMethod: {
		label: "Temporary Access Pass",
		set:   func(m *RegisteredMethods) { m.TemporaryAccessPass = true },
	},
	msgraph.ODataTypeSoftwareOathMethod: {
		label: "Software OATH Token",
		set:   func(m *RegisteredMethods) { m.SoftwareOath = true },
	},
	msgraph.ODataTypePlatformCredentialMethod: {
		label:           "Platform Credential",
		set:             func(m *RegisteredMethods) { m.PlatformCredential = true },
		collection:      "platformCredentialMethods",
		detailOnDevices: true,
		expandDevice:    true,
	},
}

func (t methodTrait) wantsDetail(fetchDevices bool) bool {
	return t.alwaysDetail || (t.detailOnDevices && fetchDevices)
}

func (t methodTrait) detailURL(userID, methodID string) string {
	u := fmt.Sprintf("/users/%s/authentication/%s/%s",
		url.PathEscape(userID), t.collection, url.PathEscape(methodID))
	if t.expandDevice {
		u += "?$expand=device"
	}
	return u
}

// detailRequest tracks one planned detail fetch through the second round.
// processed means the fetch was attempted, not that it succeeded; detail
// stays nil when it did not.
type detailRequest struct {
	userID     string
	methodID   string
	requestID  string
	methodType string
	url        string
	processed  bool
	detail     *msgraph.AuthenticationMethodDetail
}

// userSummary is the round-1 result for one user. ok distinguishes a
// confirmed method list, empty included, from a failed fetch.
type userSummary struct {
	methods []msgraph.AuthenticationMethod
	ok      bool
	err     error
}

// GenerateAuthMethodsReport builds one record per directory user describing
// the authentication methods the user has registered.
//
// The report runs in two batch rounds: the first fetches every user's method
// summary, the second enriches the method kinds that carry details on a
// separate resource. Per-user failures in either round degrade that user's
// record instead of failing the report; only listing the directory itself
// can return an error.
func GenerateAuthMethodsReport(ctx context.Context, cfg AuthMethodsReportConfig) ([]*UserAuthMethodRecord, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	log := cfg.Logger

	var users []*msgraph.User
	err := cfg.Client.IterateUsers(ctx, func(u *msgraph.User) bool {
		users = append(users, u)
		return true
	})
	if err != nil {
		return nil, trace.Wrap(err, "listing users")
	}
	log.InfoContext(ctx, "Collected report targets", "users", len(users))

	summaries := collectMethodSummaries(ctx, cfg, users)
	detailsByUser := collectMethodDetails(ctx, cfg, users, summaries)

	now := cfg.Clock.Now().UTC()
	records := make([]*UserAuthMethodRecord, 0, len(users))
	for _, u := range users {
		record := newUserAuthMethodRecord(u, now)
		switch {
		case u.ID == nil || *u.ID == "":
			record.FetchError = "user entry is missing an object ID"
		default:
			summary := summaries[*u.ID]
			switch {
			case summary == nil:
				record.FetchError = "no response received for the authentication methods request"
			case !summary.ok:
				record.FetchError = summary.err.Error()
			default:
				record.Methods = deriveRegisteredMethods(summary.methods, detailsByUser[*u.ID])
			}
		}
		records = append(records, record)
	}
	return records, nil
}

// collectMethodSummaries runs round 1: one methods listing per user, chunked
// into $batch calls.
func collectMethodSummaries(ctx context.Context, cfg AuthMethodsReportConfig, users []*msgraph.User) map[string]*userSummary {
	chunks := PlanBatches(users, cfg.ChunkSize, "m", func(u *msgraph.User) (msgraph.BatchRequest, *msgraph.User, bool) {
		if u.ID == nil || *u.ID == "" {
			return msgraph.BatchRequest{}, nil, false
		}
		return msgraph.BatchRequest{
			Method: http.MethodGet,
			URL:    fmt.Sprintf("/users/%s/authentication/methods", url.PathEscape(*u.ID)),
		}, u, true
	})

	summaries := make(map[string]*userSummary, len(users))
	for _, outcome := range RunBatches(ctx, cfg.Client, cfg.Logger, "authentication method summaries", chunks, cfg.Concurrency) {
		if outcome.Context == nil || outcome.Context.ID == nil {
			continue
		}
		summary := &userSummary{}
		summaries[*outcome.Context.ID] = summary
		if !outcome.OK {
			summary.err = outcome.Err
			continue
		}
		var list struct {
			Value []msgraph.AuthenticationMethod `json:"value"`
		}
		if err := json.Unmarshal(outcome.Body, &list); err != nil {
			cfg.Logger.WarnContext(ctx, "Failed to decode an authentication methods summary",
				"user", *outcome.Context.ID,
				"error", err,
			)
			summary.err = trace.Wrap(err)
			continue
		}
		summary.methods = list.Value
		summary.ok = true
	}
	return summaries
}

// collectMethodDetails plans and runs round 2: one detail fetch per method
// instance that wants one, batched together across users. The returned map
// is keyed by user ID.
func collectMethodDetails(ctx context.Context, cfg AuthMethodsReportConfig, users []*msgraph.User, summaries map[string]*userSummary) map[string][]*detailRequest {
	var planned []msgraph.BatchRequest
	byRequestID := make(map[string]*detailRequest)
	byUser := make(map[string][]*detailRequest)

	counter := 0
	for _, u := range users {
		if u.ID == nil {
			continue
		}
		summary := summaries[*u.ID]
		if summary == nil || !summary.ok {
			continue
		}
		for _, method := range summary.methods {
			trait, known := methodTraits[method.ODataType]
			if !known || !trait.wantsDetail(cfg.FetchDeviceDetail) || method.ID == nil {
				continue
			}
			counter++
			item := &detailRequest{
				userID:     *u.ID,
				methodID:   *method.ID,
				requestID:  fmt.Sprintf("d%08x", counter),
				methodType: method.ODataType,
				url:        trait.detailURL(*u.ID, *method.ID),
			}
			byRequestID[item.requestID] = item
			byUser[item.userID] = append(byUser[item.userID], item)
			planned = append(planned, msgraph.BatchRequest{
				ID:     item.requestID,
				Method: http.MethodGet,
				URL:    item.url,
			})
		}
	}
	if len(planned) == 0 {
		return byUser
	}

	chunks := ChunkRequests(planned, byRequestID, cfg.ChunkSize)
	for _, outcome := range RunBatches(ctx, cfg.Client, cfg.Logger, "authentication method details", chunks, cfg.Concurrency) {
		item := outcome.Context
		if item == nil {
			continue
		}
		item.processed = true
		if !outcome.OK {
			cfg.Logger.DebugContext(ctx, "Method detail fetch failed",
				"request_id", outcome.RequestID,
				"method_type", item.methodType,
				"status", outcome.Status,
				"error", outcome.Err,
			)
			continue
		}
		var detail msgraph.AuthenticationMethodDetail
		if err := json.Unmarshal(outcome.Body, &detail); err != nil {
			cfg.Logger.WarnContext(ctx, "Failed to decode a method detail response",
				"request_id", outcome.RequestID,
				"error", err,
			)
			continue
		}
		item.detail = &detail
	}
	return byUser
}

func newUserAuthMethodRecord(u *msgraph.User, now time.Time) *UserAuthMethodRecord {
	record := &UserAuthMethodRecord{
		ID:                strDeref(u.ID),
		DisplayName:       strDeref(u.DisplayName),
		UserPrincipalName: strDeref(u.UserPrincipalName),
		UserType:          strDeref(u.UserType),
		AccountEnabled:    u.AccountEnabled,
	}
	if u.SignInActivity == nil {
		return record
	}
	if t, ok := parseGraphTimePtr(u.SignInActivity.LastSignInDateTime); ok {
		stamp := t
		record.LastSignIn = &stamp
		days := daysSince(now, t)
		record.DaysSinceLastSignIn = &days
	}
	if t, ok := parseGraphTimePtr(u.SignInActivity.LastSuccessfulSignInDateTime); ok {
		stamp := t
		record.LastSuccessfulSignIn = &stamp
	}
	return record
}

// deriveRegisteredMethods folds a confirmed method list plus any detail
// round results into the per-user flags and rollups. Every flag and rollup
// is a function of the method list and the details passed in.
func deriveRegisteredMethods(methods []msgraph.AuthenticationMethod, details []*detailRequest) *RegisteredMethods {
	out := &RegisteredMethods{
		TotalMethodsCount:     len(methods),
		MethodTypesRegistered: []string{},
	}

	detailByMethod := make(map[string]*detailRequest, len(details))
	for _, item := range details {
		detailByMethod[item.methodID] = item
	}

	seen := make(map[string]bool)
	addType := func(label string) {
		if !seen[label] {
			seen[label] = true
			out.MethodTypesRegistered = append(out.MethodTypesRegistered, label)
		}
	}

	for _, method := range methods {
		trait, known := methodTraits[method.ODataType]
		if !known {
			// Unrecognized kinds still count toward the rollups under a
			// label derived from the discriminator.
			label := strings.TrimSuffix(strings.TrimPrefix(method.ODataType, "#microsoft.graph."), "AuthenticationMethod")
			if label == "" {
				label = "unknown"
			}
			addType(label)
			continue
		}
		trait.set(out)
		addType(trait.label)

		var detail *msgraph.AuthenticationMethodDetail
		if method.ID != nil {
			if item := detailByMethod[*method.ID]; item != nil {
				detail = item.detail
			}
		}
		switch method.ODataType {
		case msgraph.ODataTypeAuthenticatorMethod:
			out.AuthenticatorDevices = append(out.AuthenticatorDevices, describeAuthenticator(method, detail))
		case msgraph.ODataTypeFIDO2Method:
			out.FIDO2Keys = append(out.FIDO2Keys, describeFIDO2(method, detail))
		case msgraph.ODataTypeWindowsHelloMethod:
			out.WindowsHelloDevices = append(out.WindowsHelloDevices, describeWindowsHello(method, detail))
		case msgraph.ODataTypePhoneMethod:
			out.PhoneNumbers = append(out.PhoneNumbers, describePhone(method))
		case msgraph.ODataTypeEmailMethod:
			out.EmailAddresses = append(out.EmailAddresses, describeEmail(method))
		}
	}

	out.DefaultMFAMethod = defaultMFAMethod(out)
	out.IsMFACapable = out.MicrosoftAuthenticator || out.Phone || out.FIDO2 || out.WindowsHello || out.SoftwareOath
	out.IsPasswordlessCapable = (out.FIDO2 || out.WindowsHello) && !out.Password
	return out
}

// defaultMFAMethod picks the strongest registered MFA method by a fixed
// priority order.
func defaultMFAMethod(m *RegisteredMethods) string {
	switch {
	case m.MicrosoftAuthenticator:
		return "Microsoft Authenticator"
	case m.FIDO2:
		return "FIDO2 Security Key"
	case m.Phone:
		return "Phone"
	case m.WindowsHello:
		return "Windows Hello for Business"
	case m.SoftwareOath:
		return "Software OATH Token"
	default:
		return "none"
	}
}

func describeAuthenticator(method msgraph.AuthenticationMethod, detail *msgraph.AuthenticationMethodDetail) string {
	name := strDeref(method.DisplayName)
	var version string
	if detail != nil {
		if detail.DisplayName != nil && *detail.DisplayName != "" {
			name = *detail.DisplayName
		}
		version = strDeref(detail.PhoneAppVersion)
	}
	if name == "" {
		name = "unnamed device"
	}
	if version != "" {
		return fmt.Sprintf("%s (app %s)", name, version)
	}
	return name
}

func describeFIDO2(method msgraph.AuthenticationMethod, detail *msgraph.AuthenticationMethodDetail) string {
	name := strDeref(method.DisplayName)
	if detail != nil && detail.Model != nil && *detail.Model != "" {
		if name == "" {
			return *detail.Model
		}
		return fmt.Sprintf("%s (%s)", name, *detail.Model)
	}
	if name == "" {
		return "unnamed key"
	}
	return name
}

func describeWindowsHello(method msgraph.AuthenticationMethod, detail *msgraph.AuthenticationMethodDetail) string {
	name := strDeref(method.DisplayName)
	var strength string
	if detail != nil {
		if detail.Device != nil && detail.Device.DisplayName != nil && *detail.Device.DisplayName != "" {
			name = *detail.Device.DisplayName
		}
		strength = strDeref(detail.KeyStrength)
	}
	if name == "" {
		name = "unnamed device"
	}
	if strength != "" {
		return fmt.Sprintf("%s (%s)", name, strength)
	}
	return name
}

func describePhone(method msgraph.AuthenticationMethod) string {
	number := strDeref(method.PhoneNumber)
	if number == "" {
		number = "unknown number"
	}
	if phoneType := strDeref(method.PhoneType); phoneType != "" {
		return fmt.Sprintf("%s (%s)", number, phoneType)
	}
	return number
}

func describeEmail(method msgraph.AuthenticationMethod) string {
	if address := strDeref(method.EmailAddress); address != "" {
		return address
	}
	return "unknown address"
}

func strDeref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
