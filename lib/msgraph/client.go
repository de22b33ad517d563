package msgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	"github.com/gravitational/entrascan"
	"github.com/gravitational/entrascan/lib/defaults"
	logutils "github.com/gravitational/entrascan/lib/utils/log"
	"github.com/gravitational/entrascan/lib/utils/retryutils"
)

var logger = logutils.NewPackageLogger(entrascan.ComponentKey, entrascan.ComponentGraph)

const (
	// MSGraphDefaultEndpoint is the worldwide Graph API endpoint.
	MSGraphDefaultEndpoint = "https://graph.microsoft.com"
	// MSGraphUSGovL4Endpoint is the US Government L4 Graph API endpoint.
	MSGraphUSGovL4Endpoint = "https://graph.microsoft.us"
	// MSGraphUSGovL5Endpoint is the US Government L5 (DOD) Graph API endpoint.
	MSGraphUSGovL5Endpoint = "https://dod-graph.microsoft.us"
	// MSGraphChinaEndpoint is the China Graph API endpoint.
	MSGraphChinaEndpoint = "https://microsoftgraph.chinacloudapi.cn"
)

const (
	graphVersion     = "v1.0"
	graphBetaVersion = "beta"
)

var supportedGraphEndpoints = map[string]struct{}{
	MSGraphDefaultEndpoint: {},
	MSGraphUSGovL4Endpoint: {},
	MSGraphUSGovL5Endpoint: {},
	MSGraphChinaEndpoint:   {},
}

var scopes = []string{"https://graph.microsoft.com/.default"}

const (
	defaultPageSize = 500
	maxRetries      = 5
	// maxErrorResponseSize bounds how much of a failed response body is
	// read for error reporting.
	maxErrorResponseSize = 1 << 20
)

const (
	userSelectFields             = "id,displayName,userPrincipalName,mail,accountEnabled,userType,createdDateTime,signInActivity"
	servicePrincipalSelectFields = "id,appId,displayName,accountEnabled,servicePrincipalType"
)

type azureTokenProvider interface {
	GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error)
}

// Config defines the connection parameters of a Graph API client.
type Config struct {
	// TokenProvider provides OAuth2 tokens for the Graph API scope. Any
	// azidentity credential satisfies this interface.
	TokenProvider azureTokenProvider
	// HTTPClient is the HTTP client to use for all calls. Defaults to a
	// client whose round trips time out after
	// [defaults.GraphRequestTimeout].
	HTTPClient *http.Client
	// Clock paces retries of throttled calls. Defaults to the real clock.
	Clock clockwork.Clock
	// RetryConfig shapes the backoff between retries when the provider
	// does not send an explicit Retry-After hint.
	RetryConfig *retryutils.RetryV2Config
	// GraphEndpoint is the Graph API endpoint, without the version
	// segment. Defaults to [MSGraphDefaultEndpoint].
	GraphEndpoint string
	// PageSize is the page size requested from paginated endpoints.
	PageSize int
}

// SetDefaults sets the default values for optional fields.
func (cfg *Config) SetDefaults() {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaults.GraphRequestTimeout}
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.RetryConfig == nil {
		cfg.RetryConfig = &retryutils.RetryV2Config{
			First:  1 * time.Second,
			Driver: retryutils.NewExponentialDriver(1 * time.Second),
			Max:    30 * time.Second,
		}
	}
	if cfg.GraphEndpoint == "" {
		cfg.GraphEndpoint = MSGraphDefaultEndpoint
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
}

// Validate checks that required fields are set and valid.
func (cfg *Config) Validate() error {
	if cfg.TokenProvider == nil {
		return trace.BadParameter("TokenProvider must be set")
	}
	if _, ok := supportedGraphEndpoints[cfg.GraphEndpoint]; !ok {
		return trace.BadParameter("unsupported Graph endpoint %q", cfg.GraphEndpoint)
	}
	return nil
}

// Client is a thin client for the Microsoft Graph API.
type Client struct {
	httpClient    *http.Client
	tokenProvider azureTokenProvider
	clock         clockwork.Clock
	retryConfig   retryutils.RetryV2Config
	pageSize      int
	// baseURL is the versioned API root, {endpoint}/v1.0.
	baseURL *url.URL
	// betaURL is the beta API root. Some reporting endpoints exist only
	// on the beta surface.
	betaURL *url.URL
}

// NewClient returns a new Graph API client for the given config.
func NewClient(cfg Config) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, trace.Wrap(err)
	}
	baseURL, err := url.Parse(cfg.GraphEndpoint + "/" + graphVersion)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	betaURL, err := url.Parse(cfg.GraphEndpoint + "/" + graphBetaVersion)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	retryConfig := *cfg.RetryConfig
	retryConfig.Clock = cfg.Clock
	return &Client{
		httpClient:    cfg.HTTPClient,
		tokenProvider: cfg.TokenProvider,
		clock:         cfg.Clock,
		retryConfig:   retryConfig,
		pageSize:      cfg.PageSize,
		baseURL:       baseURL,
		betaURL:       betaURL,
	}, nil
}

// request performs one Graph call, retrying throttled responses with the
// provider's Retry-After hint when present and the configured backoff
// otherwise. The token is re-acquired before every attempt so that a
// token expiring mid-backoff does not fail the retry.
func (c *Client) request(ctx context.Context, method string, uri string, payload []byte) (*http.Response, error) {
	retry, err := retryutils.NewRetryV2(c.retryConfig)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	var lastErr error
	for range maxRetries {
		token, err := c.tokenProvider.GetToken(ctx, policy.TokenRequestOptions{
			Scopes: scopes,
		})
		if err != nil {
			return nil, trace.Wrap(err, "failed to get azure authentication token")
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, uri, body)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		req.Header.Set("Authorization", "Bearer "+token.Token)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, trace.Wrap(err) // hard I/O error, bail
		}
		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusBadRequest {
			return resp, nil
		}

		errBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorResponseSize))
		resp.Body.Close()
		lastErr = responseError(errBody, readErr, resp.StatusCode, resp.Status)
		if !isRetriable(resp.StatusCode) {
			return nil, trace.Wrap(lastErr)
		}

		delay := retry.Duration()
		if hint, ok := retryAfterHint(resp); ok {
			delay = hint
		}
		retry.Inc()
		logger.DebugContext(ctx, "Graph request returned a retriable status, backing off",
			"status", resp.StatusCode,
			"delay", delay,
		)
		select {
		case <-c.clock.After(delay):
		case <-ctx.Done():
			return nil, trace.NewAggregate(lastErr, ctx.Err())
		}
	}
	return nil, trace.Wrap(lastErr)
}

// responseError converts a failed response into the most descriptive error
// available, preferring the structured Graph error payload.
func responseError(body []byte, readErr error, statusCode int, status string) error {
	if readErr == nil {
		if graphErr, err := readError(body, statusCode); err == nil && graphErr != nil {
			return trace.Wrap(graphErr)
		}
	}
	return trace.BadParameter("status %s", status)
}

// iterate fetches all paginated results from the given endpoint under the
// given API root, invoking f once per page until f returns false or the
// last page is reached.
func (c *Client) iterate(ctx context.Context, root *url.URL, endpoint string, query url.Values, f func(json.RawMessage) bool) error {
	uri := *root
	uri.Path = path.Join(uri.Path, endpoint)
	vals := url.Values{"$top": {strconv.Itoa(c.pageSize)}}
	for key, values := range query {
		vals[key] = values
	}
	uri.RawQuery = vals.Encode()
	uriString := uri.String()
	for uriString != "" {
		resp, err := c.request(ctx, http.MethodGet, uriString, nil)
		if err != nil {
			return trace.Wrap(err)
		}

		var page oDataPage
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return trace.Wrap(err)
		}
		uriString = page.NextLink
		if !f(page.Value) {
			break
		}
	}

	return nil
}

// iterateSimple implements pagination for "simple" object lists, where
// additional logic isn't needed.
func iterateSimple[T any](c *Client, ctx context.Context, root *url.URL, endpoint string, query url.Values, f func(*T) bool) error {
	var err error
	itErr := c.iterate(ctx, root, endpoint, query, func(msg json.RawMessage) bool {
		var page []T
		if err = json.Unmarshal(msg, &page); err != nil {
			return false
		}
		for _, item := range page {
			if !f(&item) {
				return false
			}
		}
		return true
	})
	if err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(itErr)
}

// IterateUsers lists all users in the directory together with their
// sign-in activity facet. Reading the facet requires the AuditLog.Read.All
// permission.
func (c *Client) IterateUsers(ctx context.Context, f func(*User) bool) error {
	query := url.Values{"$select": {userSelectFields}}
	return iterateSimple(c, ctx, c.baseURL, "users", query, f)
}

// IterateServicePrincipals lists all service principals in the directory.
func (c *Client) IterateServicePrincipals(ctx context.Context, f func(*ServicePrincipal) bool) error {
	query := url.Values{"$select": {servicePrincipalSelectFields}}
	return iterateSimple(c, ctx, c.baseURL, "servicePrincipals", query, f)
}

// IterateServicePrincipalSignInActivities lists the provider-maintained
// sign-in activity rollup. The report is only available on the beta API
// surface.
func (c *Client) IterateServicePrincipalSignInActivities(ctx context.Context, f func(*ServicePrincipalSignInActivity) bool) error {
	return iterateSimple(c, ctx, c.betaURL, "reports/servicePrincipalSignInActivities", nil, f)
}

// IterateSignIns lists real-time sign-in log entries, newest first,
// optionally restricted by an OData filter expression.
func (c *Client) IterateSignIns(ctx context.Context, filter string, f func(*SignIn) bool) error {
	var query url.Values
	if filter != "" {
		query = url.Values{"$filter": {filter}}
	}
	return iterateSimple(c, ctx, c.baseURL, "auditLogs/signIns", query, f)
}

// IterateDirectoryAudits lists directory audit log entries, newest first.
func (c *Client) IterateDirectoryAudits(ctx context.Context, f func(*DirectoryAudit) bool) error {
	return iterateSimple(c, ctx, c.baseURL, "auditLogs/directoryAudits", nil, f)
}

// retryAfterHint returns the provider's explicit backoff hint, if any.
// Graph sends Retry-After in whole seconds; the HTTP-date form is not
// used.
func retryAfterHint(resp *http.Response) (time.Duration, bool) {
	ra := resp.Header.Get("Retry-After")
	if ra == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(ra)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func isRetriable(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}
