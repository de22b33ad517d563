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

package msgraph

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravitational/entrascan/lib/defaults"
	"github.com/gravitational/entrascan/lib/utils/retryutils"
)

// Always back off for a second for predictability.
var retryConfig = retryutils.RetryV2Config{
	First:  time.Second,
	Max:    time.Second,
	Driver: retryutils.NewLinearDriver(time.Second),
}

type fakeTokenProvider struct {
	mu    sync.Mutex
	token string
}

func (t *fakeTokenProvider) GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token == "" {
		t.token = uuid.NewString()
	}

	return azcore.AccessToken{
		Token: t.token,
	}, nil
}

func (t *fakeTokenProvider) clearToken() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = ""
}

// inspectToken returns the current token without generating a new one if the current token is
// empty. Useful in tests that need to verify that the client requested a new token after it was
// cleared.
func (t *fakeTokenProvider) inspectToken() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.token
}

const usersPayload = `[
    {
    	"id": "6e7b768e-07e2-4810-8459-485f84f8f204",
    	"displayName": "Alice Alison",
    	"userPrincipalName": "alice@example.com",
    	"mail": "alice@example.com",
    	"accountEnabled": true,
    	"userType": "Member",
    	"signInActivity": {
    		"lastSignInDateTime": "2025-06-01T10:15:00Z",
    		"lastSuccessfulSignInDateTime": "2025-06-01T10:15:00Z"
    	}
    },
    {
    	"id": "87d349ed-44d7-43e1-9a83-5f2406dee5bd",
    	"displayName": "Bob Bobert",
    	"userPrincipalName": "bob@example.com",
    	"mail": "bob@example.com",
    	"accountEnabled": false,
    	"userType": "Member"
    },
    {
    	"id": "5bde3e51-d13b-4db1-9948-fe4b109d11a7",
    	"displayName": "Gavin Guest",
    	"userPrincipalName": "gavin_gmail.com#EXT#@example.com",
    	"userType": "Guest"
    },
    {
    	"id": "4782e723-f4f4-4af3-a76e-25e3bab0d896",
    	"displayName": "Carol C",
    	"userPrincipalName": "carol@example.com",
    	"accountEnabled": true,
    	"userType": "Member",
    	"signInActivity": {
    		"lastSignInDateTime": "2025-07-20T08:00:00Z",
    		"lastNonInteractiveSignInDateTime": "2025-07-21T08:00:00Z"
    	}
    },
    {
    	"id": "c03e6eaa-b6ab-46d7-905b-73ec7ea1f755",
    	"displayName": "Eve Evil",
    	"userPrincipalName": "eve@example.com",
    	"accountEnabled": true,
    	"userType": "Member"
    }
]`

// paginatedHandler emulates the Graph API's pagination with the given static set of objects.
func paginatedHandler(t *testing.T, values []json.RawMessage) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		top, err := strconv.Atoi(r.URL.Query().Get("$top"))
		if err != nil {
			assert.Fail(t, "expected to get $top parameter")
		}
		skip, _ := strconv.Atoi(r.URL.Query().Get("$skipToken"))

		from, to := skip, skip+top
		if to > len(values) {
			to = len(values)
		}
		page := values[from:to]

		nextLink := *r.URL
		nextLink.Host = r.Host
		nextLink.Scheme = "https"
		vals := nextLink.Query()
		// $skipToken is an opaque value in MS Graph, for testing purposes we use a simple offset.
		vals.Set("$skipToken", strconv.Itoa(top+skip))
		nextLink.RawQuery = vals.Encode()

		response := map[string]any{
			"value": page,
		}
		if skip+top < len(values) {
			response["@odata.nextLink"] = nextLink.String()
		}
		assert.NoError(t, json.NewEncoder(w).Encode(&response))
	})
}

func TestIterateUsers_Empty(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1.0/users", func(w http.ResponseWriter, r *http.Request) {
		_, err := strconv.Atoi(r.URL.Query().Get("$top"))
		assert.NoError(t, err, "expected to get $top parameter")
		w.Write([]byte(`{"value": []}`))
	})

	srv := httptest.NewTLSServer(mux)
	t.Cleanup(func() { srv.Close() })

	client, err := NewClient(Config{
		HTTPClient:    newHTTPClient(srv),
		TokenProvider: &fakeTokenProvider{},
		RetryConfig:   &retryConfig,
	})
	require.NoError(t, err)
	err = client.IterateUsers(t.Context(), func(*User) bool {
		assert.Fail(t, "should never get called")
		return true
	})
	require.NoError(t, err)
}

func TestIterateUsers(t *testing.T) {
	t.Parallel()

	var sourceUsers []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(usersPayload), &sourceUsers))

	var selectParam string
	mux := http.NewServeMux()
	mux.Handle("GET /v1.0/users", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		selectParam = r.URL.Query().Get("$select")
		paginatedHandler(t, sourceUsers).ServeHTTP(w, r)
	}))

	srv := httptest.NewTLSServer(mux)
	t.Cleanup(func() { srv.Close() })

	client, err := NewClient(Config{
		HTTPClient:    newHTTPClient(srv),
		TokenProvider: &fakeTokenProvider{},
		RetryConfig:   &retryConfig,
		PageSize:      2, // smaller page size so we actually fetch multiple pages with our small test payload
	})
	require.NoError(t, err)

	var users []*User
	err = client.IterateUsers(t.Context(), func(u *User) bool {
		users = append(users, u)
		return true
	})

	require.NoError(t, err)
	require.Len(t, users, 5)
	require.Equal(t, userSelectFields, selectParam)

	require.Equal(t, "6e7b768e-07e2-4810-8459-485f84f8f204", *users[0].ID)
	require.Equal(t, "Alice Alison", *users[0].DisplayName)
	require.Equal(t, "alice@example.com", *users[0].UserPrincipalName)
	require.True(t, *users[0].AccountEnabled)
	require.NotNil(t, users[0].SignInActivity)
	require.Equal(t, "2025-06-01T10:15:00Z", *users[0].SignInActivity.LastSignInDateTime)
	require.Equal(t, "2025-06-01T10:15:00Z", *users[0].SignInActivity.LastSuccessfulSignInDateTime)
	require.Nil(t, users[0].SignInActivity.LastNonInteractiveSignInDateTime)

	require.Equal(t, "bob@example.com", *users[1].UserPrincipalName)
	require.False(t, *users[1].AccountEnabled)
	require.Nil(t, users[1].SignInActivity)

	require.Equal(t, "Guest", *users[2].UserType)
	require.Nil(t, users[2].AccountEnabled)

	require.NotNil(t, users[3].SignInActivity)
	require.Equal(t, "2025-07-21T08:00:00Z", *users[3].SignInActivity.LastNonInteractiveSignInDateTime)
	require.Nil(t, users[3].SignInActivity.LastSuccessfulSignInDateTime)

	require.Equal(t, "eve@example.com", *users[4].UserPrincipalName)
}

const signInActivitiesPayload = `[
    {
    	"id": "YXBwLTE=",
    	"appId": "app-1",
    	"lastSignInActivity": {
    		"lastSignInDateTime": "2025-07-01T12:00:00Z",
    		"lastSignInRequestId": "req-1"
    	},
    	"delegatedClientSignInActivity": {
    		"lastSignInDateTime": "2025-06-15T09:30:00Z"
    	}
    },
    {
    	"id": "YXBwLTI=",
    	"appId": "app-2",
    	"applicationAuthenticationClientSignInActivity": {
    		"lastSignInDateTime": "2025-05-02T17:45:00Z"
    	}
    },
    {
    	"id": "YXBwLTM=",
    	"appId": "app-3"
    }
]`

func TestIterateServicePrincipalSignInActivities(t *testing.T) {
	t.Parallel()

	var source []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(signInActivitiesPayload), &source))
	mux := http.NewServeMux()
	mux.Handle("GET /beta/reports/servicePrincipalSignInActivities", paginatedHandler(t, source))

	srv := httptest.NewTLSServer(mux)
	t.Cleanup(func() { srv.Close() })

	client, err := NewClient(Config{
		HTTPClient:    newHTTPClient(srv),
		TokenProvider: &fakeTokenProvider{},
		RetryConfig:   &retryConfig,
		PageSize:      2, // smaller page size so we actually fetch multiple pages with our small test payload
	})
	require.NoError(t, err)

	var activities []*ServicePrincipalSignInActivity
	err = client.IterateServicePrincipalSignInActivities(t.Context(), func(a *ServicePrincipalSignInActivity) bool {
		activities = append(activities, a)
		return true
	})

	require.NoError(t, err)
	require.Len(t, activities, 3)

	require.Equal(t, "app-1", *activities[0].AppID)
	require.NotNil(t, activities[0].LastSignInActivity)
	require.Equal(t, "2025-07-01T12:00:00Z", *activities[0].LastSignInActivity.LastSignInDateTime)
	require.Equal(t, "req-1", *activities[0].LastSignInActivity.LastSignInRequestID)
	require.NotNil(t, activities[0].DelegatedClientSignInActivity)
	require.Nil(t, activities[0].ApplicationAuthenticationClientSignInActivity)

	require.Equal(t, "app-2", *activities[1].AppID)
	require.NotNil(t, activities[1].ApplicationAuthenticationClientSignInActivity)
	require.Equal(t, "2025-05-02T17:45:00Z", *activities[1].ApplicationAuthenticationClientSignInActivity.LastSignInDateTime)

	require.Nil(t, activities[2].LastSignInActivity)
}

const signInsPayload = `[
    {"id": "s1", "createdDateTime": "2025-07-22T10:00:00Z", "appId": "app-1", "appDisplayName": "App One", "status": {"errorCode": 0}},
    {"id": "s2", "createdDateTime": "2025-07-21T10:00:00Z", "appId": "app-1", "appDisplayName": "App One", "status": {"errorCode": 50126}},
    {"id": "s3", "createdDateTime": "2025-07-20T10:00:00Z", "appId": "app-2", "appDisplayName": "App Two", "status": {"errorCode": 0}},
    {"id": "s4", "createdDateTime": "2025-07-19T10:00:00Z", "appId": "app-2", "appDisplayName": "App Two", "status": {"errorCode": 0}},
    {"id": "s5", "createdDateTime": "2025-07-18T10:00:00Z", "appId": "app-3", "appDisplayName": "App Three", "status": {"errorCode": 0}}
]`

// TestIterateSignIns verifies that the filter expression is propagated and
// that returning false from the callback stops pagination early.
func TestIterateSignIns(t *testing.T) {
	t.Parallel()

	var source []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(signInsPayload), &source))

	var pagesServed atomic.Int32
	var filterParam string
	mux := http.NewServeMux()
	mux.Handle("GET /v1.0/auditLogs/signIns", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pagesServed.Add(1)
		filterParam = r.URL.Query().Get("$filter")
		paginatedHandler(t, source).ServeHTTP(w, r)
	}))

	srv := httptest.NewTLSServer(mux)
	t.Cleanup(func() { srv.Close() })

	client, err := NewClient(Config{
		HTTPClient:    newHTTPClient(srv),
		TokenProvider: &fakeTokenProvider{},
		RetryConfig:   &retryConfig,
		PageSize:      2, // smaller page size so we actually fetch multiple pages with our small test payload
	})
	require.NoError(t, err)

	const filter = "createdDateTime ge 2025-07-01T00:00:00Z"
	var collected []*SignIn
	err = client.IterateSignIns(t.Context(), filter, func(s *SignIn) bool {
		collected = append(collected, s)
		return len(collected) < 3
	})

	require.NoError(t, err)
	require.Len(t, collected, 3)
	require.Equal(t, filter, filterParam)
	require.EqualValues(t, 2, pagesServed.Load(), "expected to stop after the page containing the third record")
	require.Equal(t, "s1", *collected[0].ID)
	require.Equal(t, 0, *collected[0].Status.ErrorCode)
	require.Equal(t, 50126, *collected[1].Status.ErrorCode)
}

type failingHandler struct {
	t              *testing.T
	timesCalled    atomic.Int32
	timesToFail    int32
	statusCode     int
	expectedBody   []byte
	successPayload []byte
	retryAfter     int
}

func (f *failingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.expectedBody != nil {
		body, err := io.ReadAll(r.Body)
		assert.NoError(f.t, err)
		assert.Equal(f.t, f.expectedBody, body)
		r.Body.Close()
	}
	if f.retryAfter != 0 {
		w.Header().Add("Retry-After", strconv.Itoa(f.retryAfter))
	}
	if f.timesCalled.Load() < f.timesToFail {
		w.WriteHeader(f.statusCode)
		w.Write([]byte("{}"))
	} else {
		w.WriteHeader(http.StatusOK)
		w.Write(f.successPayload)
	}
	f.timesCalled.Add(1)
}

func TestRetry(t *testing.T) {
	t.Parallel()

	requests := []BatchRequest{
		{ID: "1", Method: "GET", URL: "/users/u1/authentication/methods"},
	}
	objPayload, err := json.Marshal(batchRequestEnvelope{Requests: requests})
	require.NoError(t, err)
	successPayload := []byte(`{"responses": [{"id": "1", "status": 200, "body": {"value": []}}]}`)

	clock := clockwork.NewFakeClock()

	t.Run("retriable, with retry-after", func(t *testing.T) {
		handler := &failingHandler{
			t:              t,
			timesToFail:    2,
			statusCode:     http.StatusTooManyRequests,
			expectedBody:   objPayload,
			successPayload: successPayload,
			retryAfter:     10,
		}
		mux := http.NewServeMux()
		mux.Handle("POST /v1.0/$batch", handler)

		srv := httptest.NewTLSServer(mux)
		t.Cleanup(func() { srv.Close() })

		client, err := NewClient(Config{
			HTTPClient:    newHTTPClient(srv),
			TokenProvider: &fakeTokenProvider{},
			RetryConfig:   &retryConfig,
			Clock:         clock,
		})
		require.NoError(t, err)

		ret := make(chan error, 1)
		go func() {
			out, err := client.Batch(t.Context(), requests)
			if err == nil {
				assert.Len(t, out.Responses, 1)
			}
			ret <- err
		}()

		// Fail for the first time
		clock.BlockUntilContext(t.Context(), 1)
		require.EqualValues(t, 1, handler.timesCalled.Load())

		// Fail for the second time
		clock.Advance(time.Duration(handler.retryAfter) * time.Second)
		clock.BlockUntilContext(t.Context(), 1)
		require.EqualValues(t, 2, handler.timesCalled.Load())

		// Succeed
		clock.Advance(time.Duration(handler.retryAfter) * time.Second)
		select {
		case err := <-ret:
			require.NoError(t, err)
		case <-time.After(time.Second):
			require.Fail(t, "expected client to return")
		}
	})

	t.Run("retriable, without retry-after", func(t *testing.T) {
		handler := &failingHandler{
			t:              t,
			timesToFail:    2,
			statusCode:     http.StatusServiceUnavailable,
			expectedBody:   objPayload,
			successPayload: successPayload,
		}
		mux := http.NewServeMux()
		mux.Handle("POST /v1.0/$batch", handler)

		srv := httptest.NewTLSServer(mux)
		t.Cleanup(func() { srv.Close() })

		client, err := NewClient(Config{
			HTTPClient:    newHTTPClient(srv),
			TokenProvider: &fakeTokenProvider{},
			RetryConfig:   &retryConfig,
			Clock:         clock,
		})
		require.NoError(t, err)

		ret := make(chan error, 1)
		go func() {
			out, err := client.Batch(t.Context(), requests)
			if err == nil {
				assert.Len(t, out.Responses, 1)
			}
			ret <- err
		}()

		// Fail for the first time
		clock.BlockUntilContext(t.Context(), 1)
		require.EqualValues(t, 1, handler.timesCalled.Load())

		// Fail for the second time
		clock.Advance(time.Second)
		clock.BlockUntilContext(t.Context(), 1)
		require.EqualValues(t, 2, handler.timesCalled.Load())

		// Succeed
		clock.Advance(time.Second)
		select {
		case err := <-ret:
			require.NoError(t, err)
		case <-time.After(time.Second):
			require.Fail(t, "expected client to return")
		}
	})

	t.Run("retriable, gateway timeout", func(t *testing.T) {
		handler := &failingHandler{
			t:              t,
			timesToFail:    1,
			statusCode:     http.StatusGatewayTimeout,
			expectedBody:   objPayload,
			successPayload: successPayload,
		}
		mux := http.NewServeMux()
		mux.Handle("POST /v1.0/$batch", handler)

		srv := httptest.NewTLSServer(mux)
		t.Cleanup(func() { srv.Close() })

		client, err := NewClient(Config{
			HTTPClient:    newHTTPClient(srv),
			TokenProvider: &fakeTokenProvider{},
			RetryConfig:   &retryConfig,
			Clock:         clock,
		})
		require.NoError(t, err)

		ret := make(chan error, 1)
		go func() {
			out, err := client.Batch(t.Context(), requests)
			if err == nil {
				assert.Len(t, out.Responses, 1)
			}
			ret <- err
		}()

		// Fail once, then succeed after the backoff.
		clock.BlockUntilContext(t.Context(), 1)
		require.EqualValues(t, 1, handler.timesCalled.Load())

		clock.Advance(time.Second)
		select {
		case err := <-ret:
			require.NoError(t, err)
		case <-time.After(time.Second):
			require.Fail(t, "expected client to return")
		}
	})

	t.Run("non-retriable", func(t *testing.T) {
		handler := &failingHandler{
			t:            t,
			timesToFail:  1,
			statusCode:   http.StatusNotFound,
			expectedBody: objPayload,
		}
		mux := http.NewServeMux()
		mux.Handle("POST /v1.0/$batch", handler)

		srv := httptest.NewTLSServer(mux)
		t.Cleanup(func() { srv.Close() })

		client, err := NewClient(Config{
			HTTPClient:    newHTTPClient(srv),
			TokenProvider: &fakeTokenProvider{},
			RetryConfig:   &retryConfig,
			Clock:         clock,
		})
		require.NoError(t, err)

		_, err = client.Batch(t.Context(), requests)
		require.Error(t, err)
		require.EqualValues(t, 1, handler.timesCalled.Load())
	})

	// This test simulates a situation in which the token expires between retries. It verifies that
	// the client requests a token before each retry rather than requesting it just once before it
	// enters the retry loop.
	t.Run("refreshing token between retries", func(t *testing.T) {
		handler := &failingHandler{
			t:              t,
			timesToFail:    1,
			statusCode:     http.StatusTooManyRequests,
			expectedBody:   objPayload,
			successPayload: successPayload,
			retryAfter:     10,
		}
		mux := http.NewServeMux()
		mux.Handle("POST /v1.0/$batch", handler)

		srv := httptest.NewTLSServer(mux)
		t.Cleanup(func() { srv.Close() })

		tokenProvider := &fakeTokenProvider{}
		client, err := NewClient(Config{
			HTTPClient:    newHTTPClient(srv),
			TokenProvider: tokenProvider,
			Clock:         clock,
			RetryConfig:   &retryConfig,
		})
		require.NoError(t, err)

		ret := make(chan error, 1)
		go func() {
			_, err := client.Batch(context.Background(), requests)
			ret <- err
		}()

		// First failure, the client now waits before retrying.
		require.NoError(t, clock.BlockUntilContext(t.Context(), 1))
		require.EqualValues(t, 1, handler.timesCalled.Load())
		tokenBefore := tokenProvider.inspectToken()
		require.NotEmpty(t, tokenBefore)

		// Clear the token to simulate expiry.
		tokenProvider.clearToken()

		// Advance time to make the client try again.
		clock.Advance(time.Duration(handler.retryAfter) * time.Second)
		select {
		case err := <-ret:
			require.NoError(t, err)
		case <-time.After(time.Second):
			require.Fail(t, "expected client to return")
		}

		tokenAfter := tokenProvider.inspectToken()
		require.NotEmpty(t, tokenAfter,
			"the client did not request a new token after the previous one was cleared")
		require.NotEqual(t, tokenAfter, tokenBefore,
			"the client did not get a new token for the second request")
	})
}

func TestBatch(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1.0/$batch", func(w http.ResponseWriter, r *http.Request) {
		var envelope struct {
			Requests []BatchRequest `json:"requests"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&envelope))
		assert.Len(t, envelope.Requests, 2)
		assert.Equal(t, "m1-1", envelope.Requests[0].ID)
		assert.Equal(t, http.MethodGet, envelope.Requests[0].Method)
		assert.Equal(t, "/users/u1/authentication/methods", envelope.Requests[0].URL)

		// Respond out of submission order; correlation is id based.
		w.Write([]byte(`{
			"responses": [
				{"id": "m1-2", "status": 404, "body": {"error": {"code": "Request_ResourceNotFound", "message": "not found"}}},
				{"id": "m1-1", "status": 200, "headers": {"Content-Type": "application/json"}, "body": {"value": []}}
			]
		}`))
	})

	srv := httptest.NewTLSServer(mux)
	t.Cleanup(func() { srv.Close() })

	client, err := NewClient(Config{
		HTTPClient:    newHTTPClient(srv),
		TokenProvider: &fakeTokenProvider{},
		RetryConfig:   &retryConfig,
	})
	require.NoError(t, err)

	resp, err := client.Batch(t.Context(), []BatchRequest{
		{ID: "m1-1", Method: http.MethodGet, URL: "/users/u1/authentication/methods"},
		{ID: "m1-2", Method: http.MethodGet, URL: "/users/u2/authentication/methods"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Responses, 2)
	require.Equal(t, "m1-2", resp.Responses[0].ID)
	require.Equal(t, http.StatusNotFound, resp.Responses[0].Status)
	require.Equal(t, "m1-1", resp.Responses[1].ID)
	require.Equal(t, http.StatusOK, resp.Responses[1].Status)
	require.JSONEq(t, `{"value": []}`, string(resp.Responses[1].Body))
}

func TestBatch_SizeLimits(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{
		TokenProvider: &fakeTokenProvider{},
		RetryConfig:   &retryConfig,
	})
	require.NoError(t, err)

	_, err = client.Batch(t.Context(), nil)
	require.Error(t, err)

	tooMany := make([]BatchRequest, MaxBatchRequests+1)
	for i := range tooMany {
		tooMany[i] = BatchRequest{ID: strconv.Itoa(i + 1), Method: http.MethodGet, URL: "/users"}
	}
	_, err = client.Batch(t.Context(), tooMany)
	require.Error(t, err)
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name                  string
		config                Config
		expectedGraphEndpoint string
		errExpected           bool
		errAssertion          require.ErrorAssertionFunc
	}{
		{
			name: "empty endpoint sets default graph endpoint",
			config: Config{
				TokenProvider: &fakeTokenProvider{},
				GraphEndpoint: "",
			},
			expectedGraphEndpoint: MSGraphDefaultEndpoint,
			errAssertion:          require.NoError,
		},
		{
			name: "configured endpoint",
			config: Config{
				TokenProvider: &fakeTokenProvider{},
				GraphEndpoint: "https://dod-graph.microsoft.us",
			},
			expectedGraphEndpoint: "https://dod-graph.microsoft.us",
			errAssertion:          require.NoError,
		},
		{
			name: "invalid endpoint",
			config: Config{
				TokenProvider: &fakeTokenProvider{},
				GraphEndpoint: "https://graph.windows.net",
			},
			errExpected:  true,
			errAssertion: require.Error,
		},
		{
			name:         "missing token provider",
			config:       Config{},
			errExpected:  true,
			errAssertion: require.Error,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			clt, err := NewClient(test.config)
			test.errAssertion(t, err)
			if !test.errExpected {
				require.Equal(t, test.expectedGraphEndpoint+"/"+graphVersion, clt.baseURL.String())
				require.Equal(t, test.expectedGraphEndpoint+"/"+graphBetaVersion, clt.betaURL.String())
			}
		})
	}
}

// A client built without an explicit HTTP client gets one whose round trips
// time out, rather than the unbounded http.DefaultClient.
func TestNewClient_DefaultHTTPTimeout(t *testing.T) {
	t.Parallel()

	clt, err := NewClient(Config{TokenProvider: &fakeTokenProvider{}})
	require.NoError(t, err)
	require.NotSame(t, http.DefaultClient, clt.httpClient)
	require.Equal(t, defaults.GraphRequestTimeout, clt.httpClient.Timeout)
}

func newHTTPClient(server *httptest.Server) *http.Client {
	var d net.Dialer
	httpClient := server.Client()
	httpClient.Transport = &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
		// Ignore the address and always direct all requests to the fake API server.
		// This allows tests to connect to the fake API server despite the client trying to reach the
		// official endpoints.
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return d.DialContext(ctx, "tcp", server.Listener.Addr().String())
		},
	}
	return httpClient
}
