package msgraphtest

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/google/uuid"
)

// TokenProvider implements the token source expected by [msgraph.Config].
type TokenProvider struct {
	mu    sync.Mutex
	Token string
}

// GetToken returns a token to be used in msgraph requests.
func (t *TokenProvider) GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Token == "" {
		t.Token = uuid.NewString()
	}

	return azcore.AccessToken{
		Token: t.Token,
	}, nil
}

// ClearToken deletes token value.
func (t *TokenProvider) ClearToken() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Token = ""
}

// InspectToken returns the current token without generating a new one if the current token is
// empty. Useful in tests that need to verify that the client requested a new token after it was
// cleared.
func (t *TokenProvider) InspectToken() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.Token
}

// Payloads defines payload values to fake msgraph responses.
// List payloads are JSON arrays; the server wraps them in pages.
type Payloads struct {
	Users, ServicePrincipals string
	SignInActivities         string
	SignIns                  string
	DirectoryAudits          string
	// MethodsByUser maps a user object ID to the JSON array served from
	// /users/{id}/authentication/methods. Users without an entry get a 404,
	// the same way Graph responds for unknown or blocked principals.
	MethodsByUser map[string]string
	// MethodDetailsByID maps a method ID to the JSON object served from
	// /users/{id}/authentication/{collection}/{methodID}.
	MethodDetailsByID map[string]string
}

// DefaultPayload creates a default response payload.
func DefaultPayload() Payloads {
	return Payloads{
		Users:             PayloadListUsers,
		ServicePrincipals: PayloadListServicePrincipals,
		SignInActivities:  PayloadListSignInActivities,
		SignIns:           PayloadListSignIns,
		DirectoryAudits:   PayloadListDirectoryAudits,
		MethodsByUser: map[string]string{
			"u1": PayloadUser1Methods,
			"u2": PayloadUser2Methods,
		},
		MethodDetailsByID: map[string]string{
			"ma-1": PayloadAuthenticatorDetail,
			"fk-1": PayloadFIDO2Detail,
			"wh-1": PayloadWindowsHelloDetail,
		},
	}
}

// RecordedRequest captures one request the fake server received, including
// requests dispatched from inside a $batch envelope.
type RecordedRequest struct {
	Method   string
	Path     string
	RawQuery string
}

// Server defines fake server.
type Server struct {
	TokenProvider TokenProvider
	Payloads      Payloads
	TLSServer     *httptest.Server
	HTTPClient    *http.Client

	// FailURLSubstring makes every batched request whose URL contains the
	// substring fail with FailURLStatus instead of being dispatched.
	FailURLSubstring string
	FailURLStatus    int

	// FailBatch makes POST /$batch itself respond with 502 so the whole
	// envelope fails at the transport level.
	FailBatch bool

	mu       sync.Mutex
	mux      *http.ServeMux
	requests []RecordedRequest
}

// ServerOption is a custom opt for [NewServer].
type ServerOption func(*Server)

// WithPayloads sets custom response payload.
func WithPayloads(p Payloads) ServerOption {
	return func(s *Server) {
		s.Payloads = p
	}
}

// WithFailingURLs makes batched requests containing the given substring fail
// with the given status code.
func WithFailingURLs(substring string, status int) ServerOption {
	return func(s *Server) {
		s.FailURLSubstring = substring
		s.FailURLStatus = status
	}
}

// WithFailingBatch makes the $batch endpoint itself fail.
func WithFailingBatch() ServerOption {
	return func(s *Server) {
		s.FailBatch = true
	}
}

// NewServer creates a new fake server.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		TokenProvider: TokenProvider{},
		Payloads:      DefaultPayload(),
		FailURLStatus: http.StatusNotFound,
	}
	// Apply options
	for _, opt := range opts {
		opt(s)
	}

	tlsServer := httptest.NewTLSServer(s.Handler())
	s.TLSServer = tlsServer

	httpClient := tlsServer.Client()
	httpClient.Transport = &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
		// Ignore the address and always direct all requests to the fake API server.
		// This allows tests to connect to the fake API server despite the official
		// client trying to reach the official endpoints.
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return net.Dial("tcp", tlsServer.Listener.Addr().String())
		},
	}
	s.HTTPClient = httpClient

	return s
}

// Close shuts the underlying TLS server down.
func (s *Server) Close() {
	s.TLSServer.Close()
}

// Requests returns a copy of all requests the server has seen so far,
// including requests unpacked from $batch envelopes.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) record(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, RecordedRequest{
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
	})
}

// Fake server handler
func (s *Server) Handler() http.Handler {
	r := http.NewServeMux()

	r.HandleFunc("GET /v1.0/users", s.handleListUsers)
	r.HandleFunc("GET /v1.0/servicePrincipals", s.handleListServicePrincipals)
	r.HandleFunc("GET /beta/reports/servicePrincipalSignInActivities", s.handleListSignInActivities)
	r.HandleFunc("GET /v1.0/auditLogs/signIns", s.handleListSignIns)
	r.HandleFunc("GET /v1.0/auditLogs/directoryAudits", s.handleListDirectoryAudits)
	r.HandleFunc("GET /v1.0/users/{userid}/authentication/methods", s.handleListUserMethods)
	r.HandleFunc("GET /v1.0/users/{userid}/authentication/{collection}/{methodid}", s.handleGetMethodDetail)
	r.HandleFunc("POST /v1.0/$batch", s.handleBatch)

	s.mux = r

	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.record(req)
		r.ServeHTTP(w, req)
	})
}

func (s *Server) paginatedList(w http.ResponseWriter, r *http.Request, payload string) {
	var source []json.RawMessage

	w.Header().Set("Content-Type", "application/json")
	if payload == "" {
		w.Write([]byte(`{"value": []}`))
		return
	}
	if err := json.Unmarshal([]byte(payload), &source); err != nil {
		http.Error(w, fmt.Sprintf("Failed to unmarshal payload: %s", err.Error()), http.StatusInternalServerError)
		return
	}

	Paginator(w, r, source)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	s.paginatedList(w, r, s.Payloads.Users)
}

func (s *Server) handleListServicePrincipals(w http.ResponseWriter, r *http.Request) {
	s.paginatedList(w, r, s.Payloads.ServicePrincipals)
}

func (s *Server) handleListSignInActivities(w http.ResponseWriter, r *http.Request) {
	s.paginatedList(w, r, s.Payloads.SignInActivities)
}

func (s *Server) handleListSignIns(w http.ResponseWriter, r *http.Request) {
	s.paginatedList(w, r, s.Payloads.SignIns)
}

func (s *Server) handleListDirectoryAudits(w http.ResponseWriter, r *http.Request) {
	s.paginatedList(w, r, s.Payloads.DirectoryAudits)
}

func (s *Server) handleListUserMethods(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userid")
	methods, ok := s.Payloads.MethodsByUser[userID]
	if !ok {
		writeGraphError(w, http.StatusNotFound, "Request_ResourceNotFound",
			fmt.Sprintf("Resource '%s' does not exist.", userID))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"value": %s}`, methods)
}

func (s *Server) handleGetMethodDetail(w http.ResponseWriter, r *http.Request) {
	methodID := r.PathValue("methodid")
	detail, ok := s.Payloads.MethodDetailsByID[methodID]
	if !ok {
		writeGraphError(w, http.StatusNotFound, "Request_ResourceNotFound",
			fmt.Sprintf("Resource '%s' does not exist.", methodID))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(detail))
}

type batchItem struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	URL    string `json:"url"`
}

type batchItemResponse struct {
	ID     string          `json:"id"`
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// handleBatch unpacks a $batch envelope and dispatches every request against
// the server's own routes, so batched and direct requests share fixtures.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if s.FailBatch {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	var envelope struct {
		Requests []batchItem `json:"requests"`
	}
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		http.Error(w, fmt.Sprintf("Failed to unmarshal batch envelope: %s", err.Error()), http.StatusBadRequest)
		return
	}

	responses := make([]batchItemResponse, 0, len(envelope.Requests))
	for _, item := range envelope.Requests {
		if s.FailURLSubstring != "" && strings.Contains(item.URL, s.FailURLSubstring) {
			responses = append(responses, batchItemResponse{
				ID:     item.ID,
				Status: s.FailURLStatus,
				Body:   graphErrorBody("Request_ResourceNotFound", "Injected failure."),
			})
			continue
		}

		sub := httptest.NewRequest(item.Method, "/v1.0"+item.URL, nil)
		s.record(sub)
		rec := httptest.NewRecorder()
		s.mux.ServeHTTP(rec, sub)

		body := rec.Body.Bytes()
		if !json.Valid(body) {
			// Unrouted requests get the mux's plain text 404 page.
			body, _ = json.Marshal(string(body))
		}
		responses = append(responses, batchItemResponse{
			ID:     item.ID,
			Status: rec.Code,
			Body:   body,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"responses": responses}); err != nil {
		http.Error(w, fmt.Sprintf("Failed to marshal batch response: %s", err.Error()), http.StatusInternalServerError)
	}
}

func graphErrorBody(code, message string) json.RawMessage {
	body, _ := json.Marshal(map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
	return body
}

func writeGraphError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(graphErrorBody(code, message))
}

// Paginator emulates the Graph API's pagination with the given static set of objects.
func Paginator(w http.ResponseWriter, r *http.Request, values []json.RawMessage) {
	top, err := strconv.Atoi(r.URL.Query().Get("$top"))
	if err != nil {
		http.Error(w, "Expected to get $top parameter", http.StatusInternalServerError)
		return
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

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, fmt.Sprintf("Failed to marshal payload: %s", err.Error()), http.StatusInternalServerError)
	}
}
