package msgraph

import (
	"context"
	"encoding/json"
	"net/http"
	"path"

	"github.com/gravitational/trace"
)

// MaxBatchRequests is the maximum number of sub-requests the provider
// accepts in a single $batch call.
const MaxBatchRequests = 20

// BatchRequest is one sub-request of a $batch call. URL is relative to
// the versioned API root, e.g. "/users/{id}/authentication/methods". ID
// must be unique within one call.
type BatchRequest struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	URL    string `json:"url"`
}

// BatchResponseItem is one sub-response of a $batch call. ID matches the
// sub-request that produced it. Sub-responses are not guaranteed to come
// back in submission order.
type BatchResponseItem struct {
	ID      string            `json:"id"`
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// BatchResponse is the composite response of a $batch call.
type BatchResponse struct {
	Responses []BatchResponseItem `json:"responses"`
}

type batchRequestEnvelope struct {
	Requests []BatchRequest `json:"requests"`
}

// Batch sends up to [MaxBatchRequests] sub-requests as one $batch call
// and returns the composite response. A non-2xx status on an individual
// sub-response does not fail the call; classifying per-item outcomes is
// the caller's responsibility.
func (c *Client) Batch(ctx context.Context, requests []BatchRequest) (*BatchResponse, error) {
	if len(requests) == 0 {
		return nil, trace.BadParameter("batch requires at least one sub-request")
	}
	if len(requests) > MaxBatchRequests {
		return nil, trace.BadParameter("batch of %d sub-requests exceeds the provider maximum of %d", len(requests), MaxBatchRequests)
	}
	payload, err := json.Marshal(batchRequestEnvelope{Requests: requests})
	if err != nil {
		return nil, trace.Wrap(err)
	}

	uri := *c.baseURL
	uri.Path = path.Join(uri.Path, "$batch")
	resp, err := c.request(ctx, http.MethodPost, uri.String(), payload)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	defer resp.Body.Close()

	var out BatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, trace.Wrap(err)
	}
	return &out, nil
}
