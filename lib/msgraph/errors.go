package msgraph

import (
	"encoding/json"
	"strings"

	"github.com/gravitational/trace"
)

type graphErrorResponse struct {
	Error *GraphError `json:"error,omitempty"`
}

// GraphError is the error shape returned by Graph API endpoints.
type GraphError struct {
	Code       string       `json:"code,omitempty"`
	Message    string       `json:"message,omitempty"`
	InnerError *GraphError  `json:"innerError,omitempty"`
	Details    []GraphError `json:"details,omitempty"`
	// StatusCode is the HTTP status of the response carrying the error.
	// Not part of the wire format.
	StatusCode int `json:"-"`
}

func (g *GraphError) Error() string {
	var parts []string
	if g.Code != "" {
		parts = append(parts, strings.TrimPrefix(g.Code, "Request_"))
	}

	if g.Message != "" {
		parts = append(parts, g.Message)
	}

	return strings.Join(parts, ": ")
}

// readError parses a Graph error payload. It returns (nil, nil) when the
// payload is valid JSON but carries no error object.
func readError(body []byte, statusCode int) (*GraphError, error) {
	var errResponse graphErrorResponse
	if err := json.Unmarshal(body, &errResponse); err != nil {
		return nil, trace.Wrap(err)
	}
	if errResponse.Error != nil {
		errResponse.Error.StatusCode = statusCode
		return errResponse.Error, nil
	}
	return nil, nil
}
