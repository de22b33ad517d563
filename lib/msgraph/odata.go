package msgraph

import "encoding/json"

// oDataPage is a single page of a paginated list response. Value is kept
// raw so that callers decode it into the element type they expect.
type oDataPage struct {
	NextLink string          `json:"@odata.nextLink,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
}
