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
	"testing"

	"github.com/stretchr/testify/require"
)

const msGraphErrorPayload = `{
  "error": {
    "code": "Request_ResourceNotFound",
    "message": "Resource '00000000-0000-0000-0000-000000000000' does not exist.",
    "innerError": {
      "code": "invalidRange",
      "request-id": "request-id",
      "date": "date-time"
    }
  }
}`

func TestUnmarshalGraphError(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		graphError, err := readError([]byte(msGraphErrorPayload), 404)
		require.NoError(t, err)
		require.NotNil(t, graphError)
		expected := &GraphError{
			Code:    "Request_ResourceNotFound",
			Message: "Resource '00000000-0000-0000-0000-000000000000' does not exist.",
			InnerError: &GraphError{
				Code: "invalidRange",
			},
			StatusCode: 404,
		}
		require.Equal(t, expected, graphError)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := readError([]byte("invalid json"), 400)
		require.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		graphError, err := readError([]byte("{}"), 400)
		require.NoError(t, err)
		require.Nil(t, graphError)
	})

	t.Run("message", func(t *testing.T) {
		tests := []struct {
			name string
			err  *GraphError
			want string
		}{
			{
				name: "request prefix is trimmed",
				err:  &GraphError{Code: "Request_ResourceNotFound", Message: "Resource does not exist."},
				want: "ResourceNotFound: Resource does not exist.",
			},
			{
				name: "other codes are kept verbatim",
				err:  &GraphError{Code: "TooManyRequests", Message: "Throttled."},
				want: "TooManyRequests: Throttled.",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				require.Equal(t, tt.want, tt.err.Error())
			})
		}
	})
}
