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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gravitational/entrascan/lib/msgraph"
)

const exampleConfig = `
debug: true
log_format: json
graph_endpoint: https://graph.microsoft.us
output:
  format: csv
  path: /tmp/report.csv
auth_methods:
  device_detail: true
  chunk_size: 10
  concurrency: 2
app_activity:
  lookback_days: 60
  include_signin_logs: true
  app_ids: ["11111111-1111-1111-1111-111111111111"]
  include_all_apps: true
  max_signin_records: 500
`

func TestReadConfig(t *testing.T) {
	t.Parallel()

	t.Run("full", func(t *testing.T) {
		conf, err := ReadConfig(strings.NewReader(exampleConfig))
		require.NoError(t, err)
		require.True(t, conf.Debug)
		require.Equal(t, "json", conf.LogFormat)
		require.Equal(t, msgraph.MSGraphUSGovL4Endpoint, conf.GraphEndpoint)
		require.Equal(t, FormatCSV, conf.Output.Format)
		require.Equal(t, "/tmp/report.csv", conf.Output.Path)
		require.True(t, conf.AuthMethods.DeviceDetail)
		require.Equal(t, 10, conf.AuthMethods.ChunkSize)
		require.Equal(t, 2, conf.AuthMethods.Concurrency)
		require.Equal(t, 60, conf.AppActivity.LookbackDays)
		require.True(t, conf.AppActivity.IncludeSignInLogs)
		require.Equal(t, []string{"11111111-1111-1111-1111-111111111111"}, conf.AppActivity.AppIDs)
		require.True(t, conf.AppActivity.IncludeAllApps)
		require.Equal(t, 500, conf.AppActivity.MaxSignInRecords)
	})

	t.Run("empty", func(t *testing.T) {
		conf, err := ReadConfig(strings.NewReader("{}"))
		require.NoError(t, err)
		require.False(t, conf.Debug)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := ReadConfig(strings.NewReader("lookback_days: 60\n"))
		require.ErrorContains(t, err, "failed parsing config file")
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ReadConfig(strings.NewReader("debug: [\n"))
		require.Error(t, err)
	})
}

func TestConfig_CheckAndSetDefaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      func() *Config
		wantErr string
	}{
		{
			name: "empty config gets defaults",
			in:   func() *Config { return &Config{} },
		},
		{
			name: "unsupported log format",
			in: func() *Config {
				return &Config{LogFormat: "syslog"}
			},
			wantErr: "unsupported log format",
		},
		{
			name: "unsupported output format",
			in: func() *Config {
				return &Config{Output: OutputConfig{Format: "xml"}}
			},
			wantErr: "unsupported output format",
		},
		{
			name: "chunk size above the provider limit",
			in: func() *Config {
				return &Config{AuthMethods: AuthMethodsConfig{ChunkSize: 25}}
			},
			wantErr: "chunk_size",
		},
		{
			name: "negative concurrency",
			in: func() *Config {
				return &Config{AuthMethods: AuthMethodsConfig{Concurrency: -1}}
			},
			wantErr: "concurrency",
		},
		{
			name: "negative lookback",
			in: func() *Config {
				return &Config{AppActivity: AppActivityConfig{LookbackDays: -5}}
			},
			wantErr: "lookback_days",
		},
		{
			name: "negative record cap",
			in: func() *Config {
				return &Config{AppActivity: AppActivityConfig{MaxSignInRecords: -1}}
			},
			wantErr: "max_signin_records",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := tt.in()
			err := conf.CheckAndSetDefaults()
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, "text", conf.LogFormat)
			require.Equal(t, FormatTable, conf.Output.Format)
			require.Equal(t, 20, conf.AuthMethods.ChunkSize)
			require.Equal(t, 1, conf.AuthMethods.Concurrency)
			require.Equal(t, 30, conf.AppActivity.LookbackDays)
			require.Equal(t, 1000, conf.AppActivity.MaxSignInRecords)
		})
	}
}

func TestFromCLIConf(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "entrascan.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(exampleConfig), 0o600))

	t.Run("flags override file values", func(t *testing.T) {
		conf, err := FromCLIConf(&CLIConf{
			ConfigPath:   configPath,
			Format:       FormatJSON,
			LookbackDays: 7,
		})
		require.NoError(t, err)
		require.Equal(t, FormatJSON, conf.Output.Format)
		require.Equal(t, 7, conf.AppActivity.LookbackDays)
		// Values the CLI did not set come from the file.
		require.True(t, conf.Debug)
		require.Equal(t, msgraph.MSGraphUSGovL4Endpoint, conf.GraphEndpoint)
		require.Equal(t, 10, conf.AuthMethods.ChunkSize)
		require.True(t, conf.AppActivity.IncludeSignInLogs)
	})

	t.Run("no config file", func(t *testing.T) {
		conf, err := FromCLIConf(&CLIConf{
			Debug:        true,
			DeviceDetail: true,
			AppIDs:       []string{"app-1", "app-2"},
			AllApps:      true,
		})
		require.NoError(t, err)
		require.True(t, conf.Debug)
		require.True(t, conf.AuthMethods.DeviceDetail)
		require.Equal(t, []string{"app-1", "app-2"}, conf.AppActivity.AppIDs)
		require.True(t, conf.AppActivity.IncludeAllApps)
		// Everything else gets defaults.
		require.Equal(t, FormatTable, conf.Output.Format)
		require.Equal(t, 30, conf.AppActivity.LookbackDays)
	})

	t.Run("missing config file", func(t *testing.T) {
		_, err := FromCLIConf(&CLIConf{
			ConfigPath: filepath.Join(t.TempDir(), "no-such-file.yaml"),
		})
		require.Error(t, err)
	})

	t.Run("invalid merged config", func(t *testing.T) {
		_, err := FromCLIConf(&CLIConf{
			ConfigPath: configPath,
			ChunkSize:  100,
		})
		require.ErrorContains(t, err, "chunk_size")
	})
}
