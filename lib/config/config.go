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

// Package config loads and validates the entrascan tool configuration,
// merging command line parameters over an optional YAML config file.
package config

import (
	"io"
	"os"
	"slices"
	"strings"

	"github.com/gravitational/trace"
	"gopkg.in/yaml.v3"

	"github.com/gravitational/entrascan"
	"github.com/gravitational/entrascan/lib/defaults"
	"github.com/gravitational/entrascan/lib/msgraph"
	logutils "github.com/gravitational/entrascan/lib/utils/log"
)

// Report output formats.
const (
	// FormatTable renders a human readable table.
	FormatTable = "table"
	// FormatJSON renders a single JSON document.
	FormatJSON = "json"
	// FormatCSV renders comma separated rows with a header line.
	FormatCSV = "csv"
)

// OutputFormats lists the supported report output formats.
var OutputFormats = []string{FormatTable, FormatJSON, FormatCSV}

var logger = logutils.NewPackageLogger(entrascan.ComponentKey, entrascan.ComponentCLI)

// CLIConf is configuration from the CLI. Zero values mean the flag was not
// given and the config file value, or the default, applies.
type CLIConf struct {
	// ConfigPath is the path to an optional YAML config file.
	ConfigPath string
	// Debug enables verbose logging.
	Debug bool
	// LogFormat selects the log output format, text or json.
	LogFormat string
	// GraphEndpoint is the Graph API endpoint to talk to, for national
	// cloud deployments. Empty selects the worldwide endpoint.
	GraphEndpoint string

	// Format selects the report output format.
	Format string
	// OutputPath is the file the rendered report is written to. Empty
	// means stdout.
	OutputPath string

	// DeviceDetail enables the per-method device detail round of the
	// authentication methods report.
	DeviceDetail bool
	// ChunkSize is the number of sub-requests per $batch call.
	ChunkSize int
	// Concurrency is the number of $batch calls in flight at once.
	Concurrency int

	// LookbackDays bounds how far back the application activity report
	// reads sign-in and audit logs.
	LookbackDays int
	// IncludeSignInLogs enables the per-event sign-in log pass of the
	// application activity report.
	IncludeSignInLogs bool
	// AppIDs restricts the application activity report to the given
	// application (client) IDs.
	AppIDs []string
	// AllApps includes every service principal in the application activity
	// report, even ones with no recorded activity.
	AllApps bool
	// MaxSignInRecords caps how many sign-in log entries are read per
	// filter group.
	MaxSignInRecords int
}

// OutputConfig controls how and where a generated report is rendered.
type OutputConfig struct {
	// Format is one of [OutputFormats]. Defaults to a table.
	Format string `yaml:"format,omitempty"`
	// Path is the output file. Empty means stdout.
	Path string `yaml:"path,omitempty"`
}

func (c *OutputConfig) CheckAndSetDefaults() error {
	if c.Format == "" {
		c.Format = FormatTable
	}
	if !slices.Contains(OutputFormats, c.Format) {
		return trace.BadParameter("unsupported output format %q, supported formats: %s",
			c.Format, strings.Join(OutputFormats, ", "))
	}
	return nil
}

// AuthMethodsConfig tunes the authentication methods report.
type AuthMethodsConfig struct {
	// DeviceDetail enables the per-method device detail round.
	DeviceDetail bool `yaml:"device_detail"`
	// ChunkSize is the number of sub-requests per $batch call, at most
	// the provider limit of 20.
	ChunkSize int `yaml:"chunk_size,omitempty"`
	// Concurrency is the number of $batch calls in flight at once.
	Concurrency int `yaml:"concurrency,omitempty"`
}

func (c *AuthMethodsConfig) CheckAndSetDefaults() error {
	if c.ChunkSize == 0 {
		c.ChunkSize = defaults.BatchChunkSize
	}
	if c.ChunkSize < 1 || c.ChunkSize > msgraph.MaxBatchRequests {
		return trace.BadParameter("chunk_size must be between 1 and %d", msgraph.MaxBatchRequests)
	}
	if c.Concurrency == 0 {
		c.Concurrency = defaults.BatchConcurrency
	}
	if c.Concurrency < 1 {
		return trace.BadParameter("concurrency must be positive")
	}
	return nil
}

// AppActivityConfig tunes the application activity report.
type AppActivityConfig struct {
	// LookbackDays bounds how far back sign-in and audit log evidence
	// counts.
	LookbackDays int `yaml:"lookback_days,omitempty"`
	// IncludeSignInLogs enables the per-event sign-in log pass, which is
	// slow on large tenants.
	IncludeSignInLogs bool `yaml:"include_signin_logs"`
	// AppIDs restricts the report to the given application (client) IDs.
	AppIDs []string `yaml:"app_ids,omitempty"`
	// IncludeAllApps includes every service principal in the report, even
	// ones with no recorded activity. Ignored when AppIDs is set.
	IncludeAllApps bool `yaml:"include_all_apps"`
	// MaxSignInRecords caps how many sign-in log entries are read per
	// filter group.
	MaxSignInRecords int `yaml:"max_signin_records,omitempty"`
}

func (c *AppActivityConfig) CheckAndSetDefaults() error {
	if c.LookbackDays == 0 {
		c.LookbackDays = defaults.LookbackDays
	}
	if c.LookbackDays < 0 {
		return trace.BadParameter("lookback_days must be positive")
	}
	if c.MaxSignInRecords == 0 {
		c.MaxSignInRecords = defaults.MaxSignInRecords
	}
	if c.MaxSignInRecords < 0 {
		return trace.BadParameter("max_signin_records must be positive")
	}
	return nil
}

// Config is the tool's root config object.
type Config struct {
	Debug     bool   `yaml:"debug"`
	LogFormat string `yaml:"log_format,omitempty"`
	// GraphEndpoint is the Graph API endpoint, for national cloud
	// deployments. Empty selects the worldwide endpoint.
	GraphEndpoint string `yaml:"graph_endpoint,omitempty"`

	Output      OutputConfig      `yaml:"output,omitempty"`
	AuthMethods AuthMethodsConfig `yaml:"auth_methods,omitempty"`
	AppActivity AppActivityConfig `yaml:"app_activity,omitempty"`
}

func (conf *Config) CheckAndSetDefaults() error {
	switch conf.LogFormat {
	case "":
		conf.LogFormat = logutils.LogFormatText
	case logutils.LogFormatText, logutils.LogFormatJSON:
	default:
		return trace.BadParameter("unsupported log format %q, supported formats: %s, %s",
			conf.LogFormat, logutils.LogFormatText, logutils.LogFormatJSON)
	}
	if err := conf.Output.CheckAndSetDefaults(); err != nil {
		return trace.Wrap(err)
	}
	if err := conf.AuthMethods.CheckAndSetDefaults(); err != nil {
		return trace.Wrap(err)
	}
	if err := conf.AppActivity.CheckAndSetDefaults(); err != nil {
		return trace.Wrap(err)
	}
	return nil
}

// FromCLIConf loads the tool config from CLI parameters, potentially loading
// and merging a configuration file if specified. CheckAndSetDefaults() will
// be called. Note that CLI flags, if specified, will override file values.
func FromCLIConf(cf *CLIConf) (*Config, error) {
	var config *Config
	var err error

	if cf.ConfigPath != "" {
		config, err = ReadConfigFromFile(cf.ConfigPath)
		if err != nil {
			return nil, trace.Wrap(err, "loading config from path %s", cf.ConfigPath)
		}
	} else {
		config = &Config{}
	}

	if cf.Debug {
		config.Debug = true
	}
	if cf.LogFormat != "" {
		warnOverride(config.LogFormat != "", "log format", cf.ConfigPath)
		config.LogFormat = cf.LogFormat
	}
	if cf.GraphEndpoint != "" {
		warnOverride(config.GraphEndpoint != "", "Graph endpoint", cf.ConfigPath)
		config.GraphEndpoint = cf.GraphEndpoint
	}
	if cf.Format != "" {
		warnOverride(config.Output.Format != "", "output format", cf.ConfigPath)
		config.Output.Format = cf.Format
	}
	if cf.OutputPath != "" {
		warnOverride(config.Output.Path != "", "output path", cf.ConfigPath)
		config.Output.Path = cf.OutputPath
	}

	if cf.DeviceDetail {
		config.AuthMethods.DeviceDetail = true
	}
	if cf.ChunkSize != 0 {
		warnOverride(config.AuthMethods.ChunkSize != 0, "chunk size", cf.ConfigPath)
		config.AuthMethods.ChunkSize = cf.ChunkSize
	}
	if cf.Concurrency != 0 {
		warnOverride(config.AuthMethods.Concurrency != 0, "concurrency", cf.ConfigPath)
		config.AuthMethods.Concurrency = cf.Concurrency
	}

	if cf.LookbackDays != 0 {
		warnOverride(config.AppActivity.LookbackDays != 0, "lookback window", cf.ConfigPath)
		config.AppActivity.LookbackDays = cf.LookbackDays
	}
	if cf.IncludeSignInLogs {
		config.AppActivity.IncludeSignInLogs = true
	}
	if len(cf.AppIDs) > 0 {
		warnOverride(len(config.AppActivity.AppIDs) > 0, "application ID restriction", cf.ConfigPath)
		config.AppActivity.AppIDs = cf.AppIDs
	}
	if cf.AllApps {
		config.AppActivity.IncludeAllApps = true
	}
	if cf.MaxSignInRecords != 0 {
		warnOverride(config.AppActivity.MaxSignInRecords != 0, "sign-in record cap", cf.ConfigPath)
		config.AppActivity.MaxSignInRecords = cf.MaxSignInRecords
	}

	if err := config.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err, "validating merged config")
	}

	return config, nil
}

func warnOverride(fileValueSet bool, what, configPath string) {
	if fileValueSet {
		logger.Warn("CLI parameters are overriding the "+what+" configured in the config file",
			"config_path", configPath,
		)
	}
}

// ReadConfigFromFile reads and parses a YAML config from a file.
func ReadConfigFromFile(filePath string) (*Config, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, trace.ConvertSystemError(err)
	}
	defer f.Close()
	return ReadConfig(f)
}

// ReadConfig parses a YAML config from a Reader. Unknown fields are
// rejected so that a typo does not silently fall back to a default.
func ReadConfig(reader io.Reader) (*Config, error) {
	var config Config

	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil {
		return nil, trace.BadParameter("failed parsing config file: %s", strings.ReplaceAll(err.Error(), "\n", " "))
	}

	return &config, nil
}
