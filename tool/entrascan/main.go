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

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/alecthomas/kingpin/v2"
	"github.com/google/uuid"
	"github.com/gravitational/trace"

	"github.com/gravitational/entrascan"
	"github.com/gravitational/entrascan/lib/config"
	"github.com/gravitational/entrascan/lib/msgraph"
	"github.com/gravitational/entrascan/lib/reports"
	"github.com/gravitational/entrascan/lib/utils"
	logutils "github.com/gravitational/entrascan/lib/utils/log"
)

func main() {
	if err := Run(os.Args[1:], os.Stdout); err != nil {
		utils.FatalError(err)
	}
}

// Run parses the command line, loads the config, and dispatches to the
// requested report command. Rendered reports go to stdout unless an output
// path is configured; logs always go to stderr.
func Run(args []string, stdout io.Writer) error {
	var cf config.CLIConf

	app := utils.InitCLIParser("entrascan", "Identity hygiene reports for Microsoft Entra ID tenants.")
	app.Flag("debug", "Verbose logging to stderr.").Short('d').BoolVar(&cf.Debug)
	app.Flag("log-format", "Log output format, 'text' or 'json'.").StringVar(&cf.LogFormat)
	app.Flag("config", "Path to a YAML configuration file.").Short('c').Envar("ENTRASCAN_CONFIG").StringVar(&cf.ConfigPath)
	app.Flag("graph-endpoint", "Graph API endpoint, for national cloud deployments.").StringVar(&cf.GraphEndpoint)

	authMethodsCmd := app.Command("auth-methods", "Report every user's registered authentication methods and MFA posture.")
	authMethodsCmd.Flag("device-detail", "Fetch per-method device detail in a second batch round.").BoolVar(&cf.DeviceDetail)
	authMethodsCmd.Flag("chunk-size", fmt.Sprintf("Sub-requests per $batch call, between 1 and %d.", msgraph.MaxBatchRequests)).IntVar(&cf.ChunkSize)
	authMethodsCmd.Flag("concurrency", "Number of $batch calls in flight at once.").IntVar(&cf.Concurrency)
	addOutputFlags(authMethodsCmd, &cf)

	appActivityCmd := app.Command("app-activity", "Report when every application in the tenant was last used.")
	appActivityCmd.Flag("days", "Lookback window in days for sign-in and audit log evidence.").IntVar(&cf.LookbackDays)
	appActivityCmd.Flag("include-signin-logs", "Also read the per-event sign-in log. Slow on large tenants.").BoolVar(&cf.IncludeSignInLogs)
	appActivityCmd.Flag("app-id", "Restrict the report to this application (client) ID. Repeatable.").StringsVar(&cf.AppIDs)
	appActivityCmd.Flag("all-apps", "Include every service principal, even ones with no recorded activity.").BoolVar(&cf.AllApps)
	appActivityCmd.Flag("max-signin-records", "Cap on sign-in log entries read per filter group.").IntVar(&cf.MaxSignInRecords)
	addOutputFlags(appActivityCmd, &cf)

	versionCmd := app.Command("version", "Print the version of this entrascan binary.")

	command, err := app.Parse(args)
	if err != nil {
		return trace.Wrap(err)
	}

	conf, err := config.FromCLIConf(&cf)
	if err != nil {
		return trace.Wrap(err)
	}

	level := slog.LevelInfo
	if conf.Debug {
		level = slog.LevelDebug
	}
	if err := logutils.Initialize(level, conf.LogFormat); err != nil {
		return trace.Wrap(err)
	}

	ctx := context.Background()

	switch command {
	case authMethodsCmd.FullCommand():
		err = onAuthMethods(ctx, conf, stdout)
	case appActivityCmd.FullCommand():
		err = onAppActivity(ctx, conf, stdout)
	case versionCmd.FullCommand():
		err = onVersion(stdout)
	default:
		// This should only happen when there's a missing switch case above.
		err = trace.BadParameter("command %q not configured", command)
	}

	return trace.Wrap(err)
}

// addOutputFlags registers the output flags shared by all report commands.
func addOutputFlags(cmd *kingpin.CmdClause, cf *config.CLIConf) {
	cmd.Flag("format", "Report output format, one of: "+strings.Join(config.OutputFormats, ", ")+".").
		EnumVar(&cf.Format, config.OutputFormats...)
	cmd.Flag("out", "Write the report to this file instead of stdout.").StringVar(&cf.OutputPath)
}

// newGraphClient builds a Graph API client authenticated through the Azure
// default credential chain (environment, workload identity, managed
// identity, az CLI).
func newGraphClient(conf *config.Config) (*msgraph.Client, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, trace.Wrap(err, "acquiring Azure credentials")
	}
	client, err := msgraph.NewClient(msgraph.Config{
		TokenProvider: cred,
		GraphEndpoint: conf.GraphEndpoint,
	})
	return client, trace.Wrap(err)
}

func onAuthMethods(ctx context.Context, conf *config.Config, stdout io.Writer) error {
	client, err := newGraphClient(conf)
	if err != nil {
		return trace.Wrap(err)
	}

	log := logutils.NewPackageLogger(
		entrascan.ComponentKey, entrascan.Component(entrascan.ComponentCLI, "auth-methods"),
	).With("run_id", uuid.NewString())
	log.InfoContext(ctx, "Generating the authentication methods report",
		"device_detail", conf.AuthMethods.DeviceDetail,
	)
	records, err := reports.GenerateAuthMethodsReport(ctx, reports.AuthMethodsReportConfig{
		Client:            client,
		Logger:            log,
		ChunkSize:         conf.AuthMethods.ChunkSize,
		Concurrency:       conf.AuthMethods.Concurrency,
		FetchDeviceDetail: conf.AuthMethods.DeviceDetail,
	})
	if err != nil {
		return trace.Wrap(err)
	}
	log.InfoContext(ctx, "Report generated", "records", len(records))

	return trace.Wrap(writeAuthMethodsReport(stdout, conf.Output, records))
}

func onAppActivity(ctx context.Context, conf *config.Config, stdout io.Writer) error {
	client, err := newGraphClient(conf)
	if err != nil {
		return trace.Wrap(err)
	}

	log := logutils.NewPackageLogger(
		entrascan.ComponentKey, entrascan.Component(entrascan.ComponentCLI, "app-activity"),
	).With("run_id", uuid.NewString())
	log.InfoContext(ctx, "Generating the application activity report",
		"lookback_days", conf.AppActivity.LookbackDays,
		"include_signin_logs", conf.AppActivity.IncludeSignInLogs,
	)
	records, err := reports.GenerateAppActivityReport(ctx, reports.AppActivityReportConfig{
		Client:            client,
		Logger:            log,
		LookbackDays:      conf.AppActivity.LookbackDays,
		IncludeSignInLogs: conf.AppActivity.IncludeSignInLogs,
		AppIDs:            conf.AppActivity.AppIDs,
		IncludeAllApps:    conf.AppActivity.IncludeAllApps,
		MaxSignInRecords:  conf.AppActivity.MaxSignInRecords,
	})
	if err != nil {
		return trace.Wrap(err)
	}
	log.InfoContext(ctx, "Report generated", "records", len(records))

	return trace.Wrap(writeAppActivityReport(stdout, conf.Output, records))
}

func onVersion(stdout io.Writer) error {
	fmt.Fprintf(stdout, "Entrascan v%s %s %s/%s\n",
		entrascan.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return nil
}
