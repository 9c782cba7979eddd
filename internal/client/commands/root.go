// Package commands provides the cobra command tree of the bh CLI.
// Every API command reads its connection settings from the persistent root
// flags, the BOUNTYHUB_* environment, dotenv files and an optional config file.
package commands

import (
	"bh/internal/application/common"
	"bh/internal/application/common/logging"
	"bh/internal/application/common/slogger"
	"bh/internal/client"
	"bh/internal/config"
	"bh/internal/version"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Flag names for persistent global flags.
const (
	flagConfig      = "config"
	flagURL         = "url"
	flagTimeout     = "timeout"
	flagFileTimeout = "file-timeout"
	flagRetries     = "retries"
	flagLogLevel    = "log-level"
	flagLogFormat   = "log-format"
	flagJSON        = "json"
)

// annotationSkipConfig marks commands that run without loading configuration.
const annotationSkipConfig = "bh/skip-config"

// app holds the state shared by the commands of one invocation.
type app struct {
	configFile string
	v          *viper.Viper
	cfg        *config.Config
	telemetry  *client.Telemetry
}

// NewRootCmd creates and returns the root command for the bh CLI, writing
// to the process stdout and stderr.
//
// The root command establishes the persistent connection and output flags
// that every subcommand inherits. Configuration is loaded in
// PersistentPreRunE, so commands that only print local information (help,
// completion, md, version) and command groups never need a token or a
// readable config file.
//
// Subcommands:
//   - job: Delete jobs, download and delete job artifacts
//   - scan: Dispatch scans
//   - blob: Download and upload blob storage files
//   - runner: Create runner registration tokens
//   - bhlast: Create bhlast domains
//   - md: Generate markdown documentation
//   - completion: Generate shell completion scripts
//   - version: Print version information
//
// Global Flags:
//   - --config: Config file (default: $XDG_CONFIG_HOME/bh/config.yaml)
//   - --url: BountyHub URL (default: https://bountyhub.org)
//   - --timeout, --file-timeout: API and file transfer timeouts
//   - --retries: Retries for idempotent requests
//   - --log-level, --log-format: Logging to stderr
//   - --json: Write results and errors as JSON envelopes to stdout
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{}, os.Stdout, os.Stderr)
}

// newRootCmd builds the command tree. The writers are set before the
// completion and help commands are generated so those write to them too.
func newRootCmd(a *app, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bh",
		Short: "Command line client for BountyHub",
		Long: `bh talks to the BountyHub API.

The API token is read from BOUNTYHUB_TOKEN, from a .env or .env.local file
in the working directory, or from the "token" key of the config file.`,
		Version:           version.GetVersion().Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configFile, flagConfig, "", "config file (default: $XDG_CONFIG_HOME/bh/config.yaml)")
	flags.String(flagURL, config.DefaultURL, "BountyHub URL")
	flags.Duration(flagTimeout, config.DefaultTimeout, "API request timeout")
	flags.Duration(flagFileTimeout, config.DefaultFileTimeout, "File transfer timeout")
	flags.Int(flagRetries, config.DefaultRetries, "Retries for idempotent requests")
	flags.String(flagLogLevel, config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	flags.String(flagLogFormat, config.DefaultLogFormat, "Log format (json, text)")
	flags.Bool(flagJSON, false, "Write results and errors as JSON")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	cmd.AddCommand(newJobCmd(a))
	cmd.AddCommand(newScanCmd(a))
	cmd.AddCommand(newBlobCmd(a))
	cmd.AddCommand(newRunnerCmd(a))
	cmd.AddCommand(newBhlastCmd(a))
	cmd.AddCommand(newMdCmd())
	cmd.AddCommand(newVersionCmd())

	cmd.InitDefaultHelpCmd()
	cmd.InitDefaultCompletionCmd()
	for _, sub := range cmd.Commands() {
		if sub.Name() == "help" || sub.Name() == "completion" {
			markSkipConfig(sub)
		}
	}

	return cmd
}

// Execute runs the command tree with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{}
	root := newRootCmd(a, stdout, stderr)
	root.SetArgs(args)

	executed, err := root.ExecuteContextC(ctx)
	if executed != nil && executed.Context() != nil {
		ctx = executed.Context()
	}
	a.finish(ctx)

	if err == nil {
		return ExitOK
	}

	if isCobraUsageError(err) {
		err = &UsageError{Err: err}
	}
	renderError(stdout, stderr, a.jsonOutput(root), err)
	return ExitCode(err)
}

// setup loads configuration, configures logging and starts request metrics.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if skipsConfig(cmd) || cmd.HasSubCommands() {
		return nil
	}

	if err := config.LoadDotEnv(config.DotEnvFiles...); err != nil {
		return common.WrapServiceError(common.OpLoadConfig, err)
	}

	v, err := config.NewViper(a.configFile)
	if err != nil {
		return common.WrapServiceError(common.OpLoadConfig, err)
	}

	if err := bindRootFlags(v, cmd.Root().PersistentFlags()); err != nil {
		return err
	}

	cfg, err := config.New(v)
	if err != nil {
		return err
	}
	a.v = v
	a.cfg = cfg

	if err := slogger.Configure(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Writer: cmd.ErrOrStderr(),
	}); err != nil {
		return err
	}

	ctx := logging.WithCorrelationID(cmd.Context(), logging.NewCorrelationID())
	cmd.SetContext(ctx)

	telemetry, err := client.NewTelemetry(ctx)
	if err != nil {
		slogger.Warn(ctx, "Request metrics disabled", slogger.Field("error", err.Error()))
	}
	a.telemetry = telemetry

	slogger.Debug(ctx, "Configuration loaded", slogger.Fields{
		"command":     cmd.CommandPath(),
		"url":         cfg.URL,
		"config_file": v.ConfigFileUsed(),
		"version":     version.GetVersion().Version,
	})
	return nil
}

// finish logs the request summary and releases telemetry. It runs after
// every command, failed or not.
func (a *app) finish(ctx context.Context) {
	if a.telemetry == nil {
		return
	}
	a.telemetry.LogSummary(ctx)
	_ = a.telemetry.Shutdown(ctx)
}

// newClient builds an API client from the loaded configuration.
func (a *app) newClient() (*client.Client, error) {
	if a.cfg == nil {
		return nil, fmt.Errorf("configuration is not loaded")
	}
	if err := a.cfg.ValidateToken(); err != nil {
		return nil, err
	}

	var metrics *client.RequestMetrics
	if a.telemetry != nil {
		metrics = a.telemetry.Metrics
	}

	return client.NewClientWithMetrics(&client.Config{
		BaseURL:     a.cfg.URL,
		Token:       a.cfg.Token,
		UserAgent:   version.UserAgent(),
		Timeout:     a.cfg.Timeout,
		FileTimeout: a.cfg.FileTimeout,
		Retries:     a.cfg.Retries,
	}, metrics)
}

// writeResult writes data as a JSON envelope in --json mode. Otherwise plain,
// when set, prints the human-readable result.
func (a *app) writeResult(cmd *cobra.Command, data interface{}, plain func(w io.Writer) error) error {
	if a.cfg != nil && a.cfg.JSON {
		return client.WriteSuccess(cmd.OutOrStdout(), data)
	}
	if plain == nil {
		return nil
	}
	return plain(cmd.OutOrStdout())
}

func (a *app) jsonOutput(root *cobra.Command) bool {
	if a.cfg != nil {
		return a.cfg.JSON
	}
	jsonOutput, _ := root.PersistentFlags().GetBool(flagJSON)
	return jsonOutput
}

func bindRootFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	bindings := map[string]string{
		config.KeyURL:         flagURL,
		config.KeyTimeout:     flagTimeout,
		config.KeyFileTimeout: flagFileTimeout,
		config.KeyRetries:     flagRetries,
		config.KeyLogLevel:    flagLogLevel,
		config.KeyLogFormat:   flagLogFormat,
		config.KeyJSON:        flagJSON,
	}
	for key, name := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding %s flag: %w", name, err)
		}
	}
	return nil
}

// runGroup is the RunE of command groups: without arguments it prints help,
// otherwise the first argument is an unknown subcommand.
func runGroup(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usageErrorf("unknown command %q for %q", args[0], cmd.CommandPath())
	}
	return cmd.Help()
}

func markSkipConfig(cmd *cobra.Command) {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[annotationSkipConfig] = "true"
}

func skipsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[annotationSkipConfig] == "true" {
			return true
		}
	}
	return false
}
