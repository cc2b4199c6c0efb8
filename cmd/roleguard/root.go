package main

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/code-payments/roleguard/pkg/config/file"
	"github.com/code-payments/roleguard/pkg/guard"
	"github.com/code-payments/roleguard/pkg/metrics"
)

const (
	appName = "roleguard"

	configFileName = "roleguard"
	envPrefix      = "ROLEGUARD"

	logLevelConfigKey    = "log_level"
	logFormatConfigKey   = "log_format"
	colorConfigKey       = "color"
	jsonConfigKey        = "json"
	newRelicLicenseKey   = "new_relic_license_key"
	newRelicShutdownTime = 10 * time.Second
)

// environment is the state shared by every command of a single run
type environment struct {
	settings *viper.Viper
	log      *logrus.Entry
	guard    *guard.Guard

	app *newrelic.Application
	txn *newrelic.Transaction
}

func newRootCommand() *cobra.Command {
	env := &environment{
		settings: viper.New(),
	}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Check account creation instructions for payer and address predictability hazards",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return env.setup(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringP("config", "c", "", "settings file (default is ./roleguard.yaml when present)")
	flags.String("log-level", "warn", "log level (trace, debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.Bool("color", true, "colorize text output when writing to a terminal")
	flags.Bool("json", false, "write diagnostics as JSON")
	flags.Bool("strict", false, "fail on advisories as well as violations")

	bindings := map[string]string{
		logLevelConfigKey:                    "log-level",
		logFormatConfigKey:                   "log-format",
		colorConfigKey:                       "color",
		jsonConfigKey:                        "json",
		guard.TreatWarningsAsErrorsConfigKey: "strict",
	}
	for key, flag := range bindings {
		// Only fails for a nil flag
		_ = env.settings.BindPFlag(key, flags.Lookup(flag))
	}

	cmd.AddCommand(
		newCheckCommand(env),
		newTxCommand(env),
		newDeriveCommand(env),
	)

	return cmd
}

func (e *environment) setup(cmd *cobra.Command) error {
	settings := e.settings

	// The CLI prints every finding itself
	settings.SetDefault(guard.LogFindingsConfigKey, false)

	settings.SetEnvPrefix(envPrefix)
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()

	configFile, _ := cmd.Flags().GetString("config")
	if len(configFile) > 0 {
		settings.SetConfigFile(configFile)
	} else {
		settings.SetConfigName(configFileName)
		settings.AddConfigPath(".")
	}
	if err := settings.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if len(configFile) > 0 || !errors.As(err, &notFound) {
			return &exitError{code: exitMalformed, err: errors.Wrap(err, "error reading settings")}
		}
	}

	if len(settings.GetString(newRelicLicenseKey)) > 0 {
		app, err := newrelic.NewApplication(
			newrelic.ConfigFromEnvironment(),
			newrelic.ConfigAppName(appName),
			newrelic.ConfigLicense(settings.GetString(newRelicLicenseKey)),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			return &exitError{code: exitMalformed, err: errors.Wrap(err, "error connecting to new relic")}
		}
		e.app = app
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	e.configureLogger(ctx, cmd.ErrOrStderr())

	runID := uuid.New().String()
	e.log = logrus.StandardLogger().WithFields(logrus.Fields{
		"type":    "cmd/roleguard",
		"command": cmd.Name(),
		"run_id":  runID,
	})

	if e.app != nil {
		e.txn = e.app.StartTransaction(appName + " " + cmd.Name())
		e.txn.AddAttribute("run_id", runID)
		ctx = newrelic.NewContext(ctx, e.txn)
		ctx = metrics.NewContext(ctx, e.app)
	}
	cmd.SetContext(ctx)

	e.guard = guard.NewGuard(guard.WithFileConfigs(settings))

	e.log.WithField("settings", settings.ConfigFileUsed()).Debug("starting run")
	return nil
}

// run wraps a command so the New Relic transaction is closed however it exits
func (e *environment) run(fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer e.teardown()
		return fn(cmd, args)
	}
}

func (e *environment) teardown() {
	if e.txn != nil {
		e.txn.End()
	}
	if e.app != nil {
		e.app.Shutdown(newRelicShutdownTime)
	}
}

func (e *environment) configureLogger(ctx context.Context, out io.Writer) {
	logFormat := file.NewStringConfig(e.settings, logFormatConfigKey, "text").Get(ctx)
	logLevel := file.NewStringConfig(e.settings, logLevelConfigKey, "warn").Get(ctx)

	var formatter logrus.Formatter = &logrus.TextFormatter{}
	if strings.EqualFold(logFormat, "json") {
		formatter = &logrus.JSONFormatter{}
	}
	logrus.SetFormatter(metrics.NewLogFormatter(e.app, formatter))

	level, err := logrus.ParseLevel(strings.ToLower(logLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", logLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}

	logrus.SetOutput(out)
}

// colorize reports whether text output should be highlighted. fatih/color
// already disables itself when stdout isn't a terminal.
func (e *environment) colorize(out io.Writer) bool {
	return e.settings.GetBool(colorConfigKey) && out == os.Stdout && !color.NoColor
}
