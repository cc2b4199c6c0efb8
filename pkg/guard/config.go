package guard

import (
	"github.com/spf13/viper"

	"github.com/code-payments/roleguard/pkg/config"
	"github.com/code-payments/roleguard/pkg/config/env"
	"github.com/code-payments/roleguard/pkg/config/file"
	"github.com/code-payments/roleguard/pkg/config/memory"
	"github.com/code-payments/roleguard/pkg/config/wrapper"
)

const (
	envConfigPrefix = "ROLEGUARD_"

	TreatWarningsAsErrorsConfigEnvName = envConfigPrefix + "TREAT_WARNINGS_AS_ERRORS"
	TreatWarningsAsErrorsConfigKey     = "treat_warnings_as_errors"
	defaultTreatWarningsAsErrors       = false

	DisableEnforcementConfigEnvName = envConfigPrefix + "DISABLE_ENFORCEMENT"
	DisableEnforcementConfigKey     = "disable_enforcement"
	defaultDisableEnforcement       = false

	LogFindingsConfigEnvName = envConfigPrefix + "LOG_FINDINGS"
	LogFindingsConfigKey     = "log_findings"
	defaultLogFindings       = true

	MaxConcurrencyConfigEnvName = envConfigPrefix + "MAX_CONCURRENCY"
	MaxConcurrencyConfigKey     = "max_concurrency"
	defaultMaxConcurrency       = 8
)

type conf struct {
	// Reject instructions that only carry advisories
	treatWarningsAsErrors config.Bool

	// Log and report findings, but never reject
	disableEnforcement config.Bool

	logFindings config.Bool

	// Upper bound on instructions validated at once by CheckAll. Zero or less
	// is unbounded.
	maxConcurrency config.Int64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			treatWarningsAsErrors: env.NewBoolConfig(TreatWarningsAsErrorsConfigEnvName, defaultTreatWarningsAsErrors),
			disableEnforcement:    env.NewBoolConfig(DisableEnforcementConfigEnvName, defaultDisableEnforcement),
			logFindings:           env.NewBoolConfig(LogFindingsConfigEnvName, defaultLogFindings),
			maxConcurrency:        env.NewInt64Config(MaxConcurrencyConfigEnvName, defaultMaxConcurrency),
		}
	}
}

// WithFileConfigs returns configuration pulled from a viper instance, using
// the *ConfigKey names
func WithFileConfigs(v *viper.Viper) ConfigProvider {
	return func() *conf {
		return &conf{
			treatWarningsAsErrors: file.NewBoolConfig(v, TreatWarningsAsErrorsConfigKey, defaultTreatWarningsAsErrors),
			disableEnforcement:    file.NewBoolConfig(v, DisableEnforcementConfigKey, defaultDisableEnforcement),
			logFindings:           file.NewBoolConfig(v, LogFindingsConfigKey, defaultLogFindings),
			maxConcurrency:        file.NewInt64Config(v, MaxConcurrencyConfigKey, defaultMaxConcurrency),
		}
	}
}

type testOverrides struct {
	treatWarningsAsErrors bool
	disableEnforcement    bool
	logFindings           bool
	maxConcurrency        int64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			treatWarningsAsErrors: wrapper.NewBoolConfig(memory.NewConfig(overrides.treatWarningsAsErrors), defaultTreatWarningsAsErrors),
			disableEnforcement:    wrapper.NewBoolConfig(memory.NewConfig(overrides.disableEnforcement), defaultDisableEnforcement),
			logFindings:           wrapper.NewBoolConfig(memory.NewConfig(overrides.logFindings), defaultLogFindings),
			maxConcurrency:        wrapper.NewInt64Config(memory.NewConfig(overrides.maxConcurrency), defaultMaxConcurrency),
		}
	}
}
