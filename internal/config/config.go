package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultEndpoint             = "https://management.azure.com"
	DefaultTimeout              = 30 * time.Second
	DefaultPollInterval         = 1000 * time.Millisecond
	DefaultRegistrationInterval = 10 * time.Second
)

type GlobalFlags struct {
	ConfigPath     string
	Output         string
	Select         string
	ResultsOnly    bool
	EnableCommands string
	Timeout        string
	Retries        int
	Debug          bool
	Verbose        bool
	OnlyShowErrors bool
}

type Settings struct {
	ConfigPath           string
	OutputMode           string
	SelectFields         []string
	ResultsOnly          bool
	EnableCommands       []string
	Timeout              time.Duration
	Retries              int
	LogLevel             string
	Debug                bool
	Verbose              bool
	OnlyShowErrors       bool
	Endpoint             string
	SubscriptionID       string
	AccessToken          string
	Profile              string
	ExtensionDir         string
	TelemetryEnabled     bool
	TelemetryPath        string
	TelemetryLockPath    string
	PollInterval         time.Duration
	RegistrationInterval time.Duration
}

type fileConfig struct {
	Output  string `yaml:"output"`
	Timeout string `yaml:"timeout"`
	Retries *int   `yaml:"retries"`
	Cloud   struct {
		Endpoint     string `yaml:"endpoint"`
		Profile      string `yaml:"profile"`
		Subscription string `yaml:"subscription"`
		TokenEnv     string `yaml:"token_env"`
	} `yaml:"cloud"`
	Core struct {
		LogLevel         string `yaml:"log_level"`
		CollectTelemetry *bool  `yaml:"collect_telemetry"`
		PollInterval     string `yaml:"poll_interval"`
	} `yaml:"core"`
	Extension struct {
		Dir string `yaml:"dir"`
	} `yaml:"extension"`
	Telemetry struct {
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"telemetry"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := ResolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}
	settings.ConfigPath = cfgPath

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = DefaultPollInterval
	}

	return settings, nil
}

func defaultSettings() (Settings, error) {
	dataDir, err := defaultDataDir()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:           "json",
		Timeout:              DefaultTimeout,
		Retries:              2,
		Endpoint:             DefaultEndpoint,
		ExtensionDir:         filepath.Join(dataDir, "cliextensions"),
		TelemetryEnabled:     true,
		TelemetryPath:        filepath.Join(dataDir, "telemetry.db"),
		TelemetryLockPath:    filepath.Join(dataDir, "telemetry.lock"),
		PollInterval:         DefaultPollInterval,
		RegistrationInterval: DefaultRegistrationInterval,
	}, nil
}

// ResolveConfigPath returns input when set, otherwise the per-user config file.
func ResolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	if v := os.Getenv("AZ_CONFIG_FILE"); v != "" {
		return v, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "az", "config.yaml"), nil
}

func defaultDataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "az"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.Cloud.Endpoint != "" {
		settings.Endpoint = cfg.Cloud.Endpoint
	}
	if cfg.Cloud.Profile != "" {
		settings.Profile = cfg.Cloud.Profile
	}
	if cfg.Cloud.Subscription != "" {
		settings.SubscriptionID = cfg.Cloud.Subscription
	}
	if cfg.Cloud.TokenEnv != "" {
		settings.AccessToken = os.Getenv(cfg.Cloud.TokenEnv)
	}
	if cfg.Core.LogLevel != "" {
		settings.LogLevel = strings.ToLower(cfg.Core.LogLevel)
	}
	if cfg.Core.CollectTelemetry != nil {
		settings.TelemetryEnabled = *cfg.Core.CollectTelemetry
	}
	if cfg.Core.PollInterval != "" {
		d, err := time.ParseDuration(cfg.Core.PollInterval)
		if err != nil {
			return fmt.Errorf("config core.poll_interval: %w", err)
		}
		settings.PollInterval = d
	}
	if cfg.Extension.Dir != "" {
		settings.ExtensionDir = cfg.Extension.Dir
	}
	if cfg.Telemetry.Path != "" {
		settings.TelemetryPath = cfg.Telemetry.Path
	}
	if cfg.Telemetry.LockPath != "" {
		settings.TelemetryLockPath = cfg.Telemetry.LockPath
	}

	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("AZ_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("AZ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("AZ_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := os.Getenv("AZ_ENDPOINT"); v != "" {
		settings.Endpoint = v
	}
	if v := os.Getenv("AZ_PROFILE"); v != "" {
		settings.Profile = v
	}
	if v := os.Getenv("AZ_SUBSCRIPTION_ID"); v != "" {
		settings.SubscriptionID = v
	}
	if v := os.Getenv("AZ_ACCESS_TOKEN"); v != "" {
		settings.AccessToken = v
	}
	if v := os.Getenv("AZ_LOG_LEVEL"); v != "" {
		settings.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("AZ_EXTENSION_DIR"); v != "" {
		settings.ExtensionDir = v
	}
	if v := os.Getenv("AZ_COLLECT_TELEMETRY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.TelemetryEnabled = b
		}
	}
	if v := os.Getenv("AZ_TELEMETRY_PATH"); v != "" {
		settings.TelemetryPath = v
	}
	if v := os.Getenv("AZ_TELEMETRY_LOCK_PATH"); v != "" {
		settings.TelemetryLockPath = v
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if strings.TrimSpace(flags.Output) != "" {
		settings.OutputMode = strings.ToLower(strings.TrimSpace(flags.Output))
	}
	if strings.TrimSpace(flags.Select) != "" {
		settings.SelectFields = splitCSV(flags.Select)
	}
	settings.ResultsOnly = flags.ResultsOnly

	if strings.TrimSpace(flags.EnableCommands) != "" {
		settings.EnableCommands = splitCSV(flags.EnableCommands)
	}

	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	settings.Debug = flags.Debug
	settings.Verbose = flags.Verbose
	settings.OnlyShowErrors = flags.OnlyShowErrors

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}

	return nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
