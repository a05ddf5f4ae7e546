// Package config loads tinyorch settings from defaults, an optional
// config file under the tinyorch home, and environment variables.
//
// Precedence, highest first: environment, config file, defaults. The
// config file may be YAML, JSON or JSON with comments (.jsonc).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tidwall/jsonc"
)

// Environment variables bound to config keys. NOTIFY, JOB, RUN_DIR and
// BURN_DEV keep the names shell scripts already export.
var envBindings = map[string]string{
	"home":          "TINYORCH_HOME",
	"backend":       "TINYORCH_BACKEND",
	"socket_dir":    "TINYORCH_SOCKET_DIR",
	"metrics_dir":   "TINYORCH_METRICS_DIR",
	"podman_binary": "TINYORCH_PODMAN",
	"notify_urls":   "NOTIFY",
	"job":           "JOB",
	"marker_dir":    "RUN_DIR",
	"burn_device":   "BURN_DEV",
}

// configNames are probed in <home> when no file is given explicitly.
var configNames = []string{"config.yaml", "config.yml", "config.json", "config.jsonc"}

// Config is the resolved tinyorch configuration.
type Config struct {
	// Home is the tinyorch base directory (default ~/.tinyorch).
	Home string `mapstructure:"home" json:"home" yaml:"home"`

	// StateDir holds reference-count files (default <home>/state).
	StateDir string `mapstructure:"state_dir" json:"stateDir" yaml:"state_dir"`

	// SocketDir holds per-dependent service sockets (default <home>/run).
	SocketDir string `mapstructure:"socket_dir" json:"socketDir" yaml:"socket_dir"`

	// LogDir holds watcher logs (default <home>/log).
	LogDir string `mapstructure:"log_dir" json:"logDir" yaml:"log_dir"`

	// MarkerDir holds stage ".<stage>.done" markers (default ".").
	MarkerDir string `mapstructure:"marker_dir" json:"markerDir" yaml:"marker_dir"`

	// MetricsDir enables Prometheus textfile export when set.
	MetricsDir string `mapstructure:"metrics_dir" json:"metricsDir" yaml:"metrics_dir"`

	// Backend forces "vm" or "service"; empty selects by OS.
	Backend string `mapstructure:"backend" json:"backend" yaml:"backend"`

	Machine        string        `mapstructure:"machine" json:"machine" yaml:"machine"`
	PodmanBinary   string        `mapstructure:"podman_binary" json:"podmanBinary" yaml:"podman_binary"`
	Volumes        []string      `mapstructure:"volumes" json:"volumes" yaml:"volumes"`
	WatchInterval  time.Duration `mapstructure:"watch_interval" json:"watchInterval" yaml:"watch_interval"`
	ReadyAttempts  int           `mapstructure:"ready_attempts" json:"readyAttempts" yaml:"ready_attempts"`
	ReadyInterval  time.Duration `mapstructure:"ready_interval" json:"readyInterval" yaml:"ready_interval"`
	PruneRetention string        `mapstructure:"prune_retention" json:"pruneRetention" yaml:"prune_retention"`

	// NotifyURLs is the comma-separated apprise URL list.
	NotifyURLs   string `mapstructure:"notify_urls" json:"notifyUrls" yaml:"notify_urls"`
	Job          string `mapstructure:"job" json:"job" yaml:"job"`
	AppriseImage string `mapstructure:"apprise_image" json:"appriseImage" yaml:"apprise_image"`

	BurnDevice string `mapstructure:"burn_device" json:"burnDevice" yaml:"burn_device"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-" json:"file,omitempty" yaml:"file,omitempty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("marker_dir", ".")
	v.SetDefault("machine", "tinyorch")
	v.SetDefault("podman_binary", "podman")
	v.SetDefault("volumes", []string{"/Users:/Users", "/Volumes:/Volumes"})
	v.SetDefault("watch_interval", 2*time.Second)
	v.SetDefault("ready_attempts", 50)
	v.SetDefault("ready_interval", 100*time.Millisecond)
	v.SetDefault("prune_retention", "720h")
	v.SetDefault("job", "job")
	v.SetDefault("apprise_image", "caronc/apprise:latest")
}

// DefaultHome returns ~/.tinyorch.
func DefaultHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".tinyorch"), nil
}

// Load resolves the configuration. When file is empty the first of
// <home>/config.{yaml,yml,json,jsonc} that exists is read; a missing
// default file is not an error, but a missing explicit file is.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	// Step 1: Home decides where the default config file lives.
	home := v.GetString("home")
	if home == "" {
		h, err := DefaultHome()
		if err != nil {
			return nil, err
		}
		home = h
	}
	v.SetDefault("home", home)

	// Step 2: Config file.
	if file == "" {
		file = findConfig(home)
	} else if _, err := os.Stat(file); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	if file != "" {
		if err := readConfigFile(v, file); err != nil {
			return nil, err
		}
	}

	// Step 3: Decode and derive the directories left empty.
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = file
	cfg.Home = expandHome(cfg.Home)
	if cfg.StateDir == "" {
		cfg.StateDir = filepath.Join(cfg.Home, "state")
	}
	if cfg.SocketDir == "" {
		cfg.SocketDir = filepath.Join(cfg.Home, "run")
	}
	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(cfg.Home, "log")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func findConfig(home string) string {
	for _, name := range configNames {
		path := filepath.Join(home, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// readConfigFile merges file into v. JSONC is reduced to plain JSON
// first, because viper has no JSONC codec.
func readConfigFile(v *viper.Viper, file string) error {
	ext := strings.ToLower(filepath.Ext(file))
	if ext != ".jsonc" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", file, err)
		}
		return nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read config %s: %w", file, err)
	}
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(jsonc.ToJSON(data))); err != nil {
		return fmt.Errorf("parse config %s: %w", file, err)
	}
	return nil
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// Validate rejects values the rest of tinyorch cannot work with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Backend {
	case "", "vm", "service":
	default:
		errs = append(errs, fmt.Errorf("backend must be vm or service, got %q", c.Backend))
	}
	if c.Machine == "" {
		errs = append(errs, errors.New("machine must not be empty"))
	}
	if c.WatchInterval <= 0 {
		errs = append(errs, fmt.Errorf("watch_interval must be positive, got %s", c.WatchInterval))
	}
	if c.ReadyAttempts <= 0 || c.ReadyInterval <= 0 {
		errs = append(errs, errors.New("ready_attempts and ready_interval must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// EnsureDirs creates the state, socket and log directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.StateDir, c.SocketDir, c.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
