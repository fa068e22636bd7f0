package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	EnvLogLevel     = "EDGELINK_LOG_LEVEL"
	EnvLogTimestamp = "EDGELINK_LOG_TIMESTAMP"
	EnvLogNoColor   = "EDGELINK_LOG_NOCOLOR"
	EnvLogBypass    = "EDGELINK_LOG_BYPASS"
	EnvLogFile      = "EDGELINK_LOG_FILE"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config is the resolved logger setup for one process.
type Config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	// Bypass writes raw JSON lines instead of the console format.
	Bypass bool
	File   FileConfig
}

// FileConfig enables rotating file output next to the console writer.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

var configureOnce sync.Once

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

func Configure(profile Profile) {
	ConfigureWith(profile, Overrides{})
}

// Overrides carry the config-file log section. Zero fields keep the profile
// defaults.
type Overrides struct {
	Level string
	File  FileConfig
}

// ConfigureWith applies the profile defaults, the config-file overrides, then
// env overrides. Only the first call in a process takes effect.
func ConfigureWith(profile Profile, o Overrides) {
	configureOnce.Do(func() {
		cfg := resolve(profile, o)
		applyEnvOverrides(&cfg)
		apply(cfg)
	})
}

func resolve(profile Profile, o Overrides) Config {
	cfg := defaultConfig(profile)
	if lvl, ok := parseLevel(o.Level); ok {
		cfg.Level = lvl
	}
	f := o.File
	cfg.File.Path = strings.TrimSpace(f.Path)
	if f.MaxSizeMB > 0 {
		cfg.File.MaxSizeMB = f.MaxSizeMB
	}
	if f.MaxBackups > 0 {
		cfg.File.MaxBackups = f.MaxBackups
	}
	if f.MaxAgeDays > 0 {
		cfg.File.MaxAgeDays = f.MaxAgeDays
	}
	cfg.File.Compress = f.Compress
	return cfg
}

func defaultConfig(profile Profile) Config {
	cfg := Config{
		File: FileConfig{MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 14},
	}
	switch profile {
	case ProfileTest:
		cfg.Level = zerolog.DebugLevel
		cfg.Timestamp = false
	default:
		cfg.Level = zerolog.InfoLevel
		cfg.Timestamp = true
	}
	return cfg
}

func apply(cfg Config) {
	var console io.Writer = os.Stderr
	if !cfg.Bypass {
		cw := zerolog.ConsoleWriter{Out: os.Stderr, NoColor: cfg.NoColor, TimeFormat: time.RFC3339}
		if !cfg.Timestamp {
			cw.PartsExclude = []string{zerolog.TimestampFieldName}
		}
		console = cw
	}

	out := console
	if path := strings.TrimSpace(cfg.File.Path); path != "" {
		out = zerolog.MultiLevelWriter(console, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		})
	}

	zerolog.SetGlobalLevel(cfg.Level)
	ctx := zerolog.New(out).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	log.Logger = ctx.Logger()
}

func applyEnvOverrides(cfg *Config) {
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogBypass)); ok {
		cfg.Bypass = v
	}
	if path := strings.TrimSpace(os.Getenv(EnvLogFile)); path != "" {
		cfg.File.Path = path
	}
}

// ParseLevel maps config and env spellings onto zerolog levels.
func ParseLevel(raw string) (zerolog.Level, bool) {
	return parseLevel(raw)
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace", "diagnostics":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none", "inactive":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
