// Package config loads application settings from defaults, an optional config file and ACQUIRE_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alanbriolat/video-acquirer"
	"github.com/alanbriolat/video-acquirer/internal/boltdb"
	"github.com/alanbriolat/video-acquirer/internal/cache"
	"github.com/alanbriolat/video-acquirer/internal/completion"
	"github.com/alanbriolat/video-acquirer/internal/database"
	"github.com/alanbriolat/video-acquirer/internal/orchestrator"
	"github.com/alanbriolat/video-acquirer/internal/progress"
	"github.com/alanbriolat/video-acquirer/internal/session"
)

const (
	EnvPrefix = "ACQUIRE"
	FileName  = "acquire"
)

var EnvKeyReplacer = strings.NewReplacer(".", "_")

var ErrUnknownHistoryDriver = errors.New("unknown history driver")

type HistoryDriver string

const (
	HistoryNone   HistoryDriver = "none"
	HistoryBolt   HistoryDriver = "bolt"
	HistorySQLite HistoryDriver = "sqlite"
)

// Defaults maps every recognised key to its default value.
var Defaults = map[string]any{
	"output_dir":             orchestrator.DefaultConfig.OutputDir,
	"scratch_dir":            orchestrator.DefaultConfig.ScratchDir,
	"cookie_file":            "",
	"filename_template":      "",
	"ytdlp.binary":           "yt-dlp",
	"strategies":             video_acquirer.DefaultStrategies.Names(),
	"timeouts.acquire":       session.DefaultConfig.AcquireTimeout,
	"timeouts.heartbeat":     progress.DefaultChannelConfig.Heartbeat,
	"completion.interval":    completion.DefaultConfig.Interval,
	"completion.max_wait":    completion.DefaultConfig.MaxWait,
	"backoff.initial_jitter": orchestrator.DefaultConfig.InitialJitter,
	"backoff.blocked_min":    orchestrator.DefaultConfig.BlockedBackoffMin,
	"backoff.blocked_max":    orchestrator.DefaultConfig.BlockedBackoffMax,
	"cache.ttl":              cache.DefaultConfig.TTL,
	"cache.capacity":         cache.DefaultConfig.Capacity,
	"history.driver":         string(HistoryNone),
	"history.path":           "",
	"history.max_age":        30 * 24 * time.Hour,
	"log.level":              "info",
	"log.json":               false,
}

type HistoryConfig struct {
	Driver HistoryDriver
	Path   string
	MaxAge time.Duration
}

type LogConfig struct {
	Level string
	JSON  bool
}

type Config struct {
	OutputDir        string
	ScratchDir       string
	CookieFile       string
	FilenameTemplate string
	YtdlpBinary      string
	Strategies       []string

	AcquireTimeout time.Duration
	Heartbeat      time.Duration

	CompletionInterval time.Duration
	CompletionMaxWait  time.Duration

	InitialJitter     time.Duration
	BlockedBackoffMin time.Duration
	BlockedBackoffMax time.Duration

	CacheTTL      time.Duration
	CacheCapacity int

	History HistoryConfig
	Log     LogConfig
}

// Load reads the configuration. The file is looked for as acquire.{toml,yaml,...} in each of paths, and a missing
// file is not an error. If explicitFile is set it must exist.
func Load(fs afero.Fs, explicitFile string, paths ...string) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(EnvKeyReplacer)
	v.AutomaticEnv()
	for key, value := range Defaults {
		v.SetDefault(key, value)
	}

	if explicitFile != "" {
		v.SetConfigFile(explicitFile)
	} else {
		v.SetConfigName(FileName)
		for _, path := range paths {
			v.AddConfigPath(path)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicitFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		zap.S().Named("config").Debugf("loaded config from %v", v.ConfigFileUsed())
	}

	c := &Config{
		OutputDir:          v.GetString("output_dir"),
		ScratchDir:         v.GetString("scratch_dir"),
		CookieFile:         v.GetString("cookie_file"),
		FilenameTemplate:   v.GetString("filename_template"),
		YtdlpBinary:        v.GetString("ytdlp.binary"),
		Strategies:         splitList(v.GetStringSlice("strategies")),
		AcquireTimeout:     v.GetDuration("timeouts.acquire"),
		Heartbeat:          v.GetDuration("timeouts.heartbeat"),
		CompletionInterval: v.GetDuration("completion.interval"),
		CompletionMaxWait:  v.GetDuration("completion.max_wait"),
		InitialJitter:      v.GetDuration("backoff.initial_jitter"),
		BlockedBackoffMin:  v.GetDuration("backoff.blocked_min"),
		BlockedBackoffMax:  v.GetDuration("backoff.blocked_max"),
		CacheTTL:           v.GetDuration("cache.ttl"),
		CacheCapacity:      v.GetInt("cache.capacity"),
		History: HistoryConfig{
			Driver: HistoryDriver(strings.ToLower(v.GetString("history.driver"))),
			Path:   v.GetString("history.path"),
			MaxAge: v.GetDuration("history.max_age"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
			JSON:  v.GetBool("log.json"),
		},
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// splitList also accepts comma-separated items, as given in environment variables.
func splitList(items []string) []string {
	return lo.Compact(lo.FlatMap(items, func(item string, _ int) []string {
		return lo.Map(strings.Split(item, ","), func(s string, _ int) string { return strings.TrimSpace(s) })
	}))
}

func (c *Config) validate() error {
	switch c.History.Driver {
	case HistoryNone, HistoryBolt, HistorySQLite:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownHistoryDriver, c.History.Driver)
	}
	if c.History.Driver != HistoryNone && c.History.Path == "" {
		return fmt.Errorf("history.path is required for history driver %q", c.History.Driver)
	}
	if c.BlockedBackoffMax < c.BlockedBackoffMin {
		return fmt.Errorf("backoff.blocked_max (%v) is less than backoff.blocked_min (%v)", c.BlockedBackoffMax, c.BlockedBackoffMin)
	}
	if _, err := video_acquirer.DefaultStrategies.Select(c.Strategies...); err != nil {
		return err
	}
	return nil
}

// BackendOptions are the options for building backends from the registry.
func (c *Config) BackendOptions() video_acquirer.BackendOptions {
	return video_acquirer.BackendOptions{Binary: c.YtdlpBinary, CookieFile: c.CookieFile}
}

// Session builds the session configuration, without backends or history.
func (c *Config) Session() (session.Config, error) {
	strategies, err := video_acquirer.DefaultStrategies.Select(c.Strategies...)
	if err != nil {
		return session.Config{}, err
	}
	target, err := video_acquirer.NewTargetConfig(c.FilenameTemplate)
	if err != nil {
		return session.Config{}, err
	}

	sc := session.DefaultConfig
	sc.Orchestrator.OutputDir = c.OutputDir
	sc.Orchestrator.ScratchDir = c.ScratchDir
	sc.Orchestrator.CookieFile = c.CookieFile
	sc.Orchestrator.Strategies = strategies
	sc.Orchestrator.Target = target
	sc.Orchestrator.Completion = completion.Config{Interval: c.CompletionInterval, MaxWait: c.CompletionMaxWait}
	sc.Orchestrator.InitialJitter = c.InitialJitter
	sc.Orchestrator.BlockedBackoffMin = c.BlockedBackoffMin
	sc.Orchestrator.BlockedBackoffMax = c.BlockedBackoffMax
	sc.Cache = cache.Config{TTL: c.CacheTTL, Capacity: c.CacheCapacity}
	sc.Channel.Heartbeat = c.Heartbeat
	sc.Channel.Budget = c.AcquireTimeout
	sc.AcquireTimeout = c.AcquireTimeout
	return sc, nil
}

// OpenHistory opens the configured history store. The returned function closes it.
func (c *Config) OpenHistory(log *zap.Logger) (session.Database, func() error, error) {
	switch c.History.Driver {
	case HistoryBolt:
		db, err := boltdb.New(c.History.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open history: %w", err)
		}
		return db, db.Close, nil
	case HistorySQLite:
		db, err := database.Open(c.History.Path, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open history: %w", err)
		}
		if err := db.Migrate(); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to migrate history: %w", err)
		}
		return db, db.Close, nil
	default:
		return session.NilDatabase{}, func() error { return nil }, nil
	}
}

// Logger builds the application logger.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	var zc zap.Config
	if c.Log.JSON {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
