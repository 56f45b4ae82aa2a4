// Package config loads the mirror configuration from defaults, a YAML file,
// .env files, CATALOG_* environment variables and command flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Sternrassler/catalog-mirror/internal/store"
	"github.com/Sternrassler/catalog-mirror/pkg/cache"
	"github.com/Sternrassler/catalog-mirror/pkg/client"
	"github.com/Sternrassler/catalog-mirror/pkg/logging"
)

// EnvPrefix is prepended to every environment variable, e.g. CATALOG_API_KEY.
const EnvPrefix = "CATALOG"

// Cache backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Bucket content modes.
const (
	BucketInline     = "inline"
	BucketFilesystem = "filesystem"
)

// Config is the complete runtime configuration.
type Config struct {
	OutputDir string         `mapstructure:"output_dir"`
	DryRun    bool           `mapstructure:"dry_run"`
	API       APIConfig      `mapstructure:"api"`
	Cache     CacheConfig    `mapstructure:"cache"`
	Database  DatabaseConfig `mapstructure:"database"`
	Bucket    BucketConfig   `mapstructure:"bucket"`
	Sync      SyncConfig     `mapstructure:"sync"`
	Log       LogConfig      `mapstructure:"log"`
	Metrics   MetricsConfig  `mapstructure:"metrics"`
	Schedule  ScheduleConfig `mapstructure:"schedule"`
	Lock      LockConfig     `mapstructure:"lock"`
}

// APIConfig configures the catalog API client.
type APIConfig struct {
	URL          string        `mapstructure:"url"`
	Key          string        `mapstructure:"key"`
	KeyFile      string        `mapstructure:"key_file"`
	UserAgent    string        `mapstructure:"user_agent"`
	Wait         time.Duration `mapstructure:"wait"`
	RetryLimit   int           `mapstructure:"retry_limit"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// CacheConfig configures the request cache.
type CacheConfig struct {
	Mode    string        `mapstructure:"mode"`
	Store   string        `mapstructure:"store"`
	Backend string        `mapstructure:"backend"`
	MaxAge  time.Duration `mapstructure:"max_age"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig holds Redis connection options for the redis cache backend.
type RedisConfig struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// DatabaseConfig locates the entity database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// BucketConfig locates the file bucket.
type BucketConfig struct {
	Path string `mapstructure:"path"`
	Mode string `mapstructure:"mode"`
	Dir  string `mapstructure:"dir"`
}

// SyncConfig selects what a sync run mirrors.
type SyncConfig struct {
	Games         []int64 `mapstructure:"games"`
	Categories    []int64 `mapstructure:"categories"`
	Full          bool    `mapstructure:"full"`
	PageSize      int     `mapstructure:"page_size"`
	StalePages    int     `mapstructure:"stale_pages"`
	CommitEvery   int     `mapstructure:"commit_every"`
	Descriptions  bool    `mapstructure:"descriptions"`
	Changelogs    bool    `mapstructure:"changelogs"`
	GameVersions  bool    `mapstructure:"game_versions"`
	DownloadMedia bool    `mapstructure:"download_media"`
	DownloadFiles bool    `mapstructure:"download_files"`
	DownloadAll   bool    `mapstructure:"download_all"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// MetricsConfig configures the metrics endpoint of the schedule command.
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// ScheduleConfig configures recurring syncs.
type ScheduleConfig struct {
	Spec string `mapstructure:"spec"`
}

// LockConfig locates the PID file that keeps a second instance from starting.
type LockConfig struct {
	Path string `mapstructure:"path"`
}

// Options controls where Load looks for configuration.
type Options struct {
	// File is an explicit config file. When empty, config.yaml is searched in
	// ./ and ./config.
	File string

	// Flags are bound over every other source. Only flags listed in FlagKeys
	// and actually set on the command line take effect.
	Flags *pflag.FlagSet

	// EnvFiles are loaded into the environment before it is read. Missing
	// files are ignored. Nil means ".env".
	EnvFiles []string
}

// FlagKeys maps command flag names to configuration keys.
var FlagKeys = map[string]string{
	"output-dir":      "output_dir",
	"dry-run":         "dry_run",
	"api-url":         "api.url",
	"api-key":         "api.key",
	"api-key-file":    "api.key_file",
	"wait":            "api.wait",
	"retry-limit":     "api.retry_limit",
	"cache":           "cache.mode",
	"store":           "cache.store",
	"cache-backend":   "cache.backend",
	"max-age":         "cache.max_age",
	"database":        "database.path",
	"bucket":          "bucket.path",
	"bucket-mode":     "bucket.mode",
	"games":           "sync.games",
	"categories":      "sync.categories",
	"full":            "sync.full",
	"page-size":       "sync.page_size",
	"stale-pages":     "sync.stale_pages",
	"commit-every":    "sync.commit_every",
	"descriptions":    "sync.descriptions",
	"changelogs":      "sync.changelogs",
	"game-versions":   "sync.game_versions",
	"download-media":  "sync.download_media",
	"download-files":  "sync.download_files",
	"download-all":    "sync.download_all",
	"log-level":       "log.level",
	"pretty":          "log.pretty",
	"metrics-address": "metrics.address",
	"schedule":        "schedule.spec",
	"lock":            "lock.path",
}

// Load reads the configuration and resolves derived values. It does not
// validate; commands that talk to the API call Validate.
func Load(opts Options) (*Config, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	if opts.Flags != nil {
		for name, key := range FlagKeys {
			flag := opts.Flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("config: bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output_dir", "./catalog")
	v.SetDefault("dry_run", false)

	v.SetDefault("api.url", client.DefaultBaseURL)
	v.SetDefault("api.key", "")
	v.SetDefault("api.key_file", "api_key.txt")
	v.SetDefault("api.user_agent", client.DefaultUserAgent)
	v.SetDefault("api.wait", "1s")
	v.SetDefault("api.retry_limit", 4)
	v.SetDefault("api.retry_backoff", "0s")
	v.SetDefault("api.timeout", "30s")

	v.SetDefault("cache.mode", string(cache.CacheDefault))
	v.SetDefault("cache.store", string(cache.StoreDefault))
	v.SetDefault("cache.backend", BackendSQLite)
	v.SetDefault("cache.max_age", "1h")
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", cache.DefaultRedisPrefix)
	v.SetDefault("cache.redis.ttl", "0s")

	v.SetDefault("database.path", "")

	v.SetDefault("bucket.path", "")
	v.SetDefault("bucket.mode", BucketInline)
	v.SetDefault("bucket.dir", "")

	v.SetDefault("sync.games", []int64{432})
	v.SetDefault("sync.categories", []int64{})
	v.SetDefault("sync.full", false)
	v.SetDefault("sync.page_size", 50)
	v.SetDefault("sync.stale_pages", 0)
	v.SetDefault("sync.commit_every", store.DefaultCommitEvery)
	v.SetDefault("sync.descriptions", false)
	v.SetDefault("sync.changelogs", false)
	v.SetDefault("sync.game_versions", false)
	v.SetDefault("sync.download_media", false)
	v.SetDefault("sync.download_files", false)
	v.SetDefault("sync.download_all", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("metrics.address", "")
	v.SetDefault("schedule.spec", "@daily")
	v.SetDefault("lock.path", "")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToListHookFunc(","),
		)
	}
}

var int64Type = reflect.TypeOf(int64(0))

// stringToListHookFunc splits a separated string, as read from an environment
// variable, into a slice. Elements of []int64 targets are parsed here since
// weak decoding would see the whole string as one element.
func stringToListHookFunc(sep string) mapstructure.DecodeHookFuncType {
	return func(f, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Slice {
			return data, nil
		}

		raw := strings.TrimSpace(reflect.ValueOf(data).String())
		raw = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
		parts := []string{}
		for _, part := range strings.Split(raw, sep) {
			if part = strings.TrimSpace(part); part != "" {
				parts = append(parts, part)
			}
		}

		if t.Elem() != int64Type {
			return parts, nil
		}
		ids := make([]int64, 0, len(parts))
		for _, part := range parts {
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid list element %q: %w", part, err)
			}
			ids = append(ids, id)
		}
		return ids, nil
	}
}

// resolve fills values derived from other settings.
func (c *Config) resolve() error {
	if c.Sync.DownloadAll {
		c.Sync.Descriptions = true
		c.Sync.Changelogs = true
		c.Sync.GameVersions = true
		c.Sync.DownloadMedia = true
		c.Sync.DownloadFiles = true
	}

	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(c.OutputDir, "catalog.db")
	}
	if c.Bucket.Path == "" {
		c.Bucket.Path = filepath.Join(c.OutputDir, "bucket.db")
	}
	if c.Bucket.Dir == "" {
		c.Bucket.Dir = c.OutputDir
	}
	if c.Lock.Path == "" {
		c.Lock.Path = filepath.Join(c.OutputDir, "catalog-mirror.pid")
	}

	if c.DryRun {
		c.Database.Path = store.MemoryPath
		c.Bucket.Path = store.MemoryPath
		c.Bucket.Mode = BucketInline
	}

	c.API.Key = strings.TrimSpace(c.API.Key)
	if c.API.Key == "" && c.API.KeyFile != "" {
		data, err := os.ReadFile(c.API.KeyFile)
		switch {
		case err == nil:
			c.API.Key = strings.TrimSpace(string(data))
		case errors.Is(err, fs.ErrNotExist):
			// Reported by Validate when a key is actually needed.
		default:
			return fmt.Errorf("config: read api key file: %w", err)
		}
	}
	return nil
}

// Validate checks the settings a sync run depends on.
func (c *Config) Validate() error {
	if c.API.Key == "" {
		if c.API.KeyFile == "" {
			return fmt.Errorf("config: api key is required (set api.key or api.key_file)")
		}
		return fmt.Errorf("config: api key is required: key file %q is missing or empty", c.API.KeyFile)
	}
	if c.API.URL == "" {
		return fmt.Errorf("config: api.url is required")
	}
	if c.API.RetryLimit < 0 {
		return fmt.Errorf("config: api.retry_limit must be >= 0 (got %d)", c.API.RetryLimit)
	}
	if c.API.Wait < 0 {
		return fmt.Errorf("config: api.wait must be >= 0 (got %s)", c.API.Wait)
	}

	if _, err := cache.ParseCacheMode(c.Cache.Mode); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := cache.ParseStoreMode(c.Cache.Store); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Cache.Backend {
	case BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("config: unknown cache backend %q (want %s or %s)", c.Cache.Backend, BackendSQLite, BackendRedis)
	}
	if c.Cache.Backend == BackendRedis && c.Cache.Redis.Address == "" {
		return fmt.Errorf("config: cache.redis.address is required for the redis backend")
	}

	switch c.Bucket.Mode {
	case BucketInline, BucketFilesystem:
	default:
		return fmt.Errorf("config: unknown bucket mode %q (want %s or %s)", c.Bucket.Mode, BucketInline, BucketFilesystem)
	}
	// The entity database holds a long write transaction during a sync.
	if !store.IsMemory(c.Database.Path) && filepath.Clean(c.Database.Path) == filepath.Clean(c.Bucket.Path) {
		return fmt.Errorf("config: database.path and bucket.path must differ (both %q)", c.Database.Path)
	}

	if c.Sync.PageSize <= 0 {
		return fmt.Errorf("config: sync.page_size must be > 0 (got %d)", c.Sync.PageSize)
	}
	if c.Sync.StalePages < 0 {
		return fmt.Errorf("config: sync.stale_pages must be >= 0 (got %d)", c.Sync.StalePages)
	}
	if c.Sync.CommitEvery <= 0 {
		return fmt.Errorf("config: sync.commit_every must be > 0 (got %d)", c.Sync.CommitEvery)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ClientConfig returns the API client configuration.
func (c *Config) ClientConfig() client.Config {
	return client.Config{
		BaseURL:      c.API.URL,
		APIKey:       c.API.Key,
		UserAgent:    c.API.UserAgent,
		Interval:     c.API.Wait,
		RetryLimit:   c.API.RetryLimit,
		RetryBackoff: c.API.RetryBackoff,
		Timeout:      c.API.Timeout,
	}
}

// CacheModes returns the parsed cache modes. Call Validate first.
func (c *Config) CacheModes() cache.Config {
	cacheMode, _ := cache.ParseCacheMode(c.Cache.Mode)
	storeMode, _ := cache.ParseStoreMode(c.Cache.Store)
	return cache.Config{CacheMode: cacheMode, StoreMode: storeMode}
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.Config{
		Level:  level,
		Pretty: c.Log.Pretty,
		Output: os.Stderr,
	}
}
