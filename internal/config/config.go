package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	// EnvPrefix prefixes every environment override, e.g. FOLIO_MONGO_URI.
	EnvPrefix = "FOLIO_"

	defaultPort           = 2333
	defaultEnv            = "development"
	defaultMongoDatabase  = "folio"
	defaultMongoTimeout   = 10 * time.Second
	defaultTimezone       = "UTC"
	defaultTokenTTL       = 7 * 24 * time.Hour
	defaultRatePerSecond  = 10
	defaultRateBurst      = 20
	defaultTempMailLimit  = 5
	defaultTempMailTTL    = time.Hour
	defaultTempMailURL    = "https://api.mail.tm"
	defaultChatProvider   = "openai"
	defaultChatMaxTokens  = 800
	defaultChatTTL        = 24 * time.Hour
	defaultImageModel     = "dall-e-3"
	defaultMaxUploadMB    = 50
	defaultScraperTimeout = 30 * time.Second
	defaultScraperUA      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"
	defaultInstagramURL   = "https://www.instagram.com"
	defaultInstagramApp   = "936619743392459"
	defaultGamesURL       = "https://store.steampowered.com"
	defaultRetentionDays  = 90
	defaultLogDir         = "logs"
	defaultLogLevel       = "info"
)

// Load builds the startup config: built-in defaults, then the YAML file, then
// .env and FOLIO_* environment overrides. A missing file is only an error when
// the caller asked for a non-default path.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	explicit := path != "" && path != DefaultConfigPath
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := defaultAppConfig()

	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	_ = godotenv.Load()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port:     defaultPort,
		Env:      defaultEnv,
		Timezone: defaultTimezone,
		Mongo: MongoConfig{
			Database: defaultMongoDatabase,
			Timeout:  defaultMongoTimeout,
		},
		Admin:     AdminConfig{TokenTTL: defaultTokenTTL},
		RateLimit: RateLimitConfig{PerSecond: defaultRatePerSecond, Burst: defaultRateBurst},
		TempMail: TempMailConfig{
			DailyLimit: defaultTempMailLimit,
			TTL:        defaultTempMailTTL,
			BaseURL:    defaultTempMailURL,
		},
		Chat: ChatConfig{
			Provider:   defaultChatProvider,
			MaxTokens:  defaultChatMaxTokens,
			SessionTTL: defaultChatTTL,
		},
		AIImage: AIImageConfig{Model: defaultImageModel},
		Storage: StorageConfig{MaxUploadMB: defaultMaxUploadMB},
		Scraper: ScraperConfig{
			Timeout:      defaultScraperTimeout,
			UserAgent:    defaultScraperUA,
			InstagramURL: defaultInstagramURL,
			InstagramApp: defaultInstagramApp,
			GamesURL:     defaultGamesURL,
		},
		Analytics: AnalyticsConfig{RetentionDays: defaultRetentionDays},
		Log:       LogConfig{Dir: defaultLogDir, Level: defaultLogLevel},
	}
}

// Validate rejects values the server cannot run with.
func (c *AppConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", c.Port)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	if c.Mongo.Timeout <= 0 {
		return fmt.Errorf("mongo.timeout must be positive")
	}
	if c.TempMail.DailyLimit < 0 {
		return fmt.Errorf("tempmail.daily_limit must be >= 0")
	}
	if c.TempMail.TTL <= 0 || c.Chat.SessionTTL <= 0 {
		return fmt.Errorf("session ttl values must be positive")
	}
	if c.Scraper.Timeout <= 0 {
		return fmt.Errorf("scraper.timeout must be positive")
	}
	switch c.Chat.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("chat.provider %q is not one of openai, anthropic", c.Chat.Provider)
	}
	return nil
}

// IsDev reports whether the server runs in development mode.
func (c *AppConfig) IsDev() bool {
	return c.Env == "development"
}

// Location returns the zone used for calendar-day keys. It is fixed at startup.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LogDir resolves the log directory against the executable directory.
func (c *AppConfig) LogDir() string {
	dir := strings.TrimSpace(c.Log.Dir)
	if dir == "" {
		dir = defaultLogDir
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(executableDir(), dir)
}

func executableDir() string {
	exe, err := os.Executable()
	if err == nil && exe != "" {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		return filepath.Dir(exe)
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}
