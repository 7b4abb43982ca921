package config

import "time"

// AppConfig holds runtime startup configuration loaded from YAML, .env and the environment.
type AppConfig struct {
	Port           int             `yaml:"port"            env:"PORT"`
	Env            string          `yaml:"env"             env:"ENV"` // "development" | "production"
	Mongo          MongoConfig     `yaml:"mongo"           envPrefix:"MONGO_"`
	RedisURL       string          `yaml:"redis_url"       env:"REDIS_URL"`
	AllowedOrigins []string        `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	JWTSecret      string          `yaml:"jwt_secret"      env:"JWT_SECRET"`
	Timezone       string          `yaml:"timezone"        env:"TIMEZONE"`
	Admin          AdminConfig     `yaml:"admin"           envPrefix:"ADMIN_"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"      envPrefix:"RATE_LIMIT_"`
	TempMail       TempMailConfig  `yaml:"tempmail"        envPrefix:"TEMPMAIL_"`
	Chat           ChatConfig      `yaml:"chat"            envPrefix:"CHAT_"`
	AIImage        AIImageConfig   `yaml:"ai_image"        envPrefix:"AI_IMAGE_"`
	Storage        StorageConfig   `yaml:"storage"         envPrefix:"STORAGE_"`
	Scraper        ScraperConfig   `yaml:"scraper"         envPrefix:"SCRAPER_"`
	Analytics      AnalyticsConfig `yaml:"analytics"       envPrefix:"ANALYTICS_"`
	Log            LogConfig       `yaml:"log"             envPrefix:"LOG_"`
}

type MongoConfig struct {
	URI      string        `yaml:"uri"      env:"URI"`
	Database string        `yaml:"database" env:"DATABASE"`
	Timeout  time.Duration `yaml:"timeout"  env:"TIMEOUT"`
}

type AdminConfig struct {
	// InitialPassword seeds the admin password hash when none is stored yet.
	InitialPassword string        `yaml:"initial_password" env:"INITIAL_PASSWORD"`
	TokenTTL        time.Duration `yaml:"token_ttl"        env:"TOKEN_TTL"`
}

type RateLimitConfig struct {
	PerSecond int `yaml:"per_second" env:"PER_SECOND"`
	Burst     int `yaml:"burst"      env:"BURST"`
}

type TempMailConfig struct {
	DailyLimit int           `yaml:"daily_limit" env:"DAILY_LIMIT"`
	TTL        time.Duration `yaml:"ttl"         env:"TTL"`
	BaseURL    string        `yaml:"base_url"    env:"BASE_URL"`
}

type ChatConfig struct {
	Provider   string        `yaml:"provider"    env:"PROVIDER"` // "openai" | "anthropic"
	APIKey     string        `yaml:"api_key"     env:"API_KEY"`
	Endpoint   string        `yaml:"endpoint"    env:"ENDPOINT"`
	Model      string        `yaml:"model"       env:"MODEL"`
	System     string        `yaml:"system"      env:"SYSTEM"`
	MaxTokens  int           `yaml:"max_tokens"  env:"MAX_TOKENS"`
	SessionTTL time.Duration `yaml:"session_ttl" env:"SESSION_TTL"`
}

type AIImageConfig struct {
	APIKey   string `yaml:"api_key"  env:"API_KEY"`
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
	Model    string `yaml:"model"    env:"MODEL"`
}

type StorageConfig struct {
	S3          S3Config `yaml:"s3"            envPrefix:"S3_"`
	MaxUploadMB int      `yaml:"max_upload_mb" env:"MAX_UPLOAD_MB"`
}

type S3Config struct {
	Endpoint        string `yaml:"endpoint"          env:"ENDPOINT"`
	Region          string `yaml:"region"            env:"REGION"`
	Bucket          string `yaml:"bucket"            env:"BUCKET"`
	AccessKeyID     string `yaml:"access_key_id"     env:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"SECRET_ACCESS_KEY"`
	PublicBaseURL   string `yaml:"public_base_url"   env:"PUBLIC_BASE_URL"`
	PathStyle       bool   `yaml:"path_style"        env:"PATH_STYLE"`
}

type ScraperConfig struct {
	Timeout      time.Duration `yaml:"timeout"       env:"TIMEOUT"`
	UserAgent    string        `yaml:"user_agent"    env:"USER_AGENT"`
	InstagramURL string        `yaml:"instagram_url" env:"INSTAGRAM_URL"`
	InstagramApp string        `yaml:"instagram_app" env:"INSTAGRAM_APP"`
	GamesURL     string        `yaml:"games_url"     env:"GAMES_URL"`
}

type AnalyticsConfig struct {
	RetentionDays int `yaml:"retention_days" env:"RETENTION_DAYS"`
}

type LogConfig struct {
	Dir   string `yaml:"dir"   env:"DIR"`
	Level string `yaml:"level" env:"LEVEL"`
}

// Configured reports whether enough S3 settings are present to upload.
func (c S3Config) Configured() bool {
	return c.Bucket != "" && c.Region != "" && c.AccessKeyID != "" && c.SecretAccessKey != ""
}
