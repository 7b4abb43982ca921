package config

import "strings"

func normalize(cfg *AppConfig) {
	cfg.Env = normalizeEnv(cfg.Env)
	cfg.Timezone = strings.TrimSpace(cfg.Timezone)
	if cfg.Timezone == "" {
		cfg.Timezone = defaultTimezone
	}
	cfg.Mongo.URI = strings.TrimSpace(cfg.Mongo.URI)
	if strings.TrimSpace(cfg.Mongo.Database) == "" {
		cfg.Mongo.Database = defaultMongoDatabase
	}
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	cfg.AllowedOrigins = normalizeOrigins(cfg.AllowedOrigins)
	cfg.Chat.Provider = normalizeProvider(cfg.Chat.Provider)
	cfg.TempMail.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.TempMail.BaseURL), "/")
	cfg.Scraper.InstagramURL = strings.TrimRight(strings.TrimSpace(cfg.Scraper.InstagramURL), "/")
	cfg.Scraper.GamesURL = strings.TrimRight(strings.TrimSpace(cfg.Scraper.GamesURL), "/")
	if cfg.RateLimit.PerSecond <= 0 {
		cfg.RateLimit.PerSecond = defaultRatePerSecond
	}
	if cfg.RateLimit.Burst < cfg.RateLimit.PerSecond {
		cfg.RateLimit.Burst = cfg.RateLimit.PerSecond
	}
	if cfg.Analytics.RetentionDays <= 0 {
		cfg.Analytics.RetentionDays = defaultRetentionDays
	}
	if cfg.Storage.MaxUploadMB <= 0 {
		cfg.Storage.MaxUploadMB = defaultMaxUploadMB
	}
	if cfg.Admin.TokenTTL <= 0 {
		cfg.Admin.TokenTTL = defaultTokenTTL
	}
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		if v := strings.TrimSpace(origin); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func normalizeEnv(env string) string {
	v := strings.ToLower(strings.TrimSpace(env))
	switch v {
	case "prod", "production":
		return "production"
	case "":
		return defaultEnv
	default:
		return v
	}
}

func normalizeProvider(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	switch t {
	case "", "openai-compatible", "openaicompatible":
		return "openai"
	case "claude":
		return "anthropic"
	default:
		return t
	}
}
