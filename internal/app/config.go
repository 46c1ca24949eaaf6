package app

import (
	"strings"
	"time"

	"github.com/lumenlearn/curricula-backend/internal/platform/envutil"
)

type Config struct {
	Port         string
	LogMode      string
	AllowOrigins []string

	RedisAddr      string
	CacheKeyPrefix string
	CacheTTL       time.Duration
}

func LoadConfig() Config {
	return Config{
		Port:           envutil.String("PORT", "8080"),
		LogMode:        envutil.String("LOG_MODE", "development"),
		AllowOrigins:   splitCSV(envutil.String("ALLOW_ORIGINS", "http://localhost:3000")),
		RedisAddr:      envutil.String("REDIS_ADDR", "localhost:6379"),
		CacheKeyPrefix: envutil.String("CACHE_KEY_PREFIX", "graph"),
		CacheTTL:       envutil.Duration("CACHE_TTL", 0),
	}
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
