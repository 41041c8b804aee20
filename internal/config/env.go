package config

import (
	"os"
	"strconv"
	"strings"
)

// ApplyEnv overlays environment variables. Secrets only ever come from here.
func ApplyEnv(cfg *Config) {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("POSTJOB_DATA_DIR", &cfg.App.DataDir)
	num("POSTJOB_PORT", &cfg.App.Port)
	str("POSTJOB_LOG_LEVEL", &cfg.App.LogLevel)
	str("POSTJOB_STORE_DRIVER", &cfg.Store.Driver)
	str("DATABASE_URL", &cfg.Store.DSN)
	str("REDIS_URL", &cfg.Notify.RedisURL)
	num("POSTJOB_MAX_CONCURRENT_POSTS", &cfg.Queue.MaxConcurrentPosts)
	num("POSTJOB_MAX_ATTEMPTS", &cfg.Queue.MaxAttempts)
	str("POSTJOB_BOARDS_FILE", &cfg.BoardsFile)
	str("POSTJOB_CREDENTIALS_USERNAME", &cfg.Credentials.Username)
	str("POSTJOB_JWT_SECRET", &cfg.API.JWTSecret)

	if v := os.Getenv("POSTJOB_COST_CEILING"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Discovery.CostCeiling = f
		}
	}

	for name, pc := range cfg.Discovery.Providers {
		keyEnv := pc.APIKeyEnv
		if keyEnv == "" {
			keyEnv = strings.ToUpper(name) + "_API_KEY"
		}
		pc.APIKey = strings.TrimSpace(os.Getenv(keyEnv))
		cfg.Discovery.Providers[name] = pc
	}
}
