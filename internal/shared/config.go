package shared

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config is read once at startup and injected read-only into the adapters.
type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string

	// document store coordinates
	Owner       string
	Repo        string
	Branch      string
	ReviewsPath string
	Token       string
	StoreRPS    int

	AdminPIN       string
	AllowedOrigins []string

	RedisAddr       string
	RedisPass       string
	RedisDB         int
	SubmitPerMinute int
}

func Load() Config {
	// .env is a dev convenience; in production the environment is set directly
	_ = godotenv.Load()

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}

	c := Config{
		AppEnv:          env("APP_ENV", "prod"),
		HTTPAddr:        env("HTTP_ADDR", ":8080"),
		MetricsAddr:     env("METRICS_ADDR", ""),
		Owner:           env("GH_OWNER", ""),
		Repo:            env("GH_REPO", ""),
		Branch:          env("GH_BRANCH", "main"),
		ReviewsPath:     env("REVIEWS_PATH", "data/reviews.json"),
		Token:           env("GH_TOKEN", ""),
		StoreRPS:        atoi("GH_RPS", 5),
		AdminPIN:        env("ADMIN_PIN", ""),
		AllowedOrigins:  splitList(env("ALLOWED_ORIGINS", "")),
		RedisAddr:       env("REDIS_ADDR", ""),
		RedisPass:       env("REDIS_PASSWORD", ""),
		RedisDB:         atoi("REDIS_DB", 0),
		SubmitPerMinute: atoi("SUBMIT_PER_MINUTE", 10),
	}
	if c.AdminPIN == "" {
		log.Warn().Msg("ADMIN_PIN is empty, every admin action will be rejected")
	}
	return c
}

// Validate reports the missing store coordinates; the process must not serve
// without them.
func (c Config) Validate() error {
	var missing []string
	if c.Owner == "" {
		missing = append(missing, "GH_OWNER")
	}
	if c.Repo == "" {
		missing = append(missing, "GH_REPO")
	}
	if c.Token == "" {
		missing = append(missing, "GH_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment: %s", strings.Join(missing, ", "))
	}
	return nil
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
