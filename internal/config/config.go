package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr string `yaml:"http_addr" validate:"required"`

	DBDriver string `yaml:"db_driver" validate:"oneof=sqlite sqlite3 postgres postgresql pgx"`
	DBDSN    string `yaml:"db_dsn"`

	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	AuthHMACSecret string        `yaml:"auth_hmac_secret" validate:"required,min=8"`
	TokenTTL       time.Duration `yaml:"token_ttl" validate:"gt=0"`

	EnableLocalAuth bool   `yaml:"enable_local_auth"`
	AdminUser       string `yaml:"admin_user" validate:"required_if=EnableLocalAuth true"`
	AdminPassHash   string `yaml:"admin_pass_hash" validate:"required_if=EnableLocalAuth true"` // bcrypt

	CORSOrigins []string `yaml:"cors_origins"`
}

func Defaults() Config {
	return Config{
		HTTPAddr:        ":8080",
		DBDriver:        "sqlite",
		LogLevel:        "info",
		AuthHMACSecret:  "supersecret-dev-key",
		TokenTTL:        8 * time.Hour,
		EnableLocalAuth: false,
		AdminUser:       "admin",
		CORSOrigins:     []string{"http://localhost:3000"},
	}
}

// Load builds the config from defaults, then the optional YAML file at path,
// then .env and the process environment. The result is validated.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	// A missing .env is fine; the process environment still applies.
	_ = godotenv.Load()
	applyEnv(&cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(c *Config) {
	c.HTTPAddr = envOr("HTTP_ADDR", c.HTTPAddr)
	c.DBDriver = envOr("DB_DRIVER", c.DBDriver)
	c.DBDSN = envOr("DB_DSN", c.DBDSN)
	c.LogLevel = strings.ToLower(envOr("LOG_LEVEL", c.LogLevel))
	c.AuthHMACSecret = envOr("AUTH_HMAC_SECRET", c.AuthHMACSecret)
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.TokenTTL = d
		}
	}
	c.EnableLocalAuth = envBool("ENABLE_LOCAL_AUTH", c.EnableLocalAuth)
	c.AdminUser = envOr("ADMIN_USER", c.AdminUser)
	c.AdminPassHash = envOr("ADMIN_PASS_HASH", c.AdminPassHash)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = csv(v)
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func csv(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
