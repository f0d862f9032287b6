// Package config собирает настройки сервера: значения по умолчанию,
// переменные окружения, затем флаги командной строки.
package config

import (
	"flag"
	"os"
	"time"
)

// Config holds runtime settings for the doorsync server.
type Config struct {
	// Addr — адрес и порт HTTP-сервера.
	Addr string
	// DBPath — путь к файлу SQLite.
	DBPath string
	// SecretKey — HMAC-секрет подписи JWT (HS256).
	SecretKey string
	// EnrollKey — общий ключ регистрации дверей.
	EnrollKey string
	// AccessTokenTTL — срок жизни токена двери.
	AccessTokenTTL time.Duration
	// LogLevel: debug, info, warn, error.
	LogLevel string
}

// LoadDefaults populates Config with development defaults.
// NOTE: секреты по умолчанию годятся только для локальной разработки.
func (c *Config) LoadDefaults() {
	c.Addr = ":8080"
	c.DBPath = "doorsync.db"
	c.SecretKey = "dev-secret-key"
	c.EnrollKey = "dev-enroll-key"
	c.AccessTokenTTL = 24 * time.Hour
	c.LogLevel = "info"
}

// LoadConfig строит конфигурацию: defaults, поверх — окружение,
// поверх — флаги.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	cfg.applyEnv()
	cfg.parseFlags(os.Args[1:])
	return cfg
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DOORSYNC_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("DOORSYNC_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("DOORSYNC_SECRET_KEY"); v != "" {
		c.SecretKey = v
	}
	if v := os.Getenv("DOORSYNC_ENROLL_KEY"); v != "" {
		c.EnrollKey = v
	}
	if v := os.Getenv("DOORSYNC_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.AccessTokenTTL = d
		}
	}
	if v := os.Getenv("DOORSYNC_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) parseFlags(args []string) {
	fs := flag.NewFlagSet("doorsync-server", flag.ExitOnError)

	fs.StringVar(&c.Addr, "a", c.Addr, "address and port to run server")
	fs.StringVar(&c.DBPath, "d", c.DBPath, "path to sqlite database file")
	fs.StringVar(&c.SecretKey, "s", c.SecretKey, "JWT secret key")
	fs.StringVar(&c.EnrollKey, "e", c.EnrollKey, "door enrollment key")
	fs.DurationVar(&c.AccessTokenTTL, "t", c.AccessTokenTTL, "access token TTL")
	fs.StringVar(&c.LogLevel, "l", c.LogLevel, "log level (debug, info, warn, error)")

	_ = fs.Parse(args)
}
