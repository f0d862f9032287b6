// Package config собирает настройки клиента двери: значения по
// умолчанию, переменные окружения, затем флаги командной строки.
package config

import (
	"flag"
	"fmt"
	"os"
)

// Config holds runtime settings for the doorsync client.
type Config struct {
	// ServerURL — адрес сервера репликации.
	ServerURL string
	// DBPath — путь к локальной BoltDB реплике.
	DBPath string
	// DoorID — идентификатор двери, которую обслуживает клиент.
	DoorID string
	// DeviceName — человекочитаемое имя устройства.
	DeviceName string
	// EnrollKey — общий ключ регистрации.
	EnrollKey string
	// LogLevel: debug, info, warn, error.
	LogLevel string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://localhost:8080"
	c.DBPath = "doorsync-client.db"
	c.DeviceName = defaultDeviceName()
	c.EnrollKey = "dev-enroll-key"
	c.LogLevel = "info"
}

// LoadConfig строит конфигурацию: defaults, поверх — окружение,
// поверх — флаги.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	cfg.applyEnv()
	cfg.parseFlags(os.Args[1:])

	if cfg.DoorID == "" {
		return nil, fmt.Errorf("door id is required: set -door or DOORSYNC_DOOR_ID")
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DOORSYNC_SERVER_URL"); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv("DOORSYNC_CLIENT_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("DOORSYNC_DOOR_ID"); v != "" {
		c.DoorID = v
	}
	if v := os.Getenv("DOORSYNC_DEVICE_NAME"); v != "" {
		c.DeviceName = v
	}
	if v := os.Getenv("DOORSYNC_ENROLL_KEY"); v != "" {
		c.EnrollKey = v
	}
	if v := os.Getenv("DOORSYNC_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) parseFlags(args []string) {
	fs := flag.NewFlagSet("doorsync-client", flag.ExitOnError)

	fs.StringVar(&c.ServerURL, "s", c.ServerURL, "replication server URL")
	fs.StringVar(&c.DBPath, "d", c.DBPath, "path to local replica database")
	fs.StringVar(&c.DoorID, "door", c.DoorID, "door id served by this client")
	fs.StringVar(&c.DeviceName, "name", c.DeviceName, "device name")
	fs.StringVar(&c.EnrollKey, "e", c.EnrollKey, "door enrollment key")
	fs.StringVar(&c.LogLevel, "l", c.LogLevel, "log level (debug, info, warn, error)")

	_ = fs.Parse(args)
}

func defaultDeviceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "doorsync-client"
	}
	return host
}
