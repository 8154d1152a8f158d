package config

import (
	"os"
	"sync"

	"github.com/joho/godotenv"
)

type Config struct {
	// DbDsn is the ClickHouse DSN (mysql wire protocol) used by the
	// SQL row source and the feature-table sink.
	DbDsn string
}

var (
	config *Config
	once   sync.Once
)

// GetConfig loads .env once and returns the process configuration.
// A missing .env file is fine; the environment still applies.
func GetConfig() *Config {
	once.Do(func() {
		_ = godotenv.Load()
		config = &Config{
			DbDsn: os.Getenv("DB_DSN"),
		}
	})
	return config
}
