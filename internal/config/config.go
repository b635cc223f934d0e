package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Init wires environment variables and the optional .env file into viper.
// Every component reads its settings through viper keys, so binding them
// here keeps the mapping in one place.
func Init() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	viper.BindEnv("storage.path", "STORAGE_PATH")
	viper.BindEnv("storage.busy_timeout", "STORAGE_BUSY_TIMEOUT")
	viper.BindEnv("storage.max_open_conns", "STORAGE_MAX_OPEN_CONNS")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("ledger.default_currency", "LEDGER_DEFAULT_CURRENCY")
	viper.BindEnv("ledger.default_interest_rate", "LEDGER_DEFAULT_INTEREST_RATE")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.write_timeout", 15*time.Second)
	viper.SetDefault("ledger.default_currency", "USD")
	viper.SetDefault("ledger.default_interest_rate", 0.02)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func LoadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:         viper.GetString("server.port"),
		ReadTimeout:  viper.GetDuration("server.read_timeout"),
		WriteTimeout: viper.GetDuration("server.write_timeout"),
	}
}

type LedgerConfig struct {
	DefaultCurrency     string
	DefaultInterestRate float64
}

func LoadLedgerConfig() *LedgerConfig {
	return &LedgerConfig{
		DefaultCurrency:     viper.GetString("ledger.default_currency"),
		DefaultInterestRate: viper.GetFloat64("ledger.default_interest_rate"),
	}
}
