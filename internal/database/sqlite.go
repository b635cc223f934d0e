package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/viper"
)

// DBConfig holds storage configuration
type DBConfig struct {
	Path            string
	BusyTimeout     time.Duration
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// GetConfig returns storage configuration with defaults
func GetConfig() *DBConfig {
	viper.SetDefault("storage.path", "data/backoffice.db")
	viper.SetDefault("storage.busy_timeout", 5*time.Second)
	viper.SetDefault("storage.max_open_conns", 1)
	viper.SetDefault("storage.conn_max_lifetime", time.Minute*5)

	return &DBConfig{
		Path:            viper.GetString("storage.path"),
		BusyTimeout:     viper.GetDuration("storage.busy_timeout"),
		MaxOpenConns:    viper.GetInt("storage.max_open_conns"),
		ConnMaxLifetime: viper.GetDuration("storage.conn_max_lifetime"),
	}
}

// InitDB opens the embedded ledger database
func InitDB() (*sql.DB, error) {
	config := GetConfig()

	connStr := fmt.Sprintf(
		"file:%s?_busy_timeout=%d&_journal_mode=WAL&_foreign_keys=on",
		config.Path, config.BusyTimeout.Milliseconds(),
	)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test connection
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	// sqlite admits one writer at a time; a single pooled connection keeps
	// writers queued in-process instead of hitting SQLITE_BUSY.
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	log.Println("Ledger database opened")
	return db, nil
}

// InitDatabase initializes the database with error handling
func InitDatabase() *sql.DB {
	db, err := InitDB()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	return db
}
