package config

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DBConfig holds database connection parameters
type DBConfig struct {
	DSN string
}

// LoadDBConfig loads database configuration from environment variables.
// An error here means the store is not configured at all; the server still
// runs and store-backed routes answer 503.
func LoadDBConfig() (*DBConfig, error) {
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")

	if dbHost == "" || dbPort == "" || dbUser == "" || dbName == "" {
		return nil, fmt.Errorf("database environment variables not set (DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME)")
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dbHost, dbPort, dbUser, dbPassword, dbName)

	return &DBConfig{DSN: dsn}, nil
}

// ConnectDB builds the connection pool. A failed initial ping is logged
// but not fatal: the pool reconnects lazily and the health monitor gates
// traffic until the store is reachable.
func ConnectDB(cfg *DBConfig) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(context.Background(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		log.Printf("store not reachable yet: %v", err)
	} else {
		log.Println("Successfully connected to PostgreSQL!")
	}
	return pool, nil
}

// AutoMigrate creates tables if they don't exist
func AutoMigrate(db *pgxpool.Pool) error {
	sql := `
	CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT, -- NULL for OAuth-only users
		role TEXT NOT NULL CHECK (role IN ('user', 'admin')) DEFAULT 'user',
		provider TEXT NOT NULL CHECK (provider IN ('local', 'google')) DEFAULT 'local',
		google_id TEXT,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		last_login_at TIMESTAMP WITH TIME ZONE
	);

	CREATE TABLE IF NOT EXISTS transfers (
		id UUID PRIMARY KEY,
		sender_id INT NOT NULL,
		recipient_id INT NOT NULL,
		amount BIGINT NOT NULL CHECK (amount > 0),
		note TEXT,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (sender_id) REFERENCES users(id),
		FOREIGN KEY (recipient_id) REFERENCES users(id),
		CHECK (sender_id <> recipient_id)
	);

	-- Indexes for history lookups
	CREATE INDEX IF NOT EXISTS idx_transfers_sender_id ON transfers(sender_id);
	CREATE INDEX IF NOT EXISTS idx_transfers_recipient_id ON transfers(recipient_id);
	CREATE INDEX IF NOT EXISTS idx_transfers_created_at ON transfers(created_at);
	`
	_, err := db.Exec(context.Background(), sql)
	if err != nil {
		return fmt.Errorf("unable to apply migrations: %w", err)
	}

	log.Println("AutoMigrate applied successfully")
	return nil
}
