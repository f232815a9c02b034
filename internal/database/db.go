package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/aezzeldin/storefront-api/internal/config"
	"github.com/aezzeldin/storefront-api/pkg/logger"
)

// Database represents a database connection
type Database struct {
	DB     *sqlx.DB
	logger logger.Logger
}

// New creates a new database connection
func New(cfg *config.Config, logger logger.Logger) (*Database, error) {
	db, err := sqlx.Connect("postgres", cfg.GetDBConnString())

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	logger.Info("Connected to database", "host", cfg.DB.Host, "database", cfg.DB.Name)

	return &Database{
		DB:     db,
		logger: logger,
	}, nil
}

// Ping checks the database connection
func (d *Database) Ping(ctx context.Context) error {
	return d.DB.PingContext(ctx)
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.DB.Close()
}

// RunMigrations creates the schema on startup. A dedicated migration tool
// would own this in a larger deployment.
func (d *Database) RunMigrations() error {
	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id VARCHAR(50) PRIMARY KEY,
		customer_name VARCHAR(200) NOT NULL,
		customer_email VARCHAR(200) NOT NULL,
		customer_phone VARCHAR(50) NOT NULL,
		customer_address TEXT NOT NULL DEFAULT '',
		subtotal DECIMAL(12, 2) NOT NULL DEFAULT 0,
		shipping_cost DECIMAL(12, 2) NOT NULL DEFAULT 0,
		discount_amount DECIMAL(12, 2) NOT NULL DEFAULT 0,
		total_amount DECIMAL(12, 2) NOT NULL DEFAULT 0,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		payment_method VARCHAR(30) NOT NULL DEFAULT 'cashOnDelivery',
		transaction_screenshot TEXT,
		payment_verified BOOLEAN,
		coupon_code VARCHAR(100),
		ambassador_id VARCHAR(50),
		amb_referral_code VARCHAR(100),
		amb_coupon_code VARCHAR(100),
		amb_commission_rate DECIMAL(6, 2),
		amb_commission DECIMAL(12, 2),
		amb_payment_status VARCHAR(20),
		inventory_processed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
	CREATE INDEX IF NOT EXISTS idx_orders_inventory ON orders(inventory_processed, created_at);

	CREATE TABLE IF NOT EXISTS order_items (
		id SERIAL PRIMARY KEY,
		order_id VARCHAR(50) NOT NULL REFERENCES orders(id),
		product_id VARCHAR(50) NOT NULL,
		name VARCHAR(200) NOT NULL,
		price DECIMAL(12, 2) NOT NULL,
		quantity INT NOT NULL,
		size VARCHAR(50) NOT NULL,
		color VARCHAR(50),
		inventory_updated BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);

	CREATE TABLE IF NOT EXISTS products (
		id VARCHAR(50) PRIMARY KEY,
		name VARCHAR(200) NOT NULL,
		price DECIMAL(12, 2) NOT NULL DEFAULT 0,
		inventory_total INT NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS product_variants (
		id SERIAL PRIMARY KEY,
		product_id VARCHAR(50) NOT NULL REFERENCES products(id),
		size VARCHAR(50) NOT NULL,
		color VARCHAR(50) NOT NULL DEFAULT 'Default',
		quantity INT NOT NULL DEFAULT 0,
		UNIQUE (product_id, size, color)
	);

	CREATE TABLE IF NOT EXISTS promo_codes (
		id VARCHAR(50) PRIMARY KEY,
		code VARCHAR(100) NOT NULL UNIQUE,
		discount_type VARCHAR(20) NOT NULL,
		value DECIMAL(12, 2) NOT NULL,
		min_purchase DECIMAL(12, 2) NOT NULL DEFAULT 0,
		max_uses INT,
		used_count INT NOT NULL DEFAULT 0,
		start_date TIMESTAMP,
		end_date TIMESTAMP,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		referral_code VARCHAR(100),
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS ambassadors (
		id VARCHAR(50) PRIMARY KEY,
		email VARCHAR(200) NOT NULL UNIQUE,
		name VARCHAR(200) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		referral_code VARCHAR(100) UNIQUE,
		coupon_code VARCHAR(100) UNIQUE,
		commission_rate DECIMAL(6, 2) NOT NULL DEFAULT 50,
		discount_percent DECIMAL(6, 2),
		admin_profile JSONB,
		referrals INT NOT NULL DEFAULT 0,
		orders INT NOT NULL DEFAULT 0,
		conversions INT NOT NULL DEFAULT 0,
		sales DECIMAL(12, 2) NOT NULL DEFAULT 0,
		earnings DECIMAL(12, 2) NOT NULL DEFAULT 0,
		payments_pending DECIMAL(12, 2) NOT NULL DEFAULT 0,
		payments_paid DECIMAL(12, 2) NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	-- Outbox table for redemption and order-event publishing
	CREATE TABLE IF NOT EXISTS outbox_messages (
		id SERIAL PRIMARY KEY,
		aggregate_type VARCHAR(50) NOT NULL,
		aggregate_id VARCHAR(50) NOT NULL,
		event_type VARCHAR(50) NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		processed_at TIMESTAMP,
		processing_attempts INT NOT NULL DEFAULT 0,
		last_error TEXT,
		status VARCHAR(20) NOT NULL DEFAULT 'pending'
	);

	CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox_messages(status);
	CREATE INDEX IF NOT EXISTS idx_outbox_aggregate ON outbox_messages(aggregate_type, aggregate_id);

	CREATE TABLE IF NOT EXISTS dead_letter_messages (
		id SERIAL PRIMARY KEY,
		original_message_id BIGINT NOT NULL,
		aggregate_type VARCHAR(50) NOT NULL,
		aggregate_id VARCHAR(50) NOT NULL,
		event_type VARCHAR(50) NOT NULL,
		payload JSONB NOT NULL,
		error_message TEXT,
		failure_reason TEXT,
		retry_count INT NOT NULL DEFAULT 0,
		last_retry_at TIMESTAMP,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		resolved_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_dead_letter_status ON dead_letter_messages(status);
	`

	_, err := d.DB.Exec(schema)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.logger.Info("Database migrations completed successfully")
	return nil
}
