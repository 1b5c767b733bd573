package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// InitDatabase opens the SQLite database and builds the schema.
func InitDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := CreateTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// CreateTables creates all tables used by the shop.
func CreateTables(db *sql.DB) error {
	tables := []struct {
		name string
		fn   func(*sql.DB) error
	}{
		{"users", createUsersTable},
		{"products", createProductsTable},
		{"orders", createOrdersTable},
		{"order_items", createOrderItemsTable},
		{"payment_requests", createPaymentRequestsTable},
		{"payment_settings", createPaymentSettingsTable},
		{"shipping_updates", createShippingUpdatesTable},
	}

	for _, t := range tables {
		if err := t.fn(db); err != nil {
			return fmt.Errorf("create %s table: %w", t.name, err)
		}
	}
	return nil
}

func createUsersTable(db *sql.DB) error {
	const stmt = `
	CREATE TABLE IF NOT EXISTS users (
		id          TEXT PRIMARY KEY,
		telegram_id INTEGER NOT NULL UNIQUE,
		username    TEXT,
		first_name  TEXT,
		last_name   TEXT,
		phone       TEXT,
		balance     REAL NOT NULL DEFAULT 0,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_users_telegram ON users(telegram_id);
	CREATE TRIGGER IF NOT EXISTS trg_users_updated_at
	AFTER UPDATE ON users
	FOR EACH ROW BEGIN
	  UPDATE users SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
	END;
	`
	_, err := db.Exec(stmt)
	return err
}

func createProductsTable(db *sql.DB) error {
	const stmt = `
	CREATE TABLE IF NOT EXISTS products (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT,
		price       REAL NOT NULL,
		stock       INTEGER NOT NULL DEFAULT 0,
		active      INTEGER NOT NULL DEFAULT 1,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_products_active ON products(active, price);
	CREATE TRIGGER IF NOT EXISTS trg_products_updated_at
	AFTER UPDATE ON products
	FOR EACH ROW BEGIN
	  UPDATE products SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
	END;
	`
	_, err := db.Exec(stmt)
	return err
}

func createOrdersTable(db *sql.DB) error {
	const stmt = `
	CREATE TABLE IF NOT EXISTS orders (
		id               TEXT PRIMARY KEY,
		user_id          TEXT NOT NULL,
		status           TEXT NOT NULL DEFAULT 'pending',  -- pending | paid | processing | shipped | delivered | completed | cancelled | refunded
		total_amount     REAL NOT NULL DEFAULT 0,
		shipping_address TEXT,
		tracking_number  TEXT,
		created_at       DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at       DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id, created_at);
	CREATE TRIGGER IF NOT EXISTS trg_orders_updated_at
	AFTER UPDATE ON orders
	FOR EACH ROW BEGIN
	  UPDATE orders SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
	END;
	`
	_, err := db.Exec(stmt)
	return err
}

func createOrderItemsTable(db *sql.DB) error {
	const stmt = `
	CREATE TABLE IF NOT EXISTS order_items (
		id         TEXT PRIMARY KEY,
		order_id   TEXT NOT NULL,
		product_id TEXT NOT NULL,
		quantity   INTEGER NOT NULL DEFAULT 1,
		price      REAL NOT NULL,  -- unit price at purchase time
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);
	`
	_, err := db.Exec(stmt)
	return err
}

func createPaymentRequestsTable(db *sql.DB) error {
	const stmt = `
	CREATE TABLE IF NOT EXISTS payment_requests (
		id              TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL,
		amount          REAL NOT NULL DEFAULT 0,
		payment_method  TEXT NOT NULL,
		payment_details TEXT NOT NULL,
		status          TEXT NOT NULL DEFAULT 'pending',  -- pending | approved | rejected
		admin_notes     TEXT,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_payment_requests_status ON payment_requests(status, created_at);
	CREATE TRIGGER IF NOT EXISTS trg_payment_requests_updated_at
	AFTER UPDATE ON payment_requests
	FOR EACH ROW BEGIN
	  UPDATE payment_requests SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
	END;
	`
	_, err := db.Exec(stmt)
	return err
}

func createPaymentSettingsTable(db *sql.DB) error {
	const stmt = `
	CREATE TABLE IF NOT EXISTS payment_settings (
		id           TEXT PRIMARY KEY,
		type         TEXT NOT NULL,             -- trx | iban
		account      TEXT NOT NULL,
		account_name TEXT,
		active       INTEGER NOT NULL DEFAULT 1,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TRIGGER IF NOT EXISTS trg_payment_settings_updated_at
	AFTER UPDATE ON payment_settings
	FOR EACH ROW BEGIN
	  UPDATE payment_settings SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
	END;
	`
	_, err := db.Exec(stmt)
	return err
}

func createShippingUpdatesTable(db *sql.DB) error {
	const stmt = `
	CREATE TABLE IF NOT EXISTS shipping_updates (
		id          TEXT PRIMARY KEY,
		order_id    TEXT NOT NULL,
		status      TEXT NOT NULL,
		description TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_shipping_updates_order ON shipping_updates(order_id, created_at);
	`
	_, err := db.Exec(stmt)
	return err
}
