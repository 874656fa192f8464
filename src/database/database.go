package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/micartera/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		auth_provider TEXT DEFAULT 'local',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		user_agent TEXT,
		client_ip TEXT,
		is_blocked BOOLEAN DEFAULT FALSE,
		expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		tx_type TEXT NOT NULL,
		company_name TEXT NOT NULL,
		symbol TEXT DEFAULT '',
		shares REAL NOT NULL,
		price REAL NOT NULL,
		currency TEXT NOT NULL,
		exchange_rate REAL NOT NULL,
		commission REAL DEFAULT 0,
		date TEXT NOT NULL,
		total_cost REAL NOT NULL,
		target_price REAL DEFAULT 0,
		stop_loss_price REAL DEFAULT 0,
		external_symbol_1 TEXT DEFAULT '',
		external_symbol_2 TEXT DEFAULT '',
		external_symbol_3 TEXT DEFAULT '',
		import_batch_id TEXT DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions(user_id, date, id);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}

	migrateTransactionsTable()

	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

// migrateTransactionsTable adds columns introduced after the first release
// to databases created before them. sqlite has no ADD COLUMN IF NOT EXISTS,
// so the schema is inspected first.
func migrateTransactionsTable() {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='transactions'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			return
		}
		logger.L.Error("Error checking for 'transactions' table", "error", err)
		return
	}

	rows, err := DB.Query("PRAGMA table_info(transactions)")
	if err != nil {
		logger.L.Error("Error querying table schema for 'transactions'", "error", err)
		return
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			logger.L.Error("Error scanning column info for 'transactions'", "error", err)
			return
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		logger.L.Error("Error iterating over column info for 'transactions'", "error", err)
		return
	}

	addColumn := func(name, ddl string) {
		if columnExists[name] {
			return
		}
		if _, err := DB.Exec("ALTER TABLE transactions ADD COLUMN " + ddl); err != nil {
			logger.L.Error("Error adding column to 'transactions' table", "column", name, "error", err)
		} else {
			logger.L.Info("Added column to 'transactions' table", "column", name)
		}
	}

	addColumn("target_price", "target_price REAL DEFAULT 0")
	addColumn("stop_loss_price", "stop_loss_price REAL DEFAULT 0")
	addColumn("external_symbol_1", "external_symbol_1 TEXT DEFAULT ''")
	addColumn("external_symbol_2", "external_symbol_2 TEXT DEFAULT ''")
	addColumn("external_symbol_3", "external_symbol_3 TEXT DEFAULT ''")
	addColumn("import_batch_id", "import_batch_id TEXT DEFAULT ''")
}
