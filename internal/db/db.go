package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// sqliteParams are applied to every pooled connection. Transactions begin
// IMMEDIATE so the first statement of a reconciliation already holds the
// write lock.
var sqliteParams = []string{
	"_pragma=journal_mode(WAL)",
	"_pragma=busy_timeout(5000)",
	"_pragma=foreign_keys(1)",
	"_pragma=synchronous(NORMAL)",
	"_txlock=immediate",
}

// Open opens a database connection for driver and verifies it.
// For sqlite, dsn is a file path (or ":memory:"); for mysql it is a
// go-sql-driver DSN such as "user:pass@tcp(host:3306)/portal".
func Open(driver, dsn string) (*sql.DB, error) {
	var db *sql.DB
	var err error

	switch driver {
	case DriverSQLite, "":
		db, err = sql.Open(DriverSQLite, sqliteDSN(dsn))
	case DriverMySQL:
		db, err = sql.Open(DriverMySQL, mysqlDSN(dsn))
		if err == nil {
			db.SetMaxOpenConns(25)
			db.SetMaxIdleConns(25)
			db.SetConnMaxLifetime(30 * time.Minute)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?" + strings.Join(sqliteParams, "&")
}

// mysqlDSN makes sure DATETIME columns scan into time.Time in UTC and that
// RowsAffected counts matched rows, as SQLite does.
func mysqlDSN(dsn string) string {
	var missing []string
	for _, p := range []string{"parseTime=true", "loc=UTC", "charset=utf8mb4", "clientFoundRows=true"} {
		key := p[:strings.IndexByte(p, '=')+1]
		if !strings.Contains(dsn, key) {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(missing, "&")
}
