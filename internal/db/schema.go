package db

import (
	"database/sql"
	"fmt"

	"github.com/culturearts/portal/internal/access"
)

// sqliteSchema is the full SQLite schema, one statement per entry.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    email         TEXT NOT NULL,
    name          TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL CHECK (role IN ('admin', 'head', 'staff', 'central')),
    campus        TEXT NOT NULL DEFAULT '',
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_active
    ON users(email) WHERE deleted_at IS NULL`,

	`CREATE TABLE IF NOT EXISTS settings (
    name  TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`,

	`CREATE TABLE IF NOT EXISTS campus_aliases (
    alias     TEXT PRIMARY KEY,
    canonical TEXT NOT NULL
)`,

	`CREATE TABLE IF NOT EXISTS view_only_accounts (
    email TEXT PRIMARY KEY
)`,

	`CREATE TABLE IF NOT EXISTS students (
    id                   INTEGER PRIMARY KEY,
    sr_code              TEXT NOT NULL UNIQUE,
    name                 TEXT NOT NULL,
    email                TEXT NOT NULL DEFAULT '',
    campus               TEXT NOT NULL,
    program              TEXT NOT NULL DEFAULT '',
    performance_type     TEXT NOT NULL DEFAULT '',
    status               TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive', 'archived')),
    archived_from_status TEXT,
    created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE INDEX IF NOT EXISTS idx_students_campus ON students(campus)`,

	`CREATE TABLE IF NOT EXISTS applications (
    id               INTEGER PRIMARY KEY,
    sr_code          TEXT NOT NULL,
    name             TEXT NOT NULL,
    email            TEXT NOT NULL DEFAULT '',
    campus           TEXT NOT NULL,
    program          TEXT NOT NULL DEFAULT '',
    performance_type TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
    student_id       INTEGER REFERENCES students(id),
    decided_by       INTEGER REFERENCES users(id),
    decided_at       DATETIME,
    created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,

	`CREATE TABLE IF NOT EXISTS events (
    id                   INTEGER PRIMARY KEY,
    title                TEXT NOT NULL,
    description          TEXT NOT NULL DEFAULT '',
    location             TEXT NOT NULL DEFAULT '',
    campus               TEXT NOT NULL,
    start_date           DATETIME NOT NULL,
    end_date             DATETIME NOT NULL,
    status               TEXT NOT NULL DEFAULT 'published' CHECK (status IN ('published', 'ongoing', 'completed', 'cancelled', 'archived')),
    archived_from_status TEXT,
    created_by           INTEGER REFERENCES users(id),
    created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE INDEX IF NOT EXISTS idx_events_campus ON events(campus)`,

	`CREATE TABLE IF NOT EXISTS inventory_items (
    id                   INTEGER PRIMARY KEY,
    name                 TEXT NOT NULL,
    category             TEXT NOT NULL CHECK (category IN ('costume', 'equipment')),
    description          TEXT NOT NULL DEFAULT '',
    campus               TEXT NOT NULL,
    quantity             INTEGER NOT NULL CHECK (quantity >= 0),
    available_quantity   INTEGER NOT NULL DEFAULT 0,
    status               TEXT NOT NULL DEFAULT 'available' CHECK (status IN ('available', 'borrowed', 'maintenance', 'archived', 'unavailable')),
    archived_from_status TEXT,
    condition_status     TEXT NOT NULL DEFAULT 'good' CHECK (condition_status IN ('good', 'fair', 'damaged')),
    created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE INDEX IF NOT EXISTS idx_inventory_items_campus ON inventory_items(campus)`,

	`CREATE TABLE IF NOT EXISTS borrowing_requests (
    id             INTEGER PRIMARY KEY,
    student_id     INTEGER NOT NULL REFERENCES students(id),
    student_campus TEXT NOT NULL,
    requested_items TEXT NOT NULL,
    approved_items TEXT,
    status         TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
    current_status TEXT NOT NULL DEFAULT '',
    purpose        TEXT NOT NULL DEFAULT '',
    due_date       DATETIME,
    reject_reason  TEXT NOT NULL DEFAULT '',
    decided_by     INTEGER REFERENCES users(id),
    decided_at     DATETIME,
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE INDEX IF NOT EXISTS idx_borrowing_requests_active
    ON borrowing_requests(status, current_status)`,

	`CREATE TABLE IF NOT EXISTS return_requests (
    id                   INTEGER PRIMARY KEY,
    borrowing_request_id INTEGER NOT NULL REFERENCES borrowing_requests(id),
    item_id              INTEGER NOT NULL REFERENCES inventory_items(id),
    quantity             INTEGER NOT NULL CHECK (quantity > 0),
    condition_status     TEXT NOT NULL CHECK (condition_status IN ('good', 'fair', 'damaged')),
    status               TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'confirmed')),
    notes                TEXT NOT NULL DEFAULT '',
    created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    confirmed_at         DATETIME,
    confirmed_by         INTEGER REFERENCES users(id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_return_requests_request
    ON return_requests(borrowing_request_id)`,

	`CREATE TABLE IF NOT EXISTS repair_queue (
    id                   INTEGER PRIMARY KEY,
    item_id              INTEGER NOT NULL REFERENCES inventory_items(id),
    borrowing_request_id INTEGER NOT NULL REFERENCES borrowing_requests(id),
    return_request_id    INTEGER NOT NULL REFERENCES return_requests(id),
    quantity             INTEGER NOT NULL CHECK (quantity > 0),
    notes                TEXT NOT NULL DEFAULT '',
    created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE INDEX IF NOT EXISTS idx_repair_queue_item ON repair_queue(item_id)`,
}

// mysqlSchema mirrors sqliteSchema for MySQL 8.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
    id            BIGINT AUTO_INCREMENT PRIMARY KEY,
    email         VARCHAR(255) NOT NULL,
    name          VARCHAR(255) NOT NULL DEFAULT '',
    password_hash VARCHAR(255) NOT NULL,
    role          VARCHAR(16) NOT NULL,
    campus        VARCHAR(128) NOT NULL DEFAULT '',
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME NULL,
    INDEX idx_users_email (email)
) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS settings (
    name  VARCHAR(64) PRIMARY KEY,
    value TEXT NOT NULL
) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS campus_aliases (
    alias     VARCHAR(128) PRIMARY KEY,
    canonical VARCHAR(128) NOT NULL
) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS view_only_accounts (
    email VARCHAR(255) PRIMARY KEY
) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS students (
    id                   BIGINT AUTO_INCREMENT PRIMARY KEY,
    sr_code              VARCHAR(32) NOT NULL UNIQUE,
    name                 VARCHAR(255) NOT NULL,
    email                VARCHAR(255) NOT NULL DEFAULT '',
    campus               VARCHAR(128) NOT NULL,
    program              VARCHAR(255) NOT NULL DEFAULT '',
    performance_type     VARCHAR(128) NOT NULL DEFAULT '',
    status               VARCHAR(16) NOT NULL DEFAULT 'active',
    archived_from_status VARCHAR(16) NULL,
    created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_students_campus (campus)
) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS applications (
    id               BIGINT AUTO_INCREMENT PRIMARY KEY,
    sr_code          VARCHAR(32) NOT NULL,
    name             VARCHAR(255) NOT NULL,
    email            VARCHAR(255) NOT NULL DEFAULT '',
    campus           VARCHAR(128) NOT NULL,
    program          VARCHAR(255) NOT NULL DEFAULT '',
    performance_type VARCHAR(128) NOT NULL DEFAULT '',
    status           VARCHAR(16) NOT NULL DEFAULT 'pending',
    student_id       BIGINT NULL,
    decided_by       BIGINT NULL,
    decided_at       DATETIME NULL,
    created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (student_id) REFERENCES students(id)
) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS events (
    id                   BIGINT AUTO_INCREMENT PRIMARY KEY,
    title                VARCHAR(255) NOT NULL,
    description          TEXT NOT NULL,
    location             VARCHAR(255) NOT NULL DEFAULT '',
    campus               VARCHAR(128) NOT NULL,
    start_date           DATETIME NOT NULL,
    end_date             DATETIME NOT NULL,
    status               VARCHAR(16) NOT NULL DEFAULT 'published',
    archived_from_status VARCHAR(16) NULL,
    created_by           BIGINT NULL,
    created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_events_campus (campus)
) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS inventory_items (
    id                   BIGINT AUTO_INCREMENT PRIMARY KEY,
    name                 VARCHAR(255) NOT NULL,
    category             VARCHAR(16) NOT NULL,
    description          TEXT NOT NULL,
    campus               VARCHAR(128) NOT NULL,
    quantity             INT NOT NULL,
    available_quantity   INT NOT NULL DEFAULT 0,
    status               VARCHAR(16) NOT NULL DEFAULT 'available',
    archived_from_status VARCHAR(16) NULL,
    condition_status     VARCHAR(16) NOT NULL DEFAULT 'good',
    created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_inventory_items_campus (campus),
    CHECK (quantity >= 0)
) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS borrowing_requests (
    id              BIGINT AUTO_INCREMENT PRIMARY KEY,
    student_id      BIGINT NOT NULL,
    student_campus  VARCHAR(128) NOT NULL,
    requested_items TEXT NOT NULL,
    approved_items  TEXT NULL,
    status          VARCHAR(16) NOT NULL DEFAULT 'pending',
    current_status  VARCHAR(16) NOT NULL DEFAULT '',
    purpose         TEXT NOT NULL,
    due_date        DATETIME NULL,
    reject_reason   TEXT NOT NULL,
    decided_by      BIGINT NULL,
    decided_at      DATETIME NULL,
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_borrowing_requests_active (status, current_status),
    FOREIGN KEY (student_id) REFERENCES students(id)
) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS return_requests (
    id                   BIGINT AUTO_INCREMENT PRIMARY KEY,
    borrowing_request_id BIGINT NOT NULL,
    item_id              BIGINT NOT NULL,
    quantity             INT NOT NULL,
    condition_status     VARCHAR(16) NOT NULL,
    status               VARCHAR(16) NOT NULL DEFAULT 'pending',
    notes                TEXT NOT NULL,
    created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    confirmed_at         DATETIME NULL,
    confirmed_by         BIGINT NULL,
    INDEX idx_return_requests_request (borrowing_request_id),
    FOREIGN KEY (borrowing_request_id) REFERENCES borrowing_requests(id),
    FOREIGN KEY (item_id) REFERENCES inventory_items(id)
) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS repair_queue (
    id                   BIGINT AUTO_INCREMENT PRIMARY KEY,
    item_id              BIGINT NOT NULL,
    borrowing_request_id BIGINT NOT NULL,
    return_request_id    BIGINT NOT NULL,
    quantity             INT NOT NULL,
    notes                TEXT NOT NULL,
    created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_repair_queue_item (item_id),
    FOREIGN KEY (item_id) REFERENCES inventory_items(id)
) ENGINE=InnoDB`,
}

// EnsureSchema creates all tables and indexes if they don't already exist
// and seeds the campus configuration tables.
func EnsureSchema(db *sql.DB, driver string) error {
	stmts := sqliteSchema
	insertIgnore := "INSERT OR IGNORE"
	if driver == DriverMySQL {
		stmts = mysqlSchema
		insertIgnore = "INSERT IGNORE"
	}

	for i, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema (statement %d): %w", i+1, err)
		}
	}

	// Seed rows are only inserted when absent so operator edits survive restarts.
	for alias, canonical := range access.DefaultAliases {
		if _, err := db.Exec(insertIgnore+` INTO campus_aliases (alias, canonical) VALUES (?, ?)`, alias, canonical); err != nil {
			return fmt.Errorf("seeding campus alias %q: %w", alias, err)
		}
	}
	for _, email := range access.DefaultViewOnly {
		if _, err := db.Exec(insertIgnore+` INTO view_only_accounts (email) VALUES (?)`, email); err != nil {
			return fmt.Errorf("seeding view-only account: %w", err)
		}
	}

	return nil
}
