package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// GetJWTSecret retrieves the token signing secret from the database.
// If no secret exists, it generates one, stores it, and returns it.
// A concurrent first start may lose the insert race; the winner's value
// is read back either way.
func GetJWTSecret(ctx context.Context, db *sql.DB) (string, error) {
	secret, err := getSetting(ctx, db, "jwt_secret")
	if err != nil || secret != "" {
		return secret, err
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}

	// Ignore the insert error: a duplicate key means another process won.
	_, insertErr := db.ExecContext(ctx,
		`INSERT INTO settings (name, value) VALUES ('jwt_secret', ?)`,
		hex.EncodeToString(buf),
	)

	secret, err = getSetting(ctx, db, "jwt_secret")
	if err != nil {
		return "", err
	}
	if secret == "" {
		return "", fmt.Errorf("storing jwt_secret: %w", insertErr)
	}
	return secret, nil
}

func getSetting(ctx context.Context, db *sql.DB, name string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE name = ?`, name,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying %s: %w", name, err)
	}
	return value, nil
}
