package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/culturearts/portal/internal/access"
)

// LoadPolicy builds the access policy from the campus_aliases and
// view_only_accounts tables.
func LoadPolicy(ctx context.Context, db *sql.DB, hqCampus string) (*access.Policy, error) {
	aliases := make(map[string]string)
	rows, err := db.QueryContext(ctx, `SELECT alias, canonical FROM campus_aliases`)
	if err != nil {
		return nil, fmt.Errorf("loading campus aliases: %w", err)
	}
	for rows.Next() {
		var alias, canonical string
		if err := rows.Scan(&alias, &canonical); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning campus alias: %w", err)
		}
		aliases[alias] = canonical
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading campus aliases: %w", err)
	}

	var viewOnly []string
	rows, err = db.QueryContext(ctx, `SELECT email FROM view_only_accounts`)
	if err != nil {
		return nil, fmt.Errorf("loading view-only accounts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scanning view-only account: %w", err)
		}
		viewOnly = append(viewOnly, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading view-only accounts: %w", err)
	}

	return access.NewPolicy(hqCampus, aliases, viewOnly), nil
}
