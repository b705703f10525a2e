package store

import (
	"fmt"
	"strings"
)

// NewStore opens the workflow store selected by the DSN.
//   - Empty: sqlite at data/promptgrid.db
//   - postgres:// or postgresql://: PostgreSQL
//   - Anything else: sqlite at the given path
func NewStore(dsn string) (Store, error) {
	if dsn == "" {
		return NewSQLiteStore("")
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		s, err := NewPostgresStore(dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return s, nil
	}

	return NewSQLiteStore(dsn)
}
