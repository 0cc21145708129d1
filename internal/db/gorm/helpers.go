package gorm

import "database/sql"

// sqlNullString creates a sql.NullString from a string.
func sqlNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
