package db

import "strings"

// IsUniqueViolation reports whether the error came from a unique index
// violation. With a constraintName it matches that specific index in
// the driver message; without one it matches the generic duplicate-key
// text emitted by Postgres and sqlite.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
