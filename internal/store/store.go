package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

type scanner interface{ Scan(...any) error }

// isUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY
// constraint.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func utcNow() time.Time {
	return time.Now().UTC()
}
