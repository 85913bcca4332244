package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dukerupert/moodtracker/internal/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustIdentity(t *testing.T, db *sql.DB, phone string) string {
	t.Helper()
	ident, err := NewIdentityStore(db).Create(context.Background(), phone)
	if err != nil {
		t.Fatalf("create identity: %v", err)
	}
	return ident.ID
}
