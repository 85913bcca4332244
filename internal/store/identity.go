package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/moodtracker/internal/model"
)

// IdentityStore maps canonical phone numbers to opaque user identities.
type IdentityStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewIdentityStore(db *sql.DB) *IdentityStore {
	return &IdentityStore{db: db, now: utcNow}
}

func scanIdentity(s scanner) (*model.Identity, error) {
	var id model.Identity
	if err := s.Scan(&id.ID, &id.PhoneNumber, &id.CreatedAt); err != nil {
		return nil, err
	}
	return &id, nil
}

const identityCols = `id, phone_number, created_at`

// Create registers a new identity for phone. It fails if the phone already
// has one.
func (s *IdentityStore) Create(ctx context.Context, phone string) (*model.Identity, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO identities (id, phone_number, created_at) VALUES (?, ?, ?)`,
		id, phone, s.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert identity: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *IdentityStore) GetByID(ctx context.Context, id string) (*model.Identity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+identityCols+` FROM identities WHERE id = ?`, id)
	ident, err := scanIdentity(row)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return ident, nil
}

// GetByPhone returns the identity for phone, or nil if the line has never
// been verified.
func (s *IdentityStore) GetByPhone(ctx context.Context, phone string) (*model.Identity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+identityCols+` FROM identities WHERE phone_number = ?`, phone)
	ident, err := scanIdentity(row)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get identity by phone: %w", err)
	}
	return ident, nil
}

// FindOrCreate returns the existing identity for phone or registers a new
// one. created reports whether a new identity was made.
func (s *IdentityStore) FindOrCreate(ctx context.Context, phone string) (ident *model.Identity, created bool, err error) {
	ident, err = s.GetByPhone(ctx, phone)
	if err != nil {
		return nil, false, err
	}
	if ident != nil {
		return ident, false, nil
	}

	ident, err = s.Create(ctx, phone)
	if isUniqueViolation(err) {
		// Lost a race with a concurrent verification for the same phone.
		ident, err = s.GetByPhone(ctx, phone)
		return ident, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return ident, true, nil
}
