package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/moodtracker/internal/model"
)

// SubscriberStore is the subscriber directory: one row per identity holding
// the phone number and opt-in state.
type SubscriberStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSubscriberStore(db *sql.DB) *SubscriberStore {
	return &SubscriberStore{db: db, now: utcNow}
}

func scanSubscriber(s scanner) (*model.Subscriber, error) {
	var sub model.Subscriber
	err := s.Scan(&sub.UserID, &sub.PhoneNumber, &sub.IsSubscribed, &sub.ConsentUpdatedAt, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

const subscriberCols = `user_id, phone_number, is_subscribed, consent_updated_at, created_at`

// Upsert creates the subscriber row for userID or updates it in place.
// created_at is only written on insert. Consent is refreshed whenever
// fields.IsSubscribed is set.
func (s *SubscriberStore) Upsert(ctx context.Context, userID, phone string, fields model.SubscriberFields) (*model.Subscriber, error) {
	now := s.now()
	setSubscribed := fields.IsSubscribed != nil
	subscribed := setSubscribed && *fields.IsSubscribed

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscribers (user_id, phone_number, is_subscribed, consent_updated_at, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			phone_number = excluded.phone_number,
			is_subscribed = CASE WHEN ? THEN excluded.is_subscribed ELSE subscribers.is_subscribed END,
			consent_updated_at = CASE WHEN ? THEN excluded.consent_updated_at ELSE subscribers.consent_updated_at END`,
		userID, phone, subscribed, now, now,
		setSubscribed, setSubscribed,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert subscriber: %w", err)
	}
	return s.Get(ctx, userID)
}

func (s *SubscriberStore) Get(ctx context.Context, userID string) (*model.Subscriber, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subscriberCols+` FROM subscribers WHERE user_id = ?`, userID)
	sub, err := scanSubscriber(row)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscriber: %w", err)
	}
	return sub, nil
}

func (s *SubscriberStore) FindByPhone(ctx context.Context, phone string) (*model.Subscriber, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subscriberCols+` FROM subscribers WHERE phone_number = ?`, phone)
	sub, err := scanSubscriber(row)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find subscriber by phone: %w", err)
	}
	return sub, nil
}

// SetSubscribed flips the opt-in flag and stamps consent_updated_at. It
// returns sql.ErrNoRows when userID has no subscriber row.
func (s *SubscriberStore) SetSubscribed(ctx context.Context, userID string, subscribed bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE subscribers SET is_subscribed = ?, consent_updated_at = ? WHERE user_id = ?`,
		subscribed, s.now(), userID,
	)
	if err != nil {
		return fmt.Errorf("set subscribed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set subscribed %s: %w", userID, sql.ErrNoRows)
	}
	return nil
}

// ListSubscribed returns every subscriber currently opted in.
func (s *SubscriberStore) ListSubscribed(ctx context.Context) ([]model.Subscriber, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriberCols+` FROM subscribers WHERE is_subscribed = 1 ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list subscribed: %w", err)
	}
	defer rows.Close()

	var subs []model.Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}
