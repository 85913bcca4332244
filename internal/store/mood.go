package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/moodtracker/internal/model"
)

// MoodStore is the mood log: at most one entry per user per calendar date.
type MoodStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewMoodStore(db *sql.DB) *MoodStore {
	return &MoodStore{db: db, now: utcNow}
}

func scanMoodEntry(s scanner) (*model.MoodEntry, error) {
	var e model.MoodEntry
	err := s.Scan(&e.UserID, &e.EntryDate, &e.Emoji, &e.TextResponse, &e.RecordedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

const moodCols = `user_id, entry_date, emoji, text_response, recorded_at`

// Upsert writes the entry for (userID, date), replacing any earlier entry
// for the same day.
func (s *MoodStore) Upsert(ctx context.Context, userID, date, emoji, text string) (*model.MoodEntry, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mood_entries (user_id, entry_date, emoji, text_response, recorded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, entry_date) DO UPDATE SET
			emoji = excluded.emoji,
			text_response = excluded.text_response,
			recorded_at = excluded.recorded_at`,
		userID, date, emoji, text, s.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert mood entry: %w", err)
	}
	return s.Get(ctx, userID, date)
}

func (s *MoodStore) Get(ctx context.Context, userID, date string) (*model.MoodEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+moodCols+` FROM mood_entries WHERE user_id = ? AND entry_date = ?`,
		userID, date,
	)
	e, err := scanMoodEntry(row)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mood entry: %w", err)
	}
	return e, nil
}

func (s *MoodStore) ListAll(ctx context.Context, userID string) ([]model.MoodEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+moodCols+` FROM mood_entries WHERE user_id = ? ORDER BY entry_date`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list mood entries: %w", err)
	}
	defer rows.Close()

	var entries []model.MoodEntry
	for rows.Next() {
		e, err := scanMoodEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mood entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}
