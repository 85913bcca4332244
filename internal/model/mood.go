package model

import "time"

// DateLayout is the calendar-date key format used for mood entries.
const DateLayout = "2006-01-02"

type MoodEntry struct {
	UserID       string    `json:"user_id"`
	EntryDate    string    `json:"entry_date"`
	Emoji        string    `json:"emoji"`
	TextResponse string    `json:"text_response"`
	RecordedAt   time.Time `json:"recorded_at"`
}
