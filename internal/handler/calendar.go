package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/moodtracker/internal/auth"
	"github.com/dukerupert/moodtracker/internal/middleware"
	"github.com/dukerupert/moodtracker/internal/model"
	"github.com/dukerupert/moodtracker/internal/store"
)

type CalendarHandler struct {
	subscribers *store.SubscriberStore
	moods       *store.MoodStore
	sessions    *store.SessionStore
	loc         *time.Location
	now         func() time.Time
	*renderer
}

// NewCalendarHandler serves the landing page, the calendar and the entry
// API. loc decides which day counts as today.
func NewCalendarHandler(subs *store.SubscriberStore, moods *store.MoodStore, ss *store.SessionStore, loc *time.Location, logger *slog.Logger) *CalendarHandler {
	if loc == nil {
		loc = time.Local
	}
	return &CalendarHandler{
		subscribers: subs,
		moods:       moods,
		sessions:    ss,
		loc:         loc,
		now:         time.Now,
		renderer:    newRenderer(logger),
	}
}

func (h *CalendarHandler) Landing(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if middleware.SessionFromRequest(r, h.sessions) != nil {
		http.Redirect(w, r, "/calendar", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "landing.html", nil)
}

type entryView struct {
	EntryDate    string `json:"entry_date"`
	Emoji        string `json:"emoji"`
	TextResponse string `json:"text_response"`
}

func (h *CalendarHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.UserID(ctx)
	var flashes []flash

	sub, err := h.subscribers.Get(ctx, userID)
	if err != nil {
		h.logger.Error("load subscriber", "user_id", userID, "error", err)
	}
	if err == nil && (sub == nil || !sub.IsSubscribed) {
		flashes = append(flashes, flash{Kind: "warning", Message: "You are not currently subscribed. Reply START to resume daily prompts."})
	}

	entries := map[string]entryView{}
	list, err := h.moods.ListAll(ctx, userID)
	if err != nil {
		h.logger.Error("list mood entries", "user_id", userID, "error", err)
		flashes = append(flashes, flash{Kind: "danger", Message: "Could not load calendar entries."})
	}
	for _, e := range list {
		entries[e.EntryDate] = entryView{EntryDate: e.EntryDate, Emoji: e.Emoji, TextResponse: e.TextResponse}
	}

	h.render(w, r, http.StatusOK, "calendar.html", map[string]any{
		"Title":    "Calendar",
		"SignedIn": true,
		"Flashes":  flashes,
		"Entries":  entries,
		"Today":    h.now().In(h.loc).Format(model.DateLayout),
	})
}

// MoodEntry returns the signed-in user's entry for the {date} path value.
func (h *CalendarHandler) MoodEntry(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid date, expected YYYY-MM-DD"})
		return
	}

	userID := auth.UserID(r.Context())
	entry, err := h.moods.Get(r.Context(), userID, date)
	if err != nil {
		h.logger.Error("get mood entry", "user_id", userID, "date", date, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Could not load mood details"})
		return
	}
	if entry == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "No entry found for this date"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"date":          entry.EntryDate,
		"emoji":         entry.Emoji,
		"text_response": entry.TextResponse,
	})
}
