package inbound

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/moodtracker/internal/model"
	"github.com/dukerupert/moodtracker/internal/phone"
)

var (
	// ErrUnknownSender means the phone has never completed verification.
	ErrUnknownSender = errors.New("unknown sender")
	// ErrNotSubscribed means a mood arrived from an opted-out subscriber.
	ErrNotSubscribed = errors.New("sender not subscribed")
	// ErrUpstreamUnavailable wraps failures of the directory or mood log.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

type Outcome int

const (
	OutcomeMoodRecorded Outcome = iota
	OutcomeUnsubscribed
	OutcomeResubscribed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnsubscribed:
		return "unsubscribed"
	case OutcomeResubscribed:
		return "resubscribed"
	default:
		return "mood_recorded"
	}
}

type Identities interface {
	GetByPhone(ctx context.Context, phone string) (*model.Identity, error)
}

type Directory interface {
	Get(ctx context.Context, userID string) (*model.Subscriber, error)
	Upsert(ctx context.Context, userID, phone string, fields model.SubscriberFields) (*model.Subscriber, error)
	SetSubscribed(ctx context.Context, userID string, subscribed bool) error
}

type MoodLog interface {
	Upsert(ctx context.Context, userID, date, emoji, text string) (*model.MoodEntry, error)
}

// Notifier is told about each recorded mood so open calendars can refresh.
type Notifier interface {
	MoodRecorded(userID string, entry model.MoodEntry)
}

type Processor struct {
	normalizer phone.Normalizer
	identities Identities
	directory  Directory
	moods      MoodLog
	notifier   Notifier
	now        func() time.Time
	loc        *time.Location
	logger     *slog.Logger
}

type Option func(*Processor)

func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}

// WithLocation sets the zone used to decide which calendar day a mood
// belongs to. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(p *Processor) {
		p.loc = loc
	}
}

func WithNotifier(n Notifier) Option {
	return func(p *Processor) {
		p.notifier = n
	}
}

func NewProcessor(n phone.Normalizer, ids Identities, dir Directory, moods MoodLog, logger *slog.Logger, opts ...Option) *Processor {
	p := &Processor{
		normalizer: n,
		identities: ids,
		directory:  dir,
		moods:      moods,
		now:        time.Now,
		loc:        time.Local,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle applies one inbound message from rawFrom. Unknown senders are
// rejected before the body is looked at. STOP and START are honoured for
// any known sender; mood replies are only recorded for active subscribers.
func (p *Processor) Handle(ctx context.Context, rawFrom, body string) (Outcome, error) {
	from, err := p.normalizer.Normalize(rawFrom)
	if err != nil {
		return 0, err
	}

	ident, err := p.identities.GetByPhone(ctx, from)
	if err != nil {
		return 0, fmt.Errorf("%w: lookup identity: %w", ErrUpstreamUnavailable, err)
	}
	if ident == nil {
		p.logger.Info("message from unregistered phone", "phone", from)
		return 0, ErrUnknownSender
	}

	c := Classify(body)
	switch c.Kind {
	case KindUnsubscribe:
		if err := p.setSubscribed(ctx, ident, false); err != nil {
			return 0, err
		}
		p.logger.Info("opted out", "user_id", ident.ID, "phone", from)
		return OutcomeUnsubscribed, nil
	case KindSubscribeResume:
		if err := p.setSubscribed(ctx, ident, true); err != nil {
			return 0, err
		}
		p.logger.Info("opted in", "user_id", ident.ID, "phone", from)
		return OutcomeResubscribed, nil
	}

	sub, err := p.directory.Get(ctx, ident.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: load subscriber: %w", ErrUpstreamUnavailable, err)
	}
	if sub == nil || !sub.IsSubscribed {
		p.logger.Info("mood from unsubscribed user ignored", "user_id", ident.ID)
		return 0, ErrNotSubscribed
	}

	date := p.now().In(p.loc).Format(model.DateLayout)
	entry, err := p.moods.Upsert(ctx, ident.ID, date, c.Emoji, c.Text)
	if err != nil {
		return 0, fmt.Errorf("%w: record mood: %w", ErrUpstreamUnavailable, err)
	}
	p.logger.Info("mood recorded", "user_id", ident.ID, "date", date)

	if p.notifier != nil && entry != nil {
		p.notifier.MoodRecorded(ident.ID, *entry)
	}
	return OutcomeMoodRecorded, nil
}

// setSubscribed updates the opt-in flag, creating the subscriber row if the
// identity somehow lacks one.
func (p *Processor) setSubscribed(ctx context.Context, ident *model.Identity, subscribed bool) error {
	err := p.directory.SetSubscribed(ctx, ident.ID, subscribed)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = p.directory.Upsert(ctx, ident.ID, ident.PhoneNumber, model.SubscriberFields{IsSubscribed: &subscribed})
	}
	if err != nil {
		return fmt.Errorf("%w: update subscription: %w", ErrUpstreamUnavailable, err)
	}
	return nil
}
