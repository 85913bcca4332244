package prompt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/moodtracker/internal/model"
	"github.com/dukerupert/moodtracker/internal/sms"
)

var (
	// ErrNotRegistered is returned by SendTest for a phone with no identity.
	ErrNotRegistered = errors.New("phone not registered")
	// ErrNotSubscribed is returned by SendTest for an opted-out subscriber.
	ErrNotSubscribed = errors.New("subscriber opted out")
)

type Directory interface {
	Get(ctx context.Context, userID string) (*model.Subscriber, error)
	ListSubscribed(ctx context.Context) ([]model.Subscriber, error)
}

type Identities interface {
	GetByPhone(ctx context.Context, phone string) (*model.Identity, error)
}

// Summary reports the result of one prompt run.
type Summary struct {
	Sent   int
	Failed int
}

// Scheduler sends the daily mood prompt to every active subscriber.
type Scheduler struct {
	mu         sync.Mutex
	directory  Directory
	identities Identities
	sender     sms.Sender
	schedule   string
	loc        *time.Location
	cron       *cron.Cron
	logger     *slog.Logger
}

// NewScheduler creates a scheduler that fires once a day at hour:minute in loc.
func NewScheduler(dir Directory, ids Identities, sender sms.Sender, hour, minute int, loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		directory:  dir,
		identities: ids,
		sender:     sender,
		schedule:   fmt.Sprintf("%d %d * * *", minute, hour),
		loc:        loc,
		logger:     logger,
	}
}

// Start registers the daily job and starts the cron loop. Jobs run with a
// context derived from ctx, so cancelling it aborts an in-flight run.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	c := cron.New(cron.WithLocation(s.loc))
	if _, err := c.AddFunc(s.schedule, func() { s.safeRun(ctx) }); err != nil {
		return fmt.Errorf("schedule daily prompt %q: %w", s.schedule, err)
	}
	c.Start()
	s.cron = c

	s.logger.Info("daily prompt scheduled", "schedule", s.schedule, "location", s.loc.String())
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

func (s *Scheduler) safeRun(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("daily prompt run panicked", "panic", r)
		}
	}()
	s.RunOnce(ctx)
}

// RunOnce sends the prompt to every subscribed user. A failed send is
// logged and the run moves on to the next recipient.
func (s *Scheduler) RunOnce(ctx context.Context) Summary {
	var sum Summary

	subs, err := s.directory.ListSubscribed(ctx)
	if err != nil {
		s.logger.Error("list subscribers", "error", err)
		return sum
	}

	for _, sub := range subs {
		if ctx.Err() != nil {
			s.logger.Warn("daily prompt run cancelled", "sent", sum.Sent, "remaining", len(subs)-sum.Sent-sum.Failed)
			break
		}
		if err := s.sender.Send(ctx, sub.PhoneNumber, sms.DailyPromptMessage); err != nil {
			sum.Failed++
			s.logger.Error("send daily prompt", "user_id", sub.UserID, "phone", sub.PhoneNumber, "error", err)
			continue
		}
		sum.Sent++
	}

	s.logger.Info("daily prompt run complete", "sent", sum.Sent, "failed", sum.Failed)
	return sum
}

// SendTest sends the daily prompt to a single subscribed phone right away.
func (s *Scheduler) SendTest(ctx context.Context, phone string) error {
	ident, err := s.identities.GetByPhone(ctx, phone)
	if err != nil {
		return fmt.Errorf("lookup identity: %w", err)
	}
	if ident == nil {
		return ErrNotRegistered
	}

	sub, err := s.directory.Get(ctx, ident.ID)
	if err != nil {
		return fmt.Errorf("load subscriber: %w", err)
	}
	if sub == nil || !sub.IsSubscribed {
		return ErrNotSubscribed
	}

	if err := s.sender.Send(ctx, sub.PhoneNumber, sms.DailyPromptMessage); err != nil {
		return fmt.Errorf("send test prompt: %w", err)
	}
	s.logger.Info("test prompt sent", "user_id", ident.ID)
	return nil
}
