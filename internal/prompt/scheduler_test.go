package prompt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/moodtracker/internal/database"
	"github.com/dukerupert/moodtracker/internal/model"
	"github.com/dukerupert/moodtracker/internal/sms"
	"github.com/dukerupert/moodtracker/internal/store"
)

type sent struct {
	to, body string
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []sent
	failTo map[string]bool
}

func (f *fakeSender) Send(_ context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[to] {
		return errors.New("carrier rejected")
	}
	f.sent = append(f.sent, sent{to, body})
	return nil
}

func (f *fakeSender) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		out = append(out, s.to)
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	identities  *store.IdentityStore
	subscribers *store.SubscriberStore
	sender      *fakeSender
	sched       *Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		identities:  store.NewIdentityStore(db),
		subscribers: store.NewSubscriberStore(db),
		sender:      &fakeSender{failTo: map[string]bool{}},
	}
	f.sched = NewScheduler(f.subscribers, f.identities, f.sender, 12, 58, time.UTC, discardLogger())
	return f
}

func (f *fixture) add(t *testing.T, phone string, subscribed bool) {
	t.Helper()
	ctx := context.Background()
	ident, err := f.identities.Create(ctx, phone)
	require.NoError(t, err)
	_, err = f.subscribers.Upsert(ctx, ident.ID, phone, model.SubscriberFields{IsSubscribed: &subscribed})
	require.NoError(t, err)
}

func TestRunOnceSendsToSubscribedOnly(t *testing.T) {
	f := newFixture(t)
	f.add(t, "+12015550121", true)
	f.add(t, "+12015550122", false)
	f.add(t, "+12015550123", true)

	sum := f.sched.RunOnce(context.Background())

	assert.Equal(t, Summary{Sent: 2}, sum)
	assert.ElementsMatch(t, []string{"+12015550121", "+12015550123"}, f.sender.recipients())
	for _, s := range f.sender.sent {
		assert.Equal(t, sms.DailyPromptMessage, s.body)
	}
}

func TestRunOnceSkipsFailures(t *testing.T) {
	f := newFixture(t)
	f.add(t, "+12015550121", true)
	f.add(t, "+12015550122", true)
	f.add(t, "+12015550123", true)
	f.sender.failTo["+12015550122"] = true

	sum := f.sched.RunOnce(context.Background())

	assert.Equal(t, Summary{Sent: 2, Failed: 1}, sum)
	assert.ElementsMatch(t, []string{"+12015550121", "+12015550123"}, f.sender.recipients())
}

func TestRunOnceNoSubscribers(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, Summary{}, f.sched.RunOnce(context.Background()))
	assert.Empty(t, f.sender.sent)
}

func TestSendTest(t *testing.T) {
	f := newFixture(t)
	f.add(t, "+12015550123", true)
	f.add(t, "+12015550124", false)
	ctx := context.Background()

	require.NoError(t, f.sched.SendTest(ctx, "+12015550123"))
	assert.Equal(t, []string{"+12015550123"}, f.sender.recipients())

	assert.ErrorIs(t, f.sched.SendTest(ctx, "+12015550124"), ErrNotSubscribed)
	assert.ErrorIs(t, f.sched.SendTest(ctx, "+12015550199"), ErrNotRegistered)
	assert.Len(t, f.sender.sent, 1)
}

func TestSendTestSenderError(t *testing.T) {
	f := newFixture(t)
	f.add(t, "+12015550123", true)
	f.sender.failTo["+12015550123"] = true

	err := f.sched.SendTest(context.Background(), "+12015550123")
	assert.ErrorContains(t, err, "carrier rejected")
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sched.Start(context.Background()))
	require.NoError(t, f.sched.Start(context.Background()), "second start is a no-op")

	done := make(chan struct{})
	go func() {
		f.sched.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	f.sched.Stop()
}

func TestStartRejectsBadSchedule(t *testing.T) {
	f := newFixture(t)
	s := NewScheduler(f.subscribers, f.identities, f.sender, 25, 0, time.UTC, discardLogger())
	assert.Error(t, s.Start(context.Background()))
}
