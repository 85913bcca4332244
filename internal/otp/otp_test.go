package otp

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPhone = "+12015550123"

// fakeClock is a settable clock shared between the issuer and its test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestIssuer(store Store) (*Issuer, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 5, 18, 12, 0, 0, 0, time.UTC)}
	return NewIssuer(store, WithClock(clock.Now), WithHashCost(bcrypt.MinCost)), clock
}

func TestGenerateCodeRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestIssueThenVerifyOnce(t *testing.T) {
	issuer, _ := newTestIssuer(NewMemoryStore())
	ctx := context.Background()

	code, err := issuer.Issue(ctx, testPhone)
	require.NoError(t, err)

	require.NoError(t, issuer.Verify(ctx, testPhone, code))
	assert.ErrorIs(t, issuer.Verify(ctx, testPhone, code), ErrExpiredOrIncorrect, "code must be single use")
}

func TestWrongGuessDoesNotConsume(t *testing.T) {
	issuer, _ := newTestIssuer(NewMemoryStore())
	ctx := context.Background()

	code, err := issuer.Issue(ctx, testPhone)
	require.NoError(t, err)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for i := 0; i < 10; i++ {
		assert.ErrorIs(t, issuer.Verify(ctx, testPhone, wrong), ErrExpiredOrIncorrect)
	}

	assert.NoError(t, issuer.Verify(ctx, testPhone, code))
}

func TestExactMatchOnly(t *testing.T) {
	issuer, _ := newTestIssuer(NewMemoryStore())
	ctx := context.Background()

	code, err := issuer.Issue(ctx, testPhone)
	require.NoError(t, err)

	for _, variant := range []string{" " + code, code + " ", code + "0", code[:5], ""} {
		assert.ErrorIs(t, issuer.Verify(ctx, testPhone, variant), ErrExpiredOrIncorrect, "variant %q", variant)
	}
	assert.NoError(t, issuer.Verify(ctx, testPhone, code))
}

func TestExpiry(t *testing.T) {
	issuer, clock := newTestIssuer(NewMemoryStore())
	ctx := context.Background()

	code, err := issuer.Issue(ctx, testPhone)
	require.NoError(t, err)

	clock.Advance(TTL)
	assert.ErrorIs(t, issuer.Verify(ctx, testPhone, code), ErrExpiredOrIncorrect, "now == expires_at must be rejected")
}

func TestJustBeforeExpiry(t *testing.T) {
	issuer, clock := newTestIssuer(NewMemoryStore())
	ctx := context.Background()

	code, err := issuer.Issue(ctx, testPhone)
	require.NoError(t, err)

	clock.Advance(TTL - time.Nanosecond)
	assert.NoError(t, issuer.Verify(ctx, testPhone, code))
}

func TestExpiredRecordNotPurgedByVerify(t *testing.T) {
	store := NewMemoryStore()
	issuer, clock := newTestIssuer(store)
	ctx := context.Background()

	code, err := issuer.Issue(ctx, testPhone)
	require.NoError(t, err)
	clock.Advance(TTL + time.Minute)

	assert.ErrorIs(t, issuer.Verify(ctx, testPhone, code), ErrExpiredOrIncorrect)
	rec, err := store.Get(ctx, testPhone)
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestReissueInvalidatesPreviousCode(t *testing.T) {
	issuer, _ := newTestIssuer(NewMemoryStore())
	ctx := context.Background()

	first, err := issuer.Issue(ctx, testPhone)
	require.NoError(t, err)
	second, err := issuer.Issue(ctx, testPhone)
	require.NoError(t, err)

	if first != second {
		assert.ErrorIs(t, issuer.Verify(ctx, testPhone, first), ErrExpiredOrIncorrect)
	}
	assert.NoError(t, issuer.Verify(ctx, testPhone, second))
}

func TestVerifyUnknownPhone(t *testing.T) {
	issuer, _ := newTestIssuer(NewMemoryStore())
	assert.ErrorIs(t, issuer.Verify(context.Background(), testPhone, "123456"), ErrExpiredOrIncorrect)
}

func TestCodesAreKeyedByPhone(t *testing.T) {
	issuer, _ := newTestIssuer(NewMemoryStore())
	ctx := context.Background()

	code, err := issuer.Issue(ctx, testPhone)
	require.NoError(t, err)

	assert.ErrorIs(t, issuer.Verify(ctx, "+12015550124", code), ErrExpiredOrIncorrect)
	assert.NoError(t, issuer.Verify(ctx, testPhone, code))
}

type failingStore struct{ err error }

func (s failingStore) Put(context.Context, string, Record) error    { return s.err }
func (s failingStore) Get(context.Context, string) (*Record, error) { return nil, s.err }
func (s failingStore) Delete(context.Context, string) error         { return s.err }

func TestStoreFailuresSurface(t *testing.T) {
	boom := errors.New("store down")
	issuer, _ := newTestIssuer(failingStore{err: boom})
	ctx := context.Background()

	_, err := issuer.Issue(ctx, testPhone)
	assert.ErrorIs(t, err, boom)

	err = issuer.Verify(ctx, testPhone, "123456")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrExpiredOrIncorrect)
}
