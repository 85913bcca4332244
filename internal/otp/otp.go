// Package otp issues and verifies six-digit one-time passcodes keyed by
// canonical phone number.
//
// Each phone holds at most one record. Issue overwrites it; a correct,
// unexpired Verify consumes it. Wrong guesses leave the record in place and
// there is no attempt limit. Verify reads then deletes without a
// transaction, so two concurrent verifications of the same valid code can
// both succeed.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// TTL is how long an issued code stays valid.
const TTL = 10 * time.Minute

var ErrExpiredOrIncorrect = errors.New("code expired or incorrect")

// Record is the stored state for one phone number. The code itself is kept
// only as a bcrypt hash.
type Record struct {
	CodeHash  []byte    `json:"code_hash"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store persists one Record per phone number. Get returns nil, nil when no
// record exists.
type Store interface {
	Put(ctx context.Context, phone string, rec Record) error
	Get(ctx context.Context, phone string) (*Record, error)
	Delete(ctx context.Context, phone string) error
}

type Issuer struct {
	store    Store
	now      func() time.Time
	ttl      time.Duration
	hashCost int
}

type Option func(*Issuer)

// WithClock replaces time.Now, for deterministic expiry.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// WithHashCost sets the bcrypt cost used for stored codes.
func WithHashCost(cost int) Option {
	return func(i *Issuer) {
		i.hashCost = cost
	}
}

func NewIssuer(store Store, opts ...Option) *Issuer {
	i := &Issuer{
		store:    store,
		now:      time.Now,
		ttl:      TTL,
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// generateCode returns a 6-digit numeric code (100000–999999).
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Issue creates a fresh code for phone, replacing any earlier one, and
// returns it for delivery.
func (i *Issuer) Issue(ctx context.Context, phone string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), i.hashCost)
	if err != nil {
		return "", fmt.Errorf("hash code: %w", err)
	}

	rec := Record{CodeHash: hash, ExpiresAt: i.now().Add(i.ttl)}
	if err := i.store.Put(ctx, phone, rec); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	return code, nil
}

// Verify checks code against the record for phone. It returns nil and
// deletes the record only when the record exists, has not expired and the
// code matches exactly. Any other outcome is ErrExpiredOrIncorrect unless
// the store itself failed.
func (i *Issuer) Verify(ctx context.Context, phone, code string) error {
	rec, err := i.store.Get(ctx, phone)
	if err != nil {
		return fmt.Errorf("load code: %w", err)
	}
	if rec == nil || !i.now().Before(rec.ExpiresAt) {
		return ErrExpiredOrIncorrect
	}
	if bcrypt.CompareHashAndPassword(rec.CodeHash, []byte(code)) != nil {
		return ErrExpiredOrIncorrect
	}

	if err := i.store.Delete(ctx, phone); err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	return nil
}
