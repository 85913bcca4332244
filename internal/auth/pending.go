package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	PendingCookieName = "moodtracker_pending"
	PendingTTL        = 10 * time.Minute
	pendingSubject    = "otp-pending"
)

var ErrInvalidPending = errors.New("invalid or expired verification state")

type pendingClaims struct {
	Phone string `json:"phone"`
	jwt.RegisteredClaims
}

// PendingSigner issues the short-lived token that carries the phone number
// between the login and verify steps.
type PendingSigner struct {
	secret []byte
	now    func() time.Time
}

func NewPendingSigner(secret string) *PendingSigner {
	return &PendingSigner{secret: []byte(secret), now: time.Now}
}

func (s *PendingSigner) Sign(phone string) (string, error) {
	now := s.now()
	claims := pendingClaims{
		Phone: phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   pendingSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(PendingTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign pending token: %w", err)
	}
	return token, nil
}

// Verify returns the phone number carried by a valid, unexpired token.
func (s *PendingSigner) Verify(token string) (string, error) {
	claims := &pendingClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(pendingSubject),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.Phone == "" {
		return "", ErrInvalidPending
	}
	return claims.Phone, nil
}
