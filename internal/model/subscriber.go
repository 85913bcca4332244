package model

import "time"

// Identity is a verified phone line. Its ID is the opaque user identity that
// every other record hangs off.
type Identity struct {
	ID          string    `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	CreatedAt   time.Time `json:"created_at"`
}

type Subscriber struct {
	UserID           string    `json:"user_id"`
	PhoneNumber      string    `json:"phone_number"`
	IsSubscribed     bool      `json:"is_subscribed"`
	ConsentUpdatedAt time.Time `json:"consent_updated_at"`
	CreatedAt        time.Time `json:"created_at"`
}

// SubscriberFields holds the optional columns applied by an upsert. Nil
// pointers leave the stored value untouched.
type SubscriberFields struct {
	IsSubscribed *bool
}
