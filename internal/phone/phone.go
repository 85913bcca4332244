// Package phone canonicalizes free-form phone numbers to E.164.
package phone

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is the region assumed for numbers written without a leading +.
const DefaultRegion = "US"

var ErrInvalidPhoneNumber = errors.New("invalid phone number")

// Normalize parses raw and returns its E.164 form (+<cc><national>). Input
// starting with + is parsed as fully international; anything else is read
// in region. The result is only returned for numbers that are structurally
// valid for their region. No reachability check is made.
func Normalize(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidPhoneNumber
	}

	hint := region
	if strings.HasPrefix(raw, "+") {
		hint = ""
	} else if hint == "" {
		hint = DefaultRegion
	}

	num, err := phonenumbers.Parse(raw, hint)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPhoneNumber, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhoneNumber
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// Normalizer binds a region hint so callers can normalize without
// threading it through.
type Normalizer struct {
	Region string
}

func NewNormalizer(region string) Normalizer {
	if region == "" {
		region = DefaultRegion
	}
	return Normalizer{Region: strings.ToUpper(region)}
}

func (n Normalizer) Normalize(raw string) (string, error) {
	return Normalize(raw, n.Region)
}
