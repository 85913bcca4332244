// Package inbound interprets text messages sent to the service number and
// applies them to the subscriber directory and mood log.
package inbound

import (
	"strings"
	"unicode/utf8"
)

// DefaultEmoji stands in when a mood reply carries no emoji.
const DefaultEmoji = "♠️"

type Kind int

const (
	KindMood Kind = iota
	KindUnsubscribe
	KindSubscribeResume
)

func (k Kind) String() string {
	switch k {
	case KindUnsubscribe:
		return "unsubscribe"
	case KindSubscribeResume:
		return "subscribe_resume"
	default:
		return "mood"
	}
}

// Classification is the parsed meaning of one inbound body. Emoji and Text
// are only set for KindMood.
type Classification struct {
	Kind  Kind
	Emoji string
	Text  string
}

// emojiRanges are the codepoint ranges treated as emoji. The last range is
// wide and also spans CJK and other non-pictographic blocks.
var emojiRanges = [][2]rune{
	{0x1F600, 0x1F64F}, // emoticons
	{0x1F300, 0x1F5FF}, // symbols & pictographs
	{0x1F680, 0x1F6FF}, // transport & map
	{0x1F1E0, 0x1F1FF}, // regional indicators
	{0x2600, 0x27BF},   // misc symbols, dingbats
	{0x1F900, 0x1F9FF}, // supplemental symbols & pictographs
	{0x24C2, 0x1F251},
}

func isEmoji(r rune) bool {
	for _, rg := range emojiRanges {
		if r >= rg[0] && r <= rg[1] {
			return true
		}
	}
	return false
}

// Classify maps a message body to a control keyword or a mood submission.
// STOP and START must be the whole body, ignoring case and surrounding
// whitespace.
func Classify(body string) Classification {
	switch strings.ToUpper(strings.TrimSpace(body)) {
	case "STOP":
		return Classification{Kind: KindUnsubscribe}
	case "START":
		return Classification{Kind: KindSubscribeResume}
	}

	emoji := ExtractEmoji(body)
	if emoji == "" {
		emoji = DefaultEmoji
	}
	return Classification{Kind: KindMood, Emoji: emoji, Text: body}
}

// ExtractEmoji returns the first contiguous run of emoji codepoints in s, or
// "" if there is none.
func ExtractEmoji(s string) string {
	start := -1
	for i := 0; i < len(s); {
		r, width := utf8.DecodeRuneInString(s[i:])
		if !(r == utf8.RuneError && width == 1) && isEmoji(r) {
			if start < 0 {
				start = i
			}
			i += width
			continue
		}
		if start >= 0 {
			return s[start:i]
		}
		i += width
	}
	if start >= 0 {
		return s[start:]
	}
	return ""
}
