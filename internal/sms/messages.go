package sms

import "fmt"

const (
	WelcomeMessage     = "Welcome to Mood Tracker! You'll receive daily mood prompts. Reply STOP to unsubscribe."
	DailyPromptMessage = "How do you feel today? Reply with an emoji and optional text."
)

// OTPMessage is the body of the verification SMS. It carries the consent
// disclosure required before daily prompts may be sent.
func OTPMessage(code string) string {
	return fmt.Sprintf("Your Mood Tracker verification code is: %s. By verifying, you agree to receive daily SMS. Msg&Data rates may apply. Reply STOP to cancel.", code)
}
