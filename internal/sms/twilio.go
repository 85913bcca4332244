package sms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// ErrNotConfigured is returned by Send when no Twilio credentials are set.
var ErrNotConfigured = errors.New("sms client not configured")

// Sender delivers a single text message.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type Client struct {
	accountSID string
	authToken  string
	from       string
	api        messageCreator
	validator  twclient.RequestValidator
	logger     *slog.Logger
}

type Option func(*Client)

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func withMessageCreator(m messageCreator) Option {
	return func(c *Client) {
		c.api = m
	}
}

func NewClient(accountSID, authToken, from string, opts ...Option) *Client {
	c := &Client{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		validator:  twclient.NewRequestValidator(authToken),
		logger:     slog.Default(),
	}
	if accountSID != "" && authToken != "" {
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		})
		c.api = rest.Api
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if credentials and a sending number are set.
func (c *Client) Configured() bool {
	return c.api != nil && c.from != ""
}

func (c *Client) Send(ctx context.Context, to, body string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(c.from)
	params.SetBody(body)

	resp, err := c.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("send sms to %s: %w", to, err)
	}

	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	c.logger.Debug("sms sent", "component", "sms", "to", to, "sid", sid)
	return nil
}

// ValidRequest checks an X-Twilio-Signature header against the full
// request URL and the posted form values.
func (c *Client) ValidRequest(url string, params map[string]string, signature string) bool {
	if c.authToken == "" || signature == "" {
		return false
	}
	return c.validator.Validate(url, params, signature)
}
