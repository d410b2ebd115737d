// Package email sends transactional email through Postmark, or to disk in
// development, with bodies rendered from embedded html/template files.
package email

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrFailedToSendEmail = errors.New("email.failed_to_send")
	ErrInvalidConfig     = errors.New("email.invalid_config")
	ErrInvalidParams     = errors.New("email.invalid_params")
	ErrUnknownTemplate   = errors.New("email.unknown_template")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Config holds sender identity and Postmark credentials. Without a server
// token the dev sender is used.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"no-reply@castflow.local"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"support@castflow.local"`
	DevOutputDir         string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`
}

// Sender sends one email.
type Sender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

type SendEmailParams struct {
	SendTo   string `json:"send_to"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	Tag      string `json:"tag,omitempty"`
}

func (p SendEmailParams) Validate() error {
	switch {
	case strings.TrimSpace(p.SendTo) == "":
		return fmt.Errorf("%w: SendTo is required", ErrInvalidParams)
	case !emailRegex.MatchString(p.SendTo):
		return fmt.Errorf("%w: SendTo must be a valid email address", ErrInvalidParams)
	case strings.TrimSpace(p.Subject) == "":
		return fmt.Errorf("%w: Subject is required", ErrInvalidParams)
	case strings.TrimSpace(p.BodyHTML) == "":
		return fmt.Errorf("%w: BodyHTML is required", ErrInvalidParams)
	}
	return nil
}

// NewSender picks Postmark when a server token is configured and the dev
// sender otherwise.
func NewSender(cfg Config) (Sender, error) {
	if cfg.PostmarkServerToken == "" {
		return NewDevSender(cfg.DevOutputDir), nil
	}
	return NewPostmarkClient(cfg)
}
