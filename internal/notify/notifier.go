package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

var ErrNotifyFailed = errors.New("notification failed")

const defaultSubject = "New patient feedback"

// LogNotifier publishes messages to the application log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &LogNotifier{logger: logger.Named("notifier")}
}

func (n *LogNotifier) Publish(_ context.Context, message string) error {
	n.logger.Info("feedback notification", zap.String("message", message))
	return nil
}

// EmailNotifier sends each message as a plain-text email through Resend.
type EmailNotifier struct {
	client  *resend.Client
	from    string
	to      []string
	subject string
	logger  *zap.Logger
}

type EmailOption func(*EmailNotifier)

func WithSubject(subject string) EmailOption {
	return func(n *EmailNotifier) { n.subject = subject }
}

// WithResendClient replaces the default client, e.g. to point it at another base URL.
func WithResendClient(client *resend.Client) EmailOption {
	return func(n *EmailNotifier) { n.client = client }
}

// NewEmailNotifier builds a notifier for a comma-separated recipient list.
func NewEmailNotifier(apiKey, from, to string, logger *zap.Logger, opts ...EmailOption) (*EmailNotifier, error) {
	if apiKey == "" || from == "" || to == "" {
		return nil, fmt.Errorf("email notifier requires api key, sender and recipient")
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	var recipients []string
	for _, addr := range strings.Split(to, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("email notifier requires at least one recipient")
	}

	n := &EmailNotifier{
		client:  resend.NewClient(apiKey),
		from:    from,
		to:      recipients,
		subject: defaultSubject,
		logger:  logger.Named("email-notifier"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

func (n *EmailNotifier) Publish(ctx context.Context, message string) error {
	params := &resend.SendEmailRequest{
		From:    n.from,
		To:      n.to,
		Subject: n.subject,
		Text:    message,
	}

	sent, err := n.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotifyFailed, err)
	}

	n.logger.Debug("notification email sent", zap.String("id", sent.Id), zap.Strings("to", n.to))
	return nil
}
