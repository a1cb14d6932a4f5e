package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/cayc/incubator/internal/adapter"
	"github.com/cayc/incubator/internal/domain"
	"github.com/cayc/incubator/internal/logger"
)

const DefaultMaxAttempts = 3

// Report describes a completed incubation
type Report struct {
	TypeLabel string
	Account   string
	TokenIDs  []string
}

// Notifier reports completed incubations to the operators
//
//go:generate mockgen -source=notifier.go -destination=../mocks/notifier.go -package=mocks -mock_names=Notifier=MockNotifier
type Notifier interface {
	// Notify delivers the report, retrying up to the configured attempts.
	// The returned error only means the report was not delivered.
	Notify(ctx context.Context, report Report) error
}

// Config holds notification settings
type Config struct {
	Endpoint    string
	Recipient   string
	MaxAttempts int
	// RetryDelay is the pause between attempts, zero retries immediately
	RetryDelay time.Duration
}

// EmailRequest is the payload accepted by the mail relay
type EmailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type notifier struct {
	httpClient adapter.HTTPClient
	json       adapter.JSON
	cfg        Config
}

// NewNotifier creates a notifier posting to the mail relay
func NewNotifier(httpClient adapter.HTTPClient, json adapter.JSON, cfg Config) Notifier {
	if cfg.Endpoint == "" {
		cfg.Endpoint = domain.NotificationEndpoint
	}
	if cfg.Recipient == "" {
		cfg.Recipient = domain.NotificationRecipient
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &notifier{httpClient: httpClient, json: json, cfg: cfg}
}

// Subject builds the mail subject; retries carry their attempt number
func Subject(typeLabel string, attempt int) string {
	subject := fmt.Sprintf("An Incubated %s Ape has been made", typeLabel)
	if attempt > 0 {
		subject += fmt.Sprintf(" - Retry %d", attempt)
	}
	return subject
}

// Body builds the mail body listing the account and the transferred tokens
func Body(account string, tokenIDs []string) string {
	return fmt.Sprintf("The connected wallet address that transferred the NFTs:\n%s\n\nThe Token IDs of the transferred NFTs:\n%s",
		account, strings.Join(tokenIDs, ", "))
}

func (n *notifier) Notify(ctx context.Context, report Report) error {
	attempt := 0
	body := Body(report.Account, report.TokenIDs)

	operation := func() error {
		req := EmailRequest{
			To:      n.cfg.Recipient,
			Subject: Subject(report.TypeLabel, attempt),
			Body:    body,
		}
		attempt++

		data, err := n.json.Marshal(req)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to marshal email request: %w", err))
		}

		if _, err := n.httpClient.PostOnce(ctx, n.cfg.Endpoint, "application/json", data); err != nil {
			return fmt.Errorf("failed to send notification: %w", err)
		}
		return nil
	}

	notify := func(err error, next time.Duration) {
		logger.WarnCtx(ctx, "notification attempt failed",
			zap.Int("attempt", attempt),
			zap.Duration("retryIn", next),
			zap.Error(err))
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(n.cfg.RetryDelay), uint64(n.cfg.MaxAttempts-1)),
		ctx,
	)
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("notification not delivered after %d attempts: %w", attempt, err),
			zap.String("account", report.Account),
			zap.Strings("tokenIds", report.TokenIDs))
		return err
	}

	logger.InfoCtx(ctx, "notification sent",
		zap.String("type", report.TypeLabel),
		zap.Int("attempts", attempt))
	return nil
}
