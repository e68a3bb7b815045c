// Package alert posts operator alerts when cranking fails.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/aocrank/internal/config"
	"github.com/zulandar/aocrank/internal/logging"
)

// Notifier delivers an alert. Delivery is best-effort: failures are
// logged, never returned.
type Notifier interface {
	Notify(ctx context.Context, subject, detail string)
}

// poster abstracts the Slack API call used with a bot token.
type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Slack posts alerts through an incoming webhook or, without one, as a
// bot message to a channel.
type Slack struct {
	webhookURL string
	client     poster
	channel    string
	logger     *slog.Logger
}

// NewSlackWebhook creates a Slack notifier using an incoming webhook.
func NewSlackWebhook(url string, logger *slog.Logger) *Slack {
	return &Slack{webhookURL: url, logger: logging.For(logger, "alert")}
}

// NewSlackBot creates a Slack notifier posting with a bot token.
func NewSlackBot(token, channel string, logger *slog.Logger) *Slack {
	return &Slack{client: slackapi.New(token), channel: channel, logger: logging.For(logger, "alert")}
}

// Notify implements Notifier.
func (s *Slack) Notify(ctx context.Context, subject, detail string) {
	text := format(subject, detail)
	var err error
	if s.webhookURL != "" {
		err = slackapi.PostWebhookContext(ctx, s.webhookURL, &slackapi.WebhookMessage{Text: text})
	} else {
		_, _, err = s.client.PostMessageContext(ctx, s.channel, slackapi.MsgOptionText(text, false))
	}
	if err != nil {
		s.logger.Warn("Alert delivery failed", "subject", subject, "error", err)
		return
	}
	s.logger.Debug("Alert delivered", "subject", subject)
}

func format(subject, detail string) string {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		return fmt.Sprintf("*%s*", subject)
	}
	return fmt.Sprintf("*%s*\n```%s```", subject, detail)
}

// Log is a Notifier that only writes alerts to the log.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a log-only Notifier.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logging.For(logger, "alert")}
}

// Notify implements Notifier.
func (l *Log) Notify(_ context.Context, subject, detail string) {
	l.logger.Warn(subject, "detail", detail)
}

// FromConfig picks the notifier for cfg. Without Slack settings alerts go
// to the log only.
func FromConfig(cfg config.AlertConfig, logger *slog.Logger) Notifier {
	switch {
	case cfg.SlackWebhookURL != "":
		return NewSlackWebhook(cfg.SlackWebhookURL, logger)
	case cfg.SlackBotToken != "":
		return NewSlackBot(cfg.SlackBotToken, cfg.SlackChannel, logger)
	default:
		return NewLog(logger)
	}
}
