package senders

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fiffu/linewatch/config"
	"github.com/fiffu/linewatch/lib/models"
	"go.uber.org/zap"
)

// Sender delivers one notification to a batch of recipients and reports the
// outcome per recipient. An error means nothing could be attempted.
type Sender interface {
	Send(ctx context.Context, tokens []string, title, body string) (*models.Delivery, error)
}

type Registry map[string]Sender

func NewSenderRegistry(log *zap.Logger, cfg *config.Config, transport http.RoundTripper) Registry {
	base := base{log, cfg, transport}
	return map[string]Sender{
		"apns":  newAPNSSender(base),
		"fcm":   &fcmSender{base},
		"email": newMailgunSender(base),
	}
}

// NewGateway returns the sender for the configured NOTIFY_PLATFORM.
func NewGateway(cfg *config.Config, registry Registry) (Sender, error) {
	sender, ok := registry[cfg.Notify.Platform]
	if !ok {
		return nil, fmt.Errorf("unsupported notifier platform: %s", cfg.Notify.Platform)
	}
	return sender, nil
}

type base struct {
	log       *zap.Logger
	cfg       *config.Config
	transport http.RoundTripper
}
