package ingest

import (
	"context"
	"fmt"

	"github.com/fiffu/linewatch/lib/models"
	"go.uber.org/zap"
)

const (
	fallbackTitle = "Info trafic"
	maxBodyRunes  = 512
)

// notificationText picks the push title and body for a disruption, falling
// back when the provider sent no title or web message.
func notificationText(d *models.Disruption) (title, body string) {
	title = fallbackTitle
	if d.Message.Valid && d.Message.String != "" {
		title = d.Message.String
	}

	switch {
	case d.Description.Valid && d.Description.String != "":
		body = d.Description.String
	case d.Message.Valid && d.Message.String != "":
		body = d.Message.String
	default:
		body = d.Status
	}
	return title, truncate(body, maxBodyRunes)
}

func truncate(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes-1]) + "…"
}

// dispatch sends one notification batch. A gateway error fails every token
// in the batch; individual failures never reach the caller as an error.
func (o *Orchestrator) dispatch(ctx context.Context, log *zap.SugaredLogger, d *models.Disruption, tokens []string) *models.Delivery {
	title, body := notificationText(d)

	delivery, err := o.gateway.Send(ctx, tokens, title, body)
	if err != nil {
		delivery = &models.Delivery{}
		delivery.MarkFailed(fmt.Errorf("%w: %w", ErrDispatchFailure, err), tokens...)
	}

	for _, failed := range delivery.Failed {
		log.Warnw("Failed to notify device", "disruption_id", d.ID, "token", failed.Token, "err", failed.Err)
	}
	log.Infow(
		fmt.Sprintf("Sent notification to %d devices", len(delivery.Sent)),
		"disruption_id", d.ID, "failed", len(delivery.Failed),
	)
	return delivery
}
