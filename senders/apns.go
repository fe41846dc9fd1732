package senders

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fiffu/linewatch/lib/models"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// apnsSender pushes to Apple devices with token-based (.p8) auth. The client
// is built once so the signed provider token is reused across cycles.
type apnsSender struct {
	base

	mu     sync.Mutex
	client *apns2.Client
}

func newAPNSSender(b base) *apnsSender {
	return &apnsSender{base: b}
}

func (s *apnsSender) Send(ctx context.Context, tokens []string, title, body string) (*models.Delivery, error) {
	client, err := s.getClient()
	if err != nil {
		return nil, err
	}

	alert := payload.NewPayload().AlertTitle(title).AlertBody(body).Sound("default")
	delivery := &models.Delivery{}
	for i, device := range tokens {
		if err := ctx.Err(); err != nil {
			delivery.MarkFailed(err, tokens[i:]...)
			break
		}

		res, err := client.PushWithContext(ctx, &apns2.Notification{
			DeviceToken: device,
			Topic:       s.cfg.APNS.Topic,
			PushType:    apns2.PushTypeAlert,
			Priority:    apns2.PriorityHigh,
			Payload:     alert,
		})
		switch {
		case err != nil:
			delivery.MarkFailed(err, device)
		case !res.Sent():
			delivery.MarkFailed(fmt.Errorf("apns: status %d: %s", res.StatusCode, res.Reason), device)
		default:
			delivery.MarkSent(device)
		}
	}
	return delivery, nil
}

func (s *apnsSender) getClient() (*apns2.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}

	cfg := s.cfg.APNS
	if cfg.KeyID == "" || cfg.TeamID == "" || cfg.Topic == "" {
		return nil, errors.New("apns: APNS_KEY_ID, APNS_TEAM_ID and APNS_TOPIC must be populated")
	}

	var key *ecdsa.PrivateKey
	var err error
	switch {
	case cfg.Key != "":
		key, err = token.AuthKeyFromBytes([]byte(cfg.Key))
	case cfg.KeyPath != "":
		key, err = token.AuthKeyFromFile(cfg.KeyPath)
	default:
		return nil, errors.New("apns: one of APNS_KEY or APNS_KEY_PATH must be populated")
	}
	if err != nil {
		return nil, fmt.Errorf("apns: load auth key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{AuthKey: key, KeyID: cfg.KeyID, TeamID: cfg.TeamID})
	if cfg.Production {
		client.Production()
	} else {
		client.Development()
	}
	if cfg.Host != "" {
		client.Host = cfg.Host
	}

	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client.HTTPClient = &http.Client{Transport: s.transport, Timeout: timeout}

	s.log.Sugar().Infow("APNs client ready", "host", client.Host, "topic", cfg.Topic)
	s.client = client
	return client, nil
}
