package senders

import (
	"context"
	"errors"
	"fmt"

	fcm "github.com/NaySoftware/go-fcm"
	"github.com/fiffu/linewatch/lib/models"
)

// FCM accepts at most this many registration ids per multicast message.
const fcmBatchSize = 1000

type fcmSender struct {
	base
}

func (s *fcmSender) Send(ctx context.Context, tokens []string, title, body string) (*models.Delivery, error) {
	if s.cfg.FCM.ServerKey == "" {
		return nil, errors.New("fcm: FCM_SERVER_KEY is not configured")
	}

	delivery := &models.Delivery{}
	for start := 0; start < len(tokens); start += fcmBatchSize {
		batch := tokens[start:min(start+fcmBatchSize, len(tokens))]
		if err := ctx.Err(); err != nil {
			delivery.MarkFailed(err, tokens[start:]...)
			break
		}

		client := fcm.NewFcmClient(s.cfg.FCM.ServerKey)
		client.NewFcmRegIdsMsg(batch, map[string]string{"title": title, "body": body})
		client.SetNotificationPayload(&fcm.NotificationPayload{Title: title, Body: body})
		client.SetPriority(fcm.Priority_HIGH)

		status, err := sendWithContext(ctx, client)
		if err != nil && ctx.Err() != nil {
			delivery.MarkFailed(ctx.Err(), tokens[start:]...)
			break
		}
		if err != nil {
			delivery.MarkFailed(err, batch...)
			continue
		}
		collectResults(delivery, batch, status)
	}
	return delivery, nil
}

type fcmResult struct {
	status *fcm.FcmResponseStatus
	err    error
}

// sendWithContext returns when ctx is done even if the FCM request hangs.
// go-fcm uses a client without timeout and takes no context; an abandoned
// request is left to finish in the background.
func sendWithContext(ctx context.Context, client *fcm.FcmClient) (*fcm.FcmResponseStatus, error) {
	done := make(chan fcmResult, 1)
	go func() {
		status, err := client.Send()
		done <- fcmResult{status, err}
	}()

	select {
	case res := <-done:
		return res.status, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// collectResults maps FCM's positional results back onto the batch tokens.
func collectResults(delivery *models.Delivery, batch []string, status *fcm.FcmResponseStatus) {
	if !status.Ok {
		delivery.MarkFailed(fmt.Errorf("fcm: status %d: %s", status.StatusCode, status.Err), batch...)
		return
	}

	for i, token := range batch {
		if i >= len(status.Results) {
			delivery.MarkFailed(errors.New("fcm: missing result"), token)
			continue
		}
		if reason := status.Results[i]["error"]; reason != "" {
			delivery.MarkFailed(errors.New(reason), token)
		} else {
			delivery.MarkSent(token)
		}
	}
}
