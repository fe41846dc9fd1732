package senders

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fiffu/linewatch/lib/models"
	"github.com/fiffu/linewatch/senders/email"
	"github.com/mailgun/mailgun-go/v4"
	"golang.org/x/time/rate"
)

// mailgunSender treats tokens as email addresses and sends one message per
// recipient, so each address gets its own outcome.
type mailgunSender struct {
	base
	limiter *rate.Limiter
}

func newMailgunSender(b base) *mailgunSender {
	perSec := b.cfg.Mailgun.RatePerSec
	if perSec <= 0 {
		perSec = 5
	}
	return &mailgunSender{b, rate.NewLimiter(rate.Limit(perSec), perSec)}
}

func (e *mailgunSender) Send(ctx context.Context, tokens []string, title, body string) (*models.Delivery, error) {
	if e.cfg.Mailgun.Domain == "" || e.cfg.Mailgun.APIKey == "" {
		return nil, errors.New("mailgun: MAILGUN_DOMAIN and MAILGUN_API_KEY must be populated")
	}

	mg := mailgun.NewMailgun(e.cfg.Mailgun.Domain, e.cfg.Mailgun.APIKey)
	mg.SetClient(&http.Client{Transport: e.transport})
	if e.cfg.Mailgun.APIBase != "" {
		mg.SetAPIBase(e.cfg.Mailgun.APIBase)
	}

	format := &email.DisruptionEmailFormat{Title: title, Body: body}
	delivery := &models.Delivery{}
	for i, recipient := range tokens {
		if err := e.limiter.Wait(ctx); err != nil {
			delivery.MarkFailed(err, tokens[i:]...)
			break
		}

		id, err := e.sendOne(ctx, mg, format, recipient)
		if err != nil {
			delivery.MarkFailed(err, recipient)
			continue
		}
		e.log.Sugar().Debugw("Sent disruption email", "recipient", recipient, "message_id", id)
		delivery.MarkSent(recipient)
	}
	return delivery, nil
}

func (e *mailgunSender) sendOne(ctx context.Context, mg *mailgun.MailgunImpl, format *email.DisruptionEmailFormat, recipient string) (string, error) {
	message := mg.NewMessage(e.cfg.Mailgun.SenderFrom, format.Subject(), format.Text(), recipient)
	// SetHtml adds the HTML alternative and assigns the MIME type properly.
	message.SetHtml(format.HTML())

	timeout := time.Duration(e.cfg.Mailgun.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, id, err := mg.Send(ctx, message)
	return id, err
}
