package senders

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	fcm "github.com/NaySoftware/go-fcm"
	"github.com/fiffu/linewatch/config"
	"github.com/fiffu/linewatch/lib/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewGateway(t *testing.T) {
	cfg := &config.Config{}
	registry := NewSenderRegistry(zaptest.NewLogger(t), cfg, http.DefaultTransport)

	cfg.Notify.Platform = "fcm"
	sender, err := NewGateway(cfg, registry)
	require.NoError(t, err)
	assert.IsType(t, &fcmSender{}, sender)

	cfg.Notify.Platform = "email"
	sender, err = NewGateway(cfg, registry)
	require.NoError(t, err)
	assert.IsType(t, &mailgunSender{}, sender)

	cfg.Notify.Platform = "apns"
	sender, err = NewGateway(cfg, registry)
	require.NoError(t, err)
	assert.IsType(t, &apnsSender{}, sender)

	cfg.Notify.Platform = "carrier-pigeon"
	_, err = NewGateway(cfg, registry)
	assert.ErrorContains(t, err, "unsupported notifier platform")
}

func TestCollectResults(t *testing.T) {
	delivery := &models.Delivery{}
	status := &fcm.FcmResponseStatus{
		Ok:         true,
		StatusCode: 200,
		Results: []map[string]string{
			{"message_id": "0:1"},
			{"error": "NotRegistered"},
			{"message_id": "0:3"},
		},
	}

	collectResults(delivery, []string{"t1", "t2", "t3", "t4"}, status)

	assert.Equal(t, []string{"t1", "t3"}, delivery.Sent)
	require.Len(t, delivery.Failed, 2)
	assert.Equal(t, "t2", delivery.Failed[0].Token)
	assert.EqualError(t, delivery.Failed[0].Err, "NotRegistered")
	assert.Equal(t, "t4", delivery.Failed[1].Token)
}

func TestCollectResultsRejectedBatch(t *testing.T) {
	delivery := &models.Delivery{}
	status := &fcm.FcmResponseStatus{Ok: false, StatusCode: 401, Err: "Unauthorized"}

	collectResults(delivery, []string{"t1", "t2"}, status)

	assert.Empty(t, delivery.Sent)
	require.Len(t, delivery.Failed, 2)
	assert.EqualError(t, delivery.Failed[1].Err, "fcm: status 401: Unauthorized")
}

func TestFCMRequiresServerKey(t *testing.T) {
	s := &fcmSender{base{zaptest.NewLogger(t), &config.Config{}, http.DefaultTransport}}

	_, err := s.Send(context.Background(), []string{"t1"}, "title", "body")
	assert.ErrorContains(t, err, "FCM_SERVER_KEY")
}

// stalledTransport accepts requests and never answers until released.
type stalledTransport struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (st *stalledTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	st.once.Do(func() { close(st.entered) })
	<-st.release
	return nil, errors.New("stalled")
}

func TestFCMSendGivesUpWhenContextExpires(t *testing.T) {
	stalled := &stalledTransport{entered: make(chan struct{}), release: make(chan struct{})}
	defaultTransport := http.DefaultTransport
	// go-fcm builds a bare http.Client, so it goes through the default transport.
	http.DefaultTransport = stalled
	t.Cleanup(func() {
		<-stalled.entered
		http.DefaultTransport = defaultTransport
		close(stalled.release)
	})

	cfg := &config.Config{}
	cfg.FCM.ServerKey = "key"
	s := &fcmSender{base{zaptest.NewLogger(t), cfg, defaultTransport}}

	tokens := make([]string, fcmBatchSize+500)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("t%d", i)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	delivery, err := s.Send(ctx, tokens, "title", "body")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	assert.Empty(t, delivery.Sent)
	require.Len(t, delivery.Failed, len(tokens))
	for _, failed := range delivery.Failed {
		assert.ErrorIs(t, failed.Err, context.DeadlineExceeded)
	}
}

func TestMailgunSendReportsPerRecipient(t *testing.T) {
	var mu sync.Mutex
	var recipients []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/mg.example.com/messages"), r.URL.Path)

		to := r.FormValue("to")
		mu.Lock()
		recipients = append(recipients, to)
		mu.Unlock()

		if to == "bounce@example.com" {
			http.Error(w, `{"message": "to parameter is not a valid address"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message": "Queued. Thank you.", "id": "<1@mg.example.com>"}`))
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.Mailgun.Domain = "mg.example.com"
	cfg.Mailgun.APIKey = "key-test"
	cfg.Mailgun.APIBase = srv.URL + "/v3"
	cfg.Mailgun.SenderFrom = "linewatch@example.com"
	cfg.Mailgun.RatePerSec = 100

	s := newMailgunSender(base{zaptest.NewLogger(t), cfg, http.DefaultTransport})
	delivery, err := s.Send(context.Background(), []string{"a@example.com", "bounce@example.com", "b@example.com"}, "RER A", "Trafic perturbé")
	require.NoError(t, err)

	assert.Equal(t, []string{"a@example.com", "b@example.com"}, delivery.Sent)
	require.Len(t, delivery.Failed, 1)
	assert.Equal(t, "bounce@example.com", delivery.Failed[0].Token)
	assert.Equal(t, []string{"a@example.com", "bounce@example.com", "b@example.com"}, recipients)
}

func TestMailgunRequiresConfig(t *testing.T) {
	s := newMailgunSender(base{zaptest.NewLogger(t), &config.Config{}, http.DefaultTransport})

	_, err := s.Send(context.Background(), []string{"a@example.com"}, "title", "body")
	assert.ErrorContains(t, err, "MAILGUN_DOMAIN")
}
