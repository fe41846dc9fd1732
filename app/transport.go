package app

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// NewTransport is shared by every outbound client (provider, mailgun, apns).
func NewTransport(log *zap.Logger) http.RoundTripper {
	return &transport{http.DefaultTransport, log}
}

type transport struct {
	base http.RoundTripper
	log  *zap.Logger
}

func (tpt *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	res, err := tpt.base.RoundTrip(req)
	elapsed := time.Since(start).Milliseconds()

	// Query strings may carry credentials.
	url := req.URL.Scheme + "://" + req.URL.Host + req.URL.Path
	if err != nil {
		tpt.log.Sugar().Warnw("Outbound request failed", "method", req.Method, "url", url, "elapsed_msecs", elapsed, "err", err)
		return nil, err
	}
	tpt.log.Sugar().Debugw("Outbound request", "method", req.Method, "url", url, "status", res.StatusCode, "elapsed_msecs", elapsed)
	return res, nil
}
