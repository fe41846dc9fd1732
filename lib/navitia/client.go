package navitia

import (
	"context"
	"net/http"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/fiffu/linewatch/config"
	"go.uber.org/zap"
)

type Client struct {
	log       *zap.Logger
	transport http.RoundTripper

	baseURL     string
	apiKey      string
	linesFilter string
	timeout     time.Duration
}

func NewClient(cfg *config.Config, log *zap.Logger, transport http.RoundTripper) *Client {
	return &Client{
		log:         log,
		transport:   transport,
		baseURL:     cfg.Provider.BaseURL,
		apiKey:      cfg.Provider.APIKey,
		linesFilter: cfg.Provider.LinesFilter,
		timeout:     cfg.ProviderTimeout(),
	}
}

// FetchDisruptions returns the disruptions currently attached to the filtered lines.
func (c *Client) FetchDisruptions(ctx context.Context) ([]RawDisruption, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var envelope linesEnvelope
	err := c.linesRequest().
		Param("filter", c.linesFilter).
		Param("count", "50").
		Param("disable_geojson", "true").
		ToJSON(&envelope).
		Fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.log.Sugar().Debugw("Fetched disruptions", "count", len(envelope.Disruptions))
	return envelope.Disruptions, nil
}

// FetchLines returns the full line catalog without disruptions.
func (c *Client) FetchLines(ctx context.Context) ([]RawLine, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var envelope linesEnvelope
	err := c.linesRequest().
		Param("disable_disruption", "true").
		Param("disable_geojson", "true").
		Param("count", "2000").
		ToJSON(&envelope).
		Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return envelope.Lines, nil
}

func (c *Client) linesRequest() *requests.Builder {
	return requests.URL(c.baseURL+"/lines").
		Transport(c.transport).
		Header("apiKey", c.apiKey).
		Accept("application/json")
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
