package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/fiffu/linewatch/config"
	"github.com/fiffu/linewatch/lib/models"
	"github.com/fiffu/linewatch/lib/navitia"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

func subscribe(t *testing.T, db *gorm.DB, token string, lines ...string) {
	for _, line := range lines {
		require.NoError(t, db.Create(&models.Subscription{Token: token, Line: line}).Error)
	}
}

func countDisruptions(t *testing.T, db *gorm.DB) int64 {
	var n int64
	require.NoError(t, db.Model(&models.Disruption{}).Count(&n).Error)
	return n
}

func rawDisruption(id string, lines ...string) navitia.RawDisruption {
	raw := navitia.RawDisruption{
		ID:       id,
		Status:   "active",
		Cause:    "travaux",
		Severity: navitia.Severity{Effect: "SIGNIFICANT_DELAYS"},
		ApplicationPeriods: []navitia.ApplicationPeriod{
			{Begin: "20241010T100000", End: "20241010T200000"},
		},
		Messages: []navitia.Message{
			{Text: "Trafic perturbé " + id, Channel: navitia.Channel{Types: []string{"title"}}},
			{Text: "<p>Travaux sur la ligne</p>", Channel: navitia.Channel{Types: []string{"web", "email"}}},
		},
	}
	for _, line := range lines {
		raw.ImpactedObjects = append(raw.ImpactedObjects, navitia.ImpactedObject{PtObject: navitia.PtObject{ID: line}})
	}
	return raw
}

type fakeProvider struct {
	mu      sync.Mutex
	results []providerResult
	calls   int
}

type providerResult struct {
	disruptions []navitia.RawDisruption
	err         error
}

// FetchDisruptions replays results in order, repeating the last one.
func (p *fakeProvider) FetchDisruptions(ctx context.Context) ([]navitia.RawDisruption, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	res := p.results[min(p.calls, len(p.results)-1)]
	p.calls++
	return res.disruptions, res.err
}

func staticProvider(disruptions ...navitia.RawDisruption) *fakeProvider {
	return &fakeProvider{results: []providerResult{{disruptions: disruptions}}}
}

type sendCall struct {
	tokens      []string
	title, body string
}

type fakeGateway struct {
	mu    sync.Mutex
	calls []sendCall
	fail  map[string]bool
	err   error
}

func (g *fakeGateway) Send(ctx context.Context, tokens []string, title, body string) (*models.Delivery, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, sendCall{tokens, title, body})
	if g.err != nil {
		return nil, g.err
	}

	delivery := &models.Delivery{}
	for _, token := range tokens {
		if g.fail[token] {
			delivery.MarkFailed(errors.New("BadDeviceToken"), token)
		} else {
			delivery.MarkSent(token)
		}
	}
	return delivery, nil
}

func (g *fakeGateway) Calls() []sendCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sendCall(nil), g.calls...)
}

func newTestOrchestrator(t *testing.T, db *gorm.DB, provider Provider, gateway Gateway) *Orchestrator {
	cfg := &config.Config{}
	cfg.Ingest.Concurrency = 5
	log := zaptest.NewLogger(t)
	return NewOrchestrator(cfg, log, provider, NewStore(db, log), NewResolver(db), gateway)
}
