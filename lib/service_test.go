package lib

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fiffu/linewatch/config"
	"github.com/fiffu/linewatch/lib/models"
	"github.com/fiffu/linewatch/lib/navitia"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeCatalog struct {
	lines []navitia.RawLine
	err   error
}

func (f *fakeCatalog) FetchLines(ctx context.Context) ([]navitia.RawLine, error) {
	return f.lines, f.err
}

type countingTrigger struct {
	n atomic.Int32
}

func (c *countingTrigger) Trigger() { c.n.Add(1) }

func newTestService(t *testing.T, catalog LineCatalog) (*Service, *gorm.DB, *countingTrigger) {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(
		sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, models.AutoMigrate(db))

	trigger := &countingTrigger{}
	svc := NewService(&config.Config{}, zaptest.NewLogger(t), db, catalog, trigger)
	return svc, db, trigger
}

func TestRegister(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeCatalog{})
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "tok", "line:A"))
	require.NoError(t, svc.Register(ctx, "tok", "line:B"))

	err := svc.Register(ctx, "tok", "line:A")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	assert.ErrorIs(t, svc.Register(ctx, "", "line:A"), ErrMissingFields)
	assert.ErrorIs(t, svc.Register(ctx, "tok", ""), ErrMissingFields)

	lines, err := svc.SubscribedLines(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, []string{"line:A", "line:B"}, lines)
}

func TestUnregister(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeCatalog{})
	ctx := context.Background()
	require.NoError(t, svc.Register(ctx, "tok", "line:A"))

	removed, err := svc.Unregister(ctx, "tok", "line:A")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = svc.Unregister(ctx, "tok", "line:A")
	require.NoError(t, err)
	assert.False(t, removed)

	lines, err := svc.SubscribedLines(ctx, "tok")
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.NotNil(t, lines)
}

func TestImportAndListLines(t *testing.T) {
	catalog := &fakeCatalog{lines: []navitia.RawLine{
		{ID: "line:T3", Code: "T3a", Name: "Pont du Garigliano - Porte de Vincennes", PhysicalModes: []navitia.PhysicalMode{{ID: "physical_mode:Tramway"}}},
		{ID: "line:A", Code: "A", Name: "RER A", Color: "E2231A", TextColor: "FFFFFF", PhysicalModes: []navitia.PhysicalMode{{ID: "physical_mode:RapidTransit"}}},
		{ID: "line:91", Code: "91", Name: "Bus 91", PhysicalModes: []navitia.PhysicalMode{{ID: "physical_mode:Bus"}}},
	}}
	svc, _, _ := newTestService(t, catalog)
	ctx := context.Background()

	n, err := svc.ImportLines(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Re-import updates in place.
	catalog.lines[1].Name = "RER A (Boissy - Cergy)"
	_, err = svc.ImportLines(ctx)
	require.NoError(t, err)

	lines, err := svc.ListLines(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, "line:A", lines[0].ID)
	assert.Equal(t, "A", lines[0].Name)
	assert.Equal(t, "RER A (Boissy - Cergy)", lines[0].Description)
	assert.Equal(t, "physical_mode:RapidTransit", lines[0].Mode)
	assert.Equal(t, "E2231A", lines[0].Color)
	assert.Equal(t, "line:T3", lines[1].ID)
}

func TestImportLinesProviderError(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeCatalog{err: errors.New("boom")})

	_, err := svc.ImportLines(context.Background())
	assert.ErrorContains(t, err, "boom")
}

func seedDisruptions(t *testing.T, db *gorm.DB) {
	disruptions := models.Disruptions{
		{ID: "d1", Line: "line:A", StartDate: "20241001T000000", Message: sql.NullString{String: "Travaux", Valid: true}},
		{ID: "d2", Line: "line:B line:C", StartDate: "20241002T000000"},
		{ID: "d3", Line: "line:AB", StartDate: "20241003T000000"},
	}
	require.NoError(t, db.Create(&disruptions).Error)
	require.NoError(t, db.Create(&models.Line{ID: "line:A", Name: "A", Mode: "physical_mode:RapidTransit"}).Error)
	require.NoError(t, db.Create(&models.Line{ID: "line:C", Name: "C", Mode: "physical_mode:RapidTransit"}).Error)
}

func TestListDisruptions(t *testing.T) {
	svc, db, _ := newTestService(t, &fakeCatalog{})
	seedDisruptions(t, db)

	found, err := svc.ListDisruptions(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 3)

	assert.Equal(t, "d3", found[0].ID)
	assert.Empty(t, found[0].AffectedLines)

	assert.Equal(t, "d2", found[1].ID)
	require.Len(t, found[1].AffectedLines, 1)
	assert.Equal(t, "line:C", found[1].AffectedLines[0].ID)

	assert.Equal(t, "d1", found[2].ID)
	assert.Equal(t, "Travaux", found[2].Message.String)
}

func TestDisruptionsForToken(t *testing.T) {
	svc, db, _ := newTestService(t, &fakeCatalog{})
	seedDisruptions(t, db)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "tok", "line:A"))
	require.NoError(t, svc.Register(ctx, "tok", "line:C"))
	require.NoError(t, svc.Register(ctx, "legacy", "line:B line:C"))

	found, err := svc.DisruptionsForToken(ctx, "tok")
	require.NoError(t, err)
	ids := make([]string, len(found))
	for i, d := range found {
		ids[i] = d.ID
	}
	// line:AB must not match a subscription to line:A.
	assert.Equal(t, []string{"d2", "d1"}, ids)

	found, err = svc.DisruptionsForToken(ctx, "legacy")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "d2", found[0].ID)

	found, err = svc.DisruptionsForToken(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestTriggerCycle(t *testing.T) {
	svc, _, trigger := newTestService(t, &fakeCatalog{})

	svc.TriggerCycle()
	assert.Eventually(t, func() bool { return trigger.n.Load() == 1 }, time.Second, 10*time.Millisecond)
}
