package lib

import (
	"context"

	"github.com/fiffu/linewatch/config"
	"github.com/fiffu/linewatch/lib/navitia"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type LineCatalog interface {
	FetchLines(ctx context.Context) ([]navitia.RawLine, error)
}

type CycleTrigger interface {
	Trigger()
}

// Service backs the HTTP surface. The ingestion pipeline shares its database
// handle but never goes through it.
type Service struct {
	cfg    *config.Config
	log    *zap.Logger
	db     *gorm.DB
	cycles CycleTrigger

	*registration
	*catalog
	*disruptions
}

func NewService(cfg *config.Config, log *zap.Logger, db *gorm.DB, lines LineCatalog, cycles CycleTrigger) *Service {
	return &Service{
		cfg, log, db, cycles,
		&registration{log, db},
		&catalog{log, db, lines},
		&disruptions{db},
	}
}

// TriggerCycle starts an ingestion cycle in the background unless one is
// already running.
func (svc *Service) TriggerCycle() {
	svc.log.Sugar().Info("Ingestion cycle requested")
	go svc.cycles.Trigger()
}
