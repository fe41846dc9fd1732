package lib

import (
	"context"

	"github.com/fiffu/linewatch/lib/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ListedModes are the physical modes served by GET /lines.
var ListedModes = []string{
	"physical_mode:Tramway",
	"physical_mode:RapidTransit",
	"physical_mode:Metro",
	"physical_mode:LocalTrain",
}

type catalog struct {
	log   *zap.Logger
	db    *gorm.DB
	lines LineCatalog
}

// ImportLines refreshes the line catalog from the provider.
func (svc *catalog) ImportLines(ctx context.Context) (int, error) {
	raws, err := svc.lines.FetchLines(ctx)
	if err != nil {
		return 0, err
	}
	if len(raws) == 0 {
		return 0, nil
	}

	lines := make(models.Lines, len(raws))
	for i, raw := range raws {
		lines[i] = models.Line{
			ID:          raw.ID,
			Name:        raw.Code,
			Description: raw.Name,
			Mode:        raw.Mode(),
			Color:       raw.Color,
			TextColor:   raw.TextColor,
		}
	}

	tx := svc.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(&lines, 200)
	if err := tx.Error; err != nil {
		return 0, err
	}

	svc.log.Sugar().Infof("Imported %d lines", len(lines))
	return len(lines), nil
}

func (svc *catalog) ListLines(ctx context.Context) (models.Lines, error) {
	var lines models.Lines
	tx := svc.db.WithContext(ctx).
		Where("mode IN ?", ListedModes).
		Order("mode ASC").
		Order("name ASC").
		Find(&lines)
	if err := tx.Error; err != nil {
		return nil, err
	}
	return lines, nil
}
