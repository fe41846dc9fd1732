package lib

import (
	"context"

	"github.com/fiffu/linewatch/lib/models"
	"gorm.io/gorm"
)

// DisruptionDetail pairs a stored disruption with the catalog entries of the
// lines it affects. Lines missing from the catalog are left out.
type DisruptionDetail struct {
	models.Disruption
	AffectedLines models.Lines
}

type disruptions struct {
	db *gorm.DB
}

func (svc *disruptions) ListDisruptions(ctx context.Context) ([]DisruptionDetail, error) {
	var found models.Disruptions
	tx := svc.db.WithContext(ctx).Order("start_date DESC").Find(&found)
	if err := tx.Error; err != nil {
		return nil, err
	}
	return svc.withLines(ctx, found)
}

// DisruptionsForToken lists disruptions affecting any line the token follows.
func (svc *disruptions) DisruptionsForToken(ctx context.Context, token string) ([]DisruptionDetail, error) {
	var found models.Disruptions
	tx := svc.db.WithContext(ctx).
		Where(`EXISTS (
			SELECT 1 FROM subscriptions
			WHERE subscriptions.token = ?
			AND instr(' ' || disruptions.line || ' ', ' ' || subscriptions.line || ' ') > 0
		)`, token).
		Order("start_date DESC").
		Find(&found)
	if err := tx.Error; err != nil {
		return nil, err
	}
	return svc.withLines(ctx, found)
}

func (svc *disruptions) withLines(ctx context.Context, found models.Disruptions) ([]DisruptionDetail, error) {
	ids := make([]string, 0)
	for i := range found {
		ids = append(ids, found[i].Lines()...)
	}

	byID := make(map[string]models.Line)
	if len(ids) > 0 {
		var lines models.Lines
		if err := svc.db.WithContext(ctx).Where("id IN ?", ids).Find(&lines).Error; err != nil {
			return nil, err
		}
		for _, line := range lines {
			byID[line.ID] = line
		}
	}

	details := make([]DisruptionDetail, len(found))
	for i, d := range found {
		details[i] = DisruptionDetail{Disruption: d, AffectedLines: models.Lines{}}
		for _, id := range d.Lines() {
			if line, ok := byID[id]; ok {
				details[i].AffectedLines = append(details[i].AffectedLines, line)
			}
		}
	}
	return details, nil
}
