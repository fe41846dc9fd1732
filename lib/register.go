package lib

import (
	"context"
	"errors"

	"github.com/fiffu/linewatch/lib/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrMissingFields     = errors.New("token or line aren't present")
	ErrAlreadyRegistered = errors.New("token is already registered on this line")
)

type registration struct {
	log *zap.Logger
	db  *gorm.DB
}

func (svc *registration) Register(ctx context.Context, token, line string) error {
	if token == "" || line == "" {
		return ErrMissingFields
	}

	sub := &models.Subscription{Token: token, Line: line}
	tx := svc.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(sub)
	if err := tx.Error; err != nil {
		return err
	}
	if tx.RowsAffected == 0 {
		return ErrAlreadyRegistered
	}

	svc.log.Sugar().Infof("Registered on line %s with token %s", line, token)
	return nil
}

// Unregister deletes the subscription and reports whether one existed.
func (svc *registration) Unregister(ctx context.Context, token, line string) (bool, error) {
	tx := svc.db.WithContext(ctx).
		Where("token = ? AND line = ?", token, line).
		Delete(&models.Subscription{})
	if err := tx.Error; err != nil {
		return false, err
	}
	return tx.RowsAffected > 0, nil
}

func (svc *registration) SubscribedLines(ctx context.Context, token string) ([]string, error) {
	lines := make([]string, 0)
	tx := svc.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("token = ?", token).
		Order("id").
		Pluck("line", &lines)
	if err := tx.Error; err != nil {
		return nil, err
	}
	return lines, nil
}
