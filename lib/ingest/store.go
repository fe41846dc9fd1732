package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fiffu/linewatch/lib/models"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const knownIDsTTL = 24 * time.Hour

// Store persists disruptions. Uniqueness is enforced by the primary key; the
// in-memory set of known ids only short-circuits Exists.
type Store struct {
	db    *gorm.DB
	log   *zap.Logger
	known *cache.Cache
}

func NewStore(db *gorm.DB, log *zap.Logger) *Store {
	return &Store{db, log, cache.New(knownIDsTTL, time.Hour)}
}

func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	if _, ok := s.known.Get(id); ok {
		return true, nil
	}

	var found models.Disruption
	tx := s.db.WithContext(ctx).Select("id").Where("id = ?", id).Take(&found)
	switch err := tx.Error; {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("%w: lookup %s: %w", ErrStoreFailure, id, err)
	}

	s.remember(id)
	return true, nil
}

// Insert writes a new disruption. A row with the same id yields ErrAlreadyExists.
func (s *Store) Insert(ctx context.Context, d *models.Disruption) error {
	tx := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(d)
	if err := tx.Error; err != nil {
		return fmt.Errorf("%w: insert %s: %w", ErrStoreFailure, d.ID, err)
	}

	s.remember(d.ID)
	if tx.RowsAffected == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (s *Store) remember(id string) {
	s.known.Set(id, struct{}{}, cache.DefaultExpiration)
}
