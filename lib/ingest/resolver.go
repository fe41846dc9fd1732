package ingest

import (
	"context"
	"fmt"

	"github.com/fiffu/linewatch/lib/models"
	"gorm.io/gorm"
)

type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db}
}

// TokensForLine returns the tokens subscribed to one line id.
func (r *Resolver) TokensForLine(ctx context.Context, lineID string) ([]string, error) {
	return r.tokensFor(ctx, []string{lineID})
}

// TokensForDisruption returns the deduplicated union of tokens subscribed to
// any affected line. Subscriptions registered against the combined
// multi-line key are matched too.
func (r *Resolver) TokensForDisruption(ctx context.Context, d *models.Disruption) ([]string, error) {
	keys := d.Lines()
	if len(keys) > 1 {
		keys = append(keys, d.Line)
	}
	return r.tokensFor(ctx, keys)
}

func (r *Resolver) tokensFor(ctx context.Context, keys []string) ([]string, error) {
	tokens := make([]string, 0)
	if len(keys) == 0 {
		return tokens, nil
	}

	tx := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Distinct().
		Where("line IN ?", keys).
		Order("token").
		Pluck("token", &tokens)
	if err := tx.Error; err != nil {
		return nil, fmt.Errorf("%w: resolve subscribers: %w", ErrStoreFailure, err)
	}
	return tokens, nil
}
