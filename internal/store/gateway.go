package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/feral-file/ff-dao-mirror/internal/domain"
	"github.com/feral-file/ff-dao-mirror/internal/logger"
)

// record is a row addressed by a string id
type record interface {
	GetID() string
	SetID(id string)
}

// NewID returns a new record id
func NewID() string {
	return ulid.Make().String()
}

// upsert stores rec by its natural key. The existing row is looked up first so that
// a failed write can report what was there before. The write itself is a single
// INSERT ... ON CONFLICT DO UPDATE ... RETURNING id, which makes it atomic per key.
//
// On failure the error wraps domain.ErrPersistenceWrite and the returned id is the
// id found by the lookup, or "" when no row existed. The id is never fabricated.
func upsert[T any, PT interface {
	*T
	record
}](ctx context.Context, db *gorm.DB, rec PT, naturalKey map[string]any, updateColumns []string) (string, error) {
	var existing T
	existingID := ""
	err := db.WithContext(ctx).Select("id").Where(naturalKey).Take(&existing).Error
	switch {
	case err == nil:
		existingID = PT(&existing).GetID()
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		logger.WarnCtx(ctx, "Natural key lookup failed", zap.Error(err), zap.Any("key", naturalKey))
	}

	if existingID != "" {
		rec.SetID(existingID)
	} else if rec.GetID() == "" {
		rec.SetID(NewID())
	}
	candidateID := rec.GetID()

	keys := make([]string, 0, len(naturalKey))
	for k := range naturalKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	conflict := make([]clause.Column, 0, len(keys))
	for _, k := range keys {
		conflict = append(conflict, clause.Column{Name: k})
	}

	err = db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns:   conflict,
				DoUpdates: clause.AssignmentColumns(updateColumns),
			},
			clause.Returning{Columns: []clause.Column{{Name: "id"}}},
		).
		Create(rec).Error
	if err != nil {
		logger.ErrorCtx(ctx, err, zap.String("message", "Upsert failed"), zap.Any("key", naturalKey))
		rec.SetID(existingID)
		return existingID, fmt.Errorf("%w: %v", domain.ErrPersistenceWrite, err)
	}

	if rec.GetID() == "" {
		// RETURNING produced no row; the insert path used our candidate id
		rec.SetID(candidateID)
	}

	return rec.GetID(), nil
}
