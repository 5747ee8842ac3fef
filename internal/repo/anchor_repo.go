// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the anchor ledger: one insert-only row
// per anchored ContentID.
//
// Error semantics:
//   - When an entry is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - A second save for the same hash is ignored; the first receipt wins.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/tweet-anchoring/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// GetAnchor fetches the ledger entry for hash, or ErrNotFound.
func GetAnchor(ctx context.Context, db *gorm.DB, hash string) (*domain.AnchorEntry, error) {
	var e domain.AnchorEntry
	if err := db.WithContext(ctx).Where("hash = ?", hash).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// SaveAnchor inserts e unless an entry for the same hash exists. It reports
// whether a row was inserted.
func SaveAnchor(ctx context.Context, db *gorm.DB, e *domain.AnchorEntry) (bool, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "hash"}}, DoNothing: true}).
		Create(e)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CountAnchors returns the number of ledger entries for account, or for all
// accounts when account is empty.
func CountAnchors(ctx context.Context, db *gorm.DB, account string) (int64, error) {
	var total int64
	q := db.WithContext(ctx).Model(&domain.AnchorEntry{})
	if account != "" {
		q = q.Where("account = ?", account)
	}
	err := q.Count(&total).Error
	return total, err
}

// Ledger adapts the ledger functions to the pipeline's Ledger contract.
type Ledger struct {
	DB *gorm.DB
}

// GetAnchor returns nil without error when hash has no entry.
func (l *Ledger) GetAnchor(ctx context.Context, hash domain.ContentID) (*domain.AnchorEntry, error) {
	e, err := GetAnchor(ctx, l.DB, hash.String())
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return e, err
}

// SaveAnchor records e, keeping any earlier entry for the same hash.
func (l *Ledger) SaveAnchor(ctx context.Context, e domain.AnchorEntry) error {
	_, err := SaveAnchor(ctx, l.DB, &e)
	return err
}
