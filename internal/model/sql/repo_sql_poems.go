package sql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"codeverse/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreatePoemRecord inserts a new poem record into the database.
func (r *GormRepository) CreatePoemRecord(ctx context.Context, record *entity.DbPoemRecord) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if record == nil {
		return fmt.Errorf("record is nil")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("record id is empty")
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// GetPoemRecord retrieves a single poem record by ID.
func (r *GormRepository) GetPoemRecord(ctx context.Context, id string) (*entity.DbPoemRecord, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("invalid poem record id")
	}

	var record entity.DbPoemRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// ListPoemRecords retrieves paginated poem records.
func (r *GormRepository) ListPoemRecords(ctx context.Context, params *entity.PoemRecordQuery) ([]entity.DbPoemRecord, *entity.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, fmt.Errorf("repository not initialised")
	}

	query := r.db.WithContext(ctx).Model(&entity.DbPoemRecord{})
	if params != nil {
		if params.UserID > 0 {
			query = query.Where("user_id = ?", params.UserID)
		}
		if params.FavoriteOnly {
			query = query.Where("favorite = ?", true)
		}
		if trimmed := strings.TrimSpace(params.Language); trimmed != "" {
			query = query.Where("language = ?", trimmed)
		}
		if trimmed := strings.TrimSpace(params.Style); trimmed != "" {
			query = query.Where("style = ?", trimmed)
		}
	}

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, nil, err
	}

	page := 1
	pageSize := 20
	if params != nil {
		if params.Page > 0 {
			page = int(params.Page)
		}
		if params.PageSize > 0 {
			pageSize = int(params.PageSize)
		}
	}

	offset := (page - 1) * pageSize
	if offset < 0 {
		offset = 0
	}

	var records []entity.DbPoemRecord
	if err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(pageSize).Find(&records).Error; err != nil {
		return nil, nil, err
	}

	meta := r.calculatePagination(totalCount, page, pageSize)
	return records, meta, nil
}

// ListPoemRecordsByUser returns every record owned by the user, for sync.
func (r *GormRepository) ListPoemRecordsByUser(ctx context.Context, userID uint) ([]entity.DbPoemRecord, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if userID == 0 {
		return nil, fmt.Errorf("invalid user id")
	}

	var records []entity.DbPoemRecord
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// DeletePoemRecord removes a record and writes its tombstone in one
// transaction, so a deletion is never lost to sync.
func (r *GormRepository) DeletePoemRecord(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("invalid poem record id")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record entity.DbPoemRecord
		if err := tx.Where("id = ?", id).First(&record).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&entity.DbPoemRecord{}).Error; err != nil {
			return err
		}
		tombstone := entity.DbTombstone{
			RecordID:  record.ID,
			UserID:    record.UserID,
			DeletedAt: time.Now().UTC(),
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&tombstone).Error
	})
}

// PurgePoemRecord removes a record without writing a tombstone.
func (r *GormRepository) PurgePoemRecord(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("invalid poem record id")
	}
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.DbPoemRecord{}).Error
}

// SetPoemFavorite updates the only mutable field on a record.
func (r *GormRepository) SetPoemFavorite(ctx context.Context, id string, favorite bool, at time.Time) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("invalid poem record id")
	}

	result := r.db.WithContext(ctx).Model(&entity.DbPoemRecord{}).Where("id = ?", id).Updates(map[string]interface{}{
		"favorite":            favorite,
		"favorite_updated_at": at,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpsertPoemRecord writes a record pulled from the remote store, replacing
// any local copy with the same id.
func (r *GormRepository) UpsertPoemRecord(ctx context.Context, record *entity.DbPoemRecord) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if record == nil || strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("record is invalid")
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(record).Error
}

// ListTombstonesByUser returns pending deletion markers for the user.
func (r *GormRepository) ListTombstonesByUser(ctx context.Context, userID uint) ([]entity.DbTombstone, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if userID == 0 {
		return nil, fmt.Errorf("invalid user id")
	}

	var tombstones []entity.DbTombstone
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&tombstones).Error; err != nil {
		return nil, err
	}
	return tombstones, nil
}

// DeleteTombstone clears a deletion marker once it has been propagated.
func (r *GormRepository) DeleteTombstone(ctx context.Context, recordID string) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if strings.TrimSpace(recordID) == "" {
		return fmt.Errorf("invalid record id")
	}
	return r.db.WithContext(ctx).Where("record_id = ?", recordID).Delete(&entity.DbTombstone{}).Error
}
