package model

import (
	"context"
	"time"

	"codeverse/internal/entity"
)

// Repository 定义数据库操作接口
type Repository interface {
	// 用户与配额计数
	CreateUser(ctx context.Context, user *entity.DbUser) error
	GetUserByID(ctx context.Context, id uint) (*entity.DbUser, error)
	GetUserByEmail(ctx context.Context, email string) (*entity.DbUser, error)
	UpdateUser(ctx context.Context, id uint, updates entity.UserUpdates) error
	ListUsers(ctx context.Context, params *entity.UserQuery) ([]entity.DbUser, *entity.Meta, error)
	CountUsers(ctx context.Context) (int64, error)

	// CommitUsage 在一条语句内同时递增 lifetime_count 与 today_count
	CommitUsage(ctx context.Context, id uint) error
	// ResetDailyUsage 将 today_count 清零并前移 last_reset_date；
	// 日期只会前移，重复调用无副作用
	ResetDailyUsage(ctx context.Context, id uint, day string) error

	// 诗歌记录
	CreatePoemRecord(ctx context.Context, record *entity.DbPoemRecord) error
	GetPoemRecord(ctx context.Context, id string) (*entity.DbPoemRecord, error)
	ListPoemRecords(ctx context.Context, params *entity.PoemRecordQuery) ([]entity.DbPoemRecord, *entity.Meta, error)
	ListPoemRecordsByUser(ctx context.Context, userID uint) ([]entity.DbPoemRecord, error)
	// DeletePoemRecord 删除记录并在同一事务内写入墓碑
	DeletePoemRecord(ctx context.Context, id string) error
	// PurgePoemRecord 仅删除记录，不写墓碑（应用远端墓碑时使用）
	PurgePoemRecord(ctx context.Context, id string) error
	SetPoemFavorite(ctx context.Context, id string, favorite bool, at time.Time) error
	// UpsertPoemRecord 同步拉取时写入远端记录
	UpsertPoemRecord(ctx context.Context, record *entity.DbPoemRecord) error

	// 墓碑
	ListTombstonesByUser(ctx context.Context, userID uint) ([]entity.DbTombstone, error)
	DeleteTombstone(ctx context.Context, recordID string) error
}
