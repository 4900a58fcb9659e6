package sql

import (
	"context"
	"errors"
	"testing"

	"codeverse/internal/entity"
	"codeverse/internal/quota"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) *GormRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&entity.DbUser{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewGormRepository(db)
}

func strPtr(s string) *string { return &s }

func TestCreateUserDuplicateEmail(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := &entity.DbUser{
		Email:         strPtr("dup@example.com"),
		Role:          entity.UserRoleUser,
		Tier:          quota.TierFree,
		LastResetDate: "2025-06-02",
		IsActive:      true,
	}
	if err := repo.CreateUser(ctx, first); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	second := &entity.DbUser{
		Email:         strPtr("dup@example.com"),
		Role:          entity.UserRoleUser,
		Tier:          quota.TierFree,
		LastResetDate: "2025-06-02",
		IsActive:      true,
	}
	err := repo.CreateUser(ctx, second)
	if err == nil {
		t.Fatalf("second account with the same email must be rejected, got ids %d and %d", first.ID, second.ID)
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected gorm.ErrDuplicatedKey, got %v", err)
	}
}

func TestCreateUserGuestsWithoutEmail(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// 访客账户的 email 为 NULL，唯一索引不应把多个访客视为冲突
	for i := 0; i < 3; i++ {
		guest := &entity.DbUser{
			Role:          entity.UserRoleUser,
			Tier:          quota.TierGuest,
			LastResetDate: "2025-06-02",
			IsActive:      true,
		}
		if err := repo.CreateUser(ctx, guest); err != nil {
			t.Fatalf("guest %d create failed: %v", i, err)
		}
	}
}
