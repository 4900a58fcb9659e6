package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"codeverse/internal/entity"
	"codeverse/internal/quota"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	// ErrAccountNotFound 账户不存在；首次使用时由调用方创建默认账户
	ErrAccountNotFound = errors.New("account not found")
	// ErrStorageUnavailable 持久层不可用；配额提交前发生时整个尝试失败
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Store 是 Ledger 依赖的最小持久化接口，由 model.Repository 满足。
type Store interface {
	GetUserByID(ctx context.Context, id uint) (*entity.DbUser, error)
	UpdateUser(ctx context.Context, id uint, updates entity.UserUpdates) error
	CommitUsage(ctx context.Context, id uint) error
	ResetDailyUsage(ctx context.Context, id uint, day string) error
}

// Ledger 维护每个账户的用量计数，并提供按账户串行化的保护。
//
// 同一账户的配额判定与提交必须作为一对原子操作执行，两次并发尝试不允许
// 同时通过同一个边界检查；不同账户互不影响。
type Ledger struct {
	store Store

	mu sync.Mutex
	// locks 按账户惰性创建，进程生命周期内不回收；
	// 每条目一个裸 mutex，活跃账户数在百万级以下时无需驱逐
	locks map[uint]*sync.Mutex
}

// New 创建 Ledger。
func New(store Store) *Ledger {
	return &Ledger{
		store: store,
		locks: make(map[uint]*sync.Mutex),
	}
}

// LockAccount 获取账户级互斥锁，返回解锁函数。
// 一次生成尝试从判定到提交全程持有该锁。
func (l *Ledger) LockAccount(accountID uint) func() {
	l.mu.Lock()
	lock, ok := l.locks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[accountID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Today 返回 UTC 日历日，格式 YYYY-MM-DD。配额不信任客户端时区。
func Today(now time.Time) string {
	return now.UTC().Format(time.DateOnly)
}

// Load 加载账户；不存在返回 ErrAccountNotFound。
func (l *Ledger) Load(ctx context.Context, accountID uint) (*entity.DbUser, error) {
	user, err := l.store.GetUserByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return user, nil
}

// RolloverIfNeeded 执行惰性日切：跨过日历日边界后首次访问时清零当日计数。
// 没有后台任务，日切只由访问触发。重置日期只会前移。
func (l *Ledger) RolloverIfNeeded(ctx context.Context, user *entity.DbUser, today string) error {
	if user == nil {
		return fmt.Errorf("user is nil")
	}
	if user.LastResetDate == today {
		return nil
	}
	if user.LastResetDate > today {
		// 本地时钟回拨等异常，保持现状
		logrus.WithFields(logrus.Fields{
			"account_id": user.ID,
			"last_reset": user.LastResetDate,
			"today":      today,
		}).Warn("reset date ahead of today, skipping rollover")
		return nil
	}

	if err := l.store.ResetDailyUsage(ctx, user.ID, today); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	user.TodayCount = 0
	user.LastResetDate = today
	return nil
}

// CommitGeneration 在一次生成成功后提交用量：两个计数各加一，持久化，
// 并同步更新内存中的账户。每次成功生成至多提交一次，外部调用成功前
// 决不提前提交。
func (l *Ledger) CommitGeneration(ctx context.Context, user *entity.DbUser) error {
	if user == nil {
		return fmt.Errorf("user is nil")
	}

	if err := l.store.CommitUsage(ctx, user.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	user.LifetimeCount++
	user.TodayCount++
	return nil
}

// SetTier 覆盖账户等级，计数保持不变。
// guest 升级为正式账户时用量随之保留，升级不重置配额。
func (l *Ledger) SetTier(ctx context.Context, accountID uint, tier quota.Tier) error {
	unlock := l.LockAccount(accountID)
	defer unlock()

	updates := entity.UserUpdates{Tier: &tier}
	if err := l.store.UpdateUser(ctx, accountID, updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}
