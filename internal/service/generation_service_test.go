package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"codeverse/internal/entity"
	"codeverse/internal/ledger"
	"codeverse/internal/llm"
	"codeverse/internal/quota"

	"gorm.io/gorm"
)

type fakeLedgerStore struct {
	users map[uint]*entity.DbUser

	commitErr error
}

func (s *fakeLedgerStore) GetUserByID(ctx context.Context, id uint) (*entity.DbUser, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *fakeLedgerStore) UpdateUser(ctx context.Context, id uint, updates entity.UserUpdates) error {
	user, ok := s.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if updates.Tier != nil {
		user.Tier = *updates.Tier
	}
	return nil
}

func (s *fakeLedgerStore) CommitUsage(ctx context.Context, id uint) error {
	if s.commitErr != nil {
		return s.commitErr
	}
	user, ok := s.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.LifetimeCount++
	user.TodayCount++
	return nil
}

func (s *fakeLedgerStore) ResetDailyUsage(ctx context.Context, id uint, day string) error {
	user, ok := s.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if user.LastResetDate < day {
		user.TodayCount = 0
		user.LastResetDate = day
	}
	return nil
}

type fakePoet struct {
	poem  string
	err   error
	calls int
}

func (p *fakePoet) ComposePoem(ctx context.Context, request llm.PoemRequest) (*llm.PoemResponse, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &llm.PoemResponse{Poem: p.poem, Provider: "fake", Model: "fake-model"}, nil
}

func (p *fakePoet) ProviderID() string { return "fake" }

type fakeRecordRepo struct {
	fakeLedgerStore

	records   []*entity.DbPoemRecord
	createErr error
}

func (r *fakeRecordRepo) CreatePoemRecord(ctx context.Context, record *entity.DbPoemRecord) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.records = append(r.records, record)
	return nil
}

// 其余 Repository 方法本测试不会触达
func (r *fakeRecordRepo) CreateUser(ctx context.Context, user *entity.DbUser) error { return nil }
func (r *fakeRecordRepo) GetUserByEmail(ctx context.Context, email string) (*entity.DbUser, error) {
	return nil, gorm.ErrRecordNotFound
}
func (r *fakeRecordRepo) ListUsers(ctx context.Context, params *entity.UserQuery) ([]entity.DbUser, *entity.Meta, error) {
	return nil, nil, nil
}
func (r *fakeRecordRepo) CountUsers(ctx context.Context) (int64, error) { return 0, nil }
func (r *fakeRecordRepo) GetPoemRecord(ctx context.Context, id string) (*entity.DbPoemRecord, error) {
	return nil, gorm.ErrRecordNotFound
}
func (r *fakeRecordRepo) ListPoemRecords(ctx context.Context, params *entity.PoemRecordQuery) ([]entity.DbPoemRecord, *entity.Meta, error) {
	return nil, nil, nil
}
func (r *fakeRecordRepo) ListPoemRecordsByUser(ctx context.Context, userID uint) ([]entity.DbPoemRecord, error) {
	return nil, nil
}
func (r *fakeRecordRepo) DeletePoemRecord(ctx context.Context, id string) error { return nil }
func (r *fakeRecordRepo) PurgePoemRecord(ctx context.Context, id string) error  { return nil }
func (r *fakeRecordRepo) SetPoemFavorite(ctx context.Context, id string, favorite bool, at time.Time) error {
	return nil
}
func (r *fakeRecordRepo) UpsertPoemRecord(ctx context.Context, record *entity.DbPoemRecord) error {
	return nil
}
func (r *fakeRecordRepo) ListTombstonesByUser(ctx context.Context, userID uint) ([]entity.DbTombstone, error) {
	return nil, nil
}
func (r *fakeRecordRepo) DeleteTombstone(ctx context.Context, recordID string) error { return nil }

func newTestService(repo *fakeRecordRepo, poet *fakePoet) *GenerationService {
	svc := NewGenerationService(repo, ledger.New(&repo.fakeLedgerStore), quota.DefaultPolicy(), poet, 10000, time.Minute)
	svc.now = func() time.Time { return time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC) }
	return svc
}

func newTestRepo(user *entity.DbUser) *fakeRecordRepo {
	repo := &fakeRecordRepo{}
	repo.users = map[uint]*entity.DbUser{user.ID: user}
	return repo
}

func TestGeneratePoemSuccess(t *testing.T) {
	repo := newTestRepo(&entity.DbUser{ID: 1, Tier: quota.TierFree, TodayCount: 2, LifetimeCount: 9, LastResetDate: "2025-06-02"})
	poet := &fakePoet{poem: "silent goroutines\nawait the final channel\nclose brings them to rest"}
	svc := newTestService(repo, poet)

	result, err := svc.GeneratePoem(context.Background(), 1, entity.GeneratePoemRequest{
		Code:     "func main() {}",
		Language: "go",
		Style:    "haiku",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Record == nil || result.Record.PoemText != poet.poem {
		t.Fatalf("unexpected record: %+v", result.Record)
	}
	if result.Record.ID == "" {
		t.Error("record must get an id")
	}
	if result.PersistWarning != "" {
		t.Errorf("unexpected persist warning: %q", result.PersistWarning)
	}
	if len(repo.records) != 1 {
		t.Fatalf("expected 1 persisted record, got %d", len(repo.records))
	}

	user := repo.users[1]
	if user.TodayCount != 3 || user.LifetimeCount != 10 {
		t.Errorf("counters should advance exactly once: %+v", user)
	}
}

func TestGeneratePoemQuotaDenied(t *testing.T) {
	tests := []struct {
		name       string
		user       entity.DbUser
		wantReason quota.DenyReason
	}{
		{
			name:       "free 当日额度用尽",
			user:       entity.DbUser{ID: 1, Tier: quota.TierFree, TodayCount: 5, LifetimeCount: 40, LastResetDate: "2025-06-02"},
			wantReason: quota.DenyDailyLimitReached,
		},
		{
			name:       "guest 累计额度用尽",
			user:       entity.DbUser{ID: 1, Tier: quota.TierGuest, TodayCount: 0, LifetimeCount: 3, LastResetDate: "2025-06-02"},
			wantReason: quota.DenyLifetimeLimitReached,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := tt.user
			repo := newTestRepo(&user)
			poet := &fakePoet{poem: "unused"}
			svc := newTestService(repo, poet)

			_, err := svc.GeneratePoem(context.Background(), 1, entity.GeneratePoemRequest{Code: "x"})

			var quotaErr *quota.Error
			if !errors.As(err, &quotaErr) {
				t.Fatalf("expected quota error, got %v", err)
			}
			if quotaErr.Reason != tt.wantReason {
				t.Errorf("expected reason %q, got %q", tt.wantReason, quotaErr.Reason)
			}
			// 拒绝时绝不触碰服务商，也不动计数
			if poet.calls != 0 {
				t.Errorf("provider must not be called on denial, got %d calls", poet.calls)
			}
			if got := repo.users[1]; got.TodayCount != tt.user.TodayCount || got.LifetimeCount != tt.user.LifetimeCount {
				t.Errorf("counters must not change on denial: %+v", got)
			}
		})
	}
}

func TestGeneratePoemConcurrentBoundary(t *testing.T) {
	tests := []struct {
		name       string
		user       entity.DbUser
		wantReason quota.DenyReason
	}{
		{
			name:       "free 还剩最后一次",
			user:       entity.DbUser{ID: 1, Tier: quota.TierFree, TodayCount: 4, LifetimeCount: 10, LastResetDate: "2025-06-02"},
			wantReason: quota.DenyDailyLimitReached,
		},
		{
			name:       "guest 还剩最后一次",
			user:       entity.DbUser{ID: 1, Tier: quota.TierGuest, TodayCount: 1, LifetimeCount: 2, LastResetDate: "2025-06-02"},
			wantReason: quota.DenyLifetimeLimitReached,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := tt.user
			repo := newTestRepo(&user)
			poet := &fakePoet{poem: "last one through the gate"}
			svc := newTestService(repo, poet)

			errs := make([]error, 2)
			var wg sync.WaitGroup
			for i := 0; i < 2; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = svc.GeneratePoem(context.Background(), 1, entity.GeneratePoemRequest{Code: "x"})
				}(i)
			}
			wg.Wait()

			// 账户锁串行化两次请求：恰好一次放行，一次被额度拒绝
			var success, denied int
			for _, err := range errs {
				if err == nil {
					success++
					continue
				}
				var quotaErr *quota.Error
				if !errors.As(err, &quotaErr) {
					t.Fatalf("unexpected error kind: %v", err)
				}
				if quotaErr.Reason != tt.wantReason {
					t.Errorf("expected reason %q, got %q", tt.wantReason, quotaErr.Reason)
				}
				denied++
			}
			if success != 1 || denied != 1 {
				t.Fatalf("expected exactly one success and one denial, got %d/%d", success, denied)
			}
			if poet.calls != 1 {
				t.Errorf("provider must be called exactly once, got %d", poet.calls)
			}
			got := repo.users[1]
			if got.TodayCount != tt.user.TodayCount+1 || got.LifetimeCount != tt.user.LifetimeCount+1 {
				t.Errorf("counters must advance exactly once: %+v", got)
			}
			if len(repo.records) != 1 {
				t.Errorf("expected exactly one persisted record, got %d", len(repo.records))
			}
		})
	}
}

func TestGeneratePoemRolloverUnblocks(t *testing.T) {
	// 昨天把当日额度用光，跨天后第一次请求应放行
	repo := newTestRepo(&entity.DbUser{ID: 1, Tier: quota.TierFree, TodayCount: 5, LifetimeCount: 20, LastResetDate: "2025-06-01"})
	poet := &fakePoet{poem: "a poem"}
	svc := newTestService(repo, poet)

	result, err := svc.GeneratePoem(context.Background(), 1, entity.GeneratePoemRequest{Code: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Record == nil {
		t.Fatal("expected a record")
	}

	user := repo.users[1]
	if user.LastResetDate != "2025-06-02" {
		t.Errorf("expected rollover to 2025-06-02, got %s", user.LastResetDate)
	}
	if user.TodayCount != 1 {
		t.Errorf("expected today count 1 after rollover and commit, got %d", user.TodayCount)
	}
}

func TestGeneratePoemValidation(t *testing.T) {
	repo := newTestRepo(&entity.DbUser{ID: 1, Tier: quota.TierPro, LastResetDate: "2025-06-02"})
	poet := &fakePoet{poem: "unused"}
	svc := newTestService(repo, poet)

	t.Run("空代码", func(t *testing.T) {
		_, err := svc.GeneratePoem(context.Background(), 1, entity.GeneratePoemRequest{Code: "   \n\t"})
		if !errors.Is(err, ErrInputEmpty) {
			t.Errorf("expected ErrInputEmpty, got %v", err)
		}
	})

	t.Run("超长代码", func(t *testing.T) {
		_, err := svc.GeneratePoem(context.Background(), 1, entity.GeneratePoemRequest{Code: strings.Repeat("a", 10001)})
		if !errors.Is(err, ErrInputTooLarge) {
			t.Errorf("expected ErrInputTooLarge, got %v", err)
		}
	})

	t.Run("恰好到上限", func(t *testing.T) {
		_, err := svc.GeneratePoem(context.Background(), 1, entity.GeneratePoemRequest{Code: strings.Repeat("a", 10000)})
		if err != nil {
			t.Errorf("code at the limit should pass, got %v", err)
		}
	})

	if poet.calls != 1 {
		t.Errorf("provider should only be reached by the valid request, got %d calls", poet.calls)
	}
}

func TestGeneratePoemProviderFailure(t *testing.T) {
	repo := newTestRepo(&entity.DbUser{ID: 1, Tier: quota.TierFree, TodayCount: 1, LifetimeCount: 4, LastResetDate: "2025-06-02"})
	poet := &fakePoet{err: errors.New("upstream 500")}
	svc := newTestService(repo, poet)

	_, err := svc.GeneratePoem(context.Background(), 1, entity.GeneratePoemRequest{Code: "x"})

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	// 失败的尝试不计额度，不留记录
	user := repo.users[1]
	if user.TodayCount != 1 || user.LifetimeCount != 4 {
		t.Errorf("counters must not change on provider failure: %+v", user)
	}
	if len(repo.records) != 0 {
		t.Errorf("no record should be persisted on failure, got %d", len(repo.records))
	}
}

func TestGeneratePoemPersistFailure(t *testing.T) {
	repo := newTestRepo(&entity.DbUser{ID: 1, Tier: quota.TierFree, TodayCount: 0, LifetimeCount: 0, LastResetDate: "2025-06-02"})
	repo.createErr = errors.New("disk full")
	poet := &fakePoet{poem: "a poem"}
	svc := newTestService(repo, poet)

	result, err := svc.GeneratePoem(context.Background(), 1, entity.GeneratePoemRequest{Code: "x"})
	if err != nil {
		t.Fatalf("persist failure must not fail the attempt, got %v", err)
	}
	if result.PersistWarning == "" {
		t.Error("expected a persist warning")
	}
	if result.Record == nil || result.Record.PoemText != "a poem" {
		t.Errorf("poem must still be returned: %+v", result.Record)
	}
	// 配额提交先于落库，不回滚
	user := repo.users[1]
	if user.TodayCount != 1 || user.LifetimeCount != 1 {
		t.Errorf("counters should stay committed: %+v", user)
	}
}

func TestGeneratePoemAccountNotFound(t *testing.T) {
	repo := newTestRepo(&entity.DbUser{ID: 1, Tier: quota.TierFree, LastResetDate: "2025-06-02"})
	svc := newTestService(repo, &fakePoet{poem: "unused"})

	_, err := svc.GeneratePoem(context.Background(), 42, entity.GeneratePoemRequest{Code: "x"})
	if !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestGetUsage(t *testing.T) {
	repo := newTestRepo(&entity.DbUser{ID: 1, Tier: quota.TierFree, TodayCount: 5, LifetimeCount: 12, LastResetDate: "2025-06-01"})
	svc := newTestService(repo, &fakePoet{})

	status, err := svc.GetUsage(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 读取也触发惰性日切
	if status.TodayCount != 0 {
		t.Errorf("expected today count 0 after rollover, got %d", status.TodayCount)
	}
	if status.Remaining != 5 {
		t.Errorf("expected remaining 5, got %d", status.Remaining)
	}
	if status.LastResetDate != "2025-06-02" {
		t.Errorf("expected last reset 2025-06-02, got %s", status.LastResetDate)
	}
}
