package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"codeverse/internal/entity"
	"codeverse/internal/ledger"
	"codeverse/internal/llm"
	"codeverse/internal/model"
	"codeverse/internal/quota"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// GenerationService 诗歌生成服务，封装配额判定与生成编排的业务逻辑
type GenerationService struct {
	repo   model.Repository
	ledger *ledger.Ledger
	policy quota.Policy
	poet   llm.PoemService

	maxCodeChars      int
	generationTimeout time.Duration

	// now 可注入，测试用
	now func() time.Time
}

// NewGenerationService 创建生成服务实例
func NewGenerationService(repo model.Repository, usage *ledger.Ledger, policy quota.Policy, poet llm.PoemService, maxCodeChars int, generationTimeout time.Duration) *GenerationService {
	return &GenerationService{
		repo:              repo,
		ledger:            usage,
		policy:            policy,
		poet:              poet,
		maxCodeChars:      maxCodeChars,
		generationTimeout: generationTimeout,
		now:               time.Now,
	}
}

// GenerateResult 一次成功生成的结果。
type GenerateResult struct {
	Record *entity.DbPoemRecord

	// PersistWarning 非空表示诗歌已生成、配额已计入，但记录落库失败
	PersistWarning string
}

// GeneratePoem 执行一次完整的生成尝试：配额判定、输入校验、调用服务商、
// 提交用量、落库。判定到提交全程持有账户锁，同一账户串行执行。
//
// 配额拒绝返回 *quota.Error；服务商失败返回 *GenerationError，此时不提交
// 配额也不落库。落库失败不回滚配额，结果携带 PersistWarning 返回。
func (s *GenerationService) GeneratePoem(ctx context.Context, userID uint, request entity.GeneratePoemRequest) (*GenerateResult, error) {
	unlock := s.ledger.LockAccount(userID)
	defer unlock()

	user, err := s.ledger.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	today := ledger.Today(s.now())
	if err := s.ledger.RolloverIfNeeded(ctx, user, today); err != nil {
		return nil, err
	}

	decision := s.policy.Evaluate(user.Tier, user.TodayCount, user.LifetimeCount)
	if !decision.Allowed {
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"tier":    user.Tier,
			"reason":  decision.Reason,
		}).Info("generation denied by quota")
		return nil, &quota.Error{Reason: decision.Reason}
	}

	if err := s.validateInput(request.Code); err != nil {
		return nil, err
	}

	genCtx, cancelGen := context.WithTimeout(ctx, s.generationTimeout)
	defer cancelGen()

	response, err := s.poet.ComposePoem(genCtx, llm.PoemRequest{
		Code:     request.Code,
		Language: request.Language,
		Style:    llm.NormalizeStyle(request.Style),
	})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id":  userID,
			"provider": s.poet.ProviderID(),
		}).Error("poem generation failed")
		return nil, &GenerationError{Cause: err}
	}

	// 生成成功先提交配额，再落库
	if err := s.ledger.CommitGeneration(ctx, user); err != nil {
		return nil, err
	}

	record := &entity.DbPoemRecord{
		ID:       uuid.NewString(),
		UserID:   userID,
		Code:     request.Code,
		Language: strings.TrimSpace(request.Language),
		Style:    llm.NormalizeStyle(request.Style),
		PoemText: response.Poem,
		Provider: response.Provider,
		Model:    response.Model,
	}

	result := &GenerateResult{Record: record}
	if err := s.repo.CreatePoemRecord(ctx, record); err != nil {
		// 配额已计入且诗歌已产出，只告警不回滚
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id":   userID,
			"record_id": record.ID,
		}).Error("failed to persist poem record")
		result.PersistWarning = "poem generated but could not be saved"
	}

	return result, nil
}

// GetUsage 返回账户当前配额状态，读取前先做惰性日切。
func (s *GenerationService) GetUsage(ctx context.Context, userID uint) (*entity.UsageStatus, error) {
	unlock := s.ledger.LockAccount(userID)
	defer unlock()

	user, err := s.ledger.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	today := ledger.Today(s.now())
	if err := s.ledger.RolloverIfNeeded(ctx, user, today); err != nil {
		return nil, err
	}

	return &entity.UsageStatus{
		Tier:          user.Tier,
		TodayCount:    user.TodayCount,
		LifetimeCount: user.LifetimeCount,
		Remaining:     s.policy.Remaining(user.Tier, user.TodayCount, user.LifetimeCount),
		LastResetDate: user.LastResetDate,
	}, nil
}

func (s *GenerationService) validateInput(code string) error {
	if strings.TrimSpace(code) == "" {
		return ErrInputEmpty
	}
	if utf8.RuneCountInString(code) > s.maxCodeChars {
		return ErrInputTooLarge
	}
	return nil
}
