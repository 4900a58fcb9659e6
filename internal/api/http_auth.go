package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"codeverse/internal/auth"
	"codeverse/internal/entity"
	"codeverse/internal/ledger"
	"codeverse/internal/quota"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// GuestLogin 创建访客账户并签发 Token。访客没有邮箱和密码，
// 只有累计额度，升级注册后计数保留。
func (h *HTTPHandler) GuestLogin(c *gin.Context) {
	var req struct {
		DisplayName string `json:"display_name"`
	}
	// 请求体可为空
	_ = c.ShouldBindJSON(&req)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	user := &entity.DbUser{
		DisplayName:   strings.TrimSpace(req.DisplayName),
		Role:          entity.UserRoleUser,
		Tier:          quota.TierGuest,
		LastResetDate: ledger.Today(time.Now()),
		IsActive:      true,
	}

	if err := h.repo.CreateUser(ctx, user); err != nil {
		logrus.WithError(err).Error("failed to create guest user")
		InternalError(c, "创建访客账户失败")
		return
	}

	token, expiresAt, err := h.authManager.GenerateToken(user)
	if err != nil {
		logrus.WithError(err).Error("failed to create token for guest")
		InternalError(c, "创建会话失败")
		return
	}

	c.JSON(http.StatusCreated, entity.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      makeUserSummary(user),
	})
}

// Register 注册正式账户。携带访客 Token 时为原账户升级，
// 用量计数原样保留；否则创建新的 free 账户。
func (h *HTTPHandler) Register(c *gin.Context) {
	var req entity.AuthRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)
	if email == "" {
		MissingField(c, "email")
		return
	}
	if password == "" {
		MissingField(c, "password")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	// 邮箱唯一性在注册入口校验，访客账户没有邮箱所以不受影响
	if _, err := h.repo.GetUserByEmail(ctx, email); err == nil {
		BadRequest(c, ErrCodeEmailExists, "邮箱已被注册")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		logrus.WithError(err).Error("failed to check email during registration")
		InternalError(c, "注册失败")
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		logrus.WithError(err).Error("failed to hash password")
		InternalError(c, "注册失败")
		return
	}

	if guest := h.guestFromAuthHeader(ctx, c); guest != nil {
		h.upgradeGuest(ctx, c, guest, email, hash, strings.TrimSpace(req.DisplayName))
		return
	}

	role := entity.UserRoleUser
	count, err := h.repo.CountUsers(ctx)
	if err != nil {
		logrus.WithError(err).Error("failed to count users during registration")
		InternalError(c, "注册失败")
		return
	}
	if count == 0 {
		role = entity.UserRoleAdmin
	}

	user := &entity.DbUser{
		Email:         &email,
		PasswordHash:  hash,
		DisplayName:   strings.TrimSpace(req.DisplayName),
		Role:          role,
		Tier:          quota.TierFree,
		LastResetDate: ledger.Today(time.Now()),
		IsActive:      true,
	}

	if err := h.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			BadRequest(c, ErrCodeEmailExists, "邮箱已被注册")
			return
		}
		logrus.WithError(err).Error("failed to create user")
		InternalError(c, "注册失败")
		return
	}

	h.respondWithToken(c, http.StatusCreated, user)
}

// guestFromAuthHeader 解析请求里的访客 Token，非访客或无 Token 返回 nil。
func (h *HTTPHandler) guestFromAuthHeader(ctx context.Context, c *gin.Context) *entity.DbUser {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader == "" {
		return nil
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil
	}
	claims, err := h.authManager.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil
	}
	user, err := h.repo.GetUserByID(ctx, claims.UserID)
	if err != nil || !user.IsGuest() {
		return nil
	}
	return user
}

// upgradeGuest 将访客账户原地升级为 free 账户，计数不动。
func (h *HTTPHandler) upgradeGuest(ctx context.Context, c *gin.Context, guest *entity.DbUser, email, hash, displayName string) {
	unlock := h.usageLedger.LockAccount(guest.ID)
	defer unlock()

	tier := quota.TierFree
	updates := entity.UserUpdates{
		Email:        &email,
		PasswordHash: &hash,
		Tier:         &tier,
	}
	if displayName != "" {
		updates.DisplayName = &displayName
	}

	if err := h.repo.UpdateUser(ctx, guest.ID, updates); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			BadRequest(c, ErrCodeEmailExists, "邮箱已被注册")
			return
		}
		logrus.WithError(err).WithField("user_id", guest.ID).Error("failed to upgrade guest")
		InternalError(c, "注册失败")
		return
	}

	guest.Email = &email
	guest.Tier = tier
	if displayName != "" {
		guest.DisplayName = displayName
	}

	logrus.WithFields(logrus.Fields{
		"user_id":        guest.ID,
		"lifetime_count": guest.LifetimeCount,
	}).Info("guest account upgraded")

	h.respondWithToken(c, http.StatusOK, guest)
}

func (h *HTTPHandler) Login(c *gin.Context) {
	var req entity.AuthLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)
	if email == "" || password == "" {
		BadRequest(c, ErrCodeInvalidRequest, "邮箱和密码不能为空")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	user, err := h.repo.GetUserByEmail(ctx, email)
	if err != nil {
		logrus.WithError(err).WithField("email", email).Warn("login attempt failed")
		ErrorResponse(c, http.StatusUnauthorized, ErrCodeInvalidCredentials, "邮箱或密码错误")
		return
	}

	if !user.IsActive {
		ErrorResponse(c, http.StatusForbidden, ErrCodeUserDisabled, "账户已被禁用")
		return
	}

	if err := auth.VerifyPassword(user.PasswordHash, password); err != nil {
		logrus.WithError(err).WithField("email", email).Warn("password verification failed")
		ErrorResponse(c, http.StatusUnauthorized, ErrCodeInvalidCredentials, "邮箱或密码错误")
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

func (h *HTTPHandler) Me(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要登录")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbUser, err := h.repo.GetUserByID(ctx, user.ID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to load user profile")
		InternalError(c, "加载用户信息失败")
		return
	}

	c.JSON(http.StatusOK, makeUserSummary(dbUser))
}

func (h *HTTPHandler) respondWithToken(c *gin.Context, status int, user *entity.DbUser) {
	token, expiresAt, err := h.authManager.GenerateToken(user)
	if err != nil {
		logrus.WithError(err).Error("failed to generate token")
		InternalError(c, "创建会话失败")
		return
	}

	c.JSON(status, entity.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      makeUserSummary(user),
	})
}

func makeUserSummary(user *entity.DbUser) entity.UserSummary {
	if user == nil {
		return entity.UserSummary{}
	}
	return entity.UserSummary{
		ID:          user.ID,
		Email:       user.EmailValue(),
		DisplayName: user.DisplayName,
		Role:        user.Role,
		Tier:        user.Tier,
	}
}
