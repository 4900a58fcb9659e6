package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"codeverse/internal/entity"
	"codeverse/internal/ledger"
	"codeverse/internal/quota"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func (h *HTTPHandler) ListUsers(c *gin.Context) {
	var query entity.UserQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "无效的查询参数")
		return
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = 20
	}
	if query.PageSize > 100 {
		query.PageSize = 100
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	users, meta, err := h.repo.ListUsers(ctx, &query)
	if err != nil {
		logrus.WithError(err).Error("failed to list users")
		InternalError(c, "加载用户列表失败")
		return
	}

	summaries := make([]entity.UserSummary, 0, len(users))
	for idx := range users {
		summaries = append(summaries, makeUserSummary(&users[idx]))
	}

	c.JSON(http.StatusOK, gin.H{
		"users": summaries,
		"meta":  meta,
	})
}

// UserUpdateRequest 管理员更新用户的请求体。
type UserUpdateRequest struct {
	Tier        *string `json:"tier"`
	Role        *string `json:"role"`
	DisplayName *string `json:"display_name"`
	IsActive    *bool   `json:"is_active"`
}

// UpdateUser 管理员修改账户等级、角色或启用状态。
// 等级变更经由 ledger 执行，账户计数保持不变。
func (h *HTTPHandler) UpdateUser(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || userID == 0 {
		BadRequest(c, ErrCodeInvalidRequest, "无效的用户 ID")
		return
	}

	var req UserUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if req.Tier != nil {
		tier, ok := quota.ParseTier(*req.Tier)
		if !ok {
			BadRequest(c, ErrCodeInvalidRequest, "无效的用户等级")
			return
		}
		if err := h.usageLedger.SetTier(ctx, uint(userID), tier); err != nil {
			if errors.Is(err, ledger.ErrAccountNotFound) {
				NotFound(c, ErrCodeUserNotFound, "用户不存在")
				return
			}
			logrus.WithError(err).WithField("user_id", userID).Error("failed to update tier")
			InternalError(c, "更新用户失败")
			return
		}
	}

	updates := entity.UserUpdates{
		DisplayName: req.DisplayName,
		IsActive:    req.IsActive,
	}
	if req.Role != nil {
		role := *req.Role
		if role != entity.UserRoleAdmin && role != entity.UserRoleUser {
			BadRequest(c, ErrCodeInvalidRequest, "无效的用户角色")
			return
		}
		updates.Role = &role
	}

	if !updates.IsEmpty() {
		if err := h.repo.UpdateUser(ctx, uint(userID), updates); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				NotFound(c, ErrCodeUserNotFound, "用户不存在")
				return
			}
			logrus.WithError(err).WithField("user_id", userID).Error("failed to update user")
			InternalError(c, "更新用户失败")
			return
		}
	}

	user, err := h.repo.GetUserByID(ctx, uint(userID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, ErrCodeUserNotFound, "用户不存在")
			return
		}
		logrus.WithError(err).WithField("user_id", userID).Error("failed to reload user")
		InternalError(c, "更新用户失败")
		return
	}

	c.JSON(http.StatusOK, makeUserSummary(user))
}
