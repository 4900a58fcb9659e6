package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"codeverse/internal/entity"
	"codeverse/internal/ledger"
	"codeverse/internal/quota"
	"codeverse/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// GeneratePoem 发起一次诗歌生成。
func (h *HTTPHandler) GeneratePoem(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要登录")
		return
	}

	var req entity.GeneratePoemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	result, err := h.generationService.GeneratePoem(c.Request.Context(), user.ID, req)
	if err != nil {
		h.respondGenerationError(c, err)
		return
	}

	response := gin.H{"record": result.Record}
	if result.PersistWarning != "" {
		response["persist_warning"] = result.PersistWarning
	}
	c.JSON(http.StatusOK, response)
}

// respondGenerationError 将服务层错误映射到 HTTP 状态码。
func (h *HTTPHandler) respondGenerationError(c *gin.Context, err error) {
	var quotaErr *quota.Error
	var genErr *service.GenerationError

	switch {
	case errors.As(err, &quotaErr):
		QuotaExceeded(c, quotaErr.Reason)
	case errors.Is(err, service.ErrInputEmpty):
		BadRequest(c, ErrCodeCodeEmpty, "代码不能为空")
	case errors.Is(err, service.ErrInputTooLarge):
		PayloadTooLarge(c, "代码超出长度上限")
	case errors.As(err, &genErr):
		BadGateway(c, ErrCodeGenerationFailed, "诗歌生成失败")
	case errors.Is(err, ledger.ErrAccountNotFound):
		ErrorResponse(c, http.StatusUnauthorized, ErrCodeUserNotFound, "用户不存在")
	case errors.Is(err, ledger.ErrStorageUnavailable):
		ServiceUnavailable(c, "存储暂时不可用")
	default:
		logrus.WithError(err).Error("unexpected generation error")
		InternalError(c, "生成失败")
	}
}

// ListPoemRecords 列出当前用户的诗歌记录。
func (h *HTTPHandler) ListPoemRecords(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要登录")
		return
	}

	var query entity.PoemRecordQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "无效的查询参数")
		return
	}
	query.UserID = user.ID
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

	records, meta, err := h.repo.ListPoemRecords(ctx, &query)
	if err != nil {
		logrus.WithError(err).Error("failed to list poem records")
		InternalError(c, "加载记录失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"meta":    meta,
	})
}

// GetPoemRecord 获取单条记录，只能访问自己的。
func (h *HTTPHandler) GetPoemRecord(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要登录")
		return
	}

	record, ok := h.loadOwnedRecord(c, user)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, record)
}

// DeletePoemRecord 删除记录并留下墓碑，供同步传播删除。
func (h *HTTPHandler) DeletePoemRecord(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要登录")
		return
	}

	record, ok := h.loadOwnedRecord(c, user)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.repo.DeletePoemRecord(ctx, record.ID); err != nil {
		logrus.WithError(err).WithField("record_id", record.ID).Error("failed to delete poem record")
		InternalError(c, "删除记录失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": record.ID})
}

// SetPoemFavorite 设置收藏状态，时间戳服务端生成。
func (h *HTTPHandler) SetPoemFavorite(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要登录")
		return
	}

	var req struct {
		Favorite bool `json:"favorite"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	record, ok := h.loadOwnedRecord(c, user)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	if err := h.repo.SetPoemFavorite(ctx, record.ID, req.Favorite, now); err != nil {
		logrus.WithError(err).WithField("record_id", record.ID).Error("failed to set favorite")
		InternalError(c, "更新收藏状态失败")
		return
	}

	record.Favorite = req.Favorite
	record.FavoriteUpdatedAt = now
	c.JSON(http.StatusOK, record)
}

// loadOwnedRecord 加载路径参数指定的记录并校验归属。
func (h *HTTPHandler) loadOwnedRecord(c *gin.Context, user *RequestUser) (*entity.DbPoemRecord, bool) {
	recordID := strings.TrimSpace(c.Param("id"))
	if recordID == "" {
		BadRequest(c, ErrCodeInvalidRequest, "缺少记录 ID")
		return nil, false
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	record, err := h.repo.GetPoemRecord(ctx, recordID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, ErrCodeRecordNotFound, "记录不存在")
			return nil, false
		}
		logrus.WithError(err).WithField("record_id", recordID).Error("failed to load poem record")
		InternalError(c, "加载记录失败")
		return nil, false
	}

	if record.UserID != user.ID {
		// 不暴露他人记录的存在
		NotFound(c, ErrCodeRecordNotFound, "记录不存在")
		return nil, false
	}

	return record, true
}
