package api

import (
	"errors"
	"net/http"

	"codeverse/internal/ledger"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// GetUsage 返回当前账户的配额状态。
func (h *HTTPHandler) GetUsage(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要登录")
		return
	}

	status, err := h.generationService.GetUsage(c.Request.Context(), user.ID)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrAccountNotFound):
			ErrorResponse(c, http.StatusUnauthorized, ErrCodeUserNotFound, "用户不存在")
		case errors.Is(err, ledger.ErrStorageUnavailable):
			ServiceUnavailable(c, "存储暂时不可用")
		default:
			logrus.WithError(err).WithField("user_id", user.ID).Error("failed to load usage status")
			InternalError(c, "加载配额状态失败")
		}
		return
	}

	c.JSON(http.StatusOK, status)
}
