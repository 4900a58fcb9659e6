package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Sync 触发一次本地记录与远端存储的双向调和。
// 访客账户或远端不可达时返回 skipped 报告，而不是错误。
func (h *HTTPHandler) Sync(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "需要登录")
		return
	}

	dbUser, err := h.repo.GetUserByID(c.Request.Context(), user.ID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to load user for sync")
		InternalError(c, "加载用户失败")
		return
	}

	report, err := h.syncCoordinator.Reconcile(c.Request.Context(), dbUser)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("sync reconcile failed")
		ServiceUnavailable(c, "同步失败")
		return
	}

	c.JSON(http.StatusOK, report)
}
