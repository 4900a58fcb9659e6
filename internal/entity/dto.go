package entity

import (
	"time"

	"codeverse/internal/quota"
)

// GeneratePoemRequest 生成诗歌的请求载荷。
type GeneratePoemRequest struct {
	Code     string `json:"code"`
	Language string `json:"language,omitempty"` // 源码语言标签，如 go、dart
	Style    string `json:"style,omitempty"`    // 诗歌风格标签，如 haiku、sonnet
}

// AuthRegisterRequest 注册请求。
type AuthRegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// AuthLoginRequest 登录请求。
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserSummary 对外暴露的用户信息。
type UserSummary struct {
	ID          uint       `json:"id"`
	Email       string     `json:"email,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
	Role        string     `json:"role"`
	Tier        quota.Tier `json:"tier"`
}

// AuthResponse 认证成功的响应。
type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      UserSummary `json:"user"`
}

// UsageStatus 当前账户的配额状态。
type UsageStatus struct {
	Tier          quota.Tier `json:"tier"`
	TodayCount    int        `json:"today_count"`
	LifetimeCount int        `json:"lifetime_count"`
	// Remaining 还可发起的生成次数，-1 表示无上限
	Remaining     int    `json:"remaining"`
	LastResetDate string `json:"last_reset_date"`
}

// Meta 分页元信息。
type Meta struct {
	Page     int64 `json:"page"`
	PageSize int64 `json:"page_size"`
	Total    int64 `json:"total"`
}

// UserQuery 用户列表查询参数。
type UserQuery struct {
	Role     string `json:"role" form:"role" query:"role"`
	Tier     string `json:"tier" form:"tier" query:"tier"`
	Keyword  string `json:"keyword" form:"keyword" query:"keyword"`
	Page     int64  `json:"page" form:"page" query:"page"`
	PageSize int64  `json:"page_size" form:"page_size" query:"page_size"`
}

// PoemRecordQuery 诗歌记录列表查询参数。
type PoemRecordQuery struct {
	UserID       uint   `json:"-" form:"-" query:"-"`
	FavoriteOnly bool   `json:"favorite_only" form:"favorite_only" query:"favorite_only"`
	Language     string `json:"language" form:"language" query:"language"`
	Style        string `json:"style" form:"style" query:"style"`
	Page         int64  `json:"page" form:"page" query:"page"`
	PageSize     int64  `json:"page_size" form:"page_size" query:"page_size"`
}
