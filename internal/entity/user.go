package entity

import (
	"time"

	"codeverse/internal/quota"
)

const (
	UserRoleAdmin = "admin"
	UserRoleUser  = "user"
)

// DbUser 表示持久化的用户账户，内嵌配额计数。
//
// 计数不变量：TodayCount <= LifetimeCount；LastResetDate 只会前移。
// 计数的修改必须经由 ledger 包的账户串行化保护，不允许直接写列。
type DbUser struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Email 对 guest 账户为 NULL；非空值由唯一索引保证不重复
	Email        *string `gorm:"column:email;type:varchar(255);uniqueIndex" json:"email,omitempty"`
	PasswordHash string `gorm:"column:password_hash;type:varchar(255)" json:"-"`
	DisplayName  string `gorm:"column:display_name;type:varchar(255)" json:"display_name"`
	Role         string `gorm:"column:role;type:varchar(50);index;not null" json:"role"`

	Tier          quota.Tier `gorm:"column:tier;type:varchar(16);index;not null" json:"tier"`
	LifetimeCount int        `gorm:"column:lifetime_count;not null;default:0" json:"lifetime_count"`
	TodayCount    int        `gorm:"column:today_count;not null;default:0" json:"today_count"`
	// LastResetDate 为 UTC 日历日，格式 YYYY-MM-DD
	LastResetDate string `gorm:"column:last_reset_date;type:varchar(10);not null" json:"last_reset_date"`

	IsActive bool `gorm:"column:is_active;not null;default:true" json:"is_active"`
}

// TableName 指定表名。
func (DbUser) TableName() string {
	return "users"
}

// IsGuest 判断是否为访客账户。
func (u *DbUser) IsGuest() bool {
	return u != nil && u.Tier == quota.TierGuest
}

// EmailValue 返回邮箱，访客账户没有邮箱时返回空串。
func (u *DbUser) EmailValue() string {
	if u == nil || u.Email == nil {
		return ""
	}
	return *u.Email
}
