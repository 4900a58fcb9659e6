package entity

import "codeverse/internal/quota"

// UserUpdates 用户更新字段
type UserUpdates struct {
	Email        *string
	DisplayName  *string
	Role         *string
	PasswordHash *string
	Tier         *quota.Tier
	IsActive     *bool
}

// ToMap 转换为 GORM 更新 map（内部使用）
func (u UserUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.Email != nil {
		updates["email"] = *u.Email
	}
	if u.DisplayName != nil {
		updates["display_name"] = *u.DisplayName
	}
	if u.Role != nil {
		updates["role"] = *u.Role
	}
	if u.PasswordHash != nil {
		updates["password_hash"] = *u.PasswordHash
	}
	if u.Tier != nil {
		updates["tier"] = string(*u.Tier)
	}
	if u.IsActive != nil {
		updates["is_active"] = *u.IsActive
	}
	return updates
}

// IsEmpty 检查是否没有任何更新字段
func (u UserUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}
