package quota

import "fmt"

// Tier 账户等级，决定配额规则。
type Tier string

const (
	TierGuest Tier = "guest"
	TierFree  Tier = "free"
	TierPro   Tier = "pro"
)

// ParseTier 解析等级字符串。
func ParseTier(value string) (Tier, bool) {
	switch Tier(value) {
	case TierGuest, TierFree, TierPro:
		return Tier(value), true
	default:
		return "", false
	}
}

// DenyReason 拒绝原因。
type DenyReason string

const (
	DenyDailyLimitReached    DenyReason = "daily_limit_reached"
	DenyLifetimeLimitReached DenyReason = "lifetime_limit_reached"
)

// Decision 配额判定结果。
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

var allow = Decision{Allowed: true}

func deny(reason DenyReason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Error 表示一次被配额拒绝的生成尝试。
type Error struct {
	Reason DenyReason
}

func (e *Error) Error() string {
	return fmt.Sprintf("quota exceeded: %s", e.Reason)
}

// Unlimited 表示无上限的剩余额度。
const Unlimited = -1

// Policy 各等级的配额上限。
type Policy struct {
	FreeDailyLimit     int
	GuestLifetimeLimit int
}

// DefaultPolicy 返回默认配额上限。
func DefaultPolicy() Policy {
	return Policy{
		FreeDailyLimit:     5,
		GuestLifetimeLimit: 3,
	}
}

// Evaluate 根据尝试发起前的计数判定是否放行。
// 计数不包含本次尝试：已完成 N 次时允许发起第 N+1 次（边界比较用 <）。
// 纯函数，无 I/O、无副作用；每日计数的回滚由调用方在判定前完成。
func (p Policy) Evaluate(tier Tier, todayCount, lifetimeCount int) Decision {
	switch tier {
	case TierPro:
		return allow
	case TierFree:
		if todayCount < p.FreeDailyLimit {
			return allow
		}
		return deny(DenyDailyLimitReached)
	case TierGuest:
		if lifetimeCount < p.GuestLifetimeLimit {
			return allow
		}
		return deny(DenyLifetimeLimitReached)
	default:
		// 未知等级按最严格处理
		return deny(DenyLifetimeLimitReached)
	}
}

// Remaining 返回当前还可发起的生成次数，Pro 为 Unlimited。
func (p Policy) Remaining(tier Tier, todayCount, lifetimeCount int) int {
	switch tier {
	case TierPro:
		return Unlimited
	case TierFree:
		if left := p.FreeDailyLimit - todayCount; left > 0 {
			return left
		}
		return 0
	case TierGuest:
		if left := p.GuestLifetimeLimit - lifetimeCount; left > 0 {
			return left
		}
		return 0
	default:
		return 0
	}
}
