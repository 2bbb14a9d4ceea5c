// Package entity 定义领域实体
package entity

// PlanTier 订阅计划档位
type PlanTier string

const (
	PlanTierFree    PlanTier = "free"
	PlanTierPro     PlanTier = "pro"
	PlanTierPremium PlanTier = "premium"
)

// Plan 订阅计划配置
type Plan struct {
	Tier PlanTier `json:"tier"`
	// SignupCredits 注册时一次性发放的积分
	SignupCredits int64 `json:"signup_credits"`
	// MonthlyWordCap 每月生成字数上限，0 表示不限制
	MonthlyWordCap int `json:"monthly_word_cap"`
	// ChunkWordLimit 单次生成分块的目标字数上限
	ChunkWordLimit int `json:"chunk_word_limit"`
	// QuotaLimited 是否受月度字数配额限制
	QuotaLimited bool `json:"quota_limited"`
}

var plans = map[PlanTier]Plan{
	PlanTierFree: {
		Tier:           PlanTierFree,
		SignupCredits:  100,
		MonthlyWordCap: 1000,
		ChunkWordLimit: 400,
		QuotaLimited:   true,
	},
	PlanTierPro: {
		Tier:           PlanTierPro,
		SignupCredits:  1000,
		MonthlyWordCap: 0,
		ChunkWordLimit: 800,
		QuotaLimited:   false,
	},
	PlanTierPremium: {
		Tier:           PlanTierPremium,
		SignupCredits:  3000,
		MonthlyWordCap: 0,
		ChunkWordLimit: 1500,
		QuotaLimited:   false,
	},
}

// PlanByTier 获取计划配置，未知档位回退到 free
func PlanByTier(tier PlanTier) Plan {
	if p, ok := plans[tier]; ok {
		return p
	}
	return plans[PlanTierFree]
}

// Valid 检查档位是否合法
func (t PlanTier) Valid() bool {
	_, ok := plans[t]
	return ok
}

// ChunkWordLimit 获取档位的分块字数上限
func (t PlanTier) ChunkWordLimit() int {
	return PlanByTier(t).ChunkWordLimit
}
