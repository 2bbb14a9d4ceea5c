package handler

import (
	"fmt"
	"strings"

	"z-writer-ai-api/internal/config"
	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/interfaces/http/dto"
	apperrors "z-writer-ai-api/pkg/errors"

	"github.com/gin-gonic/gin"
)

// resolveProviderModel 解析 LLM Provider 和 Model
// provider 留空时回退到配置的默认提供商，model 留空时使用提供商默认模型。
func resolveProviderModel(cfg *config.Config, provider, model string) (string, string, error) {
	if cfg == nil {
		return "", "", fmt.Errorf("server config not configured")
	}

	p := strings.TrimSpace(provider)
	if p == "" {
		p = strings.TrimSpace(cfg.LLM.DefaultProvider)
	}
	if p == "" {
		return "", "", fmt.Errorf("llm provider not specified")
	}
	if len(p) > 32 {
		return "", "", fmt.Errorf("llm provider too long")
	}

	providerCfg, ok := cfg.LLM.Providers[p]
	if !ok {
		return "", "", fmt.Errorf("llm provider not found: %s", p)
	}

	m := strings.TrimSpace(model)
	if m == "" {
		m = strings.TrimSpace(providerCfg.Model)
	}
	if len(m) > 64 {
		return "", "", fmt.Errorf("llm model too long")
	}
	return p, m, nil
}

// currentUserID 从认证中间件注入的上下文获取用户 ID
func currentUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

// currentPlanTier 从认证中间件注入的上下文获取计划档位
func currentPlanTier(c *gin.Context) entity.PlanTier {
	tier := entity.PlanTier(c.GetString("plan_tier"))
	if !tier.Valid() {
		return entity.PlanTierFree
	}
	return tier
}

// respondAppError 将应用错误映射为 HTTP 响应
// 非 AppError 的错误由调用方自行记录日志并返回 InternalError。
func respondAppError(c *gin.Context, err error) bool {
	if !apperrors.IsAppError(err) {
		return false
	}
	appErr := apperrors.AsAppError(err)
	dto.ErrorWithDetail(c, appErr.HTTPStatus, appErr.Message, &dto.ErrorDetail{
		ErrorCode: string(appErr.Code),
		Details:   appErr.Detail,
	})
	return true
}
