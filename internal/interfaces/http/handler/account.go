// Package handler 提供 HTTP 请求处理器
package handler

import (
	"z-writer-ai-api/internal/application/credit"
	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/domain/repository"
	"z-writer-ai-api/internal/interfaces/http/dto"
	"z-writer-ai-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AccountHandler 积分账户处理器
type AccountHandler struct {
	ledger *credit.Ledger
}

// NewAccountHandler 创建积分账户处理器
func NewAccountHandler(ledger *credit.Ledger) *AccountHandler {
	return &AccountHandler{ledger: ledger}
}

// Balance 查询余额
// @Summary 查询账户余额
// @Description 获取当前用户的积分余额与累计消耗
// @Tags Account
// @Produce json
// @Success 200 {object} dto.Response[dto.BalanceResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/account/balance [get]
func (h *AccountHandler) Balance(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)

	account, err := h.ledger.GetBalance(ctx, userID)
	if err != nil {
		if respondAppError(c, err) {
			return
		}
		logger.Error(ctx, "failed to get balance", err, "user_id", userID)
		dto.InternalError(c, "failed to get balance")
		return
	}

	dto.Success(c, dto.ToBalanceResponse(account))
}

// Transactions 查询积分流水
// @Summary 查询积分流水
// @Description 按时间倒序分页获取当前用户的账本事务
// @Tags Account
// @Produce json
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页条数" default(20)
// @Success 200 {object} dto.Response[dto.TransactionListResponse]
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/account/transactions [get]
func (h *AccountHandler) Transactions(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)
	pageReq := dto.BindPage(c)

	result, err := h.ledger.GetHistory(ctx, userID, repository.NewPagination(pageReq.Page, pageReq.PageSize))
	if err != nil {
		logger.Error(ctx, "failed to list transactions", err, "user_id", userID)
		dto.InternalError(c, "failed to list transactions")
		return
	}

	resp := dto.ToTransactionListResponse(result.Items)
	meta := dto.NewPageMeta(pageReq.Page, pageReq.PageSize, int(result.Total))
	dto.SuccessWithPage(c, resp, meta)
}

// Usage 查询月度用量
// @Summary 查询月度用量
// @Description 获取当前周期的生成字数、消耗积分与剩余配额
// @Tags Account
// @Produce json
// @Success 200 {object} dto.Response[dto.UsageResponse]
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/account/usage [get]
func (h *AccountHandler) Usage(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)
	tier := currentPlanTier(c)

	record, err := h.ledger.GetUsage(ctx, userID)
	if err != nil {
		logger.Error(ctx, "failed to get usage", err, "user_id", userID)
		dto.InternalError(c, "failed to get usage")
		return
	}

	remaining, err := h.ledger.Quota().RemainingWords(ctx, userID, tier)
	if err != nil {
		logger.Error(ctx, "failed to get remaining quota", err, "user_id", userID)
		dto.InternalError(c, "failed to get usage")
		return
	}

	dto.Success(c, dto.ToUsageResponse(record, entity.PlanByTier(tier), remaining))
}
