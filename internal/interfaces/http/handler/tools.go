// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"encoding/json"
	"strings"

	"z-writer-ai-api/internal/application/credit"
	"z-writer-ai-api/internal/application/generation"
	"z-writer-ai-api/internal/application/generation/textutil"
	"z-writer-ai-api/internal/config"
	"z-writer-ai-api/internal/interfaces/http/dto"
	workflowchain "z-writer-ai-api/internal/workflow/chain"
	wfmodel "z-writer-ai-api/internal/workflow/model"
	wfnode "z-writer-ai-api/internal/workflow/node"
	"z-writer-ai-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ToolsHandler 独立工具处理器
// 每个工具端点遵循同一套资金流程：先按输入量扣减积分，
// 调用失败时整笔撤销，成功后返回实际消耗。
type ToolsHandler struct {
	cfg      *config.Config
	ledger   *credit.Ledger
	detector generation.Detector
	citation *workflowchain.CitationChain
	research *workflowchain.ResearchChain
	optimize *workflowchain.OptimizeChain
}

// NewToolsHandler 创建独立工具处理器
func NewToolsHandler(
	cfg *config.Config,
	ledger *credit.Ledger,
	detector generation.Detector,
	citation *workflowchain.CitationChain,
	research *workflowchain.ResearchChain,
	optimize *workflowchain.OptimizeChain,
) *ToolsHandler {
	return &ToolsHandler{
		cfg:      cfg,
		ledger:   ledger,
		detector: detector,
		citation: citation,
		research: research,
		optimize: optimize,
	}
}

// charge 按输入量扣减积分，返回扣减事务 ID。
// quotaWords 为计入月度配额的生成字数，非生成类工具传 0。
func (h *ToolsHandler) charge(c *gin.Context, costWords, quotaWords int, tool credit.Tool, op credit.Operation) (string, int64, bool) {
	ctx := c.Request.Context()
	userID := currentUserID(c)

	credits, err := credit.RequiredCredits(costWords, tool, op)
	if err != nil {
		if respondAppError(c, err) {
			return "", 0, false
		}
		dto.BadRequest(c, err.Error())
		return "", 0, false
	}

	result, err := h.ledger.Deduct(ctx, userID, credits, quotaWords, tool)
	if err != nil {
		if respondAppError(c, err) {
			return "", 0, false
		}
		logger.Error(ctx, "failed to charge for tool", err, "tool", string(tool), "user_id", userID)
		dto.InternalError(c, "failed to charge credits")
		return "", 0, false
	}
	return result.TransactionID, credits, true
}

// rollbackCharge 工具调用失败后撤销扣减，撤销本身失败只记录日志。
func (h *ToolsHandler) rollbackCharge(ctx context.Context, userID, txID string, tool credit.Tool) {
	if _, err := h.ledger.Rollback(context.WithoutCancel(ctx), userID, txID); err != nil {
		logger.Error(ctx, "failed to rollback tool charge", err, "tool", string(tool), "transaction_id", txID)
	}
}

// Scan 内容检测
// @Summary 内容检测
// @Description 对文本执行原创性、AI 痕迹与可读性检测，按扫描字数计费
// @Tags Tools
// @Accept json
// @Produce json
// @Param body body dto.ScanRequest true "检测请求"
// @Success 200 {object} dto.Response[dto.ScanResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 402 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/detector/scan [post]
func (h *ToolsHandler) Scan(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)

	var req dto.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	words := textutil.CountWords(req.Text)
	if words == 0 {
		dto.BadRequest(c, "text contains no words")
		return
	}

	txID, credits, ok := h.charge(c, words, 0, credit.ToolDetector, credit.OperationInput)
	if !ok {
		return
	}

	report, err := h.detector.Scan(ctx, req.Text)
	if err != nil {
		h.rollbackCharge(ctx, userID, txID, credit.ToolDetector)
		logger.Error(ctx, "detector scan failed", err, "user_id", userID)
		dto.Error(c, 502, "content detection failed")
		return
	}

	dto.Success(c, dto.ToScanResponse(report, words, credits))
}

// FormatCitations 引文格式化
// @Summary 引文格式化
// @Description 按指定样式格式化文献条目，按条目数据量计费
// @Tags Tools
// @Accept json
// @Produce json
// @Param body body dto.FormatCitationsRequest true "格式化请求"
// @Success 200 {object} dto.Response[dto.FormatCitationsResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 402 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/citations/format [post]
func (h *ToolsHandler) FormatCitations(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)

	var req dto.FormatCitationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	style := req.Style
	if style == "" {
		style = "apa"
	}

	provider, model, err := resolveProviderModel(h.cfg, req.Provider, req.Model)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	// 计费基数为条目文本量
	var sb strings.Builder
	for _, s := range req.Sources {
		sb.WriteString(s.Title)
		sb.WriteString(" ")
		sb.WriteString(strings.Join(s.Authors, " "))
		sb.WriteString(" ")
		sb.WriteString(s.Source)
		sb.WriteString("\n")
	}
	words := textutil.CountWords(sb.String())
	if words == 0 {
		dto.BadRequest(c, "sources contain no text")
		return
	}

	txID, credits, ok := h.charge(c, words, 0, credit.ToolCitations, credit.OperationInput)
	if !ok {
		return
	}

	outMsg, err := h.citation.Invoke(ctx, &wfmodel.CitationFormatInput{
		Sources:  req.ToCitationSources(),
		Style:    style,
		Provider: provider,
		Model:    model,
	})
	if err != nil {
		h.rollbackCharge(ctx, userID, txID, credit.ToolCitations)
		logger.Error(ctx, "citation format failed", err, "user_id", userID)
		dto.Error(c, 502, "citation formatting failed")
		return
	}

	var parsed struct {
		Citations []dto.FormattedCitationDTO `json:"citations"`
	}
	if err := json.Unmarshal([]byte(wfnode.ExtractJSONObject(outMsg.Content)), &parsed); err != nil {
		h.rollbackCharge(ctx, userID, txID, credit.ToolCitations)
		logger.Error(ctx, "failed to parse citation output", err, "user_id", userID)
		dto.Error(c, 502, "citation formatting failed")
		return
	}

	dto.Success(c, &dto.FormatCitationsResponse{
		Style:          style,
		Citations:      parsed.Citations,
		ChargedCredits: credits,
	})
}

// GenerateResearch 研究简报
// @Summary 研究简报
// @Description 围绕主题生成一篇结构化调研简报，按目标字数计费
// @Tags Tools
// @Accept json
// @Produce json
// @Param body body dto.ResearchRequest true "研究请求"
// @Success 200 {object} dto.Response[dto.ResearchResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 402 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/research/generate [post]
func (h *ToolsHandler) GenerateResearch(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)

	var req dto.ResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	provider, model, err := resolveProviderModel(h.cfg, req.Provider, req.Model)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	// 研究简报产出正文，目标字数计入月度配额
	txID, credits, ok := h.charge(c, req.TargetWordCount, req.TargetWordCount, credit.ToolResearch, credit.OperationOutput)
	if !ok {
		return
	}

	outMsg, err := h.research.Invoke(ctx, &wfmodel.ResearchBriefInput{
		Topic:           req.Topic,
		Focus:           req.Focus,
		TargetWordCount: req.TargetWordCount,
		Notes:           req.ToAttachments(),
		Provider:        provider,
		Model:           model,
	})
	if err != nil {
		h.rollbackCharge(ctx, userID, txID, credit.ToolResearch)
		logger.Error(ctx, "research brief failed", err, "user_id", userID)
		dto.Error(c, 502, "research generation failed")
		return
	}

	brief := strings.TrimSpace(outMsg.Content)
	dto.Success(c, &dto.ResearchResponse{
		Brief:          brief,
		WordCount:      textutil.CountWords(brief),
		ChargedCredits: credits,
	})
}

// OptimizePrompt 提示词优化
// @Summary 提示词优化
// @Description 重写提示词以获得更稳定的生成效果，按输入字数计费
// @Tags Tools
// @Accept json
// @Produce json
// @Param body body dto.OptimizePromptRequest true "优化请求"
// @Success 200 {object} dto.Response[dto.OptimizePromptResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 402 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/prompts/optimize [post]
func (h *ToolsHandler) OptimizePrompt(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)

	var req dto.OptimizePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	provider, model, err := resolveProviderModel(h.cfg, req.Provider, req.Model)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	words := textutil.CountWords(req.Prompt)
	if words == 0 {
		dto.BadRequest(c, "prompt contains no words")
		return
	}

	txID, credits, ok := h.charge(c, words, 0, credit.ToolPromptOptimizer, credit.OperationInput)
	if !ok {
		return
	}

	outMsg, err := h.optimize.Invoke(ctx, &wfmodel.PromptOptimizeInput{
		Prompt:   req.Prompt,
		Goal:     req.Goal,
		Provider: provider,
		Model:    model,
	})
	if err != nil {
		h.rollbackCharge(ctx, userID, txID, credit.ToolPromptOptimizer)
		logger.Error(ctx, "prompt optimize failed", err, "user_id", userID)
		dto.Error(c, 502, "prompt optimization failed")
		return
	}

	var parsed struct {
		OptimizedPrompt string   `json:"optimized_prompt"`
		Notes           []string `json:"notes"`
	}
	if err := json.Unmarshal([]byte(wfnode.ExtractJSONObject(outMsg.Content)), &parsed); err != nil {
		h.rollbackCharge(ctx, userID, txID, credit.ToolPromptOptimizer)
		logger.Error(ctx, "failed to parse optimizer output", err, "user_id", userID)
		dto.Error(c, 502, "prompt optimization failed")
		return
	}

	dto.Success(c, &dto.OptimizePromptResponse{
		OptimizedPrompt: parsed.OptimizedPrompt,
		Notes:           parsed.Notes,
		ChargedCredits:  credits,
	})
}
