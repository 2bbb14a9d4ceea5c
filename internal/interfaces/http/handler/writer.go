// Package handler 提供 HTTP 请求处理器
package handler

import (
	"z-writer-ai-api/internal/application/generation"
	"z-writer-ai-api/internal/config"
	"z-writer-ai-api/internal/domain/repository"
	"z-writer-ai-api/internal/interfaces/http/dto"
	"z-writer-ai-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// WriterHandler 内容生成处理器
type WriterHandler struct {
	cfg      *config.Config
	pipeline *generation.Pipeline
	runs     repository.GenerationRunRepository
	contents repository.GeneratedContentRepository
}

// NewWriterHandler 创建内容生成处理器
func NewWriterHandler(
	cfg *config.Config,
	pipeline *generation.Pipeline,
	runs repository.GenerationRunRepository,
	contents repository.GeneratedContentRepository,
) *WriterHandler {
	return &WriterHandler{
		cfg:      cfg,
		pipeline: pipeline,
		runs:     runs,
		contents: contents,
	}
}

// Generate 生成内容
// @Summary 生成内容
// @Description 同步执行完整生成管线：预留积分、分块生成、质量整改、结算差额
// @Tags Writer
// @Accept json
// @Produce json
// @Param body body dto.GenerateRequest true "生成请求"
// @Success 200 {object} dto.Response[dto.GenerateResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 402 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Router /v1/writer/generate [post]
func (h *WriterHandler) Generate(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)

	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	provider, model, err := resolveProviderModel(h.cfg, req.Provider, req.Model)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	result, err := h.pipeline.Run(ctx, &generation.GenerationRequest{
		UserID:         userID,
		PlanTier:       currentPlanTier(c),
		Prompt:         req.Prompt,
		Style:          req.Style,
		Tone:           req.Tone,
		Quality:        req.Quality,
		RequestedWords: req.WordCount,
		WithCitations:  req.WithCitations,
		CitationStyle:  req.CitationStyle,
		Provider:       provider,
		Model:          model,
	})
	if err != nil {
		if respondAppError(c, err) {
			return
		}
		logger.Error(ctx, "generation pipeline failed", err, "user_id", userID)
		dto.InternalError(c, "content generation failed")
		return
	}

	dto.Success(c, dto.ToGenerateResponse(result))
}

// ListRuns 查询运行历史
// @Summary 查询运行历史
// @Description 按时间倒序分页获取当前用户的生成运行记录
// @Tags Writer
// @Produce json
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页条数" default(20)
// @Success 200 {object} dto.Response[dto.RunListResponse]
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/writer/runs [get]
func (h *WriterHandler) ListRuns(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)
	pageReq := dto.BindPage(c)

	result, err := h.runs.ListByUser(ctx, userID, repository.NewPagination(pageReq.Page, pageReq.PageSize))
	if err != nil {
		logger.Error(ctx, "failed to list generation runs", err, "user_id", userID)
		dto.InternalError(c, "failed to list runs")
		return
	}

	resp := dto.ToRunListResponse(result.Items)
	meta := dto.NewPageMeta(pageReq.Page, pageReq.PageSize, int(result.Total))
	dto.SuccessWithPage(c, resp, meta)
}

// GetRun 查询运行详情
// @Summary 查询运行详情
// @Description 获取指定生成运行记录，仅限本人
// @Tags Writer
// @Produce json
// @Param rid path string true "运行 ID"
// @Success 200 {object} dto.Response[dto.RunResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/writer/runs/{rid} [get]
func (h *WriterHandler) GetRun(c *gin.Context) {
	ctx := c.Request.Context()
	runID := c.Param("rid")

	run, err := h.runs.GetByID(ctx, runID)
	if err != nil {
		logger.Error(ctx, "failed to get generation run", err, "run_id", runID)
		dto.InternalError(c, "failed to get run")
		return
	}
	if run == nil || run.UserID != currentUserID(c) {
		dto.NotFound(c, "generation run not found")
		return
	}

	dto.Success(c, dto.ToRunResponse(run))
}

// GetContent 查询内容详情
// @Summary 查询内容详情
// @Description 获取已生成内容全文，仅限本人
// @Tags Writer
// @Produce json
// @Param cid path string true "内容 ID"
// @Success 200 {object} dto.Response[dto.ContentResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/writer/contents/{cid} [get]
func (h *WriterHandler) GetContent(c *gin.Context) {
	ctx := c.Request.Context()
	contentID := c.Param("cid")

	content, err := h.contents.GetByID(ctx, contentID)
	if err != nil {
		logger.Error(ctx, "failed to get generated content", err, "content_id", contentID)
		dto.InternalError(c, "failed to get content")
		return
	}
	if content == nil || content.UserID != currentUserID(c) {
		dto.NotFound(c, "content not found")
		return
	}

	dto.Success(c, dto.ToContentResponse(content))
}
