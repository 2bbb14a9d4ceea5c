// Package generation 实现分块生成管线：资金预留、相似内容复用、
// 质量门整改与费用对账。
package generation

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-writer-ai-api/internal/application/credit"
	"z-writer-ai-api/internal/application/generation/textutil"
	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/domain/repository"
	"z-writer-ai-api/internal/domain/service"
	wfmodel "z-writer-ai-api/internal/workflow/model"
	apperrors "z-writer-ai-api/pkg/errors"
	"z-writer-ai-api/pkg/logger"
	"z-writer-ai-api/pkg/metrics"
)

var tracer = otel.Tracer("application.generation")

// maxRefinementCycles 单个分块质量整改的最大轮数，超过后接受现有内容
const maxRefinementCycles = 2

// Pipeline 生成管线。
// 状态机：reserving_funds → generating → reconciling → complete 或 failed_refunded。
// 预留成功后的任何失败都会走补偿路径，撤销本次运行创建的全部扣费。
type Pipeline struct {
	ledger     *credit.Ledger
	reconciler *credit.Reconciler
	runs       repository.GenerationRunRepository
	contents   repository.GeneratedContentRepository
	generator  *ChunkGenerator
	gate       *QualityGate
	similarity *SimilarityService
	citations  CitationFormatter
	publisher  service.EventPublisher
}

func NewPipeline(
	ledger *credit.Ledger,
	reconciler *credit.Reconciler,
	runs repository.GenerationRunRepository,
	contents repository.GeneratedContentRepository,
	generator *ChunkGenerator,
	gate *QualityGate,
	similarity *SimilarityService,
	citations CitationFormatter,
	publisher service.EventPublisher,
) *Pipeline {
	return &Pipeline{
		ledger:     ledger,
		reconciler: reconciler,
		runs:       runs,
		contents:   contents,
		generator:  generator,
		gate:       gate,
		similarity: similarity,
		citations:  citations,
		publisher:  publisher,
	}
}

// Run 执行一次完整的生成请求：预留资金、逐块生成、质量整改、
// 聚合落库并结算差额。
func (p *Pipeline) Run(ctx context.Context, req *GenerationRequest) (*GenerationResult, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "generation.Run",
		trace.WithAttributes(
			attribute.String("user.id", req.UserID),
			attribute.String("plan.tier", string(req.PlanTier)),
			attribute.Int("requested.words", req.RequestedWords),
		))
	defer span.End()

	metrics.ActivePipelines.Inc()
	defer metrics.ActivePipelines.Dec()
	start := time.Now()

	run := entity.NewGenerationRun(req.UserID, req.Prompt, req.Style, req.Tone, req.Quality, req.PlanTier, req.RequestedWords)
	if err := p.runs.Create(ctx, run); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create generation run: %w", err)
	}
	span.SetAttributes(attribute.String("run.id", run.ID))

	// 预留资金：按预估产出扣费，失败时不发起任何生成调用
	promptWords := textutil.CountWords(req.Prompt)
	estimatedWords := credit.EstimateOutputWords(req.RequestedWords, req.Quality)
	estimatedCredits, err := credit.EstimateWriterCost(promptWords, req.RequestedWords, req.Quality)
	if err != nil {
		p.failRun(ctx, run, err)
		return nil, err
	}

	reservation, err := p.ledger.Deduct(ctx, req.UserID, estimatedCredits, estimatedWords, credit.ToolWriter)
	if err != nil {
		span.RecordError(err)
		p.failRun(ctx, run, err)
		return nil, err
	}
	run.Start(reservation.TransactionID, estimatedCredits)
	p.updateRun(ctx, run)
	reserved := []string{reservation.TransactionID}

	state, err := p.generateChunks(ctx, req)
	if err != nil {
		span.RecordError(err)
		p.compensate(ctx, req.UserID, reserved, run, err)
		return nil, err
	}

	content := state.JoinedText()
	bibliography := p.applyCitations(ctx, req, &content)
	summary := p.holisticReview(ctx, state, content)

	actualWords := textutil.CountWords(content)
	run.BeginReconcile(actualWords)
	p.updateRun(ctx, run)

	stored := entity.NewGeneratedContent(req.UserID, req.Prompt, req.Style, req.Tone, content, actualWords)
	stored.Keywords = textutil.TopKeywords(content, carryoverKeywords, keywordMinRunes, carryoverStopwords)
	stored.OriginalityScore = summary.OriginalityScore
	stored.AIDetectionScore = summary.AILikelihood
	stored.ReadabilityScore = summary.ReadabilityGrade
	if err := p.contents.Create(ctx, stored); err != nil {
		err = fmt.Errorf("failed to persist generated content: %w", err)
		span.RecordError(err)
		p.compensate(ctx, req.UserID, reserved, run, err)
		return nil, err
	}
	p.publishIndexEvent(ctx, stored, run)

	actualCredits, err := credit.WriterCost(promptWords, actualWords)
	if err != nil {
		span.RecordError(err)
		p.compensate(ctx, req.UserID, reserved, run, err)
		return nil, err
	}

	extraWords := actualWords - estimatedWords
	if extraWords < 0 {
		extraWords = 0
	}
	charged := actualCredits
	settle, err := p.reconciler.Settle(ctx, credit.SettleInput{
		UserID:           req.UserID,
		RunID:            run.ID,
		ReservationTxID:  reservation.TransactionID,
		EstimatedCredits: estimatedCredits,
		ActualCredits:    actualCredits,
		ExtraWords:       extraWords,
	})
	if err != nil {
		// 退款方向失败：内容照常交付，按预留额计费并在运行记录上留痕
		logger.Error(ctx, "settlement refund failed, charging reserved amount", err, "run_id", run.ID)
		span.RecordError(err)
		charged = estimatedCredits
		run.ErrorMessage = fmt.Sprintf("refund of %d credits failed during settlement", estimatedCredits-actualCredits)
	} else {
		charged = settle.ChargedCredits
		run.UnsettledCredits = settle.UnsettledCredits
	}

	run.ContentID = stored.ID
	run.ChunksGenerated = state.ChunkCount()
	run.RefinementCycles = state.RefinementCycles
	run.UsedSimilarContent = state.UsedSimilar
	run.OriginalityScore = summary.OriginalityScore
	run.AIDetectionScore = summary.AILikelihood
	run.ReadabilityScore = summary.ReadabilityGrade
	run.RequiresReview = summary.RequiresReview
	run.Complete(charged)
	p.updateRun(ctx, run)

	metrics.GenerationRunsTotal.WithLabelValues(string(req.PlanTier), "complete").Inc()
	metrics.GenerationRunDuration.WithLabelValues(string(req.PlanTier)).Observe(time.Since(start).Seconds())
	metrics.GenerationWordCount.Observe(float64(actualWords))

	return &GenerationResult{
		RunID:              run.ID,
		ContentID:          stored.ID,
		Content:            content,
		Bibliography:       bibliography,
		WordCount:          actualWords,
		EstimatedCredits:   estimatedCredits,
		ChargedCredits:     charged,
		UnsettledCredits:   run.UnsettledCredits,
		ChunksGenerated:    state.ChunkCount(),
		RefinementCycles:   state.RefinementCycles,
		UsedSimilarContent: state.UsedSimilar,
		Detection:          summary,
	}, nil
}

// generateChunks 顺序执行分块循环，直到产出达到请求字数。
// 分块严格串行，每块依赖上一块的接续上下文；取消只在分块之间检查。
func (p *Pipeline) generateChunks(ctx context.Context, req *GenerationRequest) (*GenerationState, error) {
	chunker := NewChunker(req.PlanTier, req.RequestedWords)
	sections := p.lookupSimilarSections(ctx, req, chunker)

	state := &GenerationState{}
	for state.TotalWords < req.RequestedWords {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeGenerationCancelled, "generation cancelled between chunks")
		}

		chunk, err := p.produceChunk(ctx, req, chunker, state, sections)
		if err != nil {
			return nil, err
		}
		state.Append(chunk)
		metrics.GenerationChunksTotal.WithLabelValues(string(chunk.Mode)).Inc()
	}
	return state, nil
}

// lookupSimilarSections 查找可复用的相似历史内容并按分块节奏切段。
// 相似复用只是优化，任何失败都回退为全新生成。
func (p *Pipeline) lookupSimilarSections(ctx context.Context, req *GenerationRequest, chunker *Chunker) []string {
	match, err := p.similarity.FindSimilar(ctx, &SimilarityQuery{
		Prompt:         req.Prompt,
		Style:          req.Style,
		Tone:           req.Tone,
		RequestedWords: req.RequestedWords,
	})
	if err != nil {
		logger.Warn(ctx, "similarity lookup failed, generating from scratch", "error", err.Error())
		return nil
	}
	if match == nil {
		return nil
	}
	logger.Info(ctx, "similar content found, polishing prior sections",
		"content_id", match.Content.ID, "similarity", match.Similarity)
	return chunker.Sections(match.Content.Content)
}

func (p *Pipeline) produceChunk(ctx context.Context, req *GenerationRequest, chunker *Chunker, state *GenerationState, sections []string) (*ChunkResult, error) {
	target := chunker.NextTarget(state.TotalWords)
	role := chunker.Role(state.ChunkIndex, state.TotalWords)

	mode := ChunkModeFresh
	var text string
	if state.ChunkIndex < len(sections) {
		polished, err := p.generator.Polish(ctx, &wfmodel.ChunkPolishInput{
			Prompt:          req.Prompt,
			Style:           req.Style,
			Tone:            req.Tone,
			BaseContent:     sections[state.ChunkIndex],
			TargetWordCount: target,
			Provider:        req.Provider,
			Model:           req.Model,
		})
		if err != nil {
			logger.Warn(ctx, "polish from similar content failed, falling back to fresh generation",
				"chunk_index", state.ChunkIndex, "error", err.Error())
		} else {
			mode = ChunkModePolish
			text = polished
		}
	}
	if mode == ChunkModeFresh {
		fresh, err := p.generator.Fresh(ctx, &wfmodel.ChunkGenerateInput{
			Prompt:           req.Prompt,
			Style:            req.Style,
			Tone:             req.Tone,
			CarryoverContext: state.Carryover,
			SectionIndex:     state.ChunkIndex,
			SectionRole:      role.Label(),
			TotalWordCount:   req.RequestedWords,
			TargetWordCount:  target,
			QualityTier:      req.Quality,
			Provider:         req.Provider,
			Model:            req.Model,
		})
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeGenerationFailed, "chunk generation failed")
		}
		text = fresh
	}

	text, gate, cycles := p.refineChunk(ctx, req, state, target, text)
	return &ChunkResult{
		Text:   text,
		Words:  textutil.CountWords(text),
		Mode:   mode,
		Cycles: cycles,
		Gate:   gate,
	}, nil
}

// refineChunk 质量门整改循环：high 整段重写，medium 定向改写，
// 每轮后重新评估，轮数用尽后接受当前内容。整改调用失败不致命。
func (p *Pipeline) refineChunk(ctx context.Context, req *GenerationRequest, state *GenerationState, target int, text string) (string, *DetectionResult, int) {
	gate := p.gate.Evaluate(ctx, text)
	cycles := 0
	for gate.NeedsRefinement && cycles < maxRefinementCycles {
		cycles++
		metrics.GenerationRefinementCycles.WithLabelValues(string(gate.Severity)).Inc()

		in := &wfmodel.ChunkRefineInput{
			Prompt:           req.Prompt,
			Style:            req.Style,
			Tone:             req.Tone,
			CarryoverContext: state.Carryover,
			Draft:            text,
			Issues:           gate.Issues,
			TargetWordCount:  target,
			Provider:         req.Provider,
			Model:            req.Model,
		}

		var refined string
		var err error
		if gate.Severity == SeverityHigh {
			in.Issues = append(append([]string(nil), gate.Issues...), gate.Recommendations...)
			refined, err = p.generator.Regenerate(ctx, in)
		} else {
			refined, err = p.generator.Rewrite(ctx, in)
		}
		if err != nil {
			logger.Warn(ctx, "refinement pass failed, keeping current draft",
				"severity", string(gate.Severity), "error", err.Error())
			break
		}

		text = refined
		gate = p.gate.Evaluate(ctx, text)
	}
	return text, gate, cycles
}

// applyCitations 按请求对最终内容执行引用补全。
// 失败时保留原文交付，引用属于增值处理而非正确性要求。
func (p *Pipeline) applyCitations(ctx context.Context, req *GenerationRequest, content *string) string {
	if !req.WithCitations || p.citations == nil {
		return ""
	}

	result, err := p.citations.Apply(ctx, &CitationPassInput{
		Text:     *content,
		Style:    req.CitationStyle,
		Provider: req.Provider,
		Model:    req.Model,
	})
	if err != nil {
		logger.Warn(ctx, "citation pass failed, delivering content without citations", "error", err.Error())
		return ""
	}
	*content = result.ProcessedText
	return result.Bibliography
}

// holisticReview 整篇复检并并入分块信号。
// 整篇检测不可用时，以各分块检测的最差值近似整篇指标。
func (p *Pipeline) holisticReview(ctx context.Context, state *GenerationState, content string) DetectionSummary {
	final := p.gate.Evaluate(ctx, content)

	summary := DetectionSummary{
		OriginalityScore: final.OriginalityScore,
		AILikelihood:     final.AILikelihood,
		ReadabilityGrade: final.ReadabilityGrade,
		RequiresReview:   final.NeedsRefinement,
		Degraded:         final.Degraded,
	}
	if final.Degraded {
		scored := false
		worstOriginality := float64(100)
		for _, chunk := range state.Results {
			if chunk.Gate == nil || chunk.Gate.Degraded {
				continue
			}
			scored = true
			worstOriginality = math.Min(worstOriginality, chunk.Gate.OriginalityScore)
			summary.AILikelihood = math.Max(summary.AILikelihood, chunk.Gate.AILikelihood)
			summary.ReadabilityGrade = math.Max(summary.ReadabilityGrade, chunk.Gate.ReadabilityGrade)
		}
		if scored {
			summary.OriginalityScore = worstOriginality
		}
	}

	// 任何分块整改后仍有问题，整篇记为待复核
	for _, chunk := range state.Results {
		if chunk.Gate != nil && chunk.Gate.NeedsRefinement {
			summary.RequiresReview = true
		}
	}
	return summary
}

// publishIndexEvent 投递异步向量索引事件。
// 发布失败由 index-worker 的未索引内容扫描兜底。
func (p *Pipeline) publishIndexEvent(ctx context.Context, content *entity.GeneratedContent, run *entity.GenerationRun) {
	if p.publisher == nil {
		return
	}
	err := p.publisher.PublishContentIndex(ctx, service.ContentIndexEvent{
		ContentID: content.ID,
		UserID:    content.UserID,
		RunID:     run.ID,
	})
	if err != nil {
		logger.Warn(ctx, "failed to publish content index event",
			"content_id", content.ID, "error", err.Error())
	}
}

// compensate 失败补偿：撤销本次运行创建的全部扣费。
// 原始上下文可能已取消，补偿用分离上下文执行。
func (p *Pipeline) compensate(ctx context.Context, userID string, deductionTxIDs []string, run *entity.GenerationRun, cause error) {
	ctx = context.WithoutCancel(ctx)
	if err := p.reconciler.RollbackAll(ctx, userID, deductionTxIDs); err != nil {
		logger.Error(ctx, "rollback after pipeline failure failed", err, "run_id", run.ID)
	}
	p.failRun(ctx, run, cause)
}

func (p *Pipeline) failRun(ctx context.Context, run *entity.GenerationRun, cause error) {
	run.Fail(cause.Error())
	p.updateRun(ctx, run)
	metrics.GenerationRunsTotal.WithLabelValues(string(run.PlanTier), "failed").Inc()
}

func (p *Pipeline) updateRun(ctx context.Context, run *entity.GenerationRun) {
	if err := p.runs.Update(ctx, run); err != nil {
		logger.Error(ctx, "failed to update generation run", err,
			"run_id", run.ID, "status", string(run.Status))
	}
}
