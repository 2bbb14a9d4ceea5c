// Package detection 提供内容检测服务客户端
package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"z-writer-ai-api/internal/application/generation"
	"z-writer-ai-api/internal/config"
)

// NewDetector 根据配置创建检测器。endpoint 留空时退化为本地启发式检测。
func NewDetector(cfg *config.DetectionConfig) generation.Detector {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return NewHeuristic()
	}
	return NewClient(cfg)
}

type Client struct {
	endpoint   string
	apiKey     string
	maxRetries int
	httpClient *http.Client
}

var _ generation.Detector = (*Client)(nil)

func NewClient(cfg *config.DetectionConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		maxRetries: maxRetries,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type scanRequest struct {
	Text string `json:"text"`
}

type scanSpan struct {
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Reason string `json:"reason"`
}

type scanResponse struct {
	OriginalityScore float64    `json:"originality_score"`
	AILikelihood     float64    `json:"ai_likelihood"`
	ReadabilityGrade float64    `json:"readability_grade"`
	FlaggedSpans     []scanSpan `json:"flagged_spans"`
	Recommendations  []string   `json:"recommendations"`
}

// Scan 调用远端检测服务。网络错误与 5xx 按配置重试，4xx 不重试。
func (c *Client) Scan(ctx context.Context, text string) (*generation.DetectionReport, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is empty")
	}

	resp, err := backoff.Retry(ctx,
		func() (*scanResponse, error) {
			return c.doScan(ctx, text)
		},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
	)
	if err != nil {
		return nil, err
	}

	report := &generation.DetectionReport{
		OriginalityScore: clampScore(resp.OriginalityScore),
		AILikelihood:     clampScore(resp.AILikelihood),
		ReadabilityGrade: resp.ReadabilityGrade,
		Recommendations:  resp.Recommendations,
	}
	for _, s := range resp.FlaggedSpans {
		report.FlaggedSpans = append(report.FlaggedSpans, generation.FlaggedSpan{
			Start:  s.Start,
			End:    s.End,
			Reason: s.Reason,
		})
	}
	return report, nil
}

func (c *Client) doScan(ctx context.Context, text string) (*scanResponse, error) {
	reqBody, err := json.Marshal(&scanRequest{Text: text})
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to marshal scan request: %w", err))
	}

	endpoint := strings.TrimRight(c.endpoint, "/")
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("invalid detection endpoint: %w", err))
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/v1/scan"
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(reqBody))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create scan request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("detection request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 && httpResp.StatusCode < 500 {
		return nil, backoff.Permanent(fmt.Errorf("detection request rejected: status=%d", httpResp.StatusCode))
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("detection request failed: status=%d", httpResp.StatusCode)
	}

	var resp scanResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode scan response: %w", err)
	}
	return &resp, nil
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
