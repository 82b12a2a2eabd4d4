package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/errors"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/escalation"
	"github.com/praxisops/crisis-exercise-backend/internal/infrastructure/config"
)

// Client talks to the content generation service over HTTP. Requests are
// rate limited client-side; the service's own quota errors are expensive to
// hit and non-deterministic to recover from.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

func NewClient(cfg *config.GenerationConfig, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:     logger,
	}
}

// GenerateFactors asks the service for a factor assessment.
func (c *Client) GenerateFactors(ctx context.Context, input *escalation.AnalysisInput) (*escalation.FactorsDraft, error) {
	var draft escalation.FactorsDraft
	if err := c.post(ctx, "/v1/escalation/factors", input, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

// GeneratePathways asks the service for pathway projections conditioned on
// the cycle's factor snapshot.
func (c *Client) GeneratePathways(ctx context.Context, input *escalation.AnalysisInput, factors *escalation.FactorSnapshot) (*escalation.PathwaysDraft, error) {
	req := struct {
		*escalation.AnalysisInput
		Factors *escalation.FactorSnapshot `json:"factors"`
	}{input, factors}

	var draft escalation.PathwaysDraft
	if err := c.post(ctx, "/v1/escalation/pathways", req, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

// GenerateMatrix asks the service for the cooperation matrix scoring.
func (c *Client) GenerateMatrix(ctx context.Context, input *escalation.AnalysisInput, factors *escalation.FactorSnapshot) (*escalation.MatrixDraft, error) {
	req := struct {
		*escalation.AnalysisInput
		Factors *escalation.FactorSnapshot `json:"factors"`
	}{input, factors}

	var draft escalation.MatrixDraft
	if err := c.post(ctx, "/v1/escalation/matrix", req, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

func (c *Client) post(ctx context.Context, path string, payload, dest interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewExternalError("generation", "request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("generation service returned error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet))
		return errors.NewExternalError("generation",
			fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, path))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return errors.NewExternalError("generation", "failed to decode response").WithCause(err)
	}
	return nil
}
