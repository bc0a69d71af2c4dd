// Package ai talks to an OpenAI-compatible chat-completions endpoint to
// produce the per-vehicle enrichment artifacts: translation, sanity check,
// fit score, mechanic report, priority rating. Responses are requested as
// JSON and validated before they reach the pipeline.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jgarciagalvez/car-finder-ai-sub000/models"
	apperrors "github.com/jgarciagalvez/car-finder-ai-sub000/pkg/errors"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/metrics"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/retry"
)

// Translation is the translate step output: an English description plus the
// extracted feature list.
type Translation struct {
	Description string   `json:"description"`
	Features    []string `json:"features"`
}

// PriorityRating combines a 0-10 rating with a short justification.
type PriorityRating struct {
	Rating  float64 `json:"rating"`
	Summary string  `json:"summary"`
}

// Client is a chat-completions client for one configured model.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	fitCriteria string
	httpClient  *http.Client
	retryConfig retry.RetryConfig
	logger      *zap.Logger
	metrics     *metrics.ApplicationMetrics
}

// ClientConfig carries the endpoint settings, normally sourced from the
// environment config.
type ClientConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	FitCriteria string
	Timeout     time.Duration
	Logger      *zap.Logger
	Metrics     *metrics.ApplicationMetrics
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.L()
	}
	retryConfig := retry.DefaultRetryConfig()
	retryConfig.Logger = logger
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		fitCriteria: cfg.FitCriteria,
		httpClient:  &http.Client{Timeout: timeout},
		retryConfig: retryConfig,
		logger:      logger,
		metrics:     cfg.Metrics,
	}
}

// TranslateVehicleContent translates the raw listing into English and
// extracts its feature list.
func (c *Client) TranslateVehicleContent(ctx context.Context, vehicle *models.VehicleRecord) (*Translation, error) {
	content, err := c.complete(ctx, "translate", translateSystemPrompt, translateUserPrompt(vehicle))
	if err != nil {
		return nil, err
	}
	var out Translation
	if err := decodeJSON(content, &out); err != nil {
		return nil, err
	}
	if out.Description == "" {
		return nil, apperrors.NewValidationError("translation returned an empty description")
	}
	if out.Features == nil {
		out.Features = []string{}
	}
	return &out, nil
}

// GeneratePersonalFitScore scores the vehicle 0-10 against the configured
// personal criteria.
func (c *Client) GeneratePersonalFitScore(ctx context.Context, vehicle *models.VehicleRecord) (float64, error) {
	content, err := c.complete(ctx, "fit_score", fitScoreSystemPrompt, fitScoreUserPrompt(vehicle, c.fitCriteria))
	if err != nil {
		return 0, err
	}
	var out struct {
		Score float64 `json:"score"`
	}
	if err := decodeJSON(content, &out); err != nil {
		return 0, err
	}
	if out.Score < 0 || out.Score > 10 {
		return 0, apperrors.NewValidationError(fmt.Sprintf("fit score %v out of range 0-10", out.Score))
	}
	return out.Score, nil
}

// GeneratePriorityRating rates how urgently the vehicle deserves attention,
// reading the earlier analysis fields off the record.
func (c *Client) GeneratePriorityRating(ctx context.Context, vehicle *models.VehicleRecord) (*PriorityRating, error) {
	content, err := c.complete(ctx, "priority_rating", prioritySystemPrompt, priorityUserPrompt(vehicle))
	if err != nil {
		return nil, err
	}
	var out PriorityRating
	if err := decodeJSON(content, &out); err != nil {
		return nil, err
	}
	if out.Rating < 0 || out.Rating > 10 {
		return nil, apperrors.NewValidationError(fmt.Sprintf("priority rating %v out of range 0-10", out.Rating))
	}
	if strings.TrimSpace(out.Summary) == "" {
		return nil, apperrors.NewValidationError("priority rating returned an empty summary")
	}
	return &out, nil
}

// GenerateMechanicReport produces the known-issues writeup for the
// vehicle's generation and engine.
func (c *Client) GenerateMechanicReport(ctx context.Context, vehicle *models.VehicleRecord) (string, error) {
	content, err := c.complete(ctx, "mechanic_report", mechanicSystemPrompt, mechanicUserPrompt(vehicle))
	if err != nil {
		return "", err
	}
	report := strings.TrimSpace(content)
	if report == "" {
		return "", apperrors.NewValidationError("mechanic report came back empty")
	}
	return report, nil
}

// GenerateDataSanityCheck cross-checks the listing's parameters against its
// description for inconsistencies.
func (c *Client) GenerateDataSanityCheck(ctx context.Context, vehicle *models.VehicleRecord) (string, error) {
	content, err := c.complete(ctx, "sanity_check", sanitySystemPrompt, sanityUserPrompt(vehicle))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// complete sends one chat exchange, retrying retryable failures with
// backoff.
func (c *Client) complete(ctx context.Context, op, system, user string) (string, error) {
	var content string
	err := retry.Retry(ctx, c.retryConfig, func() error {
		var callErr error
		content, callErr = c.completeOnce(ctx, op, system, user)
		return callErr
	})
	return content, err
}

func (c *Client) completeOnce(ctx context.Context, op, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", apperrors.NewAIError("unable to encode chat request", 0).WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", apperrors.NewAIError("unable to build chat request", 0).WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordCall(op, 0, time.Since(start))
		return "", apperrors.NewAIError("chat request failed", 0).WithCause(err)
	}
	defer resp.Body.Close()
	c.recordCall(op, resp.StatusCode, time.Since(start))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.NewAIError("unable to read chat response", resp.StatusCode).WithCause(err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", apperrors.NewRateLimitError("model endpoint rate limited the request")
	case resp.StatusCode != http.StatusOK:
		msg := fmt.Sprintf("model endpoint returned %d", resp.StatusCode)
		var parsed chatResponse
		if json.Unmarshal(raw, &parsed) == nil && parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", apperrors.NewAIError(msg, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", apperrors.NewAIError("chat response is not valid JSON", resp.StatusCode).WithCause(err)
	}
	if len(parsed.Choices) == 0 {
		return "", apperrors.NewAIError("chat response contained no choices", resp.StatusCode)
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *Client) recordCall(op string, status int, d time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordAICall(op, status, d)
	}
}

// decodeJSON parses a model reply as JSON, tolerating a markdown code
// fence around it.
func decodeJSON(content string, out interface{}) error {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	if err := json.Unmarshal([]byte(trimmed), out); err != nil {
		return apperrors.NewAIError("model reply is not the requested JSON shape", 0).WithCause(err)
	}
	return nil
}
