package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jgarciagalvez/car-finder-ai-sub000/models"
	apperrors "github.com/jgarciagalvez/car-finder-ai-sub000/pkg/errors"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/metrics"
	"github.com/jgarciagalvez/car-finder-ai-sub000/pkg/retry"
)

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	reply := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]interface{}{"role": "assistant", "content": content}},
		},
	}
	require.NoError(t, json.NewEncoder(w).Encode(reply))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewClient(ClientConfig{
		BaseURL:     server.URL,
		APIKey:      "test-key",
		Model:       "test-model",
		FitCriteria: "reliable family car under 15000 EUR",
		Timeout:     5 * time.Second,
		Logger:      zap.NewNop(),
	})
	// Keep failure tests fast.
	c.retryConfig = retry.RetryConfig{
		MaxAttempts:   2,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2,
		Logger:        zap.NewNop(),
	}
	return c
}

func sampleVehicle() *models.VehicleRecord {
	return &models.VehicleRecord{
		SourceTitle:           "Mazda CX-5 2.2 SkyPassion",
		Title:                 "Mazda CX-5 2.2 SkyPassion",
		SourceDescriptionHTML: "<p>Pierwszy właściciel</p>",
		Year:                  2017,
		Mileage:               150000,
		PricePLN:              95000,
		PriceEUR:              22093,
		SourceParameters:      models.Params{"Rodzaj paliwa": "Diesel"},
	}
}

func TestTranslateVehicleContent(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)

		chatReply(t, w, `{"description": "First owner, serviced at dealer.", "features": ["One owner"]}`)
	})

	got, err := c.TranslateVehicleContent(context.Background(), sampleVehicle())
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "First owner, serviced at dealer.", got.Description)
	assert.Equal(t, []string{"One owner"}, got.Features)
}

func TestTranslateToleratesMarkdownFence(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, "```json\n{\"description\": \"Clean car.\", \"features\": []}\n```")
	})

	got, err := c.TranslateVehicleContent(context.Background(), sampleVehicle())
	require.NoError(t, err)
	assert.Equal(t, "Clean car.", got.Description)
}

func TestTranslateEmptyDescriptionFailsValidation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, `{"description": "", "features": []}`)
	})

	_, err := c.TranslateVehicleContent(context.Background(), sampleVehicle())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestGeneratePersonalFitScore(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, `{"score": 7.5}`)
	})

	score, err := c.GeneratePersonalFitScore(context.Background(), sampleVehicle())
	require.NoError(t, err)
	assert.Equal(t, 7.5, score)
}

func TestGeneratePersonalFitScoreOutOfBounds(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, `{"score": 15}`)
	})

	_, err := c.GeneratePersonalFitScore(context.Background(), sampleVehicle())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestGeneratePriorityRatingRequiresSummary(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, `{"rating": 8, "summary": "  "}`)
	})

	_, err := c.GeneratePriorityRating(context.Background(), sampleVehicle())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestRateLimitedRequestIsRetried(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		chatReply(t, w, `{"rating": 8, "summary": "Great price for the mileage."}`)
	})

	got, err := c.GeneratePriorityRating(context.Background(), sampleVehicle())
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 8.0, got.Rating)
}

func TestServerErrorIsRetryable(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.GenerateMechanicReport(context.Background(), sampleVehicle())
	require.Error(t, err)
	assert.Equal(t, 2, attempts, "retryable failure uses every attempt")
	assert.True(t, apperrors.IsRetryable(err))
}

func TestClientErrorIsNotRetried(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "model not found"}}`))
	})

	_, err := c.GenerateMechanicReport(context.Background(), sampleVehicle())
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAI))
	assert.False(t, apperrors.IsRetryable(err))
	assert.Contains(t, err.Error(), "model not found")
}

func TestGenerateDataSanityCheck(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, "Mileage in description matches parameters. No inconsistencies found.")
	})

	report, err := c.GenerateDataSanityCheck(context.Background(), sampleVehicle())
	require.NoError(t, err)
	assert.Contains(t, report, "No inconsistencies")
}

func TestCallsAreRecordedPerAttempt(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		chatReply(t, w, `{"description": "Clean car.", "features": []}`)
	}))
	t.Cleanup(server.Close)

	collector := metrics.NewSimpleCollector(zap.NewNop())
	c := NewClient(ClientConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "test-model",
		Timeout: 5 * time.Second,
		Metrics: metrics.NewApplicationMetrics(collector, zap.NewNop()),
		Logger:  zap.NewNop(),
	})
	c.retryConfig = retry.RetryConfig{
		MaxAttempts:   2,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2,
		Logger:        zap.NewNop(),
	}

	_, err := c.TranslateVehicleContent(context.Background(), sampleVehicle())
	require.NoError(t, err)

	assert.Equal(t, 1.0, collector.CounterValue("ai_calls_total",
		map[string]string{"operation": "translate", "status": "429"}), "rate-limited attempt")
	assert.Equal(t, 1.0, collector.CounterValue("ai_calls_total",
		map[string]string{"operation": "translate", "status": "200"}), "successful retry")
}
