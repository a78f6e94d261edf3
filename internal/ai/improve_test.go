package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailblast/internal/config"
)

func testConfig(endpoint string) config.AzureConfig {
	return config.AzureConfig{
		APIKey:     "test-key",
		Endpoint:   endpoint,
		APIVersion: "2024-11-20-preview",
		Deployment: "gpt-4o",
	}
}

func completionResponse(content any) string {
	data, _ := json.Marshal(content)
	resp, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": string(data)}},
		},
	})
	return string(resp)
}

func TestImprove(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/deployments/gpt-4o/chat/completions", r.URL.Path)
		assert.Equal(t, "2024-11-20-preview", r.URL.Query().Get("api-version"))
		assert.Equal(t, "test-key", r.Header.Get("api-key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body["messages"], 2)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionResponse(map[string]any{
			"improved_subject":      "Better subject",
			"improved_body":         "Better body with {name}",
			"spam_suggestions":      []string{"avoid FREE in caps"},
			"general_improvements":  []string{"shorter paragraphs"},
			"spam_score_assessment": "Low risk.",
			"deliverability_tips":   []string{"authenticate your domain"},
		})))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	imp, err := c.Improve(context.Background(), "subject", "body", "")
	require.NoError(t, err)

	assert.Equal(t, "Better subject", imp.ImprovedSubject)
	assert.Equal(t, "Better body with {name}", imp.ImprovedBody)
	assert.Equal(t, []string{"avoid FREE in caps"}, imp.SpamSuggestions)
	assert.Equal(t, "Low risk.", imp.SpamScoreAssessment)
}

func TestImproveMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(completionResponse(map[string]any{
			"improved_subject": "only this",
		})))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	_, err := c.Improve(context.Background(), "s", "b", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required fields")
	assert.Contains(t, err.Error(), "improved_body")
}

func TestImproveInvalidJSONContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "not json at all"}},
			},
		})
		_, _ = w.Write(resp)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	_, err := c.Improve(context.Background(), "s", "b", "")
	assert.ErrorContains(t, err, "not valid JSON")
}

func TestImproveServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	_, err := c.Improve(context.Background(), "s", "b", "")
	assert.ErrorContains(t, err, "429")
}

func TestImproveUnavailable(t *testing.T) {
	c := NewClient(config.AzureConfig{})
	assert.False(t, c.Enabled())
	_, err := c.Improve(context.Background(), "s", "b", "")
	assert.ErrorIs(t, err, ErrUnavailable)
}
