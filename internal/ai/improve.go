// Package ai improves campaign content through an Azure OpenAI structured
// JSON completion. The whole feature is optional: with no credentials
// configured every call returns ErrUnavailable and the rest of the service
// is unaffected.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/mailblast/internal/config"
	"github.com/ignite/mailblast/internal/pkg/logger"
)

// ErrUnavailable is returned when Azure OpenAI credentials are missing.
var ErrUnavailable = errors.New("AI service is not available: check Azure OpenAI configuration")

const systemPrompt = "You are an expert email marketing consultant. Provide concise improvements " +
	"for the email. Keep your response short and focused. Return a valid JSON object with these keys: " +
	"improved_subject, improved_body, spam_suggestions (max 3 items), general_improvements (max 3 items), " +
	"spam_score_assessment (one sentence), and deliverability_tips (max 2 items)."

// Improvement is the structured response of one improvement request.
type Improvement struct {
	ImprovedSubject     string   `json:"improved_subject"`
	ImprovedBody        string   `json:"improved_body"`
	SpamSuggestions     []string `json:"spam_suggestions"`
	GeneralImprovements []string `json:"general_improvements"`
	SpamScoreAssessment string   `json:"spam_score_assessment"`
	DeliverabilityTips  []string `json:"deliverability_tips"`
}

var requiredFields = []string{
	"improved_subject", "improved_body", "spam_suggestions",
	"general_improvements", "spam_score_assessment", "deliverability_tips",
}

// Client calls the Azure OpenAI chat completions API.
type Client struct {
	cfg        config.AzureConfig
	httpClient *http.Client
}

// NewClient creates an improvement client. The client is returned even when
// credentials are missing; Improve reports ErrUnavailable in that case.
func NewClient(cfg config.AzureConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Enabled reports whether the client has credentials.
func (c *Client) Enabled() bool { return c.cfg.Enabled() }

// Improve asks the model for an improved subject and body plus
// spam-proofing and deliverability suggestions. Placeholders like {name}
// are preserved by instruction.
func (c *Client) Improve(ctx context.Context, subject, body, campaignContext string) (*Improvement, error) {
	if !c.Enabled() {
		return nil, ErrUnavailable
	}

	if campaignContext == "" {
		campaignContext = "General mass email campaign"
	}
	prompt := fmt.Sprintf(`Analyze and improve the following email.
Preserve placeholders like {name}.
Focus on content quality, spam-proofing, and deliverability.
Be very concise in your suggestions.

Original Email:
Subject: %s
Body: %s
Additional Context: %s
`, subject, body, campaignContext)

	reqBody := map[string]any{
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
		"response_format": map[string]string{"type": "json_object"},
		"max_tokens":      2000,
		"temperature":     0.3,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimRight(c.cfg.Endpoint, "/"), c.cfg.Deployment, c.cfg.APIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling Azure OpenAI: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("Azure OpenAI returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("decoding completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New("Azure OpenAI returned no choices")
	}

	content := completion.Choices[0].Message.Content
	logger.Debug("AI improvement response", "length", len(content))

	return parseImprovement(content)
}

// parseImprovement validates that the model returned every required field
// before unmarshalling into the typed struct.
func parseImprovement(content string) (*Improvement, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("AI response is not valid JSON: %w", err)
	}

	var missing []string
	for _, field := range requiredFields {
		if _, ok := raw[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("AI response missing required fields: %s", strings.Join(missing, ", "))
	}

	imp := &Improvement{}
	if err := json.Unmarshal([]byte(content), imp); err != nil {
		return nil, fmt.Errorf("parsing AI response: %w", err)
	}
	return imp, nil
}
