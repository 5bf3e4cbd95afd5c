package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"quiettime/internal/fault"
)

// GeminiModerator implements Provider on the Gemini API: the model is asked
// for a structured safety classification of the text, with the response
// schema enforced so the decode path stays strict.
type GeminiModerator struct {
	client *genai.Client
	model  string
	logger *zap.Logger

	// Category score at or above BlockThreshold blocks; at or above
	// ReviewThreshold it flags for review.
	blockThreshold  float64
	reviewThreshold float64
}

// GeminiModeratorConfig configures the moderator.
type GeminiModeratorConfig struct {
	APIKey          string
	Model           string
	BlockThreshold  float64
	ReviewThreshold float64
}

// NewGeminiModerator builds the moderator. Thresholds default to 0.8/0.5.
func NewGeminiModerator(ctx context.Context, cfg GeminiModeratorConfig, logger *zap.Logger) (*GeminiModerator, error) {
	if cfg.APIKey == "" {
		return nil, fault.Configuration("moderation API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.BlockThreshold <= 0 {
		cfg.BlockThreshold = 0.8
	}
	if cfg.ReviewThreshold <= 0 {
		cfg.ReviewThreshold = 0.5
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiModerator{
		client:          client,
		model:           cfg.Model,
		logger:          logger,
		blockThreshold:  cfg.BlockThreshold,
		reviewThreshold: cfg.ReviewThreshold,
	}, nil
}

const moderationPrompt = `Classify the following user text for content safety.
Score each category from 0.0 (absent) to 1.0 (clearly present):
harassment, hate, sexual, violence, self_harm, spam_or_ads.
Return only the JSON object described by the response schema.

Text:
`

// moderationSchema enforces the structured classification response.
var moderationSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"scores": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"harassment":  {Type: genai.TypeNumber},
				"hate":        {Type: genai.TypeNumber},
				"sexual":      {Type: genai.TypeNumber},
				"violence":    {Type: genai.TypeNumber},
				"self_harm":   {Type: genai.TypeNumber},
				"spam_or_ads": {Type: genai.TypeNumber},
			},
			Required: []string{"harassment", "hate", "sexual", "violence", "self_harm", "spam_or_ads"},
		},
	},
	Required: []string{"scores"},
}

type moderationResponse struct {
	Scores map[string]float64 `json:"scores"`
}

// Moderate classifies text. Transport failures surface as Network faults;
// classification outcomes are values, never errors.
func (m *GeminiModerator) Moderate(ctx context.Context, text string) (Report, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(moderationPrompt+text, genai.RoleUser),
	}
	resp, err := m.client.Models.GenerateContent(ctx, m.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   moderationSchema,
	})
	if err != nil {
		return Report{}, fault.Network("moderation call failed", err)
	}

	raw := strings.TrimSpace(resp.Text())
	var decoded moderationResponse
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return Report{}, fault.Network(fmt.Sprintf("malformed moderation response: %.120s", raw), err)
	}

	return m.reportFromScores(decoded.Scores), nil
}

// reportFromScores reduces per-category scores to a verdict: the highest
// score decides, compared against the block and review thresholds.
func (m *GeminiModerator) reportFromScores(scores map[string]float64) Report {
	var (
		top     string
		topVal  float64
		flagged []string
	)
	for category, score := range scores {
		if score >= m.reviewThreshold {
			flagged = append(flagged, category)
		}
		if score > topVal || (score == topVal && category < top) {
			top, topVal = category, score
		}
	}

	report := Report{Confidence: topVal, Categories: flagged}
	switch {
	case topVal >= m.blockThreshold:
		report.Verdict = Blocked(top)
	case topVal >= m.reviewThreshold:
		report.Verdict = NeedsReview(top)
	default:
		report.Verdict = Allowed()
	}

	if report.Verdict.Decision != DecisionAllowed {
		m.logger.Info("moderation flagged text",
			zap.String("verdict", report.Verdict.Decision.String()),
			zap.String("category", top),
			zap.Float64("score", topVal))
	}
	return report
}
