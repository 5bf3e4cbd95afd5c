package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"quiettime/internal/fault"
)

// GeminiProvider implements Provider against the Gemini REST API with a
// hand-rolled HTTP client. Responses are requested as JSON with the schema
// enforced via generationConfig.responseJsonSchema and decoded strictly.
type GeminiProvider struct {
	apiKey          string
	baseURL         string
	model           string
	maxOutputTokens int
	httpClient      *http.Client
	logger          *zap.Logger

	mu          sync.Mutex
	lastRequest time.Time
}

// GeminiConfig holds configuration for the Gemini provider.
type GeminiConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	MaxOutputTokens int
}

// DefaultGeminiConfig returns sensible defaults.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:          apiKey,
		BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
		Model:           "gemini-2.0-flash",
		Timeout:         60 * time.Second,
		MaxOutputTokens: 2048,
	}
}

// NewGeminiProvider creates a provider with custom config.
func NewGeminiProvider(cfg GeminiConfig, logger *zap.Logger) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fault.Configuration("gemini API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 2048
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiProvider{
		apiKey:          cfg.APIKey,
		baseURL:         cfg.BaseURL,
		model:           cfg.Model,
		maxOutputTokens: cfg.MaxOutputTokens,
		httpClient:      &http.Client{Timeout: cfg.Timeout},
		logger:          logger,
	}, nil
}

// Wire types for the generateContent endpoint.

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature        float64                `json:"temperature"`
	MaxOutputTokens    int                    `json:"maxOutputTokens"`
	ResponseMimeType   string                 `json:"responseMimeType,omitempty"`
	ResponseJsonSchema map[string]interface{} `json:"responseJsonSchema,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

const recommendSystemPrompt = `You are a pastoral scripture recommendation assistant.
Given a user's emotional or situational note, recommend one Bible passage that
speaks to it. The verseRef field must be exactly "Book Chapter:Verse"
(for example "John 3:16" or "시편 23:1"). The rationale must be one or two
sentences in the user's locale. Respond with only the JSON object.`

const explanationSystemPrompt = `You are a pastoral scripture recommendation assistant.
Given a user's emotional or situational note, choose one Bible passage, quote
its text, and explain in Korean why it fits, in one or two sentences. The
verseRef field must be exactly "Book Chapter:Verse". Set safety.status to
"blocked" with a reason if the note should not receive a recommendation.
Respond with only the JSON object.`

const safeModeAddendum = `
The note was flagged for review: keep the recommendation gentle and general,
avoid referencing specifics of the note.`

// Recommend asks for the lightweight verse recommendation.
func (p *GeminiProvider) Recommend(ctx context.Context, req Request) (RawRecommendation, error) {
	body, err := p.generate(ctx, recommendSystemPrompt, req, RecommendationSchema())
	if err != nil {
		return RawRecommendation{}, err
	}
	var out RawRecommendation
	if err := decodeStrict(body, &out); err != nil {
		return RawRecommendation{}, err
	}
	if err := out.Validate(); err != nil {
		return RawRecommendation{}, err
	}
	return out, nil
}

// GenerateExplanation asks for the full generation with verse text and a
// Korean explanation.
func (p *GeminiProvider) GenerateExplanation(ctx context.Context, req Request) (RawExplanation, error) {
	body, err := p.generate(ctx, explanationSystemPrompt, req, ExplanationSchema())
	if err != nil {
		return RawExplanation{}, err
	}
	var out RawExplanation
	if err := decodeStrict(body, &out); err != nil {
		return RawExplanation{}, err
	}
	if err := out.Validate(); err != nil {
		return RawExplanation{}, err
	}
	return out, nil
}

func decodeStrict(body string, v interface{}) error {
	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fault.Network(fmt.Sprintf("malformed provider response: %.120s", body), err)
	}
	return nil
}

func buildUserPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "locale: %s\nmood: %s\n", req.Locale, req.Mood)
	if req.Note != "" {
		fmt.Fprintf(&b, "note: %s\n", req.Note)
	}
	if req.Nickname != "" {
		fmt.Fprintf(&b, "nickname: %s\n", req.Nickname)
	}
	if req.Gender != "" {
		fmt.Fprintf(&b, "gender: %s\n", req.Gender)
	}
	return b.String()
}

// generate performs the HTTP call with schema enforcement and a small retry
// loop for 429s. The first candidate's text parts are returned joined.
func (p *GeminiProvider) generate(ctx context.Context, systemPrompt string, req Request, schema Schema) (string, error) {
	// Auto-apply timeout if the context has no deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.httpClient.Timeout)
		defer cancel()
	}

	if req.SafeMode {
		systemPrompt += safeModeAddendum
	}

	// Space out requests; the API throttles bursts aggressively.
	p.mu.Lock()
	if elapsed := time.Since(p.lastRequest); elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	p.lastRequest = time.Now()
	p.mu.Unlock()

	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: buildUserPrompt(req)}}},
		},
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: systemPrompt}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:        1.0,
			MaxOutputTokens:    p.maxOutputTokens,
			ResponseMimeType:   "application/json",
			ResponseJsonSchema: schema.Raw(),
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, p.model, p.apiKey)

	const maxRetries = 3
	var lastErr error
	start := time.Now()

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", fault.Network("generation cancelled", ctx.Err())
			case <-time.After(time.Duration(1<<uint(attempt-1)) * time.Second):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := p.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return "", fault.Network("generation cancelled", ctx.Err())
			}
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limit exceeded (429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return "", fault.Network(fmt.Sprintf("API request failed with status %d: %.200s", resp.StatusCode, string(body)), nil)
		}

		var decoded geminiResponse
		if err := json.Unmarshal(body, &decoded); err != nil {
			return "", fault.Network("failed to parse provider response", err)
		}
		if decoded.Error != nil {
			return "", fault.Network(fmt.Sprintf("API error: %s", decoded.Error.Message), nil)
		}
		if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
			return "", fault.Network("no completion returned", nil)
		}

		var result strings.Builder
		for _, part := range decoded.Candidates[0].Content.Parts {
			result.WriteString(part.Text)
		}
		p.logger.Debug("generation completed",
			zap.String("model", p.model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Int("response_len", result.Len()))
		return strings.TrimSpace(result.String()), nil
	}

	return "", fault.Network("max retries exceeded", lastErr)
}
