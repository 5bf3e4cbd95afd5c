package generation

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

	"quiettime/internal/fault"
)

// CallableProvider implements Provider against the remote proxy boundary:
// two authenticated callable endpoints, recommendVerse and
// generateKoreanExplanation. The server performs its own moderation and
// quota checks; this client's job is exact error-code mapping.
type CallableProvider struct {
	baseURL    string
	tokenFn    func(ctx context.Context) (string, error)
	httpClient *http.Client
	logger     *zap.Logger
}

// CallableConfig configures the proxy client. TokenFn must return a fresh
// bearer token for the current caller; an empty token means the caller is
// not signed in.
type CallableConfig struct {
	BaseURL string
	Timeout time.Duration
	TokenFn func(ctx context.Context) (string, error)
}

// NewCallableProvider builds the proxy client.
func NewCallableProvider(cfg CallableConfig, logger *zap.Logger) (*CallableProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fault.Configuration("callable base URL is required")
	}
	if cfg.TokenFn == nil {
		return nil, fault.Configuration("callable token source is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CallableProvider{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		tokenFn:    cfg.TokenFn,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

// Callable wire envelope: {"data": ...} in, {"result": ...} or
// {"error": {"status": ..., "message": ...}} out.

type callableEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type callableResult struct {
	Result json.RawMessage `json:"result"`
	Error  *callableError  `json:"error"`
}

type callableError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Recommend calls the recommendVerse endpoint.
func (p *CallableProvider) Recommend(ctx context.Context, req Request) (RawRecommendation, error) {
	raw, err := p.call(ctx, "recommendVerse", req)
	if err != nil {
		return RawRecommendation{}, err
	}
	var out RawRecommendation
	if err := decodeStrict(string(raw), &out); err != nil {
		return RawRecommendation{}, err
	}
	if err := out.Validate(); err != nil {
		return RawRecommendation{}, err
	}
	return out, nil
}

// GenerateExplanation calls the generateKoreanExplanation endpoint.
func (p *CallableProvider) GenerateExplanation(ctx context.Context, req Request) (RawExplanation, error) {
	raw, err := p.call(ctx, "generateKoreanExplanation", req)
	if err != nil {
		return RawExplanation{}, err
	}
	var out RawExplanation
	if err := decodeStrict(string(raw), &out); err != nil {
		return RawExplanation{}, err
	}
	if err := out.Validate(); err != nil {
		return RawExplanation{}, err
	}
	return out, nil
}

func (p *CallableProvider) call(ctx context.Context, endpoint string, req Request) (json.RawMessage, error) {
	token, err := p.tokenFn(ctx)
	if err != nil {
		return nil, fault.Wrap(fault.KindUnauthorized, "token source failed", err)
	}
	if token == "" {
		return nil, fault.Unauthorized()
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	payload, err := json.Marshal(callableEnvelope{Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}

	url := p.baseURL + "/" + endpoint
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fault.Network(endpoint+" cancelled", ctx.Err())
		}
		return nil, fault.Network(endpoint+" request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fault.Network("failed to read response", err)
	}

	if err := mapCallableStatus(resp.StatusCode, endpoint, body); err != nil {
		p.logger.Warn("callable endpoint rejected request",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("kind", fault.KindOf(err).String()))
		return nil, err
	}

	var decoded callableResult
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fault.Network("malformed callable envelope", err)
	}
	if decoded.Error != nil {
		return nil, mapCallableErrorStatus(decoded.Error)
	}
	if len(decoded.Result) == 0 {
		return nil, fault.Network("empty callable result", nil)
	}
	return decoded.Result, nil
}

// mapCallableStatus translates transport-level HTTP status codes into the
// domain taxonomy: unauthenticated is an auth error, invalid-argument means
// we sent something the server considers malformed, resource-exhausted is
// the quota, everything else is generic.
func mapCallableStatus(status int, endpoint string, body []byte) error {
	switch status {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return fault.Unauthorized()
	case http.StatusBadRequest:
		return fault.Network(fmt.Sprintf("%s rejected request: %.200s", endpoint, string(body)), nil)
	case http.StatusTooManyRequests:
		return fault.RateLimited()
	default:
		return fault.Unknownf("%s failed with status %d", endpoint, status)
	}
}

// mapCallableErrorStatus covers servers that return 200 with an error
// envelope, using the canonical status strings.
func mapCallableErrorStatus(ce *callableError) error {
	switch ce.Status {
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		return fault.Unauthorized()
	case "INVALID_ARGUMENT":
		return fault.Network("callable rejected argument: "+ce.Message, nil)
	case "RESOURCE_EXHAUSTED":
		return fault.RateLimited()
	default:
		return fault.Unknownf("callable error %s: %s", ce.Status, ce.Message)
	}
}
