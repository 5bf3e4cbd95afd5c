package recommend

import (
	"context"
	"sync/atomic"
	"time"

	"quiettime/internal/generation"
	"quiettime/internal/moderation"
)

// MockLimiter implements quota.Limiter with function fields.
type MockLimiter struct {
	CheckDailyLimitFunc func(ctx context.Context, key string, now time.Time, tz *time.Location) (bool, error)
	CheckAndConsumeFunc func(ctx context.Context, key string, max int, period time.Duration) (bool, error)

	CheckCalls   atomic.Int32
	ConsumeCalls atomic.Int32
}

func (m *MockLimiter) CheckDailyLimit(ctx context.Context, key string, now time.Time, tz *time.Location) (bool, error) {
	m.CheckCalls.Add(1)
	if m.CheckDailyLimitFunc != nil {
		return m.CheckDailyLimitFunc(ctx, key, now, tz)
	}
	return true, nil
}

func (m *MockLimiter) CheckAndConsume(ctx context.Context, key string, max int, period time.Duration) (bool, error) {
	m.ConsumeCalls.Add(1)
	if m.CheckAndConsumeFunc != nil {
		return m.CheckAndConsumeFunc(ctx, key, max, period)
	}
	return true, nil
}

// MockModerator implements moderation.Provider.
type MockModerator struct {
	ModerateFunc func(ctx context.Context, text string) (moderation.Report, error)
	Calls        atomic.Int32
}

func (m *MockModerator) Moderate(ctx context.Context, text string) (moderation.Report, error) {
	m.Calls.Add(1)
	if m.ModerateFunc != nil {
		return m.ModerateFunc(ctx, text)
	}
	return moderation.Report{Verdict: moderation.Allowed(), Confidence: 0.1}, nil
}

// MockProvider implements generation.Provider.
type MockProvider struct {
	RecommendFunc           func(ctx context.Context, req generation.Request) (generation.RawRecommendation, error)
	GenerateExplanationFunc func(ctx context.Context, req generation.Request) (generation.RawExplanation, error)

	RecommendCalls atomic.Int32
	GenerateCalls  atomic.Int32
	LastRequest    generation.Request
}

func (m *MockProvider) Recommend(ctx context.Context, req generation.Request) (generation.RawRecommendation, error) {
	m.RecommendCalls.Add(1)
	m.LastRequest = req
	if m.RecommendFunc != nil {
		return m.RecommendFunc(ctx, req)
	}
	return generation.RawRecommendation{VerseRef: "John 3:16", Rationale: "God meets despair with love."}, nil
}

func (m *MockProvider) GenerateExplanation(ctx context.Context, req generation.Request) (generation.RawExplanation, error) {
	m.GenerateCalls.Add(1)
	m.LastRequest = req
	if m.GenerateExplanationFunc != nil {
		return m.GenerateExplanationFunc(ctx, req)
	}
	return generation.RawExplanation{
		VerseRef:  "시편 23:1",
		VerseText: "여호와는 나의 목자시니 내게 부족함이 없으리로다",
		Rationale: "지친 마음에 쉼을 주시는 약속입니다.",
		Tags:      []string{"comfort"},
		Safety:    generation.Safety{Status: "ok"},
	}, nil
}
