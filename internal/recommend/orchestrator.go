// Package recommend is the use-case layer that turns a pre-filtered note
// into a verse recommendation. It sequences the quota check, the moderation
// call, the generation call, and the reference mapping, strictly in that
// order: the expensive calls never run after a cheaper stage has already
// rejected the request.
package recommend

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"quiettime/internal/fault"
	"quiettime/internal/generation"
	"quiettime/internal/moderation"
	"quiettime/internal/quota"
	"quiettime/internal/verse"
)

// QuotaKeyPrefix scopes generation quota per user.
const QuotaKeyPrefix = "generate_verse:"

// GeneratedVerse is the fully-mapped result. It is never partially
// populated: a mapping failure discards everything.
type GeneratedVerse struct {
	Verse       verse.Verse
	Rationale   string
	Explanation string // Korean explanation; empty in lightweight mode
	Tags        []string
}

// Input carries one generation request.
type Input struct {
	Text     string // normalized text from the pre-filter
	UserID   string
	Timezone *time.Location
	Locale   string
	Nickname string
	Gender   string
}

// Config tunes the orchestrator.
type Config struct {
	MinViableLen int // minimum runes of normalized text; default 2
	DailyMax     int // generations per user per day; default 3
}

func (c Config) withDefaults() Config {
	if c.MinViableLen <= 0 {
		c.MinViableLen = 2
	}
	if c.DailyMax <= 0 {
		c.DailyMax = 3
	}
	return c
}

// Service sequences the pipeline.
type Service struct {
	cfg       Config
	limiter   quota.Limiter
	moderator moderation.Provider
	provider  generation.Provider
	logger    *zap.Logger
	clock     func() time.Time
}

// NewService wires the orchestrator.
func NewService(cfg Config, limiter quota.Limiter, moderator moderation.Provider, provider generation.Provider, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:       cfg.withDefaults(),
		limiter:   limiter,
		moderator: moderator,
		provider:  provider,
		logger:    logger,
		clock:     time.Now,
	}
}

// WithClock replaces the time source. Test hook.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Generate runs the lightweight pipeline: quota, moderation, recommend call,
// reference mapping.
func (s *Service) Generate(ctx context.Context, in Input) (GeneratedVerse, error) {
	req, err := s.runGate(ctx, in)
	if err != nil {
		return GeneratedVerse{}, err
	}

	raw, err := s.provider.Recommend(ctx, req)
	if err != nil {
		return GeneratedVerse{}, asDomainError(err, "recommendation call failed")
	}

	v, err := verse.FromRef(raw.VerseRef, "")
	if err != nil {
		return GeneratedVerse{}, err
	}

	s.logger.Info("verse recommended",
		zap.String("user", in.UserID),
		zap.String("ref", v.Reference()))
	return GeneratedVerse{Verse: v, Rationale: raw.Rationale}, nil
}

// GenerateFull runs the full pipeline: same gate, then the explanation call
// with verse text and Korean rationale. A provider-side safety block is a
// moderation failure, not a successful generation.
func (s *Service) GenerateFull(ctx context.Context, in Input) (GeneratedVerse, error) {
	req, err := s.runGate(ctx, in)
	if err != nil {
		return GeneratedVerse{}, err
	}

	raw, err := s.provider.GenerateExplanation(ctx, req)
	if err != nil {
		return GeneratedVerse{}, asDomainError(err, "generation call failed")
	}
	if raw.Safety.Status == "blocked" {
		return GeneratedVerse{}, fault.ModerationBlocked(raw.Safety.Reason)
	}

	v, err := verse.FromRef(raw.VerseRef, raw.VerseText)
	if err != nil {
		return GeneratedVerse{}, err
	}

	s.logger.Info("verse generated",
		zap.String("user", in.UserID),
		zap.String("ref", v.Reference()),
		zap.Strings("tags", raw.Tags))
	return GeneratedVerse{
		Verse:       v,
		Rationale:   raw.Rationale,
		Explanation: raw.VerseText,
		Tags:        raw.Tags,
	}, nil
}

// runGate performs the shared, strictly-ordered pre-provider stages:
// validation (no I/O), quota check, moderation, quota consumption. It
// returns the provider request with safe mode already decided.
func (s *Service) runGate(ctx context.Context, in Input) (generation.Request, error) {
	// 1. Validation: cheapest check, no I/O.
	if utf8.RuneCountInString(in.Text) < s.cfg.MinViableLen {
		return generation.Request{}, fault.ValidationFailed("text too short to generate from")
	}
	if in.UserID == "" {
		return generation.Request{}, fault.ValidationFailed("user id required")
	}

	key := QuotaKeyPrefix + in.UserID
	tz := in.Timezone
	if tz == nil {
		tz = time.UTC
	}

	// 2. Quota check only. Nothing is consumed yet, so a later rejection
	// cannot waste the user's daily allowance.
	ok, err := s.limiter.CheckDailyLimit(ctx, key, s.clock(), tz)
	if err != nil {
		return generation.Request{}, asDomainError(err, "quota check failed")
	}
	if !ok {
		return generation.Request{}, fault.RateLimited()
	}

	// 3. Moderation. Blocked stops the pipeline before any money is spent;
	// needs-review continues in safe mode.
	report, err := s.moderator.Moderate(ctx, in.Text)
	if err != nil {
		return generation.Request{}, asDomainError(err, "moderation call failed")
	}
	safeMode := false
	switch report.Verdict.Decision {
	case moderation.DecisionBlocked:
		return generation.Request{}, fault.ModerationBlocked(report.Verdict.Reason)
	case moderation.DecisionNeedsReview:
		safeMode = true
		s.logger.Info("moderation requested review, continuing in safe mode",
			zap.String("reason", report.Verdict.Reason),
			zap.Float64("confidence", report.Confidence))
	}

	if err := ctx.Err(); err != nil {
		return generation.Request{}, fault.Network("generation cancelled", err)
	}

	// 4. Consume quota now that the request is known to be acceptable: a
	// moderation-blocked attempt never spends a unit. A concurrent caller
	// can drain the last unit between the check and here, so consumption
	// re-verifies atomically.
	ok, err = s.limiter.CheckAndConsume(ctx, key, s.cfg.DailyMax, 24*time.Hour)
	if err != nil {
		return generation.Request{}, asDomainError(err, "quota consume failed")
	}
	if !ok {
		return generation.Request{}, fault.RateLimited()
	}

	return generation.Request{
		Locale:   in.Locale,
		Mood:     in.Text,
		Nickname: in.Nickname,
		Gender:   in.Gender,
		SafeMode: safeMode,
	}, nil
}

// asDomainError passes through errors already in the taxonomy and wraps
// everything else as a network failure so provider-specific types never
// cross the boundary.
func asDomainError(err error, msg string) error {
	var fe *fault.Error
	if errors.As(err, &fe) {
		return err
	}
	return fault.Network(msg, err)
}
