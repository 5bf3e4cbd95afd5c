// quiettime is the command-line front end: daily verse recommendation,
// journal drafting, and sync against a replica database.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"quiettime/internal/config"
	"quiettime/internal/fault"
	"quiettime/internal/generation"
	"quiettime/internal/journal"
	"quiettime/internal/moderation"
	"quiettime/internal/prefilter"
	"quiettime/internal/recommend"
	"quiettime/internal/session"
	"quiettime/internal/store"
	"quiettime/internal/syncer"
	"quiettime/internal/verse"
)

const version = "1.0.0"

var (
	// Global flags
	configPath string
	userID     string
	tzName     string

	// Built in PersistentPreRunE
	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "quiettime",
	Short: "quiettime - daily scripture recommendation and journaling",
	Long: `quiettime recommends a scripture verse for how your day went and keeps
a daily quiet-time journal around it. One draft per day, committed entries
are permanent history.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		zcfg := zap.NewProductionConfig()
		if !cfg.Logging.JSON {
			zcfg = zap.NewDevelopmentConfig()
		}
		if lvl, perr := zapcore.ParseLevel(cfg.Logging.Level); perr == nil {
			zcfg.Level = zap.NewAtomicLevelAt(lvl)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, userMessage(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to the config file")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "account id; empty runs anonymously on this device")
	rootCmd.PersistentFlags().StringVar(&tzName, "tz", "Local", "IANA timezone for day boundaries")

	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalSaveCmd, journalCommitCmd, journalDiscardCmd, journalListCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(versionCmd)

	recommendCmd.Flags().BoolVar(&recommendFull, "full", false, "generate verse text and a Korean explanation, not just a reference")
	recommendCmd.Flags().StringVar(&recommendLocale, "locale", "ko", "response locale")

	journalSaveCmd.Flags().StringVar(&saveRef, "ref", "", `verse reference, e.g. "시편 23:1"`)
	journalSaveCmd.Flags().StringVar(&saveVerseText, "text", "", "verse text")
	journalSaveCmd.Flags().StringVar(&saveTemplate, "template", "SOAP", "journal template: SOAP or ACTS")
	journalSaveCmd.Flags().StringArrayVar(&saveFields, "field", nil, "template field as name=value, repeatable")

	journalListCmd.Flags().BoolVar(&listFavorites, "favorites", false, "only favorite entries")
	journalListCmd.Flags().StringVar(&listSearch, "search", "", "substring to search for")
	journalListCmd.Flags().IntVar(&listLimit, "limit", 20, "maximum entries to print")

	syncCmd.Flags().StringVar(&syncRemoteDB, "remote-db", "", "path to the replica database to reconcile with")
}

// --- recommend ---

var (
	recommendFull   bool
	recommendLocale string
)

var recommendCmd = &cobra.Command{
	Use:   "recommend [text]",
	Short: "Recommend a verse for how your day went",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRecommend,
}

func runRecommend(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	raw := strings.Join(args, " ")
	result := prefilter.Filter(raw, cfg.PreFilter)
	for _, hint := range result.Hints {
		logger.Debug("prefilter hint", zap.String("key", hint.MessageKey))
	}
	if result.Verdict.Decision == prefilter.DecisionBlock {
		return fault.ValidationFailed("text rejected: " + result.Verdict.Code)
	}

	st, sess, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	moderator, err := moderation.NewGeminiModerator(ctx, moderation.GeminiModeratorConfig{
		APIKey:          cfg.LLM.APIKey,
		Model:           cfg.Moderation.Model,
		BlockThreshold:  cfg.Moderation.BlockThreshold,
		ReviewThreshold: cfg.Moderation.ReviewThreshold,
	}, logger)
	if err != nil {
		return err
	}
	provider, err := buildProvider()
	if err != nil {
		return err
	}

	svc := recommend.NewService(recommend.Config{
		MinViableLen: cfg.Limits.MinViableLen,
		DailyMax:     cfg.Limits.DailyMax,
	}, st.WithDailyMax(cfg.Limits.DailyMax), moderator, provider, logger)

	in := recommend.Input{
		Text:     result.NormalizedText,
		UserID:   sess.Key(),
		Timezone: timezone(),
		Locale:   recommendLocale,
	}

	var out recommend.GeneratedVerse
	if recommendFull {
		out, err = svc.GenerateFull(ctx, in)
	} else {
		out, err = svc.Generate(ctx, in)
	}
	if err != nil {
		return err
	}

	fmt.Println(out.Verse.Reference())
	if out.Verse.Text != "" {
		fmt.Println(out.Verse.Text)
	}
	fmt.Println(out.Rationale)
	if len(out.Tags) > 0 {
		fmt.Println("tags:", strings.Join(out.Tags, ", "))
	}
	return nil
}

// --- journal ---

var (
	saveRef       string
	saveVerseText string
	saveTemplate  string
	saveFields    []string

	listFavorites bool
	listSearch    string
	listLimit     int
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Work with the quiet-time journal",
}

var journalSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Create or update today's draft",
	RunE:  runJournalSave,
}

func runJournalSave(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	st, sess, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	drafts := journal.NewDraftManager(st, logger)
	now, tz := time.Now(), timezone()

	draft, err := drafts.Load(ctx, sess, now, tz)
	switch {
	case fault.IsKind(err, fault.KindNotFound):
		if saveRef == "" {
			return fault.ValidationFailed("no draft for today yet, --ref is required")
		}
		v, verr := verse.FromRef(saveRef, saveVerseText)
		if verr != nil {
			return verr
		}
		draft, err = journal.NewDraft(v, journal.Template(saveTemplate), now)
		if err != nil {
			return err
		}
	case err != nil:
		return err
	}

	for _, kv := range saveFields {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fault.ValidationFailed("field must be name=value: " + kv)
		}
		draft.Fields[name] = value
	}

	if err := drafts.Save(ctx, sess, now, tz, draft); err != nil {
		return err
	}
	fmt.Printf("draft saved for %s (%s)\n", journal.NewDayKey(sess.Key(), now, tz).Day, draft.Verse.Reference())
	return nil
}

var journalCommitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Commit today's draft to permanent history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		st, sess, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		svc := journal.NewService(journal.NewDraftManager(st, logger), st, logger)
		now, tz := time.Now(), timezone()

		draft, err := svc.Drafts().Load(ctx, sess, now, tz)
		if err != nil {
			return err
		}
		committed, err := svc.Commit(ctx, sess, now, tz, draft)
		if err != nil {
			return err
		}
		fmt.Printf("committed %s (%s)\n", committed.ID, committed.Verse.Reference())
		return nil
	},
}

var journalDiscardCmd = &cobra.Command{
	Use:   "discard",
	Short: "Discard today's draft",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		st, sess, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		drafts := journal.NewDraftManager(st, logger)
		if err := drafts.Discard(ctx, sess, time.Now(), timezone()); err != nil {
			return err
		}
		fmt.Println("draft discarded")
		return nil
	},
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List committed entries, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		st, sess, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		svc := journal.NewService(journal.NewDraftManager(st, logger), st, logger)
		entries, err := svc.List(ctx, sess, journal.Query{
			FavoriteOnly: listFavorites,
			SearchText:   listSearch,
			Limit:        listLimit,
		})
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("no entries")
			return nil
		}
		for _, e := range entries {
			marker := " "
			if e.IsFavorite {
				marker = "*"
			}
			fmt.Printf("%s %s  %s  %s\n", marker, e.UpdatedAt.In(timezone()).Format("2006-01-02"), e.ID, e.Verse.Reference())
		}
		return nil
	},
}

// --- sync ---

var syncRemoteDB string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the local journal with a replica database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		if syncRemoteDB == "" {
			return fault.Configuration("--remote-db is required")
		}

		st, sess, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if !sess.IsAuthenticated() {
			return fault.ValidationFailed("sync requires --user")
		}

		remote, err := store.NewLocalStore(syncRemoteDB)
		if err != nil {
			return err
		}
		defer remote.Close()

		report := syncer.NewReconciler(st, remote, logger).Sync(ctx, sess)
		fmt.Printf("uploaded %d, pulled %d\n", report.Uploaded, report.Pulled)
		if report.Failed() {
			fmt.Printf("%d entries failed; they will be retried next sync\n", len(report.Errors))
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("quiettime %s\n", version)
	},
}

// --- wiring helpers ---

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "quiettime.yaml"
	}
	return filepath.Join(home, ".quiettime", "config.yaml")
}

func timezone() *time.Location {
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return time.Local
	}
	return loc
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// openStore opens the local database and resolves the caller session.
func openStore(_ context.Context) (*store.LocalStore, session.Session, error) {
	st, err := store.NewLocalStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, session.Session{}, err
	}

	if userID != "" {
		return st, session.Authenticated(userID), nil
	}
	id, err := deviceID()
	if err != nil {
		st.Close()
		return nil, session.Session{}, err
	}
	return st, session.Anonymous(id), nil
}

// deviceID returns the stable anonymous identity for this machine,
// creating it on first use next to the database.
func deviceID() (string, error) {
	path := filepath.Join(filepath.Dir(cfg.Storage.DatabasePath), "device_id")
	data, err := os.ReadFile(path)
	if err == nil && len(data) > 0 {
		return strings.TrimSpace(string(data)), nil
	}
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read device id: %w", err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0600); err != nil {
		return "", fmt.Errorf("failed to persist device id: %w", err)
	}
	return id, nil
}

// buildProvider picks the generation backend from the config.
func buildProvider() (generation.Provider, error) {
	switch cfg.LLM.Provider {
	case "", "gemini":
		gcfg := generation.DefaultGeminiConfig(cfg.LLM.APIKey)
		if cfg.LLM.Model != "" {
			gcfg.Model = cfg.LLM.Model
		}
		if cfg.LLM.BaseURL != "" {
			gcfg.BaseURL = cfg.LLM.BaseURL
		}
		if d, err := time.ParseDuration(cfg.LLM.Timeout); err == nil && d > 0 {
			gcfg.Timeout = d
		}
		return generation.NewGeminiProvider(gcfg, logger)
	case "callable":
		return generation.NewCallableProvider(generation.CallableConfig{
			BaseURL: cfg.LLM.BaseURL,
			TokenFn: func(ctx context.Context) (string, error) {
				return os.Getenv("QT_AUTH_TOKEN"), nil
			},
		}, logger)
	default:
		return nil, fault.Configuration("unknown llm provider: " + cfg.LLM.Provider)
	}
}

// userMessage maps a failure to what the user should read. Expected
// rejections get their specific wording; everything else gets a generic
// retry prompt with the detail behind it.
func userMessage(err error) string {
	var fe *fault.Error
	if !errors.As(err, &fe) {
		return err.Error()
	}
	switch fault.UserMessageKey(err) {
	case "error.rate_limited":
		return "You have used all of today's recommendations. Try again tomorrow."
	case "error.moderation_blocked":
		return "That note cannot be used for a recommendation: " + fe.Msg
	default:
		return err.Error()
	}
}
