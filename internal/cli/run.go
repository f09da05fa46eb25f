package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forPelevin/brollweave/internal/pipeline"
	"github.com/forPelevin/brollweave/internal/server"
	"github.com/forPelevin/brollweave/internal/store"
)

func run(cmd *cobra.Command) error {
	addr, _ := cmd.Flags().GetString("addr")
	workdir, _ := cmd.Flags().GetString("workdir")
	maxJobs, _ := cmd.Flags().GetInt("max-jobs")
	stageTimeout, _ := cmd.Flags().GetDuration("stage-timeout")

	openAIKey := os.Getenv("OPENAI_API_KEY")
	if openAIKey == "" {
		return errors.New("OPENAI_API_KEY is required (set it in .env)")
	}
	openRouterKey := os.Getenv("OPENROUTER_API_KEY")
	if openRouterKey == "" {
		return errors.New("OPENROUTER_API_KEY is required (set it in .env)")
	}

	cfg := pipeline.Config{
		FFmpegPath:  getenvDefault("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getenvDefault("FFPROBE_PATH", "ffprobe"),

		OpenAIAPIKey:  openAIKey,
		OpenAIBaseURL: getenvDefault("OPENAI_BASE_URL", "https://api.openai.com"),
		WhisperModel:  getenvDefault("WHISPER_MODEL", "whisper-1"),

		OpenRouterAPIKey:       openRouterKey,
		OpenRouterModel:        getenvDefault("OPENROUTER_MODEL", "openai/gpt-4o"),
		OpenRouterBaseURL:      getenvDefault("OPENROUTER_BASE_URL", "https://openrouter.ai"),
		OpenRouterAllowedHosts: splitHosts(os.Getenv("OPENROUTER_ALLOWED_HOSTS")),

		StageTimeout: stageTimeout,
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	st, err := store.New(workdir)
	if err != nil {
		return err
	}

	orch := pipeline.New(cfg, st, log)
	srv := server.New(orch, st, log, maxJobs)

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	log.Info("listening",
		zap.String("addr", addr),
		zap.String("workdir", st.BaseDir()),
		zap.Int("max_jobs", maxJobs))

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("APP_ENV") == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func splitHosts(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
