// Package main provides the rvs CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/matsen/reviewsearch/internal/config"
	"github.com/matsen/reviewsearch/internal/embedding"
	"github.com/matsen/reviewsearch/internal/search"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

// globalCfg is loaded once before any subcommand runs.
var globalCfg *config.GlobalConfig

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rvs",
	Short: "Semantic search over product reviews",
	Long: `rvs indexes product reviews by meaning and answers free-text queries.

  rvs ingest            build the vector store from data/reviews.csv
  rvs search <query>    find the reviews closest to a query
  rvs similar <id>      find reviews close to an indexed review
  rvs index check       verify the vector store
  rvs serve             answer queries over HTTP

All commands output JSON by default; use --human for readable output.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.Version = Version
}

// setup loads .env and the global config, then installs the logger.
func setup(cmd *cobra.Command, args []string) error {
	// A missing .env is normal
	_ = godotenv.Load()

	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		exitWithError(ExitError, "loading config: %v", err)
	}
	globalCfg = cfg

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	slog.SetDefault(slog.New(handler))
	return nil
}

// mustNewProvider builds the configured embedding provider, exits on error.
// It makes no network calls.
func mustNewProvider() embedding.Provider {
	provider, err := embedding.NewProvider(globalCfg.Embedding)
	if err != nil {
		exitWithError(ExitError, "creating embedding provider: %v", err)
	}
	return provider
}

// mustValidateProvider checks a provider that supports it, exits on error.
func mustValidateProvider(ctx context.Context, provider embedding.Provider) {
	checker, ok := provider.(embedding.Checker)
	if !ok {
		return
	}
	if err := checker.Check(ctx); err != nil {
		exitWithError(exitCodeFor(err), "%v%s", err, providerHint(err, provider))
	}
}

// providerHint suggests how to fix a failed provider check.
func providerHint(err error, provider embedding.Provider) string {
	switch {
	case errors.Is(err, embedding.ErrProviderUnavailable):
		return "\n\nStart Ollama with 'ollama serve' or install from https://ollama.ai"
	case errors.Is(err, embedding.ErrModelNotFound):
		return fmt.Sprintf("\n\nRun 'ollama pull %s' to download it.", provider.ModelName())
	default:
		return ""
	}
}

// mustLoadEngine loads the vector store, exits on error. The index is checked
// before the provider is probed so a missing index never reaches the model.
func mustLoadEngine(ctx context.Context) *search.Engine {
	provider := mustNewProvider()

	engine, err := search.New(globalCfg.Paths(), provider, slog.Default())
	if err != nil {
		if errors.Is(err, search.ErrIndexMissing) || errors.Is(err, search.ErrTableMissing) {
			exitWithError(ExitSetupError, "%v", err)
		}
		exitWithError(exitCodeFor(err), "loading vector store: %v\n\nRun 'rvs ingest' to rebuild it.", err)
	}

	mustValidateProvider(ctx, provider)
	return engine
}
