package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mforrest/repoctx/internal/chunker"
	"github.com/mforrest/repoctx/internal/config"
	"github.com/mforrest/repoctx/internal/embedder"
	"github.com/mforrest/repoctx/internal/indexer"
	"github.com/mforrest/repoctx/internal/mcp"
	"github.com/mforrest/repoctx/internal/remote"
	"github.com/mforrest/repoctx/internal/retriever"
	"github.com/mforrest/repoctx/internal/vectorstore"
	"github.com/mforrest/repoctx/pkg/types"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Local development convenience; absence of a .env file is fine.
	_ = godotenv.Load()

	var configPath string

	rootCmd := &cobra.Command{
		Use:   "repoctx",
		Short: "Index remote repositories and search them semantically",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(indexCmd(&configPath))
	rootCmd.AddCommand(searchCmd(&configPath))
	rootCmd.AddCommand(clearCmd(&configPath))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newLogger builds a zap logger writing to stderr; stdout stays free
// for MCP protocol traffic and command output.
func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// pipeline bundles the wired components a CLI command needs.
type pipeline struct {
	store     vectorstore.Store
	indexer   *indexer.Indexer
	retriever *retriever.Retriever
	logger    *zap.Logger
}

func (p *pipeline) close() {
	_ = p.store.Close()
	_ = p.logger.Sync()
}

// buildPipeline wires the full stack from configuration. The embedding
// provider's dimension fixes the store's.
func buildPipeline(configPath string) (*pipeline, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	store, err := vectorstore.Open(cfg.DBPath, emb.Dimension(), logger.Named("store"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	var ghOpts []remote.GitHubOption
	if cfg.GitHub.BaseURL != "" {
		ghOpts = append(ghOpts, remote.WithBaseURL(cfg.GitHub.BaseURL))
	}
	client := remote.NewGitHubClient(cfg.GitHub.Token, logger.Named("github"), ghOpts...)

	ch := chunker.New(chunker.Config{
		MaxChars: cfg.Chunking.MaxChars,
		MaxLines: cfg.Chunking.MaxLines,
		Overlap:  cfg.Chunking.Overlap,
	}, logger.Named("chunker"))

	batcher := embedder.NewBatcher(emb,
		cfg.Embedding.BatchSize, cfg.Embedding.Concurrency, logger.Named("batcher"))

	p := &pipeline{
		store:     store,
		indexer:   indexer.New(client, ch, batcher, store, logger.Named("indexer"), cfg.Embedding.Workers),
		retriever: retriever.New(emb, store, logger.Named("retriever")),
		logger:    logger,
	}
	return p, cfg, nil
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			srv, err := mcp.NewServer(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errChan := make(chan error, 1)
			go func() {
				errChan <- srv.Serve(ctx)
			}()

			select {
			case <-ctx.Done():
				logger.Info("shutdown signal received")
				return nil
			case err := <-errChan:
				return err
			}
		},
	}
}

func indexCmd(configPath *string) *cobra.Command {
	var branch string

	cmd := &cobra.Command{
		Use:   "index <owner/repo>",
		Short: "Index a remote repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cfg, err := buildPipeline(*configPath)
			if err != nil {
				return err
			}
			defer p.close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stats, err := p.indexer.IndexRepository(ctx, args[0], branch,
				cfg.Patterns.Include, cfg.Patterns.Exclude)
			if err != nil {
				return err
			}

			fmt.Printf("Indexed %s@%s: %d files, %d chunks in %s\n",
				args[0], branch, stats.FilesIndexed, stats.Chunks, stats.Duration.Round(0))
			if stats.FilesFailed > 0 {
				fmt.Printf("Failed files: %d\n", stats.FilesFailed)
				for _, msg := range stats.ErrorMessages {
					fmt.Fprintln(os.Stderr, " ", msg)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&branch, "branch", "main", "branch or ref to index")
	return cmd
}

func searchCmd(configPath *string) *cobra.Command {
	var (
		repo      string
		branch    string
		directory string
		language  string
		limit     int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed code",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := buildPipeline(*configPath)
			if err != nil {
				return err
			}
			defer p.close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			query := args[0]
			for _, extra := range args[1:] {
				query += " " + extra
			}

			var tags []types.Tag
			if repo != "" || branch != "" {
				tags = append(tags, types.Tag{Repo: repo, Branch: branch})
			}

			results, err := p.retriever.Retrieve(ctx, query, limit, tags, directory, language)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}

			if len(results) == 0 {
				fmt.Println("No results.")
				return nil
			}
			for _, r := range results {
				fmt.Printf("%2d. [%.3f] %s:%d (%s)\n",
					r.Rank, r.Score, r.Chunk.Filepath, r.Chunk.StartLine(), r.Chunk.Language())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&repo, "repo", "", "restrict to repository (owner/name)")
	cmd.Flags().StringVar(&branch, "branch", "", "restrict to branch")
	cmd.Flags().StringVar(&directory, "directory", "", "restrict to directory prefix")
	cmd.Flags().StringVar(&language, "language", "", "restrict to language")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit results as JSON")
	return cmd
}

func clearCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every indexed chunk",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := buildPipeline(*configPath)
			if err != nil {
				return err
			}
			defer p.close()

			if err := p.store.Clear(context.Background()); err != nil {
				return err
			}
			fmt.Println("Index cleared.")
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("repoctx %s\n", version)
			fmt.Printf("Build Time: %s\n", buildTime)
			fmt.Printf("Build Mode: %s\n", vectorstore.BuildMode)
			fmt.Printf("SQLite Driver: %s\n", vectorstore.DriverName)
		},
	}
}
