package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/recall/internal/ai"
	"github.com/xxxsen/recall/internal/config"
	"github.com/xxxsen/recall/internal/db"
	"github.com/xxxsen/recall/internal/embedcache"
	"github.com/xxxsen/recall/internal/filestore"
	"github.com/xxxsen/recall/internal/handler"
	"github.com/xxxsen/recall/internal/job"
	"github.com/xxxsen/recall/internal/middleware"
	"github.com/xxxsen/recall/internal/repo"
	"github.com/xxxsen/recall/internal/retrieval"
	"github.com/xxxsen/recall/internal/schedule"
	"github.com/xxxsen/recall/internal/search"
	"github.com/xxxsen/recall/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "recall",
		Short: "recall personal data retrieval server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run recall server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("chat_provider", cfg.AI.ChatProvider),
		zap.String("embed_provider", cfg.AI.EmbedProvider),
		zap.String("file_store", cfg.FileStore.Type),
	)

	userRepo := repo.NewUserRepo(conn)
	recordRepo := repo.NewRecordRepo(conn)
	keywordRepo := repo.NewKeywordRepo(conn)
	fuzzyRepo := repo.NewFuzzyRepo(conn)
	embeddingRepo := repo.NewEmbeddingRepo(conn)
	embeddingCacheRepo := repo.NewEmbeddingCacheRepo(conn)

	chatProvider, err := ai.NewProvider(cfg.AI.ChatProvider, cfg.AI.Data)
	if err != nil {
		return fmt.Errorf("init chat provider: %w", err)
	}
	embedProvider, err := ai.NewEmbedProvider(cfg.AI.EmbedProvider, cfg.AI.Data)
	if err != nil {
		return fmt.Errorf("init embed provider: %w", err)
	}
	chatter := ai.NewChatter(chatProvider, cfg.AI.ChatModel)
	embedder := ai.NewEmbedder(embedProvider, cfg.AI.EmbedModel)
	if cfg.AI.EmbedCacheDB {
		embedder = embedcache.WrapDB(embedder, embeddingCacheRepo)
	}
	embedder = embedcache.WrapLRU(embedder, cfg.AI.EmbedCacheSize, time.Duration(cfg.AI.EmbedCacheTTLMin)*time.Minute)
	aiMgr := ai.NewManager(chatter, embedder, ai.ManagerConfig{
		Timeout:       cfg.AI.TimeoutSeconds,
		MaxInputChars: cfg.AI.MaxInputChars,
		Retry:         ai.DefaultRetryPolicy(cfg.AI.MaxRetries),
	})

	searcher := search.NewSearcher(embedder, embeddingRepo, keywordRepo, fuzzyRepo, cfg.Retrieval.SemanticMatchThreshold)
	fuser := retrieval.NewFuser(searcher, recordRepo, retrieval.Config{
		SemanticWeight:        cfg.Retrieval.SemanticWeight,
		KeywordWeight:         cfg.Retrieval.KeywordWeight,
		ApproximateWeight:     cfg.Retrieval.ApproximateWeight,
		WeakSemanticThreshold: cfg.Retrieval.WeakSemanticThreshold,
		WeakSemanticWeight:    cfg.Retrieval.WeakSemanticWeight,
		WeakKeywordWeight:     cfg.Retrieval.WeakKeywordWeight,
		WeakApproximateWeight: cfg.Retrieval.WeakApproximateWeight,
	})
	resolver := retrieval.NewResolver(recordRepo)
	agent := retrieval.NewAgent(fuser, aiMgr, resolver, retrieval.AgentConfig{
		MaxIterations: cfg.Retrieval.MaxIterations,
		TopK:          cfg.Retrieval.AgentTopK,
	})

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	authService := service.NewAuthService(userRepo, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))
	corpusService := service.NewCorpusService(recordRepo, embeddingRepo, aiMgr, store, cfg.Jobs.Workers)
	retrievalService := service.NewRetrievalService(fuser, agent, aiMgr, resolver, service.RetrievalOptions{
		TopK:         cfg.Retrieval.TopK,
		AgentTopK:    cfg.Retrieval.AgentTopK,
		MaxToolCalls: cfg.Retrieval.MaxToolCalls,
	})

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewSummaryJob(corpusService), cfg.Jobs.SummaryCron); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewEmbeddingJob(corpusService), cfg.Jobs.EmbeddingCron); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(embeddingCacheRepo, 30), cfg.Jobs.CacheCleanupCron); err != nil {
		return err
	}

	deps := handler.RouterDeps{
		Auth:             handler.NewAuthHandler(authService),
		Corpus:           handler.NewCorpusHandler(corpusService),
		Files:            handler.NewFileHandler(corpusService),
		Retrieval:        handler.NewRetrievalHandler(retrievalService),
		JWTSecret:        []byte(cfg.JWTSecret),
		RateLimitSeconds: cfg.Retrieval.RateLimitSeconds,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORS.AllowOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
