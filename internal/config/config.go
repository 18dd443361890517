package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int              `json:"port"`
	JWTSecret   string           `json:"jwt_secret"`
	JWTTTLHours int              `json:"jwt_ttl_hours"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Database    DatabaseConfig   `json:"database"`
	AI          AIConfig         `json:"ai"`
	Retrieval   RetrievalConfig  `json:"retrieval"`
	FileStore   FileStoreConfig  `json:"file_store"`
	Jobs        JobsConfig       `json:"jobs"`
	CORS        CORSConfig       `json:"cors"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type AIConfig struct {
	ChatProvider     string                 `json:"chat_provider"`
	ChatModel        string                 `json:"chat_model"`
	EmbedProvider    string                 `json:"embed_provider"`
	EmbedModel       string                 `json:"embed_model"`
	Data             map[string]interface{} `json:"data"`
	TimeoutSeconds   int                    `json:"timeout_seconds"`
	MaxRetries       int                    `json:"max_retries"`
	MaxInputChars    int                    `json:"max_input_chars"`
	EmbedCacheSize   int                    `json:"embed_cache_size"`
	EmbedCacheTTLMin int                    `json:"embed_cache_ttl_min"`
	EmbedCacheDB     bool                   `json:"embed_cache_db"`
}

type RetrievalConfig struct {
	TopK                   int     `json:"top_k"`
	AgentTopK              int     `json:"agent_top_k"`
	MaxIterations          int     `json:"max_iterations"`
	MaxToolCalls           int     `json:"max_tool_calls"`
	SemanticWeight         float64 `json:"semantic_weight"`
	KeywordWeight          float64 `json:"keyword_weight"`
	ApproximateWeight      float64 `json:"approximate_weight"`
	WeakSemanticThreshold  float64 `json:"weak_semantic_threshold"`
	WeakSemanticWeight     float64 `json:"weak_semantic_weight"`
	WeakKeywordWeight      float64 `json:"weak_keyword_weight"`
	WeakApproximateWeight  float64 `json:"weak_approximate_weight"`
	SemanticMatchThreshold float64 `json:"semantic_match_threshold"`
	RateLimitSeconds       int     `json:"rate_limit_seconds"`
}

type FileStoreConfig struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

type JobsConfig struct {
	SummaryCron      string `json:"summary_cron"`
	EmbeddingCron    string `json:"embedding_cron"`
	CacheCleanupCron string `json:"cache_cleanup_cron"`
	Workers          int    `json:"workers"`
}

type CORSConfig struct {
	AllowOrigins []string `json:"allow_origins"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.AI.ChatProvider == "" {
		return nil, fmt.Errorf("ai.chat_provider is required")
	}
	if cfg.AI.ChatModel == "" {
		return nil, fmt.Errorf("ai.chat_model is required")
	}
	if cfg.AI.EmbedProvider == "" {
		cfg.AI.EmbedProvider = cfg.AI.ChatProvider
	}
	if cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.embed_model is required")
	}
	applyDefaults(&cfg)
	switch cfg.FileStore.Type {
	case "local", "s3":
	default:
		return nil, fmt.Errorf("file_store.type must be local or s3")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 60
	}
	if cfg.AI.MaxRetries == 0 {
		cfg.AI.MaxRetries = 3
	}
	if cfg.AI.MaxInputChars == 0 {
		cfg.AI.MaxInputChars = 100000
	}
	if cfg.AI.EmbedCacheSize == 0 {
		cfg.AI.EmbedCacheSize = 2048
	}
	if cfg.AI.EmbedCacheTTLMin == 0 {
		cfg.AI.EmbedCacheTTLMin = 720
	}
	r := &cfg.Retrieval
	if r.TopK == 0 {
		r.TopK = 5
	}
	if r.AgentTopK == 0 {
		r.AgentTopK = 3
	}
	if r.MaxIterations == 0 {
		r.MaxIterations = 10
	}
	if r.MaxToolCalls == 0 {
		r.MaxToolCalls = 5
	}
	if r.SemanticWeight == 0 {
		r.SemanticWeight = 0.6
	}
	if r.KeywordWeight == 0 {
		r.KeywordWeight = 0.4
	}
	if r.ApproximateWeight == 0 {
		r.ApproximateWeight = 0.6
	}
	if r.WeakSemanticThreshold == 0 {
		r.WeakSemanticThreshold = 0.35
	}
	if r.WeakSemanticWeight == 0 {
		r.WeakSemanticWeight = 0.3
	}
	if r.WeakKeywordWeight == 0 {
		r.WeakKeywordWeight = 0.4
	}
	if r.WeakApproximateWeight == 0 {
		r.WeakApproximateWeight = 0.3
	}
	if r.SemanticMatchThreshold == 0 {
		r.SemanticMatchThreshold = 0.2
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.Jobs.SummaryCron == "" {
		cfg.Jobs.SummaryCron = "*/5 * * * *"
	}
	if cfg.Jobs.EmbeddingCron == "" {
		cfg.Jobs.EmbeddingCron = "*/2 * * * *"
	}
	if cfg.Jobs.CacheCleanupCron == "" {
		cfg.Jobs.CacheCleanupCron = "0 4 * * *"
	}
	if cfg.Jobs.Workers == 0 {
		cfg.Jobs.Workers = 4
	}
}
