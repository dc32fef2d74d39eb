package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ragchat/ragchat/internal/auth"
	"github.com/ragchat/ragchat/internal/chat"
	"github.com/ragchat/ragchat/internal/core"
	"github.com/ragchat/ragchat/internal/embed"
	"github.com/ragchat/ragchat/internal/ingest"
	"github.com/ragchat/ragchat/internal/llm"
	"github.com/ragchat/ragchat/internal/logger"
	"github.com/ragchat/ragchat/internal/rag"
	"github.com/ragchat/ragchat/internal/server"
	"github.com/ragchat/ragchat/internal/telegram"
)

// Config represents the application configuration.
type Config struct {
	AIProvider          string
	OllamaHost          string
	OllamaModel         string
	GeminiAPIKey        string
	GeminiModel         string
	EmbedModel          string
	VectorStore         string
	MilvusHost          string
	MilvusPort          string
	EmbeddingDim        int
	SimilarityThreshold float64
	ChunkSize           int
	ChunkOverlap        int
	BackendHost         string
	BackendPort         string
	FrontendURL         string
	TelegramToken       string
	AdminUserIDs        string
	AllowedUserIDs      string
	DebugSimilarity     bool
}

// loadConfig loads configuration from environment variables.
func loadConfig() *Config {
	return &Config{
		AIProvider:          getEnvWithDefault("AI_PROVIDER", "ollama"),
		OllamaHost:          getEnvWithDefault("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:         getEnvWithDefault("OLLAMA_MODEL", "llama3.2"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiModel:         getEnvWithDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		EmbedModel:          getEnvWithDefault("EMBED_MODEL", "all-minilm"),
		VectorStore:         getEnvWithDefault("VECTOR_STORE", "milvus"),
		MilvusHost:          getEnvWithDefault("MILVUS_HOST", "localhost"),
		MilvusPort:          getEnvWithDefault("MILVUS_PORT", "19530"),
		EmbeddingDim:        getEnvIntWithDefault("EMBEDDING_DIM", rag.DefaultEmbeddingDim),
		SimilarityThreshold: getEnvFloatWithDefault("SIMILARITY_THRESHOLD", rag.DefaultSimilarityThreshold),
		ChunkSize:           getEnvIntWithDefault("CHUNK_SIZE", 500),
		ChunkOverlap:        getEnvIntWithDefault("CHUNK_OVERLAP", 50),
		BackendHost:         getEnvWithDefault("BACKEND_HOST", "0.0.0.0"),
		BackendPort:         getEnvWithDefault("BACKEND_PORT", "8000"),
		FrontendURL:         getEnvWithDefault("FRONTEND_URL", "http://localhost:3000"),
		TelegramToken:       os.Getenv("TG_BOT_TOKEN"),
		AdminUserIDs:        os.Getenv("ADMIN_USER_IDS"),
		AllowedUserIDs:      os.Getenv("ALLOWED_USER_IDS"),
		DebugSimilarity:     os.Getenv("DEBUG_SIMILARITY") == "true",
	}
}

// getEnvWithDefault gets an environment variable or returns a default value.
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		logger.Warn("Ignoring invalid %s=%q", key, value)
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		logger.Warn("Ignoring invalid %s=%q", key, value)
	}
	return defaultValue
}

// newProvider selects the generation backend once, at startup.
func newProvider(config *Config) (llm.Provider, error) {
	switch config.AIProvider {
	case "ollama":
		return llm.NewOllamaService(config.OllamaHost, config.OllamaModel), nil
	case "gemini":
		if config.GeminiAPIKey == "" {
			return nil, errors.New("GEMINI_API_KEY environment variable is required when AI_PROVIDER=gemini")
		}
		return llm.NewGeminiService(config.GeminiAPIKey, config.GeminiModel), nil
	default:
		return nil, errors.New("AI_PROVIDER must be \"ollama\" or \"gemini\"")
	}
}

// newStore selects the knowledge store backend.
func newStore(ctx context.Context, config *Config) (core.VectorStore, error) {
	switch config.VectorStore {
	case "milvus":
		return rag.NewMilvusStore(ctx, config.MilvusHost+":"+config.MilvusPort, config.EmbeddingDim)
	case "memory":
		logger.Info("Using in-memory vector store; contents are lost on restart")
		return rag.NewMemoryStore(), nil
	default:
		return nil, errors.New("VECTOR_STORE must be \"milvus\" or \"memory\"")
	}
}

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logger.Init(*debug)

	logger.Info("Starting RAG chat service...")

	if err := godotenv.Load(); err != nil {
		logger.Info("Warning: No .env file found or error loading it")
	}

	config := loadConfig()

	if logger.IsDebugEnabled() {
		logger.Debug("Configuration loaded: AIProvider=%s, VectorStore=%s, MilvusHost=%s, MilvusPort=%s, EmbedModel=%s",
			config.AIProvider, config.VectorStore, config.MilvusHost, config.MilvusPort, config.EmbedModel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider, err := newProvider(config)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
	logger.Info("Using %s provider with model %s", provider.Name(), provider.Model())

	store, err := newStore(ctx, config)
	if err != nil {
		logger.Error("Failed to initialize vector store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	embedder := embed.NewOllamaEmbedder(config.OllamaHost, config.EmbedModel)

	engine := chat.NewEngine(store, embedder, provider, chat.Config{
		SimilarityThreshold: float32(config.SimilarityThreshold),
		DebugSimilarity:     config.DebugSimilarity,
	})
	pipeline := ingest.NewPipeline(store, embedder, config.ChunkSize, config.ChunkOverlap)

	srv := &http.Server{
		Addr:    config.BackendHost + ":" + config.BackendPort,
		Handler: server.New(engine, pipeline, store, config.EmbedModel, config.FrontendURL).Router(),
	}

	go func() {
		logger.Info("HTTP API listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed: %v", err)
			os.Exit(1)
		}
	}()

	// Optional Telegram frontend
	if config.TelegramToken != "" {
		policyService := auth.NewPolicyService(config.AdminUserIDs, config.AllowedUserIDs)
		bot, err := telegram.NewBot(config.TelegramToken, engine, pipeline, policyService)
		if err != nil {
			logger.Error("Failed to initialize Telegram bot: %v", err)
			os.Exit(1)
		}
		go bot.Start(ctx)
		logger.Info("Telegram frontend enabled")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed: %v", err)
	}
	cancel()

	logger.Info("Service has been shut down")
}
