package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wongivan852/legal-financial-ai-vault/internal/core/analysis"
	"github.com/wongivan852/legal-financial-ai-vault/internal/core/audit"
	"github.com/wongivan852/legal-financial-ai-vault/internal/core/chunk"
	"github.com/wongivan852/legal-financial-ai-vault/internal/core/document"
	"github.com/wongivan852/legal-financial-ai-vault/internal/core/inference"
	"github.com/wongivan852/legal-financial-ai-vault/internal/core/ingestion"
	"github.com/wongivan852/legal-financial-ai-vault/internal/core/vectorstore"
	"github.com/wongivan852/legal-financial-ai-vault/internal/infra/embedhttp"
	"github.com/wongivan852/legal-financial-ai-vault/internal/infra/postgres"
	"github.com/wongivan852/legal-financial-ai-vault/internal/infra/qdrant"
	"github.com/wongivan852/legal-financial-ai-vault/internal/infra/vllm"
	"github.com/wongivan852/legal-financial-ai-vault/internal/platform/config"
	"github.com/wongivan852/legal-financial-ai-vault/internal/platform/logger"
	"github.com/wongivan852/legal-financial-ai-vault/pkg/db"
)

// AppContext holds the shared resources a command action needs.
type AppContext struct {
	Config     *config.Config
	Logger     *slog.Logger
	Database   *db.DB
	Repository *postgres.Repository
	AuditStore *postgres.AuditStore
	Recorder   *audit.Recorder
	Embedder   *embedhttp.Client
	Vectors    vectorstore.Store
	Router     *inference.Router
	Ingestion  *ingestion.Service
	Analysis   *analysis.Service
}

// NewAppContext loads the configuration, connects to the database, applies
// the schema and wires up the services.
func NewAppContext(ctx context.Context, envFile string) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.New(logger.DefaultConfig())

	database, err := db.New(ctx, db.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := postgres.Migrate(ctx, database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	repo := postgres.NewRepository(database)
	auditStore := postgres.NewAuditStore(database)
	recorder := audit.NewRecorder(auditStore,
		audit.WithRetentionDays(cfg.RetentionDays),
		audit.WithLogger(appLogger),
	)

	embedder := embedhttp.New(cfg.Embedding.URL, cfg.Embedding.Model, cfg.Embedding.Dimension,
		embedhttp.WithBatchSize(cfg.Embedding.BatchSize),
		embedhttp.WithMaxAttempts(cfg.RetryLimit),
		embedhttp.WithLogger(appLogger),
	)

	vectors, err := newVectorStore(cfg, database)
	if err != nil {
		database.Close()
		return nil, err
	}

	chunker, err := chunk.New(cfg.MaxChunkChars, cfg.OverlapChars)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to build chunker: %w", err)
	}

	ingestSvc := ingestion.NewService(document.New(), chunker, repo, recorder,
		ingestion.WithVectorization(embedder, vectors, cfg.VectorStore.DocumentCollection),
		ingestion.WithLogger(appLogger),
	)

	router := newRouter(cfg, appLogger)

	tokens, err := analysis.NewTiktokenCounter()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to build token counter: %w", err)
	}

	analysisSvc := analysis.NewService(repo, router, recorder, tokens,
		analysis.WithVectorSearch(embedder, vectors, cfg.VectorStore.DocumentCollection),
		analysis.WithDefaultParams(cfg.DefaultMaxTokens, cfg.DefaultTemperature),
		analysis.WithLogger(appLogger),
	)

	return &AppContext{
		Config:     cfg,
		Logger:     appLogger,
		Database:   database,
		Repository: repo,
		AuditStore: auditStore,
		Recorder:   recorder,
		Embedder:   embedder,
		Vectors:    vectors,
		Router:     router,
		Ingestion:  ingestSvc,
		Analysis:   analysisSvc,
	}, nil
}

// Close releases the resources held by the AppContext.
func (ac *AppContext) Close() {
	if ac.Database != nil {
		ac.Database.Close()
	}
}

// newVectorStore selects the vector store implementation by configuration.
func newVectorStore(cfg *config.Config, database *db.DB) (vectorstore.Store, error) {
	switch cfg.VectorStore.Kind {
	case "qdrant":
		var opts []qdrant.Option
		if cfg.VectorStore.APIKey != "" {
			opts = append(opts, qdrant.WithAPIKey(cfg.VectorStore.APIKey))
		}
		return qdrant.New(cfg.VectorStore.URL, opts...), nil
	case "postgres":
		return postgres.NewVectorStore(database), nil
	case "memory":
		return vectorstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown vector store kind %q", cfg.VectorStore.Kind)
	}
}

// newRouter builds the inference router from the configured backends.
func newRouter(cfg *config.Config, appLogger *slog.Logger) *inference.Router {
	backends := make(map[inference.AgentType]inference.Backend, len(cfg.Backends))
	for name, bc := range cfg.Backends {
		if bc.Endpoint == "" {
			continue
		}
		backends[inference.AgentType(name)] = inference.Backend{
			Name:             name,
			Endpoint:         bc.Endpoint,
			Model:            bc.Model,
			MaxContextTokens: bc.MaxContextTokens,
			APIKey:           bc.APIKey,
		}
	}

	registry := inference.NewRegistry(cfg.HealthDegradedAfter, cfg.HealthDownAfter)
	return inference.NewRouter(backends, registry, vllm.NewChatClient(),
		inference.WithTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second),
		inference.WithProber(vllm.NewProber(), time.Duration(cfg.HealthProbeSeconds)*time.Second),
		inference.WithRouterLogger(appLogger),
	)
}
