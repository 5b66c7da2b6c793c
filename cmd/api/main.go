package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/verifai/verifai/internal/application"
	appanalysis "github.com/verifai/verifai/internal/application/analysis"
	appaudit "github.com/verifai/verifai/internal/application/audit"
	appbilling "github.com/verifai/verifai/internal/application/billing"
	appdocs "github.com/verifai/verifai/internal/application/documents"
	appmetrics "github.com/verifai/verifai/internal/application/metrics"
	appreports "github.com/verifai/verifai/internal/application/reports"
	"github.com/verifai/verifai/internal/config"
	"github.com/verifai/verifai/internal/domain/ai"
	analysisdomain "github.com/verifai/verifai/internal/domain/analysis"
	auditdomain "github.com/verifai/verifai/internal/domain/audit"
	billingdomain "github.com/verifai/verifai/internal/domain/billing"
	docsdomain "github.com/verifai/verifai/internal/domain/documents"
	usersdomain "github.com/verifai/verifai/internal/domain/users"
	openaiclient "github.com/verifai/verifai/internal/infra/ai/openai"
	mysqlp "github.com/verifai/verifai/internal/infra/db/mysql"
	postgresp "github.com/verifai/verifai/internal/infra/db/postgres"
	"github.com/verifai/verifai/internal/infra/extract"
	"github.com/verifai/verifai/internal/infra/httpserver"
	"github.com/verifai/verifai/internal/infra/ratelimit"
	"github.com/verifai/verifai/internal/infra/storage"
	"github.com/verifai/verifai/internal/infra/virusscan"
	"github.com/verifai/verifai/internal/logging"
	"github.com/verifai/verifai/internal/middleware"
	"github.com/verifai/verifai/internal/security"
)

type repositories struct {
	documents     docsdomain.Repository
	analyses      analysisdomain.Repository
	audits        auditdomain.Repository
	subscriptions billingdomain.Repository
	users         usersdomain.Repository
	metrics       appmetrics.Repository
}

// countingAnalyzer feeds the runtime counters around the provider call.
type countingAnalyzer struct {
	inner ai.Analyzer
}

func (c countingAnalyzer) Analyze(ctx context.Context, req ai.Request) ai.Result {
	middleware.IncrementAnalyses()
	res := c.inner.Analyze(ctx, req)
	if res.Degraded {
		middleware.IncrementAnalysesDegraded()
	}
	return res
}

func main() {
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	var db *sql.DB
	var repos repositories
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			logger.Fatal("postgres connect error", zap.Error(err))
		}
		repos = repositories{
			documents:     postgresp.NewDocumentRepository(db),
			analyses:      postgresp.NewAnalysisRepository(db),
			audits:        postgresp.NewAuditRepository(db),
			subscriptions: postgresp.NewSubscriptionRepository(db),
			users:         postgresp.NewUserRepository(db),
			metrics:       postgresp.NewMetricsRepository(db),
		}
	default:
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			logger.Fatal("mysql connect error", zap.Error(err))
		}
		repos = repositories{
			documents:     mysqlp.NewDocumentRepository(db),
			analyses:      mysqlp.NewAnalysisRepository(db),
			audits:        mysqlp.NewAuditRepository(db),
			subscriptions: mysqlp.NewSubscriptionRepository(db),
			users:         mysqlp.NewUserRepository(db),
			metrics:       mysqlp.NewMetricsRepository(db),
		}
	}
	defer db.Close()

	var store docsdomain.ObjectStore
	switch cfg.Storage.Backend {
	case "local":
		store, err = storage.NewLocal(cfg.Storage.LocalPath)
		if err != nil {
			logger.Fatal("local storage init error", zap.Error(err))
		}
	default:
		store, err = storage.NewMinio(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			logger.Fatal("minio init error", zap.Error(err))
		}
	}

	var counterStore ratelimit.CounterStore
	if cfg.RateLimit.Store == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		counterStore = ratelimit.NewRedisStore(rdb)
	} else {
		counterStore = ratelimit.NewMemoryStore()
	}
	limiter := ratelimit.NewLimiter(counterStore, logger)

	clock := application.SystemClock{}
	analyzer := openaiclient.NewClient(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.Model,
		time.Duration(cfg.OpenAI.TimeoutSeconds)*time.Second,
		logger,
	)

	auditSvc := &appaudit.Service{Repo: repos.audits, Clock: clock, Log: logger}
	billingSvc := &appbilling.Service{
		Subscriptions: repos.subscriptions,
		Analyses:      repos.analyses,
		Clock:         clock,
	}
	docSvc := &appdocs.Service{
		Repo:         repos.documents,
		Store:        store,
		Entitlements: billingSvc,
		Scanner:      virusscan.NewHeuristicScanner(),
		Extractor:    extract.NewPDFExtractor(),
		Audit:        auditSvc,
		Clock:        clock,
		Log:          logger,
	}
	analysisSvc := &appanalysis.Service{
		Documents:    repos.documents,
		Analyses:     repos.analyses,
		Entitlements: billingSvc,
		Analyzer:     countingAnalyzer{inner: analyzer},
		Audit:        auditSvc,
		Clock:        clock,
		Log:          logger,
	}
	reportSvc := &appreports.Service{
		Analyses:     repos.analyses,
		Documents:    repos.documents,
		Entitlements: billingSvc,
		Audit:        auditSvc,
		Log:          logger,
	}
	metricsSvc := &appmetrics.Service{Repo: repos.metrics, Clock: clock}

	signer := security.NewSigner(
		cfg.Security.FileSigningSecret,
		time.Duration(cfg.Security.SignedURLTTL)*time.Second,
	)

	handler := httpserver.NewRouter(httpserver.Deps{
		Documents: docSvc,
		Analysis:  analysisSvc,
		Reports:   reportSvc,
		Metrics:   metricsSvc,
		Audit:     auditSvc,
		Clock:     clock,
		DocRepo:   repos.documents,
		Store:     store,
		Signer:    signer,
		Limiter:   limiter,
		Limits: httpserver.Limits{
			Window:      time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute,
			Default:     cfg.RateLimit.DefaultMax,
			Upload:      cfg.RateLimit.UploadMax,
			RunAnalysis: cfg.RateLimit.AnalysisMax,
		},
		APIKeys: cfg.Auth.APIKeys,
		Users:   repos.users,
		Health: map[string]middleware.HealthChecker{
			"database": &middleware.DatabaseHealthChecker{DB: db},
		},
		Log: logger,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down server")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
