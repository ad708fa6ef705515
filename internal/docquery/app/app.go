package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"golang.org/x/oauth2"

	"github.com/yungbote/docquery-backend/internal/docquery/budget"
	"github.com/yungbote/docquery-backend/internal/docquery/config"
	"github.com/yungbote/docquery-backend/internal/docquery/generation"
	"github.com/yungbote/docquery-backend/internal/docquery/httpapi"
	"github.com/yungbote/docquery-backend/internal/docquery/prompt"
	"github.com/yungbote/docquery-backend/internal/docquery/retrieval"
	"github.com/yungbote/docquery-backend/internal/docquery/service"
	"github.com/yungbote/docquery-backend/internal/docquery/store"
	"github.com/yungbote/docquery-backend/internal/observability"
	"github.com/yungbote/docquery-backend/internal/platform/gcp"
	"github.com/yungbote/docquery-backend/internal/platform/logger"
)

// Components are the external collaborators of the pipeline.
type Components struct {
	Documents store.DocumentStore
	Objects   store.ObjectStore
	Generator service.Generator
	Readiness map[string]httpapi.ReadinessCheck
	Metrics   *observability.Metrics
	Closers   []func() error
}

type App struct {
	Log     *logger.Logger
	Config  *config.Config
	Service service.QueryService

	server       *http.Server
	closers      []func() error
	otelShutdown func(context.Context) error
}

// NotifyContext is cancelled on SIGINT or SIGTERM.
func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// New loads configuration and connects to Firestore, Cloud Storage, and the generation API.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.NewWithOptions(cfg.Env, logger.Options{
		FilePath:   cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "docquery",
		Environment: cfg.Env,
		Version:     cfg.Version,
		Endpoint:    cfg.Tracing.Endpoint,
		Headers:     cfg.Tracing.Headers,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	})

	comps, err := connect(ctx, cfg, log)
	if err != nil {
		_ = otelShutdown(ctx)
		return nil, err
	}

	a := Build(cfg, log, comps)
	a.otelShutdown = otelShutdown
	return a, nil
}

func connect(ctx context.Context, cfg *config.Config, log *logger.Logger) (Components, error) {
	var comps Components
	comps.Metrics = observability.Init(cfg.Metrics.Enabled)

	fsClient, err := gcp.NewFirestoreClient(ctx, cfg.Firestore.ProjectID)
	if err != nil {
		return comps, err
	}
	docs := gcp.NewFirestoreDocuments(log, fsClient, gcp.FirestoreConfig{
		ProjectID:           cfg.Firestore.ProjectID,
		UsersCollection:     cfg.Firestore.UsersCollection,
		DocumentsCollection: cfg.Firestore.DocumentsCollection,
	})
	comps.Closers = append(comps.Closers, docs.Close)

	storageCfg, err := gcp.ResolveObjectStorageConfig(cfg.Storage.Mode, cfg.Storage.EmulatorHost)
	if err != nil {
		_ = docs.Close()
		return comps, fmt.Errorf("resolve object storage config: %w", err)
	}
	texts, err := gcp.NewTextStore(ctx, log, gcp.TextStoreConfig{Bucket: cfg.Storage.Bucket, Storage: storageCfg})
	if err != nil {
		_ = docs.Close()
		return comps, err
	}
	comps.Closers = append(comps.Closers, texts.Close)

	tokens, err := serviceIdentity(ctx)
	if err != nil {
		log.Warn("service identity unavailable; generation will use the API key only", "error", err)
	}
	gen, err := generation.New(log, generation.Config{
		BaseURL:            cfg.Generation.BaseURL,
		Models:             cfg.Generation.Models,
		APIKey:             cfg.Generation.APIKey,
		IdentityAPIVersion: cfg.Generation.IdentityAPIVersion,
		APIKeyAPIVersion:   cfg.Generation.APIKeyAPIVersion,
		Timeout:            cfg.Generation.Timeout.Duration,
	}, tokens)
	if err != nil {
		_ = docs.Close()
		_ = texts.Close()
		return comps, err
	}

	comps.Documents = docs
	comps.Objects = texts
	comps.Generator = gen
	comps.Readiness = map[string]httpapi.ReadinessCheck{
		"firestore": docs.Ping,
		"storage":   texts.Ping,
	}
	return comps, nil
}

func serviceIdentity(ctx context.Context) (oauth2.TokenSource, error) {
	creds, err := gcp.CredentialsJSONFromEnv()
	if err != nil {
		return nil, err
	}
	return generation.NewServiceIdentityTokenSource(ctx, creds)
}

// Build assembles the pipeline and HTTP server around already-connected components.
func Build(cfg *config.Config, log *logger.Logger, comps Components) *App {
	fetcher := retrieval.NewFetcher(log, comps.Objects, nil)
	scorer := retrieval.NewScorer(log, fetcher, retrieval.ScorerOptions{
		MaxCandidates:    cfg.Retrieval.MaxCandidates,
		FetchConcurrency: cfg.Retrieval.FetchConcurrency,
	})
	allocator := budget.NewAllocator(budget.Config{
		TotalTokens:    cfg.Budget.TotalTokens,
		ReservedTokens: cfg.Budget.ReservedTokens,
		MinBodyTokens:  cfg.Budget.MinBodyTokens,
	})

	params := prompt.DefaultParams()
	if cfg.Generation.Temperature != nil {
		params.Temperature = *cfg.Generation.Temperature
	}
	if cfg.Generation.MaxOutputTokens > 0 {
		params.MaxOutputTokens = cfg.Generation.MaxOutputTokens
	}

	svc := service.NewQueryService(log, comps.Documents, scorer, fetcher, allocator, comps.Generator, service.Options{
		Params:           params,
		FetchConcurrency: cfg.Retrieval.FetchConcurrency,
	})

	var auth *httpapi.Authenticator
	if cfg.Auth.JWTSecret != "" {
		auth = httpapi.NewAuthenticator(log, httpapi.AuthConfig{
			Secret:   cfg.Auth.JWTSecret,
			Issuer:   cfg.Auth.Issuer,
			Required: cfg.Auth.Required,
		})
	}

	srv := httpapi.NewServer(cfg, log, httpapi.Deps{
		Service:   svc,
		Auth:      auth,
		Metrics:   comps.Metrics,
		Readiness: comps.Readiness,
	})

	return &App{
		Log:          log,
		Config:       cfg,
		Service:      svc,
		server:       srv,
		closers:      comps.Closers,
		otelShutdown: func(context.Context) error { return nil },
	}
}

func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("http server listening", "addr", a.server.Addr)
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.HTTP.ShutdownTimeout.Duration)
		defer cancel()
		a.Log.Info("shutting down http server")
		err := a.server.Shutdown(shutdownCtx)
		return errors.Join(err, a.Close(shutdownCtx))
	case err := <-errCh:
		closeErr := a.Close(context.Background())
		if errors.Is(err, http.ErrServerClosed) {
			return closeErr
		}
		return errors.Join(err, closeErr)
	}
}

// Close releases store clients and flushes traces and logs.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.Log.Sync()
	return errors.Join(errs...)
}
