package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"propdesk/internal/audit"
	"propdesk/internal/balance"
	"propdesk/internal/cache"
	"propdesk/internal/config"
	cronrunner "propdesk/internal/cron"
	"propdesk/internal/db"
	"propdesk/internal/handler"
	"propdesk/internal/idgen"
	"propdesk/internal/logger"
	"propdesk/internal/marketdata"
	"propdesk/internal/metrics"
	"propdesk/internal/recorder"
	"propdesk/internal/repository"
	gormrepository "propdesk/internal/repository/gorm"
	"propdesk/internal/repository/memory"
	"propdesk/internal/risk"
	"propdesk/internal/service"

	_ "propdesk/docs"
)

func main() {
	cfgPath := os.Getenv("PD_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("PD_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log, cfg.App.Env)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	var (
		store  repository.Repository
		dbConn *db.DB
	)
	switch strings.ToLower(strings.TrimSpace(cfg.App.Store)) {
	case "memory":
		logger.Warn("using in-memory store, state is lost on restart")
		store = memory.New()
	default:
		dbConn, err = db.Open(cfg.DB)
		if err != nil {
			logger.Fatal("db open failed", zap.Error(err))
		}
		defer db.Close(dbConn)
		if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
			logger.Warn("failed to set timezone", zap.Error(err))
		}
		if cfg.DB.AutoMigrate {
			if err := db.AutoMigrate(dbConn); err != nil {
				logger.Fatal("auto-migrate failed", zap.Error(err))
			}
		}
		store = gormrepository.New(dbConn.Gorm)
	}

	boundary, err := balance.NewDayBoundary(cfg.DayBoundary.Policy, cfg.DayBoundary.CutoffHour, cfg.DayBoundary.Timezone, cfg.DayBoundary.SessionClose)
	if err != nil {
		logger.Fatal("invalid day boundary", zap.Error(err))
	}

	cacheStore, backend := cache.New(cache.Options{
		Backend:  cfg.Cache.Backend,
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if !strings.EqualFold(backend, cfg.Cache.Backend) {
		logger.Warn("cache backend unavailable, falling back", zap.String("wanted", cfg.Cache.Backend), zap.String("using", backend))
	}
	checks := map[string]handler.Pinger{}
	if rs, ok := cacheStore.(*cache.RedisStore); ok {
		checks["cache"] = rs
		defer rs.Close()
	}

	provider, persistPrices, stream := initProvider(cfg, store, cacheStore, logger)

	auditClient := initAuditClient(cfg.Audit, logger)
	settingsSvc := &service.SystemSettingsService{Repo: store}
	if err := settingsSvc.EnsureDefaultSwitches(context.Background()); err != nil {
		logger.Warn("init default system switches failed", zap.Error(err))
	}

	accounts := &service.AccountService{
		Repo: store,
		Prices: marketdata.Resolver{
			Provider: provider,
			Timeout:  cfg.Engine.PriceTimeout,
			Logger:   logger,
		},
		Boundary: boundary,
		Recorder: &recorder.Recorder{Logger: logger, Seq: idgen.Next},
		Risk:     &risk.Manager{Logger: logger},
		Settings: settingsSvc,
		Audit:    auditClient,
		Logger:   logger,

		MaxAttempts: cfg.Engine.MaxAttempts,
	}
	plans := &service.PlanService{Repo: store, Logger: logger}
	sweeper := &service.Sweeper{
		Accounts: accounts,
		Repo:     store,
		Settings: settingsSvc,
		Workers:  cfg.Engine.SweepWorkers,
		Timeout:  cfg.Engine.SweepTimeout,
		Logger:   logger,
	}
	refresher := &service.PriceRefresher{
		Repo:     store,
		Provider: provider,
		Persist:  persistPrices,
		Source:   cfg.MarketData.Provider,
		Settings: settingsSvc,
		Logger:   logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(audit.RequireBearer(cfg.Auth))
	engine.Use(audit.WriteAudit(auditClient, logger))

	healthHandler := &handler.HealthHandler{Checks: checks}
	if dbConn != nil {
		healthHandler.DB = dbConn.Gorm
	}
	healthHandler.Register(engine)
	audit.RegisterDocs(engine)
	(&handler.PlanHandler{Plans: plans}).Register(engine)
	(&handler.AccountHandler{Accounts: accounts}).Register(engine)
	(&handler.PayoutHandler{Accounts: accounts}).Register(engine)
	(&handler.PaymentHandler{Accounts: accounts}).Register(engine)
	(&handler.SettingsHandler{Settings: settingsSvc}).Register(engine)
	(&handler.SweepHandler{Sweeper: sweeper, Prices: refresher}).Register(engine)

	engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if stream != nil {
		go func() {
			if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("price stream stopped", zap.Error(err))
			}
		}()
	}

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		_, err = cronRunner.Add("price_refresh", cfg.Cron.PriceRefresh, func(ctx context.Context) {
			if _, err := refresher.RunOnce(ctx); err != nil {
				logger.Warn("cron price refresh failed", zap.Error(err))
			}
		})
		if err != nil {
			logger.Warn("cron register price refresh failed", zap.Error(err))
		}
		_, err = cronRunner.Add("sweep", cfg.Cron.Sweep, func(ctx context.Context) {
			rep, err := sweeper.RunOnce(ctx)
			if err != nil {
				logger.Warn("cron sweep failed", zap.Error(err))
				auditClient.Record(audit.SweepFailedEvent(rep.Accounts, rep.Evaluated, rep.Failed, err))
			}
		})
		if err != nil {
			logger.Warn("cron register sweep failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr), zap.String("store", cfg.App.Store))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if err := auditClient.Close(shutdownCtx); err != nil {
		logger.Warn("audit queue not drained", zap.Error(err))
	}
}

// initProvider builds the market-data chain. The second result reports
// whether refreshed quotes should be written back to the price book. The
// stream, when configured, must be started by the caller.
func initProvider(cfg config.Config, store repository.Repository, cacheStore cache.Store, logger *zap.Logger) (marketdata.Provider, bool, *marketdata.Stream) {
	var (
		upstream marketdata.Provider
		stream   *marketdata.Stream
	)
	persist := false
	switch strings.ToLower(strings.TrimSpace(cfg.MarketData.Provider)) {
	case "stream":
		if strings.TrimSpace(cfg.MarketData.StreamURL) == "" {
			logger.Warn("market_data.provider=stream without stream_url, using the price book")
			upstream = marketdata.RepoProvider{Source: store, MaxAge: cfg.MarketData.MaxAge}
			break
		}
		stream = marketdata.NewStream(marketdata.StreamOptions{
			URL:             cfg.MarketData.StreamURL,
			Assets:          store.ListOpenAssets,
			RefreshInterval: cfg.MarketData.RefreshInterval,
			MaxAge:          cfg.MarketData.MaxAge,
			Logger:          logger,
		})
		upstream = stream
		persist = true
	case "http":
		if strings.TrimSpace(cfg.MarketData.BaseURL) == "" {
			logger.Warn("market_data.provider=http without base_url, using the price book")
			upstream = marketdata.RepoProvider{Source: store, MaxAge: cfg.MarketData.MaxAge}
			break
		}
		httpClient := &http.Client{Timeout: cfg.MarketData.Timeout}
		upstream = marketdata.NewHTTPClient(httpClient, cfg.MarketData.BaseURL)
		persist = true
	case "static":
		upstream = marketdata.NewStatic(nil)
	default:
		upstream = marketdata.RepoProvider{Source: store, MaxAge: cfg.MarketData.MaxAge}
	}
	return &marketdata.Cached{
		Upstream: upstream,
		Store:    cacheStore,
		TTL:      cfg.Cache.TTL,
		Logger:   logger,
	}, persist, stream
}

func initAuditClient(cfg config.AuditConfig, logger *zap.Logger) *audit.Client {
	base := strings.TrimSpace(cfg.BaseURL)
	apiKey := strings.TrimSpace(cfg.APIKey)
	if base == "" || apiKey == "" {
		return nil
	}
	p := audit.NewClient(base, apiKey, cfg.Agent)
	p.Logger = logger
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := p.Login(ctx); err != nil {
		logger.Warn("audit login failed (audit log disabled)", zap.Error(err))
		return nil
	}
	logger.Info("audit login ok")
	return p
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
