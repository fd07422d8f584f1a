package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"raffle/internal/auth"
	"raffle/internal/config"
	cronrunner "raffle/internal/cron"
	"raffle/internal/db"
	"raffle/internal/handler"
	"raffle/internal/logger"
	"raffle/internal/notify"
	"raffle/internal/oracle"
	"raffle/internal/paas"
	"raffle/internal/payout"
	"raffle/internal/raffle"
	"raffle/internal/repository"
	gormrepository "raffle/internal/repository/gorm"
	"raffle/internal/service"
)

func main() {
	cfgPath := os.Getenv("RAFFLE_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("RAFFLE_ENV_ONLY"); envOnlyRaw != "" {
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
		dbConn *db.DB
		repo   repository.Repository
	)
	if cfg.DB.Enabled {
		dbConn, err = db.Open(cfg.DB)
		if err != nil {
			logger.Fatal("db open failed", zap.Error(err))
		}
		defer db.Close(dbConn)

		if err := db.AutoMigrate(dbConn); err != nil {
			logger.Fatal("auto-migrate failed", zap.Error(err))
		}
		repo = gormrepository.New(dbConn.Gorm)
	} else {
		logger.Warn("db disabled: journal, draw history and persistent switches are off")
	}

	settingsSvc := &service.SystemSettingsService{Repo: repo, Logger: logger}
	if err := settingsSvc.EnsureDefaultSwitches(context.Background()); err != nil {
		logger.Warn("init default system switches failed", zap.Error(err))
	}

	fee, err := cfg.Raffle.Fee()
	if err != nil {
		logger.Fatal("invalid entrance fee", zap.Error(err))
	}
	callbackJWT := auth.JWT{Secret: []byte(cfg.Oracle.CallbackSecret), TokenTTL: cfg.Oracle.TokenTTL}

	params := oracle.RequestParams{
		KeyHash:              cfg.Oracle.KeyHash,
		SubscriptionID:       cfg.Oracle.SubscriptionID,
		RequestConfirmations: cfg.Oracle.RequestConfirmations,
		CallbackGasLimit:     cfg.Oracle.CallbackGasLimit,
		NumWords:             cfg.Oracle.NumWords,
	}
	var (
		rng   raffle.Oracle
		local *oracle.LocalCoordinator
	)
	devMode := strings.EqualFold(cfg.App.Env, "dev")
	switch cfg.Oracle.ModeName() {
	case config.OracleModeHTTP:
		if !callbackJWT.Enabled() {
			logger.Fatal("oracle.callback_secret is required in http mode")
		}
		remote, err := oracle.NewHTTPCoordinator(params, oracle.HTTPOptions{
			BaseURL:     cfg.Oracle.HTTP.BaseURL,
			APIKey:      cfg.Oracle.HTTP.APIKey,
			CallbackURL: cfg.Oracle.CallbackURL,
			Timeout:     cfg.Oracle.HTTP.Timeout,
			CallbackToken: func() (string, error) {
				return callbackJWT.OracleToken(cfg.Oracle.SubscriptionID)
			},
		}, nil)
		if err != nil {
			logger.Fatal("oracle http coordinator init failed", zap.Error(err))
		}
		rng = remote
	case config.OracleModeLocal:
		if !devMode {
			logger.Warn("local oracle outside dev: randomness is not verifiable", zap.String("env", cfg.App.Env))
		}
		local = oracle.NewLocalCoordinator(params, oracle.LocalOptions{
			AutoFulfill:  cfg.Oracle.Local.AutoFulfill,
			FulfillDelay: cfg.Oracle.Local.FulfillDelay,
			AutoEnabled: func(ctx context.Context) bool {
				return settingsSvc.IsEnabled(ctx, service.FeatureLocalAutoFulfill, true)
			},
		}, logger)
		rng = local
	default:
		logger.Fatal("unknown oracle.mode", zap.String("mode", cfg.Oracle.Mode))
	}

	bank := payout.NewBank(common.HexToAddress(cfg.Bank.EscrowAddress), logger)
	automaton, err := raffle.New(raffle.Config{
		EntranceFee: fee,
		Interval:    cfg.Raffle.Interval,
		DrawTimeout: cfg.Raffle.DrawTimeout,
	}, rng, bank, raffle.SystemClock{})
	if err != nil {
		logger.Fatal("raffle init failed", zap.Error(err))
	}

	paasClient := initPaaSClient(logger)
	hub := notify.NewHub(cfg.Notify.Stream.Buffer)
	sinks := notify.NewFanout(logger)
	sinks.Add("log", notify.LogPublisher{Logger: logger})
	sinks.Add("stream", hub)
	if cfg.Notify.Redis.Enabled {
		rp := notify.NewRedisPublisher(&redis.Options{
			Addr:     cfg.Notify.Redis.Addr,
			Password: cfg.Notify.Redis.Password,
			DB:       cfg.Notify.Redis.DB,
		}, cfg.Notify.Redis.Channel, cfg.Notify.Redis.KeyPrefix, cfg.Notify.Redis.TTL)
		defer rp.Close()
		sinks.Add("redis", rp)
	}
	if cfg.Notify.Webhook.Enabled && strings.TrimSpace(cfg.Notify.Webhook.URL) != "" {
		sinks.Add("webhook", notify.WebhookPublisher{
			HTTP:    &http.Client{Timeout: cfg.Notify.Webhook.Timeout},
			URL:     cfg.Notify.Webhook.URL,
			Project: cfg.Notify.Webhook.Project,
		})
	}
	if cfg.Notify.Slack.Enabled {
		sinks.Add("slack", notify.NewSlackPublisher(cfg.Notify.Slack.WebhookURL, cfg.Notify.Slack.Username))
	}
	if cfg.Notify.Discord.Enabled {
		dp, err := notify.NewDiscordPublisher(cfg.Notify.Discord.BotToken, cfg.Notify.Discord.ChannelID)
		if err != nil {
			logger.Warn("discord sink disabled", zap.Error(err))
		} else {
			sinks.Add("discord", dp)
		}
	}
	if paasClient != nil {
		sinks.Add("paas", notify.PaaSPublisher{Client: paasClient})
	}
	logger.Info("observation sinks ready", zap.Strings("sinks", sinks.Names()))
	queue := notify.NewQueue(sinks, cfg.Notify.Queue.Size, cfg.Notify.Queue.Timeout, logger)

	raffleSvc := &service.RaffleService{
		Raffle: automaton,
		Escrow: bank,
		Repo:   repo,
		Sinks:  queue,
		Logger: logger,
	}
	if local != nil {
		local.SetConsumer(raffleSvc.ConsumeWords)
		raffleSvc.Oracle = local
	}
	keeper := &service.Keeper{Service: raffleSvc, Flags: settingsSvc, Logger: logger}

	if devMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(paas.RequireBearerMiddleware(handler.CallbackPath))
	engine.Use(paas.InjectClientMiddleware(paasClient))
	engine.Use(paas.WriteAuditMiddleware(paasClient, logger))

	healthHandler := &handler.HealthHandler{Raffle: automaton, Bank: bank}
	if dbConn != nil {
		healthHandler.DB = dbConn.Gorm
	}
	healthHandler.Register(engine)
	paas.RegisterDocs(engine)
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	(&handler.RaffleHandler{Service: raffleSvc, Repo: repo, Decimals: cfg.Raffle.Decimals}).Register(engine)
	(&handler.OracleHandler{Service: raffleSvc, Local: local, JWT: callbackJWT, Logger: logger, DevRoutes: devMode}).Register(engine)
	(&handler.BankHandler{
		Bank:          bank,
		FaucetEnabled: cfg.Bank.FaucetEnabled,
		FaucetAmount:  faucetAmount(cfg.Bank.FaucetAmount, logger),
		Decimals:      cfg.Raffle.Decimals,
	}).Register(engine)
	(&handler.StreamHandler{Hub: hub, Logger: logger, OriginPatterns: []string{"*"}}).Register(engine)
	(&handler.SettingsHandler{Settings: settingsSvc}).Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	baseCtx := ctx
	if paasClient != nil {
		baseCtx = paas.WithClient(ctx, paasClient)
	}

	if cfg.Cron.Enabled {
		cronRunner := cronrunner.New(logger, baseCtx)
		_, err = cronRunner.Add(cfg.Cron.Keeper, func(ctx context.Context) {
			res, err := keeper.RunOnce(ctx)
			if err != nil {
				logger.Warn("keeper tick failed", zap.Error(err))
				paas.LogBestEffortCtx(ctx, "raffle_keeper_failed", "warn", map[string]any{
					"error": err.Error(),
				})
				return
			}
			if res.Action == service.KeeperDrawn || res.Action == service.KeeperCancelled {
				logger.Info("keeper tick", zap.String("action", string(res.Action)), zap.String("request_id", res.RequestID))
			}
		})
		if err != nil {
			logger.Warn("cron register keeper failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("http server starting",
			zap.String("addr", cfg.Server.HTTPAddr),
			zap.String("oracle_mode", cfg.Oracle.ModeName()),
			zap.Bool("dev_routes", devMode && local != nil),
			zap.String("entrance_fee", fee.Dec()),
			zap.Duration("interval", cfg.Raffle.Interval),
		)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if local != nil {
		local.Wait()
	}
	queue.Close()
	if n := queue.Dropped(); n > 0 {
		logger.Warn("observations dropped by full queue", zap.Uint64("count", n))
	}
}

func faucetAmount(raw string, logger *zap.Logger) *uint256.Int {
	v, err := uint256.FromDecimal(strings.TrimSpace(raw))
	if err != nil || v.IsZero() {
		logger.Warn("invalid bank.faucet_amount, using 1e18", zap.String("value", raw))
		return uint256.NewInt(1_000_000_000_000_000_000)
	}
	return v
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

func initPaaSClient(logger *zap.Logger) *paas.Client {
	base := strings.TrimSpace(os.Getenv("EASYWEB3_API_BASE"))
	apiKey := strings.TrimSpace(os.Getenv("EASYWEB3_API_KEY"))
	if base == "" || apiKey == "" {
		return nil
	}

	p := &paas.Client{BaseURL: base, APIKey: apiKey, Agent: strings.TrimSpace(os.Getenv("RAFFLE_PAAS_AGENT"))}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := p.Login(ctx); err != nil {
		if logger != nil {
			logger.Warn("paas login failed (logs/notify disabled)", zap.Error(err))
		}
		return nil
	}
	if logger != nil {
		logger.Info("paas login ok")
	}
	return p
}
