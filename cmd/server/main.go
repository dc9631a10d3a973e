package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/langchou/chargehive/internal/api/booking"
	"github.com/langchou/chargehive/internal/api/handlers"
	"github.com/langchou/chargehive/internal/api/identity"
	"github.com/langchou/chargehive/internal/api/upstream"
	"github.com/langchou/chargehive/internal/config"
	"github.com/langchou/chargehive/internal/metrics"
	"github.com/langchou/chargehive/internal/repository"
	"github.com/langchou/chargehive/internal/service"
	"github.com/langchou/chargehive/pkg/ws"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)

	os.Exit(exitCode(logger, run(cfg, logger)))
}

// exitCode 记录退出原因并在退出前刷新日志
func exitCode(logger *zap.Logger, err error) int {
	defer func() { _ = logger.Sync() }()
	if err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		return 1
	}
	logger.Info("Server exited")
	return 0
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting ChargeHive station service",
		zap.String("port", cfg.ServerPort),
		zap.String("store", cfg.StoreDriver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	store, audit, closeStore, err := openStore(ctx, cfg, logger, m)
	if err != nil {
		return err
	}
	defer closeStore()

	// 协作服务客户端
	upOpts := upstream.Options{
		Timeout:          cfg.UpstreamTimeout,
		FailureThreshold: cfg.BreakerFailureThreshold,
		OpenTimeout:      cfg.BreakerOpenTimeout,
	}
	authURL, err := cfg.ServiceURL(config.ServiceAuth)
	if err != nil {
		return err
	}
	bookingURL, err := cfg.ServiceURL(config.ServiceBooking)
	if err != nil {
		return err
	}
	identityClient := identity.NewClient(upstream.NewCaller(identity.ServiceName, authURL, upOpts, logger, m))
	bookingClient := booking.NewClient(upstream.NewCaller(booking.ServiceName, bookingURL, upOpts, logger, m))

	// 创建 WebSocket Hub
	wsHub := ws.NewHub(logger.Named("ws"))
	wsHub.OnClientCount(m.SetWSClients)

	stationService := service.NewStationService(store, identityClient, bookingClient, wsHub, logger.Named("station"), m)
	recorder := service.NewApprovalRecorder(stationService, identityClient, audit, logger.Named("approval"), m)

	wsHub.SetInitDataProvider(func(ctx context.Context) *ws.InitData {
		data, err := stationService.Summary(ctx)
		if err != nil {
			logger.Warn("Failed to build websocket init data", zap.Error(err))
			return nil
		}
		return data
	})

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	handler := handlers.NewHandler(logger, stationService, recorder, store, wsHub, handlers.Options{
		NearbyDefaultRadiusKm: cfg.NearbyDefaultRadiusKm,
	})
	router := handlers.NewRouter(handler, logger, m, prometheus.DefaultGatherer)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return wsHub.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("Server started", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		// 优雅关闭
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", zap.Error(err))
			return err
		}
		return nil
	})

	return g.Wait()
}

// openStore 按配置选择 Postgres 或内存存储
func openStore(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	m *metrics.Metrics,
) (repository.Store, repository.AuditLog, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("Using in-memory store, data will not survive restarts")
		mem := repository.NewMemoryStore()
		return mem, mem, func() {}, nil
	}

	// 连接数据库
	db, err := repository.New(ctx, cfg.DatabaseURL, repository.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect database: %w", err)
	}

	// 执行数据库迁移
	if err := db.Migrate(ctx, logger.Named("migrate")); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	logger.Info("Database migrated successfully")

	return repository.NewStationRepository(db, m), repository.NewAuditRepository(db), db.Close, nil
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}
