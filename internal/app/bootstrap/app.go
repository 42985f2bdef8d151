package bootstrap

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/marine-sim/internal/api"
	"github.com/taoyao-code/marine-sim/internal/app"
	"github.com/taoyao-code/marine-sim/internal/broadcast"
	cfgpkg "github.com/taoyao-code/marine-sim/internal/config"
	"github.com/taoyao-code/marine-sim/internal/health"
	"github.com/taoyao-code/marine-sim/internal/metrics"
	redisstorage "github.com/taoyao-code/marine-sim/internal/storage/redis"
)

// Version 构建版本
var Version = "dev"

// Run 统一启动流程：场景 → 指标 → Redis → 广播 → HTTP → 调度器。
// 场景正常结束或收到 SIGINT/SIGTERM 后优雅退出。
func Run(cfg *cfgpkg.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return run(ctx, cfg, log)
}

func run(ctx context.Context, cfg *cfgpkg.Config, log *zap.Logger) error {
	log.Info("starting marine simulator", zap.String("version", Version))

	// ========== 阶段1: 校验并加载场景（失败直接返回）==========
	sc, validator, err := app.LoadScenario(cfg.Simulator, log)
	if err != nil {
		log.Error("scenario rejected", zap.Error(err))
		return err
	}
	ready := health.New()
	ready.SetScenarioReady(true)

	// ========== 阶段2: 指标与 Redis ==========
	reg, simm := app.NewMetrics()
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Error("redis initialization failed", zap.Error(err))
		return err
	}
	var pub broadcast.Publisher
	if redisClient != nil {
		defer redisClient.Close()
		pub = redisClient
	}

	// ========== 阶段3: 启动广播传输 ==========
	bc, err := app.StartBroadcast(cfg, simm, pub, log)
	if err != nil {
		log.Error("broadcast start failed", zap.Error(err))
		return err
	}
	ready.SetBroadcastReady(true)

	// ========== 阶段4: 调度器 ==========
	sched, err := app.NewScheduler(sc, cfg.Simulator, bc.Hub, simm, log)
	if err != nil {
		_ = bc.Shutdown(context.Background())
		log.Error("scheduler initialization failed", zap.Error(err))
		return err
	}

	// ========== 阶段5: HTTP（健康检查、指标、状态、WebSocket）==========
	healthAgg := app.NewHealthAggregator(sched)
	app.AddTCPChecker(healthAgg, bc.TCP)
	app.AddRedisChecker(healthAgg, redisClient, bc.Breaker)

	var metricsPath string
	var metricsHandler = metrics.Handler(reg)
	if cfg.Metrics.Enable {
		metricsPath = cfg.Metrics.Path
	} else {
		metricsHandler = nil
	}
	httpSrv := app.NewHTTPServer(cfg.HTTP, metricsPath, metricsHandler, ready.Ready, log)
	app.RegisterRoutes(httpSrv, cfg, healthAgg, api.NewStatusHandler(sched, sc, bc.Hub, validator, log), bc.Hub, log)

	httpErr := make(chan error, 1)
	go func() { httpErr <- httpSrv.Start() }()

	if redisClient != nil {
		store := redisstorage.NewStatusStore(redisClient, cfg.Redis.ChannelPrefix, 0)
		go app.PublishStatus(ctx, store, sched, time.Second, log)
	}

	// ========== 阶段6: 运行直至结束或收到信号 ==========
	log.Info("simulator running",
		zap.String("run_id", sched.RunID()),
		zap.String("scenario", sc.Name),
		zap.Float64("speed", cfg.Simulator.Speed))

	runErr := make(chan error, 1)
	go func() { runErr <- sched.Run(ctx) }()

	var result error
	select {
	case err := <-runErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			result = err
		}
		log.Info("scheduler finished", zap.Any("status", sched.Status()))
	case err := <-httpErr:
		if err != nil {
			log.Error("http server error", zap.Error(err))
			result = err
		}
		sched.Stop()
		<-runErr
	}

	// ========== 阶段7: 优雅关闭 ==========
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if err := bc.Shutdown(shutdownCtx); err != nil {
		log.Warn("broadcast shutdown", zap.Error(err))
	}
	log.Info("shutdown complete")
	return result
}
