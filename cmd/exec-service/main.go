package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codearena/internal/common/db"
	"codearena/internal/common/middleware"
	"codearena/internal/common/mq"
	"codearena/internal/common/storage"
	"codearena/internal/dashboard"
	dispatchcontroller "codearena/internal/dispatch/controller"
	dispatchservice "codearena/internal/dispatch/service"
	"codearena/internal/filestore"
	"codearena/internal/ingest"
	"codearena/internal/judge"
	judgerepo "codearena/internal/judge/repository"
	"codearena/internal/judge/sandbox"
	"codearena/internal/langmap"
	problemcontroller "codearena/internal/problem/controller"
	"codearena/internal/problem/repository"
	problemservice "codearena/internal/problem/service"
	"codearena/internal/queue"
	"codearena/internal/template"
	"codearena/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/exec_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx := context.Background()

	// A hole in the type table would only surface on the first affected
	// problem creation; fail at startup instead.
	if err := langmap.ValidateComplete(); err != nil {
		logger.Error(ctx, "language type table incomplete", zap.Error(err))
		return
	}

	if err := filestore.EnsureDir(appCfg.Template.WorkDir); err != nil {
		logger.Error(ctx, "init work dir failed", zap.Error(err))
		return
	}
	files, err := filestore.NewMaterializer(appCfg.Template.WorkDir)
	if err != nil {
		logger.Error(ctx, "init materializer failed", zap.Error(err))
		return
	}

	database, err := db.NewPostgresWithConfig(&appCfg.Database)
	if err != nil {
		logger.Error(ctx, "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = database.Close()
	}()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     appCfg.Redis.Addr,
		Password: appCfg.Redis.Password,
		DB:       appCfg.Redis.DB,
		PoolSize: appCfg.Redis.PoolSize,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error(ctx, "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisClient.Close()
	}()

	objStorage, err := storage.NewMinIOStorage(appCfg.MinIO)
	if err != nil {
		logger.Error(ctx, "init minio failed", zap.Error(err))
		return
	}

	var publisher judgerepo.StatusEventPublisher
	if appCfg.Events.Enabled {
		producer, err := mq.NewKafkaProducer(appCfg.Kafka)
		if err != nil {
			logger.Error(ctx, "init kafka failed", zap.Error(err))
			return
		}
		defer func() {
			_ = producer.Close()
		}()
		publisher = judgerepo.NewMQStatusEventPublisher(producer, appCfg.Events.Topic)
	}

	problemRepo := repository.NewProblemRepository(database)
	generator := template.NewGenerator(problemRepo, template.NewTestCaseFetcher(appCfg.Template.FetchTimeout), template.NewEngine())
	problemSvc := problemservice.NewProblemService(problemRepo, database, objStorage, appCfg.MinIO.Bucket, generator)

	jobQueue := queue.New(redisClient, appCfg.Queue.Name)
	dispatchSvc := dispatchservice.NewDispatchService(
		problemSvc, generator, files, jobQueue,
		objStorage, appCfg.MinIO.Bucket, appCfg.MinIO.PresignTTL,
		&queue.EnqueueOptions{
			Attempts:    appCfg.Queue.Attempts,
			BackoffBase: appCfg.Queue.BackoffBase,
		},
	)

	var apiClient judge.APIExecutor
	if appCfg.Sandbox.URL != "" {
		apiClient = sandbox.NewAPIClient(appCfg.Sandbox)
	}
	var cliRunner judge.CLIExecutor
	if appCfg.CLI.Path != "" {
		cliRunner = sandbox.NewCLIRunner(appCfg.CLI)
	}

	judgeSvc := judge.NewService(apiClient, cliRunner, ingest.NewService(database), publisher)
	worker := queue.NewWorker(jobQueue, judgeSvc.Handle, queue.WorkerConfig{
		Concurrency: appCfg.Queue.Concurrency,
		StaleAfter:  appCfg.Queue.StaleAfter,
	})
	worker.Start(ctx)
	defer worker.Stop()

	dashboardSvc := dashboard.NewService(database)

	httpServer := buildHTTPServer(appCfg.Server, problemSvc, dispatchSvc, dashboardSvc)

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "exec http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(ctx, "shutdown signal received")
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error(ctx, "http server shutdown failed", zap.Error(err))
	}
}

func buildHTTPServer(cfg ServerConfig, problemSvc *problemservice.ProblemService, dispatchSvc *dispatchservice.DispatchService, dashboardSvc *dashboard.Service) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.TraceContext())
	router.Use(requestLogger())

	api := router.Group("/api/v1")
	problemcontroller.NewProblemController(problemSvc).RegisterRoutes(api)
	dispatchcontroller.NewJobController(dispatchSvc).RegisterRoutes(api)
	dashboard.NewController(dashboardSvc).RegisterRoutes(api)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
