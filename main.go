package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkout-service/apperrors"
	"checkout-service/controllers"
	"checkout-service/database"
	"checkout-service/logger"
	"checkout-service/middleware"
	aws_pkg "checkout-service/pkg/aws"
	"checkout-service/repository"
	"checkout-service/routes"
	servicepkg "checkout-service/services"
	"checkout-service/validation"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const serviceName = "checkout-service"

func main() {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	cfg, err := LoadConfig(ctx)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	awsCfg, awsErr := aws_pkg.LoadAWSConfig(ctx)

	zl, err := initLogger(ctx, cfg, awsCfg, awsErr)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	if awsErr != nil {
		zl.Warn("AWS config unavailable, SNS, S3 and metrics disabled", zap.Error(awsErr))
	}

	db, err := database.ConnectPostgres(cfg.Postgres(), zl)
	if err != nil {
		zl.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db) //nolint:errcheck

	if err := database.Migrate(ctx, db); err != nil {
		zl.Fatal("Failed to run migrations", zap.Error(err))
	}

	// AWS clients
	var (
		snsClient     aws_pkg.SNSPublisher
		uploader      aws_pkg.FileUploader
		metricsClient *aws_pkg.MetricsClient
	)
	if awsErr == nil {
		if cfg.CheckoutSNSTopicARN != "" {
			snsClient = aws_pkg.NewSNSClient(awsCfg)
		}
		if cfg.ExportBucket != "" {
			uploader = aws_pkg.NewS3Uploader(awsCfg)
		}
		metricsClient = aws_pkg.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled)
	}

	var reports servicepkg.ImportReportStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close() //nolint:errcheck
		if err := rdb.Ping(ctx).Err(); err != nil {
			zl.Warn("Redis unavailable, import reports will not be retained", zap.Error(err))
		} else {
			reports = servicepkg.NewRedisImportReportStore(rdb, cfg.ImportReportTTL)
		}
	}

	// DI chain
	checkoutRepo := repository.NewGormCheckoutRepository(db, cfg.StoreTimeout)
	checkoutService := servicepkg.NewCheckoutService(
		checkoutRepo,
		validation.New(),
		snsClient,
		uploader,
		reports,
		servicepkg.Settings{
			ExportDir:    cfg.ExportDir,
			ExportBucket: cfg.ExportBucket,
			SNSTopicArn:  cfg.CheckoutSNSTopicARN,
		},
		zl,
	)
	checkoutController := controllers.NewCheckoutController(checkoutService)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	rl := middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst, 5*time.Minute)
	go rl.Run(ctx)

	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(zl),
		middleware.MetricsMiddleware(metricsClient, serviceName),
		middleware.CORSMiddleware(middleware.ParseOrigins(cfg.AllowedOrigins)),
		middleware.SecurityHeaders(),
		middleware.Timeout(cfg.RequestTimeout),
		apperrors.ErrorMiddleware(zl),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": serviceName})
	})
	r.NoRoute(func(c *gin.Context) {
		apperrors.Abort(c, apperrors.ErrNotFound)
	})

	routes.RegisterCheckoutRoutes(r, checkoutController, rl.Middleware())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("Server failed", zap.Error(err))
		}
	}()

	zl.Info("Checkout service started",
		zap.String("port", cfg.Port),
		zap.String("export_dir", cfg.ExportDir),
	)
	<-quit
	zl.Info("Shutting down checkout service...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("Server forced to shutdown", zap.Error(err))
		return
	}
	zl.Info("Server exited cleanly")
}

// initLogger builds the process logger, teeing into CloudWatch Logs when
// enabled and AWS is reachable.
func initLogger(ctx context.Context, cfg *Config, awsCfg sdkaws.Config, awsErr error) (*zap.Logger, error) {
	if !cfg.CloudWatchEnabled || awsErr != nil {
		return logger.Initialize(cfg.Env)
	}
	cw, err := aws_pkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.CloudWatchLogGroup, serviceName, true)
	if err != nil {
		l, initErr := logger.Initialize(cfg.Env)
		if initErr != nil {
			return nil, initErr
		}
		l.Warn("CloudWatch Logs unavailable, logging to stdout only", zap.Error(err))
		return l, nil
	}
	return logger.InitializeWithWriter(cfg.Env, cw, os.Stdout)
}
