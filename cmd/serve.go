package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/facelogin/internal/auth"
	"github.com/example/facelogin/internal/config"
	"github.com/example/facelogin/internal/faceapi"
	"github.com/example/facelogin/internal/grpcserver"
	"github.com/example/facelogin/internal/handlers"
	"github.com/example/facelogin/internal/repository"
	"github.com/example/facelogin/internal/session"
	"github.com/example/facelogin/internal/usecase"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the face login server",
	Long: `Start the HTTP API (capture, auth, login, logout) and, when grpc_addr is
configured, the gRPC health service.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	db, err := initDatabase(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	if err := repository.AutoMigrate(ctx, db); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}

	redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
	defer redisCancel()
	redisClient, err := initRedis(redisCtx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	users := repository.NewUserRepository(db, logger)
	tokens := repository.NewFaceTokenRepository(db, logger)
	faces := faceapi.NewFacePlusPlus(cfg.FaceAPI.BaseURL, cfg.FaceAPI.APIKey, cfg.FaceAPI.APISecret, cfg.FaceAPI.Timeout, logger)
	sessions := session.NewManager(session.NewRedisStore(redisClient), cfg.Session.Secret, cfg.Session.Audience, cfg.Session.TTL, logger)

	h := handlers.New(
		usecase.NewCaptureUseCase(tokens, faces, cfg.TokenSecret, logger),
		usecase.NewChallengeUseCase(tokens, faces, sessions, cfg.TokenSecret, cfg.LoginRedirect, logger),
		usecase.NewLoginUseCase(users, sessions, logger),
		handlers.CookieConfig{Name: cfg.Session.CookieName, Secure: cfg.Session.SecureCookie},
		logger,
	)

	r := gin.New()
	r.Use(gin.Recovery())
	handlers.RegisterRoutes(r, h, auth.NewMiddleware(sessions, cfg.Session.CookieName, logger))

	serveCtx, stopServe := context.WithCancel(context.Background())
	defer stopServe()
	if cfg.GRPCAddr != "" {
		if err := startHealthServer(serveCtx, cfg, db, redisClient, logger); err != nil {
			return err
		}
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("face login API listening", zap.String("addr", cfg.HTTPAddr))
	if err := serveHTTPServer(server, cfg.ShutdownTimeout, logger); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func startHealthServer(ctx context.Context, cfg *config.Config, db *gorm.DB, redisClient *redis.Client, logger *zap.Logger) error {
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddr, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access db handle: %w", err)
	}
	srv := grpcserver.New(map[string]grpcserver.Check{
		"postgres": sqlDB.PingContext,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}, grpcserver.DefaultCheckInterval, logger)

	go func() {
		logger.Info("gRPC health service listening", zap.String("addr", cfg.GRPCAddr))
		if err := srv.Serve(ctx, lis); err != nil {
			logger.Error("gRPC health service failed", zap.Error(err))
		}
	}()
	return nil
}

func initDatabase(ctx context.Context, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access db handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return db, nil
}

func initRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	sigCh := signalCh
	if sigCh == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)
		sigCh = ch
	}

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
