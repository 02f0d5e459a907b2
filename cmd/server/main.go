// Command ck-server starts the course-keeper HTTP API and the gRPC health endpoint.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/and161185/course-keeper/internal/availability"
	"github.com/and161185/course-keeper/internal/config"
	"github.com/and161185/course-keeper/internal/crypto"
	"github.com/and161185/course-keeper/internal/limiter"
	"github.com/and161185/course-keeper/internal/migrate"
	"github.com/and161185/course-keeper/internal/model"
	"github.com/and161185/course-keeper/internal/obs"
	"github.com/and161185/course-keeper/internal/repository/postgres"
	grpcserver "github.com/and161185/course-keeper/internal/server/grpc"
	"github.com/and161185/course-keeper/internal/server/httpapi"
	"github.com/and161185/course-keeper/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// idleClientTTL is how long an unused per-client rate bucket is kept.
const idleClientTTL = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	logger, err := obs.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("http", cfg.Server.HTTPAddr),
		zap.String("grpc", cfg.Server.GRPCAddr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.Database.Migrate {
		n, err := migrate.Up(ctx, cfg.Database.DSN)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", zap.Int("count", n))
	}

	db, err := postgres.New(ctx, cfg.Database.DSN, cfg.Database.MaxConns)
	if err != nil {
		return err
	}
	defer db.Close()

	// Repositories
	users := postgres.NewUserRepo(db)
	cards := postgres.NewCardRepo(db)
	relations := postgres.NewRelationRepo(db)
	records := postgres.NewAvailabilityRepo(db)
	txm := postgres.NewTxManager(db)

	engine := availability.New(users, cards, records, txm, logger.Named("availability"), availability.Options{
		InvertedProgress:  cfg.Progress.InvertedFormula,
		FanoutParallelism: cfg.Fanout.Parallelism,
	})

	// Services
	hasher := crypto.NewArgon2(crypto.DefaultParams)
	signIns := limiter.NewPG(db.Pool, cfg.Auth.LimiterWindow, cfg.Auth.LimiterMaxFails, cfg.Auth.LimiterBlockFor)
	authSvc := service.NewAuthService(users, hasher, signIns, service.TokenConfig{
		SignKey:    []byte(cfg.Auth.JWTSecret),
		Issuer:     cfg.Auth.JWTIssuer,
		AccessTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTTL: cfg.Auth.RefreshTokenTTL,
	}, logger.Named("auth"))
	courses := postgres.NewCourseRepo(db)
	userSvc := service.NewUserService(users, postgres.NewBranchRepo(db), postgres.NewPostRepo(db), courses, hasher, engine, txm)
	cardSvc := service.NewCardService(cards, relations, txm, engine, logger.Named("cards"))

	proxies, err := cfg.Server.ProxyPrefixes()
	if err != nil {
		return err
	}

	obs.Init()
	buckets := limiter.NewBuckets(cfg.Server.RatePerSecond, cfg.Server.RateBurst, idleClientTTL)
	api := httpapi.New(httpapi.Deps{
		Auth:     authSvc,
		Users:    userSvc,
		Branches: service.NewDirectory[model.Branch](postgres.NewBranchRepo(db)),
		Posts:    service.NewDirectory[model.Post](postgres.NewPostRepo(db)),
		Courses:  service.NewCourseService(courses),
		Cards:    cardSvc,
		Log:      logger.Named("http"),
		Buckets:  buckets,
		CORS: cors.Options{
			AllowedOrigins:   config.SplitList(cfg.CORS.AllowedOrigins),
			AllowedMethods:   config.SplitList(cfg.CORS.AllowedMethods),
			AllowedHeaders:   config.SplitList(cfg.CORS.AllowedHeaders),
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           cfg.CORS.MaxAge,
		},
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		TrustedProxies: proxies,
	})
	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// gRPC health & reflection
	var grpcOpts []grpc.ServerOption
	if cfg.Server.GRPCTLSCert != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.Server.GRPCTLSCert, cfg.Server.GRPCTLSKey)
		if err != nil {
			return err
		}
		grpcOpts = append(grpcOpts, grpc.Creds(creds))
	}
	health := grpcserver.NewHealth(db, cfg.Server.HealthInterval, logger.Named("health"))
	grpcSrv := grpcserver.NewServer(logger.Named("grpc"), health, grpcOpts...)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("grpc listening", zap.String("addr", cfg.Server.GRPCAddr), zap.Bool("tls", len(grpcOpts) > 0))
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		health.Run(gctx)
		return nil
	})
	g.Go(func() error {
		sweepBuckets(gctx, buckets, logger)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdown(cfg.Server.ShutdownTimeout, httpSrv, grpcSrv, logger)
		return nil
	})
	return g.Wait()
}

func sweepBuckets(ctx context.Context, b *limiter.Buckets, logger *zap.Logger) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := b.Sweep(now); n > 0 {
				logger.Debug("rate buckets swept", zap.Int("removed", n), zap.Int("live", b.Len()))
			}
		}
	}
}

func shutdown(timeout time.Duration, httpSrv *http.Server, grpcSrv *grpc.Server, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		grpcSrv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		grpcSrv.Stop()
	}
}
