// Command ck-bootstrap creates the configured ADMIN and EDITOR accounts.
// Accounts that already exist are left untouched.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/and161185/course-keeper/internal/availability"
	"github.com/and161185/course-keeper/internal/config"
	"github.com/and161185/course-keeper/internal/crypto"
	"github.com/and161185/course-keeper/internal/migrate"
	"github.com/and161185/course-keeper/internal/model"
	"github.com/and161185/course-keeper/internal/obs"
	"github.com/and161185/course-keeper/internal/repository/postgres"
	"github.com/and161185/course-keeper/internal/service"
)

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

	seeds := []service.Seed{
		{Email: cfg.Bootstrap.AdminEmail, Password: cfg.Bootstrap.AdminPassword, FullName: "Administrator Admin", Role: model.RoleAdmin},
		{Email: cfg.Bootstrap.EditorEmail, Password: cfg.Bootstrap.EditorPassword, FullName: "Editor Main", Role: model.RoleEditor},
	}
	if seeds[0].Email == "" && seeds[1].Email == "" {
		logger.Warn("no bootstrap accounts configured")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.Migrate {
		if _, err := migrate.Up(ctx, cfg.Database.DSN); err != nil {
			logger.Fatal("migrate up", zap.Error(err))
		}
	}
	db, err := postgres.New(ctx, cfg.Database.DSN, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal("connect", zap.Error(err))
	}
	defer db.Close()

	users := postgres.NewUserRepo(db)
	courses := postgres.NewCourseRepo(db)
	txm := postgres.NewTxManager(db)
	engine := availability.New(users, postgres.NewCardRepo(db), postgres.NewAvailabilityRepo(db), txm, logger, availability.Options{})
	svc := service.NewUserService(users, postgres.NewBranchRepo(db), postgres.NewPostRepo(db), courses,
		crypto.NewArgon2(crypto.DefaultParams), engine, txm)

	n, err := service.SeedAccounts(ctx, svc, seeds, logger)
	if err != nil {
		logger.Fatal("bootstrap", zap.Error(err))
	}
	logger.Info("bootstrap done", zap.Int("created", n))
}
