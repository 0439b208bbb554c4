package migrate

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/shopfront-backend/pkg/config"
	"github.com/angelmondragon/shopfront-backend/pkg/db"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
)

// AutoApply brings a dev postgres database up to date on boot when
// SHOPFRONT_AUTO_MIGRATE is set. It reports whether anything ran. Other
// environments migrate through cmd/migrate.
func AutoApply(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) (bool, error) {
	if cfg == nil || !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return false, nil
	}
	if client.Driver() != db.DriverPostgres {
		logg.Warn(logg.WithField(ctx, "driver", client.Driver()), "auto-migrate skipped")
		return false, nil
	}
	if err := ValidateDir(DefaultDir); err != nil {
		return false, err
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return false, fmt.Errorf("extracting sql.DB: %w", err)
	}
	if err := prepare(sqlDB, DefaultDir); err != nil {
		return false, err
	}

	before, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return false, fmt.Errorf("get db version: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, DefaultDir); err != nil {
		return false, fmt.Errorf("goose up: %w", err)
	}
	after, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return false, fmt.Errorf("get db version: %w", err)
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"from_version": before,
		"to_version":   after,
	}), "auto-migrate finished")
	return after != before, nil
}
