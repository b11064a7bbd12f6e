package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-core/pkg/config"
	"github.com/angelmondragon/storefront-core/pkg/db"
	"github.com/angelmondragon/storefront-core/pkg/logger"
	"github.com/angelmondragon/storefront-core/pkg/migrate/migrations"
)

// EnsureSchema brings the local database up to the latest schema. It is called
// once at startup; any incompatibility aborts boot.
func EnsureSchema(ctx context.Context, cfg config.DBConfig, logg *logger.Logger, client *db.Client) error {
	if client == nil || client.DB() == nil {
		return fmt.Errorf("db client is required")
	}

	if err := ValidateFS(migrations.FS); err != nil {
		return fmt.Errorf("embedded migrations: %w", err)
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{"driver": cfg.Driver})
		logg.Info(ctx, "migrate.schema.start")
	}

	if err := Run(ctx, sqlDB, cfg.Driver, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "migrate.schema.done")
	}
	return nil
}
