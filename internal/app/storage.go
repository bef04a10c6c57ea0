package app

import (
	"context"

	apperrors "storefront/internal/common/errors"
	"storefront/internal/common/logging"
	"storefront/internal/common/utils"
	"storefront/internal/storage/sqlstore"
)

func (app *App) initializeStorage() error {
	if app.Config.IsPostgres() {
		app.Logger.Info("Database: PostgreSQL",
			logging.Field{Key: "host", Value: app.Config.PostgresHost},
			logging.Field{Key: "port", Value: app.Config.PostgresPort},
			logging.Field{Key: "database", Value: app.Config.PostgresDB},
		)

		// The database container may still be starting; only connection
		// failures are retried.
		retry := utils.DefaultRetryConfig()
		retry.RetryableErrors = func(err error) bool {
			return apperrors.IsType(err, apperrors.ErrTypeConnection)
		}
		return utils.RetryWithBackoff(context.Background(), retry, func(attempt int) error {
			store, err := sqlstore.OpenPostgres(app.Config.PostgresDSN())
			if err != nil {
				app.Logger.Warn("PostgreSQL connection attempt failed",
					logging.Int("attempt", attempt), logging.Err(err))
				return err
			}
			app.Storage = store
			return nil
		})
	}

	app.Logger.Info("Database: SQLite", logging.Field{Key: "path", Value: app.Config.DatabasePath})
	store, err := sqlstore.OpenSQLite(app.Config.DatabasePath)
	if err != nil {
		return err
	}
	app.Storage = store
	return nil
}
