// Package app assembles the service from configuration.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/bryanwahyu/docguard/internal/config"
	"github.com/bryanwahyu/docguard/internal/domain/analyzer"
	"github.com/bryanwahyu/docguard/internal/domain/failures"
	"github.com/bryanwahyu/docguard/internal/domain/reports"
	aiopenai "github.com/bryanwahyu/docguard/internal/infra/ai/openai"
	"github.com/bryanwahyu/docguard/internal/infra/ai/prompt"
	"github.com/bryanwahyu/docguard/internal/infra/backend/httpapi"
	mysqlp "github.com/bryanwahyu/docguard/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/docguard/internal/infra/db/postgres"
	sqlitep "github.com/bryanwahyu/docguard/internal/infra/db/sqlite"
)

// Backend picks the analysis backend for cfg.Backend.Mode.
func Backend(cfg *config.Config, log *zap.Logger) (analyzer.Backend, error) {
	switch cfg.Backend.Mode {
	case "http":
		return httpapi.NewClient(cfg.Backend.URL, cfg.Backend.APIKey, cfg.Backend.Timeout, log.Named("backend")), nil
	case "openai":
		return aiopenai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model), nil
	case "local":
		return prompt.Local{}, nil
	}
	return nil, fmt.Errorf("unknown backend mode %q", cfg.Backend.Mode)
}

// Repositories holds the history stores of one database.
type Repositories struct {
	DB       *sql.DB
	Reports  reports.Repository
	Failures failures.Repository
}

// Database connects to the configured driver and builds its repositories.
// SQLite is always migrated; the others only when database.migrate is set.
func Database(ctx context.Context, cfg *config.Config) (*Repositories, error) {
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		if cfg.Database.Migrate {
			if err := mysqlp.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, fmt.Errorf("mysql migrate: %w", err)
			}
		}
		return &Repositories{DB: db, Reports: mysqlp.NewReportRepository(db), Failures: mysqlp.NewFailureRepository(db)}, nil
	case "postgres":
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		if cfg.Database.Migrate {
			if err := postgresp.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, fmt.Errorf("postgres migrate: %w", err)
			}
		}
		return &Repositories{DB: db, Reports: postgresp.NewReportRepository(db), Failures: postgresp.NewFailureRepository(db)}, nil
	case "sqlite":
		db, err := sqlitep.Connect(ctx, cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite open: %w", err)
		}
		if err := sqlitep.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite migrate: %w", err)
		}
		return &Repositories{DB: db, Reports: sqlitep.NewReportRepository(db), Failures: sqlitep.NewFailureRepository(db)}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}
