package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/docintake/internal/common"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Driver           string // sqlite (default) or postgres
	DSN              string
	MaxConns         int32
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// DB is an open archive database wrapped for ent's SQL builder.
type DB struct {
	drv     *entsql.Driver
	dialect string
	pool    *pgxpool.Pool
	logger  *slog.Logger
}

// Open connects to the archive. Postgres goes through a pgx pool wrapped as *sql.DB.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = DriverSQLite
	}
	logger.Info("repository.open", "driver", driver)

	switch driver {
	case DriverSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "file:docintake.db?_pragma=busy_timeout(5000)"
		}
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// one connection keeps in-memory databases shared and serializes writers
		db.SetMaxOpenConns(1)
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping sqlite: %w", err)
		}
		return &DB{drv: entsql.OpenDB(dialect.SQLite, db), dialect: dialect.SQLite, logger: logger}, nil

	case DriverPostgres:
		pc, err := pgxpool.ParseConfig(cfg.DSN)
		if err != nil {
			logger.Error("repository.open.failed", "driver", driver, "err", err)
			return nil, err
		}
		if cfg.MaxConns > 0 {
			pc.MaxConns = cfg.MaxConns
		}
		pc.ConnConfig.RuntimeParams["application_name"] = "docintake"
		if cfg.StatementTimeout > 0 {
			pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
		}
		dctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
		pool, err := pgxpool.NewWithConfig(dctx, pc)
		if err != nil {
			logger.Error("repository.open.failed", "driver", driver, "err", err)
			return nil, err
		}
		db := stdlib.OpenDBFromPool(pool)
		return &DB{drv: entsql.OpenDB(dialect.Postgres, db), dialect: dialect.Postgres, pool: pool, logger: logger}, nil
	}
	return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown archive driver %q", cfg.Driver), common.ErrInvalidInput)
}

// Close closes the database connections gracefully.
func (d *DB) Close() error {
	d.logger.Info("repository.close")
	err := d.drv.Close()
	if d.pool != nil {
		d.pool.Close()
	}
	return err
}

// HealthCheck pings the database.
func (d *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := d.drv.DB().PingContext(ctx); err != nil {
		d.logger.Warn("repository.ping.failed", "err", err)
		return err
	}
	return nil
}

func (d *DB) builder() *entsql.DialectBuilder {
	return entsql.Dialect(d.dialect)
}

// Migrate creates the archive table and its index when missing.
func (d *DB) Migrate(ctx context.Context) error {
	text, float, bigint := "TEXT", "DOUBLE PRECISION", "BIGINT"
	create, args := d.builder().CreateTable(runTable).IfNotExists().
		Columns(
			entsql.Column(colID).Type(text).Attr("NOT NULL"),
			entsql.Column(colPath).Type(text).Attr("NOT NULL"),
			entsql.Column(colStatus).Type(text).Attr("NOT NULL"),
			entsql.Column(colReason).Type(text),
			entsql.Column(colSchema).Type(text),
			entsql.Column(colDocType).Type(text),
			entsql.Column(colClassConfidence).Type(float),
			entsql.Column(colConfidence).Type(float),
			entsql.Column(colQuality).Type(float),
			entsql.Column(colEntityKind).Type(text),
			entsql.Column(colErrors).Type(text),
			entsql.Column(colWarnings).Type(text),
			entsql.Column(colStages).Type(text),
			entsql.Column(colStartedAt).Type(bigint),
			entsql.Column(colFinishedAt).Type(bigint),
			entsql.Column(colElapsedMS).Type(bigint),
		).
		PrimaryKey(colID).
		Query()
	if err := d.drv.Exec(ctx, create, args, nil); err != nil {
		return fmt.Errorf("create %s: %w", runTable, err)
	}
	index := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_status_finished ON %s (%s, %s)",
		runTable, runTable, colStatus, colFinishedAt)
	if err := d.drv.Exec(ctx, index, []any{}, nil); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	d.logger.Info("repository.migrated", "table", runTable)
	return nil
}
