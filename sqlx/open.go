package sqlx

import (
	"database/sql"
	"fmt"

	"github.com/XSAM/otelsql"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/glebarez/go-sqlite"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tx7do/go-crud-guard/config"
)

type driverInfo struct {
	name    string
	dialect Dialect
	system  attribute.KeyValue
}

// lookupDriver 配置中的驱动名到 database/sql 驱动与方言
func lookupDriver(driver string) (driverInfo, error) {
	switch driver {
	case "mysql":
		return driverInfo{name: "mysql", dialect: MySQL, system: semconv.DBSystemMySQL}, nil
	case "postgres", "postgresql":
		return driverInfo{name: "pgx", dialect: Postgres, system: semconv.DBSystemPostgreSQL}, nil
	case "sqlite":
		return driverInfo{name: "sqlite", dialect: SQLite, system: semconv.DBSystemSqlite}, nil
	case "clickhouse":
		return driverInfo{name: "clickhouse", dialect: ClickHouse, system: semconv.DBSystemClickhouse}, nil
	default:
		return driverInfo{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Open 按数据库配置打开连接并返回对应方言。
// Trace 开启时通过 otelsql 记录 SQL span，Metrics 开启时上报连接池指标。
func Open(cfg config.DatabaseConfig) (*sql.DB, Dialect, error) {
	info, err := lookupDriver(cfg.Driver)
	if err != nil {
		return nil, Dialect{}, err
	}

	var db *sql.DB
	if cfg.Trace || cfg.Metrics {
		db, err = otelsql.Open(info.name, cfg.DSN,
			otelsql.WithAttributes(info.system),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		)
	} else {
		db, err = sql.Open(info.name, cfg.DSN)
	}
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("failed opening connection to db: %w", err)
	}

	if cfg.Metrics {
		if _, err = otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(info.system)); err != nil {
			_ = db.Close()
			return nil, Dialect{}, fmt.Errorf("failed registering db stats metrics: %w", err)
		}
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return db, info.dialect, nil
}
