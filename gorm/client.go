package gorm

import (
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gorm.io/plugin/dbresolver"
	"gorm.io/plugin/opentelemetry/tracing"
	"gorm.io/plugin/prometheus"

	glebarezSqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/clickhouse"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"

	"github.com/tx7do/go-crud-guard/config"
)

type gormLoggerWriter struct {
	helper *log.Helper
}

func (w gormLoggerWriter) Printf(format string, args ...interface{}) {
	w.helper.Debugf(format, args...)
}

func NewGormLogger(l *log.Helper, level logger.LogLevel) logger.Interface {
	w := gormLoggerWriter{helper: l}
	return logger.New(
		w,
		logger.Config{
			SlowThreshold:             time.Millisecond * 100, // 慢 SQL 阈值（超过 100ms 标为慢 SQL）
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

type Client struct {
	*gorm.DB

	log *log.Helper
}

// NewClient 根据数据库配置创建 GORM 客户端
func NewClient(cfg config.DatabaseConfig, l log.Logger, gormCfg *gorm.Config) (*Client, error) {
	if l == nil {
		l = log.DefaultLogger
	}

	c := &Client{
		log: log.NewHelper(log.With(l, "module", "gorm-client")),
	}

	if gormCfg == nil {
		gormCfg = &gorm.Config{}
	}
	if gormCfg.Logger == nil {
		level := logger.Warn
		if cfg.Debug {
			level = logger.Info
		}
		gormCfg.Logger = NewGormLogger(c.log, level)
	}

	if err := c.createGormClient(cfg, gormCfg); err != nil {
		c.log.Errorf("create gorm client failed: %s", err.Error())
		return nil, err
	}

	return c, nil
}

// Close 关闭底层连接池
func (c *Client) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// openDialector 按驱动名称创建方言。
// sqlite 使用纯 Go 实现，sqlite3 使用 cgo 实现。
func openDialector(driverName, dsn string) (gorm.Dialector, error) {
	switch driverName {
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres", "postgresql":
		return postgres.Open(dsn), nil
	case "clickhouse":
		return clickhouse.Open(dsn), nil
	case "sqlite":
		return glebarezSqlite.Open(dsn), nil
	case "sqlite3":
		return sqlite.Open(dsn), nil
	case "sqlserver", "mssql":
		return sqlserver.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driverName)
	}
}

// createGormClient 创建GORM的客户端
func (c *Client) createGormClient(cfg config.DatabaseConfig, gormCfg *gorm.Config) error {
	driver, err := openDialector(cfg.Driver, cfg.DSN)
	if err != nil {
		return err
	}

	client, err := gorm.Open(driver, gormCfg)
	if err != nil {
		return fmt.Errorf("failed opening connection to db: %v", err)
	}

	// 只读副本
	if len(cfg.Replicas) > 0 {
		replicas := make([]gorm.Dialector, 0, len(cfg.Replicas))
		for _, dsn := range cfg.Replicas {
			d, err := openDialector(cfg.Driver, dsn)
			if err != nil {
				return err
			}
			replicas = append(replicas, d)
		}
		if err = client.Use(dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		})); err != nil {
			return fmt.Errorf("failed registering db replicas: %v", err)
		}
	}

	if cfg.Trace {
		var opts []tracing.Option
		if cfg.Metrics {
			opts = append(opts, tracing.WithoutMetrics())
		}

		if err = client.Use(tracing.NewPlugin(opts...)); err != nil {
			return fmt.Errorf("failed enabling db tracing: %v", err)
		}
	}

	if cfg.Metrics {
		if err = client.Use(prometheus.New(prometheus.Config{
			DBName:          cfg.Driver,
			RefreshInterval: 15,
		})); err != nil {
			return fmt.Errorf("failed enabling db metrics: %v", err)
		}
	}

	sqlDB, err := client.DB()
	if err != nil {
		return fmt.Errorf("failed getting sql db: %v", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	// 运行数据库迁移工具
	if cfg.Migrate {
		if err = client.AutoMigrate(
			getMigrateModels()...,
		); err != nil {
			return fmt.Errorf("failed creating schema resources: %v", err)
		}
	}

	c.DB = client

	return nil
}
