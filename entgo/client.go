package entgo

import (
	"fmt"
	"regexp"

	"entgo.io/ent/dialect"
	entSql "entgo.io/ent/dialect/sql"

	"github.com/tx7do/go-crud-guard/config"
	"github.com/tx7do/go-crud-guard/sqlx"
)

// entDialect 配置中的驱动名到 ent 方言
func entDialect(driver string) (string, error) {
	switch driver {
	case "mysql":
		return dialect.MySQL, nil
	case "postgres", "postgresql":
		return dialect.Postgres, nil
	case "sqlite":
		return dialect.SQLite, nil
	default:
		return "", fmt.Errorf("driver %q is not supported by ent", driver)
	}
}

// CreateDriver 创建 ent 数据库驱动，连接池、追踪与指标沿用 sqlx.Open
func CreateDriver(cfg config.DatabaseConfig) (*entSql.Driver, error) {
	d, err := entDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, _, err := sqlx.Open(cfg)
	if err != nil {
		return nil, err
	}

	return entSql.OpenDB(d, db), nil
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsValidIdent 校验单个标识符（表名、列名、schema）
func IsValidIdent(s string) bool {
	if len(s) == 0 || len(s) > 128 {
		return false
	}
	return identRe.MatchString(s)
}
