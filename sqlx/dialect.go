package sqlx

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Dialect 标识符引号、占位符风格以及后端能力
type Dialect struct {
	Name        string
	Quote       byte
	Placeholder sq.PlaceholderFormat

	// Transactions 支持可回滚的事务
	Transactions bool
	// RowsAffected DELETE 能返回准确的影响行数
	RowsAffected bool
}

var (
	MySQL    = Dialect{Name: "mysql", Quote: '`', Placeholder: sq.Question, Transactions: true, RowsAffected: true}
	SQLite   = Dialect{Name: "sqlite", Quote: '`', Placeholder: sq.Question, Transactions: true, RowsAffected: true}
	Postgres = Dialect{Name: "postgres", Quote: '"', Placeholder: sq.Dollar, Transactions: true, RowsAffected: true}
	// ClickHouse 的 DELETE 是异步变更，没有事务，也不返回影响行数
	ClickHouse = Dialect{Name: "clickhouse", Quote: '`', Placeholder: sq.Question}
)

// QuoteIdent 给单个标识符加引号，并转义其中的引号字符
func (d Dialect) QuoteIdent(name string) string {
	q := string(d.Quote)
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// QuotePath 点分隔路径按片段加引号：orders.name -> `orders`.`name`
func (d Dialect) QuotePath(path string) string {
	segments := strings.Split(path, ".")
	for i, s := range segments {
		segments[i] = d.QuoteIdent(s)
	}
	return strings.Join(segments, ".")
}

func (d Dialect) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(d.Placeholder)
}
