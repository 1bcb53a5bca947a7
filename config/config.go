package config

import "time"

// Config 引擎运行参数
type Config struct {
	Filter   FilterConfig   `mapstructure:"filter"`
	Sort     SortConfig     `mapstructure:"sort"`
	Paging   PagingConfig   `mapstructure:"paging"`
	Batch    BatchConfig    `mapstructure:"batch"`
	Database DatabaseConfig `mapstructure:"database"`
}

type FilterConfig struct {
	// MaxParameters 实体未声明上限时的默认过滤条件总数上限
	MaxParameters int      `mapstructure:"max_parameters"`
	ReservedKeys  []string `mapstructure:"reserved_keys"`
}

type SortConfig struct {
	MaxFields int `mapstructure:"max_fields"`
}

type PagingConfig struct {
	DefaultPageSize int `mapstructure:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size"`
}

type BatchConfig struct {
	ChunkSize        int `mapstructure:"chunk_size"`
	Workers          int `mapstructure:"workers"`
	ChunkConcurrency int `mapstructure:"chunk_concurrency"`
}

type DatabaseConfig struct {
	Driver   string   `mapstructure:"driver"`
	DSN      string   `mapstructure:"dsn"`
	Replicas []string `mapstructure:"replicas"`
	Migrate  bool     `mapstructure:"migrate"`
	Trace    bool     `mapstructure:"trace"`
	Metrics  bool     `mapstructure:"metrics"`
	Debug    bool     `mapstructure:"debug"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

const (
	DefaultMaxParameters    = 20
	DefaultMaxSortFields    = 5
	DefaultPageSize         = 10
	DefaultMaxPageSize      = 1000
	DefaultChunkSize        = 100
	DefaultWorkers          = 8
	DefaultChunkConcurrency = 4
)

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Filter: FilterConfig{
			MaxParameters: DefaultMaxParameters,
			ReservedKeys:  []string{"page", "page_size", "sort", "order_by", "query", "filter"},
		},
		Sort:   SortConfig{MaxFields: DefaultMaxSortFields},
		Paging: PagingConfig{DefaultPageSize: DefaultPageSize, MaxPageSize: DefaultMaxPageSize},
		Batch: BatchConfig{
			ChunkSize:        DefaultChunkSize,
			Workers:          DefaultWorkers,
			ChunkConcurrency: DefaultChunkConcurrency,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
	}
}
