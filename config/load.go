package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 CRUDGUARD_BATCH_CHUNK_SIZE
const EnvPrefix = "CRUDGUARD"

// Load 按以下优先级加载配置：
// 1. 环境变量
// 2. 配置文件（path 为空时不读取）
// 3. 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults 注册全部键，AutomaticEnv 只对已知键生效
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("filter.max_parameters", d.Filter.MaxParameters)
	v.SetDefault("filter.reserved_keys", d.Filter.ReservedKeys)

	v.SetDefault("sort.max_fields", d.Sort.MaxFields)

	v.SetDefault("paging.default_page_size", d.Paging.DefaultPageSize)
	v.SetDefault("paging.max_page_size", d.Paging.MaxPageSize)

	v.SetDefault("batch.chunk_size", d.Batch.ChunkSize)
	v.SetDefault("batch.workers", d.Batch.Workers)
	v.SetDefault("batch.chunk_concurrency", d.Batch.ChunkConcurrency)

	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("database.migrate", false)
	v.SetDefault("database.trace", false)
	v.SetDefault("database.metrics", false)
	v.SetDefault("database.debug", false)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", d.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", d.Database.ConnMaxLifetime)
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	var errs []error

	if c.Filter.MaxParameters <= 0 {
		errs = append(errs, errors.New("filter.max_parameters must be positive"))
	}
	if c.Sort.MaxFields <= 0 {
		errs = append(errs, errors.New("sort.max_fields must be positive"))
	}
	if c.Paging.DefaultPageSize <= 0 {
		errs = append(errs, errors.New("paging.default_page_size must be positive"))
	}
	if c.Paging.MaxPageSize > 0 && c.Paging.DefaultPageSize > c.Paging.MaxPageSize {
		errs = append(errs, errors.New("paging.default_page_size exceeds paging.max_page_size"))
	}
	if c.Batch.Workers <= 0 {
		errs = append(errs, errors.New("batch.workers must be positive"))
	}
	if c.Batch.ChunkConcurrency <= 0 {
		errs = append(errs, errors.New("batch.chunk_concurrency must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
