package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Runner   RunnerConfig   `mapstructure:"runner"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Advisory AdvisoryConfig `mapstructure:"advisory"`
	History  HistoryConfig  `mapstructure:"history"`
	Queue    QueueConfig    `mapstructure:"queue"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres, sqlite
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	Path            string `mapstructure:"path"` // sqlite 文件路径，":memory:" 为内存库
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	AutoMigrate     bool   `mapstructure:"auto_migrate"`      // 是否自动迁移表结构
	LogLevel        string `mapstructure:"log_level"`         // silent, error, warn, info
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 为 false 时互斥与历史使用进程内实现，异步运行不可用
	Enabled bool `mapstructure:"enabled"`

	// 连接模式: standalone(单节点), sentinel(哨兵), cluster(集群)
	Mode string `mapstructure:"mode"`

	// 单节点模式配置
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// 哨兵模式配置
	MasterName       string   `mapstructure:"master_name"`
	SentinelAddrs    []string `mapstructure:"sentinel_addrs"`
	SentinelPassword string   `mapstructure:"sentinel_password"`

	// 集群模式配置
	ClusterAddrs []string `mapstructure:"cluster_addrs"`

	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	KeyPrefix    string `mapstructure:"key_prefix"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// RunnerConfig 运行器限制
type RunnerConfig struct {
	StepBudget           int `mapstructure:"step_budget"`
	StepTimeoutSeconds   int `mapstructure:"step_timeout_seconds"`
	GroupTimeoutSeconds  int `mapstructure:"group_timeout_seconds"` // 0 表示不限制
	RunTimeoutSeconds    int `mapstructure:"run_timeout_seconds"`
	MaxConcurrency       int `mapstructure:"max_concurrency"`
	EditLeaseSeconds     int `mapstructure:"edit_lease_seconds"`
	RunLeaseTTLSeconds   int `mapstructure:"run_lease_ttl_seconds"`
	EventBufferPerClient int `mapstructure:"event_buffer_per_client"`
}

// AgentConfig 远端 Agent 服务配置
type AgentConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	Retries        int    `mapstructure:"retries"`
}

// AdvisoryConfig 优化分析服务配置
type AdvisoryConfig struct {
	Provider       string  `mapstructure:"provider"` // http, openai, 为空则禁用
	Endpoint       string  `mapstructure:"endpoint"`
	APIKey         string  `mapstructure:"api_key"`
	BaseURL        string  `mapstructure:"base_url"`
	Model          string  `mapstructure:"model"`
	Temperature    float32 `mapstructure:"temperature"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	HistoryLimit   int     `mapstructure:"history_limit"`
}

// HistoryConfig 执行历史配置
type HistoryConfig struct {
	Backend      string `mapstructure:"backend"`   // memory, database, redis
	Retention    int    `mapstructure:"retention"` // 每个工作流保留的记录数，0 表示不限
	DefaultLimit int    `mapstructure:"default_limit"`
	RunTTLHours  int    `mapstructure:"run_ttl_hours"` // redis 去重键过期时间
}

// QueueConfig 异步运行队列配置
type QueueConfig struct {
	Enabled            bool `mapstructure:"enabled"`
	Concurrency        int  `mapstructure:"concurrency"`
	MaxRetry           int  `mapstructure:"max_retry"`
	TaskTimeoutSeconds int  `mapstructure:"task_timeout_seconds"`
}

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选）
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// 设置配置文件名和路径
	if configPath == "" {
		v.SetConfigName(env) // dev.yaml, prod.yaml
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")

	// 读取环境变量（优先级高于配置文件）
	v.SetEnvPrefix("APP") // 环境变量前缀：APP_
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 支持嵌套配置：APP_DATABASE_HOST

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	return &cfg, nil
}

// setDefaults 未在配置文件中出现的键使用默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 3600)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.mode", "standalone")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.key_prefix", "flowbuilder:")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("runner.step_budget", 1000)
	v.SetDefault("runner.step_timeout_seconds", 300)
	v.SetDefault("runner.run_timeout_seconds", 1800)
	v.SetDefault("runner.max_concurrency", 5)
	v.SetDefault("runner.edit_lease_seconds", 30)
	v.SetDefault("runner.run_lease_ttl_seconds", 3600)
	v.SetDefault("runner.event_buffer_per_client", 64)

	v.SetDefault("agent.timeout_seconds", 300)
	v.SetDefault("agent.retries", 1)

	v.SetDefault("advisory.timeout_seconds", 60)
	v.SetDefault("advisory.history_limit", 50)

	v.SetDefault("history.backend", "database")
	v.SetDefault("history.retention", 100)
	v.SetDefault("history.default_limit", 20)
	v.SetDefault("history.run_ttl_hours", 72)

	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.max_retry", 3)
	v.SetDefault("queue.task_timeout_seconds", 1800)
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	if c.Driver == "sqlite" {
		if c.Path == "" {
			return "file::memory:?cache=shared"
		}
		return c.Path
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Seconds 秒数转为 Duration，非正数返回 0
func Seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
