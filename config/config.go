package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"db"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Log           LogConfig           `mapstructure:"log"`
	Engine        EngineConfig        `mapstructure:"engine"`
	Collaborators CollaboratorsConfig `mapstructure:"collaborators"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port    int        `mapstructure:"port"`
	BaseURL string     `mapstructure:"base_url"`
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 缓存配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 校验配置
// 登录/会话由外部平台负责，引擎只校验其签发的 Access Token
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EngineConfig 调度引擎运行参数
type EngineConfig struct {
	MaxWorkers          int           `mapstructure:"max_workers"`           // 批内并行评估 worker 上限
	BatchTimeout        time.Duration `mapstructure:"batch_timeout"`         // 整批处理超时
	EligibilityCacheTTL time.Duration `mapstructure:"eligibility_cache_ttl"` // 资格快照缓存 TTL
	UndoGracePeriod     time.Duration `mapstructure:"undo_grace_period"`     // 确认后可撤销的宽限窗口
	LedgerRetryLimit    int           `mapstructure:"ledger_retry_limit"`    // 账本乐观锁冲突重试次数
	MaxWeeklyHours      float64       `mapstructure:"max_weekly_hours"`      // 周工时硬上限（默认约束，可被配置版本覆盖）
	MinRestHours        float64       `mapstructure:"min_rest_hours"`        // 班次间最小休息小时
	MaxConsecutiveDays  int           `mapstructure:"max_consecutive_days"`  // 最大连续工作天数
}

// CollaboratorsConfig 外部协作方配置（通知分发 / 日历同步）
type CollaboratorsConfig struct {
	NotifyURL      string        `mapstructure:"notify_url"`
	CalendarURL    string        `mapstructure:"calendar_url"`
	CallTimeout    time.Duration `mapstructure:"call_timeout"`     // 单次协作方调用超时
	OutboxInterval time.Duration `mapstructure:"outbox_interval"`  // 发件箱轮询间隔
	OutboxMaxRetry int           `mapstructure:"outbox_max_retry"` // 分发最大重试次数
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "nicehr_scheduling")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("engine.max_workers", 8)
	v.SetDefault("engine.batch_timeout", "30s")
	v.SetDefault("engine.eligibility_cache_ttl", "1h")
	v.SetDefault("engine.undo_grace_period", "15m")
	v.SetDefault("engine.ledger_retry_limit", 1)
	v.SetDefault("engine.max_weekly_hours", 40.0)
	v.SetDefault("engine.min_rest_hours", 8.0)
	v.SetDefault("engine.max_consecutive_days", 6)

	v.SetDefault("collaborators.notify_url", "")
	v.SetDefault("collaborators.calendar_url", "")
	v.SetDefault("collaborators.call_timeout", "5s")
	v.SetDefault("collaborators.outbox_interval", "10s")
	v.SetDefault("collaborators.outbox_max_retry", 5)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("NICEHR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// ── 关键配置校验 ──
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.Engine.MaxWorkers <= 0 {
		return fmt.Errorf("配置校验失败: engine.max_workers 必须大于 0")
	}
	if c.Engine.BatchTimeout <= 0 {
		return fmt.Errorf("配置校验失败: engine.batch_timeout 必须大于 0")
	}
	if c.Engine.MaxWeeklyHours <= 0 {
		return fmt.Errorf("配置校验失败: engine.max_weekly_hours 必须大于 0")
	}
	return nil
}
