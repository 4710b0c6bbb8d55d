package config

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	App        AppConfig        `mapstructure:"app"`
	Log        LogConfig        `mapstructure:"log"`
	CheckIn    CheckInConfig    `mapstructure:"checkin"`
	Event      EventConfig      `mapstructure:"event"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Migrations MigrationsConfig `mapstructure:"migrations"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowOrigins    []string      `mapstructure:"allow_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Port     string `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`

	MonitorInterval time.Duration `mapstructure:"monitor_interval"` // 连接池指标采集间隔
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Expire int64  `mapstructure:"expire"` // 小时
}

type AppConfig struct {
	Env   string `mapstructure:"env"`
	Debug bool   `mapstructure:"debug"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// CheckInConfig 检票规则
type CheckInConfig struct {
	EarlyWindowHours int           `mapstructure:"early_window_hours"` // 开场前多少小时开放检票
	DefaultCapacity  int           `mapstructure:"default_capacity"`   // 自动建活动时的默认容量
	GuardTTL         time.Duration `mapstructure:"guard_ttl"`
	StatsCacheTTL    time.Duration `mapstructure:"stats_cache_ttl"`
}

type EventConfig struct {
	OngoingDurationHours int `mapstructure:"ongoing_duration_hours"` // 开场后多久视为结束
}

type WorkerConfig struct {
	AuditWorkers  int `mapstructure:"audit_workers"`
	AuditBuffer   int `mapstructure:"audit_buffer"`
	AuditMaxRetry int `mapstructure:"audit_max_retry"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type MigrationsConfig struct {
	Path string `mapstructure:"path"`
}

var GlobalConfig Config

// Validate 验证配置
func (c *Config) Validate() error {
	// JWT 配置验证
	if c.JWT.Secret == "" || c.JWT.Secret == "your_super_secret_key" {
		return errors.New("please set a secure JWT secret in production")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT secret should be at least 32 characters")
	}

	// 数据库配置验证
	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return errors.New("database configuration is incomplete")
	}

	// Redis 配置验证
	if c.Redis.Addr == "" {
		return errors.New("redis address is required")
	}

	if c.CheckIn.EarlyWindowHours <= 0 {
		return errors.New("checkin.early_window_hours must be positive")
	}
	if c.CheckIn.DefaultCapacity <= 0 {
		return errors.New("checkin.default_capacity must be positive")
	}
	if c.Event.OngoingDurationHours <= 0 {
		return errors.New("event.ongoing_duration_hours must be positive")
	}

	return nil
}

// EarlyWindow 开场前可检票的时间窗口
func (c CheckInConfig) EarlyWindow() time.Duration {
	return time.Duration(c.EarlyWindowHours) * time.Hour
}

// OngoingDuration 活动进行中的时长
func (c EventConfig) OngoingDuration() time.Duration {
	return time.Duration(c.OngoingDurationHours) * time.Hour
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allow_origins", []string{"*"})
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("database.monitor_interval", 15*time.Second)
	v.SetDefault("jwt.expire", 24)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.debug", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("checkin.early_window_hours", 4)
	v.SetDefault("checkin.default_capacity", 1000)
	v.SetDefault("checkin.guard_ttl", 10*time.Second)
	v.SetDefault("checkin.stats_cache_ttl", 5*time.Second)
	v.SetDefault("event.ongoing_duration_hours", 4)
	v.SetDefault("worker.audit_workers", 2)
	v.SetDefault("worker.audit_buffer", 500)
	v.SetDefault("worker.audit_max_retry", 3)
	v.SetDefault("ratelimit.rps", 200)
	v.SetDefault("ratelimit.burst", 400)
	v.SetDefault("migrations.path", "file://migrations")
}

// Load 读取配置但不校验，便于工具类命令复用
func Load() (Config, error) {
	// 获取环境变量，默认为dev
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	// 根据环境选择配置文件
	configName := "config"
	if env != "dev" {
		configName = "config." + env
	}

	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Printf("Warning: Config file not found, using defaults or env vars: %v", err)
	}

	// 绑定环境变量
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	// 手动覆盖，以防 viper 无法正确解析复杂结构或环境变量
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		cfg.Redis.Addr = redisAddr
	}
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		cfg.JWT.Secret = jwtSecret
	}
	if cfg.App.Env == "" {
		cfg.App.Env = env
	}

	return cfg, nil
}

// LoadConfig 加载并校验配置，写入 GlobalConfig
func LoadConfig() {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Unable to decode into struct: %v", err)
	}

	// 验证配置
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	GlobalConfig = cfg
	log.Printf("Configuration loaded and validated successfully. Environment: %s", GlobalConfig.App.Env)
}
