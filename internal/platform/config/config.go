package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DatabaseDriverSqlite   = "sqlite"
	DatabaseDriverPostgres = "postgres"

	StoreDriverMemory = "memory"
	StoreDriverRedis  = "redis"
)

// Config 结构体定义了应用程序的所有配置项
// 它与 config.yaml 文件的结构完全对应
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Store       StoreConfig       `mapstructure:"store"`
	Proximity   ProximityConfig   `mapstructure:"proximity"`
	Backup      BackupConfig      `mapstructure:"backup"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
}

// ServerConfig 定义了服务器相关的配置
type ServerConfig struct {
	Mode    string     `mapstructure:"mode"` // gin 的运行模式: debug / release / test
	Address string     `mapstructure:"address"`
	Cors    CorsConfig `mapstructure:"cors"`
}

// CorsConfig 定义了CORS相关的配置
type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// DatabaseConfig 定义了关系数据库和缓存相关的配置
type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Sqlite   SqliteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// SqliteConfig 定义了SQLite的配置，Path 为 ":memory:" 时使用私有的内存数据库
type SqliteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig 定义了Postgres的连接串
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 定义了Redis的配置
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StoreConfig 定义了文档存储的后端和乐观事务的重试上限
type StoreConfig struct {
	Driver      string `mapstructure:"driver"`
	MaxAttempts int    `mapstructure:"maxAttempts"`
}

// ProximityConfig 定义了邻近判定的阈值和会话的空闲超时
type ProximityConfig struct {
	ThresholdMeters float64       `mapstructure:"thresholdMeters"`
	SessionTTL      time.Duration `mapstructure:"sessionTTL"`
}

// BackupConfig 定义了快照备份的频率
type BackupConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// LeaderboardConfig 定义了排行榜接口的默认条数
type LeaderboardConfig struct {
	DefaultLimit int `mapstructure:"defaultLimit"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.cors.allowedOrigins", []string{"http://localhost:3000"})

	v.SetDefault("database.driver", DatabaseDriverSqlite)
	v.SetDefault("database.sqlite.path", "parks.db")
	v.SetDefault("database.postgres.dsn", "")
	v.SetDefault("database.redis.address", "localhost:6379")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("store.driver", StoreDriverMemory)
	v.SetDefault("store.maxAttempts", 5)

	v.SetDefault("proximity.thresholdMeters", 200.0)
	v.SetDefault("proximity.sessionTTL", 30*time.Minute)
	v.SetDefault("backup.interval", 10*time.Minute)
	v.SetDefault("leaderboard.defaultLimit", 50)
}

// LoadConfig 函数负责查找、加载和解析配置文件
// 它会依次在 paths (默认为 ./config 和 .) 中查找名为 config.yaml 的文件，
// 找不到配置文件时使用默认值。
func LoadConfig(paths ...string) (*Config, error) {
	// 1. 加载 .env (可选)，其中的变量随后可以通过环境变量覆盖配置
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("无法加载 .env 文件: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// 2. 设置配置文件名、类型和搜索路径
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./config", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// 3. 允许通过环境变量覆盖配置，例如 SERVER_ADDRESS=:9090
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("无法读取配置文件: %w", err)
		}
	}

	// 5. 将配置反序列化到结构体中
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法解析配置: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查配置的取值是否可用
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DatabaseDriverSqlite:
		if c.Database.Sqlite.Path == "" {
			return errors.New("配置错误: database.sqlite.path 不能为空")
		}
	case DatabaseDriverPostgres:
		if c.Database.Postgres.DSN == "" {
			return errors.New("配置错误: database.postgres.dsn 不能为空")
		}
	default:
		return fmt.Errorf("配置错误: 未知的数据库驱动 '%s'", c.Database.Driver)
	}

	switch c.Store.Driver {
	case StoreDriverMemory, StoreDriverRedis:
	default:
		return fmt.Errorf("配置错误: 未知的存储驱动 '%s'", c.Store.Driver)
	}

	if c.Store.MaxAttempts <= 0 {
		return fmt.Errorf("配置错误: store.maxAttempts 必须为正数，当前为 %d", c.Store.MaxAttempts)
	}
	if c.Proximity.ThresholdMeters <= 0 {
		return fmt.Errorf("配置错误: proximity.thresholdMeters 必须为正数，当前为 %v", c.Proximity.ThresholdMeters)
	}
	if c.Proximity.SessionTTL <= 0 {
		return fmt.Errorf("配置错误: proximity.sessionTTL 必须为正数，当前为 %v", c.Proximity.SessionTTL)
	}
	if c.Backup.Interval <= 0 {
		return fmt.Errorf("配置错误: backup.interval 必须为正数，当前为 %v", c.Backup.Interval)
	}
	if c.Leaderboard.DefaultLimit <= 0 {
		return fmt.Errorf("配置错误: leaderboard.defaultLimit 必须为正数，当前为 %d", c.Leaderboard.DefaultLimit)
	}
	return nil
}
