package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	EnableCORS   bool          `mapstructure:"enable_cors"`
	// MaxBodyBytes caps JSON request bodies; uploads carry the whole encoded file.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWTSecret   string        `mapstructure:"jwt_secret"`
	TokenExpiry time.Duration `mapstructure:"token_expiry"`
	BcryptCost  int           `mapstructure:"bcrypt_cost"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Type  string      `mapstructure:"type"`
	MinIO MinIOConfig `mapstructure:"minio"`
	Local LocalConfig `mapstructure:"local"`
}

// MinIOConfig MinIO配置
type MinIOConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	UseSSL     bool   `mapstructure:"use_ssl"`
	BucketName string `mapstructure:"bucket_name"`
}

// LocalConfig 本地存储配置
type LocalConfig struct {
	RootPath string `mapstructure:"root_path"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type     string         `mapstructure:"type"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
}

// PostgresConfig PostgreSQL配置
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// SQLiteConfig SQLite配置
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig 缓存配置
//
// Only token revocation uses the cache.
type CacheConfig struct {
	Type  string      `mapstructure:"type"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var ErrInvalidConfig = errors.New("invalid configuration")

// Load 加载配置
//
// envFile may be empty. A missing .env file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/docshare")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	setEnvOverrides(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":5000")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.enable_cors", true)
	v.SetDefault("server.max_body_bytes", 50<<20)
	v.SetDefault("auth.jwt_secret", "change-me")
	v.SetDefault("auth.token_expiry", 24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local.root_path", "./instance/blobs")
	v.SetDefault("storage.minio.endpoint", "localhost:9000")
	v.SetDefault("storage.minio.use_ssl", false)
	v.SetDefault("storage.minio.bucket_name", "docshare-payloads")
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.sqlite.path", "./instance/app.db")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis.address", "localhost:6379")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// setEnvOverrides 设置环境变量覆盖
func setEnvOverrides(v *viper.Viper) {
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		v.Set("server.address", addr)
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		v.Set("auth.jwt_secret", secret)
	}

	if endpoint := os.Getenv("MINIO_ENDPOINT"); endpoint != "" {
		v.Set("storage.minio.endpoint", endpoint)
	}
	if accessKey := os.Getenv("MINIO_ACCESS_KEY"); accessKey != "" {
		v.Set("storage.minio.access_key", accessKey)
	}
	if secretKey := os.Getenv("MINIO_SECRET_KEY"); secretKey != "" {
		v.Set("storage.minio.secret_key", secretKey)
	}
	if bucket := os.Getenv("MINIO_BUCKET_NAME"); bucket != "" {
		v.Set("storage.minio.bucket_name", bucket)
	}

	if pgHost := os.Getenv("POSTGRES_HOST"); pgHost != "" {
		v.Set("database.postgres.host", pgHost)
	}
	if pgPort := os.Getenv("POSTGRES_PORT"); pgPort != "" {
		if port, err := strconv.Atoi(pgPort); err == nil {
			v.Set("database.postgres.port", port)
		}
	}
	if pgUser := os.Getenv("POSTGRES_USERNAME"); pgUser != "" {
		v.Set("database.postgres.username", pgUser)
	}
	if pgPassword := os.Getenv("POSTGRES_PASSWORD"); pgPassword != "" {
		v.Set("database.postgres.password", pgPassword)
	}
	if pgDatabase := os.Getenv("POSTGRES_DATABASE"); pgDatabase != "" {
		v.Set("database.postgres.database", pgDatabase)
	}

	if redisAddr := os.Getenv("REDIS_ADDRESS"); redisAddr != "" {
		v.Set("cache.redis.address", redisAddr)
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		v.Set("cache.redis.password", redisPassword)
	}
	if redisDB := os.Getenv("REDIS_DB"); redisDB != "" {
		if db, err := strconv.Atoi(redisDB); err == nil {
			v.Set("cache.redis.db", db)
		}
	}
}

// Validate checks the backend selectors.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: database.type %q", ErrInvalidConfig, c.Database.Type)
	}
	switch c.Storage.Type {
	case "local", "minio":
	default:
		return fmt.Errorf("%w: storage.type %q", ErrInvalidConfig, c.Storage.Type)
	}
	switch c.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("%w: cache.type %q", ErrInvalidConfig, c.Cache.Type)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("%w: auth.jwt_secret is empty", ErrInvalidConfig)
	}
	return nil
}

// GetDSN 获取数据库连接字符串
func (c *Config) GetDSN() string {
	switch c.Database.Type {
	case "postgres":
		return buildPostgresDSN(c.Database.Postgres)
	case "sqlite":
		return c.Database.SQLite.Path
	default:
		return ""
	}
}

// buildPostgresDSN 构建PostgreSQL DSN
func buildPostgresDSN(config PostgresConfig) string {
	dsn := "host=" + config.Host
	dsn += " port=" + strconv.Itoa(config.Port)
	dsn += " user=" + config.Username
	dsn += " password=" + config.Password
	dsn += " dbname=" + config.Database
	dsn += " sslmode=" + config.SSLMode
	return dsn
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Server.Mode == "production" || c.Server.Mode == "release"
}

// GetGINMode 获取Gin模式
func (c *Config) GetGINMode() string {
	switch c.Server.Mode {
	case "release", "production":
		return gin.ReleaseMode
	case "test":
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}
