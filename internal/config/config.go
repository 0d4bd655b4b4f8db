// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	KeepAlive KeepAliveConfig `mapstructure:"keepalive"`
	Seed      SeedConfig      `mapstructure:"seed"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port      string `mapstructure:"port"`
	Mode      string `mapstructure:"mode"`
	StaticDir string `mapstructure:"static_dir"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
// 如果 DSN 为空，则根据 Host/User/Password/Database/Port 拼装。
type MySQLConfig struct {
	DSN          string `mapstructure:"dsn"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	TLS          string `mapstructure:"tls"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// BuildDSN 返回 go-sql-driver/mysql 格式的连接串。
func (c MySQLConfig) BuildDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	port := c.Port
	if port == 0 {
		port = 3306
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, port, c.Database)
	if c.TLS != "" {
		dsn += "&tls=" + c.TLS
	}
	return dsn
}

// RedisConfig 存储 Redis 的配置。Addr 为空时不启用统计功能。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Brokers    string `mapstructure:"brokers"`
	EventTopic string `mapstructure:"event_topic"`
	TeachTopic string `mapstructure:"teach_topic"`
	GroupID    string `mapstructure:"group_id"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// GeminiConfig 存储生成式兜底回答的配置。APIKey 为空时不启用。
type GeminiConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	Temperature       float32 `mapstructure:"temperature"`
	MaxOutputTokens   int32   `mapstructure:"max_output_tokens"`
	SystemInstruction string  `mapstructure:"system_instruction"`
}

// KeepAliveConfig 控制数据库保活任务。
type KeepAliveConfig struct {
	Interval  string `mapstructure:"interval"`
	AutoStart bool   `mapstructure:"auto_start"`
}

// SeedConfig 控制启动时导入的种子知识目录。
type SeedConfig struct {
	Dir string `mapstructure:"dir"`
}

// envBindings 兼容原有 .env 中的变量名。
var envBindings = map[string]string{
	"server.port":             "PORT",
	"database.mysql.host":     "DB_HOST",
	"database.mysql.port":     "DB_PORT",
	"database.mysql.user":     "DB_USER",
	"database.mysql.password": "DB_PASSWORD",
	"database.mysql.database": "DB_DATABASE",
	"database.redis.addr":     "REDIS_ADDR",
	"gemini.api_key":          "GEMINI_API_KEY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.static_dir", "public")
	v.SetDefault("database.mysql.max_open_conns", 10)
	v.SetDefault("database.mysql.max_idle_conns", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("kafka.event_topic", "mangrat-knowledge-events")
	v.SetDefault("kafka.teach_topic", "mangrat-teach-tasks")
	v.SetDefault("kafka.group_id", "mangrat-go-consumer")
	v.SetDefault("minio.bucket_name", "mangrat-exports")
	v.SetDefault("gemini.model", "gemini-1.5-flash-latest")
	v.SetDefault("keepalive.interval", "5m")
	v.SetDefault("seed.dir", "initfile")
}

// Load 从指定路径读取 YAML 文件，并叠加环境变量，返回解析后的配置。
// 配置文件不存在时仅使用默认值和环境变量。
func Load(configPath string) (Config, error) {
	// .env 文件是可选的
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("绑定环境变量 %s 失败: %w", env, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return cfg, nil
}

// Init 初始化全局配置 Conf，失败时直接 panic。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
