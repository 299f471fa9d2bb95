package config

import (
	"log"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type MainConfig struct {
	AppName string `toml:"appName"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`

	// TLS 为 true 时启用 unrolled/secure 的 HTTPS 跳转
	TLS bool `toml:"tls"`
}

type MysqlConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	DatabaseName string `toml:"databaseName"`
}

type LogConfig struct {
	LogPath    string `toml:"logPath"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"maxSizeMB"`
	MaxBackups int    `toml:"maxBackups"`
	MaxAgeDays int    `toml:"maxAgeDays"`
}

type JwtConfig struct {
	Key         string `toml:"key"`
	ExpireHours int    `toml:"expireHours"`
	Issuer      string `toml:"issuer"`
}

type KafkaConfig struct {
	Brokers          []string `toml:"brokers"`
	ClientID         string   `toml:"clientID"`
	DomainEventTopic string   `toml:"domainEventTopic"`
	ConsumerGroupID  string   `toml:"consumerGroupID"`
	Partitions       int32    `toml:"partitions"`
	Replication      int16    `toml:"replication"`
}

type RedisConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"poolSize"`
	MinIdleConns int    `toml:"minIdleConns"`
}

// NotificationConfig 实时通知子系统配置
type NotificationConfig struct {
	TokenTTLSeconds int `toml:"tokenTTLSeconds"`

	// TokenStore 取值 memory | redis
	TokenStore     string `toml:"tokenStore"`
	TokenKeyPrefix string `toml:"tokenKeyPrefix"`
	TokenPurgeSpec string `toml:"tokenPurgeSpec"`

	FailCreateOnDeliveryError  bool     `toml:"failCreateOnDeliveryError"`
	FailMarkAllOnDeliveryError bool     `toml:"failMarkAllOnDeliveryError"`
	DefaultChannels            []string `toml:"defaultChannels"`

	SendBufferSize      int `toml:"sendBufferSize"`
	WriteTimeoutSeconds int `toml:"writeTimeoutSeconds"`
	PongWaitSeconds     int `toml:"pongWaitSeconds"`
}

func (c NotificationConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLSeconds) * time.Second
}

func (c NotificationConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

func (c NotificationConfig) PongWait() time.Duration {
	return time.Duration(c.PongWaitSeconds) * time.Second
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Config struct {
	MainConfig         `toml:"mainConfig"`
	MysqlConfig        `toml:"mysqlConfig"`
	JwtConfig          `toml:"jwtConfig"`
	KafkaConfig        `toml:"kafkaConfig"`
	LogConfig          `toml:"logConfig"`
	RedisConfig        `toml:"redisConfig"`
	NotificationConfig `toml:"notificationConfig"`
	MetricsConfig      `toml:"metricsConfig"`
}

const defaultConfigPath = "configs/config_local.toml"

var config *Config

// Default 返回填充了默认值的配置，未加载任何文件
func Default() *Config {
	c := &Config{
		NotificationConfig: NotificationConfig{
			FailCreateOnDeliveryError:  true,
			FailMarkAllOnDeliveryError: false,
		},
	}
	applyDefaults(c)
	return c
}

func LoadConfig() error {
	configPath := os.Getenv("OPENCOLLAB_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	if config == nil {
		config = Default()
	}
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		log.Printf("加载配置文件失败: %v, 尝试使用默认设置", err)
		applyDefaults(config)
		return err
	}
	applyDefaults(config)
	return nil
}

// Load 从指定路径解析配置
func Load(path string) (*Config, error) {
	c := Default()
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, err
	}
	applyDefaults(c)
	return c, nil
}

func GetConfig() *Config {
	if config == nil {
		config = Default()
		_ = LoadConfig()
	}
	return config
}

func applyDefaults(c *Config) {
	if c.AppName == "" {
		c.AppName = "OpenCollab"
	}
	if c.MainConfig.Host == "" {
		c.MainConfig.Host = "0.0.0.0"
	}
	if c.MainConfig.Port == 0 {
		c.MainConfig.Port = 8000
	}
	if c.MysqlConfig.Port == 0 {
		c.MysqlConfig.Port = 3306
	}
	if c.DatabaseName == "" {
		c.DatabaseName = "opencollab"
	}
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 100
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 7
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 30
	}
	if c.DomainEventTopic == "" {
		c.DomainEventTopic = "opencollab.domain-events"
	}
	if c.ConsumerGroupID == "" {
		c.ConsumerGroupID = "opencollab-notification"
	}

	n := &c.NotificationConfig
	if n.TokenTTLSeconds <= 0 {
		n.TokenTTLSeconds = 60
	}
	if n.TokenStore == "" {
		n.TokenStore = "memory"
	}
	if n.TokenKeyPrefix == "" {
		n.TokenKeyPrefix = "opencollab:ws_token:"
	}
	if n.TokenPurgeSpec == "" {
		n.TokenPurgeSpec = "@every 1m"
	}
	if len(n.DefaultChannels) == 0 {
		n.DefaultChannels = []string{"realtime"}
	}
	if n.SendBufferSize <= 0 {
		n.SendBufferSize = 64
	}
	if n.WriteTimeoutSeconds <= 0 {
		n.WriteTimeoutSeconds = 10
	}
	if n.PongWaitSeconds <= 0 {
		n.PongWaitSeconds = 60
	}

	if c.MetricsConfig.Path == "" {
		c.MetricsConfig.Path = "/metrics"
	}
}
