package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Call      CallConfig      `mapstructure:"call"`
	YTX       YTXConfig       `mapstructure:"ytx"`
	Secure    SecureConfig    `mapstructure:"secure"`
	RabbitMQ  RabbitMQConfig  `mapstructure:"rabbitmq"`
	Phone     PhoneConfig     `mapstructure:"phone"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	HTTPPort       int      `mapstructure:"http_port"`
	WSPort         int      `mapstructure:"ws_port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AutoMigrate    bool     `mapstructure:"auto_migrate"`
	MachineId      uint16   `mapstructure:"machine_id"`
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	Charset      string `mapstructure:"charset"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// DSN returns the MySQL data source name
func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database, c.Charset)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Addr returns the Redis address
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// WebSocketConfig holds WebSocket configuration
type WebSocketConfig struct {
	MaxConnNum       int64         `mapstructure:"max_conn_num"`
	MaxMessageSize   int64         `mapstructure:"max_message_size"`
	WriteWait        time.Duration `mapstructure:"write_wait"`
	PongWait         time.Duration `mapstructure:"pong_wait"`
	PingPeriod       time.Duration `mapstructure:"ping_period"`
	PushChannelSize  int           `mapstructure:"push_channel_size"`
	PushWorkerNum    int           `mapstructure:"push_worker_num"`
	WriteChannelSize int           `mapstructure:"write_channel_size"`
}

// CallConfig holds call reconciliation and conversation rule settings
type CallConfig struct {
	PollGrace    time.Duration `mapstructure:"poll_grace"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PollWindow   time.Duration `mapstructure:"poll_window"`
	PollLookback time.Duration `mapstructure:"poll_lookback"`
	FeePerMinute int32         `mapstructure:"fee_per_minute"`
	FreePerDay   int32         `mapstructure:"free_per_day"`
	TriggerDedup time.Duration `mapstructure:"trigger_dedup"`
	StayLimit    int           `mapstructure:"stay_limit"`
	TimedGap     time.Duration `mapstructure:"timed_gap"`
	ShowLimit    int           `mapstructure:"show_limit"`
}

// YTXConfig holds the double-ring provider account
type YTXConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	AccountSid     string        `mapstructure:"account_sid"`
	AuthToken      string        `mapstructure:"auth_token"`
	AppId          string        `mapstructure:"app_id"`
	ShowNum        string        `mapstructure:"show_num"`
	SrcTimeout     int           `mapstructure:"src_timeout"`
	DstTimeout     int           `mapstructure:"dst_timeout"`
	Credit         int           `mapstructure:"credit"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// SecureConfig holds the at-rest encryption key, base64 of 32 bytes
type SecureConfig struct {
	NumberKey string `mapstructure:"number_key"`
}

// RabbitMQConfig holds broker settings. An empty URL disables publishing.
type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// PhoneConfig holds number parsing settings
type PhoneConfig struct {
	DefaultRegion string `mapstructure:"default_region"`
}

// Global config instance
var GlobalConfig *Config

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	GlobalConfig = &cfg
	return &cfg, nil
}

// SetDefaults fills every unset field with its default
func (cfg *Config) SetDefaults() {
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.WSPort == 0 {
		cfg.Server.WSPort = 8081
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.MySQL.Charset == "" {
		cfg.MySQL.Charset = "utf8mb4"
	}
	if cfg.MySQL.MaxOpenConns == 0 {
		cfg.MySQL.MaxOpenConns = 100
	}
	if cfg.MySQL.MaxIdleConns == 0 {
		cfg.MySQL.MaxIdleConns = 10
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "ringlink:"
	}
	if cfg.JWT.ExpireHours == 0 {
		cfg.JWT.ExpireHours = 168 // 7 days
	}
	if cfg.WebSocket.MaxConnNum == 0 {
		cfg.WebSocket.MaxConnNum = 10000
	}
	if cfg.WebSocket.MaxMessageSize == 0 {
		cfg.WebSocket.MaxMessageSize = 51200
	}
	if cfg.WebSocket.WriteWait == 0 {
		cfg.WebSocket.WriteWait = 10 * time.Second
	}
	if cfg.WebSocket.PongWait == 0 {
		cfg.WebSocket.PongWait = 30 * time.Second
	}
	if cfg.WebSocket.PingPeriod == 0 {
		cfg.WebSocket.PingPeriod = 27 * time.Second
	}
	if cfg.WebSocket.PushChannelSize == 0 {
		cfg.WebSocket.PushChannelSize = 10000
	}
	if cfg.WebSocket.PushWorkerNum == 0 {
		cfg.WebSocket.PushWorkerNum = 10
	}
	if cfg.WebSocket.WriteChannelSize == 0 {
		cfg.WebSocket.WriteChannelSize = 256
	}
	cfg.Call.setDefaults()
	cfg.YTX.setDefaults()
	if cfg.RabbitMQ.Exchange == "" {
		cfg.RabbitMQ.Exchange = "ringlink.events"
	}
	if cfg.Phone.DefaultRegion == "" {
		cfg.Phone.DefaultRegion = "CN"
	}
}

func (c *CallConfig) setDefaults() {
	if c.PollGrace == 0 {
		c.PollGrace = 20 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = time.Minute
	}
	if c.PollWindow == 0 {
		c.PollWindow = 10 * time.Minute
	}
	if c.PollLookback == 0 {
		c.PollLookback = 30 * time.Minute
	}
	if c.FeePerMinute == 0 {
		c.FeePerMinute = 20
	}
	if c.FreePerDay == 0 {
		c.FreePerDay = 2
	}
	if c.TriggerDedup == 0 {
		c.TriggerDedup = 30 * time.Minute
	}
	if c.StayLimit == 0 {
		c.StayLimit = 3
	}
	if c.TimedGap == 0 {
		c.TimedGap = 10 * time.Minute
	}
	if c.ShowLimit == 0 {
		c.ShowLimit = 20
	}
}

func (c *YTXConfig) setDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.ytx.net"
	}
	if c.SrcTimeout == 0 {
		c.SrcTimeout = 30
	}
	if c.DstTimeout == 0 {
		c.DstTimeout = 50
	}
	if c.Credit == 0 {
		c.Credit = 180
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 5 * time.Second
	}
}
