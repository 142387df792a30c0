package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config 描述了 zkpong 守护进程与命令行工具在启动阶段需要加载的核心配置。
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server" toml:"server"`
	Game     GameConfig     `json:"game" yaml:"game" toml:"game"`
	Identity IdentityConfig `json:"identity" yaml:"identity" toml:"identity"`
	Prover   ProverConfig   `json:"prover" yaml:"prover" toml:"prover"`
	Storage  StorageConfig  `json:"storage" yaml:"storage" toml:"storage"`
	Queue    QueueConfig    `json:"queue" yaml:"queue" toml:"queue"`
	Web3     Web3Config     `json:"web3" yaml:"web3" toml:"web3"`
	Auth     AuthConfig     `json:"auth" yaml:"auth" toml:"auth"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging" toml:"logging"`
	Runtime  RuntimeConfig  `json:"runtime" yaml:"runtime" toml:"runtime"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address         string `json:"address" yaml:"address" toml:"address"`
	ShutdownSeconds int    `json:"shutdown_seconds" yaml:"shutdown_seconds" toml:"shutdown_seconds"`
}

// GameConfig 描述模拟的回合预算与帧率。
type GameConfig struct {
	MaxTicks int `json:"max_ticks" yaml:"max_ticks" toml:"max_ticks"`
	FPS      int `json:"fps" yaml:"fps" toml:"fps"`
	// MaxTicksLimit 限制 API 调用方可申请的最大回合数。
	MaxTicksLimit int `json:"max_ticks_limit" yaml:"max_ticks_limit" toml:"max_ticks_limit"`
}

// IdentityConfig 描述玩家公钥派生所用的私钥来源。
type IdentityConfig struct {
	// Secret 为 0x 前缀的 32 字节十六进制，留空时使用内置演示私钥。
	Secret      string `json:"secret" yaml:"secret" toml:"secret"`
	SecretEnv   string `json:"secret_env" yaml:"secret_env" toml:"secret_env"`
	SignedMoves bool   `json:"signed_moves" yaml:"signed_moves" toml:"signed_moves"`
}

// ProverConfig 选择证明后端。
type ProverConfig struct {
	// Backend 取值 groth16 或 remote。
	Backend        string `json:"backend" yaml:"backend" toml:"backend"`
	RemoteURL      string `json:"remote_url" yaml:"remote_url" toml:"remote_url"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds"`
	MaxEntries     int    `json:"max_entries" yaml:"max_entries" toml:"max_entries"`
	// KeysDir 保存 Groth16 电路与密钥，缺省为 <data_dir>/keys。
	KeysDir        string `json:"keys_dir" yaml:"keys_dir" toml:"keys_dir"`
}

// StorageConfig 统一描述会话存储后端的连接信息。
type StorageConfig struct {
	SessionStore SessionStoreConfig `json:"session_store" yaml:"session_store" toml:"session_store"`
}

// SessionStoreConfig 支持 memory 与 mysql 两种驱动。
type SessionStoreConfig struct {
	Driver          string `json:"driver" yaml:"driver" toml:"driver"`
	DSN             string `json:"dsn" yaml:"dsn" toml:"dsn"`
	MaxOpenConns    int    `json:"max_open_conns" yaml:"max_open_conns" toml:"max_open_conns"`
	MaxIdleConns    int    `json:"max_idle_conns" yaml:"max_idle_conns" toml:"max_idle_conns"`
	ConnMaxLifetime int    `json:"conn_max_lifetime_seconds" yaml:"conn_max_lifetime_seconds" toml:"conn_max_lifetime_seconds"`
	AutoMigrate     bool   `json:"auto_migrate" yaml:"auto_migrate" toml:"auto_migrate"`
}

// QueueConfig 描述会话证明任务队列。
type QueueConfig struct {
	Driver   string         `json:"driver" yaml:"driver" toml:"driver"`
	Workers  int            `json:"workers" yaml:"workers" toml:"workers"`
	Buffer   int            `json:"buffer" yaml:"buffer" toml:"buffer"`
	Redis    RedisConfig    `json:"redis" yaml:"redis" toml:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq" yaml:"rabbitmq" toml:"rabbitmq"`
}

// RedisConfig 为 redis 队列驱动的连接参数。
type RedisConfig struct {
	Address  string `json:"address" yaml:"address" toml:"address"`
	Password string `json:"password" yaml:"password" toml:"password"`
	DB       int    `json:"db" yaml:"db" toml:"db"`
	Key      string `json:"key" yaml:"key" toml:"key"`
}

// RabbitMQConfig 为 rabbitmq 队列驱动的连接参数。
type RabbitMQConfig struct {
	URL      string `json:"url" yaml:"url" toml:"url"`
	Queue    string `json:"queue" yaml:"queue" toml:"queue"`
	Prefetch int    `json:"prefetch" yaml:"prefetch" toml:"prefetch"`
}

// Web3Config 包含访问区块链节点所需的 RPC 地址，留空则不做链上锚定。
type Web3Config struct {
	RPCURL         string `json:"rpc_url" yaml:"rpc_url" toml:"rpc_url"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds"`
}

// AuthConfig 控制 API 的访问认证。
type AuthConfig struct {
	// Mode 取值 disabled 或 jwt。
	Mode       string `json:"mode" yaml:"mode" toml:"mode"`
	Secret     string `json:"secret" yaml:"secret" toml:"secret"`
	Issuer     string `json:"issuer" yaml:"issuer" toml:"issuer"`
	TTLMinutes int    `json:"ttl_minutes" yaml:"ttl_minutes" toml:"ttl_minutes"`
}

// LoggingConfig 对应 pkg/logger 的配置项。
type LoggingConfig struct {
	Level   string      `json:"level" yaml:"level" toml:"level"`
	Format  string      `json:"format" yaml:"format" toml:"format"`
	Outputs []string    `json:"outputs" yaml:"outputs" toml:"outputs"`
	Audit   AuditConfig `json:"audit" yaml:"audit" toml:"audit"`
}

// AuditConfig 控制审计日志的落盘和轮转。
type AuditConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Path       string `json:"path" yaml:"path" toml:"path"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days" toml:"max_age_days"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir    string `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	WebhookURL string `json:"alert_webhook_url" yaml:"alert_webhook_url" toml:"alert_webhook_url"`
}

// Load 根据文件扩展名解析 JSON、YAML 或 TOML 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(content, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, &cfg)
	case ".toml":
		err = toml.Unmarshal(content, &cfg)
	default:
		return nil, fmt.Errorf("不支持的配置文件格式: %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))
	cfg.applyEnv(os.Getenv)
	return &cfg, nil
}

// Default 返回未加载任何文件时的默认配置，相对路径以 baseDir 为根。
func Default(baseDir string) *Config {
	var cfg Config
	cfg.applyDefaults(baseDir)
	cfg.applyEnv(os.Getenv)
	return &cfg
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ShutdownSeconds <= 0 {
		c.Server.ShutdownSeconds = 10
	}

	if c.Game.MaxTicks <= 0 {
		c.Game.MaxTicks = 10
	}
	if c.Game.FPS <= 0 {
		c.Game.FPS = 60
	}
	if c.Game.MaxTicksLimit <= 0 {
		c.Game.MaxTicksLimit = 1024
	}

	if c.Prover.Backend == "" {
		c.Prover.Backend = "groth16"
	}
	if c.Prover.TimeoutSeconds <= 0 {
		c.Prover.TimeoutSeconds = 120
	}
	if c.Prover.MaxEntries <= 0 {
		c.Prover.MaxEntries = 256
	}

	if c.Storage.SessionStore.Driver == "" {
		c.Storage.SessionStore.Driver = "memory"
	}

	if c.Queue.Driver == "" {
		c.Queue.Driver = "memory"
	}
	if c.Queue.Workers <= 0 {
		c.Queue.Workers = 2
	}
	if c.Queue.Buffer <= 0 {
		c.Queue.Buffer = 64
	}
	if c.Queue.Redis.Key == "" {
		c.Queue.Redis.Key = "zkpong:sessions"
	}
	if c.Queue.RabbitMQ.Queue == "" {
		c.Queue.RabbitMQ.Queue = "zkpong.sessions"
	}

	if c.Web3.TimeoutSeconds <= 0 {
		c.Web3.TimeoutSeconds = 5
	}

	if c.Auth.Mode == "" {
		c.Auth.Mode = "disabled"
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "zkpong"
	}
	if c.Auth.TTLMinutes <= 0 {
		c.Auth.TTLMinutes = 60
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if len(c.Logging.Outputs) == 0 {
		c.Logging.Outputs = []string{"stdout"}
	}

	c.Runtime.DataDir = resolve(baseDir, c.Runtime.DataDir, "data")
	if c.Prover.KeysDir == "" {
		c.Prover.KeysDir = filepath.Join(c.Runtime.DataDir, "keys")
	} else {
		c.Prover.KeysDir = resolve(baseDir, c.Prover.KeysDir, "")
	}
	if c.Logging.Audit.Enabled {
		c.Logging.Audit.Path = resolve(c.Runtime.DataDir, c.Logging.Audit.Path, "audit.log")
	}
}

// applyEnv 允许通过环境变量覆盖私钥等敏感配置。
func (c *Config) applyEnv(getenv func(string) string) {
	if c.Identity.SecretEnv == "" {
		return
	}
	if v := strings.TrimSpace(getenv(c.Identity.SecretEnv)); v != "" {
		c.Identity.Secret = v
	}
}

func resolve(baseDir, value, fallback string) string {
	if value == "" {
		value = fallback
	}
	if filepath.IsAbs(value) {
		return value
	}
	return filepath.Join(baseDir, value)
}

// ProverTimeout 返回单次证明的超时时间。
func (c *Config) ProverTimeout() time.Duration {
	return time.Duration(c.Prover.TimeoutSeconds) * time.Second
}

// ShutdownTimeout 返回优雅停机等待时间。
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownSeconds) * time.Second
}
