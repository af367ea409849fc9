package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config 描述了 AgentPay SDK 在初始化阶段需要加载的核心配置。
type Config struct {
	Network  NetworkConfig  `json:"network"`
	Storage  StorageConfig  `json:"storage"`
	Cache    CacheConfig    `json:"cache"`
	Payments PaymentsConfig `json:"payments"`
	Events   EventsConfig   `json:"events"`
	Logging  LoggingConfig  `json:"logging"`
}

// NetworkConfig 包含访问区块链节点所需的参数。
type NetworkConfig struct {
	// Name 是目标网络的可读名称，例如 mainnet、devnet。
	Name string `json:"name"`
	// RPCURL 是节点 RPC 端点。
	RPCURL string `json:"rpc_url"`
	// ChainConfig 指向可选的 YAML 链定义文件。
	ChainConfig string `json:"chain_config"`
	// PrivateKey 是可选的签名私钥（hex）。缺省时会话只读。
	PrivateKey string `json:"private_key"`
	// NativeCurrency 是原生币的符号，转账路径只支持该币种。
	NativeCurrency string `json:"native_currency"`
}

// StorageConfig 统一描述支付与智能体记录的持久化后端。
type StorageConfig struct {
	Driver string      `json:"driver"`
	DSN    string      `json:"dsn"`
	Redis  RedisConfig `json:"redis"`
}

// RedisConfig 描述可选的远端缓存后端。
type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// CacheConfig 控制进程内缓存的行为。
type CacheConfig struct {
	DefaultTTLSeconds    int `json:"default_ttl_seconds"`
	MaxEntries           int `json:"max_entries"`
	SweepIntervalSeconds int `json:"sweep_interval_seconds"`
}

// PaymentsConfig 控制支付确认轮询与平台费用。
type PaymentsConfig struct {
	FeePercent           float64 `json:"fee_percent"`
	InitialDelaySeconds  int     `json:"initial_delay_seconds"`
	PollIntervalSeconds  int     `json:"poll_interval_seconds"`
	MaxAttempts          int     `json:"max_attempts"`
	RequestExpiryMinutes int     `json:"request_expiry_minutes"`
}

// EventsConfig 描述支付状态事件的发布方式。
type EventsConfig struct {
	Driver string `json:"driver"`
	URL    string `json:"url"`
	Queue  string `json:"queue"`
}

// LoggingConfig 透传给 pkg/logger。
type LoggingConfig struct {
	Level       string   `json:"level"`
	Format      string   `json:"format"`
	OutputPaths []string `json:"output_paths"`
	AuditPath   string   `json:"audit_path"`
}

// FieldError 描述单个配置字段的校验失败。
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.ApplyDefaults(filepath.Dir(path))
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("配置校验失败: %w", errors.Join(toErrs(errs)...))
	}

	return &cfg, nil
}

// ApplyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) ApplyDefaults(baseDir string) {
	if c.Network.Name == "" {
		c.Network.Name = "devnet"
	}
	if c.Network.NativeCurrency == "" {
		c.Network.NativeCurrency = "SOL"
	}
	if c.Network.ChainConfig != "" && !filepath.IsAbs(c.Network.ChainConfig) {
		c.Network.ChainConfig = filepath.Join(baseDir, c.Network.ChainConfig)
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}

	if c.Cache.DefaultTTLSeconds <= 0 {
		c.Cache.DefaultTTLSeconds = 300
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = 1000
	}
	if c.Cache.SweepIntervalSeconds <= 0 {
		c.Cache.SweepIntervalSeconds = 60
	}

	if c.Payments.FeePercent < 0 {
		c.Payments.FeePercent = 0
	}
	if c.Payments.InitialDelaySeconds <= 0 {
		c.Payments.InitialDelaySeconds = 5
	}
	if c.Payments.PollIntervalSeconds <= 0 {
		c.Payments.PollIntervalSeconds = 10
	}
	if c.Payments.MaxAttempts <= 0 {
		c.Payments.MaxAttempts = 30
	}
	if c.Payments.RequestExpiryMinutes <= 0 {
		c.Payments.RequestExpiryMinutes = 30
	}

	if c.Events.Driver == "" {
		c.Events.Driver = "noop"
	}
	if c.Events.Queue == "" {
		c.Events.Queue = "agentpay.payments"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate 返回逐字段的校验结果，空切片表示配置合法。
func (c *Config) Validate() []FieldError {
	var errs []FieldError
	switch c.Storage.Driver {
	case "memory":
	case "mysql":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, FieldError{Field: "storage.dsn", Reason: "mysql driver 需要 DSN"})
		}
	default:
		errs = append(errs, FieldError{Field: "storage.driver", Reason: fmt.Sprintf("不支持的驱动 %q", c.Storage.Driver)})
	}

	switch c.Events.Driver {
	case "noop":
	case "rabbitmq":
		if strings.TrimSpace(c.Events.URL) == "" {
			errs = append(errs, FieldError{Field: "events.url", Reason: "rabbitmq driver 需要连接地址"})
		}
	default:
		errs = append(errs, FieldError{Field: "events.driver", Reason: fmt.Sprintf("不支持的驱动 %q", c.Events.Driver)})
	}

	if c.Payments.FeePercent > 100 {
		errs = append(errs, FieldError{Field: "payments.fee_percent", Reason: "费率不能超过 100"})
	}
	return errs
}

// DefaultTTL 返回缓存默认过期时间。
func (c CacheConfig) DefaultTTL() time.Duration {
	return time.Duration(c.DefaultTTLSeconds) * time.Second
}

// SweepInterval 返回缓存清理周期。
func (c CacheConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// InitialDelay 返回首次确认检查前的等待时间。
func (c PaymentsConfig) InitialDelay() time.Duration {
	return time.Duration(c.InitialDelaySeconds) * time.Second
}

// PollInterval 返回两次确认检查之间的间隔。
func (c PaymentsConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// RequestExpiry 返回支付请求的默认有效期。
func (c PaymentsConfig) RequestExpiry() time.Duration {
	return time.Duration(c.RequestExpiryMinutes) * time.Minute
}

func toErrs(fieldErrs []FieldError) []error {
	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, fe)
	}
	return errs
}
