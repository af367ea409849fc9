// Package agentpay 是 SDK 的统一入口：一份配置换来一组装配完毕的
// 服务对象（智能体记录、钱包签名转账、支付生命周期跟踪）。
package agentpay

import (
	"context"
	stdErrors "errors"
	"fmt"

	"AgentPay-SDK/internal/agent"
	"AgentPay-SDK/internal/cache"
	"AgentPay-SDK/internal/config"
	"AgentPay-SDK/internal/payment"
	"AgentPay-SDK/internal/wallet"
	"AgentPay-SDK/internal/wallet/ethereum"
	"AgentPay-SDK/pkg/logger"
)

// Client 聚合 SDK 的全部服务对象。
type Client struct {
	Agents   *agent.Service
	Payments *payment.Service

	session      wallet.Session
	ownsSession  bool
	paymentCache cache.Store[*payment.Payment]
	requestCache cache.Store[*payment.PaymentRequest]
}

// Option 定义构造 Client 时的可选注入点，主要用于测试或自定义后端。
type Option func(*options)

type options struct {
	session      wallet.Session
	oracle       wallet.StatusOracle
	paymentStore payment.Store
	agentStore   agent.Store
	publisher    payment.Publisher
}

// WithSession 注入自定义签名会话，覆盖配置驱动的会话构造。
func WithSession(session wallet.Session) Option {
	return func(o *options) { o.session = session }
}

// WithStatusOracle 注入自定义状态预言机。
func WithStatusOracle(oracle wallet.StatusOracle) Option {
	return func(o *options) { o.oracle = oracle }
}

// WithPaymentStore 注入自定义支付存储。
func WithPaymentStore(store payment.Store) Option {
	return func(o *options) { o.paymentStore = store }
}

// WithAgentStore 注入自定义智能体存储。
func WithAgentStore(store agent.Store) Option {
	return func(o *options) { o.agentStore = store }
}

// WithPublisher 注入自定义事件发布器。
func WithPublisher(publisher payment.Publisher) Option {
	return func(o *options) { o.publisher = publisher }
}

// New 按配置装配 SDK。缓存、存储与事件通道都在这里创建并注入，
// Close 负责它们的统一销毁。
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, stdErrors.New("配置不能为空")
	}
	cfg.ApplyDefaults(".")

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled: cfg.Logging.AuditPath != "",
			Path:    cfg.Logging.AuditPath,
		},
	}); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	client := &Client{}

	session, owns, err := buildSession(ctx, cfg, o)
	if err != nil {
		return nil, err
	}
	client.session = session
	client.ownsSession = owns

	oracle := o.oracle
	if oracle == nil {
		if sessionOracle, ok := session.(wallet.StatusOracle); ok {
			oracle = sessionOracle
		}
	}

	paymentStore := o.paymentStore
	agentStore := o.agentStore
	if paymentStore == nil || agentStore == nil {
		ps, as, err := buildStores(cfg)
		if err != nil {
			client.closePartial()
			return nil, err
		}
		if paymentStore == nil {
			paymentStore = ps
		}
		if agentStore == nil {
			agentStore = as
		}
	}

	if err := client.buildCaches(cfg); err != nil {
		client.closePartial()
		return nil, err
	}

	publisher := o.publisher
	if publisher == nil {
		publisher, err = buildPublisher(cfg)
		if err != nil {
			client.closePartial()
			return nil, err
		}
	}

	client.Payments = payment.NewService(paymentStore, session, oracle,
		payment.WithCaches(client.paymentCache, client.requestCache),
		payment.WithPublisher(publisher),
		payment.WithNativeCurrency(cfg.Network.NativeCurrency),
		payment.WithFeePercent(cfg.Payments.FeePercent),
		payment.WithRequestExpiry(cfg.Payments.RequestExpiry()),
		payment.WithMonitorTiming(cfg.Payments.InitialDelay(), cfg.Payments.PollInterval(), cfg.Payments.MaxAttempts),
	)
	client.Agents = agent.NewService(agentStore)

	return client, nil
}

// Wallet 返回当前签名会话，可能为 nil（未配置 RPC 且未注入会话）。
func (c *Client) Wallet() wallet.Session {
	return c.session
}

// Close 依次关闭所有服务并销毁缓存。可重复调用。
func (c *Client) Close() error {
	var err error
	if c.Payments != nil {
		err = stdErrors.Join(err, c.Payments.Close())
		c.Payments = nil
	}
	if c.Agents != nil {
		err = stdErrors.Join(err, c.Agents.Close())
		c.Agents = nil
	}
	err = stdErrors.Join(err, c.destroyCaches())
	if c.session != nil && c.ownsSession {
		c.session.Close()
	}
	c.session = nil
	return err
}

func buildSession(ctx context.Context, cfg *config.Config, o options) (wallet.Session, bool, error) {
	if o.session != nil {
		return o.session, false, nil
	}

	rpcURL := cfg.Network.RPCURL
	chainID := int64(0)
	if cfg.Network.ChainConfig != "" {
		defs, err := wallet.LoadChainDefinitions(cfg.Network.ChainConfig)
		if err != nil {
			return nil, false, err
		}
		if def, ok := defs.Definition(cfg.Network.Name); ok {
			if def.RPCURL != "" {
				rpcURL = def.RPCURL
			}
			chainID = def.ChainID
		}
	}
	if rpcURL == "" {
		// 没有节点端点时以离线模式装配：支付提交会报告钱包未连接。
		return nil, false, nil
	}

	session, err := ethereum.NewSession(ctx, ethereum.Config{
		Name:       cfg.Network.Name,
		RPCURL:     rpcURL,
		PrivateKey: cfg.Network.PrivateKey,
		ChainID:    chainID,
	})
	if err != nil {
		return nil, false, fmt.Errorf("初始化签名会话失败: %w", err)
	}
	return session, true, nil
}

func buildStores(cfg *config.Config) (payment.Store, agent.Store, error) {
	switch cfg.Storage.Driver {
	case "memory", "":
		return payment.NewMemoryStore(), agent.NewMemoryStore(), nil
	case "mysql":
		paymentStore, err := payment.NewMySQLStore(cfg.Storage.DSN)
		if err != nil {
			return nil, nil, err
		}
		agentStore, err := agent.NewMySQLStore(cfg.Storage.DSN)
		if err != nil {
			_ = paymentStore.Close()
			return nil, nil, err
		}
		return paymentStore, agentStore, nil
	default:
		return nil, nil, fmt.Errorf("不支持的存储驱动: %s", cfg.Storage.Driver)
	}
}

func (c *Client) buildCaches(cfg *config.Config) error {
	if cfg.Storage.Redis.Address != "" {
		paymentCache, err := cache.NewRedis[*payment.Payment](cache.RedisConfig{
			Address:    cfg.Storage.Redis.Address,
			Password:   cfg.Storage.Redis.Password,
			DB:         cfg.Storage.Redis.DB,
			Prefix:     "agentpay:payments:",
			DefaultTTL: cfg.Cache.DefaultTTL(),
		})
		if err != nil {
			return err
		}
		requestCache, err := cache.NewRedis[*payment.PaymentRequest](cache.RedisConfig{
			Address:    cfg.Storage.Redis.Address,
			Password:   cfg.Storage.Redis.Password,
			DB:         cfg.Storage.Redis.DB,
			Prefix:     "agentpay:requests:",
			DefaultTTL: cfg.Cache.DefaultTTL(),
		})
		if err != nil {
			_ = paymentCache.Destroy()
			return err
		}
		c.paymentCache = paymentCache
		c.requestCache = requestCache
		return nil
	}

	memOpts := cache.Options{
		DefaultTTL:    cfg.Cache.DefaultTTL(),
		MaxEntries:    cfg.Cache.MaxEntries,
		SweepInterval: cfg.Cache.SweepInterval(),
	}
	c.paymentCache = cache.NewMemory[*payment.Payment](memOpts)
	c.requestCache = cache.NewMemory[*payment.PaymentRequest](memOpts)
	return nil
}

func buildPublisher(cfg *config.Config) (payment.Publisher, error) {
	switch cfg.Events.Driver {
	case "noop", "":
		return payment.NoopPublisher{}, nil
	case "rabbitmq":
		return payment.NewRabbitMQPublisher(payment.RabbitMQConfig{
			URL:     cfg.Events.URL,
			Queue:   cfg.Events.Queue,
			Durable: true,
		})
	default:
		return nil, fmt.Errorf("不支持的事件驱动: %s", cfg.Events.Driver)
	}
}

func (c *Client) destroyCaches() error {
	var err error
	if c.paymentCache != nil {
		err = stdErrors.Join(err, c.paymentCache.Destroy())
		c.paymentCache = nil
	}
	if c.requestCache != nil {
		err = stdErrors.Join(err, c.requestCache.Destroy())
		c.requestCache = nil
	}
	return err
}

func (c *Client) closePartial() {
	_ = c.destroyCaches()
	if c.session != nil && c.ownsSession {
		c.session.Close()
	}
}
