package payment

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"AgentPay-SDK/internal/cache"
	xerrors "AgentPay-SDK/internal/errors"
	"AgentPay-SDK/internal/wallet"
	"AgentPay-SDK/pkg/logger"
)

const (
	// defaultRequestExpiry 是支付请求的默认有效期。
	defaultRequestExpiry = 30 * time.Minute
	// defaultPaymentCacheTTL 是支付记录在缓存镜像中的保留时间。
	defaultPaymentCacheTTL = time.Hour
	// defaultNativeCurrency 是原生转账路径接受的币种符号。
	defaultNativeCurrency = "SOL"
)

// Service 负责支付请求的构造、提交、查询与取消。
// 权威数据保存在 Store 中，缓存仅作为读取加速，不是数据源。
type Service struct {
	store    Store
	session  wallet.Session
	oracle   wallet.StatusOracle
	payments cache.Store[*Payment]
	requests cache.Store[*PaymentRequest]
	events   Publisher
	monitor  *Monitor
	logger   *slog.Logger

	nativeCurrency  string
	feePercent      float64
	requestExpiry   time.Duration
	paymentCacheTTL time.Duration
	ownedCaches     []interface{ Destroy() error }
}

// ServiceOption 定义可选配置。
type ServiceOption func(*Service)

// WithServiceLogger 指定日志输出。
func WithServiceLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = log
	}
}

// WithPublisher 配置支付状态事件的发布器。
func WithPublisher(publisher Publisher) ServiceOption {
	return func(s *Service) {
		if publisher != nil {
			s.events = publisher
		}
	}
}

// WithCaches 注入缓存实例。未注入时服务会创建私有的内存缓存，
// 并在 Close 时负责销毁。
func WithCaches(payments cache.Store[*Payment], requests cache.Store[*PaymentRequest]) ServiceOption {
	return func(s *Service) {
		s.payments = payments
		s.requests = requests
	}
}

// WithNativeCurrency 覆盖原生币符号。
func WithNativeCurrency(symbol string) ServiceOption {
	return func(s *Service) {
		if strings.TrimSpace(symbol) != "" {
			s.nativeCurrency = symbol
		}
	}
}

// WithFeePercent 设置平台费率（百分比）。
func WithFeePercent(percent float64) ServiceOption {
	return func(s *Service) {
		if percent >= 0 {
			s.feePercent = percent
		}
	}
}

// WithRequestExpiry 设置支付请求的默认有效期。
func WithRequestExpiry(expiry time.Duration) ServiceOption {
	return func(s *Service) {
		if expiry > 0 {
			s.requestExpiry = expiry
		}
	}
}

// WithMonitorTiming 覆盖确认轮询的节奏参数。
func WithMonitorTiming(initialDelay, interval time.Duration, maxAttempts int) ServiceOption {
	return func(s *Service) {
		s.monitor.configure(initialDelay, interval, maxAttempts)
	}
}

// NewService 构造支付服务。
func NewService(store Store, session wallet.Session, oracle wallet.StatusOracle, opts ...ServiceOption) *Service {
	s := &Service{
		store:           store,
		session:         session,
		oracle:          oracle,
		events:          NoopPublisher{},
		nativeCurrency:  defaultNativeCurrency,
		requestExpiry:   defaultRequestExpiry,
		paymentCacheTTL: defaultPaymentCacheTTL,
	}
	s.monitor = newMonitor(s)
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.logger == nil {
		s.logger = logger.Named("payment")
	}
	if s.payments == nil {
		owned := cache.NewMemory[*Payment](cache.Options{})
		s.payments = owned
		s.ownedCaches = append(s.ownedCaches, owned)
	}
	if s.requests == nil {
		owned := cache.NewMemory[*PaymentRequest](cache.Options{})
		s.requests = owned
		s.ownedCaches = append(s.ownedCaches, owned)
	}
	return s
}

// RequestOption 定义创建支付请求时的可选参数。
type RequestOption func(*PaymentRequest)

// WithReference 指定调用方自己的唯一引用。
func WithReference(reference string) RequestOption {
	return func(r *PaymentRequest) {
		r.Reference = strings.TrimSpace(reference)
	}
}

// WithMemo 附加备注信息。
func WithMemo(memo string) RequestOption {
	return func(r *PaymentRequest) {
		r.Memo = memo
	}
}

// WithExpiresAt 覆盖请求的过期时间。
func WithExpiresAt(expiresAt time.Time) RequestOption {
	return func(r *PaymentRequest) {
		r.ExpiresAt = expiresAt.Unix()
	}
}

// CreatePaymentRequest 构造一个不可变的支付请求并缓存，便于之后按
// reference 找回。请求在构造阶段即做校验。
func (s *Service) CreatePaymentRequest(ctx context.Context, amount float64, currency, recipient string, opts ...RequestOption) (*PaymentRequest, error) {
	now := time.Now()
	request := &PaymentRequest{
		Amount:    amount,
		Currency:  strings.TrimSpace(currency),
		Recipient: strings.TrimSpace(recipient),
		CreatedAt: now.Unix(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(request)
		}
	}
	if request.Reference == "" {
		request.Reference = newReference(now)
	}
	if request.ExpiresAt == 0 {
		request.ExpiresAt = now.Add(s.requestExpiry).Unix()
	}
	if err := validateRequest(request, now); err != nil {
		return nil, err
	}

	ttl := time.Until(time.Unix(request.ExpiresAt, 0))
	clone := *request
	if err := s.requests.Set(ctx, requestCacheKey(request.Reference), &clone, ttl); err != nil {
		s.logger.Warn("缓存支付请求失败", slog.Any("error", err), slog.String("reference", request.Reference))
	}
	return request, nil
}

// GetPaymentRequest 按 reference 找回未过期的支付请求。
func (s *Service) GetPaymentRequest(ctx context.Context, reference string) (*PaymentRequest, error) {
	request, ok, err := s.requests.Get(ctx, requestCacheKey(reference))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取支付请求缓存失败")
	}
	if !ok {
		return nil, xerrors.New(xerrors.CodeNotFound, "支付请求不存在或已过期")
	}
	return request, nil
}

// ProcessOption 定义提交支付时的可选参数。
type ProcessOption func(*Payment)

// ForAgent 将支付关联到某个智能体。
func ForAgent(agentID string) ProcessOption {
	return func(p *Payment) {
		p.AgentID = strings.TrimSpace(agentID)
	}
}

// WithPaymentMetadata 附加业务自定义数据。
func WithPaymentMetadata(metadata map[string]any) ProcessOption {
	return func(p *Payment) {
		p.Metadata = cloneMetadata(metadata)
	}
}

// ProcessPayment 校验请求、通过签名会话提交转账，并创建 PENDING
// 状态的支付记录。确认轮询在后台调度，轮询中的错误只记录日志，
// 不会传播给本方法的调用方。
func (s *Service) ProcessPayment(ctx context.Context, request *PaymentRequest, userID string, opts ...ProcessOption) (*Payment, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "支付服务未初始化")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "userID 不能为空")
	}
	if err := validateRequest(request, time.Now()); err != nil {
		return nil, err
	}
	if s.session == nil || !s.session.IsConnected() {
		return nil, ErrWalletNotConnected
	}
	if err := s.session.ValidateAddress(request.Recipient); err != nil {
		return nil, xerrors.Wrap(CodeInvalidPayment, err, "收款地址校验失败")
	}
	if request.Currency != s.nativeCurrency {
		// SPL/token 转账路径尚未实现，显式报错而不是静默跳过。
		return nil, xerrors.New(CodeNotImplemented, fmt.Sprintf("暂不支持币种 %s 的转账", request.Currency),
			xerrors.WithMetadata("currency", request.Currency))
	}

	result, err := s.session.SignAndSendTransfer(ctx, request.Recipient, request.Amount, request.Memo)
	if err != nil {
		return nil, xerrors.Wrap(CodeTransferFailed, err, "提交转账失败")
	}

	payment := &Payment{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      request.Amount,
		Currency:    request.Currency,
		Recipient:   request.Recipient,
		Reference:   request.Reference,
		TxSignature: result.Signature,
		Status:      StatusPending,
		Memo:        request.Memo,
	}
	// 部分签名后端在提交时就能看到确认结果，此时直接落终态，
	// 不再调度确认轮询。
	if result.Confirmed {
		payment.Status = StatusConfirmed
		payment.ConfirmedAt = time.Now().Unix()
	}
	for _, opt := range opts {
		if opt != nil {
			opt(payment)
		}
	}
	if err := s.store.Create(ctx, payment); err != nil {
		return nil, err
	}

	s.mirrorToCache(ctx, payment)
	s.publishStatus(ctx, payment)
	if payment.Status == StatusPending {
		s.monitor.Watch(payment.ID)
	}

	logger.Audit().Info("支付已提交",
		slog.String("payment_id", payment.ID),
		slog.String("user_id", payment.UserID),
		slog.Float64("amount", payment.Amount),
		slog.String("currency", payment.Currency),
		slog.String("tx_signature", payment.TxSignature),
	)
	return clonePayment(payment), nil
}

// GetPayment 以缓存优先的方式读取支付记录，未命中时回源并回填缓存。
func (s *Service) GetPayment(ctx context.Context, id string) (*Payment, error) {
	if cached, ok, err := s.payments.Get(ctx, paymentCacheKey(id)); err == nil && ok {
		return clonePayment(cached), nil
	}
	payment, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mirrorToCache(ctx, payment)
	return payment, nil
}

// VerifyPayment 查询状态预言机并推进支付状态。对终态支付直接返回
// 当前记录，不再触达网络。
func (s *Service) VerifyPayment(ctx context.Context, id string) (*Payment, error) {
	payment, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Status.Terminal() {
		return payment, nil
	}
	if s.oracle == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置状态预言机")
	}

	status, err := s.oracle.SignatureStatus(ctx, payment.TxSignature)
	if err != nil {
		return nil, xerrors.Wrap(CodeNetworkTransient, err, "查询交易状态失败")
	}

	switch {
	case status.Err != "":
		return s.transition(ctx, payment.ID, StatusFailed, 0)
	case status.Level == wallet.LevelConfirmed || status.Level == wallet.LevelFinalized:
		return s.transition(ctx, payment.ID, StatusConfirmed, time.Now().Unix())
	default:
		// 仍未确认，状态不变。
		return payment, nil
	}
}

// CancelPayment 取消仍处于 PENDING 的支付，并停止其确认轮询。
func (s *Service) CancelPayment(ctx context.Context, id string) (*Payment, error) {
	updated, err := s.store.UpdateStatus(ctx, id, StatusCancelled, 0)
	if err != nil {
		return updated, err
	}
	s.monitor.Cancel(id)
	s.mirrorToCache(ctx, updated)
	s.publishStatus(ctx, updated)
	return updated, nil
}

// ListPayments 返回符合过滤条件的支付列表，按创建时间降序。
func (s *Service) ListPayments(ctx context.Context, opts ...ListOption) ([]*Payment, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "支付服务未初始化")
	}
	return s.store.List(ctx, buildListOptions(opts))
}

// Stats 返回符合过滤条件的支付统计信息。
func (s *Service) Stats(ctx context.Context, opts ...ListOption) (PaymentStats, error) {
	if s.store == nil {
		return PaymentStats{}, xerrors.New(xerrors.CodeInitializationFailure, "支付服务未初始化")
	}
	return s.store.Stats(ctx, buildListOptions(opts))
}

// CalculatePlatformFee 按配置费率计算平台费用。
func (s *Service) CalculatePlatformFee(amount float64) float64 {
	return amount * s.feePercent / 100
}

// Close 停止确认轮询并释放资源。
func (s *Service) Close() error {
	s.monitor.Stop()
	var err error
	if s.events != nil {
		err = stdErrors.Join(err, s.events.Close())
	}
	for _, owned := range s.ownedCaches {
		err = stdErrors.Join(err, owned.Destroy())
	}
	if s.store != nil {
		err = stdErrors.Join(err, s.store.Close())
	}
	return err
}

// transition 持久化一次状态迁移并同步缓存与事件。另一个轮询协程
// 抢先完成迁移时返回其结果而不报错。
func (s *Service) transition(ctx context.Context, id string, status Status, confirmedAt int64) (*Payment, error) {
	updated, err := s.store.UpdateStatus(ctx, id, status, confirmedAt)
	if err != nil {
		if stdErrors.Is(err, ErrPaymentTerminal) {
			return updated, nil
		}
		return nil, err
	}
	s.mirrorToCache(ctx, updated)
	s.publishStatus(ctx, updated)
	return updated, nil
}

func (s *Service) mirrorToCache(ctx context.Context, payment *Payment) {
	if err := s.payments.Set(ctx, paymentCacheKey(payment.ID), clonePayment(payment), s.paymentCacheTTL); err != nil {
		s.logger.Warn("回填支付缓存失败", slog.Any("error", err), slog.String("payment_id", payment.ID))
	}
}

func (s *Service) publishStatus(ctx context.Context, payment *Payment) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishStatusChange(ctx, payment); err != nil {
		s.logger.Warn("发布支付状态事件失败", slog.Any("error", err), slog.String("payment_id", payment.ID))
	}
}

func validateRequest(request *PaymentRequest, now time.Time) error {
	if request == nil {
		return xerrors.New(CodeInvalidPayment, "支付请求不能为空")
	}
	if request.Amount <= 0 {
		return xerrors.New(CodeInvalidPayment, "支付金额必须为正数")
	}
	if strings.TrimSpace(request.Recipient) == "" {
		return xerrors.New(CodeInvalidPayment, "收款地址不能为空")
	}
	if strings.TrimSpace(request.Currency) == "" {
		return xerrors.New(CodeInvalidPayment, "币种不能为空")
	}
	if request.ExpiresAt > 0 && request.ExpiresAt <= now.Unix() {
		return xerrors.New(CodeInvalidPayment, "支付请求已过期")
	}
	return nil
}

// newReference 生成会话内唯一的引用：毫秒时间戳加随机片段。
// 不保证密码学强度，仅用于匹配请求与支付。
func newReference(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), strings.SplitN(uuid.NewString(), "-", 2)[0])
}
