package payment

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"sync"
	"time"

	"AgentPay-SDK/pkg/logger"
)

const (
	// defaultInitialDelay 给网络留出传播时间，首次检查前等待。
	defaultInitialDelay = 5 * time.Second
	// defaultPollInterval 是两次确认检查之间的固定间隔。
	defaultPollInterval = 10 * time.Second
	// defaultMaxAttempts 限制单笔支付的确认检查次数。
	defaultMaxAttempts = 30
)

// Monitor 为每笔支付驱动一个独立的确认轮询：固定间隔、限次重试，
// 到达终态即停止。每个支付持有自己的取消句柄，取消支付时可以一并
// 停掉在途轮询。瞬时错误只记录日志，但同样消耗一次重试预算。
type Monitor struct {
	service      *Service
	initialDelay time.Duration
	interval     time.Duration
	maxAttempts  int

	mu       sync.Mutex
	watchers map[string]context.CancelFunc
	wg       sync.WaitGroup
	stopped  bool
}

func newMonitor(service *Service) *Monitor {
	return &Monitor{
		service:      service,
		initialDelay: defaultInitialDelay,
		interval:     defaultPollInterval,
		maxAttempts:  defaultMaxAttempts,
		watchers:     make(map[string]context.CancelFunc),
	}
}

func (m *Monitor) configure(initialDelay, interval time.Duration, maxAttempts int) {
	if initialDelay > 0 {
		m.initialDelay = initialDelay
	}
	if interval > 0 {
		m.interval = interval
	}
	if maxAttempts > 0 {
		m.maxAttempts = maxAttempts
	}
}

// Watch 为支付启动后台确认轮询。同一支付重复调用只保留先到的。
func (m *Monitor) Watch(paymentID string) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	if _, exists := m.watchers[paymentID]; exists {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.watchers[paymentID] = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	go m.poll(ctx, paymentID)
}

// Cancel 停止指定支付的在途轮询。
func (m *Monitor) Cancel(paymentID string) {
	m.mu.Lock()
	cancel, ok := m.watchers[paymentID]
	delete(m.watchers, paymentID)
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

// Stop 取消所有在途轮询并等待协程退出。
func (m *Monitor) Stop() {
	m.mu.Lock()
	m.stopped = true
	for id, cancel := range m.watchers {
		cancel()
		delete(m.watchers, id)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Monitor) poll(ctx context.Context, paymentID string) {
	defer m.wg.Done()
	defer m.Cancel(paymentID)

	log := logger.Named("payment.monitor")

	if !sleepCtx(ctx, m.initialDelay) {
		return
	}

	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		payment, err := m.service.VerifyPayment(ctx, paymentID)
		switch {
		case err == nil:
			if payment.Status.Terminal() {
				log.Info("支付确认轮询结束",
					slog.String("payment_id", paymentID),
					slog.String("status", string(payment.Status)),
					slog.Int("attempts", attempt),
				)
				return
			}
		case stdErrors.Is(err, ErrPaymentNotFound):
			log.Warn("支付记录不存在，停止轮询", slog.String("payment_id", paymentID))
			return
		default:
			// 瞬时错误：记录日志，继续消耗重试预算。
			log.Warn("确认检查失败",
				slog.Any("error", err),
				slog.String("payment_id", paymentID),
				slog.Int("attempt", attempt),
			)
		}

		if attempt == m.maxAttempts {
			break
		}
		if !sleepCtx(ctx, m.interval) {
			return
		}
	}

	m.expire(ctx, paymentID, log)
}

// expire 在重试预算耗尽后把支付标记为 EXPIRED，让调用方能区分
// "仍在确认" 与 "监控已放弃"。
func (m *Monitor) expire(ctx context.Context, paymentID string, log *slog.Logger) {
	updated, err := m.service.transition(ctx, paymentID, StatusExpired, 0)
	if err != nil {
		log.Error("标记支付超时失败", slog.Any("error", err), slog.String("payment_id", paymentID))
		return
	}
	log.Warn("支付确认超时",
		slog.String("payment_id", paymentID),
		slog.String("status", string(updated.Status)),
		slog.Int("max_attempts", m.maxAttempts),
	)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
