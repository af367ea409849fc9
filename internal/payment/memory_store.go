package payment

import (
	"context"
	"sort"
	"sync"
	"time"

	xerrors "AgentPay-SDK/internal/errors"
)

// MemoryStore 以内存方式保存支付记录，是权威存储的默认实现。
type MemoryStore struct {
	mu       sync.RWMutex
	payments map[string]*Payment
}

// NewMemoryStore 创建 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{payments: make(map[string]*Payment)}
}

// Create 实现 Store 接口。
func (m *MemoryStore) Create(_ context.Context, payment *Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if payment == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "payment 不能为空")
	}
	if payment.ID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "支付 ID 不能为空")
	}
	if _, ok := m.payments[payment.ID]; ok {
		return ErrPaymentConflict
	}
	now := time.Now().Unix()
	if payment.CreatedAt == 0 {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now
	m.payments[payment.ID] = clonePayment(payment)
	return nil
}

// Get 返回支付记录。
func (m *MemoryStore) Get(_ context.Context, id string) (*Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payment, ok := m.payments[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return clonePayment(payment), nil
}

// UpdateStatus 迁移支付状态。终态记录拒绝任何迁移。
func (m *MemoryStore) UpdateStatus(_ context.Context, id string, status Status, confirmedAt int64) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !IsValidStatus(status) {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "非法的支付状态")
	}
	payment, ok := m.payments[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	if payment.Status.Terminal() {
		return clonePayment(payment), ErrPaymentTerminal
	}
	payment.Status = status
	if status == StatusConfirmed {
		payment.ConfirmedAt = confirmedAt
	}
	payment.UpdatedAt = time.Now().Unix()
	return clonePayment(payment), nil
}

// List 按 CreatedAt 降序返回符合过滤条件的支付。
func (m *MemoryStore) List(_ context.Context, opts ListOptions) ([]*Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	opts.applyDefaults()

	results := make([]*Payment, 0, len(m.payments))
	for _, payment := range m.payments {
		if !matchesListFilters(payment, opts) {
			continue
		}
		results = append(results, clonePayment(payment))
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].CreatedAt == results[j].CreatedAt {
			return results[i].ID < results[j].ID
		}
		return results[i].CreatedAt > results[j].CreatedAt
	})

	if opts.Offset >= len(results) {
		return []*Payment{}, nil
	}
	results = results[opts.Offset:]
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// Stats 统计符合过滤条件的支付数量。
func (m *MemoryStore) Stats(_ context.Context, opts ListOptions) (PaymentStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	opts.applyDefaults()

	stats := PaymentStats{}
	for _, payment := range m.payments {
		if !matchesListFilters(payment, opts) {
			continue
		}
		stats.Total++
		switch payment.Status {
		case StatusPending:
			stats.Pending++
		case StatusConfirmed:
			stats.Confirmed++
		case StatusFailed:
			stats.Failed++
		case StatusCancelled:
			stats.Cancelled++
		case StatusExpired:
			stats.Expired++
		}
	}
	return stats, nil
}

// Close 对内存存储无需操作。
func (m *MemoryStore) Close() error {
	return nil
}

// ensure interface compliance at compile time
var _ Store = (*MemoryStore)(nil)
