package payment

import "context"

// Store 抽象了支付记录的持久化接口。实现必须保证终态不可变：
// 对已处于终态的支付调用 UpdateStatus 返回 ErrPaymentTerminal。
type Store interface {
	Create(ctx context.Context, payment *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	// UpdateStatus 迁移支付状态并返回更新后的记录。confirmedAt 仅在
	// 迁移到 StatusConfirmed 时写入。
	UpdateStatus(ctx context.Context, id string, status Status, confirmedAt int64) (*Payment, error)
	List(ctx context.Context, opts ListOptions) ([]*Payment, error)
	Stats(ctx context.Context, opts ListOptions) (PaymentStats, error)
	Close() error
}

// PaymentStats 聚合了支付状态的统计信息。
type PaymentStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
	Expired   int `json:"expired"`
}
