package payment

import "context"

// StatusEvent 是发布到事件通道的支付状态变更载荷。
type StatusEvent struct {
	PaymentID   string  `json:"payment_id"`
	UserID      string  `json:"user_id"`
	AgentID     string  `json:"agent_id,omitempty"`
	Status      Status  `json:"status"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	TxSignature string  `json:"tx_signature"`
	OccurredAt  int64   `json:"occurred_at"`
}

// Publisher 发布支付状态变更事件。发布失败不会影响支付流程本身，
// 调用方只记录日志。
type Publisher interface {
	PublishStatusChange(ctx context.Context, payment *Payment) error
	Close() error
}

// NoopPublisher 丢弃所有事件，是未配置事件通道时的默认实现。
type NoopPublisher struct{}

// PublishStatusChange 实现 Publisher 接口。
func (NoopPublisher) PublishStatusChange(context.Context, *Payment) error { return nil }

// Close 实现 Publisher 接口。
func (NoopPublisher) Close() error { return nil }

var _ Publisher = NoopPublisher{}
