package payment

import (
	xerrors "AgentPay-SDK/internal/errors"
)

// Status 表示支付在生命周期中的状态。
type Status string

const (
	// StatusPending 表示转账已提交，等待链上确认。
	StatusPending Status = "pending"
	// StatusConfirmed 表示链上已确认，终态。
	StatusConfirmed Status = "confirmed"
	// StatusFailed 表示链上报告执行失败，终态。
	StatusFailed Status = "failed"
	// StatusCancelled 表示调用方在确认前取消了支付，终态。
	StatusCancelled Status = "cancelled"
	// StatusExpired 表示确认轮询在耗尽重试次数后放弃，终态。
	StatusExpired Status = "expired"
)

// Terminal 判断状态是否为终态，终态之后不允许任何迁移。
func (s Status) Terminal() bool {
	switch s {
	case StatusConfirmed, StatusFailed, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

// IsValidStatus 检查给定的支付状态是否为支持的枚举值。
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusConfirmed, StatusFailed, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

// PaymentRequest 描述一次尚未提交的转账意图。创建后不可变。
type PaymentRequest struct {
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Recipient string  `json:"recipient"`
	Reference string  `json:"reference"`
	Memo      string  `json:"memo,omitempty"`
	ExpiresAt int64   `json:"expires_at,omitempty"`
	CreatedAt int64   `json:"created_at"`
}

// Payment 记录一次已提交转账及其确认生命周期。
type Payment struct {
	ID          string         `json:"id"`
	AgentID     string         `json:"agent_id,omitempty"`
	UserID      string         `json:"user_id"`
	Amount      float64        `json:"amount"`
	Currency    string         `json:"currency"`
	Recipient   string         `json:"recipient"`
	Reference   string         `json:"reference,omitempty"`
	TxSignature string         `json:"tx_signature"`
	Status      Status         `json:"status"`
	Memo        string         `json:"memo,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   int64          `json:"created_at"`
	UpdatedAt   int64          `json:"updated_at"`
	ConfirmedAt int64          `json:"confirmed_at,omitempty"`
}

var (
	// ErrInvalidPayment 表示支付请求本身不合法或已过期。
	ErrInvalidPayment = xerrors.New(CodeInvalidPayment, "invalid payment request")
	// ErrWalletNotConnected 表示当前没有可用的签名会话。
	ErrWalletNotConnected = xerrors.New(CodeWalletNotConnected, "wallet not connected")
	// ErrNotImplemented 表示该币种的转账路径尚未实现。
	ErrNotImplemented = xerrors.New(CodeNotImplemented, "currency not supported")
	// ErrTransferFailed 表示签名会话在提交阶段报告转账失败。
	ErrTransferFailed = xerrors.New(CodeTransferFailed, "transfer failed", xerrors.WithSeverity(xerrors.SeverityWarning))
	// ErrPaymentNotFound 表示指定的支付不存在。
	ErrPaymentNotFound = xerrors.New(CodePaymentNotFound, "payment not found")
	// ErrPaymentTerminal 表示支付已处于终态，无法再变更。
	ErrPaymentTerminal = xerrors.New(CodePaymentTerminal, "payment already terminal", xerrors.WithSeverity(xerrors.SeverityInfo))
	// ErrPaymentConflict 表示同一支付被重复写入。
	ErrPaymentConflict = xerrors.New(CodePaymentConflict, "payment conflict", xerrors.WithSeverity(xerrors.SeverityWarning))
)

const (
	CodeInvalidPayment     xerrors.Code = "INVALID_PAYMENT"
	CodeWalletNotConnected xerrors.Code = "WALLET_NOT_CONNECTED"
	CodeNotImplemented     xerrors.Code = "NOT_IMPLEMENTED"
	CodeTransferFailed     xerrors.Code = "TRANSFER_FAILED"
	CodePaymentNotFound    xerrors.Code = "PAYMENT_NOT_FOUND"
	CodePaymentTerminal    xerrors.Code = "PAYMENT_TERMINAL"
	CodePaymentConflict    xerrors.Code = "PAYMENT_CONFLICT"
	CodeNetworkTransient   xerrors.Code = "NETWORK_TRANSIENT"
)

func init() {
	xerrors.Register(CodeInvalidPayment, xerrors.Attributes{
		Message:   "invalid payment request",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeWalletNotConnected, xerrors.Attributes{
		Message:   "wallet not connected",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     false,
	})
	xerrors.Register(CodeNotImplemented, xerrors.Attributes{
		Message:   "currency not supported",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeTransferFailed, xerrors.Attributes{
		Message:   "transfer submission failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     true,
	})
	xerrors.Register(CodePaymentNotFound, xerrors.Attributes{
		Message:   "payment not found",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodePaymentTerminal, xerrors.Attributes{
		Message:   "payment already terminal",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodePaymentConflict, xerrors.Attributes{
		Message:   "payment conflict",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeNetworkTransient, xerrors.Attributes{
		Message:   "status query failed",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     false,
	})
}

// requestCacheKey 与 paymentCacheKey 统一缓存键格式。
func requestCacheKey(reference string) string {
	return "payment-request:" + reference
}

func paymentCacheKey(id string) string {
	return "payment:" + id
}

func cloneMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	cloned := make(map[string]any, len(metadata))
	for key, value := range metadata {
		cloned[key] = value
	}
	return cloned
}

func clonePayment(p *Payment) *Payment {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Metadata = cloneMetadata(p.Metadata)
	return &clone
}
