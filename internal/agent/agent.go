package agent

import (
	"context"

	xerrors "AgentPay-SDK/internal/errors"
)

// Agent 描述一个注册到平台的智能体记录。
type Agent struct {
	ID            string         `json:"id"`
	OwnerID       string         `json:"owner_id"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	WalletAddress string         `json:"wallet_address,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     int64          `json:"created_at"`
	UpdatedAt     int64          `json:"updated_at"`
}

var (
	// ErrAgentNotFound 表示指定的智能体不存在。
	ErrAgentNotFound = xerrors.New(CodeAgentNotFound, "agent not found")
	// ErrAgentConflict 表示智能体 ID 已被占用。
	ErrAgentConflict = xerrors.New(CodeAgentConflict, "agent conflict", xerrors.WithSeverity(xerrors.SeverityWarning))
)

const (
	CodeAgentNotFound   xerrors.Code = "AGENT_NOT_FOUND"
	CodeAgentConflict   xerrors.Code = "AGENT_CONFLICT"
	CodeAgentValidation xerrors.Code = "AGENT_VALIDATION_FAILED"
)

func init() {
	xerrors.Register(CodeAgentNotFound, xerrors.Attributes{
		Message:   "agent not found",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeAgentConflict, xerrors.Attributes{
		Message:   "agent conflict",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeAgentValidation, xerrors.Attributes{
		Message:   "agent validation failed",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
}

// ListOptions 控制智能体列表查询。
type ListOptions struct {
	OwnerID string
	Limit   int
	Offset  int
}

func (opts *ListOptions) applyDefaults() {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Limit > 200 {
		opts.Limit = 200
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
}

// Store 抽象了智能体记录的持久化接口。
type Store interface {
	Create(ctx context.Context, agent *Agent) error
	Get(ctx context.Context, id string) (*Agent, error)
	Update(ctx context.Context, agent *Agent) (*Agent, error)
	List(ctx context.Context, opts ListOptions) ([]*Agent, error)
	Delete(ctx context.Context, id string) error
	Close() error
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

func cloneAgent(a *Agent) *Agent {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Metadata = cloneMetadata(a.Metadata)
	return &clone
}
