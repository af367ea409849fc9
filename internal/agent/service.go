package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	xerrors "AgentPay-SDK/internal/errors"
	"AgentPay-SDK/pkg/logger"
)

// Registration 描述注册智能体所需的信息。
type Registration struct {
	OwnerID       string         `json:"owner_id"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	WalletAddress string         `json:"wallet_address,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Service 负责智能体记录的增删改查。
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService 构造智能体服务。
func NewService(store Store) *Service {
	return &Service{store: store, logger: logger.Named("agent")}
}

// Register 创建一个新的智能体记录。
func (s *Service) Register(ctx context.Context, reg Registration) (*Agent, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "智能体服务未初始化")
	}
	if strings.TrimSpace(reg.OwnerID) == "" {
		return nil, xerrors.New(CodeAgentValidation, "ownerID 不能为空")
	}
	if strings.TrimSpace(reg.Name) == "" {
		return nil, xerrors.New(CodeAgentValidation, "智能体名称不能为空")
	}

	agent := &Agent{
		ID:            uuid.NewString(),
		OwnerID:       strings.TrimSpace(reg.OwnerID),
		Name:          strings.TrimSpace(reg.Name),
		Description:   reg.Description,
		WalletAddress: strings.TrimSpace(reg.WalletAddress),
		Metadata:      cloneMetadata(reg.Metadata),
	}
	if err := s.store.Create(ctx, agent); err != nil {
		return nil, err
	}
	logger.Audit().Info("智能体注册成功",
		slog.String("agent_id", agent.ID),
		slog.String("owner_id", agent.OwnerID),
		slog.String("name", agent.Name),
	)
	return cloneAgent(agent), nil
}

// Get 返回指定智能体。
func (s *Service) Get(ctx context.Context, id string) (*Agent, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "智能体服务未初始化")
	}
	return s.store.Get(ctx, id)
}

// Update 更新智能体的可变字段。
func (s *Service) Update(ctx context.Context, agent *Agent) (*Agent, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "智能体服务未初始化")
	}
	if agent == nil || strings.TrimSpace(agent.ID) == "" {
		return nil, xerrors.New(CodeAgentValidation, "智能体 ID 不能为空")
	}
	if strings.TrimSpace(agent.Name) == "" {
		return nil, xerrors.New(CodeAgentValidation, "智能体名称不能为空")
	}
	return s.store.Update(ctx, agent)
}

// List 返回符合过滤条件的智能体列表。
func (s *Service) List(ctx context.Context, opts ListOptions) ([]*Agent, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "智能体服务未初始化")
	}
	return s.store.List(ctx, opts)
}

// Delete 删除智能体记录。
func (s *Service) Delete(ctx context.Context, id string) error {
	if s.store == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "智能体服务未初始化")
	}
	return s.store.Delete(ctx, id)
}

// Close 释放资源。
func (s *Service) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
