package agent

import (
	"context"
	"sort"
	"sync"
	"time"

	xerrors "AgentPay-SDK/internal/errors"
)

// MemoryStore 以内存方式保存智能体记录。
type MemoryStore struct {
	mu     sync.RWMutex
	agents map[string]*Agent
}

// NewMemoryStore 创建 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{agents: make(map[string]*Agent)}
}

// Create 实现 Store 接口。
func (m *MemoryStore) Create(_ context.Context, agent *Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if agent == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "agent 不能为空")
	}
	if agent.ID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "智能体 ID 不能为空")
	}
	if _, ok := m.agents[agent.ID]; ok {
		return ErrAgentConflict
	}
	now := time.Now().Unix()
	if agent.CreatedAt == 0 {
		agent.CreatedAt = now
	}
	agent.UpdatedAt = now
	m.agents[agent.ID] = cloneAgent(agent)
	return nil
}

// Get 返回智能体记录。
func (m *MemoryStore) Get(_ context.Context, id string) (*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	agent, ok := m.agents[id]
	if !ok {
		return nil, ErrAgentNotFound
	}
	return cloneAgent(agent), nil
}

// Update 覆盖已存在的智能体记录。
func (m *MemoryStore) Update(_ context.Context, agent *Agent) (*Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if agent == nil || agent.ID == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "agent 不能为空")
	}
	existing, ok := m.agents[agent.ID]
	if !ok {
		return nil, ErrAgentNotFound
	}
	clone := cloneAgent(agent)
	clone.CreatedAt = existing.CreatedAt
	clone.UpdatedAt = time.Now().Unix()
	m.agents[agent.ID] = clone
	return cloneAgent(clone), nil
}

// List 按创建时间降序返回智能体列表。
func (m *MemoryStore) List(_ context.Context, opts ListOptions) ([]*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	opts.applyDefaults()

	results := make([]*Agent, 0, len(m.agents))
	for _, agent := range m.agents {
		if opts.OwnerID != "" && agent.OwnerID != opts.OwnerID {
			continue
		}
		results = append(results, cloneAgent(agent))
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].CreatedAt == results[j].CreatedAt {
			return results[i].ID < results[j].ID
		}
		return results[i].CreatedAt > results[j].CreatedAt
	})

	if opts.Offset >= len(results) {
		return []*Agent{}, nil
	}
	results = results[opts.Offset:]
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// Delete 删除智能体记录。
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agents[id]; !ok {
		return ErrAgentNotFound
	}
	delete(m.agents, id)
	return nil
}

// Close 对内存存储无需操作。
func (m *MemoryStore) Close() error {
	return nil
}

// ensure interface compliance at compile time
var _ Store = (*MemoryStore)(nil)
