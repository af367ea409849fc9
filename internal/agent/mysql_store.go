package agent

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"strings"
	"time"

	xerrors "AgentPay-SDK/internal/errors"
	"github.com/go-sql-driver/mysql"
)

// MySQLStore 使用 MySQL 保存智能体记录。
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore 创建一个新的 MySQLStore。
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "MySQL DSN 不能为空")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 MySQL 失败")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "无法连接到 MySQL")
	}

	store := &MySQLStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *MySQLStore) initSchema() error {
	const schema = `CREATE TABLE IF NOT EXISTS agents (
        id VARCHAR(64) PRIMARY KEY,
        owner_id VARCHAR(64) NOT NULL,
        name VARCHAR(255) NOT NULL,
        description TEXT,
        wallet_address VARCHAR(255) DEFAULT '',
        metadata TEXT,
        created_at BIGINT NOT NULL,
        updated_at BIGINT NOT NULL,
        INDEX idx_agent_owner (owner_id),
        INDEX idx_agent_created (created_at)
)`

	if _, err := s.db.Exec(schema); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化 agents 表失败")
	}
	return nil
}

// Create 插入新的智能体记录。
func (s *MySQLStore) Create(ctx context.Context, agent *Agent) error {
	if agent == nil || strings.TrimSpace(agent.ID) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "agent 不能为空")
	}

	now := time.Now().Unix()
	if agent.CreatedAt == 0 {
		agent.CreatedAt = now
	}
	agent.UpdatedAt = now

	metadataValue, err := marshalMetadata(agent.Metadata)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码智能体 metadata 失败")
	}

	const stmt = `INSERT INTO agents
        (id, owner_id, name, description, wallet_address, metadata, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, stmt,
		agent.ID,
		agent.OwnerID,
		agent.Name,
		agent.Description,
		agent.WalletAddress,
		metadataValue,
		agent.CreatedAt,
		agent.UpdatedAt,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return ErrAgentConflict
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "插入智能体失败")
	}
	return nil
}

// Get 查询指定智能体。
func (s *MySQLStore) Get(ctx context.Context, id string) (*Agent, error) {
	const stmt = `SELECT id, owner_id, name, description, wallet_address, metadata, created_at, updated_at
        FROM agents WHERE id = ?`

	agent, err := scanAgent(s.db.QueryRowContext(ctx, stmt, id))
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, ErrAgentNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询智能体失败")
	}
	return agent, nil
}

// Update 覆盖已存在的智能体记录。
func (s *MySQLStore) Update(ctx context.Context, agent *Agent) (*Agent, error) {
	if agent == nil || strings.TrimSpace(agent.ID) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "agent 不能为空")
	}

	metadataValue, err := marshalMetadata(agent.Metadata)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码智能体 metadata 失败")
	}

	now := time.Now().Unix()
	const stmt = `UPDATE agents SET name = ?, description = ?, wallet_address = ?, metadata = ?, updated_at = ?
        WHERE id = ?`
	result, err := s.db.ExecContext(ctx, stmt,
		agent.Name,
		agent.Description,
		agent.WalletAddress,
		metadataValue,
		now,
		agent.ID,
	)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "更新智能体失败")
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return nil, ErrAgentNotFound
	}
	return s.Get(ctx, agent.ID)
}

// List 按创建时间降序返回智能体列表。
func (s *MySQLStore) List(ctx context.Context, opts ListOptions) ([]*Agent, error) {
	opts.applyDefaults()

	query := `SELECT id, owner_id, name, description, wallet_address, metadata, created_at, updated_at FROM agents`
	args := make([]any, 0, 3)
	if opts.OwnerID != "" {
		query += ` WHERE owner_id = ?`
		args = append(args, opts.OwnerID)
	}
	query += ` ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询智能体列表失败")
	}
	defer rows.Close()

	results := make([]*Agent, 0, opts.Limit)
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析智能体记录失败")
		}
		results = append(results, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历智能体列表失败")
	}
	return results, nil
}

// Delete 删除智能体记录。
func (s *MySQLStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "删除智能体失败")
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrAgentNotFound
	}
	return nil
}

// Close 释放数据库连接。
func (s *MySQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*Agent, error) {
	var agent Agent
	var description sql.NullString
	var metadata sql.NullString

	if err := row.Scan(
		&agent.ID,
		&agent.OwnerID,
		&agent.Name,
		&description,
		&agent.WalletAddress,
		&metadata,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	); err != nil {
		return nil, err
	}
	agent.Description = description.String
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &agent.Metadata); err != nil {
			return nil, err
		}
	}
	return &agent, nil
}

func marshalMetadata(metadata map[string]any) (sql.NullString, error) {
	if len(metadata) == 0 {
		return sql.NullString{}, nil
	}
	payload, err := json.Marshal(metadata)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(payload), Valid: true}, nil
}

var _ Store = (*MySQLStore)(nil)
