package payment

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

// MySQLStore 使用 MySQL 保存支付记录。
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

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
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
	const schema = `CREATE TABLE IF NOT EXISTS payments (
        id VARCHAR(64) PRIMARY KEY,
        agent_id VARCHAR(64) DEFAULT '',
        user_id VARCHAR(64) NOT NULL,
        amount DOUBLE NOT NULL,
        currency VARCHAR(64) NOT NULL,
        recipient VARCHAR(255) NOT NULL,
        reference VARCHAR(128) DEFAULT '',
        tx_signature VARCHAR(128) NOT NULL,
        status VARCHAR(32) NOT NULL,
        memo TEXT,
        metadata TEXT,
        created_at BIGINT NOT NULL,
        updated_at BIGINT NOT NULL,
        confirmed_at BIGINT NOT NULL DEFAULT 0,
        INDEX idx_payment_user (user_id),
        INDEX idx_payment_agent (agent_id),
        INDEX idx_payment_status (status),
        INDEX idx_payment_created (created_at)
)`

	if _, err := s.db.Exec(schema); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化 payments 表失败")
	}
	return nil
}

// Create 插入新的支付记录。
func (s *MySQLStore) Create(ctx context.Context, payment *Payment) error {
	if payment == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "payment 不能为空")
	}
	if strings.TrimSpace(payment.ID) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "支付 ID 不能为空")
	}

	now := time.Now().Unix()
	if payment.CreatedAt == 0 {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now

	metadataValue, err := marshalMetadata(payment.Metadata)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码支付 metadata 失败")
	}

	const stmt = `INSERT INTO payments
        (id, agent_id, user_id, amount, currency, recipient, reference, tx_signature, status, memo, metadata, created_at, updated_at, confirmed_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, stmt,
		payment.ID,
		payment.AgentID,
		payment.UserID,
		payment.Amount,
		payment.Currency,
		payment.Recipient,
		payment.Reference,
		payment.TxSignature,
		payment.Status,
		payment.Memo,
		metadataValue,
		payment.CreatedAt,
		payment.UpdatedAt,
		payment.ConfirmedAt,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return ErrPaymentConflict
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "插入支付失败")
	}
	return nil
}

// Get 查询指定支付。
func (s *MySQLStore) Get(ctx context.Context, id string) (*Payment, error) {
	const stmt = `SELECT id, agent_id, user_id, amount, currency, recipient, reference, tx_signature, status, memo, metadata, created_at, updated_at, confirmed_at
        FROM payments WHERE id = ?`

	payment, err := scanPayment(s.db.QueryRowContext(ctx, stmt, id))
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询支付失败")
	}
	return payment, nil
}

// UpdateStatus 迁移支付状态。终态记录拒绝任何迁移。
func (s *MySQLStore) UpdateStatus(ctx context.Context, id string, status Status, confirmedAt int64) (*Payment, error) {
	if !IsValidStatus(status) {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "非法的支付状态")
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return current, ErrPaymentTerminal
	}

	now := time.Now().Unix()
	newConfirmedAt := current.ConfirmedAt
	if status == StatusConfirmed {
		newConfirmedAt = confirmedAt
	}

	// 条件更新保证并发下终态不被覆盖。
	const stmt = `UPDATE payments SET status = ?, confirmed_at = ?, updated_at = ?
        WHERE id = ? AND status = ?`
	result, err := s.db.ExecContext(ctx, stmt, status, newConfirmedAt, now, id, current.Status)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "更新支付状态失败")
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		// 并发更新抢先迁移了状态，重新读取并按终态规则报告。
		latest, getErr := s.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if latest.Status.Terminal() {
			return latest, ErrPaymentTerminal
		}
		return latest, ErrPaymentConflict
	}

	current.Status = status
	current.ConfirmedAt = newConfirmedAt
	current.UpdatedAt = now
	return current, nil
}

// List 按 CreatedAt 降序返回符合过滤条件的支付。
func (s *MySQLStore) List(ctx context.Context, opts ListOptions) ([]*Payment, error) {
	opts.applyDefaults()

	query := strings.Builder{}
	query.WriteString(`SELECT id, agent_id, user_id, amount, currency, recipient, reference, tx_signature, status, memo, metadata, created_at, updated_at, confirmed_at FROM payments`)
	where, args := buildListWhere(opts)
	query.WriteString(where)
	query.WriteString(` ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询支付列表失败")
	}
	defer rows.Close()

	results := make([]*Payment, 0, opts.Limit)
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析支付记录失败")
		}
		results = append(results, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历支付列表失败")
	}
	return results, nil
}

// Stats 统计符合过滤条件的支付数量。
func (s *MySQLStore) Stats(ctx context.Context, opts ListOptions) (PaymentStats, error) {
	opts.applyDefaults()

	query := strings.Builder{}
	query.WriteString(`SELECT status, COUNT(*) FROM payments`)
	where, args := buildListWhere(opts)
	query.WriteString(where)
	query.WriteString(` GROUP BY status`)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return PaymentStats{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "统计支付失败")
	}
	defer rows.Close()

	stats := PaymentStats{}
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return PaymentStats{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析统计结果失败")
		}
		stats.Total += count
		switch status {
		case StatusPending:
			stats.Pending = count
		case StatusConfirmed:
			stats.Confirmed = count
		case StatusFailed:
			stats.Failed = count
		case StatusCancelled:
			stats.Cancelled = count
		case StatusExpired:
			stats.Expired = count
		}
	}
	return stats, rows.Err()
}

// Close 释放数据库连接。
func (s *MySQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func buildListWhere(opts ListOptions) (string, []any) {
	conditions := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if opts.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, opts.UserID)
	}
	if opts.AgentID != "" {
		conditions = append(conditions, "agent_id = ?")
		args = append(args, opts.AgentID)
	}
	if len(opts.Statuses) > 0 {
		placeholders := make([]string, len(opts.Statuses))
		for i, status := range opts.Statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		conditions = append(conditions, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*Payment, error) {
	var payment Payment
	var memo sql.NullString
	var metadata sql.NullString

	if err := row.Scan(
		&payment.ID,
		&payment.AgentID,
		&payment.UserID,
		&payment.Amount,
		&payment.Currency,
		&payment.Recipient,
		&payment.Reference,
		&payment.TxSignature,
		&payment.Status,
		&memo,
		&metadata,
		&payment.CreatedAt,
		&payment.UpdatedAt,
		&payment.ConfirmedAt,
	); err != nil {
		return nil, err
	}
	payment.Memo = memo.String
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &payment.Metadata); err != nil {
			return nil, err
		}
	}
	return &payment, nil
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
