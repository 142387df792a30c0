package session

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	xerrors "ZKPong/internal/errors"
	"ZKPong/internal/pong"
	"ZKPong/internal/transcript"
)

const sessionColumns = `id, status, source, max_ticks, script, transcript, outcome, result, last_error, error_code, attempts, created_at, updated_at`

// MySQLStore 使用 MySQL 记录会话状态，脚本、转录与证明结果以 JSON 文本存储。
type MySQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewMySQLStore 基于已迁移的连接池创建 MySQLStore。
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db, now: time.Now}
}

// Create 插入新的会话记录。
func (s *MySQLStore) Create(ctx context.Context, session *Session) error {
	if session == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "session 不能为空")
	}
	if strings.TrimSpace(session.ID) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "会话 ID 不能为空")
	}

	now := s.now().Unix()
	session.CreatedAt = now
	session.UpdatedAt = now

	script, err := marshalNullable(session.Script, len(session.Script) == 0)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码输入脚本失败")
	}
	entries := session.Transcript
	if entries == nil {
		entries = []transcript.Entry{}
	}
	log, err := json.Marshal(entries)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码转录失败")
	}

	const stmt = `INSERT INTO sessions
        (id, status, source, max_ticks, script, transcript, outcome, result, last_error, error_code, attempts, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, NULL, '', '', ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, stmt,
		session.ID,
		string(session.Status),
		string(session.Source),
		session.MaxTicks,
		script,
		string(log),
		string(session.Outcome),
		session.Attempts,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return ErrSessionConflict
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "插入会话失败")
	}
	return nil
}

// Get 查询指定会话。
func (s *MySQLStore) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		if _, ok := xerrors.From(err); ok {
			return nil, err
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询会话失败")
	}
	return session, nil
}

// Claim 将 pending 会话标记为运行中并返回最新状态。
func (s *MySQLStore) Claim(ctx context.Context, id string) (*Session, error) {
	const updateStmt = `UPDATE sessions SET status = ?, attempts = attempts + 1, updated_at = ?, last_error = '', error_code = ''
        WHERE id = ? AND status = ?`

	res, err := s.db.ExecContext(ctx, updateStmt,
		string(StatusRunning),
		s.now().Unix(),
		id,
		string(StatusPending),
	)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "更新会话状态失败")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "获取影响行数失败")
	}
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		if session.Finished() {
			return session, ErrSessionCompleted
		}
		return session, ErrSessionConflict
	}
	return session, nil
}

// MarkSucceeded 将会话标记为成功并保存证明。
func (s *MySQLStore) MarkSucceeded(ctx context.Context, id string, result ProofResult) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码证明结果失败")
	}
	const stmt = `UPDATE sessions SET status = ?, result = ?, updated_at = ?, last_error = '', error_code = '' WHERE id = ?`
	res, err := s.db.ExecContext(ctx, stmt, string(StatusSucceeded), string(encoded), s.now().Unix(), id)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "标记会话成功失败")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// MarkFailed 将会话标记为失败。
func (s *MySQLStore) MarkFailed(ctx context.Context, id string, code xerrors.Code, lastError string) error {
	const stmt = `UPDATE sessions SET status = ?, last_error = ?, error_code = ?, updated_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, stmt, string(StatusFailed), lastError, string(code), s.now().Unix(), id)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "标记会话失败失败")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// List 返回符合过滤条件的会话。
func (s *MySQLStore) List(ctx context.Context, opts ListOptions) ([]*Session, error) {
	opts.applyDefaults()

	query := `SELECT ` + sessionColumns + ` FROM sessions`
	clause, filterArgs := buildFilterClause(opts)
	if clause != "" {
		query += " WHERE " + clause
	}
	order := " ORDER BY updated_at DESC, created_at DESC, id DESC"
	if opts.Order == SortByUpdatedAsc {
		order = " ORDER BY updated_at ASC, created_at ASC, id ASC"
	}
	query += order + " LIMIT ? OFFSET ?"
	args := append(filterArgs, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询会话列表失败")
	}
	defer rows.Close()

	sessions := make([]*Session, 0, opts.Limit)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			if _, ok := xerrors.From(err); ok {
				return nil, err
			}
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析会话记录失败")
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历会话失败")
	}
	return sessions, nil
}

// Stats 返回符合过滤条件的会话聚合信息。
func (s *MySQLStore) Stats(ctx context.Context, opts ListOptions) (Stats, error) {
	opts.applyDefaults()

	query := `SELECT
        COUNT(*) AS total,
        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS pending,
        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS running,
        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS succeeded,
        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS failed,
        COALESCE(MIN(updated_at), 0) AS oldest,
        COALESCE(MAX(updated_at), 0) AS newest
        FROM sessions`

	clause, filterArgs := buildFilterClause(opts)
	if clause != "" {
		query += " WHERE " + clause
	}
	args := []any{string(StatusPending), string(StatusRunning), string(StatusSucceeded), string(StatusFailed)}
	args = append(args, filterArgs...)

	var stats Stats
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.Total,
		&stats.Pending,
		&stats.Running,
		&stats.Succeeded,
		&stats.Failed,
		&stats.OldestUpdatedAt,
		&stats.NewestUpdatedAt,
	); err != nil {
		return Stats{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询会话统计失败")
	}
	return stats, nil
}

// Close 关闭底层数据库连接。
func (s *MySQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		session                   Session
		status, source, outcome   string
		script, result, lastError sql.NullString
		log                       string
	)
	if err := row.Scan(
		&session.ID,
		&status,
		&source,
		&session.MaxTicks,
		&script,
		&log,
		&outcome,
		&result,
		&lastError,
		&session.ErrorCode,
		&session.Attempts,
		&session.CreatedAt,
		&session.UpdatedAt,
	); err != nil {
		return nil, err
	}
	session.Status = Status(status)
	session.Source = Source(source)
	session.Outcome = pong.Outcome(outcome)
	session.LastError = lastError.String

	if err := json.Unmarshal([]byte(log), &session.Transcript); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析会话转录失败")
	}
	if script.Valid && script.String != "" {
		if err := json.Unmarshal([]byte(script.String), &session.Script); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析输入脚本失败")
		}
	}
	if result.Valid && result.String != "" {
		var decoded ProofResult
		if err := json.Unmarshal([]byte(result.String), &decoded); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析证明结果失败")
		}
		session.Result = &decoded
	}
	return &session, nil
}

func buildFilterClause(opts ListOptions) (string, []any) {
	var clauses []string
	var args []any
	if len(opts.Statuses) > 0 {
		placeholders := make([]string, len(opts.Statuses))
		for i, status := range opts.Statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		clauses = append(clauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if opts.Outcome != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, string(opts.Outcome))
	}
	if opts.UpdatedGTE > 0 {
		clauses = append(clauses, "updated_at >= ?")
		args = append(args, opts.UpdatedGTE)
	}
	if opts.UpdatedLTE > 0 {
		clauses = append(clauses, "updated_at <= ?")
		args = append(args, opts.UpdatedLTE)
	}
	if opts.HasResult != nil {
		if *opts.HasResult {
			clauses = append(clauses, "result IS NOT NULL")
		} else {
			clauses = append(clauses, "result IS NULL")
		}
	}
	return strings.Join(clauses, " AND "), args
}

func marshalNullable(v any, empty bool) (sql.NullString, error) {
	if empty {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

var _ Store = (*MySQLStore)(nil)
