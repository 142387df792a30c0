package session

import (
	"context"
	"sort"
	"sync"
	"time"

	xerrors "ZKPong/internal/errors"
)

// MemoryStore 以内存方式保存会话状态，用于单进程部署和测试。
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewMemoryStore 创建 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session), now: time.Now}
}

// Create 实现 Store 接口。
func (m *MemoryStore) Create(_ context.Context, session *Session) error {
	if session == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "session 不能为空")
	}
	if session.ID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "会话 ID 不能为空")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; ok {
		return ErrSessionConflict
	}
	now := m.now().Unix()
	if session.CreatedAt == 0 {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	m.sessions[session.ID] = cloneSession(session)
	return nil
}

// Get 返回会话。
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return cloneSession(session), nil
}

// Claim 只允许 pending 会话进入运行状态，每个会话至多证明一次。
func (m *MemoryStore) Claim(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	switch session.Status {
	case StatusSucceeded, StatusFailed:
		return cloneSession(session), ErrSessionCompleted
	case StatusRunning:
		return cloneSession(session), ErrSessionConflict
	}
	session.Status = StatusRunning
	session.Attempts++
	session.LastError = ""
	session.ErrorCode = ""
	session.UpdatedAt = m.now().Unix()
	return cloneSession(session), nil
}

// MarkSucceeded 记录证明结果。
func (m *MemoryStore) MarkSucceeded(_ context.Context, id string, result ProofResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	session.Status = StatusSucceeded
	session.Result = &result
	session.LastError = ""
	session.ErrorCode = ""
	session.UpdatedAt = m.now().Unix()
	return nil
}

// MarkFailed 标记会话失败。
func (m *MemoryStore) MarkFailed(_ context.Context, id string, code xerrors.Code, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	session.Status = StatusFailed
	session.LastError = lastError
	session.ErrorCode = string(code)
	session.UpdatedAt = m.now().Unix()
	return nil
}

// List 返回符合过滤条件的会话。
func (m *MemoryStore) List(_ context.Context, opts ListOptions) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	opts.applyDefaults()

	results := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		if !matchesListFilters(session, opts) {
			continue
		}
		results = append(results, cloneSession(session))
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if opts.Order == SortByUpdatedAsc {
			if a.UpdatedAt == b.UpdatedAt {
				if a.CreatedAt == b.CreatedAt {
					return a.ID < b.ID
				}
				return a.CreatedAt < b.CreatedAt
			}
			return a.UpdatedAt < b.UpdatedAt
		}
		if a.UpdatedAt == b.UpdatedAt {
			if a.CreatedAt == b.CreatedAt {
				return a.ID > b.ID
			}
			return a.CreatedAt > b.CreatedAt
		}
		return a.UpdatedAt > b.UpdatedAt
	})

	if opts.Offset >= len(results) {
		return []*Session{}, nil
	}
	results = results[opts.Offset:]
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// Stats 统计符合过滤条件的会话数量与更新时间范围。
func (m *MemoryStore) Stats(_ context.Context, opts ListOptions) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	opts.applyDefaults()

	stats := Stats{}
	for _, session := range m.sessions {
		if !matchesListFilters(session, opts) {
			continue
		}
		stats.Total++
		switch session.Status {
		case StatusPending:
			stats.Pending++
		case StatusRunning:
			stats.Running++
		case StatusSucceeded:
			stats.Succeeded++
		case StatusFailed:
			stats.Failed++
		}
		if session.UpdatedAt > stats.NewestUpdatedAt {
			stats.NewestUpdatedAt = session.UpdatedAt
		}
		if stats.OldestUpdatedAt == 0 || (session.UpdatedAt != 0 && session.UpdatedAt < stats.OldestUpdatedAt) {
			stats.OldestUpdatedAt = session.UpdatedAt
		}
	}
	return stats, nil
}

// Close 对内存存储无需操作。
func (m *MemoryStore) Close() error {
	return nil
}

func matchesListFilters(session *Session, opts ListOptions) bool {
	if len(opts.Statuses) > 0 {
		matched := false
		for _, status := range opts.Statuses {
			if session.Status == status {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if opts.Outcome != "" && session.Outcome != opts.Outcome {
		return false
	}
	if opts.UpdatedGTE > 0 && session.UpdatedAt < opts.UpdatedGTE {
		return false
	}
	if opts.UpdatedLTE > 0 && session.UpdatedAt > opts.UpdatedLTE {
		return false
	}
	if opts.HasResult != nil && (session.Result != nil) != *opts.HasResult {
		return false
	}
	return true
}

var _ Store = (*MemoryStore)(nil)
