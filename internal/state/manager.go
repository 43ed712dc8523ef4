package state

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/squadup/squadup/internal/repositories"
)

// Manager 按用户会话分配 GroupStore，保证登出/断连时监听被回收
type Manager struct {
	groups   *repositories.GroupRepository
	log      *zap.Logger
	tokenTTL time.Duration

	mu       sync.Mutex
	sessions map[string]*GroupStore
}

// NewManager 创建会话管理器
func NewManager(groups *repositories.GroupRepository, log *zap.Logger, tokenTTL time.Duration) *Manager {
	return &Manager{
		groups:   groups,
		log:      log,
		tokenTTL: tokenTTL,
		sessions: make(map[string]*GroupStore),
	}
}

// Get 返回 uid 的会话状态容器，不存在时创建
func (m *Manager) Get(uid string) *GroupStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[uid]; ok {
		return s
	}
	s := NewGroupStore(uid, m.groups, m.log, m.tokenTTL)
	m.sessions[uid] = s
	return s
}

// Peek 返回 uid 的会话状态容器，不存在时返回 nil
func (m *Manager) Peek(uid string) *GroupStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[uid]
}

// Drop 回收 uid 的会话（拆除监听）
func (m *Manager) Drop(uid string) {
	m.mu.Lock()
	s, ok := m.sessions[uid]
	delete(m.sessions, uid)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// CloseAll 回收全部会话（进程退出时调用）
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*GroupStore)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
