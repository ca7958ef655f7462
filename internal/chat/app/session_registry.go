package app

import (
	"sort"
	"sync"
	"time"

	"secure_chat_service/internal/chat/domain"
)

// SessionRegistry 行程內 user → 連線集合 的 presence 表，
// 同一 user 多個連線只在 0→1 與 1→0 時發出 transition
type SessionRegistry struct {
	mu           sync.Mutex
	conns        map[string]map[string]domain.Session
	onTransition func(ev domain.PresenceEvent)
}

// NewSessionRegistry create SessionRegistry, onTransition 可為 nil
func NewSessionRegistry(onTransition func(ev domain.PresenceEvent)) *SessionRegistry {
	return &SessionRegistry{
		conns:        make(map[string]map[string]domain.Session),
		onTransition: onTransition,
	}
}

// RegisterConnection register a websocket connection for user
func (s *SessionRegistry) RegisterConnection(userID, connID string) {
	var ev *domain.PresenceEvent

	s.mu.Lock()
	set, ok := s.conns[userID]
	if !ok {
		set = make(map[string]domain.Session)
		s.conns[userID] = set
	}
	set[connID] = domain.Session{UserID: userID, ConnID: connID, ConnectedAt: time.Now()}
	if len(set) == 1 {
		ev = &domain.PresenceEvent{UserID: userID, Online: true}
	}
	s.mu.Unlock()

	// callback 在鎖外呼叫，避免 publish 阻塞 registry
	if ev != nil && s.onTransition != nil {
		s.onTransition(*ev)
	}
}

// RemoveConnection remove a websocket connection,
// 重複移除或未知的 connID 不會產生 transition
func (s *SessionRegistry) RemoveConnection(userID, connID string) {
	var ev *domain.PresenceEvent

	s.mu.Lock()
	set, ok := s.conns[userID]
	if ok {
		if _, exist := set[connID]; exist {
			delete(set, connID)
			if len(set) == 0 {
				delete(s.conns, userID)
				ev = &domain.PresenceEvent{UserID: userID, Online: false, LastSeen: time.Now().Unix()}
			}
		}
	}
	s.mu.Unlock()

	if ev != nil && s.onTransition != nil {
		s.onTransition(*ev)
	}
}

// IsOnline report whether user has at least one connection
func (s *SessionRegistry) IsOnline(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns[userID]) > 0
}

// Snapshot return online user ids, excludeUser 不列入
func (s *SessionRegistry) Snapshot(excludeUser string) []string {
	s.mu.Lock()
	online := make([]string, 0, len(s.conns))
	for userID, set := range s.conns {
		if userID == excludeUser || len(set) == 0 {
			continue
		}
		online = append(online, userID)
	}
	s.mu.Unlock()

	sort.Strings(online)
	return online
}
