package login

import (
	"sync"
	"time"
)

// SessionManager tracks the sessions currently served by a handler.
// Thread-safe через sync.Map.
type SessionManager struct {
	sessions sync.Map // map[uint64]*SessionInfo
}

// SessionInfo хранит информацию об активной сессии.
type SessionInfo struct {
	Session   *Session
	CreatedAt time.Time
}

// NewSessionManager создаёт новый SessionManager.
func NewSessionManager() *SessionManager {
	return &SessionManager{}
}

// Store registers s under its ID.
func (sm *SessionManager) Store(s *Session) {
	sm.sessions.Store(s.ID(), &SessionInfo{
		Session:   s,
		CreatedAt: time.Now(),
	})
}

// Remove удаляет сессию.
func (sm *SessionManager) Remove(id uint64) {
	sm.sessions.Delete(id)
}

// Get returns the session registered under id.
func (sm *SessionManager) Get(id uint64) (*SessionInfo, bool) {
	v, ok := sm.sessions.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*SessionInfo), true
}

// Count возвращает количество активных сессий.
func (sm *SessionManager) Count() int {
	n := 0
	sm.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// CountByState returns how many active sessions are in each state.
func (sm *SessionManager) CountByState() map[ConnectionState]int {
	out := make(map[ConnectionState]int)
	sm.sessions.Range(func(_, v any) bool {
		out[v.(*SessionInfo).Session.State()]++
		return true
	})
	return out
}
