package app

import (
	"sync"
	"testing"

	"secure_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/assert"
)

// 測試同一 user 多連線只在 0→1 與 1→0 發 transition
func TestSessionRegistry_Transitions(t *testing.T) {
	var mu sync.Mutex
	var events []domain.PresenceEvent
	registry := NewSessionRegistry(func(ev domain.PresenceEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	registry.RegisterConnection("user-1", "conn-a")
	registry.RegisterConnection("user-1", "conn-b")
	assert.True(t, registry.IsOnline("user-1"))

	registry.RemoveConnection("user-1", "conn-a")
	assert.True(t, registry.IsOnline("user-1"))

	registry.RemoveConnection("user-1", "conn-b")
	assert.False(t, registry.IsOnline("user-1"))

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, events, 2)
	assert.True(t, events[0].Online)
	assert.False(t, events[1].Online)
	assert.NotZero(t, events[1].LastSeen)
}

// 測試重複移除與未知 connID 不會發 transition
func TestSessionRegistry_RemoveIdempotent(t *testing.T) {
	var events []domain.PresenceEvent
	registry := NewSessionRegistry(func(ev domain.PresenceEvent) {
		events = append(events, ev)
	})

	registry.RegisterConnection("user-1", "conn-a")
	registry.RemoveConnection("user-1", "conn-unknown")
	assert.Len(t, events, 1)

	registry.RemoveConnection("user-1", "conn-a")
	registry.RemoveConnection("user-1", "conn-a")
	registry.RemoveConnection("user-2", "conn-x")
	assert.Len(t, events, 2)
}

// 測試 Snapshot 排除指定 user
func TestSessionRegistry_Snapshot(t *testing.T) {
	registry := NewSessionRegistry(nil)

	registry.RegisterConnection("user-1", "conn-a")
	registry.RegisterConnection("user-2", "conn-b")
	registry.RegisterConnection("user-3", "conn-c")

	assert.Equal(t, []string{"user-2", "user-3"}, registry.Snapshot("user-1"))
	assert.Equal(t, []string{"user-1", "user-2", "user-3"}, registry.Snapshot(""))
}

// 測試並發註冊移除不會 panic 也不會多發 transition
func TestSessionRegistry_Concurrent(t *testing.T) {
	var mu sync.Mutex
	online := 0
	registry := NewSessionRegistry(func(ev domain.PresenceEvent) {
		mu.Lock()
		if ev.Online {
			online++
		} else {
			online--
		}
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			connID := "conn-" + string(rune('a'+n%26)) + "-" + string(rune('0'+n%10))
			registry.RegisterConnection("user-1", connID)
			registry.RemoveConnection("user-1", connID)
		}(i)
	}
	wg.Wait()

	assert.False(t, registry.IsOnline("user-1"))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, online)
}
