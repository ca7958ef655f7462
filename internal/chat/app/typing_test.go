package app

import (
	"sync"
	"testing"
	"time"

	"secure_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/assert"
)

type typingRecorder struct {
	mu     sync.Mutex
	events []domain.TypingEvent
}

func (r *typingRecorder) publish(targetID string, ev domain.TypingEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *typingRecorder) all() []domain.TypingEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.TypingEvent{}, r.events...)
}

// 測試 timer 到期自動廣播 typing 結束
func TestTypingNotifier_AutoIdle(t *testing.T) {
	rec := &typingRecorder{}
	notifier := NewTypingNotifier(30*time.Millisecond, rec.publish)

	notifier.Typing("user-1", "user-2", true)

	assert.Eventually(t, func() bool {
		events := rec.all()
		return len(events) == 2 && !events[1].IsTyping
	}, time.Second, 5*time.Millisecond)

	events := rec.all()
	assert.True(t, events[0].IsTyping)
	assert.Equal(t, "user-1", events[0].UserID)
}

// 測試連續 typing 只重設 timer，不會多發結束事件
func TestTypingNotifier_RefreshTimer(t *testing.T) {
	rec := &typingRecorder{}
	notifier := NewTypingNotifier(50*time.Millisecond, rec.publish)

	notifier.Typing("user-1", "user-2", true)
	time.Sleep(30 * time.Millisecond)
	notifier.Typing("user-1", "user-2", true)
	time.Sleep(30 * time.Millisecond)

	// 第一個 timer 已被重設，此時不該有結束事件
	for _, ev := range rec.all() {
		assert.True(t, ev.IsTyping)
	}

	assert.Eventually(t, func() bool {
		events := rec.all()
		return len(events) == 3 && !events[2].IsTyping
	}, time.Second, 5*time.Millisecond)
}

// 測試 typing false 立即結束並取消 timer
func TestTypingNotifier_ExplicitStop(t *testing.T) {
	rec := &typingRecorder{}
	notifier := NewTypingNotifier(30*time.Millisecond, rec.publish)

	notifier.Typing("user-1", "user-2", true)
	notifier.Typing("user-1", "user-2", false)

	time.Sleep(60 * time.Millisecond)

	// timer 已取消，結束事件只有一個
	events := rec.all()
	assert.Len(t, events, 2)
	assert.False(t, events[1].IsTyping)
}

// 測試 ForceIdle 在有 typing 時廣播結束，沒有時不動作
func TestTypingNotifier_ForceIdle(t *testing.T) {
	rec := &typingRecorder{}
	notifier := NewTypingNotifier(time.Minute, rec.publish)

	notifier.ForceIdle("user-1")
	assert.Empty(t, rec.all())

	notifier.Typing("user-1", "user-2", true)
	notifier.ForceIdle("user-1")

	events := rec.all()
	assert.Len(t, events, 2)
	assert.False(t, events[1].IsTyping)
}

// 測試 Cancel 取消 timer 且不廣播
func TestTypingNotifier_Cancel(t *testing.T) {
	rec := &typingRecorder{}
	notifier := NewTypingNotifier(30*time.Millisecond, rec.publish)

	notifier.Typing("user-1", "user-2", true)
	notifier.Cancel("user-1")

	time.Sleep(60 * time.Millisecond)
	events := rec.all()
	assert.Len(t, events, 1)
	assert.True(t, events[0].IsTyping)
}
