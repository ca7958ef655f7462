package app

import (
	"sync"
	"time"

	"secure_chat_service/internal/chat/domain"
)

// TypingIdleTimeout 無後續 typing 事件時自動回復 Idle 的時間
const TypingIdleTimeout = 3 * time.Second

type typingSlot struct {
	timer    *time.Timer
	targetID string
}

// TypingNotifier 每個 user 只有一個 typing timer,
// 後到的 typing 事件會重設 timer 並覆蓋 target
type TypingNotifier struct {
	mu          sync.Mutex
	slots       map[string]*typingSlot
	idleTimeout time.Duration
	publish     func(targetID string, ev domain.TypingEvent)
}

// NewTypingNotifier create TypingNotifier
func NewTypingNotifier(idleTimeout time.Duration, publish func(targetID string, ev domain.TypingEvent)) *TypingNotifier {
	if idleTimeout <= 0 {
		idleTimeout = TypingIdleTimeout
	}
	return &TypingNotifier{
		slots:       make(map[string]*typingSlot),
		idleTimeout: idleTimeout,
		publish:     publish,
	}
}

// Typing handle typing event from user toward target
func (t *TypingNotifier) Typing(userID, targetID string, isTyping bool) {
	if !isTyping {
		t.mu.Lock()
		if slot, ok := t.slots[userID]; ok {
			slot.timer.Stop()
			delete(t.slots, userID)
		}
		t.mu.Unlock()
		t.publish(targetID, domain.TypingEvent{UserID: userID, IsTyping: false})
		return
	}

	slot := &typingSlot{targetID: targetID}
	slot.timer = time.AfterFunc(t.idleTimeout, func() { t.expire(userID, slot) })

	t.mu.Lock()
	if old, ok := t.slots[userID]; ok {
		old.timer.Stop()
	}
	t.slots[userID] = slot
	t.mu.Unlock()

	t.publish(targetID, domain.TypingEvent{UserID: userID, IsTyping: true})
}

// expire timer 到期自動廣播 typing 結束
func (t *TypingNotifier) expire(userID string, slot *typingSlot) {
	t.mu.Lock()
	// timer 到期與 slot 被覆蓋可能交錯，只處理仍註冊中的 slot
	if current, ok := t.slots[userID]; !ok || current != slot {
		t.mu.Unlock()
		return
	}
	delete(t.slots, userID)
	t.mu.Unlock()

	t.publish(slot.targetID, domain.TypingEvent{UserID: userID, IsTyping: false})
}

// ForceIdle 送出訊息時先結束輸入狀態，避免殘留的 typing 比訊息晚到
func (t *TypingNotifier) ForceIdle(userID string) {
	t.mu.Lock()
	slot, ok := t.slots[userID]
	if ok {
		slot.timer.Stop()
		delete(t.slots, userID)
	}
	t.mu.Unlock()

	if ok {
		t.publish(slot.targetID, domain.TypingEvent{UserID: userID, IsTyping: false})
	}
}

// Cancel 連線中斷時取消 timer，不另外廣播
func (t *TypingNotifier) Cancel(userID string) {
	t.mu.Lock()
	if slot, ok := t.slots[userID]; ok {
		slot.timer.Stop()
		delete(t.slots, userID)
	}
	t.mu.Unlock()
}
