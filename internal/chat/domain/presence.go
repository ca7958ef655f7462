package domain

import "time"

// Session 代表單一個 websocket 連線
type Session struct {
	UserID      string
	ConnID      string
	ConnectedAt time.Time
}

// Identity 來自 token 的呼叫者身分
type Identity struct {
	MemberID string
	Name     string
	Email    string
}

// PresenceEvent 上線數 0→1 或 1→0 時發出
type PresenceEvent struct {
	UserID   string `json:"user_id"`
	Online   bool   `json:"online"`
	LastSeen int64  `json:"last_seen,omitempty"`
}

// TypingEvent 輸入狀態變化
type TypingEvent struct {
	UserID   string `json:"user_id"`
	IsTyping bool   `json:"is_typing"`
}

// PresenceChannel 所有連線共同訂閱的 presence 廣播 channel
const PresenceChannel = "chat:presence"

// UserChannel return redis channel for user delivery group
func UserChannel(userID string) string {
	return "chat:user:" + userID
}
