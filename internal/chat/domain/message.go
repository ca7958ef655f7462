package domain

import (
	"encoding/json"
	"strings"
	"time"

	errprocess "secure_chat_service/pkg/err"
)

// MessageStatus 訊息遞送狀態
type MessageStatus string

const (
	// MessageNotDelivered 已保存但接收者尚未收到
	MessageNotDelivered MessageStatus = "NotDelivered"
	// MessageDelivered 已即時送達接收者
	MessageDelivered MessageStatus = "Delivered"
	// MessageSeen 接收者已讀
	MessageSeen MessageStatus = "Seen"
)

const (
	// MaxMessageLen 訊息 payload 長度上限
	MaxMessageLen = 5000
	// EncryptedDisplayMarker 通知內容以標記取代密文
	EncryptedDisplayMarker = "[Encrypted message]"
)

// Message define chat message
type Message struct {
	ID          string        `json:"id"`
	SenderID    string        `json:"sender_id"`
	ReceiverID  string        `json:"receiver_id"`
	Body        string        `json:"body"`
	IsEncrypted bool          `json:"is_encrypted"`
	Status      MessageStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Envelope define end-to-end encrypted payload shape
type Envelope struct {
	Encrypted bool   `json:"__encrypted"`
	Body      string `json:"body"`
}

// ParseEnvelope parse payload as encrypted envelope,
// payload 必須是 {"__encrypted":true,"body":"..."} 形式的 JSON object
func ParseEnvelope(payload string) (*Envelope, error) {
	var raw struct {
		Encrypted *bool   `json:"__encrypted"`
		Body      *string `json:"body"`
	}
	dec := json.NewDecoder(strings.NewReader(payload))
	if err := dec.Decode(&raw); err != nil {
		return nil, errprocess.New(errprocess.KindPolicy, "payload is not an encrypted envelope")
	}
	if raw.Encrypted == nil || !*raw.Encrypted || raw.Body == nil {
		return nil, errprocess.New(errprocess.KindPolicy, "payload is not an encrypted envelope")
	}
	return &Envelope{Encrypted: true, Body: *raw.Body}, nil
}

// SendMessageReq define websocket/REST send message request
type SendMessageReq struct {
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Payload    string `json:"payload"`
	MessageID  string `json:"message_id"`
}
