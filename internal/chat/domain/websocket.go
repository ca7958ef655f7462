package domain

// websocket action 種類
const (
	// ActionSendMessage client 送出訊息
	ActionSendMessage = "send_message"
	// ActionTyping client 回報輸入狀態
	ActionTyping = "typing"
	// ActionMarkSeen client 標記已讀
	ActionMarkSeen = "mark_seen"
	// ActionReceiveMessage server 推送訊息給接收者
	ActionReceiveMessage = "receive_message"
	// ActionPresence server 廣播上下線
	ActionPresence = "presence"
	// ActionPresenceSnapshot 連線建立時推送的在線名單
	ActionPresenceSnapshot = "presence_snapshot"
)

// WSRequest define websocket client request
type WSRequest struct {
	Action     string `json:"action"`
	SenderID   string `json:"sender_id,omitempty"`
	ReceiverID string `json:"receiver_id,omitempty"`
	Payload    string `json:"payload,omitempty"`
	MessageID  string `json:"message_id,omitempty"`
	IsTyping   bool   `json:"is_typing,omitempty"`
}

// WSResponse define websocket server response
type WSResponse struct {
	Action  string      `json:"action"`
	Success bool        `json:"success"`
	Payload interface{} `json:"payload,omitempty"`
	Error   string      `json:"error,omitempty"`
}
