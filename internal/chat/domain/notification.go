package domain

// NotificationTypeMessageReceived 離線通知事件種類
const NotificationTypeMessageReceived = "MESSAGE_RECEIVED"

// MemberProfile member service 查詢結果
type MemberProfile struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// MemberLookupReq RPC 查詢 member 資料的請求
type MemberLookupReq struct {
	Action   string `json:"action"`
	MemberID string `json:"member_id"`
}

// OfflineNotice 訊息送出後交給離線通知橋接的資訊
type OfflineNotice struct {
	SenderName     string
	SenderEmail    string
	ReceiverID     string
	DisplayContent string
	IsEncrypted    bool
	Envelope       string
}

// NotificationEvent 寫入通知佇列的事件，加密訊息內容一律用標記取代
type NotificationEvent struct {
	Type           string `json:"type"`
	ReceiverID     string `json:"receiver_id"`
	ReceiverEmail  string `json:"receiver_email,omitempty"`
	SenderName     string `json:"sender_name"`
	SenderEmail    string `json:"sender_email"`
	DisplayContent string `json:"display_content"`
	IsEncrypted    bool   `json:"is_encrypted"`
	Envelope       string `json:"envelope,omitempty"`
}
