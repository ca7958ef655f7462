package app

import (
	"context"

	"secure_chat_service/internal/chat/domain"
	"secure_chat_service/pkg/logger"
)

// NotificationPublisher definition notification queue publish function
type NotificationPublisher interface {
	Publish(ctx context.Context, ev domain.NotificationEvent) error
}

// MemberDirectory 查 member 資料，(nil, nil) 表示查詢降級
type MemberDirectory interface {
	FindProfile(ctx context.Context, memberID string) (*domain.MemberProfile, error)
}

// OfflineNotifyUseCase 接收者離線時發通知事件進佇列
type OfflineNotifyUseCase struct {
	presence  PresenceOracle
	publisher NotificationPublisher
	directory MemberDirectory
}

// NewOfflineNotifyUseCase create OfflineNotifyUseCase, directory 可為 nil
func NewOfflineNotifyUseCase(presence PresenceOracle, publisher NotificationPublisher, directory MemberDirectory) *OfflineNotifyUseCase {
	return &OfflineNotifyUseCase{
		presence:  presence,
		publisher: publisher,
		directory: directory,
	}
}

// NotifyIfOffline 接收者在線就跳過，通知失敗只記 log 不影響送信
func (uc *OfflineNotifyUseCase) NotifyIfOffline(ctx context.Context, n domain.OfflineNotice) {
	if uc.presence.IsOnline(n.ReceiverID) {
		return
	}

	ev := domain.NotificationEvent{
		Type:           domain.NotificationTypeMessageReceived,
		ReceiverID:     n.ReceiverID,
		SenderName:     n.SenderName,
		SenderEmail:    n.SenderEmail,
		DisplayContent: n.DisplayContent,
		IsEncrypted:    n.IsEncrypted,
		Envelope:       n.Envelope,
	}
	if n.IsEncrypted {
		// 加密訊息的通知只能看到標記
		ev.DisplayContent = domain.EncryptedDisplayMarker
	}

	if uc.directory != nil {
		profile, err := uc.directory.FindProfile(ctx, n.ReceiverID)
		if err != nil {
			logger.Log.Errorf("member lookup for "+n.ReceiverID+" failed:", err)
		} else if profile != nil {
			ev.ReceiverEmail = profile.Email
		}
		// profile 為 nil 表示 rpc timeout，通知照送但沒有 email
	}

	if err := uc.publisher.Publish(ctx, ev); err != nil {
		logger.Log.Errorf("publish offline notification for "+n.ReceiverID+" failed:", err)
	}
}
