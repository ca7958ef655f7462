package app

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"secure_chat_service/internal/chat/domain"
	"secure_chat_service/internal/chat/repository"
	errprocess "secure_chat_service/pkg/err"
	"secure_chat_service/pkg/logger"

	"github.com/google/uuid"
)

// PresenceOracle 提供接收者是否在線
type PresenceOracle interface {
	IsOnline(userID string) bool
}

// TypingSilencer 訊息送出前先結束輸入狀態
type TypingSilencer interface {
	ForceIdle(userID string)
}

// OfflineNotifier 接收者離線時發離線通知
type OfflineNotifier interface {
	NotifyIfOffline(ctx context.Context, n domain.OfflineNotice)
}

// MessageUseCase definition message pipeline function
type MessageUseCase interface {
	Send(ctx context.Context, sender domain.Identity, req domain.SendMessageReq) (*domain.Message, error)
	MarkSeen(ctx context.Context, reader domain.Identity, messageID string) error
	History(ctx context.Context, userID, peerID string, limit int) ([]domain.Message, error)
}

type messageUseCase struct {
	msgRepo  repository.MessageRepository
	groups   repository.GroupPublisher
	typing   TypingSilencer
	notifier OfflineNotifier
	presence PresenceOracle
}

// NewMessageUseCase create message usecase
func NewMessageUseCase(
	msgRepo repository.MessageRepository,
	groups repository.GroupPublisher,
	typing TypingSilencer,
	notifier OfflineNotifier,
	presence PresenceOracle,
) MessageUseCase {
	return &messageUseCase{
		msgRepo:  msgRepo,
		groups:   groups,
		typing:   typing,
		notifier: notifier,
		presence: presence,
	}
}

// Send validate, persist and deliver a message,
// req.MessageID 有值時是引用既有訊息，不會建立副本
func (uc *messageUseCase) Send(ctx context.Context, sender domain.Identity, req domain.SendMessageReq) (*domain.Message, error) {
	if req.SenderID != "" && req.SenderID != sender.MemberID {
		return nil, errprocess.New(errprocess.KindValidation, "sender id does not match authenticated user")
	}
	if req.ReceiverID == "" {
		return nil, errprocess.New(errprocess.KindValidation, "receiver id is required")
	}
	if req.ReceiverID == sender.MemberID {
		return nil, errprocess.New(errprocess.KindValidation, "cannot send message to yourself")
	}

	var msg *domain.Message
	if req.MessageID != "" {
		found, err := uc.msgRepo.FindByID(ctx, req.MessageID)
		if err != nil {
			return nil, err
		}
		if found.SenderID != sender.MemberID {
			return nil, errprocess.New(errprocess.KindPolicy, "message belongs to another sender")
		}
		if found.ReceiverID != req.ReceiverID {
			return nil, errprocess.New(errprocess.KindValidation, "receiver id does not match message")
		}
		if !found.IsEncrypted {
			return nil, errprocess.New(errprocess.KindPolicy, "message is not end-to-end encrypted")
		}
		msg = found
	} else {
		payload := strings.TrimSpace(req.Payload)
		// 長度以字元數計，不是 byte 數
		if n := utf8.RuneCountInString(payload); n < 1 || n > domain.MaxMessageLen {
			return nil, errprocess.New(errprocess.KindValidation, "message length must be between 1 and 5000")
		}
		if _, err := domain.ParseEnvelope(payload); err != nil {
			return nil, err
		}
		msg = &domain.Message{
			ID:          uuid.New().String(),
			SenderID:    sender.MemberID,
			ReceiverID:  req.ReceiverID,
			Body:        payload,
			IsEncrypted: true,
			Status:      domain.MessageNotDelivered,
		}
		if err := uc.msgRepo.Insert(ctx, msg); err != nil {
			return nil, err
		}
	}

	// 先讓 sender 的 typing 回 Idle，避免殘留的 typing 比訊息晚到
	uc.typing.ForceIdle(sender.MemberID)

	if uc.presence.IsOnline(msg.ReceiverID) {
		if err := uc.msgRepo.UpdateStatus(ctx, msg.ID, domain.MessageDelivered); err != nil {
			logger.Log.Errorf("mark message delivered failed:", err)
		} else {
			msg.Status = domain.MessageDelivered
		}
	}

	// 離線通知不能拖慢送信流程
	notice := domain.OfflineNotice{
		SenderName:     sender.Name,
		SenderEmail:    sender.Email,
		ReceiverID:     msg.ReceiverID,
		DisplayContent: domain.EncryptedDisplayMarker,
		IsEncrypted:    true,
		Envelope:       msg.Body,
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Log.Error(fmt.Sprintf("offline notify panic: %v", r))
			}
		}()
		uc.notifier.NotifyIfOffline(context.Background(), notice)
	}()

	// 只投遞到接收者自己的 delivery group
	resp := domain.WSResponse{
		Action:  domain.ActionReceiveMessage,
		Success: true,
		Payload: map[string]interface{}{
			"message_id":   msg.ID,
			"sender_id":    msg.SenderID,
			"body":         msg.Body,
			"is_encrypted": msg.IsEncrypted,
			"status":       msg.Status,
			"created_at":   msg.CreatedAt,
		},
	}
	if err := uc.groups.Publish(domain.UserChannel(msg.ReceiverID), resp); err != nil {
		// 訊息已保存，接收者之後仍可從歷史取得
		logger.Log.Errorf("deliver message "+msg.ID+" failed:", err)
	}

	return msg, nil
}

// MarkSeen 接收者標記已讀
func (uc *messageUseCase) MarkSeen(ctx context.Context, reader domain.Identity, messageID string) error {
	if messageID == "" {
		return errprocess.New(errprocess.KindValidation, "message id is required")
	}
	msg, err := uc.msgRepo.FindByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.ReceiverID != reader.MemberID {
		return errprocess.New(errprocess.KindPolicy, "only the receiver can mark a message as seen")
	}
	return uc.msgRepo.UpdateStatus(ctx, messageID, domain.MessageSeen)
}

// History 取兩人對話的最新訊息
func (uc *messageUseCase) History(ctx context.Context, userID, peerID string, limit int) ([]domain.Message, error) {
	if peerID == "" {
		return nil, errprocess.New(errprocess.KindValidation, "peer id is required")
	}
	return uc.msgRepo.FindConversation(ctx, userID, peerID, limit)
}
