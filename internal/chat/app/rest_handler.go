package app

import (
	"context"

	"secure_chat_service/internal/chat/domain"
	errprocess "secure_chat_service/pkg/err"
	"secure_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
)

// MessageHandler 处理訊息相关的 HTTP 请求
type MessageHandler struct {
	messageUC MessageUseCase
}

// NewMessageHandler create MessageHandler
func NewMessageHandler(messageUC MessageUseCase) *MessageHandler {
	return &MessageHandler{messageUC: messageUC}
}

func identityFromLocals(c *fiber.Ctx) domain.Identity {
	ident := domain.Identity{}
	if v, ok := c.Locals(middlewares.TokenMemberID).(string); ok {
		ident.MemberID = v
	}
	if v, ok := c.Locals(middlewares.TokenName).(string); ok {
		ident.Name = v
	}
	if v, ok := c.Locals(middlewares.TokenEmail).(string); ok {
		ident.Email = v
	}
	return ident
}

func statusOf(err error) int {
	switch errprocess.KindOf(err) {
	case errprocess.KindValidation:
		return fiber.StatusBadRequest
	case errprocess.KindPolicy:
		return fiber.StatusForbidden
	case errprocess.KindAuth:
		return fiber.StatusUnauthorized
	case errprocess.KindNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// Send 以 REST 送出訊息，語意與 websocket send_message 相同
func (h *MessageHandler) Send(c *fiber.Ctx) error {
	var req domain.SendMessageReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	ident := identityFromLocals(c)
	m, err := h.messageUC.Send(context.Background(), ident, req)
	if err != nil {
		return c.Status(statusOf(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message_id": m.ID, "status": m.Status})
}

// History 取與 peer 的對話紀錄
func (h *MessageHandler) History(c *fiber.Ctx) error {
	ident := identityFromLocals(c)
	peerID := c.Params("peerID")
	limit := c.QueryInt("limit", 50)

	messages, err := h.messageUC.History(context.Background(), ident.MemberID, peerID, limit)
	if err != nil {
		return c.Status(statusOf(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"messages": messages})
}

// MarkSeen 標記訊息已讀
func (h *MessageHandler) MarkSeen(c *fiber.Ctx) error {
	ident := identityFromLocals(c)
	messageID := c.Params("messageID")

	if err := h.messageUC.MarkSeen(context.Background(), ident, messageID); err != nil {
		return c.Status(statusOf(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "seen"})
}
