package app

import (
	"context"

	"secure_chat_service/internal/keys/domain"
	errprocess "secure_chat_service/pkg/err"
	"secure_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
)

// PreKeyHandler 处理金鑰相关的 HTTP 请求
type PreKeyHandler struct {
	Usecase PreKeyUseCase
}

// NewPreKeyHandler create PreKeyHandler
func NewPreKeyHandler(usecase PreKeyUseCase) *PreKeyHandler {
	return &PreKeyHandler{Usecase: usecase}
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

// Publish 上傳金鑰包，只能上傳自己的
func (h *PreKeyHandler) Publish(c *fiber.Ctx) error {
	var req domain.PublishBundleReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	memberID, _ := c.Locals(middlewares.TokenMemberID).(string)
	if req.UserID == "" {
		req.UserID = memberID
	}
	if req.UserID != memberID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "cannot publish keys for another user"})
	}

	if err := h.Usecase.Publish(context.Background(), req, c.IP()); err != nil {
		return c.Status(statusOf(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "bundle published"})
}

// Consume 取目標 user 的金鑰包並消耗一把 one-time key
func (h *PreKeyHandler) Consume(c *fiber.Ctx) error {
	targetUserID := c.Params("userID")

	bundle, err := h.Usecase.ConsumeBundle(context.Background(), targetUserID, c.IP())
	if err != nil {
		return c.Status(statusOf(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(bundle)
}

// Backup 存放加密金鑰備份
func (h *PreKeyHandler) Backup(c *fiber.Ctx) error {
	var req domain.EncryptedBackupReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	memberID, _ := c.Locals(middlewares.TokenMemberID).(string)
	if err := h.Usecase.StoreEncryptedBackup(context.Background(), memberID, req, c.IP()); err != nil {
		return c.Status(statusOf(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "backup stored"})
}
