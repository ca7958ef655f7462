package router

import (
	"secure_chat_service/internal/keys/app"
	"secure_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes 注册金鑰相关的路由
func RegisterRoutes(r *fiber.App, preKeyHandler *app.PreKeyHandler) {
	r.Use(middlewares.JWTMiddleware())

	keys := r.Group("/keys")
	keys.Post("/bundle", preKeyHandler.Publish)
	keys.Get("/bundle/:userID", preKeyHandler.Consume)
	keys.Post("/backup", preKeyHandler.Backup)
}
