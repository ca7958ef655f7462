package router

import (
	"context"

	"secure_chat_service/internal/chat/app"
	"secure_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes 注册聊天相关的路由
func RegisterRoutes(r *fiber.App, chatWebsocket *app.ChatWebsocketHandler, messageHandler *app.MessageHandler) {
	r.Use(middlewares.JWTMiddleware())

	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		chatWebsocket.HandleConnection(context.Background(), c)
	}))

	messages := r.Group("/messages")
	messages.Post("/", messageHandler.Send)
	messages.Get("/:peerID", messageHandler.History)
	messages.Post("/:messageID/seen", messageHandler.MarkSeen)
}
