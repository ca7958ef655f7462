package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"secure_chat_service/internal/chat/domain"
	"secure_chat_service/internal/chat/repository"
	"secure_chat_service/pkg/logger"
	"secure_chat_service/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChatWebsocketHandler 可包含所有需要的 UseCase
type ChatWebsocketHandler struct {
	registry  *SessionRegistry
	typing    *TypingNotifier
	messageUC MessageUseCase
	pubsub    *repository.RedisPubSub
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(
	registry *SessionRegistry,
	typing *TypingNotifier,
	messageUC MessageUseCase,
	pubsub *repository.RedisPubSub,
) *ChatWebsocketHandler {
	return &ChatWebsocketHandler{
		registry:  registry,
		typing:    typing,
		messageUC: messageUC,
		pubsub:    pubsub,
	}
}

// HandleConnection 是 WebSocket 連線的進入點
func (h *ChatWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	tokenMember := conn.Locals(middlewares.TokenMemberID)
	memberID, ok := tokenMember.(string)
	logger.Log.Info("websocket handle memberID", zap.String("userID", memberID), zap.String("ok", strconv.FormatBool(ok)))
	if !ok || memberID == "" {
		conn.Close()
		return
	}
	ident := domain.Identity{MemberID: memberID}
	if name, ok := conn.Locals(middlewares.TokenName).(string); ok {
		ident.Name = name
	}
	if email, ok := conn.Locals(middlewares.TokenEmail).(string); ok {
		ident.Email = email
	}

	connID := uuid.New().String()
	ticker := time.NewTicker(10 * time.Minute)
	ctxClose, cancel := context.WithCancel(context.Background())

	// subscribe goroutine 與 read loop 都會寫 conn，寫入需要互斥
	var writeMu sync.Mutex

	defer func() {
		ticker.Stop()
		logger.Log.Info("websocket close", zap.String("userID", memberID))
		// 斷線只取消 timer，不廣播 typing 結束
		h.typing.Cancel(memberID)
		h.registry.RemoveConnection(memberID, connID)
		conn.Close()
		cancel()
	}()

	//client發出close
	//fiber會自動處理(在read msg 回傳err),故需要SetCloseHandler另外接出
	conn.SetCloseHandler(func(code int, text string) error {
		logger.Log.Infof("WebSocket closed:", conn.RemoteAddr())
		return nil
	})

	//server發出ping之後client連線正常會回pong
	//fiber會自動處理回傳pong,故需要SetPongHandler另外接出
	conn.SetPongHandler(func(appData string) error {
		logger.Log.Infof("Received PONG:", appData)
		return nil
	})

	//client發出ping
	//fiber會自動處理ping,故需要SetPingHandler另外接出
	conn.SetPingHandler(func(appData string) error {
		logger.Log.Infof("Received PING:", appData)
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(appData),
			time.Now().Add(time.Second),
		)
	})

	//啟用sub訂閱自己的訊息與 presence 廣播
	h.pubsub.Subscribe(ctxClose, domain.UserChannel(memberID), func(payload []byte) {
		h.writeRaw(conn, &writeMu, payload)
	})
	h.pubsub.Subscribe(ctxClose, domain.PresenceChannel, func(payload []byte) {
		h.writeRaw(conn, &writeMu, payload)
	})

	h.registry.RegisterConnection(memberID, connID)

	// 連線建立後先推一次在線名單，不含自己
	h.sendResponse(conn, &writeMu, domain.WSResponse{
		Action:  domain.ActionPresenceSnapshot,
		Success: true,
		Payload: map[string]interface{}{
			"online": h.registry.Snapshot(memberID),
		},
	})

	// 定期發送 Ping
	go func() {
		for {
			select {
			case <-ticker.C:
				pingMsg := "ping message"
				writeMu.Lock()
				err := conn.WriteMessage(websocket.PingMessage, []byte(pingMsg))
				writeMu.Unlock()
				if err != nil {
					logger.Log.Errorf("Ping error:", err)
					return
				}
				logger.Log.Infof("%s Ping sent", memberID)
			case <-ctxClose.Done():
				logger.Log.Infof("Ping goroutine cancelled for member:", memberID)
				return
			}
		}
	}()

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			// 檢查是否為 Close 正常結束
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Errorf("Connection closed:", err)
			} else {
				//直接斷線 1006
				logger.Log.Errorf("websocket read error:", err)
			}
			return
		}
		h.execWebsocketAction(ctx, conn, &writeMu, ident, mt, message)
	}
}

func (h *ChatWebsocketHandler) execWebsocketAction(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex, ident domain.Identity, mt int, msg []byte) {
	switch mt {
	case websocket.TextMessage:
		h.textMessageAction(ctx, conn, writeMu, ident, msg)

	//! close ping pong fiber會自動處理，故需使用setHandler處理
	default:
		h.sendError(conn, writeMu, "unknown action")
	}
}

func (h *ChatWebsocketHandler) textMessageAction(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex, ident domain.Identity, msg []byte) {
	// 單一 action 處理失敗不能拖垮整條連線
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error(fmt.Sprintf("websocket action panic: %v", r))
			h.sendError(conn, writeMu, "internal error")
		}
	}()

	var req domain.WSRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		log.Printf("json unmarshal error: %v", err)
		h.sendError(conn, writeMu, "invalid request")
		return
	}

	resp := domain.WSResponse{Action: req.Action, Success: false, Payload: map[string]interface{}{}}
	switch req.Action {
	//送出訊息
	case domain.ActionSendMessage:
		m, err := h.messageUC.Send(ctx, ident, domain.SendMessageReq{
			SenderID:   req.SenderID,
			ReceiverID: req.ReceiverID,
			Payload:    req.Payload,
			MessageID:  req.MessageID,
		})
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
			resp.Payload = map[string]interface{}{
				"message_id": m.ID,
				"status":     m.Status,
			}
		}

	//輸入狀態
	case domain.ActionTyping:
		if req.ReceiverID == "" {
			resp.Error = "receiver id is required"
		} else {
			h.typing.Typing(ident.MemberID, req.ReceiverID, req.IsTyping)
			resp.Success = true
		}

	//已讀
	case domain.ActionMarkSeen:
		if err := h.messageUC.MarkSeen(ctx, ident, req.MessageID); err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
		}

	default:
		resp.Error = "unknown action"
	}

	h.sendResponse(conn, writeMu, resp)
}

func (h *ChatWebsocketHandler) sendResponse(conn *websocket.Conn, writeMu *sync.Mutex, resp domain.WSResponse) {
	b, _ := json.Marshal(resp)
	h.writeRaw(conn, writeMu, b)
}

func (h *ChatWebsocketHandler) writeRaw(conn *websocket.Conn, writeMu *sync.Mutex, payload []byte) {
	writeMu.Lock()
	defer writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		logger.Log.Errorf("write message error:", err)
	}
}

func (h *ChatWebsocketHandler) sendError(conn *websocket.Conn, writeMu *sync.Mutex, errorMsg string) {
	resp := domain.WSResponse{
		Action:  "error",
		Success: false,
		Payload: map[string]interface{}{
			"error": errorMsg,
		},
	}
	h.sendResponse(conn, writeMu, resp)
}
