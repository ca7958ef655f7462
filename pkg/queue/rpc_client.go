package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"secure_chat_service/pkg/database"
	"secure_chat_service/pkg/logger"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

// DefaultRPCTimeout 無回覆時 Request 回傳 nil 的等待時間
const DefaultRPCTimeout = 5 * time.Second

// pendingRequest 等待回覆的請求，reply 與 timeout 只會有一個成功認領
type pendingRequest struct {
	done  chan []byte
	timer *time.Timer
}

// RPCClient 以 correlation id 配對 request/reply 的 queue RPC 客戶端
type RPCClient struct {
	ch           database.AMQPChannel
	requestQueue string
	replyQueue   string
	timeout      time.Duration

	mu      sync.Mutex
	pending map[string]*pendingRequest
}

// NewRPCClient 宣告 request queue 與專屬 reply queue，並啟動回覆消費迴圈
func NewRPCClient(ch database.AMQPChannel, requestQueue string, timeout time.Duration) (*RPCClient, error) {
	if timeout <= 0 {
		timeout = DefaultRPCTimeout
	}

	if _, err := ch.QueueDeclare(
		requestQueue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare request queue %s: %w", requestQueue, err)
	}

	// 專屬 reply queue，名稱由 server 產生
	reply, err := ch.QueueDeclare(
		"",
		false, // durable
		true,  // autoDelete
		true,  // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare reply queue: %w", err)
	}

	deliveries, err := ch.Consume(
		reply.Name,
		"",   // consumer tag 由系統分配
		true, // autoAck
		true, // exclusive
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume reply queue %s: %w", reply.Name, err)
	}

	c := &RPCClient{
		ch:           ch,
		requestQueue: requestQueue,
		replyQueue:   reply.Name,
		timeout:      timeout,
		pending:      make(map[string]*pendingRequest),
	}

	go c.consumeReplies(deliveries)

	return c, nil
}

// Request 發送請求並等待回覆，逾時回傳 (nil, nil) 讓呼叫端降級處理
func (c *RPCClient) Request(ctx context.Context, payload []byte) ([]byte, error) {
	corrID := uuid.New().String()

	entry := &pendingRequest{
		done: make(chan []byte, 1),
	}
	// 先註冊再發送，避免回覆比註冊先到
	c.mu.Lock()
	c.pending[corrID] = entry
	c.mu.Unlock()

	// timer 要在註冊之後才上，否則到期時 claim 不到 entry
	// timer 到期與 reply 消費者競爭同一個 entry，claim 保證只有一方成功
	entry.timer = time.AfterFunc(c.timeout, func() {
		if e := c.claim(corrID); e != nil {
			e.done <- nil
		}
	})

	if err := c.ch.Publish(
		"", // default exchange
		c.requestQueue,
		false,
		false,
		amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: corrID,
			ReplyTo:       c.replyQueue,
			Body:          payload,
		},
	); err != nil {
		if e := c.claim(corrID); e != nil {
			e.timer.Stop()
		}
		return nil, fmt.Errorf("publish rpc request: %w", err)
	}

	select {
	case body := <-entry.done:
		if body == nil {
			logger.Log.Warn(fmt.Sprintf("rpc request %s timed out after %s", corrID, c.timeout))
			return nil, nil
		}
		return body, nil
	case <-ctx.Done():
		if e := c.claim(corrID); e != nil {
			e.timer.Stop()
			return nil, ctx.Err()
		}
		// 已有一方完成認領，把結果取回
		body := <-entry.done
		if body == nil {
			return nil, nil
		}
		return body, nil
	}
}

// PendingCount 目前未解決的請求數，測試用
func (c *RPCClient) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// claim 原子性取出並移除 pending entry，第二次認領同一 id 會得到 nil
func (c *RPCClient) claim(corrID string) *pendingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.pending[corrID]
	if !ok {
		return nil
	}
	delete(c.pending, corrID)
	return e
}

func (c *RPCClient) consumeReplies(deliveries <-chan amqp.Delivery) {
	for d := range deliveries {
		entry := c.claim(d.CorrelationId)
		if entry == nil {
			// 過期、重複或已被 timeout 認領的回覆，靜默丟棄
			continue
		}
		entry.timer.Stop()

		body := make([]byte, len(d.Body))
		copy(body, d.Body)
		entry.done <- body
	}
	logger.Log.Warn("rpc reply channel closed")
}
