package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"secure_chat_service/pkg/logger"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
)

// fakeChannel 模擬 AMQPChannel，發布後可由測試決定何時回覆
type fakeChannel struct {
	mu         sync.Mutex
	deliveries chan amqp.Delivery
	published  []amqp.Publishing
	onPublish  func(p amqp.Publishing)
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{deliveries: make(chan amqp.Delivery, 8)}
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	if name == "" {
		name = "amq.gen-test-reply"
	}
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	f.published = append(f.published, msg)
	cb := f.onPublish
	f.mu.Unlock()
	if cb != nil {
		cb(msg)
	}
	return nil
}

func (f *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return f.deliveries, nil
}

func TestMain(m *testing.M) {
	logger.SetNewNop()
	m.Run()
}

// 回覆在逾時前到達，拿到真實回覆且 pending 清空
func TestRPCClient_RequestReply(t *testing.T) {
	ch := newFakeChannel()
	// 發布後立即回覆，同時驗證「先註冊再發送」：此刻 entry 必須已存在
	ch.onPublish = func(p amqp.Publishing) {
		ch.deliveries <- amqp.Delivery{CorrelationId: p.CorrelationId, Body: []byte(`{"name":"u2"}`)}
	}

	c, err := NewRPCClient(ch, "rpc.member", time.Second)
	assert.NoError(t, err)

	body, err := c.Request(context.Background(), []byte(`{"member_id":"u2"}`))
	assert.NoError(t, err)
	assert.Equal(t, `{"name":"u2"}`, string(body))
	assert.Equal(t, 0, c.PendingCount())
}

// 無人回覆時在 timeout 後得到 nil，pending 清空
func TestRPCClient_RequestTimeout(t *testing.T) {
	ch := newFakeChannel()

	c, err := NewRPCClient(ch, "rpc.member", 50*time.Millisecond)
	assert.NoError(t, err)

	start := time.Now()
	body, err := c.Request(context.Background(), []byte(`{}`))
	assert.NoError(t, err)
	assert.Nil(t, body)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, 0, c.PendingCount())
}

// 重複回覆只觸發一次，第二份靜默丟棄
func TestRPCClient_DuplicateReplyDiscarded(t *testing.T) {
	ch := newFakeChannel()
	ch.onPublish = func(p amqp.Publishing) {
		ch.deliveries <- amqp.Delivery{CorrelationId: p.CorrelationId, Body: []byte("first")}
		ch.deliveries <- amqp.Delivery{CorrelationId: p.CorrelationId, Body: []byte("second")}
	}

	c, err := NewRPCClient(ch, "rpc.member", time.Second)
	assert.NoError(t, err)

	body, err := c.Request(context.Background(), []byte(`{}`))
	assert.NoError(t, err)
	assert.Equal(t, "first", string(body))

	// 讓消費迴圈把第二份處理掉
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, c.PendingCount())
}

// 逾時後才抵達的回覆不觸發任何 callback
func TestRPCClient_LateReplyDiscarded(t *testing.T) {
	ch := newFakeChannel()

	c, err := NewRPCClient(ch, "rpc.member", 30*time.Millisecond)
	assert.NoError(t, err)

	body, err := c.Request(context.Background(), []byte(`{}`))
	assert.NoError(t, err)
	assert.Nil(t, body)

	ch.mu.Lock()
	corrID := ch.published[0].CorrelationId
	ch.mu.Unlock()

	ch.deliveries <- amqp.Delivery{CorrelationId: corrID, Body: []byte("late")}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, c.PendingCount())
}

// timeout 短到幾乎立即到期時，timer 也必須 claim 得到已註冊的 entry，
// Request 正常回傳 (nil, nil) 而不是卡死等 ctx
func TestRPCClient_ImmediateTimeout(t *testing.T) {
	ch := newFakeChannel()

	c, err := NewRPCClient(ch, "rpc.member", time.Nanosecond)
	assert.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 50; i++ {
		body, err := c.Request(ctx, []byte(`{}`))
		assert.NoError(t, err)
		assert.Nil(t, body)
	}
	assert.Equal(t, 0, c.PendingCount())
}

// 請求帶有 correlation id 與 reply queue metadata
func TestRPCClient_PublishMetadata(t *testing.T) {
	ch := newFakeChannel()
	ch.onPublish = func(p amqp.Publishing) {
		ch.deliveries <- amqp.Delivery{CorrelationId: p.CorrelationId, Body: []byte("ok")}
	}

	c, err := NewRPCClient(ch, "rpc.member", time.Second)
	assert.NoError(t, err)

	_, err = c.Request(context.Background(), []byte(`{}`))
	assert.NoError(t, err)

	ch.mu.Lock()
	defer ch.mu.Unlock()
	assert.Len(t, ch.published, 1)
	assert.NotEmpty(t, ch.published[0].CorrelationId)
	assert.Equal(t, "amq.gen-test-reply", ch.published[0].ReplyTo)
}
