package repository

import (
	"context"
	"encoding/json"

	"secure_chat_service/internal/chat/domain"
	errprocess "secure_chat_service/pkg/err"

	"github.com/segmentio/kafka-go"
)

// KafkaWriter definition kafka writer function
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaNotificationPublisher 將離線通知事件寫入 kafka topic
type KafkaNotificationPublisher struct {
	writer KafkaWriter
}

// NewKafkaNotificationPublisher create KafkaNotificationPublisher
func NewKafkaNotificationPublisher(writer KafkaWriter) *KafkaNotificationPublisher {
	return &KafkaNotificationPublisher{writer: writer}
}

// Publish publish notification event,
// key 用 receiver id 讓同一接收者的事件落在同個 partition
func (p *KafkaNotificationPublisher) Publish(ctx context.Context, ev domain.NotificationEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errprocess.Set("marshal notification event failed: " + err.Error())
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.ReceiverID),
		Value: data,
	})
}
