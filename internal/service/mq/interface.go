package mq

import "context"

// Message 代表一条通用的业务消息
type Message struct {
	ID      string // Redis Stream ID 或 Kafka partition/offset
	Topic   string
	Key     string
	Payload []byte // JSON
}

// Producer 生产者接口
type Producer interface {
	// Publish 发送消息
	// key: 分区键, 这里使用 url body, 保证同一 url 的事件有序
	Publish(ctx context.Context, topic string, key string, payload []byte) error
	Close() error
}

// Consumer 消费者接口
type Consumer interface {
	// Subscribe 阻塞消费 topic 直到 ctx 取消
	// handler 返回 error 时消息不确认
	Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error
	Close() error
}

// NopProducer 丢弃所有消息, mq_type=none 时使用
type NopProducer struct{}

func (NopProducer) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	return nil
}

func (NopProducer) Close() error { return nil }
