package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"shortener-core/pkg/logger"
)

// RedisConsumer 基于 Consumer Group 的 Redis Streams 消费者
type RedisConsumer struct {
	client     *redis.Client
	group      string
	name       string
	retryDelay time.Duration // 读取出错后的等待时间
}

func NewRedisConsumer(client *redis.Client, group, name string) *RedisConsumer {
	return &RedisConsumer{
		client:     client,
		group:      group,
		name:       name,
		retryDelay: time.Second,
	}
}

func (c *RedisConsumer) Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error {
	// 1. 创建 Consumer Group (如果不存在)
	err := c.client.XGroupCreateMkStream(ctx, topic, c.group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("创建消费者组失败: %w", err)
	}
	logger.Info("[Redis MQ] 开始监听主题", zap.String("topic", topic), zap.String("group", c.group))

	for {
		// 2. 阻塞读取
		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.name,
			Streams:  []string{topic, ">"},
			Count:    10,
			Block:    2 * time.Second,
		}).Result()
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			logger.Warn("[Redis MQ] 读取消息错误", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryDelay):
			}
			continue
		}

		// 3. 处理并确认
		for _, stream := range streams {
			for _, x := range stream.Messages {
				payload, _ := x.Values["payload"].(string)
				key, _ := x.Values["key"].(string)
				msg := &Message{ID: x.ID, Topic: topic, Key: key, Payload: []byte(payload)}
				if err := handler(msg); err != nil {
					logger.Warn("[Redis MQ] 消息处理失败", zap.String("id", x.ID), zap.Error(err))
					continue
				}
				c.client.XAck(ctx, topic, c.group, x.ID)
			}
		}
	}
}

// Close is a no-op; the client is owned by the caller.
func (c *RedisConsumer) Close() error {
	return nil
}
