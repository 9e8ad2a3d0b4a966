// Package notifier publishes terminal registration outcomes to the message queue.
package notifier

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"shortener-core/internal/event"
	"shortener-core/internal/service/mq"
	"shortener-core/internal/service/registration"
	"shortener-core/pkg/errno"
	"shortener-core/pkg/logger"
	"shortener-core/pkg/urlbody"
)

const defaultBuffer = 64

// Notifier 观察状态机, 把 Resolved / Failed 转换成 RegistrationEvent 异步投递
// Observe 在状态机的调用栈上执行, 不能阻塞
type Notifier struct {
	producer mq.Producer
	topic    string
	baseURL  string
	queue    chan event.RegistrationEvent
}

func New(producer mq.Producer, topic, baseURL string) *Notifier {
	return &Notifier{
		producer: producer,
		topic:    topic,
		baseURL:  baseURL,
		queue:    make(chan event.RegistrationEvent, defaultBuffer),
	}
}

// Observe is a registration.Machine observer.
func (n *Notifier) Observe(s registration.Snapshot) {
	evt, ok := n.toEvent(s)
	if !ok {
		return
	}
	select {
	case n.queue <- evt:
	default:
		logger.Warn("事件队列已满, 丢弃事件", zap.String("type", evt.Type), zap.String("attempt", evt.AttemptID))
	}
}

func (n *Notifier) toEvent(s registration.Snapshot) (event.RegistrationEvent, bool) {
	evt := event.RegistrationEvent{
		AttemptID:  s.AttemptID,
		URLBody:    s.URLBody,
		TxHash:     s.TxHash,
		OccurredAt: time.Now().UTC(),
	}
	switch s.State {
	case registration.Resolved:
		evt.Type = event.TypeRegistrationResolved
		evt.Key = s.Key
		if n.baseURL != "" {
			evt.ShortURL = urlbody.ShortURL(n.baseURL, s.Key)
		}
	case registration.Failed:
		evt.Type = event.TypeRegistrationFailed
		evt.Code, evt.Error = errno.Decode(s.Err)
	default:
		return evt, false
	}
	return evt, true
}

// Run 消费队列直到 ctx 取消, 退出前尽量发送剩余事件
func (n *Notifier) Run(ctx context.Context) {
	logger.Info("事件通知器启动", zap.String("topic", n.topic))
	for {
		select {
		case evt := <-n.queue:
			n.publish(ctx, evt)
		case <-ctx.Done():
			n.drain()
			return
		}
	}
}

func (n *Notifier) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case evt := <-n.queue:
			n.publish(ctx, evt)
		default:
			return
		}
	}
}

func (n *Notifier) publish(ctx context.Context, evt event.RegistrationEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		logger.Error("事件序列化失败", zap.Error(err))
		return
	}
	if err := n.producer.Publish(ctx, n.topic, evt.URLBody, payload); err != nil {
		logger.Error("事件发送失败", zap.String("type", evt.Type), zap.String("attempt", evt.AttemptID), zap.Error(err))
		return
	}
	logger.Debug("事件已发送", zap.String("type", evt.Type), zap.String("attempt", evt.AttemptID))
}
