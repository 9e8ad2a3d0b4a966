package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"shortener-core/internal/bootstrap"
	"shortener-core/internal/handler"
	"shortener-core/internal/server"
	"shortener-core/internal/service/notifier"
	"shortener-core/internal/service/tracker"
	"shortener-core/pkg/config"
	"shortener-core/pkg/logger"
	"shortener-core/pkg/monitor"
)

func main() {
	// 0. 初始化 Config
	config.Init(os.Getenv("SHORTENER_CONFIG"))

	// 1. 初始化 Logger
	logger.Init(config.Global.App.Env, config.Global.App.LogLevel)
	defer logger.Sync()

	// 监控指标需在任何后台 worker 启动前就绪
	monitor.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. 节点 / 缓存 / 存储 / 会话 / 服务
	comps, err := bootstrap.Build(ctx, config.Global)
	if err != nil {
		logger.Fatal("初始化失败", zap.Error(err))
	}
	defer comps.Close()

	// 3. 事件通知
	producer, err := bootstrap.NewProducer(config.Global, comps.Redis)
	if err != nil {
		logger.Fatal("初始化 MQ 失败", zap.Error(err))
	}
	n := notifier.New(producer, config.Global.Kafka.Topic, config.Global.App.PublicBaseURL)
	comps.Machine.Subscribe(n.Observe)
	notifierDone := make(chan struct{})
	go func() {
		n.Run(ctx)
		close(notifierDone)
	}()

	// 4. 恢复上次未确认的交易 (仅持久化存储时有意义)
	tr := tracker.New(comps.Controller, bootstrap.ConfirmPolicy(config.Global.Tx), 4)
	if config.Global.DB.Enabled {
		if err := tr.Start(ctx); err != nil {
			logger.Error("恢复 pending 交易失败", zap.Error(err))
		}
	}

	// 5. HTTP
	h := handler.NewShortenerHandler(ctx, comps.Controller, comps.Machine, config.Global.App.PublicBaseURL)
	app := server.New(server.Config{HttpPort: config.Global.App.HttpPort}, server.NewHTTPRouter(h))
	app.OnStop(func() {
		cancel()
		tr.Wait()
		<-notifierDone
		if err := producer.Close(); err != nil {
			logger.Warn("关闭 MQ 失败", zap.Error(err))
		}
	})

	// 6. 启动 (阻塞直到收到退出信号)
	app.Run(ctx)
}
