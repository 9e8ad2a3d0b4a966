package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"shortener-core/internal/bootstrap"
	"shortener-core/internal/event"
	"shortener-core/internal/service/mq"
	"shortener-core/pkg/config"
	"shortener-core/pkg/database"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "实时输出注册结果事件 (需要 redis.mq_type 为 redis 或 kafka)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		group, _ := cmd.Flags().GetString("group")

		var rdb *redis.Client
		if config.Global.Redis.MQType == "redis" {
			var err error
			rdb, err = database.ConnectRedis(config.Global.Redis.Addr, config.Global.Redis.Password, config.Global.Redis.DB)
			if err != nil {
				return err
			}
			defer rdb.Close()
		}

		host, _ := os.Hostname()
		consumer, err := bootstrap.NewConsumer(config.Global, rdb, group, host)
		if err != nil {
			return err
		}
		defer consumer.Close()

		return consumer.Subscribe(ctx, config.Global.Kafka.Topic, func(msg *mq.Message) error {
			var evt event.RegistrationEvent
			if err := json.Unmarshal(msg.Payload, &evt); err != nil {
				fmt.Printf("无法解析事件 %s: %v\n", msg.ID, err)
				return nil
			}
			switch evt.Type {
			case event.TypeRegistrationResolved:
				fmt.Printf("%s ✅ %s -> %s\n", evt.OccurredAt.Format("15:04:05"), evt.URLBody, evt.ShortURL)
			default:
				fmt.Printf("%s ❌ %s [%d] %s\n", evt.OccurredAt.Format("15:04:05"), evt.URLBody, evt.Code, evt.Error)
			}
			return nil
		})
	},
}

func init() {
	eventsCmd.Flags().String("group", "shortener-cli", "消费组")
	rootCmd.AddCommand(eventsCmd)
}
