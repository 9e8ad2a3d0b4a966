package bootstrap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortener-core/internal/service/mq"
	"shortener-core/internal/service/registration"
	"shortener-core/internal/service/transaction"
	"shortener-core/pkg/config"
)

func TestMachineConfig(t *testing.T) {
	tx := config.TxConfig{
		PollInterval:       100 * time.Millisecond,
		PollMaxInterval:    5 * time.Second,
		PollMultiplier:     1.5,
		ConfirmTimeout:     10 * time.Minute,
		ResolveDelay:       200 * time.Millisecond,
		ResolveMaxAttempts: 50,
	}

	cfg := MachineConfig(tx)
	assert.Equal(t, 100*time.Millisecond, cfg.Confirm.Interval)
	assert.Equal(t, 10*time.Minute, cfg.Confirm.Timeout)
	assert.True(t, cfg.Confirm.WaitFirst)
	assert.Equal(t, 200*time.Millisecond, cfg.Resolve.Interval)
	assert.Equal(t, 50, cfg.Resolve.MaxAttempts)
	assert.Greater(t, cfg.LockTTL, tx.ConfirmTimeout)
}

func TestMachineConfigZeroValuesStayBounded(t *testing.T) {
	cfg := MachineConfig(config.TxConfig{})

	def := registration.DefaultConfig()
	assert.Equal(t, def.Resolve.Interval, cfg.Resolve.Interval)
	assert.Equal(t, def.Resolve.MaxAttempts, cfg.Resolve.MaxAttempts)
	assert.Positive(t, cfg.Resolve.Interval)
	assert.GreaterOrEqual(t, cfg.Resolve.MaxAttempts, 1)

	want := transaction.DefaultConfirmPolicy()
	assert.Equal(t, want, cfg.Confirm)
	assert.Positive(t, cfg.Confirm.Timeout)
	assert.Greater(t, cfg.LockTTL, cfg.Confirm.Timeout)

	negative := MachineConfig(config.TxConfig{ResolveDelay: -time.Second, ResolveMaxAttempts: -3, ConfirmTimeout: -time.Minute})
	assert.Equal(t, def.Resolve.Interval, negative.Resolve.Interval)
	assert.Equal(t, def.Resolve.MaxAttempts, negative.Resolve.MaxAttempts)
	assert.Equal(t, want.Timeout, negative.Confirm.Timeout)
}

func TestNewProducer(t *testing.T) {
	var cfg config.Config

	p, err := NewProducer(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, mq.NopProducer{}, p)

	cfg.Redis.MQType = "redis"
	_, err = NewProducer(cfg, nil)
	assert.Error(t, err)

	cfg.Redis.MQType = "kafka"
	cfg.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Kafka.Topic = "t"
	p, err = NewProducer(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &mq.KafkaProducer{}, p)
	require.NoError(t, p.Close())

	cfg.Redis.MQType = "nats"
	_, err = NewProducer(cfg, nil)
	assert.Error(t, err)
}

func TestNewConsumer(t *testing.T) {
	var cfg config.Config

	_, err := NewConsumer(cfg, nil, "g", "c1")
	assert.Error(t, err, "none has no consumer")

	cfg.Redis.MQType = "kafka"
	c, err := NewConsumer(cfg, nil, "g", "c1")
	require.NoError(t, err)
	assert.IsType(t, &mq.KafkaConsumer{}, c)
	assert.NoError(t, c.Close())
}
