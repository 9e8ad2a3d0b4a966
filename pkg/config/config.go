package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App   AppConfig   `mapstructure:"app"`
	Chain ChainConfig `mapstructure:"chain"`
	Tx    TxConfig    `mapstructure:"tx"`
	Cache CacheConfig `mapstructure:"cache"`
	DB    DBConfig    `mapstructure:"db"`
	Redis RedisConfig `mapstructure:"redis"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type AppConfig struct {
	Env           string `mapstructure:"env"`
	LogLevel      string `mapstructure:"log_level"`
	HttpPort      string `mapstructure:"http_port"`
	PublicBaseURL string `mapstructure:"public_base_url"` // 短链前缀, 例如 https://short.example/
}

type ChainConfig struct {
	RpcUrl            string `mapstructure:"rpc_url"`
	ArtifactPath      string `mapstructure:"artifact_path"`       // 合约 ABI + 各网络部署地址
	ExpectedNetworkID string `mapstructure:"expected_network_id"` // 只有该网络允许写入
	KeystorePath      string `mapstructure:"keystore_path"`       // 为空则使用节点托管账户 (eth_accounts)
	Password          string `mapstructure:"password"`            // 通常通过环境变量 CHAIN_PASSWORD 传入
	IdentityPolicy    string `mapstructure:"identity_policy"`     // "snapshot" or "recheck"
}

type TxConfig struct {
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	PollMaxInterval    time.Duration `mapstructure:"poll_max_interval"`
	PollMultiplier     float64       `mapstructure:"poll_multiplier"`
	ConfirmTimeout     time.Duration `mapstructure:"confirm_timeout"`
	ResolveDelay       time.Duration `mapstructure:"resolve_delay"`
	ResolveMaxAttempts int           `mapstructure:"resolve_max_attempts"`
}

type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	LocalTTL time.Duration `mapstructure:"local_ttl"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type DBConfig struct {
	Enabled  bool   `mapstructure:"enabled"` // 开启后 PendingRequest 持久化到 Postgres
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MQType   string `mapstructure:"mq_type"` // "redis", "kafka" or "none"
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

var Global Config

// Init loads config.yaml (if any), environment overrides and defaults into Global.
// path 非空时直接读取该文件
func Init(path string) {
	v := viper.GetViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := Load(v); err != nil {
		log.Fatalf("Fatal error config file: %s \n", err)
	}

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

// Load reads v into Global. A missing config file is not an error.
func Load(v *viper.Viper) error {
	// 环境变量设置
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			return err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return err
	}
	Global = cfg
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.http_port", "8080")
	v.SetDefault("app.public_base_url", "http://localhost:8080/")

	v.SetDefault("chain.rpc_url", "http://localhost:8545")
	v.SetDefault("chain.artifact_path", "artifact.json")
	v.SetDefault("chain.expected_network_id", "3")
	v.SetDefault("chain.identity_policy", "snapshot")
	v.SetDefault("chain.keystore_path", "")
	v.SetDefault("chain.password", "")

	v.SetDefault("tx.poll_interval", 100*time.Millisecond)
	v.SetDefault("tx.poll_max_interval", 5*time.Second)
	v.SetDefault("tx.poll_multiplier", 1.5)
	v.SetDefault("tx.confirm_timeout", 10*time.Minute)
	v.SetDefault("tx.resolve_delay", 200*time.Millisecond)
	v.SetDefault("tx.resolve_max_attempts", 50)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.local_ttl", time.Minute)
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "shortener")
	v.SetDefault("db.password", "shortener")
	v.SetDefault("db.name", "shortener")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.mq_type", "none")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "shortener_events_registration")
}
