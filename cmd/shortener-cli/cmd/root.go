package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"shortener-core/internal/bootstrap"
	"shortener-core/pkg/config"
	"shortener-core/pkg/logger"
)

var cfgFile string

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "shortener-cli",
	Short: "链上短链命令行工具",
	Long: `把 URL 登记到以太坊合约上换取短码, 或把短码解析回原始 URL。
写操作需要节点托管账户或本地 keystore, 且只能在配置的网络上进行。`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.Init(cfgFile)
		logger.Init(config.Global.App.Env, config.Global.App.LogLevel)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute 将所有子命令添加到根命令并设置标志
// Ctrl-C 取消正在进行的轮询
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径 (默认 ./config.yaml)")
}

// connect 按配置初始化组件. 只读命令不解密 keystore
func connect(ctx context.Context, write bool) (*bootstrap.Components, error) {
	cfg := config.Global
	if !write {
		cfg.Chain.KeystorePath = ""
	} else if cfg.Chain.KeystorePath != "" && cfg.Chain.Password == "" {
		password, err := promptPassword()
		if err != nil {
			return nil, err
		}
		cfg.Chain.Password = password
	}
	return bootstrap.Build(ctx, cfg)
}

func promptPassword() (string, error) {
	fmt.Print("请输入 Keystore 密码: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("读取密码失败: %w", err)
	}
	return string(bytePassword), nil
}
