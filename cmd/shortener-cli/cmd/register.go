package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"shortener-core/internal/service/registration"
	"shortener-core/internal/service/transaction"
	"shortener-core/pkg/config"
	"shortener-core/pkg/errno"
	"shortener-core/pkg/units"
	"shortener-core/pkg/urlbody"
)

var registerCmd = &cobra.Command{
	Use:   "register <url>",
	Short: "登记 URL 并等待短码",
	Long:  `先检查 URL 是否已经登记; 未登记时估算 gas、发送交易并等待确认, 最后输出短链。`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		comps, err := connect(ctx, true)
		if err != nil {
			return err
		}
		defer comps.Close()

		comps.Machine.Subscribe(func(s registration.Snapshot) {
			switch s.State {
			case registration.Submitting:
				fmt.Println("⏳ 提交交易...")
			case registration.AwaitingConfirmation:
				fmt.Printf("⏳ 等待确认 tx=%s\n", s.TxHash)
			}
		})

		out, err := comps.Machine.Register(ctx, args[0])
		if errors.Is(err, errno.ErrAlreadyRegistered) {
			fmt.Printf("该 URL 已登记: %s\n", urlbody.ShortURL(config.Global.App.PublicBaseURL, out.Key))
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Println("✅ 登记成功")
		fmt.Printf("Short URL: %s\n", urlbody.ShortURL(config.Global.App.PublicBaseURL, out.Key))
		fmt.Printf("Key:       %s\n", out.Key)
		fmt.Printf("Tx:        %s\n", out.TxHash)
		return nil
	},
}

var estimateCmd = &cobra.Command{
	Use:   "estimate <url>",
	Short: "估算登记 URL 的费用 (不发送交易)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		comps, err := connect(ctx, true)
		if err != nil {
			return err
		}
		defer comps.Close()

		body := urlbody.Normalize(args[0])
		gas, err := comps.Controller.EstimateCost(ctx, comps.Session, body)
		if err != nil {
			return err
		}
		price, err := comps.Gateway.GasPrice(ctx)
		if err != nil {
			return errno.Wrap(errno.ErrGatewayUnavailable, err)
		}
		limit := transaction.GasLimit(gas)
		fmt.Printf("Estimated gas: %d (limit %d)\n", gas, limit)
		fmt.Printf("Gas price:     %s gwei\n", units.ToGwei(price))
		fmt.Printf("Max fee:       %s ETH\n", units.ToEther(units.FeeWei(limit, price)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(estimateCmd)
}
