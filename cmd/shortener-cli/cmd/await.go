package cmd

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"shortener-core/internal/bootstrap"
	"shortener-core/pkg/config"
	"shortener-core/pkg/errno"
)

var awaitCmd = &cobra.Command{
	Use:   "await <tx-hash>",
	Short: "继续等待已发送交易的回执",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if !isTxHash(args[0]) {
			return fmt.Errorf("invalid tx hash %q", args[0])
		}
		comps, err := connect(ctx, false)
		if err != nil {
			return err
		}
		defer comps.Close()

		hash := common.HexToHash(args[0])
		if req, err := comps.Store.Get(ctx, hash.Hex()); err == nil {
			fmt.Printf("⏳ 等待确认 url=%s gas_limit=%d\n", req.URLBody, req.GasLimit)
		}

		policy := bootstrap.ConfirmPolicy(config.Global.Tx)
		r, err := comps.Controller.AwaitConfirmation(ctx, hash, policy)
		if errors.Is(err, errno.ErrReverted) {
			fmt.Printf("❌ 交易执行失败 block=%d gas_used=%d\n", r.BlockNumber, r.GasUsed)
			return err
		}
		if err != nil {
			return err
		}
		fmt.Printf("✅ 交易已确认 block=%d gas_used=%d\n", r.BlockNumber, r.GasUsed)
		return nil
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "列出尚未确认的交易 (需要 db.enabled)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		comps, err := connect(ctx, false)
		if err != nil {
			return err
		}
		defer comps.Close()

		list, err := comps.Controller.Pending(ctx)
		if err != nil {
			return errno.Wrap(errno.ErrDatabase, err)
		}
		if len(list) == 0 {
			fmt.Println("没有待确认的交易")
			return nil
		}
		fmt.Printf("%-66s  %-10s  %-10s  %s\n", "TX", "GAS_LIMIT", "SUBMITTED", "URL")
		for _, p := range list {
			fmt.Printf("%-66s  %-10d  %-10s  %s\n", p.TxHash, p.GasLimit, p.CreatedAt.Format("01-02 15:04"), p.URLBody)
		}
		return nil
	},
}

func isTxHash(s string) bool {
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == common.HashLength
}

func init() {
	rootCmd.AddCommand(awaitCmd)
	rootCmd.AddCommand(pendingCmd)
}
