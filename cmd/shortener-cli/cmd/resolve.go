package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"shortener-core/pkg/config"
	"shortener-core/pkg/errno"
	"shortener-core/pkg/urlbody"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <url>",
	Short: "查询 URL 对应的短码",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		comps, err := connect(ctx, false)
		if err != nil {
			return err
		}
		defer comps.Close()

		body := urlbody.Normalize(args[0])
		key, err := comps.Controller.ResolveKey(ctx, comps.Session, body)
		if err != nil {
			return err
		}
		if key == "" {
			fmt.Printf("%s 尚未登记\n", body)
			return nil
		}
		fmt.Println(urlbody.ShortURL(config.Global.App.PublicBaseURL, key))
		return nil
	},
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <key|short-url>",
	Short: "查询短码对应的 URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := lookup(cmd, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Key:  %s\n", urlbody.KeyFromShortURL(args[0]))
		fmt.Printf("Body: %s\n", body)
		fmt.Printf("URL:  %s\n", urlbody.RedirectTarget(body))
		return nil
	},
}

// open 等价于在浏览器打开 "#key": 只输出跳转目标, 便于管道使用
var openCmd = &cobra.Command{
	Use:   "open <short-url>",
	Short: "输出短链的跳转目标",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := lookup(cmd, args[0])
		if err != nil {
			return err
		}
		fmt.Println(urlbody.RedirectTarget(body))
		return nil
	},
}

func lookup(cmd *cobra.Command, arg string) (string, error) {
	ctx := cmd.Context()
	key := urlbody.KeyFromShortURL(arg)
	if key == "" {
		return "", errno.ErrKeyNotFound
	}

	comps, err := connect(ctx, false)
	if err != nil {
		return "", err
	}
	defer comps.Close()

	body, err := comps.Controller.ResolveURL(ctx, key)
	if err != nil {
		return "", err
	}
	if body == "" {
		return "", errno.Wrapf(errno.ErrKeyNotFound, "%s", key)
	}
	return body, nil
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(openCmd)
}
