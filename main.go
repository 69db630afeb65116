package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jing2uo/quantlab/cmd"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := &cmd.Options{}

	var rootCmd = &cobra.Command{
		Use:           "quantlab",
		Short:         "Point-in-time equities warehouse on Parquet and DuckDB",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.EnvFile, "env", "", ".env 文件路径, 默认查找当前目录")
	rootCmd.PersistentFlags().StringVar(&opts.Warehouse, "warehouse", "", "数据仓库根目录, 覆盖 WAREHOUSE_DIR")
	rootCmd.PersistentFlags().StringVar(&opts.Inbox, "inbox", "", "采集数据落地目录, 覆盖 INBOX_DIR")
	rootCmd.PersistentFlags().IntVar(&opts.Workers, "workers", 0, "并发数, 覆盖 WORKERS")

	var symbols []string
	var force bool
	var limit int

	var syncCmd = &cobra.Command{
		Use:       "sync {" + strings.Join(cmd.SyncTargets(), "|") + "}",
		Short:     "Sync data from the inbox into the warehouse",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: cmd.SyncTargets(),
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.Sync(ctx, opts, args[0], cmd.SyncArgs{
				Symbols: symbols,
				Force:   force,
				Limit:   limit,
			})
		},
	}
	syncCmd.Flags().StringSliceVar(&symbols, "symbol", nil, "只同步指定股票, 可重复或逗号分隔")
	syncCmd.Flags().BoolVar(&force, "force", false, "忽略增量判断, 全部重新拉取与计算")
	syncCmd.Flags().IntVar(&limit, "limit", 0, "最多处理的股票数, 0 为不限")

	var output string
	var viewsCmd = &cobra.Command{
		Use:   "views",
		Short: "Register DuckDB views over the warehouse",
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.Views(ctx, opts, output)
		},
	}
	viewsCmd.Flags().StringVar(&output, "output", "", "导出 views.sql 与 views.puml 的目录")

	var symbol, fromDate, toDate, csvPath string
	var valuationCmd = &cobra.Command{
		Use:   "valuation",
		Short: "Daily point-in-time valuation of one stock",
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.Valuation(ctx, opts, symbol, fromDate, toDate, csvPath)
		},
	}
	valuationCmd.Flags().StringVar(&symbol, "symbol", "", "股票代码 (必填)")
	valuationCmd.Flags().StringVar(&fromDate, "from", "", "起始日期 (包含), 格式为 'YYYY-MM-DD'")
	valuationCmd.Flags().StringVar(&toDate, "to", "", "结束日期 (包含), 格式为 'YYYY-MM-DD'")
	valuationCmd.Flags().StringVar(&csvPath, "csv", "", "导出 CSV 文件路径, '-' 输出到标准输出")
	valuationCmd.MarkFlagRequired("symbol")

	var runNow bool
	var cronCmd = &cobra.Command{
		Use:   "cron",
		Short: "Run sync all on the CRON_SPEC schedule",
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.Cron(ctx, opts, runNow)
		},
	}
	cronCmd.Flags().BoolVar(&runNow, "now", false, "启动后立即执行一次")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(viewsCmd)
	rootCmd.AddCommand(valuationCmd)
	rootCmd.AddCommand(cronCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "🛑 错误: %v\n", err)
		stop()
		os.Exit(1)
	}
}
