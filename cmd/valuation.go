package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/jing2uo/quantlab/model"
	"github.com/jing2uo/quantlab/utils"
)

// Valuation 查询单只股票的每日估值
// csvPath 为 "-" 时以 CSV 输出到 stdout, 为空时输出表格
func Valuation(ctx context.Context, opts *Options, symbol, from, to, csvPath string) error {
	fromDate, err := parseDate(from)
	if err != nil {
		return err
	}
	toDate, err := parseDate(to)
	if err != nil {
		return err
	}

	wh, _, err := openWarehouse(opts)
	if err != nil {
		return err
	}
	defer closeWarehouse(wh)

	report, err := wh.RefreshViews(ctx)
	if err != nil {
		return err
	}
	if !report.Available(model.ViewValuation) {
		return fmt.Errorf("view %s is unavailable, run sync first", model.ViewValuation)
	}

	records, err := wh.Engine.QueryValuation(ctx, symbol, fromDate, toDate)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintf(os.Stderr, "🟡 %s 无估值数据\n", symbol)
		return nil
	}

	switch csvPath {
	case "":
		return printValuation(os.Stdout, records)
	case "-":
		cw, err := utils.NewCSVStream[model.ValuationRecord](os.Stdout)
		if err != nil {
			return err
		}
		return writeValuationCSV(cw, records)
	default:
		cw, err := utils.NewCSVWriter[model.ValuationRecord](csvPath)
		if err != nil {
			return err
		}
		if err := writeValuationCSV(cw, records); err != nil {
			return err
		}
		fmt.Printf("📄 已导出 %d 行到 %s\n", len(records), csvPath)
		return nil
	}
}

func writeValuationCSV(cw *utils.CSVWriter[model.ValuationRecord], records []model.ValuationRecord) error {
	if err := cw.Write(records); err != nil {
		cw.Close()
		return err
	}
	return cw.Close()
}

func printValuation(w io.Writer, records []model.ValuationRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "date\tclose\tclose_hfq\tmarket_cap\tpe_ttm\tpe_deduct\tpb\tps_ttm\tpcf_ttm\t")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			r.Date.Format("2006-01-02"),
			strconv.FormatFloat(r.RawClose, 'f', 2, 64),
			cell(r.CloseHfq, 2),
			cell(r.MarketCap, 0),
			cell(r.PeTTM, 2),
			cell(r.PeDeductTTM, 2),
			cell(r.Pb, 2),
			cell(r.PsTTM, 2),
			cell(r.PcfTTM, 2),
		)
	}
	return tw.Flush()
}

func cell(v *float64, prec int) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}
