package cmd

import (
	"context"
	"fmt"
)

// Views 重新注册全部视图, output 非空时导出 DDL 与依赖图
func Views(ctx context.Context, opts *Options, output string) error {
	wh, _, err := openWarehouse(opts)
	if err != nil {
		return err
	}
	defer closeWarehouse(wh)

	report, err := wh.RefreshViews(ctx)
	if err != nil {
		return err
	}
	for _, name := range report.Created {
		fmt.Printf("✅ %s\n", name)
	}
	for _, name := range report.Skipped {
		fmt.Printf("🟡 %s 缺少数据, 已跳过\n", name)
	}
	for name, e := range report.Failed {
		fmt.Printf("⚠️ %s 创建失败: %v\n", name, e)
	}

	if output == "" {
		return nil
	}
	files, err := wh.ExportViews(output)
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Printf("📄 已导出 %s\n", f)
	}
	return nil
}
