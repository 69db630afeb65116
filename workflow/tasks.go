package workflow

import (
	"context"
	"fmt"

	"github.com/jing2uo/quantlab/calc"
	"github.com/jing2uo/quantlab/ingest"
	"github.com/jing2uo/quantlab/model"
	"github.com/jing2uo/quantlab/warehouse"
)

const (
	NameSyncList      = "sync_list"
	NameSyncMeta      = "sync_meta"
	NameSyncFinancial = "sync_financial"
	NameSyncIndicator = "sync_indicator"
	NameSyncShare     = "sync_share"
	NameSyncKline     = "sync_kline"
	NameCalcTTM       = "calc_ttm"
	NameRefreshViews  = "refresh_views"
)

var (
	TaskSyncList      *Task
	TaskSyncMeta      *Task
	TaskSyncFinancial *Task
	TaskSyncIndicator *Task
	TaskSyncShare     *Task
	TaskSyncKline     *Task
	TaskCalcTTM       *Task
	TaskRefreshViews  *Task
)

func init() {
	TaskSyncList = &Task{
		Name:     NameSyncList,
		Executor: executeSyncList,
		SkipIf: func(ctx context.Context, wh *warehouse.Warehouse, args *TaskArgs) bool {
			_, err := wh.Directory()
			return err != nil
		},
		OnError: ErrorModeSkip,
	}

	TaskSyncMeta = &Task{
		Name:      NameSyncMeta,
		DependsOn: []string{NameSyncList},
		Executor:  executeSyncMeta,
		SkipIf: func(ctx context.Context, wh *warehouse.Warehouse, args *TaskArgs) bool {
			_, err := wh.Directory()
			return err != nil
		},
		OnError: ErrorModeSkip,
	}

	TaskSyncFinancial = &Task{
		Name: NameSyncFinancial,
		Executor: syncCategories("财务报表",
			model.TableBalance, model.TableIncome, model.TableCashflow),
		OnError: ErrorModeSkip,
	}

	TaskSyncIndicator = &Task{
		Name:     NameSyncIndicator,
		Executor: syncCategories("财务指标", model.TableIndicator),
		OnError:  ErrorModeSkip,
	}

	TaskSyncShare = &Task{
		Name:     NameSyncShare,
		Executor: syncCategories("股本", model.TableShareCapital),
		OnError:  ErrorModeSkip,
	}

	TaskSyncKline = &Task{
		Name:     NameSyncKline,
		Executor: syncCategories("日线", model.TableKline),
		OnError:  ErrorModeSkip,
	}

	TaskCalcTTM = &Task{
		Name:      NameCalcTTM,
		DependsOn: []string{NameSyncFinancial, NameSyncIndicator},
		Executor:  executeCalcTTM,
		OnError:   ErrorModeSkip,
	}

	TaskRefreshViews = &Task{
		Name:      NameRefreshViews,
		DependsOn: []string{NameCalcTTM, NameSyncShare, NameSyncKline},
		Executor:  executeRefreshViews,
	}
}

// AllTasks 返回完整的同步流程
func AllTasks() map[string]*Task {
	tasks := map[string]*Task{}
	for _, t := range []*Task{
		TaskSyncList, TaskSyncMeta,
		TaskSyncFinancial, TaskSyncIndicator, TaskSyncShare, TaskSyncKline,
		TaskCalcTTM, TaskRefreshViews,
	} {
		tasks[t.Name] = t
	}
	return tasks
}

// AllTaskNames sync all 的执行范围
func AllTaskNames() []string {
	return []string{
		NameSyncList, NameSyncMeta,
		NameSyncFinancial, NameSyncIndicator, NameSyncShare, NameSyncKline,
		NameCalcTTM, NameRefreshViews,
	}
}

func executeSyncList(ctx context.Context, wh *warehouse.Warehouse, args *TaskArgs) (*TaskResult, error) {
	fmt.Println("🐢 开始同步股票列表")
	dir, err := wh.Directory()
	if err != nil {
		return nil, err
	}
	n, err := ingest.SyncStockList(ctx, dir, wh.Meta, wh.Log)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		fmt.Println("🟡 股票列表为空, 保留现有数据")
		return &TaskResult{State: StateSkipped, Message: "empty stock list"}, nil
	}
	fmt.Printf("✅ 股票列表已更新, 共 %d 只\n", n)
	return &TaskResult{State: StateCompleted, Rows: n}, nil
}

func executeSyncMeta(ctx context.Context, wh *warehouse.Warehouse, args *TaskArgs) (*TaskResult, error) {
	fmt.Println("🐢 开始补全股票基础信息")
	dir, err := wh.Directory()
	if err != nil {
		return nil, err
	}
	report, err := ingest.SyncMetadata(ctx, dir, wh.Meta, args.Limit, wh.Log)
	if err != nil {
		return nil, err
	}
	if report.Pending == 0 {
		fmt.Println("🌲 股票基础信息无需更新")
		return &TaskResult{State: StateSkipped, Message: "no pending metadata"}, nil
	}
	fmt.Printf("✅ 基础信息补全 %d/%d\n", report.Updated, report.Pending)
	return &TaskResult{
		State:   StateCompleted,
		Rows:    report.Updated,
		Message: fmt.Sprintf("%d not found, %d failed", report.NotFound, len(report.Errors)),
	}, nil
}

func syncCategories(label string, metas ...*model.TableMeta) TaskFunc {
	return func(ctx context.Context, wh *warehouse.Warehouse, args *TaskArgs) (*TaskResult, error) {
		fmt.Printf("🐢 开始同步%s\n", label)
		syncer := wh.Syncer()
		opts := ingest.SyncOptions{Symbols: args.Symbols, Force: args.Force, Limit: args.Limit}

		var rows, failed, total int
		for _, meta := range metas {
			report, err := syncer.SyncCategory(ctx, meta, opts)
			if err != nil {
				return nil, fmt.Errorf("failed to sync %s: %w", meta.Category, err)
			}
			rows += report.Rows
			failed += len(report.Errors)
			total += report.Total
			fmt.Printf("📊 %s: 成功 %d/%d, 写入 %d, 未变化 %d\n",
				meta.Category, report.Succeeded(), report.Total, report.Written, report.Unchanged)
			for sym, cols := range report.Widened {
				fmt.Printf("🧩 %s/%s 新增列 %v\n", meta.Category, sym, cols)
			}
		}

		if total == 0 {
			fmt.Printf("🟡 %s无待同步数据\n", label)
			return &TaskResult{State: StateSkipped, Message: "nothing to sync"}, nil
		}
		return &TaskResult{
			State:   StateCompleted,
			Rows:    rows,
			Message: fmt.Sprintf("%d symbols failed", failed),
		}, nil
	}
}

func executeCalcTTM(ctx context.Context, wh *warehouse.Warehouse, args *TaskArgs) (*TaskResult, error) {
	fmt.Println("🐢 开始计算 TTM")
	report, err := wh.TTMRunner().Run(ctx, calc.RunOptions{Symbols: args.Symbols, Force: args.Force})
	if err != nil {
		return nil, err
	}
	fmt.Printf("🔢 TTM 完成: 成功 %d/%d, 计算 %d, 已是最新 %d, 历史不全 %d\n",
		report.Succeeded(), report.Total, report.Computed, report.UpToDate, report.Incomplete)
	return &TaskResult{State: StateCompleted, Rows: report.Rows}, nil
}

func executeRefreshViews(ctx context.Context, wh *warehouse.Warehouse, args *TaskArgs) (*TaskResult, error) {
	report, err := wh.RefreshViews(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range report.Skipped {
		fmt.Printf("🟡 视图 %s 缺少数据, 已跳过\n", name)
	}
	for name, e := range report.Failed {
		fmt.Printf("⚠️ 视图 %s 创建失败: %v\n", name, e)
	}
	fmt.Printf("🧱 视图已刷新: %d 个\n", len(report.Created))
	return &TaskResult{State: StateCompleted, Rows: len(report.Created)}, nil
}
