package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jing2uo/quantlab/workflow"
)

var syncTargets = map[string][]string{
	"list":      {workflow.NameSyncList},
	"meta":      {workflow.NameSyncMeta},
	"financial": {workflow.NameSyncFinancial},
	"indicator": {workflow.NameSyncIndicator},
	"share":     {workflow.NameSyncShare},
	"kline":     {workflow.NameSyncKline},
	"ttm":       {workflow.NameCalcTTM},
	"all":       workflow.AllTaskNames(),
}

// SyncTargets sync 子命令可用的目标
func SyncTargets() []string {
	names := make([]string, 0, len(syncTargets))
	for k := range syncTargets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

type SyncArgs struct {
	Symbols []string
	Force   bool
	Limit   int
}

func Sync(ctx context.Context, opts *Options, target string, sa SyncArgs) error {
	taskNames, ok := syncTargets[target]
	if !ok {
		return fmt.Errorf("unknown sync target %q (expected one of: %s)", target, strings.Join(SyncTargets(), ", "))
	}

	wh, _, err := openWarehouse(opts)
	if err != nil {
		return err
	}
	defer closeWarehouse(wh)

	if err := ctx.Err(); err != nil {
		return err
	}

	executor := workflow.NewTaskExecutor(wh, workflow.AllTasks())
	args := &workflow.TaskArgs{
		Symbols: sa.Symbols,
		Force:   sa.Force,
		Limit:   sa.Limit,
		Today:   GetToday(),
	}

	if err := executor.Run(ctx, taskNames, args); err != nil {
		return fmt.Errorf("workflow execution failed: %w", err)
	}
	printResults(executor, taskNames)
	return nil
}

func printResults(executor *workflow.TaskExecutor, taskNames []string) {
	for _, name := range taskNames {
		r := executor.Result(name)
		if r == nil {
			continue
		}
		switch r.State {
		case workflow.StateFailed:
			fmt.Printf("⚠️ %s 失败: %v\n", name, r.Error)
		case workflow.StateSkipped:
			fmt.Printf("🟡 %s 跳过: %s\n", name, r.Message)
		}
	}
}
