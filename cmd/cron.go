package cmd

import (
	"context"
	"fmt"
	"sync"

	"github.com/jing2uo/quantlab/workflow"
	"github.com/robfig/cron/v3"
)

// Cron 按 CRON_SPEC 定时执行完整同步, 直到 ctx 结束
// runNow 为 true 时启动后立即执行一次
func Cron(ctx context.Context, opts *Options, runNow bool) error {
	wh, cfg, err := openWarehouse(opts)
	if err != nil {
		return err
	}
	defer closeWarehouse(wh)

	log := wh.Log.With().Str("component", "cron").Logger()

	// 同一时刻只跑一轮, 上一轮未结束的触发直接跳过
	var running sync.Mutex
	runAll := func() {
		if !running.TryLock() {
			log.Warn().Msg("previous run still in progress, trigger skipped")
			return
		}
		defer running.Unlock()

		executor := workflow.NewTaskExecutor(wh, workflow.AllTasks())
		args := &workflow.TaskArgs{Today: GetToday()}
		names := workflow.AllTaskNames()
		if err := executor.Run(ctx, names, args); err != nil {
			log.Error().Err(err).Msg("workflow execution failed")
			fmt.Printf("🛑 任务执行失败: %v\n", err)
			return
		}
		printResults(executor, names)
		fmt.Println("🚀 今日任务执行成功")
	}

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(cfg.CronSpec, runAll); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", cfg.CronSpec, err)
	}

	if runNow {
		runAll()
	}

	log.Info().Str("spec", cfg.CronSpec).Msg("scheduler started")
	c.Start()
	<-ctx.Done()

	stopped := c.Stop()
	<-stopped.Done()
	log.Info().Msg("scheduler stopped")
	return nil
}
