package utils

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// PipelineResult 执行结果统计
type PipelineResult struct {
	TotalItems     int
	ProcessedItems int64
	OutputRows     int64
	Errors         []error
	Duration       time.Duration
}

// ItemError 单个输入处理失败, 不影响其它输入
type ItemError struct {
	Input string
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Input, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// Pipeline 有界并发处理管道, 按输入隔离失败
type Pipeline[I, O any] struct {
	concurrency int
	bufferSize  int

	processedItems atomic.Int64
	outputRows     atomic.Int64

	errors []error
	errMu  sync.Mutex
}

type PipelineOption func(*pipelineConfig)

type pipelineConfig struct {
	concurrency int
	bufferSize  int
}

func WithConcurrency(n int) PipelineOption {
	return func(c *pipelineConfig) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func NewPipeline[I, O any](opts ...PipelineOption) *Pipeline[I, O] {
	cfg := &pipelineConfig{
		concurrency: runtime.NumCPU(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.bufferSize == 0 {
		cfg.bufferSize = cfg.concurrency * 4
	}

	return &Pipeline[I, O]{
		concurrency: cfg.concurrency,
		bufferSize:  cfg.bufferSize,
	}
}

type batchResult[I, O any] struct {
	Input I
	Rows  []O
	Err   error
}

// Run 并发执行 process, consume 在单个 goroutine 中串行调用
// ctx 只在输入之间检查, 已开始的输入会执行完
func (p *Pipeline[I, O]) Run(
	ctx context.Context,
	inputs []I,
	process func(ctx context.Context, input I) ([]O, error),
	consume func(rows []O) error,
) (*PipelineResult, error) {
	startTime := time.Now()

	if len(inputs) == 0 {
		return &PipelineResult{Duration: time.Since(startTime)}, nil
	}

	p.processedItems.Store(0)
	p.outputRows.Store(0)
	p.errors = nil

	resultChan := make(chan batchResult[I, O], p.bufferSize)

	var consumerWg sync.WaitGroup
	consumerWg.Add(1)
	go func() {
		defer consumerWg.Done()
		for batch := range resultChan {
			if batch.Err != nil {
				p.collectError(&ItemError{Input: fmt.Sprint(batch.Input), Err: batch.Err})
				continue
			}

			if len(batch.Rows) > 0 && consume != nil {
				if err := consume(batch.Rows); err != nil {
					p.collectError(&ItemError{Input: fmt.Sprint(batch.Input), Err: fmt.Errorf("consume error: %w", err)})
					continue
				}
				p.outputRows.Add(int64(len(batch.Rows)))
			}
		}
	}()

	sem := make(chan struct{}, p.concurrency)
	var producerWg sync.WaitGroup

	var canceled error
	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			canceled = err
			break
		}

		sem <- struct{}{}
		producerWg.Add(1)

		go func(input I) {
			defer producerWg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					resultChan <- batchResult[I, O]{Input: input, Err: fmt.Errorf("panic processing input: %v", r)}
				}
			}()

			rows, err := process(ctx, input)
			if err == nil {
				p.processedItems.Add(1)
			}
			resultChan <- batchResult[I, O]{Input: input, Rows: rows, Err: err}
		}(input)
	}

	producerWg.Wait()
	close(resultChan)
	consumerWg.Wait()

	result := &PipelineResult{
		TotalItems:     len(inputs),
		ProcessedItems: p.processedItems.Load(),
		OutputRows:     p.outputRows.Load(),
		Errors:         p.getErrors(),
		Duration:       time.Since(startTime),
	}

	return result, canceled
}

func (p *Pipeline[I, O]) collectError(err error) {
	p.errMu.Lock()
	p.errors = append(p.errors, err)
	p.errMu.Unlock()
}

func (p *Pipeline[I, O]) getErrors() []error {
	p.errMu.Lock()
	defer p.errMu.Unlock()

	if len(p.errors) == 0 {
		return nil
	}

	result := make([]error, len(p.errors))
	copy(result, p.errors)
	return result
}

func (r *PipelineResult) HasErrors() bool {
	return len(r.Errors) > 0
}

func (r *PipelineResult) ErrorSummary() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return fmt.Sprintf("%d errors, first: %v", len(r.Errors), r.Errors[0])
}

// Progress 成功数/总数, 形如 "8/10"
func (r *PipelineResult) Progress() string {
	return fmt.Sprintf("%d/%d", r.ProcessedItems, r.TotalItems)
}
