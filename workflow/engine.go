package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jing2uo/quantlab/warehouse"
)

// TaskState represents the state of a task execution
type TaskState string

const (
	StatePending   TaskState = "pending"
	StateRunning   TaskState = "running"
	StateCompleted TaskState = "completed"
	StateSkipped   TaskState = "skipped"
	StateFailed    TaskState = "failed"
)

// TaskResult holds the execution result of a task
type TaskResult struct {
	State    TaskState
	Rows     int
	Message  string
	Error    error
	Duration time.Duration
}

const msgDependencyFailed = "dependency failed"

type ErrorMode int

const (
	ErrorModeStop ErrorMode = iota
	ErrorModeSkip
)

// TaskFunc is the function that executes a task
type TaskFunc func(ctx context.Context, wh *warehouse.Warehouse, args *TaskArgs) (*TaskResult, error)

// SkipCondition determines if a task should be skipped
type SkipCondition func(ctx context.Context, wh *warehouse.Warehouse, args *TaskArgs) bool

// Task represents a unit of work with dependencies
type Task struct {
	Name      string
	DependsOn []string
	Executor  TaskFunc
	SkipIf    SkipCondition
	OnError   ErrorMode
}

type TaskArgs struct {
	Symbols []string
	Force   bool
	Limit   int
	Today   time.Time
}

// TaskExecutor manages and executes tasks with dependency resolution
type TaskExecutor struct {
	wh    *warehouse.Warehouse
	tasks map[string]*Task

	mu      sync.Mutex
	results map[string]*TaskResult
}

// NewTaskExecutor creates a new task executor
func NewTaskExecutor(wh *warehouse.Warehouse, tasks map[string]*Task) *TaskExecutor {
	return &TaskExecutor{
		wh:      wh,
		tasks:   tasks,
		results: make(map[string]*TaskResult),
	}
}

// Run 按依赖顺序执行 taskNames, 同一层的任务并发执行
// 依赖失败 (ErrorModeSkip) 的任务被标记为 skipped, 不会执行
func (te *TaskExecutor) Run(ctx context.Context, taskNames []string, args *TaskArgs) error {
	te.mu.Lock()
	te.results = make(map[string]*TaskResult)
	te.mu.Unlock()

	// 未指定任务时运行全部
	if len(taskNames) == 0 {
		taskNames = te.GetTaskNames()
	}
	if args == nil {
		args = &TaskArgs{}
	}

	order, err := te.topologicalSort(taskNames)
	if err != nil {
		return fmt.Errorf("failed to resolve task dependencies: %w", err)
	}

	pending := make(map[string]bool)
	for _, name := range order {
		pending[name] = true
	}

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ready, blocked := te.findReadyTasks(pending)
		for _, name := range blocked {
			te.setResult(name, &TaskResult{State: StateSkipped, Message: msgDependencyFailed})
			delete(pending, name)
		}
		if len(ready) == 0 {
			if len(blocked) > 0 {
				continue
			}
			return fmt.Errorf("circular dependency detected or no ready tasks")
		}

		var wg sync.WaitGroup
		for _, name := range ready {
			task := te.tasks[name]

			if task.SkipIf != nil && task.SkipIf(ctx, te.wh, args) {
				te.setResult(name, &TaskResult{State: StateSkipped, Message: "skipped by condition"})
				continue
			}

			wg.Add(1)
			go func(n string, t *Task) {
				defer wg.Done()
				te.setResult(n, te.executeTask(ctx, t, args))
			}(name, task)
		}

		wg.Wait()

		for _, name := range ready {
			result := te.Result(name)
			if result != nil && result.Error != nil && te.tasks[name].OnError == ErrorModeStop {
				return fmt.Errorf("task %s failed: %w", name, result.Error)
			}
			delete(pending, name)
		}
	}

	return nil
}

func (te *TaskExecutor) executeTask(ctx context.Context, task *Task, args *TaskArgs) (result *TaskResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = &TaskResult{State: StateFailed, Error: fmt.Errorf("panic in task %s: %v", task.Name, r)}
		}
		result.Duration = time.Since(start)
	}()

	res, err := task.Executor(ctx, te.wh, args)
	if err != nil {
		return &TaskResult{State: StateFailed, Error: err}
	}
	if res == nil {
		res = &TaskResult{}
	}
	if res.State == "" {
		res.State = StateCompleted
	}
	return res
}

func (te *TaskExecutor) setResult(name string, r *TaskResult) {
	te.mu.Lock()
	te.results[name] = r
	te.mu.Unlock()
}

// Result 返回任务的执行结果, 未执行时为 nil
func (te *TaskExecutor) Result(name string) *TaskResult {
	te.mu.Lock()
	defer te.mu.Unlock()
	return te.results[name]
}

// Results 最近一次 Run 的所有结果
func (te *TaskExecutor) Results() map[string]*TaskResult {
	te.mu.Lock()
	defer te.mu.Unlock()
	out := make(map[string]*TaskResult, len(te.results))
	for k, v := range te.results {
		out[k] = v
	}
	return out
}

func (te *TaskExecutor) topologicalSort(taskNames []string) ([]string, error) {
	inDegree := make(map[string]int)
	adj := make(map[string][]string)
	taskSet := make(map[string]bool)

	for _, name := range taskNames {
		if !te.HasTask(name) {
			return nil, fmt.Errorf("task %s not found", name)
		}
		taskSet[name] = true
		inDegree[name] = 0
	}

	for name := range taskSet {
		task := te.tasks[name]
		for _, dep := range task.DependsOn {
			if !taskSet[dep] {
				continue
			}
			adj[dep] = append(adj[dep], name)
			inDegree[name]++
		}
	}

	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		next := adj[current]
		sort.Strings(next)
		for _, neighbor := range next {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(order) != len(taskSet) {
		return nil, fmt.Errorf("circular dependency detected")
	}

	return order, nil
}

// findReadyTasks 依赖不在本次运行中的任务视为已满足
func (te *TaskExecutor) findReadyTasks(pending map[string]bool) (ready, blocked []string) {
	te.mu.Lock()
	defer te.mu.Unlock()

	for name := range pending {
		task := te.tasks[name]

		allDepsDone := true
		depFailed := false
		for _, dep := range task.DependsOn {
			if pending[dep] {
				allDepsDone = false
				continue
			}
			result, exists := te.results[dep]
			if !exists {
				continue
			}
			if result.State == StateFailed || (result.State == StateSkipped && result.Message == msgDependencyFailed) {
				depFailed = true
			}
		}

		switch {
		case depFailed:
			blocked = append(blocked, name)
		case allDepsDone:
			ready = append(ready, name)
		}
	}

	sort.Strings(ready)
	sort.Strings(blocked)
	return ready, blocked
}

func (te *TaskExecutor) GetTaskNames() []string {
	names := make([]string, 0, len(te.tasks))
	for name := range te.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (te *TaskExecutor) HasTask(name string) bool {
	_, exists := te.tasks[name]
	return exists
}
