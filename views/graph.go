package views

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/jing2uo/quantlab/model"
	"github.com/rs/zerolog"
)

// Executor 执行 DDL 的数据库句柄, *sqlx.DB 与 *sql.DB 均满足
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Catalog 视图创建前检查源分区是否存在
type Catalog interface {
	Globber
	HasPartitions(category string) bool
}

// CycleError 视图依赖中存在环
type CycleError struct {
	Cycle []model.ViewID
}

func (e *CycleError) Error() string {
	names := make([]string, len(e.Cycle))
	for i, v := range e.Cycle {
		names[i] = string(v)
	}
	return "view dependency cycle: " + strings.Join(names, " -> ")
}

// MaterializeReport 一次物化的结果
type MaterializeReport struct {
	Created []model.ViewID
	Skipped []model.ViewID
	Failed  map[model.ViewID]error
}

func (r *MaterializeReport) Available(name model.ViewID) bool {
	for _, v := range r.Created {
		if v == name {
			return true
		}
	}
	return false
}

// Graph 视图依赖图
type Graph struct {
	source func() []View
	views  map[model.ViewID]View
	log    zerolog.Logger
}

// NewGraph 以 source 作为视图来源, source 为 nil 时使用内置 Registry
func NewGraph(log zerolog.Logger, source func() []View) *Graph {
	if source == nil {
		source = Registry
	}
	g := &Graph{source: source, log: log}
	g.Discover()
	return g
}

// Discover 重新收集视图定义, 返回视图数量
func (g *Graph) Discover() int {
	g.views = make(map[model.ViewID]View)
	for _, v := range g.source() {
		g.views[v.Name] = v
	}
	g.log.Debug().Int("views", len(g.views)).Msg("views discovered")
	return len(g.views)
}

func (g *Graph) View(name model.ViewID) (View, bool) {
	v, ok := g.views[name]
	return v, ok
}

func (g *Graph) names() []model.ViewID {
	names := make([]model.ViewID, 0, len(g.views))
	for n := range g.views {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// registeredDeps 只保留已注册的依赖
func (g *Graph) registeredDeps(v View) []model.ViewID {
	var deps []model.ViewID
	for _, d := range v.DependsOn {
		if _, ok := g.views[d]; ok {
			deps = append(deps, d)
		}
	}
	return deps
}

// SortedViews 拓扑排序, 依赖总在被依赖者之后; 同层按名称排序
func (g *Graph) SortedViews() ([]View, error) {
	inDegree := make(map[model.ViewID]int, len(g.views))
	adj := make(map[model.ViewID][]model.ViewID)

	for _, name := range g.names() {
		deps := g.registeredDeps(g.views[name])
		inDegree[name] = len(deps)
		for _, dep := range deps {
			adj[dep] = append(adj[dep], name)
		}
	}

	var queue []model.ViewID
	for _, name := range g.names() {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	var order []View
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, g.views[current])

		var next []model.ViewID
		for _, neighbor := range adj[current] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				next = append(next, neighbor)
			}
		}
		queue = append(queue, next...)
		sort.Slice(queue, func(i, j int) bool { return queue[i] < queue[j] })
	}

	if len(order) != len(g.views) {
		return nil, &CycleError{Cycle: g.findCycle(inDegree)}
	}
	return order, nil
}

// findCycle 在排序后仍有入度的节点中找出一个具体的环
func (g *Graph) findCycle(inDegree map[model.ViewID]int) []model.ViewID {
	const (
		white = iota
		grey
		black
	)
	color := make(map[model.ViewID]int)
	var stack []model.ViewID
	var cycle []model.ViewID

	var visit func(n model.ViewID) bool
	visit = func(n model.ViewID) bool {
		color[n] = grey
		stack = append(stack, n)
		for _, dep := range g.registeredDeps(g.views[n]) {
			switch color[dep] {
			case grey:
				for i, s := range stack {
					if s == dep {
						cycle = append(append([]model.ViewID(nil), stack[i:]...), dep)
						return true
					}
				}
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
		return false
	}

	for _, name := range g.names() {
		if inDegree[name] > 0 && color[name] == white {
			if visit(name) {
				return cycle
			}
		}
	}
	return nil
}

// Materialize 按拓扑顺序创建视图
// 源分区缺失或依赖不可用的视图被跳过, 创建失败的视图记录日志后忽略
func (g *Graph) Materialize(ctx context.Context, exec Executor, cat Catalog) (*MaterializeReport, error) {
	order, err := g.SortedViews()
	if err != nil {
		return nil, err
	}

	report := &MaterializeReport{Failed: make(map[model.ViewID]error)}
	available := make(map[model.ViewID]bool, len(order))

	for _, v := range order {
		log := g.log.With().Str("view", string(v.Name)).Logger()

		if missing := missingSources(v, cat); missing != "" {
			log.Warn().Str("category", missing).Msg("source partitions missing, view skipped")
			report.Skipped = append(report.Skipped, v.Name)
			continue
		}
		if dep, ok := unavailableDep(v, g, available); !ok {
			log.Warn().Str("dependency", string(dep)).Msg("dependency unavailable, view skipped")
			report.Skipped = append(report.Skipped, v.Name)
			continue
		}

		if _, err := exec.ExecContext(ctx, v.CreateSQL(cat)); err != nil {
			log.Error().Err(err).Msg("failed to create view")
			report.Failed[v.Name] = err
			continue
		}
		available[v.Name] = true
		report.Created = append(report.Created, v.Name)
		log.Debug().Msg("view created")
	}

	return report, nil
}

func missingSources(v View, cat Catalog) string {
	for _, src := range v.Sources {
		if !cat.HasPartitions(src) {
			return src
		}
	}
	return ""
}

func unavailableDep(v View, g *Graph, available map[model.ViewID]bool) (model.ViewID, bool) {
	for _, dep := range g.registeredDeps(v) {
		if !available[dep] {
			return dep, false
		}
	}
	return "", true
}

// RelationshipGraph 以 PlantUML 描述视图依赖
func (g *Graph) RelationshipGraph() (string, error) {
	order, err := g.SortedViews()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("@startuml\n")
	b.WriteString("skinparam componentStyle uml2\n")
	b.WriteString("title DuckDB View Dependencies\n\n")
	for _, v := range order {
		fmt.Fprintf(&b, "[%s]\n", v.Name)
	}
	b.WriteString("\n")
	for _, v := range order {
		for _, dep := range g.registeredDeps(v) {
			fmt.Fprintf(&b, "[%s] --> [%s]\n", dep, v.Name)
		}
	}
	b.WriteString("@enduml\n")
	return b.String(), nil
}

// ExportSQL 按创建顺序输出全部视图 DDL
func (g *Graph) ExportSQL(gl Globber) (string, error) {
	order, err := g.SortedViews()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, v := range order {
		fmt.Fprintf(&b, "-- %s\n%s;\n\n", v.Name, v.CreateSQL(gl))
	}
	return b.String(), nil
}
