package domain

import (
	"sort"

	"github.com/bhuvesh-solnce/backend/internal/domain/models"
)

// StageNode captures a stage plus its dependency edges within one workflow.
type StageNode struct {
	Stage        models.Stage
	Dependencies []int64
	Dependents   []int64
}

// StageGraph is the in-memory dependency graph of a workflow's stages.
type StageGraph struct {
	nodes      map[int64]*StageNode
	orderedIDs []int64
}

// NewStageGraph builds the graph for stages. Edges whose child is not one of
// the stages are ignored; edges to an unknown parent are kept on the child so
// that listings still show them.
func NewStageGraph(stages []models.Stage, edges []models.StageDependency) *StageGraph {
	nodes := make(map[int64]*StageNode, len(stages))
	ordered := make([]int64, 0, len(stages))
	for _, stage := range stages {
		nodes[stage.ID] = &StageNode{Stage: stage}
		ordered = append(ordered, stage.ID)
	}

	for _, edge := range edges {
		child, ok := nodes[edge.ChildStageID]
		if !ok {
			continue
		}
		child.Dependencies = appendUnique(child.Dependencies, edge.ParentStageID)
		if parent, ok := nodes[edge.ParentStageID]; ok {
			parent.Dependents = appendUnique(parent.Dependents, edge.ChildStageID)
		}
	}

	for _, node := range nodes {
		sortIDs(node.Dependencies)
		sortIDs(node.Dependents)
	}

	return &StageGraph{nodes: nodes, orderedIDs: ordered}
}

// Node retrieves a stage node by id.
func (g *StageGraph) Node(id int64) (*StageNode, bool) {
	node, ok := g.nodes[id]
	return node, ok
}

// ParentsOf returns the ids of the stages that must complete before id.
func (g *StageGraph) ParentsOf(id int64) []int64 {
	if node, ok := g.nodes[id]; ok {
		return append([]int64(nil), node.Dependencies...)
	}
	return nil
}

// ChildrenOf returns the ids of the stages that depend on id.
func (g *StageGraph) ChildrenOf(id int64) []int64 {
	if node, ok := g.nodes[id]; ok {
		return append([]int64(nil), node.Dependents...)
	}
	return nil
}

// WithDependsOn lists the stages in their original order, each carrying
// the ids of its parents. depends_on is never nil.
func (g *StageGraph) WithDependsOn() []models.StageWithDependsOn {
	out := make([]models.StageWithDependsOn, 0, len(g.orderedIDs))
	for _, id := range g.orderedIDs {
		node := g.nodes[id]
		deps := append([]int64{}, node.Dependencies...)
		out = append(out, models.StageWithDependsOn{Stage: node.Stage, DependsOn: deps})
	}
	return out
}

// DetectCycles returns every dependency cycle reachable in the graph, each as
// the sequence of stage ids along the cycle with the first id repeated at the
// end. Traversal is ordered by id so results are deterministic.
func (g *StageGraph) DetectCycles() [][]int64 {
	const (
		white = iota
		grey
		black
	)
	color := make(map[int64]int, len(g.nodes))
	var stack []int64
	var cycles [][]int64

	var visit func(id int64)
	visit = func(id int64) {
		color[id] = grey
		stack = append(stack, id)
		for _, next := range g.nodes[id].Dependents {
			switch color[next] {
			case white:
				visit(next)
			case grey:
				cycles = append(cycles, cycleFrom(stack, next))
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
	}

	ids := make([]int64, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sortIDs(ids)
	for _, id := range ids {
		if color[id] == white {
			visit(id)
		}
	}
	return cycles
}

// DanglingRejectTargets returns stages whose reject target is not a stage of
// the same workflow.
func (g *StageGraph) DanglingRejectTargets() []models.StageRef {
	var out []models.StageRef
	for _, id := range g.orderedIDs {
		stage := g.nodes[id].Stage
		if stage.RejectToStageID == nil {
			continue
		}
		if _, ok := g.nodes[*stage.RejectToStageID]; !ok {
			out = append(out, models.StageRef{ID: stage.ID, Name: stage.Name})
		}
	}
	return out
}

func cycleFrom(stack []int64, start int64) []int64 {
	for i, id := range stack {
		if id == start {
			cycle := append([]int64{}, stack[i:]...)
			return append(cycle, start)
		}
	}
	return []int64{start, start}
}

// LayoutKey is the position used to order stages structurally: ui_position.y,
// falling back to x, falling back to the id. Zero counts as unset.
func LayoutKey(stage models.Stage) float64 {
	if stage.UIPosition.Y != 0 {
		return stage.UIPosition.Y
	}
	if stage.UIPosition.X != 0 {
		return stage.UIPosition.X
	}
	return float64(stage.ID)
}

// SortByLayout returns a copy of stages ordered by LayoutKey, keeping the
// input order for equal keys.
func SortByLayout(stages []models.Stage) []models.Stage {
	out := append([]models.Stage(nil), stages...)
	sort.SliceStable(out, func(i, j int) bool {
		return LayoutKey(out[i]) < LayoutKey(out[j])
	})
	return out
}

func appendUnique(ids []int64, id int64) []int64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func sortIDs(ids []int64) {
	if len(ids) > 1 {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
}
