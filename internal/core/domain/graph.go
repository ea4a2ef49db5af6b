// Package domain contains the core domain models for the module dependency graph.
package domain

import (
	"iter"

	"go.trai.ch/zerr"
)

// Graph is the set of modules reachable from an entry module.
// Modules are kept in discovery order.
type Graph struct {
	entry   ModuleID
	modules map[ModuleID]*Module
	order   []ModuleID
}

// NewGraph creates an empty graph rooted at entry.
func NewGraph(entry ModuleID) *Graph {
	return &Graph{
		entry:   entry,
		modules: make(map[ModuleID]*Module),
	}
}

// Entry returns the entry module identity.
func (g *Graph) Entry() ModuleID {
	return g.entry
}

// Add inserts a module record. It fails if the identity is already present.
func (g *Graph) Add(m *Module) error {
	if _, exists := g.modules[m.ID]; exists {
		return NewError(ErrDuplicateModule, nil, "module", m.ID.String())
	}
	g.modules[m.ID] = m
	g.order = append(g.order, m.ID)
	return nil
}

// Get returns the module record for id.
func (g *Graph) Get(id ModuleID) (*Module, bool) {
	m, ok := g.modules[id]
	return m, ok
}

// Len returns the number of modules.
func (g *Graph) Len() int {
	return len(g.modules)
}

// Modules yields module records in discovery order.
func (g *Graph) Modules() iter.Seq[*Module] {
	return func(yield func(*Module) bool) {
		for _, id := range g.order {
			if !yield(g.modules[id]) {
				return
			}
		}
	}
}

// Validate checks that every edge points into the graph and that the graph is acyclic.
func (g *Graph) Validate() error {
	_, err := g.Order()
	return err
}

// Order returns the emission order: a depth-first post-order from the entry that
// visits each module's imports in source order. Every module appears after all of
// its dependencies and the entry is last. The result depends only on the graph.
func (g *Graph) Order() ([]ModuleID, error) {
	if _, ok := g.modules[g.entry]; !ok {
		return nil, NewError(ErrIncompleteGraph, nil, "module", g.entry.String())
	}

	order := make([]ModuleID, 0, len(g.modules))
	state := make(map[ModuleID]uint8, len(g.modules)) // 0: unvisited, 1: on path, 2: done
	var path []ModuleID

	var visit func(id ModuleID) error
	visit = func(id ModuleID) error {
		state[id] = 1
		path = append(path, id)

		m := g.modules[id]
		for _, edge := range m.Imports {
			dep := edge.Target
			if _, ok := g.modules[dep]; !ok {
				err := NewError(ErrIncompleteGraph, nil, "module", dep.String())
				return zerr.With(err, "importer", id.String())
			}
			switch state[dep] {
			case 1:
				return buildCycleError(path, dep)
			case 0:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		state[id] = 2
		path = path[:len(path)-1]
		order = append(order, id)
		return nil
	}

	if err := visit(g.entry); err != nil {
		return nil, err
	}
	return order, nil
}

// buildCycleError constructs the cycle starting at dep, closed by dep again.
func buildCycleError(path []ModuleID, dep ModuleID) error {
	start := 0
	for i, id := range path {
		if id == dep {
			start = i
			break
		}
	}
	cycle := make([]ModuleID, 0, len(path)-start+1)
	cycle = append(cycle, path[start:]...)
	cycle = append(cycle, dep)
	return &CycleError{Path: cycle}
}
