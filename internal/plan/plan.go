// Package plan orders resource descriptors into an execution plan that
// respects their declared dependencies.
package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/addonctl/addonctl/internal/resource"
)

// Plan is a topologically sorted execution order over a descriptor set. It
// is immutable once built; removal consumes the same plan in reverse order.
type Plan struct {
	order       []string
	descriptors map[string]*resource.Descriptor
}

// CycleError reports a dependency cycle in the descriptor set. IDs is a
// superset of the descriptors involved in the cycle.
type CycleError struct {
	IDs []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle involving: %s", strings.Join(e.IDs, ", "))
}

// DuplicateIDError reports two descriptors sharing the same id.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate descriptor id %q", e.ID)
}

// UnknownDependencyError reports a dependsOn entry that names no descriptor
// in the set.
type UnknownDependencyError struct {
	ID         string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("descriptor %q depends on unknown id %q", e.ID, e.Dependency)
}

// Build validates the descriptor set and computes a stable topological
// order: among descriptors with no remaining ordering constraint, the
// declaration order is preserved so equal inputs always produce equal plans.
func Build(descriptors []resource.Descriptor) (*Plan, error) {
	if err := resource.ValidateAll(descriptors); err != nil {
		return nil, err
	}

	byID := make(map[string]*resource.Descriptor, len(descriptors))
	position := make(map[string]int, len(descriptors))
	for i := range descriptors {
		d := &descriptors[i]
		if _, ok := byID[d.ID]; ok {
			return nil, &DuplicateIDError{ID: d.ID}
		}
		byID[d.ID] = d
		position[d.ID] = i
	}

	indegree := make(map[string]int, len(descriptors))
	dependents := make(map[string][]string, len(descriptors))
	for i := range descriptors {
		d := &descriptors[i]
		indegree[d.ID] += 0
		for _, dep := range d.DependsOn {
			if dep == d.ID {
				return nil, &CycleError{IDs: []string{d.ID}}
			}
			if _, ok := byID[dep]; !ok {
				return nil, &UnknownDependencyError{ID: d.ID, Dependency: dep}
			}
			indegree[d.ID]++
			dependents[dep] = append(dependents[dep], d.ID)
		}
	}

	// Kahn's algorithm with a ready queue kept in declaration order.
	var ready []string
	for i := range descriptors {
		if indegree[descriptors[i].ID] == 0 {
			ready = append(ready, descriptors[i].ID)
		}
	}

	order := make([]string, 0, len(descriptors))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		for _, dependent := range dependents[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = insertByPosition(ready, dependent, position)
			}
		}
	}

	if len(order) != len(descriptors) {
		var cyclic []string
		for id, deg := range indegree {
			if deg > 0 {
				cyclic = append(cyclic, id)
			}
		}
		sort.Slice(cyclic, func(i, j int) bool { return position[cyclic[i]] < position[cyclic[j]] })
		return nil, &CycleError{IDs: cyclic}
	}

	return &Plan{order: order, descriptors: byID}, nil
}

func insertByPosition(queue []string, id string, position map[string]int) []string {
	idx := sort.Search(len(queue), func(i int) bool {
		return position[queue[i]] > position[id]
	})
	queue = append(queue, "")
	copy(queue[idx+1:], queue[idx:])
	queue[idx] = id
	return queue
}

// Order returns the forward execution order.
func (p *Plan) Order() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Reversed returns the order for removal: dependents before dependencies.
func (p *Plan) Reversed() []string {
	out := make([]string, len(p.order))
	for i, id := range p.order {
		out[len(p.order)-1-i] = id
	}
	return out
}

// Descriptor returns the descriptor for an id, or nil if unknown.
func (p *Plan) Descriptor(id string) *resource.Descriptor {
	return p.descriptors[id]
}

// Len returns the number of resources in the plan.
func (p *Plan) Len() int {
	return len(p.order)
}
