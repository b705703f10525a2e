package dag

import (
	"fmt"

	"github.com/vk/promptgridgo/internal/builder"
)

// Extend grafts expansion nodes onto a running graph in one atomic step.
// Edges whose source already completed are dropped (the value is published,
// there is nothing to wait for); edges from a failed source poison the
// target instead of wiring it, and the poisoned targets come back in
// skipped, mapped to the failed source id. requeue names the expanding node
// whose counter is being rewired onto the expansion's producers; it joins
// ready when it has nothing left to wait on. On error the graph is left
// exactly as it was.
func (g *Graph) Extend(newIDs []string, edges []builder.Edge, requeue string) (ready []*Node, skipped map[*Node]string, err error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	type link struct {
		from, to *Node
	}
	var addedLinks []link
	counts := make(map[*Node]int32)

	rollback := func() {
		for _, l := range addedLinks {
			delete(l.to.deps, l.from.ID)
			delete(l.from.dependents, l.to.ID)
		}
		for n, c := range counts {
			n.depCount.Add(-c)
		}
		for _, id := range newIDs {
			delete(g.nodes, id)
		}
	}

	for _, id := range newIDs {
		if _, exists := g.nodes[id]; exists {
			rollback()
			return nil, nil, fmt.Errorf("node %q already in graph", id)
		}
		g.nodes[id] = newNode(id)
	}

	skipped = make(map[*Node]string)
	for _, e := range edges {
		if e.From == e.To {
			rollback()
			return nil, nil, fmt.Errorf("self-referential edge not allowed: %s -> %s", e.From, e.From)
		}
		from, ok := g.nodes[e.From]
		if !ok {
			rollback()
			return nil, nil, fmt.Errorf("source node not found: %s", e.From)
		}
		to, ok := g.nodes[e.To]
		if !ok {
			rollback()
			return nil, nil, fmt.Errorf("destination node not found: %s", e.To)
		}

		switch from.GetState() {
		case Done:
			continue
		case Failed:
			skipped[to] = from.ID
			continue
		}

		if _, dup := to.deps[from.ID]; dup {
			continue
		}
		to.deps[from.ID] = from
		from.dependents[to.ID] = to
		addedLinks = append(addedLinks, link{from: from, to: to})
		counts[to]++
	}
	for n, c := range counts {
		n.depCount.Add(c)
	}

	if err := g.detectCyclesLocked(); err != nil {
		rollback()
		return nil, nil, err
	}

	for _, id := range newIDs {
		n := g.nodes[id]
		if _, poisoned := skipped[n]; poisoned {
			continue
		}
		if n.depCount.Load() == 0 {
			ready = append(ready, n)
		}
	}
	if requeue != "" {
		if x, ok := g.nodes[requeue]; ok {
			if _, poisoned := skipped[x]; !poisoned && x.depCount.Load() == 0 {
				ready = append(ready, x)
			}
		}
	}
	return ready, skipped, nil
}
