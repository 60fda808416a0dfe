package graph

import (
	"context"
	"fmt"

	"github.com/toefl-tutor-core/server/internal/agent/model"
)

// NodeFunc is one unit of agent logic. It receives the current conversation
// state and returns the next one. Implementations must not mutate the input
// state; they derive updates through the model.ConversationState With* helpers.
type NodeFunc func(ctx context.Context, state model.ConversationState) (model.ConversationState, error)

// Guard decides whether a conditional edge applies to the current state.
type Guard func(state model.ConversationState) bool

type node struct {
	name     string
	fn       NodeFunc
	terminal bool
}

type edge struct {
	from  string
	to    string
	guard Guard // nil means unconditional
}

// Definition is a compiled, immutable agent graph: named nodes, ordered
// outgoing edges per node, and one entry node. It is plain data shared by
// any number of concurrent traversals.
type Definition struct {
	nodes map[string]*node
	edges map[string][]edge
	entry string
}

// Entry returns the name of the entry node.
func (d *Definition) Entry() string {
	return d.entry
}

// NodeNames returns the names of all nodes, useful for diagnostics.
func (d *Definition) NodeNames() []string {
	names := make([]string, 0, len(d.nodes))
	for name := range d.nodes {
		names = append(names, name)
	}
	return names
}

// Builder constructs a Definition. Edges are evaluated at runtime in the
// order they were added, so declaration order is routing priority.
type Builder struct {
	nodes   map[string]*node
	order   []string
	edges   map[string][]edge
	entry   string
	lastErr error
}

// NewBuilder returns an empty graph builder.
func NewBuilder() *Builder {
	return &Builder{
		nodes: map[string]*node{},
		edges: map[string][]edge{},
	}
}

// AddNode registers a named node. Duplicate names are a build error.
func (b *Builder) AddNode(name string, fn NodeFunc) *Builder {
	if _, exists := b.nodes[name]; exists {
		b.fail(fmt.Errorf("node %q declared twice", name))
		return b
	}
	if fn == nil {
		b.fail(fmt.Errorf("node %q has nil function", name))
		return b
	}
	b.nodes[name] = &node{name: name, fn: fn}
	b.order = append(b.order, name)
	return b
}

// AddTerminalNode registers a node at which traversal always stops.
func (b *Builder) AddTerminalNode(name string, fn NodeFunc) *Builder {
	b.AddNode(name, fn)
	if n, ok := b.nodes[name]; ok {
		n.terminal = true
	}
	return b
}

// AddEdge adds an unconditional transition from one node to another.
func (b *Builder) AddEdge(from, to string) *Builder {
	b.edges[from] = append(b.edges[from], edge{from: from, to: to})
	return b
}

// AddBranch adds a guarded transition. The guard is evaluated against the
// state returned by the from node; the first passing edge wins.
func (b *Builder) AddBranch(from, to string, guard Guard) *Builder {
	if guard == nil {
		b.fail(fmt.Errorf("branch %s -> %s has nil guard", from, to))
		return b
	}
	b.edges[from] = append(b.edges[from], edge{from: from, to: to, guard: guard})
	return b
}

// SetEntry designates the entry node.
func (b *Builder) SetEntry(name string) *Builder {
	b.entry = name
	return b
}

// Compile validates the graph and returns an immutable Definition.
// Validation rules: an entry node is set and exists, every edge endpoint is
// a declared node, and every node is reachable from the entry node.
func (b *Builder) Compile() (*Definition, error) {
	if b.lastErr != nil {
		return nil, b.lastErr
	}
	if len(b.nodes) == 0 {
		return nil, fmt.Errorf("graph has no nodes")
	}
	if b.entry == "" {
		return nil, fmt.Errorf("graph has no entry node")
	}
	if _, ok := b.nodes[b.entry]; !ok {
		return nil, fmt.Errorf("entry node %q is not declared", b.entry)
	}
	for from, outgoing := range b.edges {
		if _, ok := b.nodes[from]; !ok {
			return nil, fmt.Errorf("edge source %q is not a declared node", from)
		}
		for _, e := range outgoing {
			if _, ok := b.nodes[e.to]; !ok {
				return nil, fmt.Errorf("edge %s -> %s targets an undeclared node", e.from, e.to)
			}
		}
	}
	if unreachable := b.unreachableFrom(b.entry); len(unreachable) > 0 {
		return nil, fmt.Errorf("nodes unreachable from entry %q: %v", b.entry, unreachable)
	}

	return &Definition{
		nodes: b.nodes,
		edges: b.edges,
		entry: b.entry,
	}, nil
}

func (b *Builder) fail(err error) {
	if b.lastErr == nil {
		b.lastErr = err
	}
}

func (b *Builder) unreachableFrom(entry string) []string {
	seen := map[string]bool{entry: true}
	queue := []string{entry}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range b.edges[cur] {
			if !seen[e.to] {
				seen[e.to] = true
				queue = append(queue, e.to)
			}
		}
	}

	var unreachable []string
	for _, name := range b.order {
		if !seen[name] {
			unreachable = append(unreachable, name)
		}
	}
	return unreachable
}
