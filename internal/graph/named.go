package graph

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/ahrav/opflow/internal/ports"
)

// NamedEdge is a name-keyed counterpart to Edge: a (producer name, output
// port) pair. The zero Port refers to a node's first output.
type NamedEdge struct {
	Name string
	Port int
}

// Ref builds the NamedEdge (name, 0).
func Ref(name string) NamedEdge { return NamedEdge{Name: name} }

// RefPort builds the NamedEdge (name, port).
func RefPort(name string, port int) NamedEdge { return NamedEdge{Name: name, Port: port} }

// ParseEdge parses a "name" or "name.port" edge specifier, the textual
// form accepted by Named's builder methods. A bare name refers to output
// port 0.
func ParseEdge(spec string) (NamedEdge, error) {
	if i := strings.LastIndexByte(spec, '.'); i >= 0 {
		port, err := strconv.Atoi(spec[i+1:])
		if err == nil {
			return NamedEdge{Name: spec[:i], Port: port}, nil
		}
	}
	if spec == "" {
		return NamedEdge{}, fmt.Errorf("empty edge specifier")
	}
	return NamedEdge{Name: spec}, nil
}

// Named is the string-named surface over Graph. Nodes and edges are
// addressed by name rather than handle, supporting forward references:
// Depends may name a node that has not been declared yet, as long as it
// is declared before Validate or ToHandleGraph runs. Port aliases let
// callers give memorable names to the root or supplementary root's
// output ports.
type Named struct {
	mu sync.RWMutex

	ops        map[string]ports.Operator
	preds      map[string][]string // raw specifiers, resolved at ToHandleGraph time
	paramPreds map[string][]string // raw specifiers for out-of-band parameter edges

	root    string
	hasRoot bool
	aux     string
	hasAux  bool
	supp    string
	hasSupp bool

	aliases map[string]NamedEdge
	outputs []string
}

// NewNamed returns an empty name-keyed graph builder.
func NewNamed() *Named {
	return &Named{
		ops:        make(map[string]ports.Operator),
		preds:      make(map[string][]string),
		paramPreds: make(map[string][]string),
		aliases:    make(map[string]NamedEdge),
	}
}

// Add declares a node under name. Re-declaring an existing name is an
// error; use ReplaceNode to swap an operator in place.
func (n *Named) Add(name string, op ports.Operator) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.ops[name]; exists {
		return ports.NewGraphError(name, ports.ErrDuplicateNode)
	}
	n.ops[name] = op
	return nil
}

// Root declares name as the sole root node.
func (n *Named) Root(name string, op ports.Operator) error {
	n.mu.Lock()
	if n.hasRoot {
		n.mu.Unlock()
		return ports.NewGraphError(name, ports.ErrMultipleRoots)
	}
	n.mu.Unlock()

	if err := n.Add(name, op); err != nil {
		return err
	}
	n.mu.Lock()
	n.root, n.hasRoot = name, true
	n.mu.Unlock()
	return nil
}

// Aux declares name as the auxiliary node.
func (n *Named) Aux(name string, op ports.Operator) error {
	n.mu.Lock()
	if n.hasAux {
		n.mu.Unlock()
		return ports.NewGraphError(name, fmt.Errorf("auxiliary node already declared"))
	}
	n.mu.Unlock()

	if err := n.Add(name, op); err != nil {
		return err
	}
	n.mu.Lock()
	n.aux, n.hasAux = name, true
	n.mu.Unlock()
	return nil
}

// SuppRoot declares name as the supplementary root.
func (n *Named) SuppRoot(name string, op ports.Operator) error {
	n.mu.Lock()
	if n.hasSupp {
		n.mu.Unlock()
		return ports.NewGraphError(name, fmt.Errorf("supplementary root already declared"))
	}
	n.mu.Unlock()

	if err := n.Add(name, op); err != nil {
		return err
	}
	n.mu.Lock()
	n.supp, n.hasSupp = name, true
	n.mu.Unlock()
	return nil
}

// Depends sets name's ordered predecessor list from textual edge
// specifiers ("producer" or "producer.port"). Producers may be named
// before or after they are declared with Add; Validate catches any that
// are never declared.
func (n *Named) Depends(name string, edges ...string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.ops[name]; !ok {
		return ports.NewGraphError(name, ports.ErrDanglingNode)
	}
	n.preds[name] = append([]string(nil), edges...)
	return nil
}

// DependsParam sets name's out-of-band parameter edges from textual edge
// specifiers. Every edge must resolve to the supplementary root; this is
// checked at Validate/ToHandleGraph time, once the supplementary root is
// known to be declared.
func (n *Named) DependsParam(name string, edges ...string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.ops[name]; !ok {
		return ports.NewGraphError(name, ports.ErrDanglingNode)
	}
	n.paramPreds[name] = append([]string(nil), edges...)
	return nil
}

// AddEdge appends one edge specifier to name's argument list.
func (n *Named) AddEdge(name, edge string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.ops[name]; !ok {
		return ports.NewGraphError(name, ports.ErrDanglingNode)
	}
	n.preds[name] = append(n.preds[name], edge)
	return nil
}

// RemoveEdge removes the first occurrence of edge from name's argument
// list.
func (n *Named) RemoveEdge(name, edge string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	list := n.preds[name]
	for i, cur := range list {
		if cur == edge {
			n.preds[name] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return ports.NewGraphError(name, fmt.Errorf("edge %q not found", edge))
}

// ReplaceEdge swaps the first occurrence of old for replacement in name's
// argument list, preserving position.
func (n *Named) ReplaceEdge(name, old, replacement string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	list := n.preds[name]
	for i, cur := range list {
		if cur == old {
			list[i] = replacement
			return nil
		}
	}
	return ports.NewGraphError(name, fmt.Errorf("edge %q not found", old))
}

// Alias declares aliases as port names 0..len(aliases)-1 on owner, which
// must be the root or the supplementary root. Any edge specifier
// elsewhere in the graph may use an alias in place of "owner.port".
func (n *Named) Alias(owner string, aliases ...string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if owner != n.root && owner != n.supp {
		return ports.NewGraphError(owner, fmt.Errorf("aliases may only be declared on the root or supplementary root"))
	}
	for port, alias := range aliases {
		n.aliases[alias] = NamedEdge{Name: owner, Port: port}
	}
	return nil
}

// Remove deletes name, every edge referencing it, and any alias pointing
// at it.
func (n *Named) Remove(name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.ops[name]; !ok {
		return ports.NewGraphError(name, ports.ErrDanglingNode)
	}
	delete(n.ops, name)
	delete(n.preds, name)
	delete(n.paramPreds, name)
	for consumer, list := range n.preds {
		filtered := list[:0]
		for _, spec := range list {
			e, err := ParseEdge(spec)
			if err == nil && n.resolveAliasLocked(e).Name == name {
				continue
			}
			filtered = append(filtered, spec)
		}
		n.preds[consumer] = filtered
	}
	for consumer, list := range n.paramPreds {
		filtered := list[:0]
		for _, spec := range list {
			e, err := ParseEdge(spec)
			if err == nil && n.resolveAliasLocked(e).Name == name {
				continue
			}
			filtered = append(filtered, spec)
		}
		n.paramPreds[consumer] = filtered
	}
	outFiltered := n.outputs[:0]
	for _, spec := range n.outputs {
		e, err := ParseEdge(spec)
		if err == nil && n.resolveAliasLocked(e).Name == name {
			continue
		}
		outFiltered = append(outFiltered, spec)
	}
	n.outputs = outFiltered
	for alias, target := range n.aliases {
		if target.Name == name {
			delete(n.aliases, alias)
		}
	}
	if n.hasRoot && n.root == name {
		n.hasRoot = false
	}
	if n.hasAux && n.aux == name {
		n.hasAux = false
	}
	if n.hasSupp && n.supp == name {
		n.hasSupp = false
	}
	return nil
}

// Rename changes name's identity to newName, updating every edge
// specifier, alias, and the output list that referenced it.
func (n *Named) Rename(name, newName string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	op, ok := n.ops[name]
	if !ok {
		return ports.NewGraphError(name, ports.ErrDanglingNode)
	}
	if _, exists := n.ops[newName]; exists {
		return ports.NewGraphError(newName, ports.ErrDuplicateNode)
	}
	delete(n.ops, name)
	n.ops[newName] = op
	n.preds[newName] = n.preds[name]
	delete(n.preds, name)
	n.paramPreds[newName] = n.paramPreds[name]
	delete(n.paramPreds, name)

	rewrite := func(spec string) string {
		e, err := ParseEdge(spec)
		if err != nil || e.Name != name {
			return spec
		}
		return fmt.Sprintf("%s.%d", newName, e.Port)
	}
	for consumer, list := range n.preds {
		for i, spec := range list {
			list[i] = rewrite(spec)
		}
		n.preds[consumer] = list
	}
	for consumer, list := range n.paramPreds {
		for i, spec := range list {
			list[i] = rewrite(spec)
		}
		n.paramPreds[consumer] = list
	}
	for i, spec := range n.outputs {
		n.outputs[i] = rewrite(spec)
	}
	for alias, target := range n.aliases {
		if target.Name == name {
			n.aliases[alias] = NamedEdge{Name: newName, Port: target.Port}
		}
	}
	if n.hasRoot && n.root == name {
		n.root = newName
	}
	if n.hasAux && n.aux == name {
		n.aux = newName
	}
	if n.hasSupp && n.supp == name {
		n.supp = newName
	}
	return nil
}

// ReplaceNode swaps the operator behind name, leaving its adjacency
// untouched.
func (n *Named) ReplaceNode(name string, op ports.Operator) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.ops[name]; !ok {
		return ports.NewGraphError(name, ports.ErrDanglingNode)
	}
	n.ops[name] = op
	return nil
}

// AddOutput appends edge specifiers to the declared output list.
func (n *Named) AddOutput(edges ...string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outputs = append(n.outputs, edges...)
	return nil
}

// SetOutput replaces the declared output list.
func (n *Named) SetOutput(edges ...string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outputs = append([]string(nil), edges...)
	return nil
}

// Merge copies other's nodes, edges, and outputs into n. On a name
// conflict n's declaration takes precedence and the conflicting node from
// other, along with edges it alone contributed, is dropped.
func (n *Named) Merge(other *Named) error {
	other.mu.RLock()
	defer other.mu.RUnlock()
	n.mu.Lock()
	defer n.mu.Unlock()

	for name, op := range other.ops {
		if _, exists := n.ops[name]; exists {
			continue
		}
		n.ops[name] = op
		n.preds[name] = append([]string(nil), other.preds[name]...)
		if edges, ok := other.paramPreds[name]; ok {
			n.paramPreds[name] = append([]string(nil), edges...)
		}
	}
	for alias, target := range other.aliases {
		if _, exists := n.aliases[alias]; !exists {
			n.aliases[alias] = target
		}
	}
	if !n.hasRoot && other.hasRoot {
		n.root, n.hasRoot = other.root, true
	}
	if !n.hasAux && other.hasAux {
		n.aux, n.hasAux = other.aux, true
	}
	if !n.hasSupp && other.hasSupp {
		n.supp, n.hasSupp = other.supp, true
	}
	n.outputs = append(n.outputs, other.outputs...)
	return nil
}

func (n *Named) resolveAliasLocked(e NamedEdge) NamedEdge {
	if target, ok := n.aliases[e.Name]; ok {
		return target
	}
	return e
}

// Validate reports undeclared forward references, out-of-range ports,
// parameter edges that do not come from the supplementary root, and basic
// root/aux invariants. Full cycle detection happens during compilation.
func (n *Named) Validate() error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if len(n.ops) > 0 && !n.hasRoot {
		return ports.NewGraphError("", ports.ErrNoRoot)
	}

	checkEdge := func(owner, spec string) error {
		e, err := ParseEdge(spec)
		if err != nil {
			return ports.NewGraphError(owner, err)
		}
		target := n.resolveAliasLocked(e)
		producer, ok := n.ops[target.Name]
		if !ok {
			return ports.NewEdgeError(target.Name, target.Port, ports.ErrDanglingNode)
		}
		if target.Port >= producer.NumOutputs() {
			return ports.NewEdgeError(target.Name, target.Port, ports.ErrPortOutOfRange)
		}
		if n.hasAux && owner == n.aux {
			if target.Name != n.root {
				return ports.NewGraphError(owner, ports.ErrAuxTargetInvalid)
			}
		}
		return nil
	}

	for name := range n.ops {
		for _, spec := range n.preds[name] {
			if err := checkEdge(name, spec); err != nil {
				return err
			}
		}
	}
	for name, specs := range n.paramPreds {
		if len(specs) == 0 {
			continue
		}
		if !n.hasSupp {
			return ports.NewGraphError(name, fmt.Errorf("no supplementary root declared"))
		}
		if _, ok := n.ops[name].(ports.ParamOperator); !ok {
			return ports.NewGraphError(name, fmt.Errorf("node does not implement ParamOperator"))
		}
		for _, spec := range specs {
			e, err := ParseEdge(spec)
			if err != nil {
				return ports.NewGraphError(name, err)
			}
			target := n.resolveAliasLocked(e)
			if target.Name != n.supp {
				return ports.NewGraphError(name, ports.ErrAuxTargetInvalid)
			}
			producer := n.ops[target.Name]
			if target.Port >= producer.NumOutputs() {
				return ports.NewEdgeError(target.Name, target.Port, ports.ErrPortOutOfRange)
			}
		}
	}
	for _, spec := range n.outputs {
		if err := checkEdge("", spec); err != nil {
			return err
		}
	}
	return nil
}

// ToHandleGraph compiles the name-keyed declarations into a handle-keyed
// Graph, resolving aliases and edge specifiers along the way. The
// returned map lets callers translate names back to the handles the
// compiler will assign record offsets to.
func (n *Named) ToHandleGraph() (*Graph, map[string]Handle, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	g := NewGraph()
	handles := make(map[string]Handle, len(n.ops))
	for name, op := range n.ops {
		handles[name] = g.Add(op)
	}

	resolve := func(spec string) (Edge, error) {
		e, err := ParseEdge(spec)
		if err != nil {
			return Edge{}, err
		}
		target := n.resolveAliasLocked(e)
		h, ok := handles[target.Name]
		if !ok {
			return Edge{}, ports.NewEdgeError(target.Name, target.Port, ports.ErrDanglingNode)
		}
		return Edge{Producer: h, Port: target.Port}, nil
	}

	for name := range n.ops {
		specs := n.preds[name]
		edges := make([]Edge, 0, len(specs))
		for _, spec := range specs {
			e, err := resolve(spec)
			if err != nil {
				return nil, nil, err
			}
			edges = append(edges, e)
		}
		if err := g.Depends(handles[name], edges...); err != nil {
			return nil, nil, err
		}
	}

	if n.hasRoot {
		g.mu.Lock()
		g.root, g.hasRoot = handles[n.root], true
		g.mu.Unlock()
	}
	if n.hasAux {
		g.mu.Lock()
		g.aux, g.hasAux = handles[n.aux], true
		g.mu.Unlock()
	}
	if n.hasSupp {
		g.mu.Lock()
		g.supp, g.hasSupp = handles[n.supp], true
		g.mu.Unlock()
	}

	for name, specs := range n.paramPreds {
		if len(specs) == 0 {
			continue
		}
		edges := make([]Edge, 0, len(specs))
		for _, spec := range specs {
			e, err := resolve(spec)
			if err != nil {
				return nil, nil, err
			}
			edges = append(edges, e)
		}
		if err := g.DependsParam(handles[name], edges...); err != nil {
			return nil, nil, err
		}
	}

	outEdges := make([]Edge, 0, len(n.outputs))
	for _, spec := range n.outputs {
		e, err := resolve(spec)
		if err != nil {
			return nil, nil, err
		}
		outEdges = append(outEdges, e)
	}
	if err := g.SetOutput(outEdges...); err != nil {
		return nil, nil, err
	}

	return g, handles, nil
}
