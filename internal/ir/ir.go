// Package ir expands a type into the node graph codec providers are generated
// from. Nodes live in a flat arena and reference each other by index.
package ir

import (
	"reflect"

	typecodec "github.com/reoring/typecodec"
	"github.com/reoring/typecodec/hook"
	"github.com/reoring/typecodec/model"
	"github.com/reoring/typecodec/types"
)

// NodeKind identifies an IR node type.
type NodeKind int

const (
	NodeScalar NodeKind = iota
	NodeEnum
	NodeCollection
	NodeObject
	NodeNullable
	NodeUnion
	NodeHooked
)

func (k NodeKind) String() string {
	switch k {
	case NodeScalar:
		return "scalar"
	case NodeEnum:
		return "enum"
	case NodeCollection:
		return "collection"
	case NodeObject:
		return "object"
	case NodeNullable:
		return "nullable"
	case NodeUnion:
		return "union"
	case NodeHooked:
		return "hooked"
	}
	return "unknown"
}

// Ref indexes Graph.Nodes.
type Ref int

// None marks an absent reference.
const None Ref = -1

// Node is one entry of the arena.
type Node struct {
	ID   string // type signature plus hook suffix; unique within a graph
	Kind NodeKind
	Type types.Type

	Enum *model.Enum // NodeEnum

	Item Ref // NodeCollection

	Class  *model.Class // NodeObject
	Props  []Prop
	Params []Param // deserialize only

	Inner Ref // NodeNullable

	Members  []Ref // NodeUnion; serialize order for serialize graphs
	Selected Ref   // NodeUnion; member chosen by the union selector

	HookKey  string // NodeHooked and hooked objects
	Override hook.Override
}

// Prop is a property edge of an object node.
type Prop struct {
	Name    string // declared property name
	Target  string // wire key
	Value   Ref
	Ghost   bool       // Value was completed before this edge was added
	Decl    types.Type // property type before hooks retype it
	Public  bool
	Field   string
	Index   []int
	GoType  reflect.Type
	HookKey string
	Get     func(obj any) (any, error)
	Set     func(obj, v any) error
	// Transform applies before encoding or after decoding.
	Transform func(v any) (any, error)
}

// Param is a constructor parameter edge.
type Param struct {
	Param model.Parameter
	Type  types.Type
	Key   string // wire key
	Value Ref
}

// Graph is the node arena for one (type, direction, strategy, format,
// config variant).
type Graph struct {
	Root      Ref
	Nodes     []Node
	Direction typecodec.Direction
	Strategy  typecodec.Strategy
	Format    typecodec.Format
	Ghosts    int
}

// Node returns the node at r.
func (g *Graph) Node(r Ref) *Node { return &g.Nodes[r] }

// Lookup returns the ref of the node with identifier id.
func (g *Graph) Lookup(id string) (Ref, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return Ref(i), true
		}
	}
	return None, false
}

func (g *Graph) add(n Node) Ref {
	g.Nodes = append(g.Nodes, n)
	return Ref(len(g.Nodes) - 1)
}
