// Package skeleton is the contract between the motion engines and the scene graph.
//
// Bones are addressed by NodeID, an index into a flat arena. Parents and children
// are stored as indices so no node owns another.
package skeleton

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// NodeID identifies a node inside an Adapter. It is only valid for the generation it was resolved in.
type NodeID int

const InvalidNode NodeID = -1

// Transform is a local or world TRS triple.
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Scale    mgl64.Vec3
}

func Identity() Transform {
	return Transform{Rotation: mgl64.QuatIdent(), Scale: mgl64.Vec3{1, 1, 1}}
}

// Compose returns child expressed in the space parent is expressed in.
func Compose(parent, child Transform) Transform {
	return Transform{
		Position: parent.Position.Add(parent.Rotation.Rotate(mulVec(parent.Scale, child.Position))),
		Rotation: parent.Rotation.Mul(child.Rotation).Normalize(),
		Scale:    mulVec(parent.Scale, child.Scale),
	}
}

func mulVec(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

// Adapter is the abstract named-node hierarchy the engines drive.
// Callers must not assume FindBone is cheap; cache handles per generation.
type Adapter interface {
	// FindBone does a pre-order depth-first search and returns the first node with the name.
	FindBone(name string) (NodeID, bool)
	Name(id NodeID) string
	Parent(id NodeID) NodeID
	// Transform returns the transform relative to the parent.
	Transform(id NodeID) Transform
	// SetTransform replaces the transform relative to the parent.
	SetTransform(id NodeID, t Transform)
	WorldTransform(id NodeID) Transform
	// Walk visits nodes in pre-order until fn returns false.
	Walk(fn func(id NodeID, name string) bool)
	// Generation changes whenever the hierarchy is rebuilt.
	Generation() uint64
}

type node struct {
	name     string
	parent   NodeID
	children []NodeID
	local    Transform
}

// Graph is an in-memory arena Adapter. It also accepts morph weights so it can
// stand in for a renderer.
type Graph struct {
	mu         sync.RWMutex
	nodes      []node
	roots      []NodeID
	morphs     map[string]float32
	generation uint64
}

func NewGraph() *Graph {
	return &Graph{morphs: make(map[string]float32), generation: 1}
}

// AddNode appends a node under parent (InvalidNode for a root) and returns its id.
func (g *Graph) AddNode(name string, parent NodeID, local Transform) NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, node{name: name, parent: parent, local: local})
	if parent == InvalidNode || int(parent) >= len(g.nodes)-1 || parent < 0 {
		g.nodes[id].parent = InvalidNode
		g.roots = append(g.roots, id)
	} else {
		g.nodes[parent].children = append(g.nodes[parent].children, id)
	}
	g.generation++
	return id
}

func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

func (g *Graph) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(g.nodes)
}

func (g *Graph) FindBone(name string) (NodeID, bool) {
	found := InvalidNode
	g.Walk(func(id NodeID, n string) bool {
		if n == name {
			found = id
			return false
		}
		return true
	})
	return found, found != InvalidNode
}

func (g *Graph) Walk(fn func(id NodeID, name string) bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var visit func(id NodeID) bool
	visit = func(id NodeID) bool {
		if !fn(id, g.nodes[id].name) {
			return false
		}
		for _, c := range g.nodes[id].children {
			if !visit(c) {
				return false
			}
		}
		return true
	}
	for _, r := range g.roots {
		if !visit(r) {
			return
		}
	}
}

func (g *Graph) Name(id NodeID) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.valid(id) {
		return ""
	}
	return g.nodes[id].name
}

func (g *Graph) Parent(id NodeID) NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.valid(id) {
		return InvalidNode
	}
	return g.nodes[id].parent
}

func (g *Graph) Children(id NodeID) []NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.valid(id) {
		return nil
	}
	return append([]NodeID(nil), g.nodes[id].children...)
}

// Roots returns top-level nodes in insertion order.
func (g *Graph) Roots() []NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]NodeID(nil), g.roots...)
}

func (g *Graph) Transform(id NodeID) Transform {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.valid(id) {
		return Identity()
	}
	return g.nodes[id].local
}

func (g *Graph) SetTransform(id NodeID, t Transform) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.valid(id) {
		return
	}
	g.nodes[id].local = t
}

func (g *Graph) WorldTransform(id NodeID) Transform {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.valid(id) {
		return Identity()
	}
	t := g.nodes[id].local
	for p := g.nodes[id].parent; p != InvalidNode; p = g.nodes[p].parent {
		t = Compose(g.nodes[p].local, t)
	}
	return t
}

func (g *Graph) Generation() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.generation
}

func (g *Graph) SetMorphWeight(name string, weight float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.morphs[name] = weight
}

func (g *Graph) MorphWeight(name string) float32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.morphs[name]
}
