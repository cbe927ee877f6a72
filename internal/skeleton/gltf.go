package skeleton

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
)

var ErrEmptyDocument = errors.New("gltf document has no nodes")

// FromGLTF builds a Graph from an already decoded glTF document's node hierarchy.
// Nodes that are nobody's child become roots in document order.
func FromGLTF(doc *gltf.Document) (*Graph, error) {
	if doc == nil || len(doc.Nodes) == 0 {
		return nil, ErrEmptyDocument
	}

	isChild := make([]bool, len(doc.Nodes))
	for i, n := range doc.Nodes {
		if n == nil {
			continue
		}
		for _, c := range n.Children {
			if c < 0 || c >= len(doc.Nodes) {
				return nil, fmt.Errorf("node %d: child index %d out of range", i, c)
			}
			isChild[c] = true
		}
	}

	g := NewGraph()
	visited := make([]bool, len(doc.Nodes))

	var add func(idx int, parent NodeID) error
	add = func(idx int, parent NodeID) error {
		if visited[idx] {
			return fmt.Errorf("node %d: cycle or shared child", idx)
		}
		visited[idx] = true

		n := doc.Nodes[idx]
		if n == nil {
			return nil
		}
		name := n.Name
		if name == "" {
			name = fmt.Sprintf("node_%d", idx)
		}
		id := g.AddNode(name, parent, gltfTransform(n))
		for _, c := range n.Children {
			if err := add(c, id); err != nil {
				return err
			}
		}
		return nil
	}

	for i := range doc.Nodes {
		if isChild[i] {
			continue
		}
		if err := add(i, InvalidNode); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// gltfTransform reads a node's local transform. A non-identity matrix takes
// precedence over the TRS properties.
func gltfTransform(n *gltf.Node) Transform {
	if m := n.MatrixOrDefault(); m != gltf.DefaultMatrix {
		return decomposeMatrix(mgl64.Mat4(m))
	}
	t := Identity()
	t.Position = mgl64.Vec3(n.TranslationOrDefault())
	r := n.RotationOrDefault()
	t.Rotation = mgl64.Quat{W: r[3], V: mgl64.Vec3{r[0], r[1], r[2]}}.Normalize()
	t.Scale = mgl64.Vec3(n.ScaleOrDefault())
	return t
}

// decomposeMatrix splits a column-major affine matrix into translation, rotation
// and scale. Shear is not representable and is dropped.
func decomposeMatrix(m mgl64.Mat4) Transform {
	t := Identity()
	t.Position = m.Col(3).Vec3()

	x, y, z := m.Col(0).Vec3(), m.Col(1).Vec3(), m.Col(2).Vec3()
	scale := mgl64.Vec3{x.Len(), y.Len(), z.Len()}
	if x.Cross(y).Dot(z) < 0 {
		scale[0] = -scale[0]
	}
	for i, s := range scale {
		if math.Abs(s) < 1e-9 {
			scale[i] = 1
		}
	}
	t.Scale = scale

	rot := mgl64.Ident4()
	rot.SetCol(0, x.Mul(1/scale[0]).Vec4(0))
	rot.SetCol(1, y.Mul(1/scale[1]).Vec4(0))
	rot.SetCol(2, z.Mul(1/scale[2]).Vec4(0))
	t.Rotation = mgl64.Mat4ToQuat(rot).Normalize()
	return t
}
