// Package scene holds the renderable model graph handed to the 3D surface:
// named mesh nodes grouped under one root, and the elements that map a
// canonical id onto a node.
package scene

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/agenthands/ifcsync/internal/core/identity"
	"github.com/agenthands/ifcsync/internal/geometry"
)

// Node is one renderable mesh in the scene.
type Node struct {
	Name     string
	Mesh     *geometry.Mesh
	Material Material
	// Transform places the node inside the root, identity for per-element payloads.
	Transform mgl64.Mat4
}

// Group is the owned scene root of one loaded model.
type Group struct {
	Nodes     []*Node
	Transform mgl64.Mat4
	released  bool
}

func NewGroup() *Group {
	return &Group{Transform: mgl64.Ident4()}
}

func (g *Group) Add(n *Node) {
	if n.Transform == (mgl64.Mat4{}) {
		n.Transform = mgl64.Ident4()
	}
	g.Nodes = append(g.Nodes, n)
}

// WorldTransform is the node-to-world matrix.
func (g *Group) WorldTransform(n *Node) mgl64.Mat4 {
	return g.Transform.Mul4(n.Transform)
}

func (g *Group) Bounds() geometry.Box {
	b := geometry.EmptyBox()
	for _, n := range g.Nodes {
		if n.Mesh == nil {
			continue
		}
		b = b.Union(n.Mesh.Bounds(g.WorldTransform(n)))
	}
	return b
}

// Release frees every mesh buffer. The group must not be rendered afterwards.
func (g *Group) Release() {
	for _, n := range g.Nodes {
		if n.Mesh != nil {
			n.Mesh.Release()
		}
	}
	g.Nodes = nil
	g.released = true
}

func (g *Group) Released() bool {
	return g.released
}

// ZUpToYUp rotates a Z-up model so its vertical axis lands on +Y.
func ZUpToYUp() mgl64.Mat4 {
	return mgl64.HomogRotate3DX(-mgl64.DegToRad(90))
}

// Element is a model element that can be addressed by canonical id.
type Element struct {
	ID          identity.CanonicalID
	Type        string
	Name        string
	Description string
	Material    string
	Node        *Node
	// Original is the type-default material restored when highlighting ends.
	Original   Material
	Appearance Appearance
}

func NewElement(id identity.CanonicalID, ifcType string, node *Node, original Material) *Element {
	node.Material = original
	return &Element{
		ID:       id,
		Type:     ifcType,
		Node:     node,
		Original: original,
	}
}

// Apply sets the displayed material for the given appearance.
func (e *Element) Apply(p Palette, a Appearance, conflicted bool) {
	e.Appearance = a
	e.Node.Material = p.Resolve(e.Original, a, conflicted)
}

// Current is the material currently shown.
func (e *Element) Current() Material {
	return e.Node.Material
}
