// Package geometry holds the triangle-mesh math the engine needs for ingestion,
// framing and picking.
package geometry

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Mesh is an indexed triangle mesh in model-local coordinates.
type Mesh struct {
	Positions []mgl64.Vec3
	Indices   []uint32
	Normals   []mgl64.Vec3
}

// NewMesh builds a mesh from flat xyz vertex data and triangle indices.
func NewMesh(vertices []float32, indices []uint32) (*Mesh, error) {
	if len(vertices) == 0 {
		return nil, fmt.Errorf("no vertex data")
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("no index data")
	}
	if len(vertices)%3 != 0 {
		return nil, fmt.Errorf("vertex array length %d is not a multiple of 3", len(vertices))
	}
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("index count %d is not a multiple of 3", len(indices))
	}

	positions := make([]mgl64.Vec3, len(vertices)/3)
	for i := range positions {
		positions[i] = mgl64.Vec3{float64(vertices[3*i]), float64(vertices[3*i+1]), float64(vertices[3*i+2])}
	}
	return FromPositions(positions, indices)
}

// FromPositions builds a mesh from already-grouped positions.
func FromPositions(positions []mgl64.Vec3, indices []uint32) (*Mesh, error) {
	if len(positions) == 0 || len(indices) == 0 {
		return nil, fmt.Errorf("empty mesh")
	}
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("index count %d is not a multiple of 3", len(indices))
	}
	for _, idx := range indices {
		if int(idx) >= len(positions) {
			return nil, fmt.Errorf("index %d out of range for %d vertices", idx, len(positions))
		}
	}

	m := &Mesh{
		Positions: positions,
		Indices:   append([]uint32(nil), indices...),
	}
	m.ComputeNormals()
	return m, nil
}

// ComputeNormals derives area-weighted vertex normals from the triangles.
func (m *Mesh) ComputeNormals() {
	normals := make([]mgl64.Vec3, len(m.Positions))
	for t := 0; t+2 < len(m.Indices); t += 3 {
		ia, ib, ic := m.Indices[t], m.Indices[t+1], m.Indices[t+2]
		a, b, c := m.Positions[ia], m.Positions[ib], m.Positions[ic]
		face := b.Sub(a).Cross(c.Sub(a))
		normals[ia] = normals[ia].Add(face)
		normals[ib] = normals[ib].Add(face)
		normals[ic] = normals[ic].Add(face)
	}
	for i, n := range normals {
		if l := n.Len(); l > 0 {
			normals[i] = n.Mul(1 / l)
		}
	}
	m.Normals = normals
}

func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

func (m *Mesh) Triangle(i int) (a, b, c mgl64.Vec3) {
	return m.Positions[m.Indices[3*i]], m.Positions[m.Indices[3*i+1]], m.Positions[m.Indices[3*i+2]]
}

// Bounds returns the mesh's box after applying transform.
func (m *Mesh) Bounds(transform mgl64.Mat4) Box {
	b := EmptyBox()
	for _, p := range m.Positions {
		b = b.Expand(TransformPoint(transform, p))
	}
	return b
}

// Release drops the buffers so a detached model holds no geometry.
func (m *Mesh) Release() {
	m.Positions = nil
	m.Indices = nil
	m.Normals = nil
}

func TransformPoint(m mgl64.Mat4, p mgl64.Vec3) mgl64.Vec3 {
	return m.Mul4x1(p.Vec4(1)).Vec3()
}

func TransformDir(m mgl64.Mat4, d mgl64.Vec3) mgl64.Vec3 {
	return m.Mul4x1(d.Vec4(0)).Vec3()
}
