package viewer3d

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/ifcsync/internal/core/identity"
	"github.com/agenthands/ifcsync/internal/geometry"
	"github.com/agenthands/ifcsync/internal/scene"
)

func quad(t *testing.T, z float32) *geometry.Mesh {
	t.Helper()
	m, err := geometry.NewMesh(
		[]float32{-1, -1, z, 1, -1, z, 1, 1, z, -1, 1, z},
		[]uint32{0, 1, 2, 0, 2, 3},
	)
	require.NoError(t, err)
	return m
}

type fixture struct {
	root     *scene.Group
	elements map[identity.CanonicalID]*scene.Element
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	p := scene.DefaultPalette()
	root := scene.NewGroup()
	elements := map[identity.CanonicalID]*scene.Element{}
	for id, z := range map[identity.CanonicalID]float32{"far": 0, "near": 2} {
		n := &scene.Node{Name: string(id), Mesh: quad(t, z)}
		root.Add(n)
		elements[id] = scene.NewElement(id, "IfcSlab", n, p.Default)
	}
	// Closest to the camera but not addressable.
	root.Add(&scene.Node{Name: "annotation", Mesh: quad(t, 5)})
	return fixture{root: root, elements: elements}
}

func lookDownZ(h *Headless) {
	cam := h.Camera()
	cam.Position = mgl64.Vec3{0, 0, 10}
	cam.Target = mgl64.Vec3{}
	cam.FOV = 90
}

func TestLoadFramesAndAttaches(t *testing.T) {
	h := NewHeadless(75)
	c := NewController(h, 1.5, nil)
	f := newFixture(t)

	c.Load(f.root, f.elements)

	assert.Same(t, f.root, h.Root())
	assert.Equal(t, uint64(1), h.Frames())
	cam := h.Camera()
	center := f.root.Bounds().Center()
	assert.InDelta(t, center.X(), cam.Target.X(), 1e-9)
	assert.InDelta(t, center.Z(), cam.Target.Z(), 1e-9)
	d := scene.FramingDistance(f.root.Bounds().MaxExtent(), 75, 1.5)
	assert.InDelta(t, center.X()+d, cam.Position.X(), 1e-9)
}

func TestReloadReleasesPreviousRoot(t *testing.T) {
	h := NewHeadless(75)
	c := NewController(h, 1.5, nil)
	first := newFixture(t)
	second := newFixture(t)

	c.Load(first.root, first.elements)
	c.Load(second.root, second.elements)

	assert.True(t, first.root.Released())
	assert.False(t, second.root.Released())
	assert.Same(t, second.root, h.Root())
	assert.Same(t, second.root, c.Root())
}

func TestPickNearestElement(t *testing.T) {
	h := NewHeadless(75)
	c := NewController(h, 1.5, nil)
	f := newFixture(t)
	c.Load(f.root, f.elements)
	lookDownZ(h)

	id, ok := c.Pick(0, 0)
	require.True(t, ok)
	assert.Equal(t, identity.CanonicalID("near"), id)

	_, ok = c.Pick(0.9, 0.9)
	assert.False(t, ok)
}

func TestPickHonoursNodeTransform(t *testing.T) {
	h := NewHeadless(75)
	c := NewController(h, 1.5, nil)
	f := newFixture(t)
	f.elements["near"].Node.Transform = mgl64.Translate3D(5, 0, 0)
	c.Load(f.root, f.elements)
	lookDownZ(h)

	id, ok := c.Pick(0, 0)
	require.True(t, ok)
	assert.Equal(t, identity.CanonicalID("far"), id)
}

func TestPickHonoursRootTransform(t *testing.T) {
	h := NewHeadless(75)
	c := NewController(h, 1.5, nil)
	f := newFixture(t)
	f.root.Transform = mgl64.Translate3D(0, 0, -20)
	c.Load(f.root, f.elements)
	lookDownZ(h)

	// Both quads move away from the camera; the nearer one still wins.
	id, ok := c.Pick(0, 0)
	require.True(t, ok)
	assert.Equal(t, identity.CanonicalID("near"), id)
}

func TestPickWithoutModel(t *testing.T) {
	c := NewController(NewHeadless(75), 1.5, nil)
	_, ok := c.Pick(0, 0)
	assert.False(t, ok)
}

func TestFrameOn(t *testing.T) {
	h := NewHeadless(75)
	c := NewController(h, 1.5, nil)
	f := newFixture(t)
	f.elements["near"].Node.Transform = mgl64.Translate3D(5, 0, 0)
	c.Load(f.root, f.elements)
	before := f.elements["near"].Current()

	require.True(t, c.FrameOn("near"))
	assert.InDelta(t, 5.0, h.Camera().Target.X(), 1e-9)
	assert.InDelta(t, 2.0, h.Camera().Target.Z(), 1e-9)
	assert.Equal(t, before, f.elements["near"].Current())
	assert.Equal(t, uint64(2), h.Frames())

	assert.False(t, c.FrameOn("missing"))
}

func TestNormalizePointer(t *testing.T) {
	r := Rect{Left: 100, Top: 50, Width: 200, Height: 100}

	x, y, ok := NormalizePointer(200, 100, r)
	require.True(t, ok)
	assert.InDelta(t, 0.0, x, 1e-9)
	assert.InDelta(t, 0.0, y, 1e-9)

	x, y, ok = NormalizePointer(100, 50, r)
	require.True(t, ok)
	assert.InDelta(t, -1.0, x, 1e-9)
	assert.InDelta(t, 1.0, y, 1e-9)

	_, _, ok = NormalizePointer(99, 50, r)
	assert.False(t, ok)
	_, _, ok = NormalizePointer(0, 0, Rect{})
	assert.False(t, ok)
}
