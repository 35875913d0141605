package highlight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/ifcsync/internal/core/conflict"
	"github.com/agenthands/ifcsync/internal/core/identity"
	"github.com/agenthands/ifcsync/internal/core/model"
	"github.com/agenthands/ifcsync/internal/geometry"
	"github.com/agenthands/ifcsync/internal/scene"
)

func elements(t *testing.T, p scene.Palette, types map[identity.CanonicalID]string) map[identity.CanonicalID]*scene.Element {
	t.Helper()
	out := make(map[identity.CanonicalID]*scene.Element, len(types))
	for id, typ := range types {
		m, err := geometry.NewMesh([]float32{0, 0, 0, 1, 0, 0, 0, 1, 0}, []uint32{0, 1, 2})
		require.NoError(t, err)
		out[id] = scene.NewElement(id, typ, &scene.Node{Name: string(id), Mesh: m}, p.ForType(typ))
	}
	return out
}

func conflicts(ids ...string) *conflict.Index {
	var rs []model.ValidationResult
	for _, id := range ids {
		rs = append(rs, model.ValidationResult{Type: model.ResultConflict, Element: "ifc:" + id, Message: "conflito " + id})
	}
	return conflict.Build(rs)
}

// A wall G1 in conflict: red, then picked (red base with emissive), then
// cleared back to red.
func TestWallConflictScenario(t *testing.T) {
	p := scene.DefaultPalette()
	m := NewMachine(p)
	els := elements(t, p, map[identity.CanonicalID]string{"G1": "IfcWall", "G2": "IfcSlab"})

	missing := m.LoadModel(els, conflicts("G1"))
	assert.Empty(t, missing)
	assert.Equal(t, StateConflicted, m.State())
	assert.Equal(t, p.Conflict, els["G1"].Current())
	assert.Equal(t, p.Default, els["G2"].Current())

	require.True(t, m.Pick("G1"))
	assert.Equal(t, StateSelected, m.State())
	g1 := els["G1"].Current()
	assert.Equal(t, p.Conflict.Color, g1.Color)
	assert.Equal(t, p.PickedEmissive, g1.Emissive)
	require.NoError(t, m.Verify())

	m.ClearPick()
	assert.Equal(t, StateConflicted, m.State())
	assert.Equal(t, p.Conflict, els["G1"].Current())
	require.NoError(t, m.Verify())
}

func TestPickMovesBetweenElements(t *testing.T) {
	p := scene.DefaultPalette()
	m := NewMachine(p)
	els := elements(t, p, map[identity.CanonicalID]string{"A": "IfcWall", "B": "IfcSlab"})
	m.LoadModel(els, nil)
	assert.Equal(t, StateClean, m.State())

	require.True(t, m.Pick("A"))
	require.True(t, m.Pick("B"))

	assert.Equal(t, p.Wall, els["A"].Current())
	assert.Equal(t, p.PickedEmissive, els["B"].Current().Emissive)
	id, ok := m.Picked()
	assert.True(t, ok)
	assert.Equal(t, identity.CanonicalID("B"), id)
	assert.Equal(t, []identity.CanonicalID{"B"}, m.Highlighted())
	require.NoError(t, m.Verify())
}

func TestPickUnknownIsNoop(t *testing.T) {
	p := scene.DefaultPalette()
	m := NewMachine(p)
	els := elements(t, p, map[identity.CanonicalID]string{"A": "IfcSlab"})
	m.LoadModel(els, conflicts("A"))
	require.True(t, m.Pick("A"))

	assert.False(t, m.Pick("ZZZ"))
	id, _ := m.Picked()
	assert.Equal(t, identity.CanonicalID("A"), id)
	require.NoError(t, m.Verify())
}

func TestLoadModelResetsPickAndReportsMissing(t *testing.T) {
	p := scene.DefaultPalette()
	m := NewMachine(p)
	m.LoadModel(elements(t, p, map[identity.CanonicalID]string{"A": "IfcSlab"}), nil)
	require.True(t, m.Pick("A"))

	els := elements(t, p, map[identity.CanonicalID]string{"B": "IfcSlab"})
	missing := m.LoadModel(els, conflicts("B", "GHOST"))

	assert.Equal(t, []identity.CanonicalID{"GHOST"}, missing)
	_, ok := m.Picked()
	assert.False(t, ok)
	assert.True(t, m.Conflicted("B"))
	assert.False(t, m.Conflicted("GHOST"))
	_, ok = m.Element("A")
	assert.False(t, ok)
	require.NoError(t, m.Verify())
}

func TestAppearanceInvariantHoldsAcrossSequences(t *testing.T) {
	p := scene.DefaultPalette()
	m := NewMachine(p)
	els := elements(t, p, map[identity.CanonicalID]string{"A": "IfcWall", "B": "IfcSlab", "C": "IfcDoor"})
	m.LoadModel(els, conflicts("A", "C"))

	steps := []func(){
		func() { m.Pick("A") },
		func() { m.Pick("B") },
		func() { m.ClearPick() },
		func() { m.Pick("C") },
		func() { m.Pick("nope") },
		func() { m.Pick("C") },
		func() { m.ClearPick() },
		func() { m.ClearPick() },
	}
	for i, step := range steps {
		step()
		require.NoError(t, m.Verify(), "step %d", i)
	}
}

// Conflicts outside the scene still put the model in the conflicted state,
// while no element changes appearance.
func TestConflictWithoutElement(t *testing.T) {
	p := scene.DefaultPalette()
	m := NewMachine(p)
	els := elements(t, p, map[identity.CanonicalID]string{"B": "IfcSlab"})

	missing := m.LoadModel(els, conflicts("GHOST"))
	assert.Equal(t, []identity.CanonicalID{"GHOST"}, missing)
	assert.Equal(t, StateConflicted, m.State())
	assert.Equal(t, p.Default, els["B"].Current())
	assert.Empty(t, m.Highlighted())
	assert.False(t, m.Conflicted("GHOST"))

	m.LoadModel(nil, nil)
	assert.Equal(t, StateClean, m.State())
}
