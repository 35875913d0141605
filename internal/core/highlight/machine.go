// Package highlight owns which material every element shows. Precedence is
// picked over conflicted over the type default.
package highlight

import (
	"fmt"
	"sort"

	"github.com/agenthands/ifcsync/internal/core/conflict"
	"github.com/agenthands/ifcsync/internal/core/identity"
	"github.com/agenthands/ifcsync/internal/scene"
)

type State int

const (
	StateClean State = iota
	StateConflicted
	StateSelected
)

func (s State) String() string {
	switch s {
	case StateConflicted:
		return "conflicted"
	case StateSelected:
		return "selected"
	default:
		return "clean"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Machine is not safe for concurrent use; the engine serialises access.
type Machine struct {
	palette   scene.Palette
	elements  map[identity.CanonicalID]*scene.Element
	conflicts *conflict.Index
	picked    identity.CanonicalID
}

func NewMachine(p scene.Palette) *Machine {
	return &Machine{
		palette:  p,
		elements: map[identity.CanonicalID]*scene.Element{},
	}
}

// LoadModel replaces the element set and conflict set, clearing any pick.
// Conflict ids with no matching element are ignored here and returned.
func (m *Machine) LoadModel(elements map[identity.CanonicalID]*scene.Element, conflicts *conflict.Index) []identity.CanonicalID {
	if elements == nil {
		elements = map[identity.CanonicalID]*scene.Element{}
	}
	m.elements = elements
	m.conflicts = conflicts
	m.picked = ""

	var missing []identity.CanonicalID
	for _, id := range conflicts.IDs() {
		if _, ok := elements[id]; !ok {
			missing = append(missing, id)
		}
	}
	for id := range elements {
		m.refresh(id)
	}
	return missing
}

// Pick selects id. An id outside the current model returns false and leaves
// the state unchanged.
func (m *Machine) Pick(id identity.CanonicalID) bool {
	if _, ok := m.elements[id]; !ok {
		return false
	}
	prev := m.picked
	m.picked = id
	if prev != "" && prev != id {
		m.refresh(prev)
	}
	m.refresh(id)
	return true
}

func (m *Machine) ClearPick() {
	prev := m.picked
	m.picked = ""
	if prev != "" {
		m.refresh(prev)
	}
}

func (m *Machine) State() State {
	switch {
	case m.picked != "":
		return StateSelected
	case m.conflicts.Len() > 0:
		return StateConflicted
	default:
		return StateClean
	}
}

func (m *Machine) Picked() (identity.CanonicalID, bool) {
	return m.picked, m.picked != ""
}

// Conflicted reports whether id is conflicted and present in the scene.
func (m *Machine) Conflicted(id identity.CanonicalID) bool {
	_, ok := m.elements[id]
	return ok && m.conflicts.Has(id)
}

// AppearanceOf is the appearance id should show by precedence.
func (m *Machine) AppearanceOf(id identity.CanonicalID) scene.Appearance {
	switch {
	case id != "" && id == m.picked:
		return scene.AppearancePicked
	case m.conflicts.Has(id):
		return scene.AppearanceConflict
	default:
		return scene.AppearanceDefault
	}
}

func (m *Machine) Element(id identity.CanonicalID) (*scene.Element, bool) {
	el, ok := m.elements[id]
	return el, ok
}

// Highlighted lists the ids currently shown with a non-default appearance.
func (m *Machine) Highlighted() []identity.CanonicalID {
	var ids []identity.CanonicalID
	for id, el := range m.elements {
		if el.Appearance != scene.AppearanceDefault {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Verify checks that every element shows the material its appearance
// requires.
func (m *Machine) Verify() error {
	for id, el := range m.elements {
		want := m.AppearanceOf(id)
		if el.Appearance != want {
			return fmt.Errorf("element %s shows %s, want %s", id, el.Appearance, want)
		}
		if el.Current() != m.palette.Resolve(el.Original, want, m.conflicts.Has(id)) {
			return fmt.Errorf("element %s material does not match %s", id, want)
		}
	}
	return nil
}

func (m *Machine) refresh(id identity.CanonicalID) {
	el, ok := m.elements[id]
	if !ok {
		return
	}
	el.Apply(m.palette, m.AppearanceOf(id), m.conflicts.Has(id))
}
