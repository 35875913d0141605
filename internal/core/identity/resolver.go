// Package identity maps the three textual shapes an element identifier takes
// (ontology URIs, 3D mesh node names and bare GUIDs) onto one canonical key.
package identity

import (
	"regexp"
	"strings"
)

// CanonicalID is the join key shared by scene elements, graph nodes and conflicts.
type CanonicalID string

type Kind int

const (
	KindBareGUID Kind = iota
	// KindOntologyURI is a graph node URI such as "http://exemplo.org/bim#G1".
	KindOntologyURI
	// KindConflictKey is the element key of a validation result, e.g. "ifc:G1".
	KindConflictKey
	// KindMeshNodeName is a composite-asset node name, e.g. "product-0a1b-body".
	KindMeshNodeName
)

func (k Kind) String() string {
	switch k {
	case KindOntologyURI:
		return "ontology_uri"
	case KindConflictKey:
		return "conflict_key"
	case KindMeshNodeName:
		return "mesh_node_name"
	default:
		return "bare_guid"
	}
}

// Surface is one textual rendering of an element identifier.
type Surface struct {
	Kind Kind
	Raw  string
}

func OntologyURI(raw string) Surface  { return Surface{Kind: KindOntologyURI, Raw: raw} }
func ConflictKey(raw string) Surface  { return Surface{Kind: KindConflictKey, Raw: raw} }
func MeshNodeName(raw string) Surface { return Surface{Kind: KindMeshNodeName, Raw: raw} }
func BareGUID(raw string) Surface     { return Surface{Kind: KindBareGUID, Raw: raw} }

var meshNamePattern = regexp.MustCompile(`product-([0-9A-Fa-f-]+)-body`)

// Resolve never fails: a shape it does not recognise comes back unchanged, so
// lookups with it simply miss.
func Resolve(s Surface) CanonicalID {
	switch s.Kind {
	case KindOntologyURI:
		return FromURI(s.Raw)
	case KindConflictKey:
		return FromConflictKey(s.Raw)
	case KindMeshNodeName:
		return FromMeshName(s.Raw)
	default:
		return FromGUID(s.Raw)
	}
}

// FromURI takes the segment after the last '#', falling back to the segment
// after the last '/'.
func FromURI(uri string) CanonicalID {
	if seg, ok := tailAfter(uri, "#"); ok {
		return CanonicalID(seg)
	}
	if seg, ok := tailAfter(uri, "/"); ok {
		return CanonicalID(seg)
	}
	return CanonicalID(uri)
}

// FromConflictKey takes the segment after the rightmost ':' or '#'.
func FromConflictKey(key string) CanonicalID {
	if seg, ok := tailAfter(key, ":#"); ok {
		return CanonicalID(seg)
	}
	return CanonicalID(key)
}

// FromMeshName extracts the id embedded in "product-<id>-body".
func FromMeshName(name string) CanonicalID {
	id, ok := ParseMeshName(name)
	if !ok {
		return CanonicalID(name)
	}
	return id
}

// ParseMeshName reports whether name carries an embedded element id.
func ParseMeshName(name string) (CanonicalID, bool) {
	m := meshNamePattern.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return CanonicalID(m[1]), true
}

func FromGUID(guid string) CanonicalID {
	return CanonicalID(guid)
}

// MatchesURI reports whether a graph node URI identifies id.
func MatchesURI(uri string, id CanonicalID) bool {
	return id != "" && FromURI(uri) == id
}

// tailAfter returns the non-empty text after the rightmost occurrence of any
// rune in delims.
func tailAfter(s, delims string) (string, bool) {
	i := strings.LastIndexAny(s, delims)
	if i < 0 || i == len(s)-1 {
		return "", false
	}
	return s[i+1:], true
}
