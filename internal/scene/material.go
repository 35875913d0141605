package scene

import "fmt"

type Appearance int

const (
	AppearanceDefault Appearance = iota
	AppearanceConflict
	AppearancePicked
)

func (a Appearance) String() string {
	switch a {
	case AppearanceConflict:
		return "conflict"
	case AppearancePicked:
		return "picked"
	default:
		return "default"
	}
}

func (a Appearance) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

type Material struct {
	Name        string  `json:"name"`
	Color       uint32  `json:"color"`
	Opacity     float64 `json:"opacity"`
	Transparent bool    `json:"transparent"`
	Emissive    uint32  `json:"emissive,omitempty"`
	// Unlit materials ignore scene lighting.
	Unlit bool `json:"unlit,omitempty"`
}

func (m Material) Hex() string {
	return fmt.Sprintf("#%06x", m.Color&0xffffff)
}

// Palette is the fixed set of materials the engine assigns.
type Palette struct {
	Default  Material
	Wall     Material
	Conflict Material
	// PickedEmissive is added on top of whatever material the element shows
	// underneath the pick.
	PickedEmissive uint32
	WallTypes      map[string]bool
}

func NewPalette(defaultColor, wallColor uint32, wallOpacity float64, conflictColor, pickedEmissive uint32, wallTypes []string) Palette {
	types := make(map[string]bool, len(wallTypes))
	for _, t := range wallTypes {
		types[t] = true
	}
	return Palette{
		Default:        Material{Name: "default", Color: defaultColor, Opacity: 1},
		Wall:           Material{Name: "wall", Color: wallColor, Opacity: wallOpacity, Transparent: wallOpacity < 1},
		Conflict:       Material{Name: "conflict", Color: conflictColor, Opacity: 1, Unlit: true},
		PickedEmissive: pickedEmissive,
		WallTypes:      types,
	}
}

func DefaultPalette() Palette {
	return NewPalette(0xcccccc, 0x8090a0, 0.7, 0xff0000, 0xffff00, []string{"IfcWall", "IfcWallStandardCase"})
}

// ForType returns the type-default material.
func (p Palette) ForType(ifcType string) Material {
	if p.WallTypes[ifcType] {
		return p.Wall
	}
	return p.Default
}

// Resolve computes the material an element shows for a given appearance.
func (p Palette) Resolve(original Material, a Appearance, conflicted bool) Material {
	switch a {
	case AppearancePicked:
		base := original
		if conflicted {
			base = p.Conflict
		}
		base.Name = "picked"
		base.Emissive = p.PickedEmissive
		return base
	case AppearanceConflict:
		return p.Conflict
	default:
		return original
	}
}
