package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/agenthands/ifcsync/internal/geometry"
)

type Camera struct {
	Position mgl64.Vec3 `json:"position"`
	Target   mgl64.Vec3 `json:"target"`
	Up       mgl64.Vec3 `json:"up"`
	// FOV is the vertical field of view in degrees.
	FOV    float64 `json:"fov"`
	Aspect float64 `json:"aspect"`
	Near   float64 `json:"near"`
	Far    float64 `json:"far"`
}

func NewCamera(fov float64) *Camera {
	return &Camera{
		Position: mgl64.Vec3{15, 15, 15},
		Target:   mgl64.Vec3{},
		Up:       mgl64.Vec3{0, 1, 0},
		FOV:      fov,
		Aspect:   1,
		Near:     0.1,
		Far:      1000,
	}
}

// Ray casts from the camera through normalised device coordinates
// (x, y in [-1, 1], y up).
func (c *Camera) Ray(x, y float64) geometry.Ray {
	forward := c.Target.Sub(c.Position)
	if forward.Len() == 0 {
		forward = mgl64.Vec3{0, 0, -1}
	}
	forward = forward.Normalize()
	right := forward.Cross(c.Up)
	if right.Len() == 0 {
		right = mgl64.Vec3{1, 0, 0}
	}
	right = right.Normalize()
	up := right.Cross(forward)

	tanHalf := math.Tan(mgl64.DegToRad(c.FOV) / 2)
	aspect := c.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	dir := forward.
		Add(right.Mul(x * tanHalf * aspect)).
		Add(up.Mul(y * tanHalf))
	return geometry.Ray{Origin: c.Position, Dir: dir.Normalize()}
}

// FramingDistance is how far the camera must sit for a box of the given
// extent to fit the vertical field of view, scaled by margin.
func FramingDistance(maxExtent, fov, margin float64) float64 {
	half := mgl64.DegToRad(fov) / 2
	return math.Abs(maxExtent/2/math.Tan(half)) * margin
}

// Frame points the camera at the box from the (+1, +1, +1) diagonal.
// It reports false for an empty box and leaves the camera untouched.
func (c *Camera) Frame(b geometry.Box, margin float64) bool {
	if b.IsEmpty() {
		return false
	}
	center := b.Center()
	d := FramingDistance(b.MaxExtent(), c.FOV, margin)
	c.Position = center.Add(mgl64.Vec3{d, d, d})
	c.Target = center
	if d > c.Far/2 {
		c.Far = d * 4
	}
	return true
}
