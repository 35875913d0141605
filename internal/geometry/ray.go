package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const epsilon = 1e-9

type Ray struct {
	Origin mgl64.Vec3
	Dir    mgl64.Vec3
}

// Transform maps the ray through m without renormalising the direction, so
// hit distances stay comparable across spaces.
func (r Ray) Transform(m mgl64.Mat4) Ray {
	return Ray{
		Origin: TransformPoint(m, r.Origin),
		Dir:    TransformDir(m, r.Dir),
	}
}

func (r Ray) At(t float64) mgl64.Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}

// IntersectBox returns the entry distance of the ray into b (0 when the
// origin is inside).
func (r Ray) IntersectBox(b Box) (float64, bool) {
	if b.IsEmpty() {
		return 0, false
	}
	tmin, tmax := math.Inf(-1), math.Inf(1)
	for i := 0; i < 3; i++ {
		if math.Abs(r.Dir[i]) < epsilon {
			if r.Origin[i] < b.Min[i] || r.Origin[i] > b.Max[i] {
				return 0, false
			}
			continue
		}
		inv := 1 / r.Dir[i]
		t1 := (b.Min[i] - r.Origin[i]) * inv
		t2 := (b.Max[i] - r.Origin[i]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return 0, false
		}
	}
	if tmax < 0 {
		return 0, false
	}
	return math.Max(tmin, 0), true
}

// IntersectTriangle is a double-sided Möller–Trumbore test.
func (r Ray) IntersectTriangle(a, b, c mgl64.Vec3) (float64, bool) {
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	p := r.Dir.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < epsilon {
		return 0, false
	}
	inv := 1 / det
	s := r.Origin.Sub(a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := r.Dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := e2.Dot(q) * inv
	if t <= epsilon {
		return 0, false
	}
	return t, true
}

// IntersectMesh returns the nearest triangle hit of a ray already expressed
// in the mesh's local space.
func (r Ray) IntersectMesh(m *Mesh) (float64, bool) {
	best, hit := math.Inf(1), false
	for i := 0; i < m.TriangleCount(); i++ {
		a, b, c := m.Triangle(i)
		if t, ok := r.IntersectTriangle(a, b, c); ok && t < best {
			best, hit = t, true
		}
	}
	return best, hit
}
