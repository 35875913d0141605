package viewer3d

import (
	"math"
	"sort"

	"github.com/agenthands/ifcsync/internal/core/identity"
	"github.com/agenthands/ifcsync/internal/geometry"
	"github.com/agenthands/ifcsync/internal/logger"
	"github.com/agenthands/ifcsync/internal/scene"
)

// Rect is a viewport in client pixels.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NormalizePointer maps a client-pixel position inside r to normalised device
// coordinates, y pointing up. Points outside r, or an empty r, report false.
func NormalizePointer(clientX, clientY float64, r Rect) (x, y float64, ok bool) {
	if r.Width <= 0 || r.Height <= 0 {
		return 0, 0, false
	}
	lx, ly := clientX-r.Left, clientY-r.Top
	if lx < 0 || ly < 0 || lx > r.Width || ly > r.Height {
		return 0, 0, false
	}
	return lx/r.Width*2 - 1, -(ly/r.Height)*2 + 1, true
}

type Controller struct {
	surface  Surface
	margin   float64
	root     *scene.Group
	elements map[identity.CanonicalID]*scene.Element
	ids      []identity.CanonicalID
	log      *logger.Logger
}

func NewController(s Surface, margin float64, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.Nop()
	}
	if margin <= 0 {
		margin = 1.5
	}
	return &Controller{
		surface:  s,
		margin:   margin,
		elements: map[identity.CanonicalID]*scene.Element{},
		log:      log.With("component", "viewer3d"),
	}
}

// Load swaps in a new model root. The previous root is detached and its
// buffers released before the new one is attached and framed.
func (c *Controller) Load(root *scene.Group, elements map[identity.CanonicalID]*scene.Element) {
	if c.root != nil && c.root != root {
		c.surface.Detach(c.root)
		c.root.Release()
	}

	c.root = root
	c.elements = elements
	if c.elements == nil {
		c.elements = map[identity.CanonicalID]*scene.Element{}
	}
	c.ids = c.ids[:0]
	for id := range c.elements {
		c.ids = append(c.ids, id)
	}
	sort.Slice(c.ids, func(i, j int) bool { return c.ids[i] < c.ids[j] })

	if root != nil {
		c.surface.Attach(root)
		if !c.surface.Camera().Frame(root.Bounds(), c.margin) {
			c.log.Debug("model has no geometry to frame")
		}
	}
	c.surface.Invalidate()
}

// Root is the currently attached model root, nil before the first load.
func (c *Controller) Root() *scene.Group {
	return c.root
}

// Pick casts a ray from the camera through (x, y) in normalised device
// coordinates and returns the nearest element it hits. Nodes that are not
// addressable elements are never hit.
func (c *Controller) Pick(x, y float64) (identity.CanonicalID, bool) {
	if c.root == nil || len(c.ids) == 0 {
		return "", false
	}
	ray := c.surface.Camera().Ray(x, y)

	var (
		best   identity.CanonicalID
		bestT  = math.Inf(1)
		hitAny bool
	)
	for _, id := range c.ids {
		el := c.elements[id]
		if el.Node == nil || el.Node.Mesh == nil {
			continue
		}
		world := c.root.WorldTransform(el.Node)
		entry, ok := ray.IntersectBox(el.Node.Mesh.Bounds(world))
		if !ok || entry > bestT {
			continue
		}
		local := ray.Transform(world.Inv())
		t, ok := local.IntersectMesh(el.Node.Mesh)
		if ok && t < bestT {
			best, bestT, hitAny = id, t, true
		}
	}
	return best, hitAny
}

// FrameOn points the camera at one element. Materials are not touched.
func (c *Controller) FrameOn(id identity.CanonicalID) bool {
	el, ok := c.elements[id]
	if !ok || el.Node == nil || el.Node.Mesh == nil || c.root == nil {
		return false
	}
	box := el.Node.Mesh.Bounds(c.root.WorldTransform(el.Node))
	if !c.surface.Camera().Frame(box, c.margin) {
		return false
	}
	c.surface.Invalidate()
	return true
}

// Refresh asks the surface to redraw after material changes.
func (c *Controller) Refresh() {
	c.surface.Invalidate()
}

// Bounds is the world-space box of the attached model.
func (c *Controller) Bounds() geometry.Box {
	if c.root == nil {
		return geometry.EmptyBox()
	}
	return c.root.Bounds()
}

func (c *Controller) Camera() scene.Camera {
	return *c.surface.Camera()
}
