// Package viewer3d drives the 3D surface: attaching models, framing the camera
// and turning pointer positions into element ids.
package viewer3d

import (
	"sync"

	"github.com/agenthands/ifcsync/internal/scene"
)

// Surface is the rendering collaborator. Implementations draw whatever root is
// attached, with the materials currently set on its nodes.
type Surface interface {
	Attach(root *scene.Group)
	Detach(root *scene.Group)
	Camera() *scene.Camera
	// Invalidate requests a redraw after materials or the camera changed.
	Invalidate()
}

// Headless is an in-memory Surface. It keeps the attached root and counts
// redraw requests so the service can expose them to a remote renderer.
type Headless struct {
	mu     sync.Mutex
	root   *scene.Group
	camera *scene.Camera
	frames uint64
}

func NewHeadless(fov float64) *Headless {
	return &Headless{camera: scene.NewCamera(fov)}
}

func (h *Headless) Attach(root *scene.Group) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.root = root
}

func (h *Headless) Detach(root *scene.Group) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.root == root {
		h.root = nil
	}
}

func (h *Headless) Camera() *scene.Camera {
	return h.camera
}

func (h *Headless) Invalidate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames++
}

func (h *Headless) Root() *scene.Group {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.root
}

// Frames is the number of redraws requested so far.
func (h *Headless) Frames() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frames
}
