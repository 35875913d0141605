package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/agenthands/ifcsync/internal/geometry"
	"github.com/agenthands/ifcsync/internal/logger"
	"github.com/agenthands/ifcsync/internal/scene"
)

// ErrAssetPath marks a model path that leaves the asset directory.
var ErrAssetPath = errors.New("asset path outside asset directory")

// FetchFunc retrieves a remote asset's bytes.
type FetchFunc func(ctx context.Context, path string) ([]byte, error)

// GLTFLoader loads glTF/GLB composite assets from AssetDir, or through Fetch
// when the file is not there. An empty AssetDir never touches the disk. Every
// mesh node becomes one scene node.
type GLTFLoader struct {
	AssetDir string
	Fetch    FetchFunc
	Log      *logger.Logger
}

func NewGLTFLoader(assetDir string, fetch FetchFunc, log *logger.Logger) *GLTFLoader {
	if log == nil {
		log = logger.Nop()
	}
	return &GLTFLoader{AssetDir: assetDir, Fetch: fetch, Log: log.With("component", "gltf")}
}

func (l *GLTFLoader) Load(ctx context.Context, path string) (*scene.Group, error) {
	doc, err := l.open(ctx, path)
	if err != nil {
		return nil, err
	}
	return l.build(doc)
}

func (l *GLTFLoader) open(ctx context.Context, p string) (*gltf.Document, error) {
	if l.AssetDir != "" {
		rel := path.Clean(strings.TrimLeft(strings.ReplaceAll(p, "\\", "/"), "/"))
		if !fs.ValidPath(rel) || rel == "." {
			return nil, fmt.Errorf("%w: '%s'", ErrAssetPath, p)
		}
		doc, err := openLocal(os.DirFS(l.AssetDir), rel)
		switch {
		case err == nil:
			return doc, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("failed to open asset: %w", err)
		}
	}
	if l.Fetch == nil {
		return nil, fmt.Errorf("asset '%s' not found locally and no fetcher configured", p)
	}

	data, err := l.Fetch(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch asset: %w", err)
	}
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return nil, fmt.Errorf("failed to decode asset: %w", err)
	}
	return doc, nil
}

// openLocal decodes rel from fsys. External buffers resolve inside fsys too.
func openLocal(fsys fs.FS, rel string) (*gltf.Document, error) {
	f, err := fsys.Open(rel)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sub, err := fs.Sub(fsys, path.Dir(rel))
	if err != nil {
		return nil, err
	}
	doc := new(gltf.Document)
	if err := gltf.NewDecoderFS(f, sub).Decode(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (l *GLTFLoader) build(doc *gltf.Document) (*scene.Group, error) {
	group := scene.NewGroup()
	meshes := make(map[int]*geometry.Mesh)

	var walk func(idx int, parent mgl64.Mat4, depth int) error
	walk = func(idx int, parent mgl64.Mat4, depth int) error {
		if idx < 0 || idx >= len(doc.Nodes) || depth > 64 {
			return fmt.Errorf("invalid node reference %d", idx)
		}
		n := doc.Nodes[idx]
		world := parent.Mul4(localMatrix(n))

		if n.Mesh != nil {
			mesh, err := l.meshAt(doc, *n.Mesh, meshes)
			if err != nil {
				return err
			}
			if mesh != nil {
				name := n.Name
				if name == "" && *n.Mesh < len(doc.Meshes) {
					name = doc.Meshes[*n.Mesh].Name
				}
				group.Add(&scene.Node{Name: name, Mesh: mesh, Transform: world})
			}
		}
		for _, child := range n.Children {
			if err := walk(child, world, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range rootNodes(doc) {
		if err := walk(root, mgl64.Ident4(), 0); err != nil {
			return nil, fmt.Errorf("failed to build scene: %w", err)
		}
	}
	l.Log.Debug("asset loaded", "nodes", len(group.Nodes), "meshes", len(meshes))
	return group, nil
}

// meshAt merges a glTF mesh's triangle primitives into one geometry.Mesh.
// Meshes without triangles yield nil.
func (l *GLTFLoader) meshAt(doc *gltf.Document, idx int, cache map[int]*geometry.Mesh) (*geometry.Mesh, error) {
	if m, ok := cache[idx]; ok {
		return m, nil
	}
	if idx < 0 || idx >= len(doc.Meshes) {
		return nil, fmt.Errorf("invalid mesh reference %d", idx)
	}

	var (
		positions []mgl64.Vec3
		indices   []uint32
	)
	for _, prim := range doc.Meshes[idx].Primitives {
		if prim.Mode != gltf.PrimitiveTriangles {
			continue
		}
		posIdx, ok := prim.Attributes[gltf.POSITION]
		if !ok {
			continue
		}
		if err := checkAccessor(doc, posIdx); err != nil {
			return nil, fmt.Errorf("%w: mesh %d positions: %v", ErrMalformedGeometry, idx, err)
		}
		pos, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read positions of mesh %d: %w", idx, err)
		}

		var prims []uint32
		if prim.Indices != nil {
			if err := checkAccessor(doc, *prim.Indices); err != nil {
				return nil, fmt.Errorf("%w: mesh %d indices: %v", ErrMalformedGeometry, idx, err)
			}
			prims, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
			if err != nil {
				return nil, fmt.Errorf("failed to read indices of mesh %d: %w", idx, err)
			}
		} else {
			prims = make([]uint32, len(pos))
			for i := range prims {
				prims[i] = uint32(i)
			}
		}

		offset := uint32(len(positions))
		for _, p := range pos {
			positions = append(positions, mgl64.Vec3{float64(p[0]), float64(p[1]), float64(p[2])})
		}
		for _, i := range prims {
			indices = append(indices, i+offset)
		}
	}

	if len(positions) == 0 || len(indices) == 0 {
		cache[idx] = nil
		return nil, nil
	}
	mesh, err := geometry.FromPositions(positions, indices)
	if err != nil {
		return nil, fmt.Errorf("%w: mesh %d: %v", ErrMalformedGeometry, idx, err)
	}
	cache[idx] = mesh
	return mesh, nil
}

// checkAccessor rejects references the modeler readers would index blindly.
func checkAccessor(doc *gltf.Document, i int) error {
	if i < 0 || i >= len(doc.Accessors) || doc.Accessors[i] == nil {
		return fmt.Errorf("accessor %d out of range", i)
	}
	acr := doc.Accessors[i]
	if acr.BufferView == nil {
		return nil
	}
	bv := *acr.BufferView
	if bv < 0 || bv >= len(doc.BufferViews) || doc.BufferViews[bv] == nil {
		return fmt.Errorf("accessor %d: buffer view %d out of range", i, bv)
	}
	view := doc.BufferViews[bv]
	if view.Buffer < 0 || view.Buffer >= len(doc.Buffers) {
		return fmt.Errorf("accessor %d: buffer %d out of range", i, view.Buffer)
	}
	if acr.ByteOffset > view.ByteLength {
		return fmt.Errorf("accessor %d: offset %d past buffer view", i, acr.ByteOffset)
	}
	return nil
}

func localMatrix(n *gltf.Node) mgl64.Mat4 {
	if m := mgl64.Mat4(n.MatrixOrDefault()); m != mgl64.Ident4() {
		return m
	}
	t := n.TranslationOrDefault()
	r := n.RotationOrDefault()
	s := n.ScaleOrDefault()
	rot := mgl64.Quat{W: r[3], V: mgl64.Vec3{r[0], r[1], r[2]}}.Mat4()
	return mgl64.Translate3D(t[0], t[1], t[2]).Mul4(rot).Mul4(mgl64.Scale3D(s[0], s[1], s[2]))
}

func rootNodes(doc *gltf.Document) []int {
	if len(doc.Scenes) > 0 {
		sceneIdx := 0
		if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
			sceneIdx = *doc.Scene
		}
		return doc.Scenes[sceneIdx].Nodes
	}

	child := make(map[int]bool)
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			child[c] = true
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !child[i] {
			roots = append(roots, i)
		}
	}
	return roots
}
