package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/ifcsync/internal/core/identity"
	"github.com/agenthands/ifcsync/internal/core/model"
	"github.com/agenthands/ifcsync/internal/geometry"
	"github.com/agenthands/ifcsync/internal/metrics"
	"github.com/agenthands/ifcsync/internal/scene"
)

var triangle = []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}

func element(id, ifcType string) model.Element3D {
	return model.Element3D{GlobalID: id, Type: ifcType, Vertices: triangle, Indices: []uint32{0, 1, 2}}
}

type fakeLoader struct {
	group *scene.Group
	err   error
	paths []string
}

func (f *fakeLoader) Load(_ context.Context, path string) (*scene.Group, error) {
	f.paths = append(f.paths, path)
	return f.group, f.err
}

func meshNode(t *testing.T, name string) *scene.Node {
	t.Helper()
	m, err := geometry.NewMesh(triangle, []uint32{0, 1, 2})
	require.NoError(t, err)
	return &scene.Node{Name: name, Mesh: m}
}

func TestSourceOf(t *testing.T) {
	assert.IsType(t, NoGeometry{}, SourceOf(nil))
	assert.IsType(t, NoGeometry{}, SourceOf(&model.ValidationResponse{}))
	assert.IsType(t, CompositeAsset{}, SourceOf(&model.ValidationResponse{ModelPath: "m.glb"}))

	both := &model.ValidationResponse{
		ModelPath:      "m.glb",
		Elements3DData: []model.Element3D{element("A", "IfcSlab")},
	}
	assert.IsType(t, ElementArrays{}, SourceOf(both))
}

func TestIngestElementsAssignsTypeMaterials(t *testing.T) {
	ing := NewIngestor(scene.DefaultPalette(), "y", nil, nil, nil)

	res, err := ing.Ingest(context.Background(), ElementArrays{Elements: []model.Element3D{
		element("W1", "IfcWall"),
		element("S1", "IfcSlab"),
	}})
	require.NoError(t, err)

	require.Len(t, res.Elements, 2)
	wall := res.Elements["W1"]
	assert.Equal(t, uint32(0x8090a0), wall.Current().Color)
	assert.InDelta(t, 0.7, wall.Current().Opacity, 1e-9)
	assert.True(t, wall.Current().Transparent)
	assert.Equal(t, uint32(0xcccccc), res.Elements["S1"].Current().Color)
	assert.Equal(t, []identity.CanonicalID{"S1", "W1"}, res.IDs())
	assert.Len(t, res.Root.Nodes, 2)
}

func TestIngestElementsSkipsMalformed(t *testing.T) {
	m := metrics.New(nil)
	ing := NewIngestor(scene.DefaultPalette(), "y", nil, nil, m)

	bad := element("BAD", "IfcBeam")
	bad.Vertices = []float32{0, 0}
	outOfRange := element("OOR", "IfcBeam")
	outOfRange.Indices = []uint32{0, 1, 9}

	res, err := ing.Ingest(context.Background(), ElementArrays{Elements: []model.Element3D{
		element("A", "IfcSlab"),
		bad,
		element("B", "IfcSlab"),
		outOfRange,
		element("C", "IfcSlab"),
	}})
	require.NoError(t, err)

	assert.Equal(t, 5, res.Report.Total)
	assert.Equal(t, 3, res.Report.Processed)
	assert.Equal(t, 2, res.Report.Skipped)
	assert.ElementsMatch(t, []string{"BAD", "OOR"}, res.Report.SkippedIDs)
	assert.Len(t, res.Elements, 3)
	assert.NotContains(t, res.Elements, identity.CanonicalID("BAD"))
}

func TestIngestElementsWithoutGUID(t *testing.T) {
	ing := NewIngestor(scene.DefaultPalette(), "y", nil, nil, nil)
	res, err := ing.Ingest(context.Background(), ElementArrays{Elements: []model.Element3D{
		element("", "IfcWall"),
		element("A", "IfcSlab"),
	}})
	require.NoError(t, err)

	assert.Len(t, res.Root.Nodes, 2)
	assert.Len(t, res.Elements, 1)
	assert.Equal(t, 1, res.Report.Unresolved)
	assert.Equal(t, uint32(0xcccccc), res.Root.Nodes[0].Material.Color)
}

func TestIngestElementsDuplicateKeepsLast(t *testing.T) {
	ing := NewIngestor(scene.DefaultPalette(), "y", nil, nil, nil)
	first := element("A", "IfcWall")
	second := element("A", "IfcSlab")

	res, err := ing.Ingest(context.Background(), ElementArrays{Elements: []model.Element3D{first, second}})
	require.NoError(t, err)

	assert.Len(t, res.Elements, 1)
	assert.Equal(t, "IfcSlab", res.Elements["A"].Type)
	assert.Equal(t, 1, res.Report.Processed)
}

func TestIngestCompositeMatchesMeshNames(t *testing.T) {
	loader := &fakeLoader{group: scene.NewGroup()}
	loader.group.Add(meshNode(t, "product-1a2b-body"))
	loader.group.Add(meshNode(t, "product-3c4d-body"))
	loader.group.Add(meshNode(t, "Camera"))

	ing := NewIngestor(scene.DefaultPalette(), "y", loader, nil, nil)
	res, err := ing.Ingest(context.Background(), CompositeAsset{
		ModelPath: "models/m.glb",
		Metadata: map[string]model.ElementMeta{
			"1a2b": {Type: "IfcWall", Name: "Parede"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"models/m.glb"}, loader.paths)
	require.Len(t, res.Elements, 1)
	el := res.Elements["1a2b"]
	assert.Equal(t, "Parede", el.Name)
	assert.Equal(t, uint32(0x8090a0), el.Current().Color)

	// Unmatched nodes stay visible with the default material.
	assert.Len(t, res.Root.Nodes, 3)
	assert.Equal(t, uint32(0xcccccc), res.Root.Nodes[1].Material.Color)
	assert.Equal(t, uint32(0xcccccc), res.Root.Nodes[2].Material.Color)
	assert.Equal(t, 2, res.Report.Unresolved)
	assert.Equal(t, 1, res.Report.Processed)
}

func TestIngestCompositeLoaderFailure(t *testing.T) {
	loader := &fakeLoader{err: errors.New("404")}
	ing := NewIngestor(scene.DefaultPalette(), "y", loader, nil, nil)

	_, err := ing.Ingest(context.Background(), CompositeAsset{ModelPath: "missing.glb"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.glb")

	ing.Loader = nil
	_, err = ing.Ingest(context.Background(), CompositeAsset{ModelPath: "missing.glb"})
	assert.Error(t, err)
}

func TestIngestZUpOrientation(t *testing.T) {
	ing := NewIngestor(scene.DefaultPalette(), "z", nil, nil, nil)
	res, err := ing.Ingest(context.Background(), ElementArrays{Elements: []model.Element3D{{
		GlobalID: "A",
		Vertices: []float32{0, 0, 0, 1, 0, 0, 0, 0, 5},
		Indices:  []uint32{0, 1, 2},
	}}})
	require.NoError(t, err)

	b := res.Root.Bounds()
	assert.InDelta(t, 5.0, b.Max.Y(), 1e-9)
	assert.InDelta(t, 0.0, b.Max.Z(), 1e-9)
}

func TestIngestNoGeometry(t *testing.T) {
	ing := NewIngestor(scene.DefaultPalette(), "y", nil, nil, nil)
	res, err := ing.Ingest(context.Background(), NoGeometry{})
	require.NoError(t, err)
	assert.Empty(t, res.Elements)
	assert.Empty(t, res.Root.Nodes)
	assert.Equal(t, "none", res.Report.Source)
}

func writeGLB(t *testing.T) string {
	t.Helper()
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	idx := modeler.WriteIndices(doc, []uint16{0, 1, 2})
	doc.Meshes = []*gltf.Mesh{{
		Name: "body",
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(idx),
			Attributes: map[string]int{gltf.POSITION: pos},
		}},
	}}
	doc.Nodes = []*gltf.Node{
		{Name: "storey", Children: []int{1}, Translation: [3]float64{0, 3, 0}},
		{Name: "product-abcd-body", Mesh: gltf.Index(0), Translation: [3]float64{10, 0, 0}},
	}
	doc.Scenes[0].Nodes = []int{0}

	path := filepath.Join(t.TempDir(), "model.glb")
	require.NoError(t, gltf.SaveBinary(doc, path))
	return path
}

func TestGLTFLoaderComposesTransforms(t *testing.T) {
	path := writeGLB(t)
	group, err := NewGLTFLoader(filepath.Dir(path), nil, nil).Load(context.Background(), filepath.Base(path))
	require.NoError(t, err)

	require.Len(t, group.Nodes, 1)
	n := group.Nodes[0]
	assert.Equal(t, "product-abcd-body", n.Name)
	assert.Equal(t, 1, n.Mesh.TriangleCount())

	origin := geometry.TransformPoint(group.WorldTransform(n), mgl64.Vec3{})
	assert.InDelta(t, 10.0, origin.X(), 1e-9)
	assert.InDelta(t, 3.0, origin.Y(), 1e-9)
}

func TestGLTFLoaderFetchesRemote(t *testing.T) {
	local := writeGLB(t)
	data, err := os.ReadFile(local)
	require.NoError(t, err)

	var fetched string
	loader := NewGLTFLoader(filepath.Dir(local), func(_ context.Context, path string) ([]byte, error) {
		fetched = path
		return data, nil
	}, nil)

	group, err := loader.Load(context.Background(), "models/remote.glb")
	require.NoError(t, err)
	assert.Equal(t, "models/remote.glb", fetched)
	assert.Len(t, group.Nodes, 1)

	_, err = NewGLTFLoader("", nil, nil).Load(context.Background(), "models/remote.glb")
	assert.Error(t, err)
}

func TestGLTFLoaderWithoutAssetDirNeverReadsDisk(t *testing.T) {
	local := writeGLB(t)

	var fetched []string
	loader := NewGLTFLoader("", func(_ context.Context, path string) ([]byte, error) {
		fetched = append(fetched, path)
		return nil, errors.New("unavailable")
	}, nil)

	_, err := loader.Load(context.Background(), local)
	assert.Error(t, err)
	assert.Equal(t, []string{local}, fetched)
}

func TestGLTFLoaderRejectsPathsOutsideAssetDir(t *testing.T) {
	root := t.TempDir()
	assets := filepath.Join(root, "assets")
	require.NoError(t, os.Mkdir(assets, 0o755))
	outside := writeGLB(t)
	require.NoError(t, os.Rename(outside, filepath.Join(root, "secret.glb")))

	fetchCalled := false
	loader := NewGLTFLoader(assets, func(context.Context, string) ([]byte, error) {
		fetchCalled = true
		return nil, errors.New("unavailable")
	}, nil)

	for _, p := range []string{"../secret.glb", "models/../../secret.glb", `..\secret.glb`} {
		_, err := loader.Load(context.Background(), p)
		assert.ErrorIs(t, err, ErrAssetPath, p)
	}
	assert.False(t, fetchCalled)
}

func TestGLTFLoaderRootedPathStaysInAssetDir(t *testing.T) {
	path := writeGLB(t)
	loader := NewGLTFLoader(filepath.Dir(path), nil, nil)

	group, err := loader.Load(context.Background(), "/"+filepath.Base(path))
	require.NoError(t, err)
	assert.Len(t, group.Nodes, 1)
}

func TestGLTFLoaderRejectsDanglingAccessors(t *testing.T) {
	cases := map[string]func(*gltf.Primitive){
		"position": func(p *gltf.Primitive) { p.Attributes[gltf.POSITION] = 99 },
		"indices":  func(p *gltf.Primitive) { p.Indices = gltf.Index(42) },
	}
	for name, corrupt := range cases {
		t.Run(name, func(t *testing.T) {
			doc := gltf.NewDocument()
			pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
			prim := &gltf.Primitive{Attributes: map[string]int{gltf.POSITION: pos}}
			corrupt(prim)
			doc.Meshes = []*gltf.Mesh{{Primitives: []*gltf.Primitive{prim}}}
			doc.Nodes = []*gltf.Node{{Name: "product-abcd-body", Mesh: gltf.Index(0)}}
			doc.Scenes[0].Nodes = []int{0}

			_, err := NewGLTFLoader("", nil, nil).build(doc)
			assert.ErrorIs(t, err, ErrMalformedGeometry)
		})
	}
}

func TestGLTFLoaderRejectsDanglingBufferView(t *testing.T) {
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	doc.Accessors[pos].BufferView = gltf.Index(7)
	doc.Meshes = []*gltf.Mesh{{Primitives: []*gltf.Primitive{{Attributes: map[string]int{gltf.POSITION: pos}}}}}
	doc.Nodes = []*gltf.Node{{Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = []int{0}

	_, err := NewGLTFLoader("", nil, nil).build(doc)
	assert.ErrorIs(t, err, ErrMalformedGeometry)
}

func TestGLTFRoundTripThroughIngestor(t *testing.T) {
	path := writeGLB(t)
	ing := NewIngestor(scene.DefaultPalette(), "y", NewGLTFLoader(filepath.Dir(path), nil, nil), nil, nil)

	res, err := ing.Ingest(context.Background(), CompositeAsset{
		ModelPath: filepath.Base(path),
		Metadata:  map[string]model.ElementMeta{"abcd": {Type: "IfcDoor"}},
	})
	require.NoError(t, err)
	require.Contains(t, res.Elements, identity.CanonicalID("abcd"))
	assert.Equal(t, "IfcDoor", res.Elements["abcd"].Type)
}
