// Package ingest turns backend geometry payloads into an owned scene root and
// the canonical-id index of its addressable elements.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/agenthands/ifcsync/internal/core/identity"
	"github.com/agenthands/ifcsync/internal/core/model"
	"github.com/agenthands/ifcsync/internal/geometry"
	"github.com/agenthands/ifcsync/internal/logger"
	"github.com/agenthands/ifcsync/internal/metrics"
	"github.com/agenthands/ifcsync/internal/scene"
)

var ErrMalformedGeometry = errors.New("malformed geometry")

// Source is the geometry shape the backend returned. It is decided once, by
// SourceOf, and each variant has its own strategy.
type Source interface {
	Name() string
}

type ElementArrays struct {
	Elements []model.Element3D
}

type CompositeAsset struct {
	ModelPath string
	Metadata  map[string]model.ElementMeta
}

// NoGeometry is a response that carried validation results only.
type NoGeometry struct{}

func (ElementArrays) Name() string  { return "elements" }
func (CompositeAsset) Name() string { return "composite" }
func (NoGeometry) Name() string     { return "none" }

// SourceOf picks the ingestion strategy for a response. Per-element arrays win
// when a misbehaving backend fills both shapes.
func SourceOf(resp *model.ValidationResponse) Source {
	switch {
	case resp == nil:
		return NoGeometry{}
	case len(resp.Elements3DData) > 0:
		return ElementArrays{Elements: resp.Elements3DData}
	case resp.ModelPath != "":
		return CompositeAsset{ModelPath: resp.ModelPath, Metadata: resp.Metadata}
	default:
		return NoGeometry{}
	}
}

// AssetLoader loads a pre-built composite scene. It is the only ingestion step
// that blocks on I/O.
type AssetLoader interface {
	Load(ctx context.Context, path string) (*scene.Group, error)
}

type Report struct {
	Source     string   `json:"source"`
	Total      int      `json:"total"`
	Processed  int      `json:"processed"`
	Skipped    int      `json:"skipped"`
	Unresolved int      `json:"unresolved"`
	SkippedIDs []string `json:"skipped_ids,omitempty"`
}

type Result struct {
	Root     *scene.Group
	Elements map[identity.CanonicalID]*scene.Element
	Report   Report
}

// IDs returns the mapped ids in sorted order.
func (r *Result) IDs() []identity.CanonicalID {
	ids := make([]identity.CanonicalID, 0, len(r.Elements))
	for id := range r.Elements {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type Ingestor struct {
	Palette scene.Palette
	// UpAxis is "y" or "z"; "z" rotates the root onto Y-up.
	UpAxis  string
	Loader  AssetLoader
	Log     *logger.Logger
	Metrics *metrics.Metrics
}

func NewIngestor(palette scene.Palette, upAxis string, loader AssetLoader, log *logger.Logger, m *metrics.Metrics) *Ingestor {
	if log == nil {
		log = logger.Nop()
	}
	return &Ingestor{
		Palette: palette,
		UpAxis:  upAxis,
		Loader:  loader,
		Log:     log.With("component", "ingest"),
		Metrics: m,
	}
}

func (i *Ingestor) Ingest(ctx context.Context, src Source) (*Result, error) {
	var (
		res *Result
		err error
	)
	switch s := src.(type) {
	case ElementArrays:
		res = i.ingestElements(s)
	case CompositeAsset:
		res, err = i.ingestComposite(ctx, s)
		if err != nil {
			return nil, err
		}
	case NoGeometry:
		res = &Result{
			Root:     scene.NewGroup(),
			Elements: map[identity.CanonicalID]*scene.Element{},
			Report:   Report{Source: s.Name()},
		}
	default:
		return nil, fmt.Errorf("unsupported geometry source %T", src)
	}

	if i.UpAxis == "z" {
		res.Root.Transform = scene.ZUpToYUp().Mul4(res.Root.Transform)
	}

	i.Metrics.Ingested(res.Report.Source, res.Report.Processed, res.Report.Skipped)
	i.Metrics.Unresolved("mesh", res.Report.Unresolved)
	i.Log.Info("geometry ingested",
		"source", res.Report.Source,
		"total", res.Report.Total,
		"processed", res.Report.Processed,
		"skipped", res.Report.Skipped,
		"unresolved", res.Report.Unresolved,
	)
	return res, nil
}

func (i *Ingestor) ingestElements(src ElementArrays) *Result {
	root := scene.NewGroup()
	elements := make(map[identity.CanonicalID]*scene.Element, len(src.Elements))
	report := Report{Source: src.Name(), Total: len(src.Elements)}

	for _, data := range src.Elements {
		mesh, err := geometry.NewMesh(data.Vertices, data.Indices)
		if err != nil {
			err = fmt.Errorf("%w: element %s: %v", ErrMalformedGeometry, data.GlobalID, err)
			i.Log.Warn("skipping element", "global_id", data.GlobalID, "type", data.Type, "error", err)
			report.Skipped++
			report.SkippedIDs = append(report.SkippedIDs, data.GlobalID)
			continue
		}

		id := identity.Resolve(identity.BareGUID(data.GlobalID))
		node := &scene.Node{Name: data.GlobalID, Mesh: mesh}
		root.Add(node)
		if id == "" {
			// Rendered, but nothing can address it.
			node.Material = i.Palette.Default
			i.Log.Warn("element without global id", "type", data.Type)
			report.Unresolved++
			continue
		}
		if _, dup := elements[id]; dup {
			i.Log.Warn("duplicate global id, keeping the last entry", "global_id", data.GlobalID)
			report.Processed--
		}

		el := scene.NewElement(id, data.Type, node, i.Palette.ForType(data.Type))
		el.Name = data.Name
		el.Description = data.Description
		el.Material = data.Material
		elements[id] = el
		report.Processed++
	}

	return &Result{Root: root, Elements: elements, Report: report}
}

func (i *Ingestor) ingestComposite(ctx context.Context, src CompositeAsset) (*Result, error) {
	if i.Loader == nil {
		return nil, fmt.Errorf("failed to load model '%s': no asset loader configured", src.ModelPath)
	}

	root, err := i.Loader.Load(ctx, src.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load model '%s': %w", src.ModelPath, err)
	}

	elements := make(map[identity.CanonicalID]*scene.Element)
	report := Report{Source: src.Name(), Total: len(root.Nodes)}

	for _, node := range root.Nodes {
		// Every node is visible even when it cannot be addressed.
		node.Material = i.Palette.Default

		id, ok := identity.ParseMeshName(node.Name)
		if !ok {
			i.Log.Debug("mesh node name carries no id", "node", node.Name)
			report.Unresolved++
			continue
		}
		meta, ok := src.Metadata[string(id)]
		if !ok {
			i.Log.Debug("mesh node id missing from metadata", "node", node.Name, "id", id)
			report.Unresolved++
			continue
		}
		if _, dup := elements[id]; dup {
			i.Log.Warn("duplicate mesh node id, keeping the last node", "id", id)
			report.Processed--
		}

		el := scene.NewElement(id, meta.Type, node, i.Palette.ForType(meta.Type))
		el.Name = meta.Name
		el.Description = meta.Description
		el.Material = meta.Material
		elements[id] = el
		report.Processed++
	}

	return &Result{Root: root, Elements: elements, Report: report}, nil
}
