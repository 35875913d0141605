// Package core wires the identity, ingestion, conflict and highlight
// components to both views. Engine is the only caller that mutates them.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/agenthands/ifcsync/internal/backend"
	"github.com/agenthands/ifcsync/internal/core/conflict"
	"github.com/agenthands/ifcsync/internal/core/highlight"
	"github.com/agenthands/ifcsync/internal/core/identity"
	"github.com/agenthands/ifcsync/internal/core/ingest"
	"github.com/agenthands/ifcsync/internal/core/model"
	"github.com/agenthands/ifcsync/internal/journal"
	"github.com/agenthands/ifcsync/internal/logger"
	"github.com/agenthands/ifcsync/internal/metrics"
	"github.com/agenthands/ifcsync/internal/scene"
	"github.com/agenthands/ifcsync/internal/view/graphview"
	"github.com/agenthands/ifcsync/internal/view/viewer3d"
)

var (
	ErrUploadInProgress = errors.New("an upload is already in progress")
	ErrUnknownNode      = errors.New("graph node is not drawn")
)

// DefaultMaxGraphNodes is the size at which the full graph is reported as
// truncated.
const DefaultMaxGraphNodes = 500

type Validator interface {
	Validate(ctx context.Context, filename string, file io.Reader) (*model.ValidationResponse, error)
}

// GraphSource answers ontology graph queries, from the backend or a bolt
// database.
type GraphSource interface {
	GraphByObject(ctx context.Context, object string) (*model.GraphData, error)
	FullGraph(ctx context.Context) (*model.GraphData, error)
	ExpandNode(ctx context.Context, nodeURI string) (*model.GraphData, error)
	OntologySummary(ctx context.Context) (*model.OntologySummary, error)
}

// Model is everything derived from one backend response. It is replaced as a
// whole on every load.
type Model struct {
	ID         uuid.UUID
	Root       *scene.Group
	Elements   map[identity.CanonicalID]*scene.Element
	Conflicts  *conflict.Index
	Report     ingest.Report
	Validation []model.ValidationResult
	Summary    conflict.Summary
	LoadedAt   time.Time
}

type Options struct {
	MaxGraphNodes int
	// Reconcile3D selects the element in 3D when a graph node is activated.
	Reconcile3D bool
}

type Deps struct {
	Validator Validator
	Graph     GraphSource
	Ingestor  *ingest.Ingestor
	Enricher  *conflict.Enricher
	Machine   *highlight.Machine
	Viewer    *viewer3d.Controller
	GraphView *graphview.Controller
	Journal   *journal.Journal
	Metrics   *metrics.Metrics
	Log       *logger.Logger
}

type Engine struct {
	mu        sync.Mutex
	uploading atomic.Bool

	validator Validator
	graph     GraphSource
	ingestor  *ingest.Ingestor
	enricher  *conflict.Enricher
	machine   *highlight.Machine
	viewer    *viewer3d.Controller
	graphView *graphview.Controller
	journal   *journal.Journal
	metrics   *metrics.Metrics
	log       *logger.Logger
	opts      Options

	current *Model
}

func NewEngine(d Deps, opts Options) *Engine {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Journal == nil {
		d.Journal = journal.New(0, d.Log)
	}
	if opts.MaxGraphNodes <= 0 {
		opts.MaxGraphNodes = DefaultMaxGraphNodes
	}
	return &Engine{
		validator: d.Validator,
		graph:     d.Graph,
		ingestor:  d.Ingestor,
		enricher:  d.Enricher,
		machine:   d.Machine,
		viewer:    d.Viewer,
		graphView: d.GraphView,
		journal:   d.Journal,
		metrics:   d.Metrics,
		log:       d.Log.With("component", "engine"),
		opts:      opts,
	}
}

func (e *Engine) Journal() *journal.Journal {
	return e.journal
}

// Upload validates an IFC file and loads the response. A second upload while
// one is running fails with ErrUploadInProgress.
func (e *Engine) Upload(ctx context.Context, filename string, file io.Reader) (*Model, error) {
	if !e.uploading.CompareAndSwap(false, true) {
		return nil, ErrUploadInProgress
	}
	defer e.uploading.Store(false)

	start := time.Now()
	e.journal.SetStatus(journal.StatusLoading, "A validar e a processar o modelo...")
	e.journal.Bot("A validar e a processar o modelo...")

	resp, err := e.validator.Validate(ctx, filename, file)
	if err != nil {
		e.fail(err, start)
		return nil, fmt.Errorf("failed to validate '%s': %w", filename, err)
	}
	return e.load(ctx, resp, start)
}

// Load ingests an already fetched backend response.
func (e *Engine) Load(ctx context.Context, resp *model.ValidationResponse) (*Model, error) {
	if !e.uploading.CompareAndSwap(false, true) {
		return nil, ErrUploadInProgress
	}
	defer e.uploading.Store(false)
	return e.load(ctx, resp, time.Now())
}

func (e *Engine) load(ctx context.Context, resp *model.ValidationResponse, start time.Time) (*Model, error) {
	if resp == nil {
		resp = &model.ValidationResponse{}
	}

	src := ingest.SourceOf(resp)
	if len(resp.Elements3DData) > 0 && resp.ModelPath != "" {
		e.log.Warn("response carries both geometry shapes, using per-element arrays", "model_path", resp.ModelPath)
	}
	if arrays, ok := src.(ingest.ElementArrays); ok {
		e.journal.Botf("Processamento concluído. Carregando %d elementos 3D...", len(arrays.Elements))
	}

	res, err := e.ingestor.Ingest(ctx, src)
	if err != nil {
		e.fail(err, start)
		return nil, fmt.Errorf("failed to ingest geometry: %w", err)
	}

	conflicts := conflict.Build(resp.Validation)
	e.enricher.Enrich(ctx, conflicts)

	m := &Model{
		ID:         uuid.New(),
		Root:       res.Root,
		Elements:   res.Elements,
		Conflicts:  conflicts,
		Report:     res.Report,
		Validation: resp.Validation,
		Summary:    conflict.Summarize(resp.Validation, conflicts),
		LoadedAt:   time.Now(),
	}

	e.mu.Lock()
	e.current = m
	missing := e.machine.LoadModel(m.Elements, m.Conflicts)
	e.viewer.Load(m.Root, m.Elements)
	e.graphView.HighlightConflicts(m.Conflicts)
	e.mu.Unlock()

	if len(missing) > 0 {
		e.log.Debug("conflicts without scene element", "ids", missing)
		e.metrics.Unresolved("conflict", len(missing))
	}
	highlighted := m.Conflicts.Len() - len(missing)
	e.metrics.Conflicts(highlighted)

	switch {
	case m.Report.Source == (ingest.NoGeometry{}).Name():
		e.journal.Bot("Nenhum dado de geometria 3D foi recebido do backend.")
	case m.Report.Processed == 0:
		e.journal.Bot("Nenhum elemento 3D foi processado com sucesso.")
	default:
		e.journal.Botf("Modelo 3D carregado com sucesso! %d elementos processados.", m.Report.Processed)
	}
	if highlighted > 0 {
		e.journal.Botf("Foram destacados %d elementos com conflitos em vermelho.", highlighted)
	}

	e.journal.SetReport(m.Summary)
	e.journal.SetStatus(journal.StatusSuccess, "Validação e carregamento concluídos!")
	e.metrics.Load("success", time.Since(start).Seconds())
	e.log.Info("model loaded",
		"model_id", m.ID,
		"elements", len(m.Elements),
		"conflicts", m.Conflicts.Len(),
		"elapsed", time.Since(start),
	)

	// Graph failures are reported but never undo the load.
	_ = e.ShowFullGraph(ctx)
	return m, nil
}

func (e *Engine) fail(err error, start time.Time) {
	e.metrics.Load("error", time.Since(start).Seconds())
	e.log.Error("model load failed", "error", err)
	e.journal.SetStatus(journal.StatusError, fmt.Sprintf("Erro: %s", userMessage(err)))
	e.journal.Botf("Falha crítica: %s. Verifique o console.", userMessage(err))
}

// PickResult is the outcome of a pointer pick in the 3D view.
type PickResult struct {
	ID      identity.CanonicalID `json:"id,omitempty"`
	Hit     bool                 `json:"hit"`
	Focused bool                 `json:"graph_focused"`
}

// PickAt picks at normalised device coordinates. A hit selects the element
// and focuses its graph node; a miss clears the selection in both views.
func (e *Engine) PickAt(x, y float64) PickResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, ok := e.viewer.Pick(x, y)
	e.metrics.Pick(ok)
	if !ok {
		e.clearPickLocked()
		return PickResult{}
	}

	e.machine.Pick(id)
	e.viewer.Refresh()
	focused := e.graphView.FocusOn(id)
	if !focused {
		e.graphView.ClearSelection()
	}
	if el, ok := e.machine.Element(id); ok {
		e.journal.Bot(selectionInfo(el))
	}
	return PickResult{ID: id, Hit: true, Focused: focused}
}

// ClearPick drops the selection in both views.
func (e *Engine) ClearPick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clearPickLocked()
}

func (e *Engine) clearPickLocked() {
	if _, ok := e.machine.Picked(); !ok {
		return
	}
	e.machine.ClearPick()
	e.graphView.ClearSelection()
	e.viewer.Refresh()
}

// FrameOn moves the camera to an element without changing any appearance.
func (e *Engine) FrameOn(id identity.CanonicalID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewer.FrameOn(id)
}

// ActivateNode explores a drawn graph node: its label is queried, the graph
// redrawn, and the matching 3D element selected and framed. The graph is not
// refocused.
func (e *Engine) ActivateNode(ctx context.Context, nodeID string) error {
	e.mu.Lock()
	node, ok := e.graphView.Node(nodeID)
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, nodeID)
	}

	if err := e.explore(ctx, node.Label); err != nil {
		return err
	}
	if !e.opts.Reconcile3D {
		return nil
	}

	id := identity.Resolve(identity.OntologyURI(nodeID))
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.machine.Pick(id) {
		e.metrics.Unresolved("graph", 1)
		e.log.Debug("graph node has no scene element", "node", nodeID, "id", id)
		return nil
	}
	e.viewer.FrameOn(id)
	e.viewer.Refresh()
	return nil
}

// ExploreObject draws the neighbourhood of a named object.
func (e *Engine) ExploreObject(ctx context.Context, name string) error {
	return e.explore(ctx, name)
}

func (e *Engine) explore(ctx context.Context, label string) error {
	e.journal.User(fmt.Sprintf("Explorando: '%s'", label))
	data, err := e.graph.GraphByObject(ctx, label)
	if err != nil {
		e.log.Warn("graph query failed", "object", label, "error", err)
		e.journal.Botf("Ocorreu um erro ao buscar dados do grafo: %s", userMessage(err))
		return fmt.Errorf("failed to explore '%s': %w", label, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.graphView.Draw(data)
	return nil
}

// ShowFullGraph draws the whole ontology graph with conflicts highlighted.
func (e *Engine) ShowFullGraph(ctx context.Context) error {
	e.journal.Bot("A gerar o grafo completo...")
	data, err := e.graph.FullGraph(ctx)
	if err != nil {
		e.log.Warn("full graph query failed", "error", err)
		e.journal.Botf("Ocorreu um erro ao gerar o grafo: %s", userMessage(err))
		return fmt.Errorf("failed to load full graph: %w", err)
	}
	if data == nil {
		data = &model.GraphData{}
	}
	if len(data.Nodes) >= e.opts.MaxGraphNodes {
		e.journal.Botf("Aviso: Grafo grande, a exibir as primeiras %d relações.", e.opts.MaxGraphNodes)
	}

	e.mu.Lock()
	drawn := e.graphView.Draw(data)
	conflicted := e.current != nil && e.current.Conflicts.Len() > 0
	e.mu.Unlock()

	if drawn && conflicted {
		e.journal.Bot("Conflitos encontrados destacados no grafo.")
	}
	return nil
}

// ExpandNode draws the neighbourhood of a node by its URI.
func (e *Engine) ExpandNode(ctx context.Context, nodeURI string) error {
	data, err := e.graph.ExpandNode(ctx, nodeURI)
	if err != nil {
		e.journal.Botf("Ocorreu um erro ao buscar dados do grafo: %s", userMessage(err))
		return fmt.Errorf("failed to expand '%s': %w", nodeURI, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.graphView.Draw(data)
	return nil
}

func (e *Engine) ResetGraph() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.graphView.Reset()
}

func (e *Engine) OntologySummary(ctx context.Context) (*model.OntologySummary, error) {
	s, err := e.graph.OntologySummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ontology summary: %w", err)
	}
	return s, nil
}

// Current returns the loaded model, nil before the first load.
func (e *Engine) Current() *Model {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// ElementView is one addressable element as the 3D view shows it.
type ElementView struct {
	ID         identity.CanonicalID `json:"id"`
	Type       string               `json:"type"`
	Name       string               `json:"name,omitempty"`
	Appearance scene.Appearance     `json:"appearance"`
	Conflicted bool                 `json:"conflicted"`
	Color      string               `json:"color"`
	Opacity    float64              `json:"opacity"`
}

type Snapshot struct {
	ModelID   string               `json:"model_id,omitempty"`
	State     highlight.State      `json:"state"`
	Picked    identity.CanonicalID `json:"picked,omitempty"`
	Elements  []ElementView        `json:"elements"`
	Conflicts []conflict.Record    `json:"conflicts"`
	Report    *ingest.Report       `json:"report,omitempty"`
	Camera    scene.Camera         `json:"camera"`
	Graph     *model.GraphData     `json:"graph,omitempty"`
	Uploading bool                 `json:"uploading"`
}

// Snapshot captures both views consistently.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		State:     e.machine.State(),
		Elements:  []ElementView{},
		Conflicts: []conflict.Record{},
		Camera:    e.viewer.Camera(),
		Graph:     e.graphView.Drawn(),
		Uploading: e.uploading.Load(),
	}
	snap.Picked, _ = e.machine.Picked()
	if e.current == nil {
		return snap
	}

	snap.ModelID = e.current.ID.String()
	report := e.current.Report
	snap.Report = &report
	snap.Conflicts = e.current.Conflicts.Records()
	for _, id := range sortedIDs(e.current.Elements) {
		el := e.current.Elements[id]
		mat := el.Current()
		snap.Elements = append(snap.Elements, ElementView{
			ID:         id,
			Type:       el.Type,
			Name:       el.Name,
			Appearance: el.Appearance,
			Conflicted: e.machine.Conflicted(id),
			Color:      mat.Hex(),
			Opacity:    mat.Opacity,
		})
	}
	return snap
}

func sortedIDs(elements map[identity.CanonicalID]*scene.Element) []identity.CanonicalID {
	ids := make([]identity.CanonicalID, 0, len(elements))
	for id := range elements {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (e *Engine) Uploading() bool {
	return e.uploading.Load()
}

func selectionInfo(el *scene.Element) string {
	name := el.Name
	if name == "" {
		name = "Sem nome"
	}
	info := fmt.Sprintf("Objeto selecionado: %s\nGlobalId: %s", name, el.ID)
	if el.Type != "" {
		info += fmt.Sprintf("\nTipo: %s", el.Type)
	}
	if el.Material != "" {
		info += fmt.Sprintf("\nMaterial: %s", el.Material)
	}
	return info
}

// userMessage prefers the backend's own wording over the wrapped chain.
func userMessage(err error) string {
	var reported *backend.ReportedError
	if errors.As(err, &reported) {
		return reported.Message
	}
	var transport *backend.TransportError
	if errors.As(err, &transport) && transport.Status != 0 {
		return fmt.Sprintf("Erro do servidor: %d", transport.Status)
	}
	return err.Error()
}
