package driver

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/ifcsync/internal/core/model"
	"github.com/agenthands/ifcsync/internal/logger"
)

// CenterColor marks the queried node in a neighbourhood graph.
const CenterColor = "#68D391"

// OntologyStore answers the graph queries the engine needs from a bolt
// database.
type OntologyStore struct {
	Driver       GraphDriver
	MaxRelations int
	log          *logger.Logger
}

func NewOntologyStore(d GraphDriver, maxRelations int, log *logger.Logger) *OntologyStore {
	if log == nil {
		log = logger.Nop()
	}
	if maxRelations <= 0 {
		maxRelations = 500
	}
	return &OntologyStore{Driver: d, MaxRelations: maxRelations, log: log.With("component", "ontology")}
}

// GraphByObject returns the relations around the resource labelled object.
// An unknown object yields an empty graph.
func (s *OntologyStore) GraphByObject(ctx context.Context, object string) (*model.GraphData, error) {
	res, err := s.Driver.ExecuteQuery(ctx, NeighbourhoodByLabelQuery, map[string]interface{}{
		"object": object,
		"limit":  s.MaxRelations,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query neighbourhood of '%s': %w", object, err)
	}
	return neighbourhood(res.Records), nil
}

// ExpandNode is GraphByObject addressed by URI.
func (s *OntologyStore) ExpandNode(ctx context.Context, uri string) (*model.GraphData, error) {
	res, err := s.Driver.ExecuteQuery(ctx, NeighbourhoodByURIQuery, map[string]interface{}{
		"uri":   uri,
		"limit": s.MaxRelations,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to expand node '%s': %w", uri, err)
	}
	return neighbourhood(res.Records), nil
}

func (s *OntologyStore) FullGraph(ctx context.Context) (*model.GraphData, error) {
	res, err := s.Driver.ExecuteQuery(ctx, FullGraphQuery, map[string]interface{}{"limit": s.MaxRelations})
	if err != nil {
		return nil, fmt.Errorf("failed to query full graph: %w", err)
	}

	b := newGraphBuilder()
	for _, rec := range res.Records {
		b.relation(rec)
	}
	return b.data(), nil
}

func (s *OntologyStore) OntologySummary(ctx context.Context) (*model.OntologySummary, error) {
	types, err := s.Driver.ExecuteQuery(ctx, OntologyTypesQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query ontology types: %w", err)
	}
	rels, err := s.Driver.ExecuteQuery(ctx, OntologyRelationsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query ontology relations: %w", err)
	}

	summary := &model.OntologySummary{Relations: []string{}, Types: []model.TypeExamples{}}
	for _, rec := range types.Records {
		te := model.TypeExamples{Type: str(rec, "type")}
		if raw, ok := rec.Get("examples"); ok {
			if list, ok := raw.([]interface{}); ok {
				for _, v := range list {
					if ex, ok := v.(string); ok {
						te.Examples = append(te.Examples, ex)
					}
				}
			}
		}
		summary.Types = append(summary.Types, te)
	}
	for _, rec := range rels.Records {
		if name := str(rec, "name"); name != "" {
			summary.Relations = append(summary.Relations, FormatName(name))
		}
	}
	return summary, nil
}

// Resource is one ontology subject with its display label and type.
type Resource struct {
	URI   string
	Label string
	Type  string
}

func (s *OntologyStore) SaveResource(ctx context.Context, r Resource) error {
	_, err := s.Driver.ExecuteQuery(ctx, SaveResourceQuery, map[string]interface{}{
		"uri":   r.URI,
		"label": r.Label,
		"type":  r.Type,
	})
	if err != nil {
		return fmt.Errorf("failed to save resource '%s': %w", r.URI, err)
	}
	return nil
}

func (s *OntologyStore) SaveRelation(ctx context.Context, subject, predicate, object string) error {
	_, err := s.Driver.ExecuteQuery(ctx, SaveRelationQuery, map[string]interface{}{
		"s_uri": subject,
		"p":     predicate,
		"o_uri": object,
	})
	if err != nil {
		return fmt.Errorf("failed to save relation %s -%s-> %s: %w", subject, predicate, object, err)
	}
	return nil
}

func neighbourhood(records []*neo4j.Record) *model.GraphData {
	b := newGraphBuilder()
	if len(records) == 0 {
		return b.data()
	}

	center := str(records[0], "center_uri")
	label := str(records[0], "center_label")
	if label == "" {
		label = FormatName(center)
	}
	b.node(center, label, &model.NodeColor{Background: CenterColor})

	for _, rec := range records {
		if str(rec, "p") == "" {
			continue
		}
		b.relation(rec)
	}
	return b.data()
}

type graphBuilder struct {
	seen map[string]bool
	out  *model.GraphData
}

func newGraphBuilder() *graphBuilder {
	return &graphBuilder{
		seen: map[string]bool{},
		out:  &model.GraphData{Nodes: []model.GraphNode{}, Edges: []model.GraphEdge{}},
	}
}

func (b *graphBuilder) node(uri, label string, color *model.NodeColor) {
	if uri == "" || b.seen[uri] {
		return
	}
	if label == "" {
		label = FormatName(uri)
	}
	b.seen[uri] = true
	b.out.Nodes = append(b.out.Nodes, model.GraphNode{ID: uri, Label: label, Color: color})
}

func (b *graphBuilder) relation(rec *neo4j.Record) {
	s, o := str(rec, "s_uri"), str(rec, "o_uri")
	if s == "" || o == "" {
		return
	}
	b.node(s, str(rec, "s_label"), nil)
	b.node(o, str(rec, "o_label"), nil)
	b.out.Edges = append(b.out.Edges, model.GraphEdge{From: s, To: o, Label: FormatName(str(rec, "p"))})
}

func (b *graphBuilder) data() *model.GraphData {
	return b.out
}

// FormatName turns a URI's local name into a display label, splitting
// camel case after a '#' ("temAbertura" becomes "tem Abertura").
func FormatName(uri string) string {
	if i := strings.LastIndex(uri, "#"); i >= 0 {
		name := uri[i+1:]
		var sb strings.Builder
		for j, r := range name {
			if j > 0 && unicode.IsUpper(r) {
				sb.WriteByte(' ')
			}
			sb.WriteRune(r)
		}
		return sb.String()
	}
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

func str(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
