package graphview

import (
	"fmt"

	"github.com/agenthands/ifcsync/internal/core/conflict"
	"github.com/agenthands/ifcsync/internal/core/identity"
	"github.com/agenthands/ifcsync/internal/core/model"
	"github.com/agenthands/ifcsync/internal/logger"
)

const (
	ConflictBackground = "#fecaca"
	ConflictBorder     = "#ef4444"
)

// Tooltip is the hover text of a conflicted node.
func Tooltip(message string) string {
	return fmt.Sprintf("⚠️ Conflito de Validação\n%s", message)
}

type Controller struct {
	network   Network
	focus     FocusOptions
	conflicts *conflict.Index
	// source is the last fetched data, drawn is source plus highlighting.
	source *model.GraphData
	drawn  *model.GraphData
	log    *logger.Logger
}

func NewController(n Network, focus FocusOptions, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.Nop()
	}
	return &Controller{
		network: n,
		focus:   focus,
		log:     log.With("component", "graphview"),
	}
}

// Draw replaces the graph. The current conflict set is applied on every draw,
// so highlighting survives re-queries. Empty data shows the placeholder and
// returns false.
func (c *Controller) Draw(data *model.GraphData) bool {
	if data == nil || len(data.Nodes) == 0 {
		c.source, c.drawn = nil, nil
		c.network.Destroy(PlaceholderEmpty)
		return false
	}
	c.source = data.Clone()
	c.render()
	return true
}

// HighlightConflicts sets the conflict set and redraws what is shown.
func (c *Controller) HighlightConflicts(idx *conflict.Index) {
	c.conflicts = idx
	if c.source != nil {
		c.render()
	}
}

// FocusOn selects and zooms to the node whose URI resolves to id. Returns
// false, with nothing changed, when no drawn node matches.
func (c *Controller) FocusOn(id identity.CanonicalID) bool {
	if c.drawn == nil || id == "" {
		return false
	}
	for _, n := range c.drawn.Nodes {
		if identity.MatchesURI(n.ID, id) {
			c.network.Select([]string{n.ID})
			c.network.Focus(n.ID, c.focus)
			return true
		}
	}
	c.log.Debug("no graph node for id", "id", id)
	return false
}

func (c *Controller) ClearSelection() {
	if c.drawn != nil {
		c.network.Select(nil)
	}
}

// Reset tears down the graph until the next query.
func (c *Controller) Reset() {
	c.source, c.drawn = nil, nil
	c.network.Destroy(PlaceholderReset)
}

// Node looks up a drawn node by its graph id.
func (c *Controller) Node(nodeID string) (model.GraphNode, bool) {
	if c.drawn == nil {
		return model.GraphNode{}, false
	}
	for _, n := range c.drawn.Nodes {
		if n.ID == nodeID {
			return n, true
		}
	}
	return model.GraphNode{}, false
}

// Drawn returns a copy of the highlighted data currently shown, nil when the
// graph is empty.
func (c *Controller) Drawn() *model.GraphData {
	return c.drawn.Clone()
}

func (c *Controller) render() {
	out := c.source.Clone()
	marked := 0
	for i := range out.Nodes {
		n := &out.Nodes[i]
		rec, ok := c.conflicts.Get(identity.Resolve(identity.OntologyURI(n.ID)))
		if !ok {
			continue
		}
		n.Color = &model.NodeColor{Background: ConflictBackground, Border: ConflictBorder}
		n.Title = Tooltip(rec.Message)
		marked++
	}
	c.drawn = out
	c.network.Draw(out)
	c.log.Debug("graph drawn", "nodes", len(out.Nodes), "edges", len(out.Edges), "conflicts", marked)
}
