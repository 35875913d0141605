// Package graphview drives the ontology graph: drawing node/edge data with
// conflict highlighting and focusing nodes picked elsewhere.
package graphview

import (
	"sync"

	"github.com/agenthands/ifcsync/internal/core/model"
)

const (
	PlaceholderEmpty = "Nenhum dado para visualizar."
	PlaceholderReset = "Grafo reiniciado. Faça uma consulta para visualizar."
)

type FocusOptions struct {
	Scale  float64 `json:"scale"`
	Millis int     `json:"duration_ms"`
	Easing string  `json:"easing"`
}

func DefaultFocus() FocusOptions {
	return FocusOptions{Scale: 1.5, Millis: 1000, Easing: "easeInOutQuad"}
}

// Network is the graph rendering collaborator.
type Network interface {
	Draw(data *model.GraphData)
	Select(nodeIDs []string)
	Focus(nodeID string, opts FocusOptions)
	// Destroy tears the network down and shows placeholder instead.
	Destroy(placeholder string)
}

// View is what a Headless network currently shows.
type View struct {
	Data        *model.GraphData `json:"data,omitempty"`
	Selected    []string         `json:"selected,omitempty"`
	Focused     string           `json:"focused,omitempty"`
	Focus       *FocusOptions    `json:"focus,omitempty"`
	Placeholder string           `json:"placeholder,omitempty"`
	Draws       int              `json:"draws"`
}

// Headless is an in-memory Network for the service and tests.
type Headless struct {
	mu   sync.Mutex
	view View
}

func NewHeadless() *Headless {
	return &Headless{view: View{Placeholder: PlaceholderReset}}
}

func (h *Headless) Draw(data *model.GraphData) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.view = View{Data: data.Clone(), Draws: h.view.Draws + 1}
}

func (h *Headless) Select(nodeIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.view.Selected = append([]string(nil), nodeIDs...)
}

func (h *Headless) Focus(nodeID string, opts FocusOptions) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.view.Focused = nodeID
	h.view.Focus = &opts
}

func (h *Headless) Destroy(placeholder string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.view = View{Placeholder: placeholder, Draws: h.view.Draws}
}

// View returns a copy of the current view.
func (h *Headless) View() View {
	h.mu.Lock()
	defer h.mu.Unlock()
	v := h.view
	v.Data = h.view.Data.Clone()
	v.Selected = append([]string(nil), h.view.Selected...)
	return v
}
