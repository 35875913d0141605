package model

import (
	"encoding/json"
	"fmt"
)

// NodeColor mirrors the graph renderer's colour option, which may be a plain
// colour string or a background/border pair.
type NodeColor struct {
	Background string `json:"background,omitempty"`
	Border     string `json:"border,omitempty"`
}

func (c *NodeColor) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Background = s
		c.Border = ""
		return nil
	}
	type plain NodeColor
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to decode node color: %w", err)
	}
	*c = NodeColor(p)
	return nil
}

type GraphNode struct {
	ID    string     `json:"id"`
	Label string     `json:"label"`
	Color *NodeColor `json:"color,omitempty"`
	Title string     `json:"title,omitempty"`
}

type GraphEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
	Error string      `json:"error,omitempty"`
}

// Clone returns a deep copy so highlighting never mutates fetched data.
func (g *GraphData) Clone() *GraphData {
	if g == nil {
		return nil
	}
	out := &GraphData{
		Nodes: make([]GraphNode, len(g.Nodes)),
		Edges: append([]GraphEdge(nil), g.Edges...),
	}
	for i, n := range g.Nodes {
		out.Nodes[i] = n
		if n.Color != nil {
			c := *n.Color
			out.Nodes[i].Color = &c
		}
	}
	return out
}

type TypeExamples struct {
	Type     string   `json:"type"`
	Examples []string `json:"examples"`
}

type OntologySummary struct {
	Relations []string       `json:"relations"`
	Types     []TypeExamples `json:"types"`
}
