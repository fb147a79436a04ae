package model

// GraphData is the serializable navigation graph: pages as nodes, resolved calls as edges
type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// GraphNode is one page in the navigation graph
type GraphNode struct {
	ID            string `json:"id"`
	Label         string `json:"label"`
	Type          string `json:"type"` // always "page" for now
	FunctionCount int    `json:"functionCount"`
	ButtonCount   int    `json:"buttonCount"`
}

// GraphEdge is one resolved navigation call
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"` // callee name
	Via    string `json:"via"`
	Line   int    `json:"line"`

	// Copied from the navigation function when Via is "definition"
	Conditions []string `json:"conditions,omitempty"`
	Actions    []string `json:"actions,omitempty"`
}
