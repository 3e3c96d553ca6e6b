// Package decision loads jurisdiction-specific Basel III classification
// panels and traverses their typed node graphs to a terminal outcome.
package decision

import (
	"encoding/json"
	"fmt"
	"os"
)

// NodeType discriminates the tagged-variant Node below.
type NodeType string

const (
	NodeStart      NodeType = "start"
	NodeSelect     NodeType = "select"
	NodeQuestion   NodeType = "question"
	NodeScreenshot NodeType = "screenshot"
	NodeEnd        NodeType = "end"
)

// SelectOption is one branch of a select node.
type SelectOption struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	NextNodeID string `json:"nextNodeId"`
}

// Outcome is the terminal classification an end node carries.
type Outcome struct {
	Classification string `json:"classification"`
	Category       string `json:"category"`
	Description    string `json:"description"`
	Success        bool   `json:"success"`
}

// Node is a tagged variant over {start, select, question, screenshot, end}.
// Only the fields relevant to NodeType are populated by the panel bundle;
// the rest are zero values.
type Node struct {
	ID       string   `json:"id"`
	NodeType NodeType `json:"nodeType"`

	// start, screenshot
	ContinueTarget string `json:"continueTarget,omitempty"`

	// select
	SelectOptions []SelectOption `json:"selectOptions,omitempty"`

	// question
	Text      string `json:"text,omitempty"`
	YesTarget string `json:"yesTarget,omitempty"`
	NoTarget  string `json:"noTarget,omitempty"`

	// end
	Outcome *Outcome `json:"outcome,omitempty"`
}

// Panel is a jurisdiction-specific decision tree.
type Panel struct {
	ID                string   `json:"id"`
	Country           string   `json:"country"`
	CountryName       string   `json:"countryName"`
	PanelName         string   `json:"panel"`
	JurisdictionCodes []string `json:"jurisdictionCodes"`
	StartNodeID       string   `json:"startNodeId"`
	Nodes             []Node   `json:"nodes"`
}

// LoadPanels parses a static panel bundle: a JSON array of panels.
func LoadPanels(raw []byte) ([]Panel, error) {
	var panels []Panel
	if err := json.Unmarshal(raw, &panels); err != nil {
		return nil, fmt.Errorf("decision: parse panel bundle: %w", err)
	}
	return panels, nil
}

// LoadPanelsFile reads and parses the panel bundle at path.
func LoadPanelsFile(path string) ([]Panel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("decision: read panel bundle %s: %w", path, err)
	}
	return LoadPanels(raw)
}

// DecisionStep is one hop recorded in a traversal's path.
type DecisionStep struct {
	NodeID   string `json:"nodeId"`
	NodeText string `json:"nodeText"`
	Answer   string `json:"answer"`
}

// ClassificationResult is the synthesized outcome of a full traversal.
type ClassificationResult struct {
	PanelID        string         `json:"panelId"`
	Classification string         `json:"classification"`
	Category       string         `json:"category"`
	Description    string         `json:"description"`
	Success        bool           `json:"success"`
	DecisionPath   []DecisionStep `json:"decisionPath"`
}
