package decision

import "fmt"

// PanelNotFoundError reports that no panel matched a jurisdiction code.
type PanelNotFoundError struct {
	Jurisdiction string
}

func (e *PanelNotFoundError) Error() string {
	return fmt.Sprintf("decision: no panel found for jurisdiction %q", e.Jurisdiction)
}

// NodeNotFoundError reports a dangling node reference inside a panel.
type NodeNotFoundError struct {
	PanelID string
	NodeID  string
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("decision: panel %q has no node %q", e.PanelID, e.NodeID)
}

// InvalidTerminalError reports a violation of buildClassificationResult's
// precondition: the node passed in was not a well-formed end node. This
// is a programming error and is surfaced as fatal.
type InvalidTerminalError struct {
	PanelID string
	NodeID  string
	Reason  string
}

func (e *InvalidTerminalError) Error() string {
	return fmt.Sprintf("decision: panel %q node %q is not a valid terminal: %s", e.PanelID, e.NodeID, e.Reason)
}

// LoadError wraps a panel-bundle structural problem found at load time.
type LoadError struct {
	PanelID string
	Reason  string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("decision: panel %q failed load validation: %s", e.PanelID, e.Reason)
}
