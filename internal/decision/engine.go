package decision

import "strings"

// Engine holds the loaded panel bundle and its two lookup indexes: by
// panel id and by upper-cased jurisdiction code.
type Engine struct {
	panelsByID           map[string]*Panel
	panelsByJurisdiction map[string][]*Panel
}

// NewEngine loads panels, builds both indexes, and runs the load-time
// invariant validator (acyclic reachable graph, every non-end reachable
// node has defined successors, every end carries an outcome). Construction
// fails closed: a malformed bundle never produces a usable Engine.
func NewEngine(panels []Panel) (*Engine, error) {
	e := &Engine{
		panelsByID:           make(map[string]*Panel, len(panels)),
		panelsByJurisdiction: make(map[string][]*Panel),
	}
	for i := range panels {
		p := &panels[i]
		e.panelsByID[p.ID] = p
		for _, code := range p.JurisdictionCodes {
			upper := strings.ToUpper(code)
			e.panelsByJurisdiction[upper] = append(e.panelsByJurisdiction[upper], p)
		}
		if err := validatePanel(p); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// FindPanelByJurisdiction matches code case-insensitively against any
// panel's jurisdictionCodes, returning the first match or nil.
func (e *Engine) FindPanelByJurisdiction(code string) *Panel {
	matches := e.panelsByJurisdiction[strings.ToUpper(code)]
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

// PanelByID returns a panel by its own id, or nil.
func (e *Engine) PanelByID(id string) *Panel {
	return e.panelsByID[id]
}

func nodeByID(p *Panel, id string) *Node {
	for i := range p.Nodes {
		if p.Nodes[i].ID == id {
			return &p.Nodes[i]
		}
	}
	return nil
}

// GetStartNode returns panel's designated start node. The node must exist
// and be of type start; callers treat any other outcome as a load defect.
func GetStartNode(p *Panel) (*Node, error) {
	n := nodeByID(p, p.StartNodeID)
	if n == nil {
		return nil, &NodeNotFoundError{PanelID: p.ID, NodeID: p.StartNodeID}
	}
	if n.NodeType != NodeStart {
		return nil, &LoadError{PanelID: p.ID, Reason: "startNodeId does not reference a start node"}
	}
	return n, nil
}

// NextNodeID computes the successor node id for node given answer, per the
// per-node-type rules. A returned "" means no successor
// (either a dead-end answer or an end node).
func NextNodeID(node *Node, answer string) string {
	switch node.NodeType {
	case NodeQuestion:
		switch answer {
		case "yes":
			return node.YesTarget
		case "no":
			return node.NoTarget
		default:
			return ""
		}
	case NodeSelect:
		for _, opt := range node.SelectOptions {
			if opt.ID == answer {
				return opt.NextNodeID
			}
		}
		return ""
	case NodeStart, NodeScreenshot:
		return node.ContinueTarget
	case NodeEnd:
		return ""
	default:
		return ""
	}
}

// BuildClassificationResult synthesizes the terminal result for a
// completed traversal. Precondition: endNode.NodeType == end and
// endNode.Outcome != nil; violating it is a programming error and is
// returned as *InvalidTerminalError rather than panicking, so callers at
// the edge of the system can still surface it cleanly.
func BuildClassificationResult(p *Panel, endNode *Node, path []DecisionStep) (*ClassificationResult, error) {
	if endNode.NodeType != NodeEnd {
		return nil, &InvalidTerminalError{PanelID: p.ID, NodeID: endNode.ID, Reason: "node is not an end node"}
	}
	if endNode.Outcome == nil {
		return nil, &InvalidTerminalError{PanelID: p.ID, NodeID: endNode.ID, Reason: "end node has no outcome"}
	}
	return &ClassificationResult{
		PanelID:        p.ID,
		Classification: endNode.Outcome.Classification,
		Category:       endNode.Outcome.Category,
		Description:    endNode.Outcome.Description,
		Success:        endNode.Outcome.Success,
		DecisionPath:   path,
	}, nil
}

// AnswerFunc supplies the caller's answer for a given node during a full
// traversal; node.NodeType tells the caller what shape of answer is
// expected (e.g. "yes"/"no" for question, an option id for select).
type AnswerFunc func(node *Node) string

// Traverse walks panel from its start node to a terminal end node, calling
// answer at every decision point and recording the path taken. It is the
// driving loop a caller uses to exercise NextNodeID/BuildClassificationResult
// end to end.
func (e *Engine) Traverse(p *Panel, answer AnswerFunc) (*ClassificationResult, error) {
	node, err := GetStartNode(p)
	if err != nil {
		return nil, err
	}

	var path []DecisionStep
	for {
		if node.NodeType == NodeEnd {
			return BuildClassificationResult(p, node, path)
		}

		a := answer(node)
		path = append(path, DecisionStep{NodeID: node.ID, NodeText: node.Text, Answer: a})

		nextID := NextNodeID(node, a)
		if nextID == "" {
			return nil, &LoadError{PanelID: p.ID, Reason: "traversal reached a dead end at node " + node.ID}
		}
		next := nodeByID(p, nextID)
		if next == nil {
			return nil, &NodeNotFoundError{PanelID: p.ID, NodeID: nextID}
		}
		node = next
	}
}

// validatePanel checks the panel's load-time invariants: the
// reachable graph from startNodeId is acyclic, every non-end reachable
// node has its declared successors present, and every end node carries an
// outcome.
func validatePanel(p *Panel) error {
	start, err := GetStartNode(p)
	if err != nil {
		return err
	}

	visiting := make(map[string]bool)
	visited := make(map[string]bool)

	var walk func(n *Node) error
	walk = func(n *Node) error {
		if visiting[n.ID] {
			return &LoadError{PanelID: p.ID, Reason: "cycle detected at node " + n.ID}
		}
		if visited[n.ID] {
			return nil
		}
		visiting[n.ID] = true
		defer func() { visiting[n.ID] = false; visited[n.ID] = true }()

		switch n.NodeType {
		case NodeEnd:
			if n.Outcome == nil {
				return &LoadError{PanelID: p.ID, Reason: "end node " + n.ID + " has no outcome"}
			}
			return nil
		case NodeStart, NodeScreenshot:
			if n.ContinueTarget == "" {
				return &LoadError{PanelID: p.ID, Reason: "node " + n.ID + " has no successor"}
			}
			next := nodeByID(p, n.ContinueTarget)
			if next == nil {
				return &NodeNotFoundError{PanelID: p.ID, NodeID: n.ContinueTarget}
			}
			return walk(next)
		case NodeQuestion:
			if n.YesTarget == "" || n.NoTarget == "" {
				return &LoadError{PanelID: p.ID, Reason: "question node " + n.ID + " is missing a branch target"}
			}
			for _, target := range []string{n.YesTarget, n.NoTarget} {
				next := nodeByID(p, target)
				if next == nil {
					return &NodeNotFoundError{PanelID: p.ID, NodeID: target}
				}
				if err := walk(next); err != nil {
					return err
				}
			}
			return nil
		case NodeSelect:
			if len(n.SelectOptions) == 0 {
				return &LoadError{PanelID: p.ID, Reason: "select node " + n.ID + " has no options"}
			}
			for _, opt := range n.SelectOptions {
				next := nodeByID(p, opt.NextNodeID)
				if next == nil {
					return &NodeNotFoundError{PanelID: p.ID, NodeID: opt.NextNodeID}
				}
				if err := walk(next); err != nil {
					return err
				}
			}
			return nil
		default:
			return &LoadError{PanelID: p.ID, Reason: "node " + n.ID + " has an unrecognized nodeType"}
		}
	}

	return walk(start)
}
