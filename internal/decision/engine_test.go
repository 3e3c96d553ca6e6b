package decision

import "testing"

// enwCorporationPanel mirrors the England & Wales Corporation
// path: start -> select(company) -> question(yes) -> ... -> end.
func enwCorporationPanel() Panel {
	return Panel{
		ID:                "ENW_Corporation",
		Country:           "GB",
		CountryName:       "United Kingdom",
		PanelName:         "England and Wales",
		JurisdictionCodes: []string{"GB-ENG", "GB-WLS"},
		StartNodeID:       "start",
		Nodes: []Node{
			{ID: "start", NodeType: NodeStart, ContinueTarget: "ENW_JUR_ALL_4"},
			{
				ID:       "ENW_JUR_ALL_4",
				NodeType: NodeSelect,
				SelectOptions: []SelectOption{
					{ID: "company", Label: "Company", NextNodeID: "ENW_CORP_COMP_1"},
					{ID: "partnership", Label: "Partnership", NextNodeID: "end_partnership"},
				},
			},
			{ID: "ENW_CORP_COMP_1", NodeType: NodeQuestion, Text: "Incorporated in England or Wales?", YesTarget: "ENW_CORP_COMP_8", NoTarget: "end_not_english"},
			{
				ID:       "ENW_CORP_COMP_8",
				NodeType: NodeEnd,
				Outcome: &Outcome{
					Classification: "Company formed in England or Wales",
					Category:       "English or Welsh Company",
					Description:    "Standard corporate entity under E&W law.",
					Success:        true,
				},
			},
			{
				ID:       "end_not_english",
				NodeType: NodeEnd,
				Outcome:  &Outcome{Classification: "Not an E&W company", Category: "Other", Success: false},
			},
			{
				ID:       "end_partnership",
				NodeType: NodeEnd,
				Outcome:  &Outcome{Classification: "Partnership", Category: "Partnership", Success: true},
			},
		},
	}
}

func TestTraverseENWCorporationHappyPath(t *testing.T) {
	eng, err := NewEngine([]Panel{enwCorporationPanel()})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	panel := eng.FindPanelByJurisdiction("gb-eng")
	if panel == nil {
		t.Fatal("expected case-insensitive jurisdiction match")
	}

	answers := map[string]string{
		"ENW_JUR_ALL_4":   "company",
		"ENW_CORP_COMP_1": "yes",
	}
	result, err := eng.Traverse(panel, func(n *Node) string { return answers[n.ID] })
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}
	if result.PanelID != "ENW_Corporation" {
		t.Fatalf("unexpected panel id: %s", result.PanelID)
	}
	if result.Classification != "Company formed in England or Wales" {
		t.Fatalf("unexpected classification: %s", result.Classification)
	}
	if result.Category != "English or Welsh Company" {
		t.Fatalf("unexpected category: %s", result.Category)
	}
	if !result.Success {
		t.Fatal("expected success true")
	}
	if len(result.DecisionPath) < 3 {
		t.Fatalf("expected decisionPath length >= 3, got %d", len(result.DecisionPath))
	}
}

func TestFindPanelByJurisdictionNoMatch(t *testing.T) {
	eng, err := NewEngine([]Panel{enwCorporationPanel()})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if eng.FindPanelByJurisdiction("US-DE") != nil {
		t.Fatal("expected no match for unrelated jurisdiction code")
	}
}

func TestNextNodeIDRules(t *testing.T) {
	q := &Node{NodeType: NodeQuestion, YesTarget: "y", NoTarget: "n"}
	if got := NextNodeID(q, "yes"); got != "y" {
		t.Fatalf("expected yes target, got %q", got)
	}
	if got := NextNodeID(q, "no"); got != "n" {
		t.Fatalf("expected no target, got %q", got)
	}
	if got := NextNodeID(q, "maybe"); got != "" {
		t.Fatalf("expected empty for unrecognized answer, got %q", got)
	}

	sel := &Node{NodeType: NodeSelect, SelectOptions: []SelectOption{{ID: "a", NextNodeID: "na"}}}
	if got := NextNodeID(sel, "a"); got != "na" {
		t.Fatalf("expected na, got %q", got)
	}
	if got := NextNodeID(sel, "unknown"); got != "" {
		t.Fatalf("expected empty for unknown option, got %q", got)
	}

	end := &Node{NodeType: NodeEnd}
	if got := NextNodeID(end, "anything"); got != "" {
		t.Fatalf("expected end node to have no successor, got %q", got)
	}
}

func TestBuildClassificationResultRejectsNonEndNode(t *testing.T) {
	p := enwCorporationPanel()
	q := nodeByID(&p, "ENW_CORP_COMP_1")
	if _, err := BuildClassificationResult(&p, q, nil); err == nil {
		t.Fatal("expected InvalidTerminalError for a non-end node")
	}
}

func TestNewEngineRejectsMissingOutcome(t *testing.T) {
	p := enwCorporationPanel()
	for i := range p.Nodes {
		if p.Nodes[i].ID == "ENW_CORP_COMP_8" {
			p.Nodes[i].Outcome = nil
		}
	}
	if _, err := NewEngine([]Panel{p}); err == nil {
		t.Fatal("expected load validation to reject an end node without an outcome")
	}
}

func TestNewEngineRejectsDanglingSuccessor(t *testing.T) {
	p := enwCorporationPanel()
	for i := range p.Nodes {
		if p.Nodes[i].ID == "start" {
			p.Nodes[i].ContinueTarget = "does-not-exist"
		}
	}
	if _, err := NewEngine([]Panel{p}); err == nil {
		t.Fatal("expected load validation to reject a dangling successor")
	}
}
