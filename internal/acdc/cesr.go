package acdc

import (
	"encoding/json"
	"regexp"
)

const (
	acdcMarker = `{"v":"ACDC10JSON`
	keriMarker = `{"v":"KERI10JSON`
)

// ACDCFrame is one ACDC object located inside a CESR stream.
type ACDCFrame struct {
	JSONBytes []byte
	SAID      string
}

// KELEvent is one Key Event Log entry (icp/ixn/rot/...).
type KELEvent struct {
	V string `json:"v"`
	T string `json:"t"`
	D string `json:"d"`
	I string `json:"i"`
	S string `json:"s"` // sequence number, lowercase hex string
}

// KELState is the derived, highest-sequence icp/ixn event for an issuer AID.
type KELState struct {
	IssuerDID      string
	SequenceNumber uint64
	LastEventSAID  string
	CapturedAt     string
}

// ExtractACDCs scans a CESR stream for every ACDC frame by a balanced-brace
// walk: starting at each `{"v":"ACDC10JSON` marker, track JSON brace depth
// (ignoring braces inside quoted strings) and slice when depth returns to
// zero. The returned slice's last element is always the target credential
// for verification; callers must not resort it.
func ExtractACDCs(stream []byte) ([]ACDCFrame, error) {
	var frames []ACDCFrame
	idx := 0
	for {
		start := indexFrom(stream, acdcMarker, idx)
		if start < 0 {
			break
		}
		end, ok := scanBalancedObject(stream, start)
		if !ok {
			// Truncated/malformed frame: stop scanning rather than guess.
			break
		}
		raw := stream[start:end]
		said := firstDField(raw)
		frames = append(frames, ACDCFrame{JSONBytes: raw, SAID: said})
		idx = end
	}
	if len(frames) == 0 {
		return nil, &ParseError{Kind: KindNoACDCFrame}
	}
	return frames, nil
}

// scanBalancedObject walks forward from a '{' at offset start, tracking
// brace depth while respecting JSON string quoting/escaping, and returns
// the exclusive end offset once depth returns to zero.
func scanBalancedObject(stream []byte, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(stream); i++ {
		c := stream[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

var dFieldPattern = regexp.MustCompile(`"d"\s*:\s*"([^"]*)"`)

// firstDField extracts the first top-level "d" field value from a JSON
// blob without a full unmarshal, used while scanning raw CESR frames.
func firstDField(raw []byte) string {
	m := dFieldPattern.FindSubmatch(raw)
	if m == nil {
		return ""
	}
	return string(m[1])
}

var iFieldPattern = regexp.MustCompile(`"i"\s*:\s*"(E[A-Za-z0-9_-]{20,43})"`)

// ExtractIssuerAid matches the first `"i":"E..."` occurrence in cesrOrJSON.
func ExtractIssuerAid(cesrOrJSON []byte) (string, bool) {
	m := iFieldPattern.FindSubmatch(cesrOrJSON)
	if m == nil {
		return "", false
	}
	return string(m[1]), true
}

// ExtractKELState scans a CESR stream for every KERI event frame and
// returns the one with the highest sequence number authored by issuerAID
// whose event type is state-forming (icp or ixn). Returns nil if no
// matching event is found.
func ExtractKELState(stream []byte, issuerAID string) (*KELState, error) {
	idx := 0
	var best *KELEvent
	var bestSeq uint64
	for {
		start := indexFrom(stream, keriMarker, idx)
		if start < 0 {
			break
		}
		end, ok := scanBalancedObject(stream, start)
		if !ok {
			break
		}
		raw := stream[start:end]
		idx = end

		var evt KELEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			continue // non-event KERI frame (e.g. a TEL event); skip
		}
		if evt.I != issuerAID {
			continue
		}
		if evt.T != "icp" && evt.T != "ixn" {
			continue
		}
		seq, err := parseHexSeq(evt.S)
		if err != nil {
			continue
		}
		if best == nil || seq > bestSeq {
			e := evt
			best = &e
			bestSeq = seq
		}
	}
	if best == nil {
		return nil, nil
	}
	return &KELState{
		IssuerDID:      best.I,
		SequenceNumber: bestSeq,
		LastEventSAID:  best.D,
	}, nil
}

func parseHexSeq(s string) (uint64, error) {
	var n uint64
	if s == "" {
		return 0, &ParseError{Kind: KindMissingField, Path: "s"}
	}
	for _, c := range s {
		n <<= 4
		switch {
		case c >= '0' && c <= '9':
			n |= uint64(c - '0')
		case c >= 'a' && c <= 'f':
			n |= uint64(c-'a') + 10
		default:
			return 0, &ParseError{Kind: KindInvalidJSON, Path: "s"}
		}
	}
	return n, nil
}

// ExtractSAIDMismatch compares the first top-level "d" field found in cesr
// against urlSaid (the SAID the caller expected from the request URL) and
// returns a human-readable mismatch message if they differ, or "" if they
// match or no "d" field was found.
func ExtractSAIDMismatch(cesr []byte, urlSaid string) string {
	found := firstDField(cesr)
	if found == "" || found == urlSaid {
		return ""
	}
	return "credential SAID " + found + " does not match requested SAID " + urlSaid
}
