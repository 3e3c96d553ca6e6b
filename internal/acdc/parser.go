package acdc

import (
	"encoding/json"
	"fmt"
)

// Parse accepts a raw ACDC JSON blob (or a CESR stream containing one or
// more ACDC frames) and returns the parsed target credential — the last
// ACDC frame in a CESR stream, or the lone object if input is a bare
// JSON credential.
func Parse(input []byte) (*ParsedCredential, error) {
	if looksLikeCESRStream(input) {
		frames, err := ExtractACDCs(input)
		if err != nil {
			return nil, err
		}
		if len(frames) == 0 {
			return nil, &ParseError{Kind: KindNoACDCFrame}
		}
		target := frames[len(frames)-1]
		return parseJSONObject(target.JSONBytes)
	}
	return parseJSONObject(input)
}

// looksLikeCESRStream classifies input as CESR framing (multiple
// interleaved JSON/attachment blocks) versus a single bare ACDC JSON
// object.
func looksLikeCESRStream(input []byte) bool {
	count := 0
	for _, marker := range []string{acdcMarker, keriMarker} {
		idx := 0
		for {
			pos := indexFrom(input, marker, idx)
			if pos < 0 {
				break
			}
			count++
			idx = pos + len(marker)
		}
	}
	return count > 1
}

func indexFrom(haystack []byte, needle string, from int) int {
	if from >= len(haystack) {
		return -1
	}
	rel := indexOf(haystack[from:], needle)
	if rel < 0 {
		return -1
	}
	return from + rel
}

func indexOf(haystack []byte, needle string) int {
	n := len(needle)
	for i := 0; i+n <= len(haystack); i++ {
		if string(haystack[i:i+n]) == needle {
			return i
		}
	}
	return -1
}

// parseJSONObject unmarshals a single ACDC JSON object and runs structural
// plus SAID validation against it, returning a populated ParsedCredential
// even when validation fails.
func parseJSONObject(raw []byte) (*ParsedCredential, error) {
	var cred Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return nil, &ParseError{Kind: KindInvalidJSON, Err: err}
	}

	structuralErrors := ValidateStructure(cred)
	allValid := ValidateAllSAIDs(cred)

	return &ParsedCredential{
		Credential:       cred,
		StructuralErrors: structuralErrors,
		AllSAIDsValid:    allValid,
	}, nil
}

// ValidateStructure checks presence of the required top-level fields and
// their required sub-fields. a.LEI is intentionally not required: OOR
// credentials omit it.
func ValidateStructure(c Credential) []ValidationError {
	var errs []ValidationError

	require := func(path, value string) {
		if value == "" {
			errs = append(errs, ValidationError{Path: path, Message: "required field missing"})
		}
	}

	require("v", c.V)
	require("d", c.D)
	require("i", c.I)
	require("ri", c.RI)
	require("s", c.S)

	require("a.d", c.A.D)
	require("a.i", c.A.I)
	require("a.dt", c.A.DT)

	require("e.d", c.E.D)
	require("r.d", c.R.D)

	for _, said := range []struct{ path, value string }{
		{"d", c.D}, {"a.d", c.A.D}, {"e.d", c.E.D}, {"r.d", c.R.D},
	} {
		if said.value == "" {
			continue // already reported as missing above
		}
		if !ValidateSAIDShape(said.value) {
			errs = append(errs, ValidationError{
				Path:    said.path,
				Message: fmt.Sprintf("invalid SAID shape: %q", said.value),
			})
		}
	}

	return errs
}
