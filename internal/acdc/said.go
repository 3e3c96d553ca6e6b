package acdc

import "regexp"

// strictSAID matches the full 44-character CESR self-addressing identifier:
// 'E' followed by exactly 43 base64-url characters.
var strictSAID = regexp.MustCompile(`^E[A-Za-z0-9_-]{43}$`)

// relaxedSAID matches the shorter form accepted for test/fixture
// credentials: 'E' followed by at least 20 base64-url characters.
var relaxedSAID = regexp.MustCompile(`^E[A-Za-z0-9_-]{20,}$`)

// ValidateSAIDShape reports whether said matches either the strict
// (44-char) or relaxed (>=21-char) CESR SAID shape. Parsers accept both;
// the relaxed form covers test credentials.
func ValidateSAIDShape(said string) bool {
	return strictSAID.MatchString(said) || relaxedSAID.MatchString(said)
}

// ValidateAllSAIDs applies ValidateSAIDShape to every SAID-bearing field of
// a credential: d, a.d, e.d, r.d.
func ValidateAllSAIDs(c Credential) bool {
	if !ValidateSAIDShape(c.D) {
		return false
	}
	if !ValidateSAIDShape(c.A.D) {
		return false
	}
	if !ValidateSAIDShape(c.E.D) {
		return false
	}
	if !ValidateSAIDShape(c.R.D) {
		return false
	}
	return true
}
