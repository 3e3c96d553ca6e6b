// Package acdc parses and validates ACDC/CESR vLEI credentials: SAID shape
// checking, multi-credential CESR stream framing, and KEL-event extraction.
package acdc

import "time"

// Credential is the Go model of an ACDC (Authentic Chained Data Container).
type Credential struct {
	V  string      `json:"v"`
	D  string      `json:"d"`
	I  string      `json:"i"`
	RI string      `json:"ri"`
	S  string      `json:"s"`
	A  Attributes  `json:"a"`
	E  Endorsement `json:"e"`
	R  Rules       `json:"r"`
}

// Attributes is the ACDC "a" block: required d/i/dt plus the optional vLEI
// fields schema OOR/ECR credentials may omit.
type Attributes struct {
	D                     string             `json:"d"`
	I                     string             `json:"i"`
	DT                    string             `json:"dt"`
	LEI                   string             `json:"LEI,omitempty"`
	PersonLegalName       string             `json:"personLegalName,omitempty"`
	EngagementContextRole string             `json:"engagementContextRole,omitempty"`
	LegalJurisdiction     string             `json:"legalJurisdiction,omitempty"`
	RegisteredAddress     *RegisteredAddress `json:"registeredAddress,omitempty"`
}

// RegisteredAddress carries the registered-address country used for
// jurisdiction lookups when legalJurisdiction itself is absent.
type RegisteredAddress struct {
	Country string `json:"country"`
}

// Endorsement is the ACDC "e" block: the chain to the QVI that issued this
// credential.
type Endorsement struct {
	D   string   `json:"d"`
	QVI *QVILink `json:"qvi,omitempty"`
}

// QVILink is the qualified-vLEI-issuer sub-object inside "e".
type QVILink struct {
	N string `json:"n"`
	S string `json:"s"`
}

// Rules is the ACDC "r" block.
type Rules struct {
	D                  string `json:"d"`
	UsageDisclaimer    *Rule  `json:"usageDisclaimer,omitempty"`
	IssuanceDisclaimer *Rule  `json:"issuanceDisclaimer,omitempty"`
}

// Rule is a single named rule clause.
type Rule struct {
	L string `json:"l"`
}

// DecodedTimestamp parses the attributes' dt field as RFC3339 (ISO8601).
func (a Attributes) DecodedTimestamp() (time.Time, error) {
	return time.Parse(time.RFC3339, a.DT)
}

// ParsedCredential is what parse() returns: the structural credential plus
// whatever validation already ran on it. A credential that fails SAID or
// field validation is still returned so callers can display what was
// rejected, rather than discarding it.
type ParsedCredential struct {
	Credential       Credential
	StructuralErrors []ValidationError
	AllSAIDsValid    bool
}
