package verifier

import (
	"time"

	"github.com/leicca/vlei-audit-anchor/internal/acdc"
)

// Status is the coarse outcome category carried on VerificationResult.
type Status string

const (
	StatusVerified Status = "verified"
	StatusInvalid  Status = "invalid"
	StatusRevoked  Status = "revoked"
)

// Checks breaks VerificationResult.Verified into its constituent checks.
type Checks struct {
	SAIDValidation bool      `json:"saidValidation"`
	QVIChain       bool      `json:"qviChain"`
	RegistryCheck  bool      `json:"registryCheck"`
	Timestamp      time.Time `json:"timestamp"`
}

// VerificationResult is the record embedded in an audit capsule. It is
// strictly richer than the raw Result a verifyCredential
// call returns: it adds a coarse Status, a Checks breakdown, and the KEL
// state captured alongside verification.
type VerificationResult struct {
	Verified          bool           `json:"verified"`
	Status            Status         `json:"status"`
	CredentialSummary string         `json:"credentialSummary,omitempty"`
	LEI               string         `json:"lei,omitempty"`
	Jurisdiction      string         `json:"jurisdiction,omitempty"`
	Checks            Checks         `json:"checks"`
	Errors            []string       `json:"errors"`
	KELState          *acdc.KELState `json:"kelState,omitempty"`
}

// NewVerificationResult assembles the capsule-facing record from a raw
// verifyCredential Result, the KEL state extracted from the presented
// CESR (nil if none was found), and the credential's public attributes
// (LEI, legal jurisdiction, and a short summary string) — these flow
// through to PublicTags without ever re-reading the original CESR.
func NewVerificationResult(r *Result, kelState *acdc.KELState, credentialSummary, lei, jurisdiction string) *VerificationResult {
	status := StatusInvalid
	if r.Verified && r.QVIChainValid {
		status = StatusVerified
	} else if r.Verified {
		// cryptographically sound but policy-rejected: still not "invalid"
		// in the tamper sense, but the chain didn't authorize it.
		status = StatusInvalid
	}
	return &VerificationResult{
		Verified:          r.Verified,
		Status:            status,
		CredentialSummary: credentialSummary,
		LEI:               lei,
		Jurisdiction:      jurisdiction,
		Checks: Checks{
			SAIDValidation: r.SAIDValid,
			QVIChain:       r.QVIChainValid,
			RegistryCheck:  r.RegistryChecked,
			Timestamp:      time.Now().UTC(),
		},
		Errors:   r.Errors,
		KELState: kelState,
	}
}
