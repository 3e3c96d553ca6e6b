// Package capsule assembles the AuditCapsule: the immutable record of a
// classification run (verification result, classification outcome,
// evidence hashes) that gets sealed into an envelope and anchored on
// chain.
package capsule

import (
	"time"

	"github.com/leicca/vlei-audit-anchor/internal/decision"
	"github.com/leicca/vlei-audit-anchor/internal/verifier"
)

const (
	// CapsuleVersion is stamped on every AuditCapsule this build produces.
	CapsuleVersion = "1.0.0"
	projectName    = "leicca-vlei-classifier"
	basketName     = "leicca-vlei-audit"
)

// Evidence is a reference to an auditor-supplied file; only its hash is
// ever persisted on chain, never its bytes.
type Evidence struct {
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mimetype"`
	SHA256Hex  string    `json:"sha256Hex"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Metadata stamps bookkeeping fields onto every capsule.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	Project   string    `json:"project"`
	Basket    string    `json:"basket"`
	RecordID  string    `json:"recordId"`
}

// AuditCapsule is the immutable, serialized unit this system anchors.
// Verification and Classification are both optional: a capsule may record
// just evidence, just a classification, or the full run.
type AuditCapsule struct {
	Version        string                         `json:"version"`
	Verification   *verifier.VerificationResult   `json:"verification,omitempty"`
	Classification *decision.ClassificationResult `json:"classification,omitempty"`
	Evidence       []Evidence                     `json:"evidence"`
	Metadata       Metadata                       `json:"metadata"`
}

// PublicTags is the non-sensitive summary attached to the anchoring
// transaction's output tags. It never carries credential bodies or
// classification detail beyond what is already public.
type PublicTags struct {
	Type         string    `json:"type"`
	LEI          string    `json:"lei,omitempty"`
	Jurisdiction string    `json:"jurisdiction,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	RecordID     string    `json:"recordId"`
}
