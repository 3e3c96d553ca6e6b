package capsule

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/leicca/vlei-audit-anchor/internal/decision"
	"github.com/leicca/vlei-audit-anchor/internal/verifier"
	"github.com/leicca/vlei-audit-anchor/internal/xcrypto"
)

// CreateAuditCapsule stamps metadata onto the supplied results and
// evidence. verification and classification may each be nil: a capsule
// can record just evidence, just a classification, or both. References
// are copied as given, not deep-cloned — callers must treat the inputs as
// no longer theirs to mutate once the capsule is built.
func CreateAuditCapsule(verification *verifier.VerificationResult, classification *decision.ClassificationResult, evidence []Evidence, recordID string) *AuditCapsule {
	return &AuditCapsule{
		Version:        CapsuleVersion,
		Verification:   verification,
		Classification: classification,
		Evidence:       evidence,
		Metadata: Metadata{
			Timestamp: time.Now().UTC(),
			Project:   projectName,
			Basket:    basketName,
			RecordID:  recordID,
		},
	}
}

// ExtractPublicTags pulls the credential's LEI and jurisdiction (if a
// verification is present) plus the capsule's recordId/timestamp. It
// never includes anything from the classification beyond what is already
// public.
func ExtractPublicTags(c *AuditCapsule) PublicTags {
	tags := PublicTags{
		Type:      "LEICCA-Classification",
		Timestamp: c.Metadata.Timestamp,
		RecordID:  c.Metadata.RecordID,
	}
	if c.Verification != nil {
		tags.LEI = c.Verification.LEI
		tags.Jurisdiction = c.Verification.Jurisdiction
	}
	return tags
}

// SerializeCapsule produces the canonical compact JSON encoding of c: no
// indentation, UTF-8, no whitespace between tokens. This is exactly what
// the envelope encrypts, per the round-trip invariant.
func SerializeCapsule(c *AuditCapsule) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	// json.Encoder.Encode always appends a trailing newline; the compact
	// wire form has none.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DeserializeCapsule parses the canonical JSON form back into an
// AuditCapsule.
func DeserializeCapsule(raw []byte) (*AuditCapsule, error) {
	var c AuditCapsule
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// HashEvidence returns the lowercase hex SHA-256 digest of data.
func HashEvidence(data []byte) string {
	return xcrypto.Hash256Hex(data)
}

// HashEvidenceStream streams r through SHA-256 without buffering the
// whole file in memory, for large evidence uploads.
func HashEvidenceStream(r io.Reader) (string, error) {
	return xcrypto.Hash256Stream(r)
}

// ErrHashMismatch reports that a re-uploaded evidence file does not match
// the hash recorded in the anchored capsule.
var ErrHashMismatch = errors.New("capsule: evidence hash mismatch")

// VerifyEvidence re-hashes data and compares it against the recorded
// evidence entry. The anchored capsule is never modified; a mismatch only
// means the re-uploaded bytes are not the bytes originally hashed.
func VerifyEvidence(e Evidence, data []byte) error {
	if got := HashEvidence(data); got != e.SHA256Hex {
		return fmt.Errorf("%w: %s recorded %s, re-upload hashed to %s", ErrHashMismatch, e.Filename, e.SHA256Hex, got)
	}
	return nil
}
