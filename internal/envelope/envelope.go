// Package envelope implements the multi-receiver, password-independent
// authenticated encryption container ("DocV1") that seals an AuditCapsule
// before it is anchored, and opens it again for an auditor holding any one
// receiver's private key.
package envelope

// Options carries the non-secret metadata sealed alongside the plaintext.
type Options struct {
	Filename string
	MimeType string
	Meta     map[string]string
}

// SealResult holds the three artifacts a seal produces.
type SealResult struct {
	// RawCiphertextHex is the encrypted-data blob alone, the thing that
	// must be persisted for later decryption.
	RawCiphertextHex string
	// OpReturnScriptHex is the full Bitcoin locking script embedding the
	// same ciphertext under an OP_RETURN push. It is NOT sufficient on its
	// own for decryption; callers that stored only this will be stuck.
	OpReturnScriptHex string
	Filename          string
	MimeType          string
	Meta              map[string]string
}

// OpenResult holds what open() recovers.
type OpenResult struct {
	Plaintext []byte
	Filename  string
	MimeType  string
	Meta      map[string]string
}

// Envelope seals plaintext for a set of receivers and opens ciphertext
// sealed for any one of them.
type Envelope interface {
	// Seal encrypts plaintext for every key in receivers, signed by
	// signerKey, producing both the raw ciphertext and a script wrapping
	// it in OP_RETURN.
	Seal(plaintext []byte, signerKey [32]byte, receivers [][32]byte, opts Options) (*SealResult, error)
	// Open decrypts rawCiphertext using receiverKey, which must be the
	// private half of one of the keys Seal was called with.
	Open(rawCiphertext []byte, receiverKey [32]byte) (*OpenResult, error)
}
