package envelope

import "fmt"

// MissingKeyError reports that a named key was unavailable to seal or open.
type MissingKeyError struct {
	Name string
}

func (e *MissingKeyError) Error() string { return fmt.Sprintf("envelope: missing key %q", e.Name) }

// CorruptCiphertextError reports a ciphertext that failed structural or
// authentication checks during open.
type CorruptCiphertextError struct {
	Reason string
}

func (e *CorruptCiphertextError) Error() string {
	return fmt.Sprintf("envelope: corrupt ciphertext: %s", e.Reason)
}

// WrongReceiverError reports that the supplied private key does not match
// any receiver the ciphertext was sealed for.
type WrongReceiverError struct{}

func (e *WrongReceiverError) Error() string {
	return "envelope: key is not a receiver of this ciphertext"
}

// EnvelopeVersionMismatchError reports an unrecognized or unsupported
// envelope format version tag.
type EnvelopeVersionMismatchError struct {
	Got, Want string
}

func (e *EnvelopeVersionMismatchError) Error() string {
	return fmt.Sprintf("envelope: version mismatch: got %q, want %q", e.Got, e.Want)
}
