package anchoring

import "fmt"

// ErrorKind is a stable identifier for an AnchoringPipeline operation
// failure.
type ErrorKind string

const (
	KindInsufficientFunds       ErrorKind = "InsufficientFunds"
	KindWalletNotInitialized    ErrorKind = "WalletNotInitialized"
	KindChainScannerUnavailable ErrorKind = "ChainScannerUnavailable"
	KindBroadcastFailed         ErrorKind = "BroadcastFailed"
	KindProofUnavailable        ErrorKind = "ProofUnavailable"
	KindSealFailed              ErrorKind = "SealFailed"
	KindKeyMissing              ErrorKind = "KeyMissing"
	KindInvalidFormat           ErrorKind = "InvalidFormat"
	KindDecryptionFailed        ErrorKind = "DecryptionFailed"
	KindUnknown                 ErrorKind = "Unknown"
)

// Error is the typed error every AnchoringPipeline operation may return.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("anchoring: %s: %s", e.Kind, e.Detail)
	}
	if e.Err != nil {
		return fmt.Sprintf("anchoring: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("anchoring: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// InsufficientFundsError reports that no single UTXO in the wallet's
// spendable basket covers the estimated fee. Its message names the
// funding address so an operator can top it up.
func InsufficientFundsError(address string, need, have int64) *Error {
	return &Error{
		Kind:   KindInsufficientFunds,
		Detail: fmt.Sprintf("address %s needs %d sat, has %d sat spendable", address, need, have),
	}
}

// WalletNotInitializedError reports a pipeline method called before
// Initialize(token) completed successfully.
func WalletNotInitializedError() *Error {
	return &Error{Kind: KindWalletNotInitialized, Detail: "pipeline has not completed Initialize"}
}

// ChainScannerUnavailableError wraps a failure to reach the chain scanner.
func ChainScannerUnavailableError(err error) *Error {
	return &Error{Kind: KindChainScannerUnavailable, Err: err}
}

// BroadcastFailedError wraps a wallet CreateAction failure.
func BroadcastFailedError(err error) *Error {
	return &Error{Kind: KindBroadcastFailed, Err: err}
}

// ProofUnavailableError reports that no SPV Merkle proof is available yet
// for a submitted transaction.
func ProofUnavailableError(txid string) *Error {
	return &Error{Kind: KindProofUnavailable, Detail: fmt.Sprintf("no merkle proof yet for txid %s", txid)}
}

// SealFailedError wraps an envelope sealing failure.
func SealFailedError(err error) *Error {
	return &Error{Kind: KindSealFailed, Err: err}
}

// KeyMissingError reports that a well-known wallet key could not be
// fetched or decoded.
func KeyMissingError(name string, err error) *Error {
	return &Error{Kind: KindKeyMissing, Detail: fmt.Sprintf("wallet key %q", name), Err: err}
}

// DecryptionFailedError wraps an envelope open failure during capsule
// decryption.
func DecryptionFailedError(err error) *Error {
	return &Error{Kind: KindDecryptionFailed, Err: err}
}
