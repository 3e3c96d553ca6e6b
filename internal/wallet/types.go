// Package wallet defines the external wallet and chain-scanner
// collaborators plus the UTXO/fee/template machinery the anchoring
// pipeline drives against them. Both Wallet and ChainScanner are
// interfaces: this repo never embeds a wallet or a BSV node, it only
// talks to one.
package wallet

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Outpoint identifies a specific UTXO as "<txid>.<vout>".
type Outpoint string

// Parse splits the outpoint into its transaction id and output index.
func (o Outpoint) Parse() (string, uint32, error) {
	s := string(o)
	dot := strings.LastIndexByte(s, '.')
	if dot <= 0 || dot == len(s)-1 {
		return "", 0, fmt.Errorf("malformed outpoint %q", s)
	}
	vout, err := strconv.ParseUint(s[dot+1:], 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("malformed outpoint %q: %w", s, err)
	}
	return s[:dot], uint32(vout), nil
}

// UTXO is a wallet-managed spendable output.
type UTXO struct {
	Outpoint               Outpoint `json:"outpoint"`
	Satoshis               int64    `json:"satoshis"`
	LockingScriptHex       string   `json:"lockingScript"`
	Basket                 string   `json:"basket"`
	Tags                   []string `json:"tags,omitempty"`
	CustomInstructionsJSON string   `json:"customInstructions,omitempty"`
}

// ScannerUTXO is one row the chain scanner reports for an address, before
// it has been internalized into a wallet basket.
type ScannerUTXO struct {
	TxHash   string
	TxPos    int
	Height   int64 // 0 or negative means unconfirmed
	Satoshis int64
}

// MerkleProof is the SPV inclusion proof the chain scanner returns for a
// transaction.
type MerkleProof struct {
	BlockHeight uint32
	MerkleRoot  string
	// Path holds the sibling hash at each level, root-ward from the leaf.
	Path []string
	// Index is the transaction's position in that block, used to derive
	// each level's sibling side.
	Index int
}

// ChainScanner is the external collaborator that discovers UTXOs, fetches
// raw transactions, and supplies SPV Merkle proofs. This core trusts an
// external scanner for all of it rather than running a node or explorer
// of its own.
type ChainScanner interface {
	ListAddressUTXOs(ctx context.Context, address string, includeUnconfirmed bool) ([]ScannerUTXO, error)
	GetTransactionHex(ctx context.Context, txHash string) (string, error)
	GetMerkleProof(ctx context.Context, txid string) (*MerkleProof, error)
	CurrentHeight(ctx context.Context) (uint32, error)
}

// Key is a named wallet key: either the private half (used for signing or
// decryption) or the public half (used as a receiver/self-receiver).
type Key struct {
	Name       string `json:"name"`
	PrivateHex string `json:"privateHex,omitempty"` // empty if this is a public-only key
	PublicHex  string `json:"publicHex"`
}

// ListOutputsOptions filters Wallet.ListOutputs.
type ListOutputsOptions struct {
	Basket                    string   `json:"basket"`
	Tags                      []string `json:"tags,omitempty"`
	IncludeCustomInstructions bool     `json:"includeCustomInstructions,omitempty"`
	IncludeLocked             bool     `json:"includeLocked,omitempty"`
}

// ListOutputsResult is what Wallet.ListOutputs returns.
type ListOutputsResult struct {
	Outputs []UTXO `json:"outputs"`
}

// ActionInput is one signed input of a CreateAction request.
type ActionInput struct {
	Outpoint          Outpoint `json:"outpoint"`
	SourceTXID        string   `json:"sourceTXID"`
	SourceOutputIndex uint32   `json:"sourceOutputIndex"`
	UnlockingScript   string   `json:"unlockingScript,omitempty"`
	InputDescription  string   `json:"inputDescription,omitempty"`
	SequenceNumber    uint32   `json:"sequenceNumber,omitempty"`
}

// ActionOutput is one output of a CreateAction request.
type ActionOutput struct {
	LockingScript      string   `json:"lockingScript"`
	Satoshis           int64    `json:"satoshis"`
	OutputDescription  string   `json:"outputDescription,omitempty"`
	Basket             string   `json:"basket"`
	Tags               []string `json:"tags,omitempty"`
	CustomInstructions string   `json:"customInstructions,omitempty"`
}

// ActionOptions controls how CreateAction processes the built transaction.
type ActionOptions struct {
	SignAndProcess bool `json:"signAndProcess"`
}

// CreateActionRequest is the Wallet.CreateAction input.
type CreateActionRequest struct {
	Description string         `json:"description"`
	Labels      []string       `json:"labels,omitempty"`
	Inputs      []ActionInput  `json:"inputs"`
	Outputs     []ActionOutput `json:"outputs"`
	Options     ActionOptions  `json:"options"`
}

// CreateActionResult is what CreateAction returns once signed/broadcast.
type CreateActionResult struct {
	TxID  string `json:"txid"`
	TxHex string `json:"tx,omitempty"`
}

// InternalizeOutput names one output of an externally-observed transaction
// to fold into a basket.
type InternalizeOutput struct {
	OutputIndex     int      `json:"outputIndex"`
	Protocol        string   `json:"protocol"`
	InsertionBasket string   `json:"basket"`
	InsertionTags   []string `json:"tags,omitempty"`
}

// InternalizeActionRequest is the Wallet.InternalizeAction input.
type InternalizeActionRequest struct {
	TxHex       string              `json:"tx"`
	Description string              `json:"description"`
	Labels      []string            `json:"labels,omitempty"`
	Outputs     []InternalizeOutput `json:"outputs"`
}

// Wallet is the external wallet collaborator: UTXO listing, action
// creation/internalization, key lookup, and address/key introspection.
// The anchoring pipeline is the sole mutator of wallet state.
type Wallet interface {
	ListOutputs(ctx context.Context, opts ListOutputsOptions) (*ListOutputsResult, error)
	CreateAction(ctx context.Context, req CreateActionRequest) (*CreateActionResult, error)
	InternalizeAction(ctx context.Context, req InternalizeActionRequest) error
	GetKey(ctx context.Context, name string) (Key, error)
	GetMasterAddress(ctx context.Context) (string, error)
	GetMasterPublicKey(ctx context.Context) (string, error)
	GetHeight(ctx context.Context) (uint32, error)
}

// Basket names used throughout the pipeline.
const (
	BasketSatoshis = "satoshis"
	BasketAudit    = "leicca-vlei-audit"
	BasketOutgoing = "outgoing"
)

// Well-known key names the pipeline fetches by.
const (
	KeySigning  = "signing"
	KeyDeriving = "deriving"
)
