// Package anchoring drives the UTXO wallet and chain scanner to anchor
// sealed audit capsules on chain as OP_RETURN outputs, and to recover
// their confirmation status and plaintext later.
package anchoring

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/leicca/vlei-audit-anchor/internal/capsule"
	"github.com/leicca/vlei-audit-anchor/internal/envelope"
	"github.com/leicca/vlei-audit-anchor/internal/wallet"
	"github.com/leicca/vlei-audit-anchor/internal/xcrypto"
	"github.com/leicca/vlei-audit-anchor/pkg/merkle"
)

// Config carries the pipeline's operational knobs, narrowed from
// internal/config.Config to exactly what anchoring needs.
type Config struct {
	// Network selects the explorer link base: "main" or "test".
	Network               string
	RequiredConfirmations int
	BaselineFeeSatoshis   int64
}

// AnchoringRecord is what AnchorAuditCapsule returns: enough to locate the
// anchoring transaction and later decrypt the capsule. RawCiphertextHex is
// the decryptable artifact; OpReturnScriptHex is what went on chain and is
// NOT decryptable on its own.
type AnchoringRecord struct {
	Success           bool      `json:"success"`
	TxID              string    `json:"txid"`
	Basket            string    `json:"basket"`
	Timestamp         time.Time `json:"timestamp"`
	ExplorerURL       string    `json:"explorerUrl"`
	RawCiphertextHex  string    `json:"rawCiphertextHex"`
	OpReturnScriptHex string    `json:"opReturnScriptHex,omitempty"`
	FeeSatoshis       int64     `json:"feeSatoshis,omitempty"`
	Errors            []string  `json:"errors"`
}

// TxStatus reports a transaction's confirmation depth against the chain
// scanner's current tip.
type TxStatus struct {
	TxID          string
	Confirmations uint32
	Confirmed     bool
	BlockHeight   uint32
}

// Pipeline owns the one wallet/chain-scanner pair this process anchors
// against and serializes every select-input-then-create-action critical
// section behind a single mutex, so two concurrent anchors never spend
// the same UTXO.
type Pipeline struct {
	wallet    wallet.Wallet
	scanner   wallet.ChainScanner
	env       envelope.Envelope
	templates *wallet.Registry

	auditReceiverPub [32]byte

	cfg     Config
	log     *log.Logger
	metrics *Metrics

	mu          sync.Mutex
	initialized bool
}

// New constructs a Pipeline. logger and metrics may be nil, in which case
// a prefixed stdlib logger and an unregistered Metrics are used.
func New(w wallet.Wallet, scanner wallet.ChainScanner, env envelope.Envelope, auditReceiverPub [32]byte, cfg Config, logger *log.Logger, metrics *Metrics) *Pipeline {
	if logger == nil {
		logger = log.New(log.Writer(), "[anchoring] ", log.LstdFlags)
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Pipeline{
		wallet:           w,
		scanner:          scanner,
		env:              env,
		templates:        wallet.NewRegistry(),
		auditReceiverPub: auditReceiverPub,
		cfg:              cfg,
		log:              logger,
		metrics:          metrics,
	}
}

// Initialize authenticates the wallet SDK session token. It is idempotent:
// a second call with any token returns without work once the first has
// succeeded.
func (p *Pipeline) Initialize(ctx context.Context, token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return nil
	}
	if token == "" {
		return &Error{Kind: KindWalletNotInitialized, Detail: "empty wallet SDK token"}
	}
	if _, err := p.wallet.GetMasterAddress(ctx); err != nil {
		return ChainScannerUnavailableError(err)
	}
	p.initialized = true
	return nil
}

// IsReady reports whether Initialize has completed successfully.
func (p *Pipeline) IsReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized
}

// AnchorAuditCapsule runs the full anchoring critical path: acquire the
// wallet's signing and deriving keys, seal the capsule for the wallet's
// self-receiver plus the configured audit receiver, sync discovered UTXOs
// into the satoshis basket, select the largest single spendable input,
// compute the deterministic fee, build the change + OP_RETURN outputs,
// and submit the signed action. The sync-through-submission sequence
// holds p.mu so two concurrent calls never race over the same UTXO.
//
// On failure the returned record carries Success=false and the failure
// message in Errors, alongside the typed error.
func (p *Pipeline) AnchorAuditCapsule(ctx context.Context, c *capsule.AuditCapsule, tags capsule.PublicTags) (*AnchoringRecord, error) {
	rec, err := p.anchor(ctx, c, tags)
	if err != nil {
		return &AnchoringRecord{
			Success:   false,
			Basket:    wallet.BasketAudit,
			Timestamp: time.Now().UTC(),
			Errors:    []string{err.Error()},
		}, err
	}
	return rec, nil
}

func (p *Pipeline) anchor(ctx context.Context, c *capsule.AuditCapsule, tags capsule.PublicTags) (*AnchoringRecord, error) {
	if !p.IsReady() {
		return nil, WalletNotInitializedError()
	}

	signingKey, err := p.wallet.GetKey(ctx, wallet.KeySigning)
	if err != nil {
		return nil, KeyMissingError(wallet.KeySigning, err)
	}
	derivingKey, err := p.wallet.GetKey(ctx, wallet.KeyDeriving)
	if err != nil {
		return nil, KeyMissingError(wallet.KeyDeriving, err)
	}

	signerPriv, err := decodeKey32(signingKey.PrivateHex)
	if err != nil {
		return nil, SealFailedError(fmt.Errorf("signing key: %w", err))
	}
	selfPub, err := decodeKey32(derivingKey.PublicHex)
	if err != nil {
		return nil, SealFailedError(fmt.Errorf("deriving public key: %w", err))
	}

	plaintext, err := capsule.SerializeCapsule(c)
	if err != nil {
		return nil, SealFailedError(fmt.Errorf("serialize capsule: %w", err))
	}

	sealed, err := p.env.Seal(plaintext, signerPriv, [][32]byte{selfPub, p.auditReceiverPub}, envelope.Options{
		Filename: fmt.Sprintf("%s.capsule.json", c.Metadata.RecordID),
		MimeType: "application/json",
	})
	if err != nil {
		p.metrics.observeAnchor("seal_failed", 0)
		return nil, SealFailedError(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	masterAddress, err := p.wallet.GetMasterAddress(ctx)
	if err != nil {
		return nil, ChainScannerUnavailableError(err)
	}

	if err := p.syncWallet(ctx, masterAddress); err != nil {
		p.metrics.observeAnchor("sync_failed", 0)
		return nil, err
	}

	listing, err := p.wallet.ListOutputs(ctx, wallet.ListOutputsOptions{Basket: wallet.BasketSatoshis})
	if err != nil {
		p.metrics.observeAnchor("sync_failed", 0)
		return nil, ChainScannerUnavailableError(err)
	}
	p.metrics.setUTXOCount(len(listing.Outputs))

	opReturnScript, err := xcrypto.DecodeHex(sealed.OpReturnScriptHex)
	if err != nil {
		return nil, SealFailedError(err)
	}

	estimatedFee := estimateFeeForSingleInput(p.templates, len(opReturnScript))
	if estimatedFee < p.cfg.BaselineFeeSatoshis {
		estimatedFee = p.cfg.BaselineFeeSatoshis
	}

	selection, have, err := wallet.SelectLargest(listing.Outputs, estimatedFee)
	if err != nil {
		p.metrics.observeAnchor("insufficient_funds", 0)
		return nil, InsufficientFundsError(masterAddress, estimatedFee, have)
	}

	var outputs []wallet.ActionOutput
	if selection.Change > 0 {
		outputs = append(outputs, wallet.ActionOutput{
			LockingScript:     "", // wallet SDK derives the master address script
			Satoshis:          selection.Change,
			OutputDescription: "change to master address",
			Basket:            wallet.BasketSatoshis,
		})
	}
	outputs = append(outputs, wallet.ActionOutput{
		LockingScript: sealed.OpReturnScriptHex,
		// Validation-passing sentinel; the transaction builder writes a
		// zero-valued OP_RETURN on the wire.
		Satoshis:          1,
		OutputDescription: "vLEI audit capsule anchor",
		Basket:            wallet.BasketAudit,
		Tags:              opReturnTags(tags),
	})

	sourceTxID, sourceVout, err := selection.Selected.Outpoint.Parse()
	if err != nil {
		return nil, BroadcastFailedError(fmt.Errorf("selected outpoint: %w", err))
	}

	req := wallet.CreateActionRequest{
		Description: "anchor vLEI audit capsule",
		Labels:      []string{"leicca-audit", "vlei-verification"},
		Inputs: []wallet.ActionInput{{
			Outpoint:          selection.Selected.Outpoint,
			SourceTXID:        sourceTxID,
			SourceOutputIndex: sourceVout,
			InputDescription:  "spend largest satoshis UTXO",
			SequenceNumber:    0xFFFFFFFF,
		}},
		Outputs: outputs,
		Options: wallet.ActionOptions{SignAndProcess: true},
	}

	result, err := p.wallet.CreateAction(ctx, req)
	if err != nil {
		p.metrics.observeAnchor("broadcast_failed", 0)
		return nil, BroadcastFailedError(err)
	}

	p.metrics.observeAnchor("success", estimatedFee)
	p.log.Printf("anchored capsule %s as txid %s (fee %d sat)", c.Metadata.RecordID, result.TxID, estimatedFee)

	return &AnchoringRecord{
		Success:           true,
		TxID:              result.TxID,
		Basket:            wallet.BasketAudit,
		Timestamp:         time.Now().UTC(),
		ExplorerURL:       explorerURL(p.cfg.Network, result.TxID),
		RawCiphertextHex:  sealed.RawCiphertextHex,
		OpReturnScriptHex: sealed.OpReturnScriptHex,
		FeeSatoshis:       estimatedFee,
		Errors:            []string{},
	}, nil
}

// syncWallet discovers UTXOs at the master address (unconfirmed included)
// and internalizes them into the satoshis basket, grouped by transaction
// hash so one on-chain transaction never produces duplicate action
// records.
func (p *Pipeline) syncWallet(ctx context.Context, masterAddress string) error {
	discovered, err := p.scanner.ListAddressUTXOs(ctx, masterAddress, true)
	if err != nil {
		return ChainScannerUnavailableError(fmt.Errorf("list address UTXOs: %w", err))
	}
	if len(discovered) == 0 {
		return nil
	}

	byTx := make(map[string][]wallet.ScannerUTXO)
	order := make([]string, 0, len(discovered))
	for _, u := range discovered {
		if _, seen := byTx[u.TxHash]; !seen {
			order = append(order, u.TxHash)
		}
		byTx[u.TxHash] = append(byTx[u.TxHash], u)
	}

	for _, txHash := range order {
		txHex, err := p.scanner.GetTransactionHex(ctx, txHash)
		if err != nil {
			return ChainScannerUnavailableError(fmt.Errorf("fetch tx %s: %w", txHash, err))
		}
		if txHex == "" {
			continue
		}

		utxos := byTx[txHash]
		outputs := make([]wallet.InternalizeOutput, 0, len(utxos))
		for _, u := range utxos {
			outputs = append(outputs, wallet.InternalizeOutput{
				OutputIndex:     u.TxPos,
				Protocol:        "wallet payment",
				InsertionBasket: wallet.BasketSatoshis,
			})
		}
		err = p.wallet.InternalizeAction(ctx, wallet.InternalizeActionRequest{
			TxHex:       txHex,
			Description: "internalize discovered UTXOs",
			Labels:      []string{"leicca-audit"},
			Outputs:     outputs,
		})
		if err != nil {
			return ChainScannerUnavailableError(fmt.Errorf("internalize tx %s: %w", txHash, err))
		}
	}
	return nil
}

// DecryptAuditCapsule opens a raw ciphertext hex string previously
// returned by AnchorAuditCapsule, using the wallet's deriving private key
// as receiver. It never accepts an OP_RETURN script hex: that form embeds
// the ciphertext but cannot be decrypted on its own.
func (p *Pipeline) DecryptAuditCapsule(ctx context.Context, rawCiphertextHex string) (*capsule.AuditCapsule, error) {
	raw, err := xcrypto.DecodeHex(rawCiphertextHex)
	if err != nil {
		return nil, &Error{Kind: KindInvalidFormat, Detail: "raw ciphertext is not valid hex"}
	}
	derivingKey, err := p.wallet.GetKey(ctx, wallet.KeyDeriving)
	if err != nil {
		return nil, KeyMissingError(wallet.KeyDeriving, err)
	}
	priv, err := decodeKey32(derivingKey.PrivateHex)
	if err != nil {
		return nil, KeyMissingError(wallet.KeyDeriving, err)
	}

	opened, err := p.env.Open(raw, priv)
	if err != nil {
		return nil, DecryptionFailedError(err)
	}

	c, err := capsule.DeserializeCapsule(opened.Plaintext)
	if err != nil {
		return nil, &Error{Kind: KindInvalidFormat, Err: fmt.Errorf("deserialize opened capsule: %w", err)}
	}
	return c, nil
}

// GetTransactionStatus re-verifies the scanner's SPV Merkle proof for
// txid against its reported root, then counts confirmations against the
// current tip: confirmations = currentHeight - blockHeight + 1, confirmed
// once the configured threshold (default 6) is reached.
func (p *Pipeline) GetTransactionStatus(ctx context.Context, txid string) (*TxStatus, error) {
	proof, err := p.scanner.GetMerkleProof(ctx, txid)
	if err != nil {
		return nil, ProofUnavailableError(txid)
	}

	receipt := merkle.ReceiptFromIndexedPath(txid, proof.Index, proof.Path, proof.MerkleRoot, uint64(proof.BlockHeight))
	if err := receipt.Validate(); err != nil {
		return nil, &Error{Kind: KindProofUnavailable, Detail: fmt.Sprintf("merkle proof for txid %s did not verify", txid), Err: err}
	}

	height, err := p.scanner.CurrentHeight(ctx)
	if err != nil {
		return nil, ChainScannerUnavailableError(err)
	}

	var confirmations uint32
	if height >= proof.BlockHeight {
		confirmations = height - proof.BlockHeight + 1
	}

	required := p.cfg.RequiredConfirmations
	if required <= 0 {
		required = 6
	}

	return &TxStatus{
		TxID:          txid,
		Confirmations: confirmations,
		Confirmed:     int(confirmations) >= required,
		BlockHeight:   proof.BlockHeight,
	}, nil
}

// opReturnTags renders the public tags onto the anchoring output. Unknown
// LEI/jurisdiction values are tagged "unknown" rather than omitted so the
// tag set has a stable shape.
func opReturnTags(tags capsule.PublicTags) []string {
	lei := tags.LEI
	if lei == "" {
		lei = "unknown"
	}
	jurisdiction := tags.Jurisdiction
	if jurisdiction == "" {
		jurisdiction = "unknown"
	}
	return []string{
		"audit-trail",
		"lei:" + lei,
		"jurisdiction:" + jurisdiction,
		"record:" + tags.RecordID,
	}
}

// explorerURL links a txid on WhatsOnChain for the configured network.
func explorerURL(network, txid string) string {
	if network == "test" {
		return "https://test.whatsonchain.com/tx/" + txid
	}
	return "https://whatsonchain.com/tx/" + txid
}

// estimateFeeForSingleInput sizes a transaction with exactly one p2pkh
// input, the OP_RETURN anchor output, and a standard change output, then
// returns its deterministic fee.
func estimateFeeForSingleInput(templates *wallet.Registry, opReturnScriptLen int) int64 {
	size, err := wallet.EstimateSize(
		templates,
		[]wallet.FeeInput{{TemplateID: "p2pkh"}},
		[]wallet.FeeOutput{
			{ScriptLen: opReturnScriptLen},
			{ScriptLen: 25}, // standard p2pkh change script length
		},
	)
	if err != nil {
		// p2pkh is always registered; this can't happen in practice.
		size = opReturnScriptLen + 200
	}
	return wallet.CalculateFee(size)
}

// decodeKey32 decodes a hex-encoded 32-byte key.
func decodeKey32(hexKey string) ([32]byte, error) {
	var out [32]byte
	raw, err := xcrypto.DecodeHex(hexKey)
	if err != nil {
		return out, err
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("key must be 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
