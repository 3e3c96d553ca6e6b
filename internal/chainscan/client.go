// Package chainscan adapts an external chain-scanner's REST API to the
// wallet.ChainScanner interface: UTXO discovery for an address, raw
// transaction retrieval, SPV Merkle proofs, and the current tip height.
package chainscan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/leicca/vlei-audit-anchor/internal/wallet"
)

// Client is an HTTP wallet.ChainScanner.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Logger  *log.Logger
}

// DefaultConfig returns a Config with a component-prefixed stdlib logger.
func DefaultConfig(baseURL string) *Config {
	return &Config{
		BaseURL: baseURL,
		Logger:  log.New(log.Writer(), "[ChainScanner] ", log.LstdFlags),
	}
}

// NewClient builds a Client from cfg, applying defaults for unset fields.
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig("")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[ChainScanner] ", log.LstdFlags)
	}
	return &Client{
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		HTTPClient: &http.Client{},
		Logger:     cfg.Logger,
	}
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	reqCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("chainscan: GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chainscan: GET %s: HTTP %d", path, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("chainscan: decode %s: %w", path, err)
	}
	return nil
}

var errNotFound = fmt.Errorf("chainscan: not found")

type utxoRow struct {
	TxHash   string `json:"tx_hash"`
	TxPos    int    `json:"tx_pos"`
	Height   int64  `json:"height"`
	Satoshis int64  `json:"value"`
}

// ListAddressUTXOs implements wallet.ChainScanner.
func (c *Client) ListAddressUTXOs(ctx context.Context, address string, includeUnconfirmed bool) ([]wallet.ScannerUTXO, error) {
	var rows []utxoRow
	if err := c.getJSON(ctx, "/address/"+address+"/unspent", &rows); err != nil {
		return nil, err
	}
	utxos := make([]wallet.ScannerUTXO, 0, len(rows))
	for _, row := range rows {
		if !includeUnconfirmed && row.Height <= 0 {
			continue
		}
		utxos = append(utxos, wallet.ScannerUTXO{
			TxHash:   row.TxHash,
			TxPos:    row.TxPos,
			Height:   row.Height,
			Satoshis: row.Satoshis,
		})
	}
	return utxos, nil
}

// GetTransactionHex implements wallet.ChainScanner. A transaction the
// scanner has not seen yet returns "" with no error.
func (c *Client) GetTransactionHex(ctx context.Context, txHash string) (string, error) {
	var payload struct {
		Hex string `json:"hex"`
	}
	err := c.getJSON(ctx, "/tx/"+txHash+"/hex", &payload)
	if err == errNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return payload.Hex, nil
}

type proofRow struct {
	BlockHeight uint32   `json:"blockHeight"`
	MerkleRoot  string   `json:"merkleRoot"`
	Branches    []string `json:"branches"`
	Index       int      `json:"index"`
}

// GetMerkleProof implements wallet.ChainScanner.
func (c *Client) GetMerkleProof(ctx context.Context, txid string) (*wallet.MerkleProof, error) {
	var row proofRow
	if err := c.getJSON(ctx, "/tx/"+txid+"/proof", &row); err != nil {
		return nil, err
	}
	return &wallet.MerkleProof{
		BlockHeight: row.BlockHeight,
		MerkleRoot:  row.MerkleRoot,
		Path:        row.Branches,
		Index:       row.Index,
	}, nil
}

// CurrentHeight implements wallet.ChainScanner.
func (c *Client) CurrentHeight(ctx context.Context) (uint32, error) {
	var payload struct {
		Blocks uint32 `json:"blocks"`
	}
	if err := c.getJSON(ctx, "/chain/info", &payload); err != nil {
		return 0, err
	}
	return payload.Blocks, nil
}
