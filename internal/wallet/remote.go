package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// RemoteWallet is a Wallet backed by the external wallet SDK's JSON HTTP
// service, authenticated by the session token passed at construction.
type RemoteWallet struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *log.Logger
}

// NewRemoteWallet builds a RemoteWallet for the service at baseURL.
// logger may be nil.
func NewRemoteWallet(baseURL, token string, logger *log.Logger) *RemoteWallet {
	if logger == nil {
		logger = log.New(log.Writer(), "[Wallet] ", log.LstdFlags)
	}
	return &RemoteWallet{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
		log:        logger,
	}
}

func (w *RemoteWallet) do(ctx context.Context, method, path string, in, out interface{}) error {
	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("wallet: marshal %s request: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, w.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+w.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("wallet: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wallet: %s %s: HTTP %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("wallet: decode %s response: %w", path, err)
		}
	}
	return nil
}

// ListOutputs implements Wallet.
func (w *RemoteWallet) ListOutputs(ctx context.Context, opts ListOutputsOptions) (*ListOutputsResult, error) {
	var result ListOutputsResult
	if err := w.do(ctx, http.MethodPost, "/outputs/list", opts, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateAction implements Wallet.
func (w *RemoteWallet) CreateAction(ctx context.Context, req CreateActionRequest) (*CreateActionResult, error) {
	var result CreateActionResult
	if err := w.do(ctx, http.MethodPost, "/actions/create", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// InternalizeAction implements Wallet.
func (w *RemoteWallet) InternalizeAction(ctx context.Context, req InternalizeActionRequest) error {
	return w.do(ctx, http.MethodPost, "/actions/internalize", req, nil)
}

// GetKey implements Wallet.
func (w *RemoteWallet) GetKey(ctx context.Context, name string) (Key, error) {
	var key Key
	if err := w.do(ctx, http.MethodGet, "/keys/"+name, nil, &key); err != nil {
		return Key{}, err
	}
	return key, nil
}

// GetMasterAddress implements Wallet.
func (w *RemoteWallet) GetMasterAddress(ctx context.Context) (string, error) {
	var payload struct {
		Address string `json:"address"`
	}
	if err := w.do(ctx, http.MethodGet, "/master/address", nil, &payload); err != nil {
		return "", err
	}
	return payload.Address, nil
}

// GetMasterPublicKey implements Wallet.
func (w *RemoteWallet) GetMasterPublicKey(ctx context.Context) (string, error) {
	var payload struct {
		PublicKey string `json:"publicKey"`
	}
	if err := w.do(ctx, http.MethodGet, "/master/publicKey", nil, &payload); err != nil {
		return "", err
	}
	return payload.PublicKey, nil
}

// GetHeight implements Wallet.
func (w *RemoteWallet) GetHeight(ctx context.Context) (uint32, error) {
	var payload struct {
		Height uint32 `json:"height"`
	}
	if err := w.do(ctx, http.MethodGet, "/height", nil, &payload); err != nil {
		return 0, err
	}
	return payload.Height, nil
}
