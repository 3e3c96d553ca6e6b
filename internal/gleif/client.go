// Package gleif enriches a verified credential's LEI with legal-entity
// reference data from the GLEIF REST API. Enrichment is best-effort: a
// failed lookup degrades to local fallbacks and never fails a
// verification or anchoring run.
package gleif

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Entity is the subset of a GLEIF LEI record this system consumes.
type Entity struct {
	LEI          string
	LegalName    string
	Jurisdiction string
	Status       string
}

// Client talks to the GLEIF lei-records endpoint. It holds no per-request
// state and is safe to share.
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
		Logger:  log.New(log.Writer(), "[GLEIF] ", log.LstdFlags),
	}
}

// NewClient builds a Client from cfg, applying defaults for unset fields.
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig("")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[GLEIF] ", log.LstdFlags)
	}
	return &Client{
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		HTTPClient: &http.Client{},
		Logger:     cfg.Logger,
	}
}

// leiRecord mirrors the GLEIF API's JSON:API response shape for a single
// lei-records document.
type leiRecord struct {
	Data struct {
		Attributes struct {
			LEI    string `json:"lei"`
			Entity struct {
				LegalName struct {
					Name string `json:"name"`
				} `json:"legalName"`
				Jurisdiction string `json:"jurisdiction"`
				Status       string `json:"status"`
			} `json:"entity"`
		} `json:"attributes"`
	} `json:"data"`
}

// Lookup fetches the LEI record for lei. An HTTP 429 is retried exactly
// once after a 1 second wait; every other failure is returned as-is.
func (c *Client) Lookup(ctx context.Context, lei string) (*Entity, error) {
	entity, retryable, err := c.fetch(ctx, lei)
	if err != nil && retryable {
		c.Logger.Printf("rate limited looking up LEI %s, retrying once", lei)
		if err := sleep(ctx, time.Second); err != nil {
			return nil, err
		}
		entity, _, err = c.fetch(ctx, lei)
		return entity, err
	}
	return entity, err
}

func (c *Client) fetch(ctx context.Context, lei string) (*Entity, bool, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/api/v1/lei-records/%s", c.BaseURL, lei)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/vnd.api+json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, err
		}
		var record leiRecord
		if err := json.Unmarshal(body, &record); err != nil {
			return nil, false, fmt.Errorf("gleif: decode lei-record: %w", err)
		}
		return &Entity{
			LEI:          record.Data.Attributes.LEI,
			LegalName:    record.Data.Attributes.Entity.LegalName.Name,
			Jurisdiction: record.Data.Attributes.Entity.Jurisdiction,
			Status:       record.Data.Attributes.Entity.Status,
		}, false, nil
	case http.StatusTooManyRequests:
		return nil, true, ErrRateLimited
	case http.StatusNotFound:
		return nil, false, ErrNotFound
	default:
		return nil, false, fmt.Errorf("gleif: HTTP %d looking up LEI %s", resp.StatusCode, lei)
	}
}

// Enrich looks up lei and returns (legalName, jurisdiction). Failure is
// recovered locally: jurisdiction stays "Unknown" and the legal name
// falls back to the personal name carried on the credential.
func (c *Client) Enrich(ctx context.Context, lei, personalName string) (legalName, jurisdiction string) {
	if lei == "" {
		return personalName, "Unknown"
	}
	entity, err := c.Lookup(ctx, lei)
	if err != nil {
		c.Logger.Printf("enrichment failed for LEI %s, using local fallbacks: %v", lei, err)
		return personalName, "Unknown"
	}
	legalName = entity.LegalName
	if legalName == "" {
		legalName = personalName
	}
	jurisdiction = entity.Jurisdiction
	if jurisdiction == "" {
		jurisdiction = "Unknown"
	}
	return legalName, jurisdiction
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
