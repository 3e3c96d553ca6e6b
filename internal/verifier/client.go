// Package verifier drives the external vLEI verifier's OOBI-resolution and
// presentation/authorization protocol, reconciling its HTTP responses into
// a uniform Result. Client holds no per-request state and is safe to
// share across concurrent anchor operations.
package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/leicca/vlei-audit-anchor/internal/acdc"
)

// Result is the uniform outcome of VerifyCredential.
type Result struct {
	Verified        bool
	SAIDValid       bool
	QVIChainValid   bool
	RegistryChecked bool
	Errors          []string
}

// Client drives the external verifier's HTTP protocol.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *log.Logger

	submitTimeout      time.Duration
	healthTimeout      time.Duration
	oobiTimeout        time.Duration
	rootOfTrustTimeout time.Duration
	observe            func(op, outcome string)

	mu        sync.Mutex
	oobiCache map[string]bool // keyed by URL+"|"+controller
}

// Config configures a Client. Zero timeouts take the defaults below; the
// settle pauses after OOBI resolution are protocol-mandated and not
// configurable.
type Config struct {
	BaseURL string
	Logger  *log.Logger

	SubmitTimeout      time.Duration // presentation PUT, default 30s
	HealthTimeout      time.Duration // health GET, default 5s
	OOBITimeout        time.Duration // OOBI POST, default 10s
	RootOfTrustTimeout time.Duration // root-of-trust POST, default 60s

	// Observe, if set, is called once per HTTP operation with its name
	// and outcome, feeding the verifier_requests_total metric.
	Observe func(op, outcome string)
}

// DefaultConfig returns a Config with a component-prefixed stdlib logger.
func DefaultConfig(baseURL string) *Config {
	return &Config{
		BaseURL: baseURL,
		Logger:  log.New(log.Writer(), "[VerifierClient] ", log.LstdFlags),
	}
}

// NewClient builds a Client from cfg, applying defaults for unset fields.
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig("")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[VerifierClient] ", log.LstdFlags)
	}
	c := &Client{
		BaseURL:            strings.TrimRight(cfg.BaseURL, "/"),
		HTTPClient:         &http.Client{},
		Logger:             cfg.Logger,
		submitTimeout:      cfg.SubmitTimeout,
		healthTimeout:      cfg.HealthTimeout,
		oobiTimeout:        cfg.OOBITimeout,
		rootOfTrustTimeout: cfg.RootOfTrustTimeout,
		observe:            cfg.Observe,
		oobiCache:          make(map[string]bool),
	}
	if c.submitTimeout <= 0 {
		c.submitTimeout = 30 * time.Second
	}
	if c.healthTimeout <= 0 {
		c.healthTimeout = 5 * time.Second
	}
	if c.oobiTimeout <= 0 {
		c.oobiTimeout = 10 * time.Second
	}
	if c.rootOfTrustTimeout <= 0 {
		c.rootOfTrustTimeout = 60 * time.Second
	}
	return c
}

// record reports one finished operation to the metrics hook, if any.
func (c *Client) record(op, outcome string) {
	if c.observe != nil {
		c.observe(op, outcome)
	}
}

func (c *Client) cacheKey(url, controller string) string { return url + "|" + controller }

// cached reports whether (url, controller) was already resolved this
// session; duplicate resolutions within a session are skipped.
func (c *Client) cached(url, controller string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.oobiCache[c.cacheKey(url, controller)]
}

func (c *Client) markCached(url, controller string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.oobiCache[c.cacheKey(url, controller)] = true
}

// ResolveSchemaOobi resolves the schema's OOBI at the internal schema
// server, then sleeps the mandated 1s settle pause.
func (c *Client) ResolveSchemaOobi(ctx context.Context, schemaSAID, schemaServerURL string) error {
	if c.cached(schemaServerURL, schemaSAID) {
		return nil
	}
	if err := c.postOOBI(ctx, "schema_oobi", schemaServerURL); err != nil {
		return err
	}
	c.markCached(schemaServerURL, schemaSAID)
	return sleep(ctx, time.Second)
}

// ResolveIssuerOobi resolves the issuer's OOBI at the agent's controller
// URL, then sleeps the mandated 2.5s settle pause so the verifier has time
// to fetch the KEL from witnesses. The verifier fetches from witnesses
// asynchronously, so this pause is not optional.
func (c *Client) ResolveIssuerOobi(ctx context.Context, issuerAID, agentControllerURL string) error {
	if c.cached(agentControllerURL, issuerAID) {
		return nil
	}
	if err := c.postOOBI(ctx, "issuer_oobi", agentControllerURL); err != nil {
		return err
	}
	c.markCached(agentControllerURL, issuerAID)
	return sleep(ctx, 2500*time.Millisecond)
}

func (c *Client) postOOBI(ctx context.Context, op, oobiURL string) error {
	body, _ := json.Marshal(map[string]string{"oobi": oobiURL})
	resp, err := c.doJSON(ctx, http.MethodPost, "/oobi", body, c.oobiTimeout)
	if err != nil {
		c.record(op, "error")
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		c.record(op, "error")
		return &Error{Kind: KindUnknown, Detail: fmt.Sprintf("oobi resolution failed: HTTP %d", resp.StatusCode)}
	}
	c.record(op, "ok")
	return nil
}

// ConfigureRootOfTrust installs a local Root-of-Trust for a QVI.
// Required once per local QVI when GLEIF delegation is unavailable.
func (c *Client) ConfigureRootOfTrust(ctx context.Context, qviAID, qviCesr, agentBaseURL string) error {
	oobiURL := fmt.Sprintf("%s/oobi/%s/controller", strings.TrimRight(agentBaseURL, "/"), qviAID)
	body, _ := json.Marshal(map[string]string{"oobi": oobiURL, "vlei": qviCesr})
	resp, err := c.doJSON(ctx, http.MethodPost, "/root_of_trust/"+qviAID, body, c.rootOfTrustTimeout)
	if err != nil {
		c.record("root_of_trust", "error")
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		c.record("root_of_trust", "error")
		return &Error{Kind: KindUnknown, Detail: fmt.Sprintf("root of trust configuration failed: HTTP %d", resp.StatusCode)}
	}
	c.record("root_of_trust", "ok")
	return nil
}

// CheckHealth reports the verifier's health.
func (c *Client) CheckHealth(ctx context.Context) (bool, error) {
	resp, err := c.doJSON(ctx, http.MethodGet, "/health", nil, c.healthTimeout)
	if err != nil {
		c.record("health", "error")
		return false, err
	}
	defer resp.Body.Close()
	healthy := resp.StatusCode == http.StatusOK
	if healthy {
		c.record("health", "ok")
	} else {
		c.record("health", "unhealthy")
	}
	return healthy, nil
}

// VerifyCredential drives the verifier's presentation/authorization
// state machine. It pre-resolves the issuer's OOBI when one can be
// extracted from cesr, since the verifier needs the issuer's KEL before
// the presentation lands.
func (c *Client) VerifyCredential(ctx context.Context, cesr []byte, said, agentControllerURL string) (*Result, error) {
	if issuerAID, ok := acdc.ExtractIssuerAid(cesr); ok {
		if err := c.ResolveIssuerOobi(ctx, issuerAID, agentControllerURL); err != nil {
			c.Logger.Printf("issuer OOBI resolution failed for %s: %v", issuerAID, err)
		}
	}

	putCtx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(putCtx, http.MethodPut, c.BaseURL+"/presentations/"+said, bytes.NewReader(cesr))
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Err: err}
	}
	req.Header.Set("Content-Type", "application/json+cesr")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.record("presentation", "error")
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		var submitted struct {
			AID string `json:"aid"`
		}
		_ = json.Unmarshal(body, &submitted)
		c.record("presentation", "submitted")
		return c.awaitAuthorization(ctx, submitted.AID)
	case http.StatusBadRequest:
		c.record("presentation", "crypto_failure")
		return nil, classifyCryptoFailure(body)
	case http.StatusServiceUnavailable:
		c.record("presentation", "busy")
		return nil, &Error{Kind: KindBusy}
	default:
		c.record("presentation", "error")
		return nil, &Error{Kind: KindUnknown, Detail: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
}

func (c *Client) awaitAuthorization(ctx context.Context, aid string) (*Result, error) {
	getCtx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()
	resp, err := c.doJSON(getCtx, http.MethodGet, "/authorizations/"+aid, nil, 0)
	if err != nil {
		c.record("authorization", "error")
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		c.record("authorization", "authorized")
		return &Result{Verified: true, SAIDValid: true, QVIChainValid: true, RegistryChecked: true}, nil
	case http.StatusUnauthorized:
		c.record("authorization", "unauthorized")
		reasons := classifyUnauthorizedReasons(body)
		// Cryptographically sound but policy-rejected: still report
		// verified:true with qviChainValid false to distinguish policy
		// rejection from tampering.
		return &Result{
			Verified:        true,
			SAIDValid:       true,
			QVIChainValid:   false,
			RegistryChecked: true,
			Errors:          reasons,
		}, nil
	case http.StatusNotFound:
		c.record("authorization", "not_found")
		return nil, &Error{Kind: KindNotFound}
	default:
		c.record("authorization", "error")
		return nil, &Error{Kind: KindUnknown, Detail: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, timeout time.Duration) (*http.Response, error) {
	reqCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	return resp, nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "deadline exceeded") {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindUnreachable, Err: err}
}

// classifyCryptoFailure parses the verifier's HTTP 400 body into
// actionable hints.
func classifyCryptoFailure(body []byte) error {
	msg := extractMsg(body)
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "said") && strings.Contains(lower, "mismatch"):
		return &Error{Kind: KindSAIDMismatch, Detail: "⚠️ credential SAID does not match the submitted CESR — possible tampering"}
	case strings.Contains(lower, "did not cryptographically verify"):
		return &Error{
			Kind: KindCryptoFailure,
			Reasons: []string{
				"❌ tampered data: the credential bytes do not match their signatures",
				"❌ missing KEL/TEL attachments: the CESR stream lacks the event attachments needed to verify",
				"❌ unknown issuer signature: the issuer's key state could not be established",
			},
			Detail: msg,
		}
	case strings.Contains(lower, "invalid content type"):
		return &Error{Kind: KindCryptoFailure, Detail: "use CESR (application/json+cesr), not JSON"}
	default:
		return &Error{Kind: KindCryptoFailure, Detail: msg}
	}
}

// classifyUnauthorizedReasons parses the verifier's HTTP 401 "info:"
// clause into the specific chain-validation reasons it can carry.
func classifyUnauthorizedReasons(body []byte) []string {
	msg := extractMsg(body)
	infoIdx := strings.Index(msg, "info:")
	clause := msg
	if infoIdx >= 0 {
		clause = msg[infoIdx+len("info:"):]
	}
	lower := strings.ToLower(clause)

	var reasons []string
	add := func(present bool, symbol, reason string) {
		if present {
			reasons = append(reasons, symbol+" "+reason)
		}
	}
	add(strings.Contains(lower, "qvi aid must be delegated"), "⚠️", "QVI Chain: The QVI AID must be delegated")
	add(strings.Contains(lower, "ecr chain validation failed"), "❌", "ECR Credential: ECR chain validation failed")
	add(strings.Contains(lower, "ecr_auth chain validation failed"), "❌", "ECR_AUTH Credential: ECR_AUTH chain validation failed")
	add(strings.Contains(lower, "le chain validation failed"), "❌", "LE Credential: LE chain validation failed")
	add(strings.Contains(lower, "not allowed"), "❌", "LEI not allowed")
	add(strings.Contains(lower, "unknown issuer"), "❌", "unknown issuer")

	if len(reasons) == 0 {
		reasons = []string{"❌ " + strings.TrimSpace(clause)}
	}
	return reasons
}

func extractMsg(body []byte) string {
	var payload struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Msg != "" {
		return payload.Msg
	}
	return string(body)
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
