package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leicca/vlei-audit-anchor/internal/acdc"
	"github.com/leicca/vlei-audit-anchor/internal/anchoring"
	"github.com/leicca/vlei-audit-anchor/internal/auditlog"
	"github.com/leicca/vlei-audit-anchor/internal/capsule"
	"github.com/leicca/vlei-audit-anchor/internal/chainscan"
	"github.com/leicca/vlei-audit-anchor/internal/config"
	"github.com/leicca/vlei-audit-anchor/internal/decision"
	"github.com/leicca/vlei-audit-anchor/internal/envelope"
	"github.com/leicca/vlei-audit-anchor/internal/gleif"
	"github.com/leicca/vlei-audit-anchor/internal/verifier"
	"github.com/leicca/vlei-audit-anchor/internal/wallet"
	"github.com/leicca/vlei-audit-anchor/internal/xcrypto"
)

// HealthStatus tracks per-component health for the /health endpoint.
type HealthStatus struct {
	Status        string `json:"status"` // "ok", "degraded", "starting"
	Verifier      string `json:"verifier"`
	ChainScanner  string `json:"chain_scanner"`
	Wallet        string `json:"wallet"`
	Panels        string `json:"panels"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	startTime     time.Time
	mu            sync.RWMutex
}

func newHealthStatus() *HealthStatus {
	return &HealthStatus{
		Status:       "starting",
		Verifier:     "unknown",
		ChainScanner: "unknown",
		Wallet:       "unknown",
		Panels:       "unknown",
		startTime:    time.Now(),
	}
}

func (h *HealthStatus) set(component, status string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch component {
	case "verifier":
		h.Verifier = status
	case "chain_scanner":
		h.ChainScanner = status
	case "wallet":
		h.Wallet = status
	case "panels":
		h.Panels = status
	}
	h.Status = "ok"
	for _, s := range []string{h.Verifier, h.ChainScanner, h.Wallet, h.Panels} {
		if s != "connected" && s != "loaded" {
			h.Status = "degraded"
			break
		}
	}
}

func (h *HealthStatus) ToJSON() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.UptimeSeconds = int64(time.Since(h.startTime).Seconds())
	data, err := json.Marshal(h)
	if err != nil {
		return []byte(`{"status":"error"}`)
	}
	return data
}

// service bundles the wired components behind the HTTP handlers.
type service struct {
	cfg      *config.Config
	verifier *verifier.Client
	gleif    *gleif.Client
	engine   *decision.Engine
	pipeline *anchoring.Pipeline
	journal  auditlog.Journal
	log      *log.Logger
}

func main() {
	showHelp := flag.Bool("help", false, "Show usage and configuration reference")
	overlayPath := flag.String("config", "", "Path to an optional YAML operational overlay")
	flag.Parse()

	if *showHelp {
		printHelp()
		return
	}

	logger := log.New(os.Stdout, "[leicca-anchor] ", log.LstdFlags)

	cfg := config.Load()
	if *overlayPath != "" {
		overlay, err := config.LoadOperationalOverlay(*overlayPath)
		if err != nil {
			logger.Fatalf("load overlay: %v", err)
		}
		overlay.ApplyTo(cfg)
		logger.Printf("applied operational overlay from %s", *overlayPath)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("%v", err)
	}

	health := newHealthStatus()

	journal, err := auditlog.NewFileJournal(filepath.Join(cfg.DataDir, "audit-events.jsonl"))
	if err != nil {
		logger.Fatalf("open audit journal: %v", err)
	}
	defer journal.Close()

	engine, err := loadPanels(cfg, logger, health)
	if err != nil {
		logger.Fatalf("load panels: %v", err)
	}

	metrics := anchoring.NewMetrics()
	verifierClient := verifier.NewClient(&verifier.Config{
		BaseURL:            cfg.VLEIVerifierURL,
		SubmitTimeout:      cfg.VerifierSubmitTimeout,
		HealthTimeout:      cfg.VerifierHealthTimeout,
		OOBITimeout:        cfg.OOBITimeout,
		RootOfTrustTimeout: cfg.RootOfTrustTimeout,
		Observe:            metrics.ObserveVerifierRequest,
	})
	gleifClient := gleif.NewClient(gleif.DefaultConfig(cfg.GLEIFAPIBase))
	scanner := chainscan.NewClient(chainscan.DefaultConfig(cfg.ChainScannerURL))
	remoteWallet := wallet.NewRemoteWallet(cfg.WalletURL, cfg.MintblueSDKToken, nil)

	auditReceiverPub, err := decodeAuditReceiverKey(cfg.AuditReceiverPublicKeyHex)
	if err != nil {
		logger.Fatalf("audit receiver key: %v", err)
	}
	pipeline := anchoring.New(remoteWallet, scanner, envelope.DocV1{}, auditReceiverPub, anchoring.Config{
		Network:               cfg.BlockchainNetwork,
		RequiredConfirmations: cfg.RequiredConfirmations,
		BaselineFeeSatoshis:   cfg.BaselineFeeSatoshis,
	}, nil, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := pipeline.Initialize(ctx, cfg.MintblueSDKToken); err != nil {
		logger.Printf("wallet initialization failed, anchoring disabled until restart: %v", err)
		health.set("wallet", "disconnected")
	} else {
		health.set("wallet", "connected")
	}

	if _, err := scanner.CurrentHeight(ctx); err != nil {
		health.set("chain_scanner", "disconnected")
	} else {
		health.set("chain_scanner", "connected")
	}

	if ok, err := verifierClient.CheckHealth(ctx); err != nil || !ok {
		health.set("verifier", "disconnected")
	} else {
		health.set("verifier", "connected")
	}

	svc := &service{
		cfg:      cfg,
		verifier: verifierClient,
		gleif:    gleifClient,
		engine:   engine,
		pipeline: pipeline,
		journal:  journal,
		log:      logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(health.ToJSON())
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("POST /verify", svc.handleVerify)
	mux.HandleFunc("POST /classify", svc.handleClassify)
	mux.HandleFunc("POST /anchor", svc.handleAnchor)
	mux.HandleFunc("POST /decrypt", svc.handleDecrypt)
	mux.HandleFunc("GET /tx/{txid}/status", svc.handleTxStatus)

	server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		logger.Printf("listening on %s (network=%s)", cfg.ListenAddr, cfg.BlockchainNetwork)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
}

// loadPanels loads the decision-tree bundle from DATA_DIR/panels.json. A
// missing bundle is tolerated (classification endpoints will report
// PanelNotFound) so verification-only deployments can run without one.
func loadPanels(cfg *config.Config, logger *log.Logger, health *HealthStatus) (*decision.Engine, error) {
	path := filepath.Join(cfg.DataDir, "panels.json")
	panels, err := decision.LoadPanelsFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Printf("no panel bundle at %s, classification disabled", path)
			health.set("panels", "missing")
			return decision.NewEngine(nil)
		}
		return nil, err
	}
	engine, err := decision.NewEngine(panels)
	if err != nil {
		return nil, err
	}
	logger.Printf("loaded %d panels from %s", len(panels), path)
	health.set("panels", "loaded")
	return engine, nil
}

func decodeAuditReceiverKey(hexKey string) ([32]byte, error) {
	var out [32]byte
	raw, err := xcrypto.DecodeHex(hexKey)
	if err != nil {
		return out, err
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("must be 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// handleVerify accepts a CESR stream (or bare ACDC JSON) as the request
// body, drives the external verifier, enriches the outcome from GLEIF,
// and returns the capsule-ready verification result.
func (s *service) handleVerify(w http.ResponseWriter, r *http.Request) {
	said := r.URL.Query().Get("said")
	if said == "" {
		writeError(w, http.StatusBadRequest, "missing said query parameter")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
	if err != nil || len(body) == 0 {
		writeError(w, http.StatusBadRequest, "empty request body")
		return
	}

	if msg := acdc.ExtractSAIDMismatch(body, said); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	parsed, err := acdc.Parse(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.verifier.VerifyCredential(r.Context(), body, said, s.cfg.KERIAAgentURL)
	if err != nil {
		var vErr *verifier.Error
		status := http.StatusBadGateway
		if errors.As(err, &vErr) {
			status = vErr.HTTPStatus()
		}
		writeError(w, status, err.Error())
		return
	}

	var kelState *acdc.KELState
	if issuerAID, ok := acdc.ExtractIssuerAid(body); ok {
		kelState, _ = acdc.ExtractKELState(body, issuerAID)
	}

	cred := parsed.Credential
	legalName, jurisdiction := s.gleif.Enrich(r.Context(), cred.A.LEI, cred.A.PersonLegalName)
	if cred.A.LegalJurisdiction != "" {
		jurisdiction = cred.A.LegalJurisdiction
	}

	vr := verifier.NewVerificationResult(result, kelState, legalName, cred.A.LEI, jurisdiction)
	s.appendEvent("verify", "", fmt.Sprintf("said=%s verified=%t", said, vr.Verified))
	writeJSON(w, http.StatusOK, vr)
}

type classifyRequest struct {
	Jurisdiction string            `json:"jurisdiction"`
	Answers      map[string]string `json:"answers"`
}

// handleClassify traverses the panel for the requested jurisdiction using
// the caller's per-node answers.
func (s *service) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	panel := s.engine.FindPanelByJurisdiction(req.Jurisdiction)
	if panel == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no panel for jurisdiction %q", req.Jurisdiction))
		return
	}

	result, err := s.engine.Traverse(panel, func(n *decision.Node) string {
		return req.Answers[n.ID]
	})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.appendEvent("classify", "", fmt.Sprintf("panel=%s classification=%q", result.PanelID, result.Classification))
	writeJSON(w, http.StatusOK, result)
}

type anchorRequest struct {
	Verification   *verifier.VerificationResult   `json:"verification"`
	Classification *decision.ClassificationResult `json:"classification"`
	Evidence       []capsule.Evidence             `json:"evidence"`
}

// handleAnchor seals a capsule from the supplied results and anchors it.
func (s *service) handleAnchor(w http.ResponseWriter, r *http.Request) {
	var req anchorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	recordID := uuid.NewString()
	c := capsule.CreateAuditCapsule(req.Verification, req.Classification, req.Evidence, recordID)
	tags := capsule.ExtractPublicTags(c)

	record, err := s.pipeline.AnchorAuditCapsule(r.Context(), c, tags)
	if err != nil {
		s.appendEvent("anchor", recordID, "failed: "+err.Error())
		writeJSON(w, http.StatusBadGateway, record)
		return
	}
	s.appendEvent("anchor", recordID, "txid="+record.TxID)
	writeJSON(w, http.StatusOK, record)
}

type decryptRequest struct {
	RawCiphertextHex string `json:"rawCiphertextHex"`
}

// handleDecrypt opens a previously anchored capsule's raw ciphertext.
func (s *service) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	var req decryptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	c, err := s.pipeline.DecryptAuditCapsule(r.Context(), req.RawCiphertextHex)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleTxStatus reports SPV-verified confirmation depth for a txid.
func (s *service) handleTxStatus(w http.ResponseWriter, r *http.Request) {
	txid := r.PathValue("txid")
	status, err := s.pipeline.GetTransactionStatus(r.Context(), txid)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *service) appendEvent(kind, recordID, detail string) {
	if err := s.journal.Append(auditlog.Event{Kind: kind, RecordID: recordID, Detail: detail}); err != nil {
		s.log.Printf("journal append: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func printHelp() {
	help := strings.TrimSpace(`
leicca-anchor - vLEI verification, Basel III classification, and BSV audit anchoring

Usage:
  leicca-anchor [-config overlay.yaml]

Environment:
  MINTBLUE_SDK_TOKEN              wallet SDK session token (required)
  BLOCKCHAIN_NETWORK              main or test (default main)
  VLEI_VERIFIER_URL               external vLEI verifier base URL
  KERIA_AGENT_URL                 KERIA agent controller base URL
  GLEIF_API_BASE                  GLEIF REST base URL
  CHAIN_SCANNER_URL               chain scanner REST base URL
  WALLET_URL                      wallet SDK service base URL
  DATA_DIR                        panels.json + audit journal directory (default ./data)
  AUDIT_RECEIVER_PUBLIC_KEY_HEX   fixed audit receiver public key (required)
  LISTEN_ADDR                     HTTP listen address (default :8080)
`)
	fmt.Println(help)
}
