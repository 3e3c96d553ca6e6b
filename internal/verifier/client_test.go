package verifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func acdcStreamFixture() []byte {
	// Four credentials chained QVI -> LE -> ECR_AUTH -> target ECR, matching
	// the shape internal/acdc expects (last frame is the verification target).
	frame := func(said, issuer string) string {
		return `{"v":"ACDC10JSON00011a_","d":"` + said + `","i":"` + issuer + `","ri":"EReg00000000000000000000000","s":"ESchema0000000000000000000000","a":{"d":"EAttr0000000000000000000000000","i":"EHolder000000000000000000000000","dt":"2025-01-01T00:00:00Z"},"e":{"d":"EEndorse00000000000000000000000"},"r":{"d":"ERules0000000000000000000000000"}}`
	}
	return []byte(
		frame("EQvi000000000000000000000000001", "EIssuerQVI00000000000000000001") +
			frame("ELe0000000000000000000000000001", "EIssuerLE000000000000000000001") +
			frame("EEcrAuth000000000000000000000001", "EIssuerECRA0000000000000000001") +
			frame("ETargetEcr0000000000000000000001", "EIssuerECR00000000000000000001"),
	)
}

// TestVerifyCredentialUnauthorizedStillReportsVerified covers the policy-rejection path:
// a cryptographically sound presentation that is policy-rejected must report
// verified:true, qviChainValid:false, with the parsed reasons.
func TestVerifyCredentialUnauthorizedStillReportsVerified(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oobi", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/presentations/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"aid": "EIssuerECR00000000000000000001"})
	})
	mux.HandleFunc("/authorizations/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"msg": "unauthorized info: ECR chain validation failed; LE chain validation failed",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(DefaultConfig(srv.URL))
	result, err := c.VerifyCredential(context.Background(), acdcStreamFixture(), "ETargetEcr0000000000000000000001", srv.URL)
	if err != nil {
		t.Fatalf("VerifyCredential: %v", err)
	}
	if !result.Verified {
		t.Fatal("expected Verified true even on policy rejection")
	}
	if result.QVIChainValid {
		t.Fatal("expected QVIChainValid false")
	}
	if len(result.Errors) == 0 {
		t.Fatal("expected parsed rejection reasons")
	}
}

func TestVerifyCredentialAuthorized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oobi", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/presentations/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"aid": "aid-1"})
	})
	mux.HandleFunc("/authorizations/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(DefaultConfig(srv.URL))
	result, err := c.VerifyCredential(context.Background(), acdcStreamFixture(), "ETargetEcr0000000000000000000001", srv.URL)
	if err != nil {
		t.Fatalf("VerifyCredential: %v", err)
	}
	if !result.Verified || !result.QVIChainValid {
		t.Fatalf("expected fully authorized result, got %+v", result)
	}
}

func TestVerifyCredentialCryptoFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oobi", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/presentations/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"msg": "credential did not cryptographically verify"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(DefaultConfig(srv.URL))
	_, err := c.VerifyCredential(context.Background(), acdcStreamFixture(), "ETargetEcr0000000000000000000001", srv.URL)
	if err == nil {
		t.Fatal("expected an error")
	}
	verr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if verr.Kind != KindCryptoFailure {
		t.Fatalf("expected KindCryptoFailure, got %s", verr.Kind)
	}
	if len(verr.Reasons) != 3 {
		t.Fatalf("expected 3 reasons, got %d", len(verr.Reasons))
	}
}

func TestVerifyCredentialBusy(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oobi", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/presentations/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(DefaultConfig(srv.URL))
	_, err := c.VerifyCredential(context.Background(), acdcStreamFixture(), "ETargetEcr0000000000000000000001", srv.URL)
	verr, ok := err.(*Error)
	if !ok || verr.Kind != KindBusy {
		t.Fatalf("expected KindBusy, got %v", err)
	}
}

func TestCheckHealth(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(DefaultConfig(srv.URL))
	ok, err := c.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !ok {
		t.Fatal("expected healthy")
	}
}

func TestVerifyCredentialReportsOperationsToObserveHook(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oobi", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/presentations/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"aid": "aid-1"})
	})
	mux.HandleFunc("/authorizations/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var observed []string
	c := NewClient(&Config{
		BaseURL: srv.URL,
		Observe: func(op, outcome string) { observed = append(observed, op+":"+outcome) },
	})
	if _, err := c.VerifyCredential(context.Background(), acdcStreamFixture(), "ETargetEcr0000000000000000000001", srv.URL); err != nil {
		t.Fatalf("VerifyCredential: %v", err)
	}

	want := []string{"issuer_oobi:ok", "presentation:submitted", "authorization:authorized"}
	for _, op := range want {
		found := false
		for _, got := range observed {
			if got == op {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected %q among observed operations %v", op, observed)
		}
	}
}

func TestOobiResolutionCachedByURLAndController(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/oobi", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(DefaultConfig(srv.URL))
	ctx := context.Background()
	if err := c.ResolveSchemaOobi(ctx, "ESchema1", srv.URL); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if err := c.ResolveSchemaOobi(ctx, "ESchema1", srv.URL); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected cached second call to skip the network, got %d calls", calls)
	}
}
