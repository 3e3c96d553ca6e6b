package gleif

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
)

const testLEI = "5493001KJTIIGC8Y1R12"

func leiRecordJSON(name, jurisdiction string) string {
	return fmt.Sprintf(`{"data":{"attributes":{"lei":%q,"entity":{"legalName":{"name":%q},"jurisdiction":%q,"status":"ACTIVE"}}}}`,
		testLEI, name, jurisdiction)
}

func newTestClient(url string) *Client {
	return NewClient(&Config{BaseURL: url, Logger: log.New(io.Discard, "", 0)})
}

func TestLookupParsesRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/lei-records/"+testLEI {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, leiRecordJSON("Example Corp Ltd", "GB"))
	}))
	defer srv.Close()

	entity, err := newTestClient(srv.URL).Lookup(context.Background(), testLEI)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if entity.LegalName != "Example Corp Ltd" || entity.Jurisdiction != "GB" {
		t.Fatalf("unexpected entity: %+v", entity)
	}
}

func TestLookupRetriesOnceOn429(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, leiRecordJSON("Example Corp Ltd", "GB"))
	}))
	defer srv.Close()

	entity, err := newTestClient(srv.URL).Lookup(context.Background(), testLEI)
	if err != nil {
		t.Fatalf("Lookup after retry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected exactly one retry, saw %d calls", calls)
	}
	if entity.Jurisdiction != "GB" {
		t.Fatalf("unexpected entity: %+v", entity)
	}
}

func TestLookupGivesUpAfterSecond429(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Lookup(context.Background(), testLEI)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected exactly two calls, saw %d", calls)
	}
}

func TestLookupNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Lookup(context.Background(), testLEI)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEnrichRecoversLocally(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	name, jurisdiction := newTestClient(srv.URL).Enrich(context.Background(), testLEI, "Jane Smith")
	if name != "Jane Smith" {
		t.Fatalf("legal name must fall back to the personal name, got %q", name)
	}
	if jurisdiction != "Unknown" {
		t.Fatalf("jurisdiction must stay Unknown on failure, got %q", jurisdiction)
	}
}

func TestEnrichUsesRecordWhenAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, leiRecordJSON("Example Corp Ltd", "GB"))
	}))
	defer srv.Close()

	name, jurisdiction := newTestClient(srv.URL).Enrich(context.Background(), testLEI, "Jane Smith")
	if name != "Example Corp Ltd" || jurisdiction != "GB" {
		t.Fatalf("got (%q, %q)", name, jurisdiction)
	}
}

func TestEnrichWithoutLEI(t *testing.T) {
	name, jurisdiction := newTestClient("http://unused.invalid").Enrich(context.Background(), "", "Jane Smith")
	if name != "Jane Smith" || jurisdiction != "Unknown" {
		t.Fatalf("got (%q, %q)", name, jurisdiction)
	}
}
