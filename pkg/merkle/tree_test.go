package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

// fakeTxHashes builds n deterministic 32-byte transaction hashes.
func fakeTxHashes(n int) [][]byte {
	hashes := make([][]byte, n)
	for i := 0; i < n; i++ {
		sum := sha256.Sum256([]byte{byte(i)})
		hashes[i] = sum[:]
	}
	return hashes
}

func TestBuildBlockTreeRejectsBadInput(t *testing.T) {
	if _, err := BuildBlockTree(nil); err != ErrEmptyBlock {
		t.Fatalf("empty block: got %v, want ErrEmptyBlock", err)
	}
	if _, err := BuildBlockTree([][]byte{{0x01}}); err == nil {
		t.Fatal("expected an error for a short leaf hash")
	}
}

func TestSingleTxBlockRootIsTheTx(t *testing.T) {
	hashes := fakeTxHashes(1)
	tree, err := BuildBlockTree(hashes)
	if err != nil {
		t.Fatalf("BuildBlockTree: %v", err)
	}
	if tree.RootHex() != hex.EncodeToString(hashes[0]) {
		t.Fatal("single-tx block root must equal the tx hash")
	}
	path, err := tree.IndexedPath(0)
	if err != nil {
		t.Fatalf("IndexedPath: %v", err)
	}
	if len(path) != 0 {
		t.Fatalf("single-tx proof path must be empty, got %d entries", len(path))
	}
}

func TestIndexedPathValidatesForEveryTx(t *testing.T) {
	for _, txCount := range []int{2, 3, 4, 7, 8, 13} {
		hashes := fakeTxHashes(txCount)
		tree, err := BuildBlockTree(hashes)
		if err != nil {
			t.Fatalf("BuildBlockTree(%d): %v", txCount, err)
		}

		for i := 0; i < txCount; i++ {
			path, err := tree.IndexedPath(i)
			if err != nil {
				t.Fatalf("IndexedPath(%d of %d): %v", i, txCount, err)
			}
			receipt := ReceiptFromIndexedPath(hex.EncodeToString(hashes[i]), i, path, tree.RootHex(), 800000)
			if err := receipt.Validate(); err != nil {
				t.Fatalf("receipt for tx %d of %d did not validate: %v", i, txCount, err)
			}
		}
	}
}

func TestReceiptRejectsTamperedSibling(t *testing.T) {
	hashes := fakeTxHashes(8)
	tree, _ := BuildBlockTree(hashes)
	path, _ := tree.IndexedPath(3)

	path[1] = flipLeadingHexChar(path[1])

	receipt := ReceiptFromIndexedPath(hex.EncodeToString(hashes[3]), 3, path, tree.RootHex(), 800000)
	if err := receipt.Validate(); err == nil {
		t.Fatal("expected a tampered sibling to fail validation")
	}
}

func TestReceiptRejectsWrongIndex(t *testing.T) {
	hashes := fakeTxHashes(8)
	tree, _ := BuildBlockTree(hashes)
	path, _ := tree.IndexedPath(3)

	// Same path, wrong claimed position: sides flip, root diverges.
	receipt := ReceiptFromIndexedPath(hex.EncodeToString(hashes[3]), 2, path, tree.RootHex(), 800000)
	if err := receipt.Validate(); err == nil {
		t.Fatal("expected a wrong leaf index to fail validation")
	}
}

func TestReceiptRejectsMalformedHex(t *testing.T) {
	cases := []Receipt{
		{Start: "", Anchor: strings.Repeat("ab", 32)},
		{Start: strings.Repeat("ab", 32), Anchor: "abcd"},
		{Start: strings.Repeat("ab", 32), Anchor: strings.Repeat("ab", 32), Entries: []ReceiptEntry{{Hash: "zz"}}},
	}
	for i, r := range cases {
		if err := r.Validate(); err == nil {
			t.Fatalf("case %d: expected a structural validation error", i)
		}
	}
}

func TestReceiptJSONRoundTrip(t *testing.T) {
	hashes := fakeTxHashes(4)
	tree, _ := BuildBlockTree(hashes)
	path, _ := tree.IndexedPath(2)
	receipt := ReceiptFromIndexedPath(hex.EncodeToString(hashes[2]), 2, path, tree.RootHex(), 812345)

	raw, err := receipt.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	back, err := ReceiptFromJSON(raw)
	if err != nil {
		t.Fatalf("ReceiptFromJSON: %v", err)
	}
	if back.BlockHeight != 812345 || len(back.Entries) != len(receipt.Entries) {
		t.Fatalf("round-trip mismatch: %+v", back)
	}
	if err := back.Validate(); err != nil {
		t.Fatalf("round-tripped receipt did not validate: %v", err)
	}
}

func flipLeadingHexChar(s string) string {
	if s[0] == 'a' {
		return "b" + s[1:]
	}
	return "a" + s[1:]
}
