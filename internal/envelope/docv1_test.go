package envelope

import (
	"bytes"
	"crypto/rand"
	"testing"

	"golang.org/x/crypto/nacl/box"
)

func genKeyPair(t *testing.T) (pub, priv [32]byte) {
	t.Helper()
	p, s, err := box.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return *p, *s
}

func TestSealOpenRoundTripAllReceivers(t *testing.T) {
	signerPub, signerPriv := genKeyPair(t)
	_ = signerPub
	walletPub, walletPriv := genKeyPair(t)
	auditPub, auditPriv := genKeyPair(t)

	plaintext := []byte(`{"version":"1.0.0","metadata":{"recordId":"rec-1"}}`)

	var env DocV1
	sealed, err := env.Seal(plaintext, signerPriv, [][32]byte{walletPub, auditPub}, Options{Filename: "capsule.json", MimeType: "application/json"})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if sealed.RawCiphertextHex == "" {
		t.Fatal("expected non-empty raw ciphertext hex")
	}
	if sealed.OpReturnScriptHex == sealed.RawCiphertextHex {
		t.Fatal("OP_RETURN script hex must differ from raw ciphertext hex (it wraps it)")
	}

	rawCiphertext := mustDecodeHex(t, sealed.RawCiphertextHex)

	for _, priv := range [][32]byte{walletPriv, auditPriv} {
		opened, err := env.Open(rawCiphertext, priv)
		if err != nil {
			t.Fatalf("Open as a valid receiver: %v", err)
		}
		if !bytes.Equal(opened.Plaintext, plaintext) {
			t.Fatalf("plaintext mismatch: got %q", opened.Plaintext)
		}
		if opened.Filename != "capsule.json" {
			t.Fatalf("unexpected filename: %s", opened.Filename)
		}
	}
}

func TestOpenWrongReceiverFails(t *testing.T) {
	_, signerPriv := genKeyPair(t)
	walletPub, _ := genKeyPair(t)
	_, strangerPriv := genKeyPair(t)

	var env DocV1
	sealed, err := env.Seal([]byte("secret"), signerPriv, [][32]byte{walletPub}, Options{})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	rawCiphertext := mustDecodeHex(t, sealed.RawCiphertextHex)

	_, err = env.Open(rawCiphertext, strangerPriv)
	if err == nil {
		t.Fatal("expected an error opening with a key that is not a receiver")
	}
	if _, ok := err.(*WrongReceiverError); !ok {
		t.Fatalf("expected *WrongReceiverError, got %T: %v", err, err)
	}
}

func TestOpenCorruptCiphertext(t *testing.T) {
	var env DocV1
	_, priv := genKeyPair(t)
	_, err := env.Open([]byte("not json at all"), priv)
	if _, ok := err.(*CorruptCiphertextError); !ok {
		t.Fatalf("expected *CorruptCiphertextError, got %T: %v", err, err)
	}
}

func TestOpReturnScriptStructure(t *testing.T) {
	data := []byte("hello world")
	script, err := OpReturnScript(data)
	if err != nil {
		t.Fatalf("OpReturnScript: %v", err)
	}
	if script[0] != opFalse || script[1] != opReturn {
		t.Fatalf("expected OP_FALSE OP_RETURN prefix, got % x", script[:2])
	}
	if int(script[2]) != len(data) {
		t.Fatalf("expected direct push length byte %d, got %d", len(data), script[2])
	}
	if !bytes.Equal(script[3:], data) {
		t.Fatal("expected pushed data to follow the length byte")
	}
}

func mustDecodeHex(t *testing.T, s string) []byte {
	t.Helper()
	b := make([]byte, len(s)/2)
	for i := 0; i < len(b); i++ {
		var hi, lo byte
		hi = hexNibble(t, s[i*2])
		lo = hexNibble(t, s[i*2+1])
		b[i] = hi<<4 | lo
	}
	return b
}

func hexNibble(t *testing.T, c byte) byte {
	t.Helper()
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		t.Fatalf("invalid hex nibble %q", c)
		return 0
	}
}
