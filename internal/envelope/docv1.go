package envelope

import (
	"crypto/rand"
	"encoding/json"
	"fmt"

	"github.com/leicca/vlei-audit-anchor/internal/xcrypto"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/nacl/secretbox"
)

// docVersion is the format tag carried in every sealed envelope.
const docVersion = "DocV1"

// DocV1 is the concrete Envelope: a random per-seal data key encrypts the
// plaintext under secretbox, and the data key itself is wrapped once per
// receiver under box (X25519 + XSalsa20-Poly1305), authenticated by the
// signer's private key. Opening with any one receiver's private key
// recovers the data key and then the plaintext.
//
// An iteration-count knob is a password-derivation concept that doesn't
// apply to this codec's asymmetric keys; DocV1 accepts no such parameter.
type DocV1 struct{}

type receiverWrap struct {
	ReceiverPub [32]byte `json:"receiverPub"`
	Nonce       [24]byte `json:"nonce"`
	WrappedKey  []byte   `json:"wrappedKey"`
}

type wireEnvelope struct {
	Version    string            `json:"version"`
	SignerPub  [32]byte          `json:"signerPub"`
	DataNonce  [24]byte          `json:"dataNonce"`
	Ciphertext []byte            `json:"ciphertext"`
	Receivers  []receiverWrap    `json:"receivers"`
	Filename   string            `json:"filename,omitempty"`
	MimeType   string            `json:"mimetype,omitempty"`
	Meta       map[string]string `json:"meta,omitempty"`
}

// Seal implements Envelope.
func (DocV1) Seal(plaintext []byte, signerKey [32]byte, receivers [][32]byte, opts Options) (*SealResult, error) {
	if len(receivers) == 0 {
		return nil, &MissingKeyError{Name: "receiver"}
	}

	var dataKey [32]byte
	if _, err := rand.Read(dataKey[:]); err != nil {
		return nil, fmt.Errorf("envelope: generate data key: %w", err)
	}

	var dataNonce [24]byte
	if _, err := rand.Read(dataNonce[:]); err != nil {
		return nil, fmt.Errorf("envelope: generate nonce: %w", err)
	}
	ciphertext := secretbox.Seal(nil, plaintext, &dataNonce, &dataKey)

	wraps := make([]receiverWrap, 0, len(receivers))
	for _, receiverPub := range receivers {
		var wrapNonce [24]byte
		if _, err := rand.Read(wrapNonce[:]); err != nil {
			return nil, fmt.Errorf("envelope: generate wrap nonce: %w", err)
		}
		wrapped := box.Seal(nil, dataKey[:], &wrapNonce, &receiverPub, &signerKey)
		wraps = append(wraps, receiverWrap{ReceiverPub: receiverPub, Nonce: wrapNonce, WrappedKey: wrapped})
	}

	env := wireEnvelope{
		Version:    docVersion,
		SignerPub:  derivePublic(signerKey),
		DataNonce:  dataNonce,
		Ciphertext: ciphertext,
		Receivers:  wraps,
		Filename:   opts.Filename,
		MimeType:   opts.MimeType,
		Meta:       opts.Meta,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("envelope: marshal: %w", err)
	}

	script, err := OpReturnScript(raw)
	if err != nil {
		return nil, err
	}

	return &SealResult{
		RawCiphertextHex:  xcrypto.EncodeHex(raw),
		OpReturnScriptHex: xcrypto.EncodeHex(script),
		Filename:          opts.Filename,
		MimeType:          opts.MimeType,
		Meta:              opts.Meta,
	}, nil
}

// Open implements Envelope.
func (DocV1) Open(rawCiphertext []byte, receiverKey [32]byte) (*OpenResult, error) {
	var env wireEnvelope
	if err := json.Unmarshal(rawCiphertext, &env); err != nil {
		return nil, &CorruptCiphertextError{Reason: err.Error()}
	}
	if env.Version != docVersion {
		return nil, &EnvelopeVersionMismatchError{Got: env.Version, Want: docVersion}
	}

	receiverPub := derivePublic(receiverKey)

	var dataKey *[32]byte
	for _, w := range env.Receivers {
		if w.ReceiverPub != receiverPub {
			continue
		}
		unwrapped, ok := box.Open(nil, w.WrappedKey, &w.Nonce, &env.SignerPub, &receiverKey)
		if !ok {
			return nil, &CorruptCiphertextError{Reason: "data key did not authenticate"}
		}
		var k [32]byte
		copy(k[:], unwrapped)
		dataKey = &k
		break
	}
	if dataKey == nil {
		return nil, &WrongReceiverError{}
	}

	plaintext, ok := secretbox.Open(nil, env.Ciphertext, &env.DataNonce, dataKey)
	if !ok {
		return nil, &CorruptCiphertextError{Reason: "payload did not authenticate"}
	}

	return &OpenResult{Plaintext: plaintext, Filename: env.Filename, MimeType: env.MimeType, Meta: env.Meta}, nil
}

// derivePublic computes the X25519 public key for a private scalar so Open
// can match a supplied private key against each receiver wrap's recorded
// public key without the caller needing to pass both.
func derivePublic(priv [32]byte) [32]byte {
	var pub [32]byte
	curve25519.ScalarBaseMult(&pub, &priv)
	return pub
}
