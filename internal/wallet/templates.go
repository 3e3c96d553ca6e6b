package wallet

import (
	"fmt"
	"sync"
)

// dummyUnlockingKey is a fixed, non-random key exposed for size
// estimation. The built-in templates do not sign with it: they return
// fixed lengths, so estimated sizes are reproducible across runs.
var dummyUnlockingKey = func() [32]byte {
	var k [32]byte
	k[31] = 0x01
	return k
}()

// UnlockingTemplate estimates the byte length an input's unlocking script
// will occupy once signed, keyed by a template id. Each built-in template
// returns a fixed worst-case length without signing anything, so fee
// calculation never depends on real key material or randomness.
type UnlockingTemplate interface {
	// ID is the template's registry key ("p2pkh", "bsv21", ...).
	ID() string
	// EstimateUnlockLen returns the unlocking script length in bytes; the
	// result is the same on every call.
	EstimateUnlockLen() int
}

// p2pkhTemplate estimates a standard pay-to-pubkey-hash unlock: a 71-73
// byte DER signature push plus a 33-byte compressed pubkey push. Fee
// estimation uses the worst-case 73-byte signature so it never
// under-estimates.
type p2pkhTemplate struct{}

func (p2pkhTemplate) ID() string { return "p2pkh" }

func (p2pkhTemplate) EstimateUnlockLen() int {
	const sigPush = 1 + 73 // push-length byte + DER sig + sighash byte (worst case)
	const pubkeyPush = 1 + 33
	return sigPush + pubkeyPush
}

// bsv21Template estimates the unlock for a BSV-21 token-aware P2PKH
// input: the same signature+pubkey pair plus the inline token transfer
// preimage the BSV-21 protocol appends to the unlocking script.
type bsv21Template struct{}

func (bsv21Template) ID() string { return "bsv21" }

func (bsv21Template) EstimateUnlockLen() int {
	const p2pkhUnlock = 1 + 73 + 1 + 33
	const tokenPreimage = 52 // inline BSV-21 transfer instruction
	return p2pkhUnlock + tokenPreimage
}

// Registry holds the unlocking templates fee estimation can look up,
// keyed by string id under a mutex.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]UnlockingTemplate
}

// NewRegistry builds a Registry pre-populated with the p2pkh and bsv21
// templates.
func NewRegistry() *Registry {
	r := &Registry{templates: make(map[string]UnlockingTemplate)}
	r.mustRegister(p2pkhTemplate{})
	r.mustRegister(bsv21Template{})
	return r
}

func (r *Registry) mustRegister(t UnlockingTemplate) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Register adds a template under its own id, failing if one is already
// registered for that id.
func (r *Registry) Register(t UnlockingTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.templates[t.ID()]; exists {
		return fmt.Errorf("wallet: unlocking template %q already registered", t.ID())
	}
	r.templates[t.ID()] = t
	return nil
}

// Get looks up a template by id.
func (r *Registry) Get(id string) (UnlockingTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("wallet: no unlocking template registered for id %q", id)
	}
	return t, nil
}

// DummyUnlockingKey returns the fixed dummy key; the built-in templates
// do not use it.
func DummyUnlockingKey() [32]byte { return dummyUnlockingKey }
