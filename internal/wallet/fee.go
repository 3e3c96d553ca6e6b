package wallet

import (
	"fmt"
	"sort"

	"github.com/leicca/vlei-audit-anchor/internal/xcrypto"
)

// overheadBytes is the fixed non-input, non-output transaction overhead
// (version, locktime, input/output counts).
const overheadBytes = 10

// feeRatePerKB is the satoshi rate per 1024 bytes.
const feeRatePerKB = 50

// BaselineFeeSatoshis is the minimum an input must cover before selection
// even attempts the deterministic calculation.
const BaselineFeeSatoshis = 600

// FeeInput describes one transaction input for size estimation: its
// unlocking template id determines unlockLen.
type FeeInput struct {
	TemplateID string
}

// FeeOutput describes one transaction output for size estimation by its
// locking script length in bytes.
type FeeOutput struct {
	ScriptLen int
}

// EstimateSize computes the transaction size in bytes as:
//
//	overhead(10) + Σ_inputs(32+4+1+unlockLen(templateType)+4) + Σ_outputs(8+varint(scriptLen)+scriptLen)
func EstimateSize(templates *Registry, inputs []FeeInput, outputs []FeeOutput) (int, error) {
	size := overheadBytes
	for _, in := range inputs {
		tmpl, err := templates.Get(in.TemplateID)
		if err != nil {
			return 0, err
		}
		size += 32 + 4 + 1 + tmpl.EstimateUnlockLen() + 4
	}
	for _, out := range outputs {
		size += 8 + xcrypto.VarintSize(uint64(out.ScriptLen)) + out.ScriptLen
	}
	return size, nil
}

// CalculateFee returns the deterministic fee in satoshis for a
// transaction of the given size: ceil(size/1024 * 50).
func CalculateFee(sizeBytes int) int64 {
	numerator := int64(sizeBytes) * feeRatePerKB
	return (numerator + 1023) / 1024
}

// SelectionResult is the outcome of SelectLargest.
type SelectionResult struct {
	Selected UTXO
	Change   int64
}

// SelectLargest implements the single-UTXO-largest-first selection
// strategy: sort spendable outputs descending by satoshis, take the
// largest, and require it to cover at least the estimated fee. candidates
// must already be filtered to the "satoshis" basket. have is the sum of
// every candidate's satoshis, used by callers to build an
// InsufficientFunds error message.
func SelectLargest(candidates []UTXO, fee int64) (*SelectionResult, int64, error) {
	if len(candidates) == 0 {
		return nil, 0, fmt.Errorf("wallet: no spendable outputs in basket %q", BasketSatoshis)
	}

	sorted := make([]UTXO, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Satoshis > sorted[j].Satoshis })

	var have int64
	for _, u := range sorted {
		have += u.Satoshis
	}

	largest := sorted[0]
	if largest.Satoshis < fee {
		return nil, have, fmt.Errorf("wallet: largest UTXO %d sat does not cover fee %d sat", largest.Satoshis, fee)
	}

	return &SelectionResult{Selected: largest, Change: largest.Satoshis - fee}, have, nil
}
