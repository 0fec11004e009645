// params.go - Permutation parameters: round counts, constants, matrices and
// the process-wide cache. Parameter generation is deterministic in the state
// width, runs once per width, and the cached result is read-only afterwards.

package poseidon

import (
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Parameters bundles everything one permutation width needs. Instances are
// shared across goroutines and must not be mutated after generation.
type Parameters struct {
	Width         int
	FullRounds    int
	PartialRounds int

	// DomainTag occupies state slot 0 before absorption. It is 2^arity - 1,
	// so hashes of different arity can never collide.
	DomainTag fr.Element

	// RoundConstants is the raw schedule, (full+partial) * width elements,
	// as sampled from the LFSR. The engine does not consume it directly; it
	// is retained so the optimized schedule can be cross-checked against the
	// textbook one.
	RoundConstants []fr.Element

	// Compressed is the optimized schedule consumed by the engine:
	// width pre-round constants, post-S-box keys for the full rounds, and a
	// single key per partial round. Length is width*full + partial.
	Compressed []fr.Element

	MDS       matrix
	PreSparse matrix
	Sparse    []*sparseMatrix
}

// roundNumbers returns the (full, partial) round counts for alpha = 5 at the
// 128-bit security level over a ~254-bit field.
func roundNumbers(width int) (int, int, error) {
	switch width {
	case 3:
		return 8, 57, nil
	case 4:
		return 8, 56, nil
	case 5:
		return 8, 60, nil
	default:
		return 0, 0, fmt.Errorf("poseidon: unsupported width %d", width)
	}
}

// generateParameters derives the full parameter set for a width. Everything
// downstream of the LFSR seed is deterministic.
func generateParameters(width int) (*Parameters, error) {
	rf, rp, err := roundNumbers(width)
	if err != nil {
		return nil, err
	}

	g := newGrain(fr.Bits, width, rf, rp)

	p := &Parameters{
		Width:         width,
		FullRounds:    rf,
		PartialRounds: rp,
	}
	p.DomainTag.SetUint64(uint64(1)<<(width-1) - 1)

	// Round constants come first, by rejection sampling.
	p.RoundConstants = make([]fr.Element, (rf+rp)*width)
	for i := range p.RoundConstants {
		p.RoundConstants[i] = g.fieldElement()
	}

	// The MDS matrix consumes the remaining LFSR output, by reduction.
	p.MDS = buildMDS(g, width)
	p.PreSparse, p.Sparse = factorMDS(p.MDS, rp)

	p.Compressed, err = compressConstants(p)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// compressConstants folds the raw per-round constants into the optimized
// schedule. Full-round keys move behind the S-box by passing the next
// round's constants through the inverse MDS; the partial-round keys are
// accumulated backwards from the first post-partial full round so each
// partial round needs a single key on slot 0.
func compressConstants(p *Parameters) ([]fr.Element, error) {
	w := p.Width
	half := p.FullRounds / 2

	inv, ok := p.MDS.inverse()
	if !ok {
		return nil, fmt.Errorf("poseidon: MDS matrix is singular")
	}

	roundKeys := func(r int) []fr.Element {
		return p.RoundConstants[r*w : (r+1)*w]
	}

	res := make([]fr.Element, 0, w*p.FullRounds+p.PartialRounds)
	res = append(res, roundKeys(0)...)

	// First half of the full rounds, except the one bordering the partial
	// phase: post keys are the next round's constants, un-mixed.
	for r := 0; r < half-1; r++ {
		res = append(res, inv.rowMul(roundKeys(r+1))...)
	}

	// Work backwards through the partial phase. Each step peels the slot-0
	// component off as that partial round's key and folds the remainder into
	// the preceding round's constants.
	finalRound := half + p.PartialRounds
	acc := append([]fr.Element(nil), roundKeys(finalRound)...)
	partialKeys := make([]fr.Element, 0, p.PartialRounds)
	for k := 0; k < p.PartialRounds; k++ {
		inverted := inv.rowMul(acc)
		partialKeys = append(partialKeys, inverted[0])
		inverted[0].SetZero()
		prev := roundKeys(finalRound - k - 1)
		for i := 0; i < w; i++ {
			acc[i].Add(&prev[i], &inverted[i])
		}
	}
	res = append(res, inv.rowMul(acc)...)
	for i := len(partialKeys) - 1; i >= 0; i-- {
		res = append(res, partialKeys[i])
	}

	// Second half of the full rounds; the final round has no post keys.
	for r := 1; r < half; r++ {
		res = append(res, inv.rowMul(roundKeys(half+p.PartialRounds+r))...)
	}

	return res, nil
}

// ParamCache memoizes Parameters per width. Generation runs at most once per
// key; readers after that never take the generation path.
type ParamCache struct {
	mu      sync.Mutex
	byWidth map[int]*Parameters
}

func NewParamCache() *ParamCache {
	return &ParamCache{byWidth: make(map[int]*Parameters)}
}

// Get returns the cached parameters for a width, generating them on first
// use.
func (c *ParamCache) Get(width int) (*Parameters, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.byWidth[width]; ok {
		return p, nil
	}
	p, err := generateParameters(width)
	if err != nil {
		return nil, err
	}
	c.byWidth[width] = p
	return p, nil
}

// defaultCache backs the package-level hash facade.
var defaultCache = NewParamCache()

// Params fetches parameters for a width from the process-wide cache.
func Params(width int) (*Parameters, error) {
	return defaultCache.Get(width)
}

// Warm eagerly generates the parameter sets the protocol uses, so first-use
// latency does not land on a request path.
func Warm() error {
	for _, w := range []int{widthTwo, widthFour} {
		if _, err := Params(w); err != nil {
			return err
		}
	}
	return nil
}
