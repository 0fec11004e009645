// engine.go - The permutation engine. One round schedule, two evaluation
// modes: absorbed inputs fill slots 1..width-1 behind the domain tag, the
// optimized schedule runs, and the digest is slot 1 of the final state.

package poseidon

import (
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ErrFullBuffer is returned when a caller absorbs more than width-1 inputs
// before extracting output. This is a caller error; the engine never
// truncates silently.
var ErrFullBuffer = errors.New("poseidon: state buffer full")

// Engine holds one in-progress hash computation. It is single-use: absorb up
// to width-1 inputs, squeeze once, discard.
type Engine[E any] struct {
	ctx      Context[E]
	params   *Parameters
	state    []E
	absorbed int
}

func NewEngine[E any](ctx Context[E], params *Parameters) *Engine[E] {
	st := make([]E, params.Width)
	st[0] = ctx.Constant(params.DomainTag)
	for i := 1; i < params.Width; i++ {
		st[i] = ctx.Zero()
	}
	return &Engine[E]{ctx: ctx, params: params, state: st}
}

// Absorb appends one input to the state.
func (e *Engine[E]) Absorb(x E) error {
	if e.absorbed >= e.params.Width-1 {
		return ErrFullBuffer
	}
	e.absorbed++
	e.state[e.absorbed] = x
	return nil
}

// Squeeze runs the permutation and returns the digest slot.
func (e *Engine[E]) Squeeze() E {
	e.permute()
	return e.state[1]
}

// quintic computes x^5 as two squarings and a multiply.
func (e *Engine[E]) quintic(x E) E {
	x2 := e.ctx.Mul(x, x)
	x4 := e.ctx.Mul(x2, x2)
	return e.ctx.Mul(x4, x)
}

// permute applies the optimized round schedule. The compressed constant
// stream is consumed in order: one width-sized block before the first round,
// a post-S-box block per full round, one key per partial round, and nothing
// for the final round, whose key application was folded into the preceding
// S-box blocks during compression.
func (e *Engine[E]) permute() {
	p := e.params
	w := p.Width
	half := p.FullRounds / 2
	rc := p.Compressed
	k := 0

	for i := 0; i < w; i++ {
		e.state[i] = e.ctx.AddConstant(e.state[i], rc[k+i])
	}
	k += w

	// First half of the full rounds. The last of them mixes with the
	// pre-sparse matrix, handing the state to the partial phase in factored
	// form.
	for r := 0; r < half; r++ {
		for i := 0; i < w; i++ {
			e.state[i] = e.ctx.AddConstant(e.quintic(e.state[i]), rc[k+i])
		}
		k += w
		if r == half-1 {
			e.mixDense(p.PreSparse)
		} else {
			e.mixDense(p.MDS)
		}
	}

	// Partial rounds: S-box on slot 0 only, one key, sparse mixing.
	for r := 0; r < p.PartialRounds; r++ {
		e.state[0] = e.ctx.AddConstant(e.quintic(e.state[0]), rc[k])
		k++
		e.mixSparse(p.Sparse[r])
	}

	// Second half of the full rounds; the final round has no post keys.
	for r := 0; r < half; r++ {
		if r == half-1 {
			for i := 0; i < w; i++ {
				e.state[i] = e.quintic(e.state[i])
			}
		} else {
			for i := 0; i < w; i++ {
				e.state[i] = e.ctx.AddConstant(e.quintic(e.state[i]), rc[k+i])
			}
			k += w
		}
		e.mixDense(p.MDS)
	}
}

// mixDense replaces the state with state * m (row-vector convention).
func (e *Engine[E]) mixDense(m matrix) {
	w := e.params.Width
	out := make([]E, w)
	for j := 0; j < w; j++ {
		acc := e.ctx.MulConstant(e.state[0], m[0][j])
		for i := 1; i < w; i++ {
			acc = e.ctx.Add(acc, e.ctx.MulConstant(e.state[i], m[i][j]))
		}
		out[j] = acc
	}
	e.state = out
}

// mixSparse applies one sparse factor: slot 0 takes the wHat column, every
// other slot adds a multiple of slot 0.
func (e *Engine[E]) mixSparse(s *sparseMatrix) {
	w := e.params.Width
	out := make([]E, w)

	acc := e.ctx.MulConstant(e.state[0], s.wHat[0])
	for i := 1; i < w; i++ {
		acc = e.ctx.Add(acc, e.ctx.MulConstant(e.state[i], s.wHat[i]))
	}
	out[0] = acc

	for j := 1; j < w; j++ {
		out[j] = e.ctx.Add(e.state[j], e.ctx.MulConstant(e.state[0], s.v[j-1]))
	}
	e.state = out
}

// referencePermute evaluates the textbook schedule with the raw constants and
// dense mixing in every round. It exists to pin the optimized schedule: the
// two must agree on every input, which the tests check.
func referencePermute(p *Parameters, state []fr.Element) []fr.Element {
	w := p.Width
	half := p.FullRounds / 2
	total := p.FullRounds + p.PartialRounds

	st := append([]fr.Element(nil), state...)
	var t fr.Element
	for r := 0; r < total; r++ {
		for i := 0; i < w; i++ {
			st[i].Add(&st[i], &p.RoundConstants[r*w+i])
		}
		fullRound := r < half || r >= half+p.PartialRounds
		if fullRound {
			for i := 0; i < w; i++ {
				t.Square(&st[i])
				t.Square(&t)
				st[i].Mul(&st[i], &t)
			}
		} else {
			t.Square(&st[0])
			t.Square(&t)
			st[0].Mul(&st[0], &t)
		}
		st = p.MDS.rowMul(st)
	}
	return st
}
