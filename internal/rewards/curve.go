package rewards

import (
	"math/big"
	"strconv"

	pkgerrors "github.com/scoutledger/backend/pkg/errors"
)

// DefaultDecay is the per-rank geometric decay rate.
const DefaultDecay = 0.03

// Curve turns a leaderboard rank into its unnormalized share of a weekly budget:
// budget * ((1-d)^(r-1) - (1-d)^r), which simplifies to budget * d * (1-d)^(r-1).
type Curve[T any] struct {
	backend Backend[T]
	decay   *big.Rat
	keep    *big.Rat
}

// NewCurve builds a curve with the given decay. The rate is taken from its shortest
// decimal form so 0.03 is exactly 3/100.
func NewCurve[T any](backend Backend[T], decay float64) (*Curve[T], error) {
	if decay <= 0 || decay >= 1 {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "decay %v must be in (0,1)", decay)
	}
	d, ok := new(big.Rat).SetString(strconv.FormatFloat(decay, 'f', -1, 64))
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "decay %v is not representable", decay)
	}
	keep := new(big.Rat).Sub(big.NewRat(1, 1), d)
	return &Curve[T]{backend: backend, decay: d, keep: keep}, nil
}

func (c *Curve[T]) Backend() Backend[T] { return c.backend }

// Weight returns the exact fraction of the budget a rank earns before normalization.
func (c *Curve[T]) Weight(rank int) (*big.Rat, error) {
	if rank < 1 {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "rank %d must be >= 1", rank)
	}
	num := new(big.Int).Exp(c.keep.Num(), big.NewInt(int64(rank-1)), nil)
	den := new(big.Int).Exp(c.keep.Denom(), big.NewInt(int64(rank-1)), nil)
	w := new(big.Rat).SetFrac(num, den)
	return w.Mul(w, c.decay), nil
}

// Earnable returns budget scaled by the rank weight.
func (c *Curve[T]) Earnable(budget T, rank int) (T, error) {
	w, err := c.Weight(rank)
	if err != nil {
		var zero T
		return zero, err
	}
	return c.backend.Scale(budget, w)
}
