package rewards

import (
	"errors"

	pkgerrors "github.com/scoutledger/backend/pkg/errors"
)

// ErrNothingEarnable is returned when no ranked builder earned anything.
var ErrNothingEarnable = errors.New("sum of earnable rewards is zero")

// Allocation is one builder's reward for a week.
type Allocation[T any] struct {
	Rank       int
	Earnable   T
	Normalized T
}

// Normalize rescales earnable so the results sum to budget, truncating each value.
// The sum never exceeds budget and falls short by less than one unit per entry.
func Normalize[T any](backend Backend[T], budget T, earnable []T) ([]T, error) {
	total := backend.Zero()
	for _, v := range earnable {
		var err error
		if total, err = backend.Add(total, v); err != nil {
			return nil, err
		}
	}
	if backend.IsZero(total) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDataIntegrity, ErrNothingEarnable, "normalize")
	}
	out := make([]T, len(earnable))
	for i, v := range earnable {
		n, err := backend.MulDiv(v, budget, total)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// Allocate runs the curve over ranks and normalizes the result against budget.
func Allocate[T any](curve *Curve[T], budget T, ranks []int) ([]Allocation[T], error) {
	earnable := make([]T, len(ranks))
	for i, rank := range ranks {
		e, err := curve.Earnable(budget, rank)
		if err != nil {
			return nil, err
		}
		earnable[i] = e
	}
	normalized, err := Normalize(curve.Backend(), budget, earnable)
	if err != nil {
		return nil, err
	}
	out := make([]Allocation[T], len(ranks))
	for i := range ranks {
		out[i] = Allocation[T]{Rank: ranks[i], Earnable: earnable[i], Normalized: normalized[i]}
	}
	return out, nil
}
