package rewards

import (
	"math"
	"math/big"

	"github.com/holiman/uint256"

	pkgerrors "github.com/scoutledger/backend/pkg/errors"
)

// Backend is the numeric strategy the curve and normalizer run on. Points use
// float64 with floor truncation; tokens use 18-decimal base units in uint256.
type Backend[T any] interface {
	Name() string
	Zero() T
	IsZero(v T) bool
	// Scale returns v*ratio.
	Scale(v T, ratio *big.Rat) (T, error)
	Add(a, b T) (T, error)
	// MulDiv returns floor(v*num/den) with the product computed before division.
	MulDiv(v, num, den T) (T, error)
	Cmp(a, b T) int
	Float(v T) float64
}

// Points is the legacy floating-point regime.
type Points struct{}

func (Points) Name() string { return "points" }

func (Points) Zero() float64 { return 0 }

func (Points) IsZero(v float64) bool { return v == 0 }

func (Points) Scale(v float64, ratio *big.Rat) (float64, error) {
	r, _ := ratio.Float64()
	return v * r, nil
}

func (Points) Add(a, b float64) (float64, error) { return a + b, nil }

func (Points) MulDiv(v, num, den float64) (float64, error) {
	if den == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeDataIntegrity, "division by zero")
	}
	return math.Floor(v * num / den), nil
}

func (Points) Cmp(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (Points) Float(v float64) float64 { return v }

// Tokens is the fixed-point regime for on-chain amounts.
type Tokens struct{}

func (Tokens) Name() string { return "tokens" }

func (Tokens) Zero() *uint256.Int { return new(uint256.Int) }

func (Tokens) IsZero(v *uint256.Int) bool { return v == nil || v.IsZero() }

func (Tokens) Scale(v *uint256.Int, ratio *big.Rat) (*uint256.Int, error) {
	if ratio.Sign() < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDataIntegrity, "negative scale ratio")
	}
	scaled := new(big.Int).Mul(v.ToBig(), ratio.Num())
	scaled.Quo(scaled, ratio.Denom())
	out, overflow := uint256.FromBig(scaled)
	if overflow {
		return nil, pkgerrors.New(pkgerrors.CodeDataIntegrity, "token amount overflows 256 bits")
	}
	return out, nil
}

func (Tokens) Add(a, b *uint256.Int) (*uint256.Int, error) {
	out, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, pkgerrors.New(pkgerrors.CodeDataIntegrity, "token sum overflows 256 bits")
	}
	return out, nil
}

func (Tokens) MulDiv(v, num, den *uint256.Int) (*uint256.Int, error) {
	if den.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeDataIntegrity, "division by zero")
	}
	out, overflow := new(uint256.Int).MulDivOverflow(v, num, den)
	if overflow {
		return nil, pkgerrors.New(pkgerrors.CodeDataIntegrity, "token amount overflows 256 bits")
	}
	return out, nil
}

func (Tokens) Cmp(a, b *uint256.Int) int { return a.Cmp(b) }

// Float reports v in whole tokens. Only for metrics and logs.
func (Tokens) Float(v *uint256.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(v.ToBig()), big.NewFloat(1e18)).Float64()
	return f
}
