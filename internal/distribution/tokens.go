package distribution

import (
	"github.com/holiman/uint256"

	"github.com/scoutledger/backend/internal/ownership"
	pkgerrors "github.com/scoutledger/backend/pkg/errors"
)

// TokensInput is one builder's week in the token regime. Amounts are 18-decimal base
// units and holders are keyed by wallet address.
type TokensInput struct {
	Rank    int
	Pool    *uint256.Int
	Supply  ownership.Balance
	Holders map[string]ownership.Balance
}

// TokensSplit holds truncated base-unit rewards.
type TokensSplit struct {
	BuilderReward *uint256.Int
	Holders       map[string]*uint256.Int
}

// Total is the builder reward plus every holder reward.
func (s TokensSplit) Total() *uint256.Int {
	total := new(uint256.Int).Set(s.BuilderReward)
	for _, v := range s.Holders {
		total.Add(total, v)
	}
	return total
}

var hundred = uint256.NewInt(100)

// SplitTokens divides a token pool with integer arithmetic. Every term multiplies
// before it divides: pool*pct*owned / (100*supply).
func SplitTokens(split PoolSplit, in TokensInput) (*TokensSplit, error) {
	if err := split.Validate(); err != nil {
		return nil, err
	}
	if err := validateRank(in.Rank); err != nil {
		return nil, err
	}
	if in.Pool == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pool required")
	}
	if err := validateHoldings(in.Supply, in.Holders); err != nil {
		return nil, err
	}

	builder, err := mulDiv(in.Pool, uint256.NewInt(uint64(split.Builder)), hundred)
	if err != nil {
		return nil, err
	}
	out := &TokensSplit{BuilderReward: builder, Holders: make(map[string]*uint256.Int, len(in.Holders))}

	starterPct := split.starterPct(in.Supply)
	for wallet, held := range in.Holders {
		reward := new(uint256.Int)
		if in.Supply.Default > 0 && held.Default > 0 {
			share, err := holderShare(in.Pool, split.Default, held.Default, in.Supply.Default)
			if err != nil {
				return nil, err
			}
			reward.Add(reward, share)
		}
		if starterPct > 0 && held.StarterPack > 0 {
			share, err := holderShare(in.Pool, starterPct, held.StarterPack, in.Supply.StarterPack)
			if err != nil {
				return nil, err
			}
			reward.Add(reward, share)
		}
		if !reward.IsZero() {
			out.Holders[wallet] = reward
		}
	}
	return out, nil
}

func holderShare(pool *uint256.Int, pct int, owned, supply int64) (*uint256.Int, error) {
	num := new(uint256.Int).Mul(uint256.NewInt(uint64(pct)), uint256.NewInt(uint64(owned)))
	den := new(uint256.Int).Mul(hundred, uint256.NewInt(uint64(supply)))
	return mulDiv(pool, num, den)
}

func mulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	out, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, pkgerrors.New(pkgerrors.CodeDataIntegrity, "token reward overflows 256 bits")
	}
	return out, nil
}
