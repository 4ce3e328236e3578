package distribution

import (
	"github.com/scoutledger/backend/internal/ownership"
	"github.com/scoutledger/backend/pkg/config"
	pkgerrors "github.com/scoutledger/backend/pkg/errors"
)

// PoolSplit is the whole-percentage division of a builder's pool.
type PoolSplit struct {
	Builder     int
	Default     int
	StarterPack int
}

// DefaultPoolSplit pays 20% to the builder, 70% to default holders and 10% to
// starter-pack holders.
func DefaultPoolSplit() PoolSplit {
	return PoolSplit{Builder: 20, Default: 70, StarterPack: 10}
}

// PoolSplitFromConfig reads the configured percentages.
func PoolSplitFromConfig(cfg config.RewardsConfig) PoolSplit {
	return PoolSplit{Builder: cfg.BuilderPoolPct, Default: cfg.DefaultPoolPct, StarterPack: cfg.StarterPackPoolPct}
}

// Validate requires non-negative percentages summing to exactly 100.
func (p PoolSplit) Validate() error {
	if p.Builder < 0 || p.Default < 0 || p.StarterPack < 0 {
		return pkgerrors.Newf(pkgerrors.CodeDataIntegrity, "negative pool percentage in %+v", p)
	}
	if sum := p.Builder + p.Default + p.StarterPack; sum != 100 {
		return pkgerrors.Newf(pkgerrors.CodeDataIntegrity, "pool percentages sum to %d, want 100", sum)
	}
	return nil
}

// starterPct is the starter-pack share actually paid. With no starter packs in
// circulation the share is dropped, not folded into the default pool.
func (p PoolSplit) starterPct(supply ownership.Balance) int {
	if supply.StarterPack == 0 {
		return 0
	}
	return p.StarterPack
}

func validateRank(rank int) error {
	if rank < 1 {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "rank %d must be >= 1", rank)
	}
	return nil
}

// validateHoldings rejects any holder, or the holders together, owning more than supply.
func validateHoldings[K comparable](supply ownership.Balance, holders map[K]ownership.Balance) error {
	if supply.Default < 0 || supply.StarterPack < 0 {
		return pkgerrors.Newf(pkgerrors.CodeDataIntegrity, "negative supply %+v", supply)
	}
	var total ownership.Balance
	for key, held := range holders {
		if held.Default < 0 || held.StarterPack < 0 {
			return pkgerrors.Newf(pkgerrors.CodeDataIntegrity, "holder %v has negative balance %+v", key, held)
		}
		if held.Default > supply.Default {
			return pkgerrors.Newf(pkgerrors.CodeDataIntegrity, "holder %v owns %d default nfts of %d supply", key, held.Default, supply.Default)
		}
		if held.StarterPack > supply.StarterPack {
			return pkgerrors.Newf(pkgerrors.CodeDataIntegrity, "holder %v owns %d starter packs of %d supply", key, held.StarterPack, supply.StarterPack)
		}
		total.Default += held.Default
		total.StarterPack += held.StarterPack
	}
	if total.Default > supply.Default || total.StarterPack > supply.StarterPack {
		return pkgerrors.Newf(pkgerrors.CodeDataIntegrity, "holders own %+v of %+v supply", total, supply)
	}
	return nil
}
