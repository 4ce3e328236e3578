package distribution

import (
	"math"

	"github.com/google/uuid"

	"github.com/scoutledger/backend/internal/ownership"
	pkgerrors "github.com/scoutledger/backend/pkg/errors"
)

// PointsInput is one builder's week in the points regime. Holders are keyed by scout.
type PointsInput struct {
	Rank    int
	Pool    float64
	Supply  ownership.Balance
	Holders map[uuid.UUID]ownership.Balance
}

// PointsSplit holds floored point rewards.
type PointsSplit struct {
	BuilderReward float64
	Holders       map[uuid.UUID]float64
}

// Total is the builder reward plus every holder reward.
func (s PointsSplit) Total() float64 {
	total := s.BuilderReward
	for _, v := range s.Holders {
		total += v
	}
	return total
}

// SplitPoints divides a points pool in float64, flooring each recipient. Products
// are formed before the division so whole-number pools stay exact.
func SplitPoints(split PoolSplit, in PointsInput) (*PointsSplit, error) {
	if err := split.Validate(); err != nil {
		return nil, err
	}
	if err := validateRank(in.Rank); err != nil {
		return nil, err
	}
	if in.Pool < 0 || math.IsNaN(in.Pool) || math.IsInf(in.Pool, 0) {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid pool %v", in.Pool)
	}
	if err := validateHoldings(in.Supply, in.Holders); err != nil {
		return nil, err
	}

	defaultPct := float64(split.Default)
	starterPct := float64(split.starterPct(in.Supply))

	out := &PointsSplit{
		BuilderReward: math.Floor(in.Pool * float64(split.Builder) / 100),
		Holders:       make(map[uuid.UUID]float64, len(in.Holders)),
	}
	for scoutID, held := range in.Holders {
		var reward float64
		if in.Supply.Default > 0 {
			reward += float64(held.Default) * defaultPct * in.Pool / (100 * float64(in.Supply.Default))
		}
		if in.Supply.StarterPack > 0 {
			reward += float64(held.StarterPack) * starterPct * in.Pool / (100 * float64(in.Supply.StarterPack))
		}
		if reward = math.Floor(reward); reward > 0 {
			out.Holders[scoutID] = reward
		}
	}
	return out, nil
}
