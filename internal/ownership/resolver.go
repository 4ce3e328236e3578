package ownership

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	pkgerrors "github.com/scoutledger/backend/pkg/errors"
	"github.com/scoutledger/backend/pkg/isoweek"
)

type eventSource interface {
	ListForBuilder(ctx context.Context, builderID uuid.UUID, season string) ([]Event, error)
}

// WalletDirectory maps wallets to the scout currently controlling them.
type WalletDirectory interface {
	ScoutsByWallet(ctx context.Context, addresses []string) (map[string]uuid.UUID, error)
}

// Holdings is the resolved ownership of one builder's series at a week.
type Holdings struct {
	BuilderID uuid.UUID
	Week      isoweek.Week
	Supply    Balance
	ByWallet  map[string]Balance
	ByScout   map[uuid.UUID]Balance
	Owners    map[string]uuid.UUID
	// Unowned lists wallets with a balance but no scout. They are paid on chain only.
	Unowned []string
}

// Resolver replays a builder's ledger into holdings. It keeps no state between calls.
type Resolver struct {
	events  eventSource
	wallets WalletDirectory
}

func NewResolver(events eventSource, wallets WalletDirectory) (*Resolver, error) {
	if events == nil {
		return nil, fmt.Errorf("ownership event source required")
	}
	if wallets == nil {
		return nil, fmt.Errorf("wallet directory required")
	}
	return &Resolver{events: events, wallets: wallets}, nil
}

// Resolve replays events up to and including week and aggregates the balances by
// wallet and by scout. Wallet ownership is looked up once per call.
func (r *Resolver) Resolve(ctx context.Context, builderID uuid.UUID, season string, week isoweek.Week) (*Holdings, error) {
	events, err := r.events.ListForBuilder(ctx, builderID, season)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ownership events")
	}
	ledger, err := Replay(events, week)
	if err != nil {
		return nil, fmt.Errorf("builder %s: %w", builderID, err)
	}

	byWallet := ledger.Wallets()
	addresses := make([]string, 0, len(byWallet))
	for addr := range byWallet {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)

	owners := map[string]uuid.UUID{}
	if len(addresses) > 0 {
		owners, err = r.wallets.ScoutsByWallet(ctx, addresses)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet owners")
		}
	}

	h := &Holdings{
		BuilderID: builderID,
		Week:      week,
		Supply:    ledger.Supply(),
		ByWallet:  byWallet,
		ByScout:   make(map[uuid.UUID]Balance),
		Owners:    owners,
	}
	for _, addr := range addresses {
		bal := byWallet[addr]
		scoutID, ok := owners[addr]
		if !ok {
			h.Unowned = append(h.Unowned, addr)
			continue
		}
		agg := h.ByScout[scoutID]
		agg.Default += bal.Default
		agg.StarterPack += bal.StarterPack
		h.ByScout[scoutID] = agg
	}
	return h, nil
}
