package ownership

import (
	"sort"

	"github.com/google/uuid"

	"github.com/scoutledger/backend/pkg/enums"
	pkgerrors "github.com/scoutledger/backend/pkg/errors"
	"github.com/scoutledger/backend/pkg/isoweek"
)

// Balance counts tokens of each variant.
type Balance struct {
	Default     int64 `json:"default"`
	StarterPack int64 `json:"starterPack"`
}

func (b Balance) IsZero() bool {
	return b.Default == 0 && b.StarterPack == 0
}

func (b *Balance) add(nftType enums.BuilderNftType, delta int64) {
	if nftType == enums.BuilderNftTypeStarterPack {
		b.StarterPack += delta
		return
	}
	b.Default += delta
}

func (b Balance) of(nftType enums.BuilderNftType) int64 {
	if nftType == enums.BuilderNftTypeStarterPack {
		return b.StarterPack
	}
	return b.Default
}

// Ledger is the running per-wallet state of one builder's NFT series.
type Ledger struct {
	wallets map[string]Balance
	supply  Balance
}

func NewLedger() *Ledger {
	return &Ledger{wallets: make(map[string]Balance)}
}

// Apply folds one event into the ledger. A balance that would drop below zero is a
// corrupted ledger and leaves the state untouched.
func (l *Ledger) Apply(e Event) error {
	switch ev := e.(type) {
	case Purchase:
		if err := checkAmount(ev.ID, ev.Amount); err != nil {
			return err
		}
		l.credit(ev.To, ev.NftType, ev.Amount)
		l.supply.add(ev.NftType, ev.Amount)
	case Transfer:
		if err := checkAmount(ev.ID, ev.Amount); err != nil {
			return err
		}
		if err := l.debit(ev.ID, ev.From, ev.NftType, ev.Amount); err != nil {
			return err
		}
		l.credit(ev.To, ev.NftType, ev.Amount)
	case Burn:
		if err := checkAmount(ev.ID, ev.Amount); err != nil {
			return err
		}
		if err := l.debit(ev.ID, ev.From, ev.NftType, ev.Amount); err != nil {
			return err
		}
		l.supply.add(ev.NftType, -ev.Amount)
	default:
		return pkgerrors.Newf(pkgerrors.CodeDataIntegrity, "unknown ownership event %T", e)
	}
	return nil
}

func (l *Ledger) credit(wallet string, nftType enums.BuilderNftType, amount int64) {
	bal := l.wallets[wallet]
	bal.add(nftType, amount)
	l.wallets[wallet] = bal
}

func (l *Ledger) debit(eventID uuid.UUID, wallet string, nftType enums.BuilderNftType, amount int64) error {
	bal := l.wallets[wallet]
	if held := bal.of(nftType); held < amount {
		return pkgerrors.Newf(pkgerrors.CodeDataIntegrity,
			"event %s drives %s %s balance negative (%d - %d)", eventID, wallet, nftType, held, amount)
	}
	bal.add(nftType, -amount)
	if bal.IsZero() {
		delete(l.wallets, wallet)
	} else {
		l.wallets[wallet] = bal
	}
	return nil
}

func checkAmount(eventID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return pkgerrors.Newf(pkgerrors.CodeDataIntegrity, "event %s has non-positive amount %d", eventID, amount)
	}
	return nil
}

// ApplyAll applies events in the given order.
func (l *Ledger) ApplyAll(events []Event) error {
	for _, e := range events {
		if err := l.Apply(e); err != nil {
			return err
		}
	}
	return nil
}

// Supply is the circulating count per variant.
func (l *Ledger) Supply() Balance {
	return l.supply
}

// Wallets returns a copy of every non-empty wallet balance.
func (l *Ledger) Wallets() map[string]Balance {
	out := make(map[string]Balance, len(l.wallets))
	for k, v := range l.wallets {
		out[k] = v
	}
	return out
}

// Chronological filters events to those at or before upTo and orders them by
// (week, createdAt, id).
func Chronological(events []Event, upTo isoweek.Week) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if !e.Meta().Week.After(upTo) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Meta(), out[j].Meta()
		if a.Week != b.Week {
			return a.Week.Before(b.Week)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return out
}

// Replay builds a fresh ledger from events up to and including week.
func Replay(events []Event, week isoweek.Week) (*Ledger, error) {
	l := NewLedger()
	if err := l.ApplyAll(Chronological(events, week)); err != nil {
		return nil, err
	}
	return l, nil
}
