package ownership

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scoutledger/backend/pkg/db/models"
	"github.com/scoutledger/backend/pkg/enums"
	pkgerrors "github.com/scoutledger/backend/pkg/errors"
	"github.com/scoutledger/backend/pkg/isoweek"
)

// Event is one ownership ledger entry. The set of implementations is closed:
// Purchase, Transfer and Burn.
type Event interface {
	Meta() EventMeta
	sealed()
}

// EventMeta orders events and scopes them to an NFT variant.
type EventMeta struct {
	ID        uuid.UUID
	NftType   enums.BuilderNftType
	Week      isoweek.Week
	CreatedAt time.Time
}

// Purchase mints Amount tokens to To.
type Purchase struct {
	EventMeta
	To     string
	Amount int64
}

// Transfer moves Amount tokens between wallets.
type Transfer struct {
	EventMeta
	From   string
	To     string
	Amount int64
}

// Burn destroys Amount tokens held by From.
type Burn struct {
	EventMeta
	From   string
	Amount int64
}

func (e Purchase) Meta() EventMeta { return e.EventMeta }
func (e Transfer) Meta() EventMeta { return e.EventMeta }
func (e Burn) Meta() EventMeta     { return e.EventMeta }

func (Purchase) sealed() {}
func (Transfer) sealed() {}
func (Burn) sealed()     {}

// NormalizeAddress lowercases and trims a hex wallet address.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// FromRow converts a persisted purchase event into its variant.
func FromRow(row models.NftPurchaseEvent, nftType enums.BuilderNftType) (Event, error) {
	week, err := isoweek.Parse(row.Week)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDataIntegrity, err, "ownership event "+row.ID.String())
	}
	meta := EventMeta{ID: row.ID, NftType: nftType, Week: week, CreatedAt: row.CreatedAt}
	from := optionalAddress(row.FromAddress)
	to := optionalAddress(row.ToAddress)
	switch {
	case from == "" && to != "":
		return Purchase{EventMeta: meta, To: to, Amount: row.TokensPurchased}, nil
	case from != "" && to != "":
		return Transfer{EventMeta: meta, From: from, To: to, Amount: row.TokensPurchased}, nil
	case from != "" && to == "":
		return Burn{EventMeta: meta, From: from, Amount: row.TokensPurchased}, nil
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeDataIntegrity, "ownership event %s has neither sender nor recipient", row.ID)
}

func optionalAddress(addr *string) string {
	if addr == nil {
		return ""
	}
	return NormalizeAddress(*addr)
}
