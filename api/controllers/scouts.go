package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/scoutledger/backend/api/responses"
	"github.com/scoutledger/backend/api/validators"
	"github.com/scoutledger/backend/internal/claims"
	"github.com/scoutledger/backend/pkg/config"
	"github.com/scoutledger/backend/pkg/logger"
)

type BalanceService interface {
	Balance(ctx context.Context, scoutID uuid.UUID) (*claims.Balance, error)
}

type PointsClaimer interface {
	ClaimPoints(ctx context.Context, scoutID uuid.UUID, week string) (*claims.PointsClaim, error)
}

type balanceResponse struct {
	*claims.Balance
	UnclaimedTokensDisplay string `json:"unclaimedTokensDisplay"`
}

type pointsClaimRequest struct {
	Week string `json:"week" validate:"omitempty,isoweek"`
}

// ScoutBalance returns the cached balance with unclaimed points and tokens.
func ScoutBalance(svc BalanceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scoutID, err := validators.ParseUUIDParam(r, "scoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithScoutID(r.Context(), scoutID.String())

		balance, err := svc.Balance(ctx, scoutID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, balanceResponse{
			Balance:                balance,
			UnclaimedTokensDisplay: tokenDisplay(balance.UnclaimedTokens),
		})
	}
}

// ScoutClaimPoints claims unclaimed points receipts. An empty body claims every week.
func ScoutClaimPoints(svc PointsClaimer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scoutID, err := validators.ParseUUIDParam(r, "scoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithScoutID(r.Context(), scoutID.String())

		var body pointsClaimRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		claim, err := svc.ClaimPoints(ctx, scoutID, body.Week)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		logg.Info(logg.WithFields(ctx, map[string]any{
			"receipts": claim.Receipts,
			"points":   claim.Points,
		}), "points.claimed")
		responses.WriteSuccess(w, claim)
	}
}

// tokenDisplay renders base units as whole tokens.
func tokenDisplay(units string) string {
	amount, err := decimal.NewFromString(units)
	if err != nil {
		return units
	}
	return amount.Shift(-config.TokenDecimals).String()
}
