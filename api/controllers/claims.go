package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/scoutledger/backend/api/responses"
	"github.com/scoutledger/backend/api/validators"
	"github.com/scoutledger/backend/internal/claims"
	"github.com/scoutledger/backend/pkg/db/models"
	"github.com/scoutledger/backend/pkg/logger"
)

type ProofService interface {
	GetProof(ctx context.Context, week, address string) (*claims.Proof, error)
}

type OnchainClaimer interface {
	SubmitOnchainClaim(ctx context.Context, in claims.Submission) (*models.ClaimSubmission, error)
}

type onchainClaimRequest struct {
	ScoutID string `json:"scoutId" validate:"required,uuid"`
	Week    string `json:"week" validate:"required,isoweek"`
	Wallet  string `json:"wallet" validate:"required,evmaddress"`
	TxHash  string `json:"txHash" validate:"required,txhash"`
}

type submissionResponse struct {
	ID        uuid.UUID `json:"id"`
	Status    string    `json:"status"`
	Week      string    `json:"week"`
	Wallet    string    `json:"wallet"`
	TxHash    string    `json:"txHash"`
	LeafIndex int       `json:"leafIndex"`
	Amount    string    `json:"amount"`
}

// ClaimProof serves the Merkle proof for one wallet in a published week.
func ClaimProof(svc ProofService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		week, err := validators.ParseWeekParam(r, "week")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		address, err := validators.PathParam(r, "address")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithWeek(r.Context(), week.String())

		proof, err := svc.GetProof(ctx, week.String(), address)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, proof)
	}
}

// ClaimOnchain records a claim transaction the wallet already sent.
func ClaimOnchain(svc OnchainClaimer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body onchainClaimRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		scoutID := uuid.MustParse(body.ScoutID)
		ctx := logg.WithWeek(logg.WithScoutID(r.Context(), body.ScoutID), body.Week)

		sub, err := svc.SubmitOnchainClaim(ctx, claims.Submission{
			ScoutID: scoutID,
			Week:    body.Week,
			Wallet:  body.Wallet,
			TxHash:  body.TxHash,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, submissionResponse{
			ID:        sub.ID,
			Status:    string(sub.Status),
			Week:      sub.Week,
			Wallet:    sub.WalletAddress,
			TxHash:    sub.TxHash,
			LeafIndex: sub.LeafIndex,
			Amount:    sub.Amount.String(),
		})
	}
}
