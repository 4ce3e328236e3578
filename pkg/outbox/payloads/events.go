package payloads

import (
	"time"

	"github.com/google/uuid"
)

// WeeklyClaimPublishedEvent announces an immutable Merkle root for a week.
type WeeklyClaimPublishedEvent struct {
	ClaimID        uuid.UUID `json:"claim_id"`
	Season         string    `json:"season"`
	Week           string    `json:"week"`
	MerkleRoot     string    `json:"merkle_root"`
	TotalClaimable string    `json:"total_claimable"`
	LeafCount      int       `json:"leaf_count"`
}

// WeeklyRewardsDistributedEvent summarizes one successful weekly payout run.
type WeeklyRewardsDistributedEvent struct {
	Season           string `json:"season"`
	Week             string `json:"week"`
	Mode             string `json:"mode"`
	Builders         int    `json:"builders"`
	Receipts         int    `json:"receipts"`
	WeeklyBudget     string `json:"weekly_budget"`
	TotalDistributed string `json:"total_distributed"`
}

// WeeklyPayoutBlockedEvent is an operator alert: nothing was paid for the week.
type WeeklyPayoutBlockedEvent struct {
	Season    string     `json:"season"`
	Week      string     `json:"week"`
	Mode      string     `json:"mode"`
	BuilderID *uuid.UUID `json:"builder_id,omitempty"`
	Code      string     `json:"code"`
	Reason    string     `json:"reason"`
}

// ScoutMergedEvent records which rows moved between identities.
type ScoutMergedEvent struct {
	MergeEventID  uuid.UUID        `json:"merge_event_id"`
	MergedFromID  uuid.UUID        `json:"merged_from_id"`
	MergedToID    uuid.UUID        `json:"merged_to_id"`
	MergedRecords map[string]int64 `json:"merged_records"`
}

// ClaimConfirmedEvent is emitted once a claim transaction is observed on chain.
type ClaimConfirmedEvent struct {
	SubmissionID  uuid.UUID `json:"submission_id"`
	ScoutID       uuid.UUID `json:"scout_id"`
	WalletAddress string    `json:"wallet_address"`
	Week          string    `json:"week"`
	TxHash        string    `json:"tx_hash"`
	Amount        string    `json:"amount"`
	BlockNumber   uint64    `json:"block_number"`
}

// ClaimReconciliationMismatchEvent flags a receipt that disagrees with the local record.
type ClaimReconciliationMismatchEvent struct {
	SubmissionID  uuid.UUID `json:"submission_id"`
	ScoutID       uuid.UUID `json:"scout_id"`
	WalletAddress string    `json:"wallet_address"`
	Week          string    `json:"week"`
	TxHash        string    `json:"tx_hash"`
	Expected      string    `json:"expected"`
	Observed      string    `json:"observed,omitempty"`
	Reason        string    `json:"reason"`
}

// ClaimConfirmationExpiredEvent flags a submission that never confirmed.
type ClaimConfirmationExpiredEvent struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	ScoutID      uuid.UUID `json:"scout_id"`
	Week         string    `json:"week"`
	TxHash       string    `json:"tx_hash"`
	Attempts     int       `json:"attempts"`
	SubmittedAt  time.Time `json:"submitted_at"`
}
