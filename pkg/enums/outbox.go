package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateWeeklyClaim     OutboxAggregateType = "weekly_claim"
	AggregateBuilder         OutboxAggregateType = "builder"
	AggregateScout           OutboxAggregateType = "scout"
	AggregateClaimSubmission OutboxAggregateType = "claim_submission"
	AggregateSeasonWeek      OutboxAggregateType = "season_week"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateWeeklyClaim,
	AggregateBuilder,
	AggregateScout,
	AggregateClaimSubmission,
	AggregateSeasonWeek,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventWeeklyClaimPublished        OutboxEventType = "weekly_claim_published"
	EventWeeklyRewardsDistributed    OutboxEventType = "weekly_rewards_distributed"
	EventWeeklyPayoutBlocked         OutboxEventType = "weekly_payout_blocked"
	EventScoutMerged                 OutboxEventType = "scout_merged"
	EventClaimConfirmed              OutboxEventType = "claim_confirmed"
	EventClaimReconciliationMismatch OutboxEventType = "claim_reconciliation_mismatch"
	EventClaimConfirmationExpired    OutboxEventType = "claim_confirmation_expired"
)

var validOutboxEventTypes = []OutboxEventType{
	EventWeeklyClaimPublished,
	EventWeeklyRewardsDistributed,
	EventWeeklyPayoutBlocked,
	EventScoutMerged,
	EventClaimConfirmed,
	EventClaimReconciliationMismatch,
	EventClaimConfirmationExpired,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason maps to outbox_dlq_error_reason_enum.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	switch r {
	case OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable:
		return true
	}
	return false
}
