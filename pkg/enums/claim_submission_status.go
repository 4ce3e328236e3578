package enums

import "fmt"

// ClaimSubmissionStatus tracks an on-chain claim from optimistic submit to reconcile.
type ClaimSubmissionStatus string

const (
	ClaimSubmissionPending   ClaimSubmissionStatus = "pending"
	ClaimSubmissionConfirmed ClaimSubmissionStatus = "confirmed"
	ClaimSubmissionMismatch  ClaimSubmissionStatus = "mismatch"
	ClaimSubmissionExpired   ClaimSubmissionStatus = "expired"
)

var validClaimSubmissionStatuses = []ClaimSubmissionStatus{
	ClaimSubmissionPending,
	ClaimSubmissionConfirmed,
	ClaimSubmissionMismatch,
	ClaimSubmissionExpired,
}

// IsValid reports whether the value is a known submission status.
func (s ClaimSubmissionStatus) IsValid() bool {
	for _, candidate := range validClaimSubmissionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further reconciliation happens for the status.
func (s ClaimSubmissionStatus) IsTerminal() bool {
	return s != ClaimSubmissionPending
}

// ParseClaimSubmissionStatus converts raw input into ClaimSubmissionStatus.
func ParseClaimSubmissionStatus(value string) (ClaimSubmissionStatus, error) {
	for _, candidate := range validClaimSubmissionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid claim submission status %q", value)
}
