package enums

import "fmt"

// BuilderEventType maps to the builder_event_type_enum enum in Postgres.
type BuilderEventType string

const (
	BuilderEventMergedPullRequest BuilderEventType = "merged_pull_request"
	BuilderEventGemsPayout        BuilderEventType = "gems_payout"
	BuilderEventNftPurchase       BuilderEventType = "nft_purchase"
	BuilderEventReferral          BuilderEventType = "referral"
)

var validBuilderEventTypes = []BuilderEventType{
	BuilderEventMergedPullRequest,
	BuilderEventGemsPayout,
	BuilderEventNftPurchase,
	BuilderEventReferral,
}

// IsValid reports whether the value matches the canonical builder event enum.
func (t BuilderEventType) IsValid() bool {
	for _, candidate := range validBuilderEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseBuilderEventType converts raw input into BuilderEventType.
func ParseBuilderEventType(value string) (BuilderEventType, error) {
	for _, candidate := range validBuilderEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid builder event type %q", value)
}
