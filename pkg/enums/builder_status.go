package enums

import "fmt"

// BuilderStatus maps to the builder_status_enum enum in Postgres. A scout without a
// status has never applied as a builder.
type BuilderStatus string

const (
	BuilderStatusApplied  BuilderStatus = "applied"
	BuilderStatusApproved BuilderStatus = "approved"
	BuilderStatusRejected BuilderStatus = "rejected"
	BuilderStatusBanned   BuilderStatus = "banned"
)

var validBuilderStatuses = []BuilderStatus{
	BuilderStatusApplied,
	BuilderStatusApproved,
	BuilderStatusRejected,
	BuilderStatusBanned,
}

func (s BuilderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known builder status.
func (s BuilderStatus) IsValid() bool {
	for _, candidate := range validBuilderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseBuilderStatus converts raw input into BuilderStatus.
func ParseBuilderStatus(value string) (BuilderStatus, error) {
	for _, candidate := range validBuilderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid builder status %q", value)
}
