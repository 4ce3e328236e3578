package instance

import (
	"os"

	"github.com/scoutledger/backend/pkg/env"
)

// GetID returns the process instance identifier used in logs and lock owners.
func GetID() string {
	if id := env.First("SCOUTLEDGER_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
