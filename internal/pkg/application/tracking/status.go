package tracking

import (
	"time"

	"github.com/varasto-io/rfid-tracking/pkg/types"
)

const (
	activeWindow = 15 * time.Minute
	idleWindow   = 2 * time.Hour
)

// ComputeStatus classifies a tag's liveness from the elapsed time
// since its last detection. Boundary values fall into the lower
// classification: exactly 15 minutes is still active, exactly two
// hours is still idle.
func ComputeStatus(lastSeen, now time.Time) string {
	elapsed := now.Sub(lastSeen)

	if elapsed <= activeWindow {
		return types.StatusActive
	}
	if elapsed <= idleWindow {
		return types.StatusIdle
	}
	return types.StatusMissing
}
