package core

import (
	"fmt"
	"strings"
)

// StatusPolicy decides whether a status transition is applied to a record.
type StatusPolicy string

const (
	// StatusPolicyMonotonic ignores transitions to a lower ranked status so a
	// late "enqueued" cannot overwrite "read".
	StatusPolicyMonotonic StatusPolicy = "monotonic"
	// StatusPolicyLastWriteWins applies every transition in arrival order.
	StatusPolicyLastWriteWins StatusPolicy = "last_write_wins"
)

var statusRanks = map[MessageStatus]int{
	StatusReceived:  0,
	StatusPending:   1,
	StatusEnqueued:  1,
	StatusSent:      2,
	StatusDelivered: 3,
	StatusRead:      4,
	StatusFailed:    5,
}

// StatusRank returns the ordering rank of a status, -1 when unknown.
func StatusRank(status MessageStatus) int {
	rank, ok := statusRanks[status]
	if !ok {
		return -1
	}
	return rank
}

func ParseStatusPolicy(raw string) (StatusPolicy, error) {
	switch StatusPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", StatusPolicyMonotonic:
		return StatusPolicyMonotonic, nil
	case StatusPolicyLastWriteWins:
		return StatusPolicyLastWriteWins, nil
	default:
		return "", fmt.Errorf("core: unsupported status policy %q", raw)
	}
}

// Allows reports whether next may replace current. Unknown statuses are
// always applied.
func (p StatusPolicy) Allows(current MessageStatus, next MessageStatus) bool {
	if p == StatusPolicyLastWriteWins || current == "" {
		return true
	}
	currentRank, nextRank := StatusRank(current), StatusRank(next)
	if currentRank < 0 || nextRank < 0 {
		return true
	}
	return nextRank >= currentRank
}
