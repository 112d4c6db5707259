package services

import (
	"time"
)

// ConflictSlack absorbs clock skew between distributed callers (mobile
// offline sync vs. web) when comparing version timestamps.
const ConflictSlack = 2000 * time.Millisecond

// CheckConflict rejects a write whose view of the resource is provably stale.
// A nil clientVersion means a legacy caller that opted out of the check.
// The boundary is inclusive: serverUpdatedAt == clientVersion + slack passes.
func CheckConflict(clientVersion *time.Time, serverUpdatedAt time.Time) error {
	if clientVersion == nil {
		return nil
	}
	if serverUpdatedAt.After(clientVersion.Add(ConflictSlack)) {
		cv := *clientVersion
		sv := serverUpdatedAt
		return &Error{
			Code:          CodeConflict,
			Message:       "resource was modified by someone else, please refresh and retry",
			ClientVersion: &cv,
			ServerVersion: &sv,
		}
	}
	return nil
}
