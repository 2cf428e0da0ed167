package notify

import "time"

// Provider is the notification contract for sync lifecycle events.
// Implementations other than Slack (email, PagerDuty) slot in here, and
// tests substitute a recorder.
type Provider interface {
	// SyncStarted fires when a run begins.
	SyncStarted(runID, source, destination string, tableCount int) error

	// SyncCompleted fires when every table synced and verified cleanly.
	SyncCompleted(runID string, startTime time.Time, duration time.Duration, tableCount int, rowCount int64) error

	// SyncCompletedWithIssues fires when the run finished but some tables
	// failed or verified with count mismatches.
	SyncCompletedWithIssues(runID string, duration time.Duration, succeeded, mismatched, failed int, rowCount int64, issues []string) error

	// SyncFailed fires when the run aborted.
	SyncFailed(runID string, err error, duration time.Duration) error
}

var _ Provider = (*Notifier)(nil)
