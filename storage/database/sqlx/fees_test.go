package sqlxrepos

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/campus/core/fees"
)

// The agent writes its audit entries row by row: the named-query binder takes
// a single struct per call, so each element must bind on its own.
func TestAgentRunInsertBindsPerRow(t *testing.T) {
	now := time.Date(2025, time.June, 25, 8, 0, 0, 0, time.UTC)
	runs := []fees.AgentRun{
		{ID: "r1", Agent: "Finance Agent", Status: fees.RunCompleted, Title: "Payment reminders",
			Details: "Nothing to notify: no account is overdue.", RanAt: now},
		{ID: "r2", Agent: "Finance Agent", Status: fees.RunFailed, Title: "Reconciliation pass failed",
			Details: "boom", RanAt: now},
	}

	for _, run := range runs {
		query, args, err := sqlx.Named(insertAgentRunQuery, run)
		if err != nil {
			t.Fatalf("Named(%s) failed: %v", run.ID, err)
		}
		if query == "" {
			t.Fatalf("Named(%s) returned an empty query", run.ID)
		}
		if len(args) != 6 {
			t.Errorf("Named(%s) bound %d args, want 6", run.ID, len(args))
		}
	}
}
