package processor

import "github.com/heartmarshall/zengin-sync/internal/domain"

// RunResult describes what one detection run did.
type RunResult struct {
	DiffID    string             `json:"diff_id,omitempty"`
	Summary   domain.DiffSummary `json:"summary"`
	Overflow  bool               `json:"overflow,omitempty"`
	NoChanges bool               `json:"no_changes,omitempty"`
	// Skipped is set when a scheduled run found a fresh pending record.
	Skipped bool `json:"skipped,omitempty"`
	// Notified is false when the record was stored but the message failed.
	Notified bool `json:"notified"`
}
