package sync

import "bankfeed/internal/domain/ledger"

// Options tunes a single engine run.
type Options struct {
	// CursorOverride replaces the stored cursor for this run. An empty
	// string forces a full re-sync from the beginning of the feed.
	CursorOverride *string
}

// Result reports what one engine run applied. HasMore is true when the
// aggregator had further pages past the per-run page cap; the next
// scheduled run picks them up.
type Result struct {
	Added    int  `json:"added"`
	Modified int  `json:"modified"`
	Removed  int  `json:"removed"`
	Skipped  int  `json:"skipped,omitempty"`
	HasMore  bool `json:"has_more"`
}

// Batch is one page of changes translated into the local model:
// idempotent upserts keyed by external transaction id, plus tombstones.
type Batch struct {
	Upserts    []ledger.Transaction
	Tombstones []string
}
