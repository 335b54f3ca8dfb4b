package sync

import "context"

type Repository interface {
	// ApplyPage persists one translated page and advances the
	// connection's cursor as a single durable step. This pairing is
	// the engine's central invariant: the cursor must not advance
	// unless the batch was fully applied, and the batch is not applied
	// unless the cursor advanced. Upserts converge on re-application
	// (keyed by external transaction id); tombstoning an already
	// hidden row is a no-op.
	ApplyPage(ctx context.Context, connectionID int64, batch Batch, nextCursor string) error
}
