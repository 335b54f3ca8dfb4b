package connection

import "context"

type Repository interface {
	// Create persists the connection together with its encrypted
	// credential as one row: a connection never exists without its
	// credential. Returns ErrAlreadyLinked on a duplicate
	// (user_id, external_item_id).
	Create(ctx context.Context, conn *Connection) (int64, error)

	Get(ctx context.Context, connectionID int64) (*Connection, error)
	GetForUser(ctx context.Context, userID, connectionID int64) (*Connection, error)
	ListByUser(ctx context.Context, userID int64) ([]Connection, error)

	// ListActiveIDs feeds the periodic sync scheduler.
	ListActiveIDs(ctx context.Context) ([]int64, error)

	// SetStatus updates health state. An empty detail clears
	// error_detail.
	SetStatus(ctx context.Context, connectionID int64, status Status, detail string) error

	// Delete removes the connection row (and with it the encrypted
	// credential). Idempotent.
	Delete(ctx context.Context, connectionID int64) error
}
