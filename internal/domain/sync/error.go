package sync

import "errors"

var (
	// ErrSyncInProgress — another run holds this connection's lease.
	// Callers should treat it as a no-op, not a failure.
	ErrSyncInProgress = errors.New("sync already in progress for connection")

	// ErrCredentialCorrupt — the stored credential failed to decrypt.
	// Fatal for the connection; requires operator intervention.
	ErrCredentialCorrupt = errors.New("stored credential cannot be decrypted")
)
