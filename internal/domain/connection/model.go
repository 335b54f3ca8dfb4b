package connection

import "time"

type Status string

const (
	// StatusActive — the connection syncs normally.
	StatusActive Status = "active"
	// StatusError — a permanent aggregator failure or corrupt
	// credential; syncing stops until the user re-links.
	StatusError Status = "error"
)

// Connection represents one linked external institution: the encrypted
// long-lived credential, the sync cursor, and health state.
//
// SyncCursor is an opaque aggregator token; nil means no sync has run
// yet. It only ever advances together with a fully applied batch
// (sync.Repository.ApplyPage), never ahead of the data it protects.
type Connection struct {
	ID              int64  `json:"id"`
	UserID          int64  `json:"user_id"`
	ExternalItemID  string `json:"external_item_id"`
	InstitutionName string `json:"institution_name"`
	// EncryptedCredential is nonce||ciphertext. Plaintext never
	// appears in storage, logs, or API responses.
	EncryptedCredential []byte    `json:"-"`
	SyncCursor          *string   `json:"sync_cursor"`
	Status              Status    `json:"status"`
	ErrorDetail         string    `json:"error_detail,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// UnlinkResult reports what an unlink attempt achieved. When Revoked is
// false the connection row is retained in the error state so a later
// retry can still revoke the credential at the aggregator.
type UnlinkResult struct {
	Revoked            bool  `json:"revoked"`
	Removed            bool  `json:"removed"`
	TransactionsHidden int64 `json:"transactions_hidden"`
}
