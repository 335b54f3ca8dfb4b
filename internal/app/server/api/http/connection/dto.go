package connection

import (
	"bankfeed/internal/domain/connection"
	syncdomain "bankfeed/internal/domain/sync"
)

type listOutput struct {
	Body []connection.Connection
}

type syncInput struct {
	ID   int64 `path:"id" doc:"Connection ID"`
	Body SyncRequest
}

type SyncRequest struct {
	// Cursor overrides the stored cursor for this run; "" forces a
	// full re-sync.
	Cursor *string `json:"cursor,omitempty" doc:"Cursor override; empty string forces a full re-sync"`
}

type syncOutput struct {
	Body SyncResponse
}

type SyncResponse struct {
	Result syncdomain.Result `json:"result"`
	Status string            `json:"status"`
}

type unlinkInput struct {
	ID int64 `path:"id" doc:"Connection ID"`
}

type unlinkOutput struct {
	Body UnlinkResponse
}

type UnlinkResponse struct {
	Result connection.UnlinkResult `json:"result"`
	Status string                  `json:"status"`
}
