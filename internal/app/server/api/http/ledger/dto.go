package ledger

import "bankfeed/internal/domain/ledger"

type accountsOutput struct {
	Body []ledger.Account
}

type transactionsInput struct {
	AccountID     int64 `path:"id" doc:"Account ID"`
	IncludeHidden bool  `query:"include_hidden" doc:"Include tombstoned transactions"`
}

type transactionsOutput struct {
	Body []ledger.Transaction
}
