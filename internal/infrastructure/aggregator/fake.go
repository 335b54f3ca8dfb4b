package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Fake is a deterministic in-memory aggregator used by tests and by
// local development (AGGREGATOR_USE_FAKE=1). Behavior is scripted:
// exchanges, account sets, and sync pages are looked up from maps, and
// errors can be injected per cursor or for revocation.
type Fake struct {
	mu sync.Mutex

	// Exchanges maps public tokens to their exchange result. Tokens
	// are single-use: a second exchange fails permanently.
	Exchanges map[string]ExchangeResult
	// Accounts maps access credentials to their account set.
	Accounts map[string][]AccountData
	// Pages maps a cursor ("" for the first page) to the page served.
	Pages map[string]Page
	// SyncErrs injects an error for a specific cursor instead of a page.
	SyncErrs map[string]error
	// RevokeErr, when set, is returned by the next RevokeItem call and
	// then cleared, simulating a one-shot revocation failure.
	RevokeErr error

	used    map[string]bool
	revoked map[string]bool

	SyncCalls   int
	RevokeCalls int
}

func NewFake() *Fake {
	return &Fake{
		Exchanges: make(map[string]ExchangeResult),
		Accounts:  make(map[string][]AccountData),
		Pages:     make(map[string]Page),
		SyncErrs:  make(map[string]error),
		used:      make(map[string]bool),
		revoked:   make(map[string]bool),
	}
}

func (f *Fake) CreateLinkSession(_ context.Context, userID int64) (LinkSession, error) {
	return LinkSession{
		SessionToken: fmt.Sprintf("link-session-%d", userID),
		Expiry:       time.Now().Add(30 * time.Minute),
	}, nil
}

func (f *Fake) ExchangePublicToken(_ context.Context, publicToken string) (ExchangeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	res, ok := f.Exchanges[publicToken]
	if !ok || f.used[publicToken] {
		return ExchangeResult{}, &PermanentError{
			Code:    CodeInvalidPublicToken,
			Message: "public token is invalid or already used",
		}
	}

	f.used[publicToken] = true
	return res, nil
}

func (f *Fake) ListAccounts(_ context.Context, accessCredential string) ([]AccountData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkCredential(accessCredential); err != nil {
		return nil, err
	}

	return append([]AccountData{}, f.Accounts[accessCredential]...), nil
}

func (f *Fake) SyncPage(_ context.Context, accessCredential, cursor string) (Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.SyncCalls++

	if err := f.checkCredential(accessCredential); err != nil {
		return Page{}, err
	}

	if err, ok := f.SyncErrs[cursor]; ok {
		return Page{}, err
	}

	page, ok := f.Pages[cursor]
	if !ok {
		// Past the scripted feed: an empty terminal page whose cursor
		// stays put, like a fully caught-up item.
		return Page{NextCursor: cursor, HasMore: false}, nil
	}

	return page, nil
}

func (f *Fake) RevokeItem(_ context.Context, accessCredential string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.RevokeCalls++

	if f.RevokeErr != nil {
		err := f.RevokeErr
		f.RevokeErr = nil
		return err
	}

	if f.revoked[accessCredential] {
		return &PermanentError{Code: CodeItemNotFound, Message: "item already removed"}
	}

	f.revoked[accessCredential] = true
	return nil
}

// Revoked reports whether a credential has been revoked.
func (f *Fake) Revoked(accessCredential string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revoked[accessCredential]
}

func (f *Fake) checkCredential(accessCredential string) error {
	if f.revoked[accessCredential] {
		return &PermanentError{Code: CodeItemLoginRequired, Message: "credential revoked"}
	}
	if _, ok := f.Accounts[accessCredential]; !ok {
		return &PermanentError{Code: CodeItemNotFound, Message: "unknown credential"}
	}
	return nil
}
