package aggregator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake_ExchangeIsSingleUse(t *testing.T) {
	f := NewFake()
	f.Exchanges["pub-abc"] = ExchangeResult{AccessCredential: "access-1", ExternalItemID: "item-1"}

	ctx := context.Background()

	res, err := f.ExchangePublicToken(ctx, "pub-abc")
	require.NoError(t, err)
	assert.Equal(t, "item-1", res.ExternalItemID)

	_, err = f.ExchangePublicToken(ctx, "pub-abc")
	require.Error(t, err)
	assert.Equal(t, CodeInvalidPublicToken, PermanentCode(err))

	_, err = f.ExchangePublicToken(ctx, "pub-unknown")
	assert.Equal(t, CodeInvalidPublicToken, PermanentCode(err))
}

func TestFake_SyncPageScripting(t *testing.T) {
	f := NewFake()
	f.Accounts["access-1"] = []AccountData{{ExternalAccountID: "acc-1"}}
	f.Pages[""] = Page{NextCursor: "c1", HasMore: true}
	f.Pages["c1"] = Page{NextCursor: "c2"}

	ctx := context.Background()

	first, err := f.SyncPage(ctx, "access-1", "")
	require.NoError(t, err)
	assert.True(t, first.HasMore)

	second, err := f.SyncPage(ctx, "access-1", first.NextCursor)
	require.NoError(t, err)
	assert.False(t, second.HasMore)

	// Past the script: terminal page, cursor stays put.
	caughtUp, err := f.SyncPage(ctx, "access-1", "c2")
	require.NoError(t, err)
	assert.Equal(t, "c2", caughtUp.NextCursor)
	assert.False(t, caughtUp.HasMore)

	assert.Equal(t, 3, f.SyncCalls)
}

func TestFake_RevokeLifecycle(t *testing.T) {
	f := NewFake()
	f.Accounts["access-1"] = []AccountData{{ExternalAccountID: "acc-1"}}

	ctx := context.Background()

	require.NoError(t, f.RevokeItem(ctx, "access-1"))
	assert.True(t, f.Revoked("access-1"))

	// Revoking twice reports ITEM_NOT_FOUND, which callers treat as
	// already-done.
	err := f.RevokeItem(ctx, "access-1")
	assert.Equal(t, CodeItemNotFound, PermanentCode(err))

	// A revoked credential no longer syncs.
	_, err = f.SyncPage(ctx, "access-1", "")
	assert.Equal(t, CodeItemLoginRequired, PermanentCode(err))
}

func TestFake_RevokeErrInjection(t *testing.T) {
	f := NewFake()
	f.Accounts["access-1"] = []AccountData{{ExternalAccountID: "acc-1"}}
	f.RevokeErr = &TransientError{Err: context.DeadlineExceeded}

	ctx := context.Background()

	err := f.RevokeItem(ctx, "access-1")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.False(t, f.Revoked("access-1"))

	// One-shot: the next attempt succeeds.
	require.NoError(t, f.RevokeItem(ctx, "access-1"))
	assert.True(t, f.Revoked("access-1"))
}
