package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"bankfeed/internal/domain/connection"
	"bankfeed/internal/domain/ledger"
	"bankfeed/internal/infrastructure/aggregator"
)

// memStore is an in-memory world backing all three repositories the
// engine touches, so ApplyPage mutates the same state the engine later
// reads back.
type memStore struct {
	mu gosync.Mutex

	conns        map[int64]*connection.Connection
	accounts     map[int64]*ledger.Account
	transactions map[string]*ledger.Transaction
	nextTxID     int64

	// applyErr fails the next ApplyPage call without mutating state.
	applyErr error
}

func newMemStore() *memStore {
	return &memStore{
		conns:        make(map[int64]*connection.Connection),
		accounts:     make(map[int64]*ledger.Account),
		transactions: make(map[string]*ledger.Transaction),
	}
}

// connection.Repository

func (m *memStore) Create(_ context.Context, conn *connection.Connection) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := int64(len(m.conns) + 1)
	c := *conn
	c.ID = id
	m.conns[id] = &c
	return id, nil
}

func (m *memStore) Get(_ context.Context, id int64) (*connection.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[id]
	if !ok {
		return nil, connection.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) GetForUser(_ context.Context, userID, id int64) (*connection.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[id]
	if !ok || c.UserID != userID {
		return nil, connection.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) ListByUser(_ context.Context, userID int64) ([]connection.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []connection.Connection
	for _, c := range m.conns {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memStore) ListActiveIDs(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int64
	for id, c := range m.conns {
		if c.Status == connection.StatusActive {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *memStore) SetStatus(_ context.Context, id int64, status connection.Status, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[id]
	if !ok {
		return connection.ErrNotFound
	}
	c.Status = status
	c.ErrorDetail = detail
	return nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, id)
	return nil
}

// ledger.Repository

func (m *memStore) UpsertAccount(_ context.Context, account *ledger.Account) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.ConnectionID == account.ConnectionID && a.ExternalAccountID == account.ExternalAccountID {
			a.Name, a.Type, a.Currency = account.Name, account.Type, account.Currency
			a.AvailableBalance = account.AvailableBalance
			return a.ID, nil
		}
	}
	id := int64(len(m.accounts) + 1)
	a := *account
	a.ID = id
	m.accounts[id] = &a
	return id, nil
}

func (m *memStore) GetAccount(_ context.Context, id int64) (*ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) ListAccounts(_ context.Context, connectionID int64) ([]ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledger.Account
	for _, a := range m.accounts {
		if a.ConnectionID == connectionID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memStore) ListAccountsByUser(_ context.Context, userID int64) ([]ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledger.Account
	for _, a := range m.accounts {
		if c, ok := m.conns[a.ConnectionID]; ok && c.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memStore) ListTransactions(_ context.Context, accountID int64, includeHidden bool) ([]ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledger.Transaction
	for _, t := range m.transactions {
		if t.AccountID != accountID {
			continue
		}
		if t.Hidden && !includeHidden {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (m *memStore) SumVisible(_ context.Context, accountID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, t := range m.transactions {
		if t.AccountID == accountID && !t.Hidden {
			sum += t.Amount
		}
	}
	return sum, nil
}

func (m *memStore) SetCurrentBalance(_ context.Context, accountID, balance int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	a.CurrentBalance = balance
	return nil
}

func (m *memStore) HideTransactions(_ context.Context, connectionID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, t := range m.transactions {
		if t.ConnectionID == connectionID && !t.Hidden {
			t.Hidden = true
			n++
		}
	}
	return n, nil
}

func (m *memStore) DeleteAccounts(_ context.Context, connectionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.accounts {
		if a.ConnectionID == connectionID {
			delete(m.accounts, id)
		}
	}
	return nil
}

// Repository (sync)

func (m *memStore) ApplyPage(_ context.Context, connectionID int64, batch Batch, nextCursor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.applyErr != nil {
		err := m.applyErr
		m.applyErr = nil
		return err
	}

	for _, u := range batch.Upserts {
		if existing, ok := m.transactions[u.ExternalTransactionID]; ok {
			hidden := existing.Hidden
			cp := u
			cp.ID = existing.ID
			cp.Hidden = hidden
			m.transactions[u.ExternalTransactionID] = &cp
			continue
		}
		m.nextTxID++
		cp := u
		cp.ID = m.nextTxID
		m.transactions[u.ExternalTransactionID] = &cp
	}

	for _, externalID := range batch.Tombstones {
		if t, ok := m.transactions[externalID]; ok {
			t.Hidden = true
		}
	}

	c, ok := m.conns[connectionID]
	if !ok {
		return connection.ErrNotFound
	}
	cursor := nextCursor
	c.SyncCursor = &cursor
	return nil
}

func (m *memStore) visibleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.transactions {
		if !t.Hidden {
			n++
		}
	}
	return n
}

type passCipher struct{}

func (passCipher) Decrypt(blob []byte) ([]byte, error) { return blob, nil }

type failCipher struct{}

func (failCipher) Decrypt([]byte) ([]byte, error) {
	return nil, errors.New("authentication failed")
}

const testCredential = "access-cred-1"

// seedWorld builds a linked connection with two accounts and a scripted
// two-page feed: ten additions, then two modifications and a removal.
func seedWorld(t *testing.T) (*memStore, *aggregator.Fake, int64) {
	t.Helper()

	store := newMemStore()
	connID, err := store.Create(context.Background(), &connection.Connection{
		UserID:              1,
		ExternalItemID:      "item-1",
		InstitutionName:     "First Bank",
		EncryptedCredential: []byte(testCredential),
		Status:              connection.StatusActive,
	})
	require.NoError(t, err)

	_, err = store.UpsertAccount(context.Background(), &ledger.Account{
		ConnectionID:      connID,
		ExternalAccountID: "acc-checking",
		Name:              "Checking",
		OpeningBalance:    100_000,
		CurrentBalance:    100_000,
	})
	require.NoError(t, err)
	_, err = store.UpsertAccount(context.Background(), &ledger.Account{
		ConnectionID:      connID,
		ExternalAccountID: "acc-savings",
		Name:              "Savings",
		OpeningBalance:    500_000,
		CurrentBalance:    500_000,
	})
	require.NoError(t, err)

	fake := aggregator.NewFake()
	fake.Accounts[testCredential] = []aggregator.AccountData{
		{ExternalAccountID: "acc-checking"},
		{ExternalAccountID: "acc-savings"},
	}

	var added []aggregator.TransactionData
	for i := 0; i < 10; i++ {
		added = append(added, aggregator.TransactionData{
			ExternalTransactionID: fmt.Sprintf("tx-%d", i),
			ExternalAccountID:     "acc-checking",
			Amount:                12.50,
			Description:           "coffee",
			PostedAt:              time.Date(2025, 6, 1+i, 0, 0, 0, 0, time.UTC),
		})
	}
	fake.Pages[""] = aggregator.Page{Added: added, NextCursor: "c1", HasMore: true}
	fake.Pages["c1"] = aggregator.Page{
		Modified: []aggregator.TransactionData{
			{ExternalTransactionID: "tx-0", ExternalAccountID: "acc-checking", Amount: 13.00, Description: "coffee (final)"},
			{ExternalTransactionID: "tx-1", ExternalAccountID: "acc-savings", Amount: 40.00, Description: "moved"},
		},
		Removed:    []string{"tx-2"},
		NextCursor: "c2",
		HasMore:    false,
	}

	return store, fake, connID
}

func newEngine(store *memStore, fake aggregator.Client, maxPages int) *Service {
	log := slog.Default()
	return NewService(store, store, store, ledger.NewReconciler(store, log), passCipher{}, fake, maxPages, log)
}

func TestService_Run_AppliesFullFeed(t *testing.T) {
	store, fake, connID := seedWorld(t)
	engine := newEngine(store, fake, 10)

	res, err := engine.Run(context.Background(), connID, Options{})
	require.NoError(t, err)

	assert.Equal(t, 10, res.Added)
	assert.Equal(t, 2, res.Modified)
	assert.Equal(t, 1, res.Removed)
	assert.False(t, res.HasMore)

	conn, err := store.Get(context.Background(), connID)
	require.NoError(t, err)
	require.NotNil(t, conn.SyncCursor)
	assert.Equal(t, "c2", *conn.SyncCursor)
	assert.Equal(t, connection.StatusActive, conn.Status)
	assert.Empty(t, conn.ErrorDetail)

	// tx-2 is tombstoned, 9 remain visible.
	assert.Equal(t, 9, store.visibleCount())

	// tx-0 carries the modified amount and stays on checking.
	tx := store.transactions["tx-0"]
	require.NotNil(t, tx)
	assert.Equal(t, int64(1300), tx.Amount)
	assert.Equal(t, "coffee (final)", tx.Description)
}

func TestService_Run_BalancesConverge(t *testing.T) {
	store, fake, connID := seedWorld(t)
	engine := newEngine(store, fake, 10)

	_, err := engine.Run(context.Background(), connID, Options{})
	require.NoError(t, err)

	// Checking: opening 100000, visible outflows are tx-0 at 13.00 and
	// tx-3..tx-9 at 12.50 (tx-1 moved to savings, tx-2 removed).
	checking, err := store.GetAccount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100_000-1300-7*1250), checking.CurrentBalance)

	savings, err := store.GetAccount(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(500_000-4000), savings.CurrentBalance)
}

func TestService_Run_Idempotent(t *testing.T) {
	store, fake, connID := seedWorld(t)
	engine := newEngine(store, fake, 10)

	_, err := engine.Run(context.Background(), connID, Options{})
	require.NoError(t, err)
	visibleAfterFirst := store.visibleCount()

	// Replay the whole feed from the beginning.
	empty := ""
	res, err := engine.Run(context.Background(), connID, Options{CursorOverride: &empty})
	require.NoError(t, err)

	assert.Equal(t, 10, res.Added)
	assert.Equal(t, visibleAfterFirst, store.visibleCount(), "replay must not duplicate rows")

	// The replayed add of tx-2 must not resurrect the tombstone.
	assert.True(t, store.transactions["tx-2"].Hidden)
}

func TestService_Run_ApplyFailureKeepsCursor(t *testing.T) {
	store, fake, connID := seedWorld(t)
	engine := newEngine(store, fake, 10)

	store.applyErr = errors.New("disk full")

	_, err := engine.Run(context.Background(), connID, Options{})
	require.Error(t, err)

	conn, err := store.Get(context.Background(), connID)
	require.NoError(t, err)
	assert.Nil(t, conn.SyncCursor, "cursor must not advance past a failed batch")
	assert.Equal(t, 0, store.visibleCount())
	assert.Equal(t, connection.StatusActive, conn.Status, "storage failure is transient")
	assert.Contains(t, conn.ErrorDetail, "disk full")

	// The retry picks up from the untouched cursor and succeeds.
	res, err := engine.Run(context.Background(), connID, Options{})
	require.NoError(t, err)
	assert.Equal(t, 10, res.Added)
}

func TestService_Run_PageCap(t *testing.T) {
	store, fake, connID := seedWorld(t)
	// Extend the feed so it outlasts the cap.
	fake.Pages["c1"] = aggregator.Page{NextCursor: "c2", HasMore: true}
	fake.Pages["c2"] = aggregator.Page{NextCursor: "c3", HasMore: true}

	engine := newEngine(store, fake, 2)

	res, err := engine.Run(context.Background(), connID, Options{})
	require.NoError(t, err)
	assert.True(t, res.HasMore)

	conn, err := store.Get(context.Background(), connID)
	require.NoError(t, err)
	require.NotNil(t, conn.SyncCursor)
	assert.Equal(t, "c2", *conn.SyncCursor, "two pages applied, cursor parked at the cap")
}

func TestService_Run_TransientFailureKeepsStatusActive(t *testing.T) {
	store, fake, connID := seedWorld(t)
	fake.SyncErrs[""] = &aggregator.TransientError{Err: errors.New("rate limited")}

	engine := newEngine(store, fake, 10)

	_, err := engine.Run(context.Background(), connID, Options{})
	require.Error(t, err)
	assert.True(t, aggregator.IsTransient(err))

	conn, err := store.Get(context.Background(), connID)
	require.NoError(t, err)
	assert.Equal(t, connection.StatusActive, conn.Status)
	assert.NotEmpty(t, conn.ErrorDetail)
	assert.Nil(t, conn.SyncCursor)
}

func TestService_Run_PermanentFailureFlipsStatus(t *testing.T) {
	store, fake, connID := seedWorld(t)
	fake.SyncErrs[""] = &aggregator.PermanentError{
		Code:    aggregator.CodeItemLoginRequired,
		Message: "user must re-authenticate",
	}

	engine := newEngine(store, fake, 10)

	_, err := engine.Run(context.Background(), connID, Options{})
	require.Error(t, err)
	assert.Equal(t, aggregator.CodeItemLoginRequired, aggregator.PermanentCode(err))

	conn, err := store.Get(context.Background(), connID)
	require.NoError(t, err)
	assert.Equal(t, connection.StatusError, conn.Status)
	assert.Contains(t, conn.ErrorDetail, aggregator.CodeItemLoginRequired)
}

func TestService_Run_CorruptCredential(t *testing.T) {
	store, fake, connID := seedWorld(t)
	log := slog.Default()
	engine := NewService(store, store, store, ledger.NewReconciler(store, log), failCipher{}, fake, 10, log)

	_, err := engine.Run(context.Background(), connID, Options{})
	require.ErrorIs(t, err, ErrCredentialCorrupt)

	assert.Equal(t, 0, fake.SyncCalls, "no network call with an unreadable credential")

	conn, err := store.Get(context.Background(), connID)
	require.NoError(t, err)
	assert.Equal(t, connection.StatusError, conn.Status)
}

func TestService_Run_MaterializesMissingAccounts(t *testing.T) {
	store, fake, connID := seedWorld(t)
	// Wipe the local account set, as if materialization during linking
	// had failed.
	store.mu.Lock()
	store.accounts = make(map[int64]*ledger.Account)
	store.mu.Unlock()

	engine := newEngine(store, fake, 10)

	res, err := engine.Run(context.Background(), connID, Options{})
	require.NoError(t, err)

	assert.Equal(t, 10, res.Added)
	assert.Zero(t, res.Skipped, "no transaction may be dropped for want of accounts")

	accounts, err := store.ListAccounts(context.Background(), connID)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}

func TestService_Run_AccountFetchFailureKeepsCursor(t *testing.T) {
	store, fake, connID := seedWorld(t)
	store.mu.Lock()
	store.accounts = make(map[int64]*ledger.Account)
	store.mu.Unlock()
	// The fake no longer recognizes the credential, so the account
	// fetch fails before any page is pulled.
	delete(fake.Accounts, testCredential)

	engine := newEngine(store, fake, 10)

	_, err := engine.Run(context.Background(), connID, Options{})
	require.Error(t, err)

	assert.Equal(t, 0, fake.SyncCalls, "the feed must not be touched without an account set")

	conn, err := store.Get(context.Background(), connID)
	require.NoError(t, err)
	assert.Nil(t, conn.SyncCursor, "cursor must not advance without an account set")
}

func TestService_Run_SkipsUnknownAccountReference(t *testing.T) {
	store, fake, connID := seedWorld(t)
	fake.Pages[""] = aggregator.Page{
		Added: []aggregator.TransactionData{
			{ExternalTransactionID: "tx-ok", ExternalAccountID: "acc-checking", Amount: 5},
			{ExternalTransactionID: "tx-orphan", ExternalAccountID: "acc-missing", Amount: 5},
		},
		NextCursor: "c1",
		HasMore:    false,
	}

	engine := newEngine(store, fake, 10)

	res, err := engine.Run(context.Background(), connID, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Skipped)
	assert.Nil(t, store.transactions["tx-orphan"])
}

// blockingClient parks SyncPage until released, to hold a run open
// while a second one races for the lease.
type blockingClient struct {
	entered   chan struct{}
	release   chan struct{}
	delegate  aggregator.Client
	enterOnce gosync.Once
}

func (b *blockingClient) CreateLinkSession(ctx context.Context, userID int64) (aggregator.LinkSession, error) {
	return b.delegate.CreateLinkSession(ctx, userID)
}

func (b *blockingClient) ExchangePublicToken(ctx context.Context, token string) (aggregator.ExchangeResult, error) {
	return b.delegate.ExchangePublicToken(ctx, token)
}

func (b *blockingClient) ListAccounts(ctx context.Context, cred string) ([]aggregator.AccountData, error) {
	return b.delegate.ListAccounts(ctx, cred)
}

func (b *blockingClient) SyncPage(ctx context.Context, cred, cursor string) (aggregator.Page, error) {
	b.enterOnce.Do(func() { close(b.entered) })
	<-b.release
	return b.delegate.SyncPage(ctx, cred, cursor)
}

func (b *blockingClient) RevokeItem(ctx context.Context, cred string) error {
	return b.delegate.RevokeItem(ctx, cred)
}

func TestService_Run_ConcurrentRunsExcludeEachOther(t *testing.T) {
	store, fake, connID := seedWorld(t)
	blocking := &blockingClient{
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
		delegate: fake,
	}
	engine := newEngine(store, blocking, 10)

	firstDone := make(chan error, 1)
	go func() {
		_, err := engine.Run(context.Background(), connID, Options{})
		firstDone <- err
	}()

	// Wait until the first run holds the lease inside the page loop.
	<-blocking.entered

	_, err := engine.Run(context.Background(), connID, Options{})
	assert.ErrorIs(t, err, ErrSyncInProgress)

	close(blocking.release)
	require.NoError(t, <-firstDone)

	// Only the winner reached the aggregator.
	conn, err := store.Get(context.Background(), connID)
	require.NoError(t, err)
	assert.Equal(t, "c2", *conn.SyncCursor)
}
