package sync

import (
	"context"
	"fmt"

	"golang.org/x/exp/slog"

	"bankfeed/internal/domain/connection"
	"bankfeed/internal/domain/ledger"
	"bankfeed/internal/infrastructure/aggregator"
)

// Decrypter recovers the plaintext aggregator credential.
type Decrypter interface {
	Decrypt(blob []byte) ([]byte, error)
}

// Reconciler recomputes an account's derived balance.
type Reconciler interface {
	Recompute(ctx context.Context, accountID int64) error
}

type Servicer interface {
	// Run executes one sync invocation for a connection. Returns
	// ErrSyncInProgress when another run holds the connection's lease;
	// the caller should no-op.
	Run(ctx context.Context, connectionID int64, opts Options) (Result, error)
}

// Service is the incremental sync engine. Each run holds the
// per-connection lease for the whole page loop, pulls cursor-paged
// change batches from the aggregator, and applies each batch together
// with its cursor advance in one durable step. The engine performs no
// internal retries: transient failures stop the run with the cursor
// intact and the scheduler tries again later.
type Service struct {
	conns      connection.Repository
	repo       Repository
	ledgerRepo ledger.Repository
	reconciler Reconciler
	cipher     Decrypter
	client     aggregator.Client
	leases     *leaseRegistry
	maxPages   int
	log        *slog.Logger
}

func NewService(
	conns connection.Repository,
	repo Repository,
	ledgerRepo ledger.Repository,
	reconciler Reconciler,
	cipher Decrypter,
	client aggregator.Client,
	maxPages int,
	log *slog.Logger,
) *Service {
	if maxPages <= 0 {
		maxPages = 10
	}
	return &Service{
		conns:      conns,
		repo:       repo,
		ledgerRepo: ledgerRepo,
		reconciler: reconciler,
		cipher:     cipher,
		client:     client,
		leases:     newLeaseRegistry(),
		maxPages:   maxPages,
		log:        log.With("component", "sync_engine"),
	}
}

func (s *Service) Run(ctx context.Context, connectionID int64, opts Options) (Result, error) {
	if !s.leases.TryAcquire(connectionID) {
		return Result{}, ErrSyncInProgress
	}
	defer s.leases.Release(connectionID)

	conn, err := s.conns.Get(ctx, connectionID)
	if err != nil {
		return Result{}, err
	}

	credential, err := s.cipher.Decrypt(conn.EncryptedCredential)
	if err != nil {
		// Fatal for this connection; no network call is made.
		detail := fmt.Sprintf("%v: %v", ErrCredentialCorrupt, err)
		if serr := s.conns.SetStatus(ctx, connectionID, connection.StatusError, detail); serr != nil {
			s.log.Error("failed to mark connection corrupt",
				"connection_id", connectionID, "error", serr)
		}
		return Result{}, fmt.Errorf("%w: %v", ErrCredentialCorrupt, err)
	}

	cursor := ""
	if conn.SyncCursor != nil {
		cursor = *conn.SyncCursor
	}
	if opts.CursorOverride != nil {
		cursor = *opts.CursorOverride
	}

	accountsByExternalID, err := s.loadAccounts(ctx, connectionID)
	if err != nil {
		return Result{}, err
	}

	if len(accountsByExternalID) == 0 {
		// The account set can be missing when materialization during
		// linking failed. Syncing without it would skip every
		// transaction while still advancing the cursor, so the engine
		// fetches the accounts itself before touching the feed.
		if err := s.materializeAccounts(ctx, connectionID, string(credential)); err != nil {
			s.recordFailure(ctx, connectionID, err)
			return Result{}, fmt.Errorf("materialize accounts: %w", err)
		}
		if accountsByExternalID, err = s.loadAccounts(ctx, connectionID); err != nil {
			return Result{}, err
		}
	}

	var res Result
	for page := 0; page < s.maxPages; page++ {
		if ctx.Err() != nil {
			// Cancellation lands between pages, never mid-apply, so
			// the cursor/batch pairing survives. Applied pages are
			// already durable.
			res.HasMore = true
			return res, ctx.Err()
		}

		p, err := s.client.SyncPage(ctx, string(credential), cursor)
		if err != nil {
			s.recordFailure(ctx, connectionID, err)
			return res, fmt.Errorf("sync page after cursor %q: %w", cursor, err)
		}

		batch, counts := s.translatePage(conn, accountsByExternalID, p)

		if err := s.repo.ApplyPage(ctx, connectionID, batch, p.NextCursor); err != nil {
			// Storage failure: the cursor did not advance; re-running
			// with the stored cursor reproduces this same batch.
			s.recordFailure(ctx, connectionID, err)
			return res, fmt.Errorf("apply page: %w", err)
		}
		cursor = p.NextCursor

		res.Added += counts.added
		res.Modified += counts.modified
		res.Removed += counts.removed
		res.Skipped += counts.skipped

		s.reconcileBalances(ctx, batch, accountsByExternalID)

		if !p.HasMore {
			res.HasMore = false
			break
		}
		res.HasMore = true
	}

	if err := s.conns.SetStatus(ctx, connectionID, connection.StatusActive, ""); err != nil {
		s.log.Error("failed to clear connection status",
			"connection_id", connectionID, "error", err)
	}

	s.log.Info("sync run finished",
		"connection_id", connectionID,
		"added", res.Added, "modified", res.Modified, "removed", res.Removed,
		"skipped", res.Skipped, "has_more", res.HasMore)
	return res, nil
}

func (s *Service) loadAccounts(ctx context.Context, connectionID int64) (map[string]ledger.Account, error) {
	accounts, err := s.ledgerRepo.ListAccounts(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}

	byExternalID := make(map[string]ledger.Account, len(accounts))
	for _, a := range accounts {
		byExternalID[a.ExternalAccountID] = a
	}
	return byExternalID, nil
}

func (s *Service) materializeAccounts(ctx context.Context, connectionID int64, credential string) error {
	accounts, err := s.client.ListAccounts(ctx, credential)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	for _, a := range accounts {
		current := ledger.ToMinorUnits(a.CurrentBalance)
		account := &ledger.Account{
			ConnectionID:      connectionID,
			ExternalAccountID: a.ExternalAccountID,
			Name:              a.Name,
			Type:              a.Type,
			Currency:          a.Currency,
			OpeningBalance:    current,
			CurrentBalance:    current,
			AvailableBalance:  ledger.ToMinorUnits(a.AvailableBalance),
		}
		if _, err := s.ledgerRepo.UpsertAccount(ctx, account); err != nil {
			return fmt.Errorf("persist account %s: %w", a.ExternalAccountID, err)
		}
	}

	s.log.Info("account set materialized during sync",
		"connection_id", connectionID, "accounts", len(accounts))
	return nil
}

type pageCounts struct {
	added, modified, removed, skipped int
}

// translatePage maps one aggregator page into the local model. This is
// the single point where aggregator amounts become stored amounts:
// decimal units to integer minor units, outflow-positive.
func (s *Service) translatePage(conn *connection.Connection, accounts map[string]ledger.Account, p aggregator.Page) (Batch, pageCounts) {
	var batch Batch
	var counts pageCounts

	appendUpsert := func(t aggregator.TransactionData, modified bool) {
		account, ok := accounts[t.ExternalAccountID]
		if !ok {
			// Unknown account reference: a data integrity problem in
			// the page, not fatal to the batch.
			counts.skipped++
			s.log.Warn("transaction references unknown account",
				"connection_id", conn.ID,
				"external_account_id", t.ExternalAccountID,
				"external_transaction_id", t.ExternalTransactionID)
			return
		}

		batch.Upserts = append(batch.Upserts, ledger.Transaction{
			ConnectionID:          conn.ID,
			AccountID:             account.ID,
			ExternalTransactionID: t.ExternalTransactionID,
			Amount:                ledger.ToMinorUnits(t.Amount),
			Description:           t.Description,
			Category:              t.Category,
			PostedAt:              t.PostedAt,
			Pending:               t.Pending,
		})
		if modified {
			counts.modified++
		} else {
			counts.added++
		}
	}

	for _, t := range p.Added {
		appendUpsert(t, false)
	}
	for _, t := range p.Modified {
		appendUpsert(t, true)
	}

	batch.Tombstones = append(batch.Tombstones, p.Removed...)
	counts.removed = len(p.Removed)

	return batch, counts
}

// reconcileBalances recomputes every account touched by the batch.
// Tombstoned transactions may belong to any of the connection's
// accounts, so when the batch removed anything every account is
// recomputed; recomputation is idempotent and cheap.
func (s *Service) reconcileBalances(ctx context.Context, batch Batch, accounts map[string]ledger.Account) {
	touched := make(map[int64]struct{})
	for _, t := range batch.Upserts {
		touched[t.AccountID] = struct{}{}
	}
	if len(batch.Tombstones) > 0 {
		for _, a := range accounts {
			touched[a.ID] = struct{}{}
		}
	}

	for accountID := range touched {
		if err := s.reconciler.Recompute(ctx, accountID); err != nil {
			// Derived value; the next applied batch recomputes it.
			s.log.Warn("balance recompute failed",
				"account_id", accountID, "error", err)
		}
	}
}

func (s *Service) recordFailure(ctx context.Context, connectionID int64, err error) {
	status := connection.StatusActive
	if aggregator.IsPermanent(err) {
		// Permanent: syncing stops until the user re-links.
		status = connection.StatusError
	}

	if serr := s.conns.SetStatus(ctx, connectionID, status, err.Error()); serr != nil {
		s.log.Error("failed to record sync failure",
			"connection_id", connectionID, "error", serr)
	}
}
