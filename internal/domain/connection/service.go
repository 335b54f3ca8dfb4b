package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"bankfeed/internal/domain/ledger"
	"bankfeed/internal/infrastructure/aggregator"
)

// Cipher encrypts credentials for storage at rest.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(blob []byte) ([]byte, error)
}

// SyncTrigger enqueues an asynchronous sync run for a connection.
type SyncTrigger interface {
	Enqueue(connectionID int64)
}

type Servicer interface {
	CreateLinkSession(ctx context.Context, userID int64) (aggregator.LinkSession, error)
	EstablishLink(ctx context.Context, userID int64, publicToken, institution string) (int64, error)
	ListByUser(ctx context.Context, userID int64) ([]Connection, error)
	Unlink(ctx context.Context, userID, connectionID int64) (UnlinkResult, error)
}

type Service struct {
	repo       Repository
	ledgerRepo ledger.Repository
	client     aggregator.Client
	cipher     Cipher
	trigger    SyncTrigger
	log        *slog.Logger

	// createAttempts bounds the persistence retry in EstablishLink.
	// Losing an exchanged credential is the least recoverable failure
	// in this subsystem, so the insert is retried before giving up.
	createAttempts int
	retryBackoff   time.Duration
}

func NewService(
	repo Repository,
	ledgerRepo ledger.Repository,
	client aggregator.Client,
	cipher Cipher,
	trigger SyncTrigger,
	log *slog.Logger,
) *Service {
	return &Service{
		repo:           repo,
		ledgerRepo:     ledgerRepo,
		client:         client,
		cipher:         cipher,
		trigger:        trigger,
		log:            log.With("component", "connection_service"),
		createAttempts: 3,
		retryBackoff:   200 * time.Millisecond,
	}
}

func (s *Service) CreateLinkSession(ctx context.Context, userID int64) (aggregator.LinkSession, error) {
	session, err := s.client.CreateLinkSession(ctx, userID)
	if err != nil {
		return aggregator.LinkSession{}, fmt.Errorf("create link session: %w", err)
	}
	return session, nil
}

// EstablishLink exchanges a single-use public token for a long-lived
// credential, persists it encrypted, materializes the account set, and
// enqueues the first sync. The exchange is never retried: a public
// token is spent the moment the aggregator answers definitively. After
// a successful exchange the connection insert is retried, and failures
// past that point (account listing, sync enqueue) leave the connection
// in place for a later sync to reconcile.
func (s *Service) EstablishLink(ctx context.Context, userID int64, publicToken, institution string) (int64, error) {
	exchanged, err := s.client.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return 0, fmt.Errorf("exchange public token: %w", err)
	}

	blob, err := s.cipher.Encrypt([]byte(exchanged.AccessCredential))
	if err != nil {
		return 0, fmt.Errorf("encrypt credential: %w", err)
	}

	conn := &Connection{
		UserID:              userID,
		ExternalItemID:      exchanged.ExternalItemID,
		InstitutionName:     institution,
		EncryptedCredential: blob,
		Status:              StatusActive,
	}

	connID, err := s.createWithRetry(ctx, conn)
	if err != nil {
		return 0, err
	}

	if err := s.materializeAccounts(ctx, connID, exchanged.AccessCredential); err != nil {
		// The connection and credential are durable; the ledger stays
		// empty until the next sync attempt fills it in.
		s.log.Warn("initial account materialization failed",
			"connection_id", connID, "error", err)
	}

	s.trigger.Enqueue(connID)

	s.log.Info("connection established",
		"connection_id", connID, "user_id", userID, "item_id", exchanged.ExternalItemID)
	return connID, nil
}

func (s *Service) createWithRetry(ctx context.Context, conn *Connection) (int64, error) {
	var lastErr error
	for attempt := 1; attempt <= s.createAttempts; attempt++ {
		id, err := s.repo.Create(ctx, conn)
		if err == nil {
			return id, nil
		}
		if errors.Is(err, ErrAlreadyLinked) {
			return 0, err
		}

		lastErr = err
		s.log.Warn("connection persist failed, retrying",
			"attempt", attempt, "item_id", conn.ExternalItemID, "error", err)

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(s.retryBackoff * time.Duration(attempt)):
		}
	}

	s.log.Error("credential could not be persisted after exchange",
		"item_id", conn.ExternalItemID, "error", lastErr)
	return 0, fmt.Errorf("persist connection: %w", lastErr)
}

func (s *Service) materializeAccounts(ctx context.Context, connID int64, credential string) error {
	accounts, err := s.client.ListAccounts(ctx, credential)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	for _, a := range accounts {
		current := ledger.ToMinorUnits(a.CurrentBalance)
		account := &ledger.Account{
			ConnectionID:      connID,
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

	return nil
}

func (s *Service) ListByUser(ctx context.Context, userID int64) ([]Connection, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Unlink revokes the credential at the aggregator before touching local
// state. Local cleanup (tombstoning transactions, deleting accounts)
// proceeds even when revocation fails, but the connection row and its
// credential are retained in the error state until a retry revokes
// successfully: a dangling live credential is a security exposure and
// must stay visible to the operator. Every step is idempotent, so
// re-running after a crash is safe.
func (s *Service) Unlink(ctx context.Context, userID, connectionID int64) (UnlinkResult, error) {
	conn, err := s.repo.GetForUser(ctx, userID, connectionID)
	if err != nil {
		return UnlinkResult{}, err
	}

	revoked := s.revoke(ctx, conn)

	hidden, err := s.ledgerRepo.HideTransactions(ctx, connectionID)
	if err != nil {
		return UnlinkResult{}, fmt.Errorf("tombstone transactions: %w", err)
	}

	if err := s.ledgerRepo.DeleteAccounts(ctx, connectionID); err != nil {
		return UnlinkResult{}, fmt.Errorf("delete accounts: %w", err)
	}

	result := UnlinkResult{Revoked: revoked, TransactionsHidden: hidden}

	if !revoked {
		detail := "credential revocation failed; unlink must be retried"
		if err := s.repo.SetStatus(ctx, connectionID, StatusError, detail); err != nil {
			return result, fmt.Errorf("mark connection failed: %w", err)
		}
		s.log.Error("unlink left a live credential behind",
			"connection_id", connectionID, "item_id", conn.ExternalItemID)
		return result, nil
	}

	if err := s.repo.Delete(ctx, connectionID); err != nil {
		return result, fmt.Errorf("delete connection: %w", err)
	}
	result.Removed = true

	s.log.Info("connection unlinked",
		"connection_id", connectionID, "transactions_hidden", hidden)
	return result, nil
}

func (s *Service) revoke(ctx context.Context, conn *Connection) bool {
	credential, err := s.cipher.Decrypt(conn.EncryptedCredential)
	if err != nil {
		// Corrupt credential: revocation is impossible, treated like a
		// revoke failure so the operator sees it.
		s.log.Error("credential decryption failed during unlink",
			"connection_id", conn.ID, "error", err)
		return false
	}

	err = s.client.RevokeItem(ctx, string(credential))
	if err == nil {
		return true
	}
	if aggregator.PermanentCode(err) == aggregator.CodeItemNotFound {
		// Already revoked upstream; the retry is a no-op.
		return true
	}

	s.log.Error("aggregator revocation failed",
		"connection_id", conn.ID, "error", err)
	return false
}
