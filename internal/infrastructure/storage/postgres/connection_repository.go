package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"bankfeed/internal/domain/connection"
)

const uniqueViolation = "23505"

type ConnectionRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewConnectionRepository(pool *pgxpool.Pool, log *slog.Logger) *ConnectionRepository {
	return &ConnectionRepository{
		pool: pool,
		log:  log.With("component", "connection_repository"),
	}
}

func (r *ConnectionRepository) Create(ctx context.Context, conn *connection.Connection) (int64, error) {
	const query = `
		INSERT INTO connections (user_id, external_item_id, institution_name, encrypted_credential, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		conn.UserID, conn.ExternalItemID, conn.InstitutionName,
		conn.EncryptedCredential, conn.Status,
	).Scan(&conn.ID, &conn.CreatedAt, &conn.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, connection.ErrAlreadyLinked
		}
		r.log.Error("failed to create connection",
			"user_id", conn.UserID, "item_id", conn.ExternalItemID, "error", err)
		return 0, fmt.Errorf("create connection: %w", err)
	}

	return conn.ID, nil
}

const connectionColumns = `
	id, user_id, external_item_id, institution_name, encrypted_credential,
	sync_cursor, status, COALESCE(error_detail, ''), created_at, updated_at`

func (r *ConnectionRepository) Get(ctx context.Context, connectionID int64) (*connection.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`

	return r.scanOne(r.pool.QueryRow(ctx, query, connectionID))
}

func (r *ConnectionRepository) GetForUser(ctx context.Context, userID, connectionID int64) (*connection.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1 AND user_id = $2`

	return r.scanOne(r.pool.QueryRow(ctx, query, connectionID, userID))
}

func (r *ConnectionRepository) ListByUser(ctx context.Context, userID int64) ([]connection.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE user_id = $1 ORDER BY id`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var conns []connection.Connection
	for rows.Next() {
		var c connection.Connection
		if err := scanConnection(rows, &c); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		conns = append(conns, c)
	}

	return conns, rows.Err()
}

func (r *ConnectionRepository) ListActiveIDs(ctx context.Context) ([]int64, error) {
	const query = `SELECT id FROM connections WHERE status = $1 ORDER BY id`

	rows, err := r.pool.Query(ctx, query, connection.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active connections: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan connection id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r *ConnectionRepository) SetStatus(ctx context.Context, connectionID int64, status connection.Status, detail string) error {
	const query = `
		UPDATE connections
		SET status = $2, error_detail = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, connectionID, status, detail)
	if err != nil {
		r.log.Error("failed to set connection status",
			"connection_id", connectionID, "status", status, "error", err)
		return fmt.Errorf("set connection status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return connection.ErrNotFound
	}

	return nil
}

func (r *ConnectionRepository) Delete(ctx context.Context, connectionID int64) error {
	const query = `DELETE FROM connections WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, connectionID); err != nil {
		r.log.Error("failed to delete connection",
			"connection_id", connectionID, "error", err)
		return fmt.Errorf("delete connection: %w", err)
	}

	return nil
}

func (r *ConnectionRepository) scanOne(row pgx.Row) (*connection.Connection, error) {
	var c connection.Connection
	if err := scanConnection(row, &c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, connection.ErrNotFound
		}
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return &c, nil
}

func scanConnection(row pgx.Row, c *connection.Connection) error {
	return row.Scan(
		&c.ID, &c.UserID, &c.ExternalItemID, &c.InstitutionName,
		&c.EncryptedCredential, &c.SyncCursor, &c.Status, &c.ErrorDetail,
		&c.CreatedAt, &c.UpdatedAt,
	)
}
