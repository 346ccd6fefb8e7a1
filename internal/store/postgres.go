package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PostgresStore implements Store on PostgreSQL. A single shared schema
// backs every project; tenant isolation comes entirely from the
// project_id predicate on every query (spec §3), the same posture
// internal/vectorstore/pgvector.go takes for embeddings.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// querier is the subset of *pgxpool.Pool and pgx.Tx every postgres_*.go
// query method calls through, so a method's body is identical whether it
// runs against the pool directly or inside a WithTx transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type txContextKey struct{}

// db returns the transaction ctx carries (see WithTx), or the pool when
// there is none — every query method calls this instead of touching
// s.pool directly so it transparently joins an in-flight transaction.
func (s *PostgresStore) db(ctx context.Context) querier {
	if tx, ok := ctx.Value(txContextKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

// WithTx runs fn inside a single Postgres transaction: every Store call
// made with the ctx fn receives joins that transaction, committing on a
// nil return and rolling back otherwise. Required by spec §5 for
// operations whose steps must observe consistent state and roll back
// together as a unit (e.g. assignment.Engine's waiting-queue enqueue and
// its transfer side-effect sequence).
func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txCtx := context.WithValue(ctx, txContextKey{}, tx)
	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			log.Error().Err(rbErr).Msg("postgres: rollback failed")
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// NewPostgresStore connects, pings, and migrates.
func NewPostgresStore(ctx context.Context, connURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info().Msg("postgres store initialized")
	return s, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Migrate applies every CREATE TABLE IF NOT EXISTS the control plane
// needs. Each entity's DDL sits next to its own query file's comment
// block rather than here, except this single entry point that runs them
// all at boot — mirrors internal/vectorstore/pgvector.go's single
// migrate() bundling its own schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	ddl := collectionsDDL + filesDDL + fileDocumentsDDL + qaPairsDDL +
		crawlJobsDDL + websitePagesDDL + embeddingConfigsDDL + platformsDDL +
		inboxDDL + visitorsDDL + sessionsDDL + staffDDL + rulesDDL +
		waitingQueueDDL + assignmentHistoryDDL + channelMembersDDL

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
